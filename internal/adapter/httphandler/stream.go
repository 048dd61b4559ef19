package httphandler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/goldmanhw/storefront/internal/core/catalog"
	"github.com/goldmanhw/storefront/internal/core/domain"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4 << 10
)

// Stream upgrades to a websocket and pushes the derived view after
// every feed delivery, feed error and filter change. Clients send
// [ViewFilter] messages.
func (h CatalogHandler) Stream(w http.ResponseWriter, r *http.Request) {
	const op = "CatalogHandler.Stream"
	log := slog.With("op", op)

	c, ok := pathCollection(r)
	feed := h.feeds[c]
	if !ok || feed == nil {
		writeError(w, http.StatusNotFound, "unknown collection")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn("failed to upgrade", "err", err)
		return
	}

	h.views.ViewOpened(c)
	defer h.views.ViewClosed(c)

	s := newViewStream(conn, c, h.now)
	s.engine = catalog.New(feed, c, catalog.OnChangeOpt(s.notify))

	log.Info("stream opened", "collection", c, "remote", r.RemoteAddr)
	s.run(h.ctx)
	log.Info("stream closed", "collection", c, "remote", r.RemoteAddr)
}

// A viewStream is one live view: a websocket connection with its
// own engine.
type viewStream struct {
	conn       *websocket.Conn
	collection domain.Collection
	engine     *catalog.Engine
	now        func() time.Time

	changed  chan struct{}
	problems chan string
}

func newViewStream(
	conn *websocket.Conn, c domain.Collection, now func() time.Time,
) *viewStream {
	return &viewStream{
		conn:       conn,
		collection: c,
		now:        now,
		changed:    make(chan struct{}, 1),
		problems:   make(chan string, 1),
	}
}

func (s *viewStream) notify() {
	select {
	case s.changed <- struct{}{}:
	default:
	}
}

func (s *viewStream) run(ctx context.Context) {
	defer s.conn.Close()

	s.engine.Subscribe()
	defer s.engine.Unsubscribe()

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.readPump()
	}()

	s.notify()
	s.writePump(ctx, done)
}

func (s *viewStream) readPump() {
	const op = "viewStream.readPump"
	log := slog.With("op", op, "collection", s.collection)

	s.conn.SetReadLimit(maxMessageSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, r, err := s.conn.NextReader()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway, websocket.CloseNormalClosure,
			) {
				log.Warn("unexpected close", "err", err)
			}
			return
		}

		// Every decode failure, empty and truncated frames included,
		// is the client's message. A broken connection fails the next
		// NextReader.
		var f ViewFilter
		if err := json.NewDecoder(r).Decode(&f); err != nil {
			s.report("invalid filter message")
			continue
		}

		if err := s.apply(f); err != nil {
			s.report(err.Error())
			continue
		}
		s.notify()
	}
}

func (s *viewStream) apply(f ViewFilter) error {
	var mode *domain.SortMode
	if f.Sort != nil {
		m, err := domain.ParseSortMode(*f.Sort)
		if err != nil {
			return err
		}
		mode = &m
	}

	if f.Search != nil {
		s.engine.SetSearchTerm(*f.Search)
	}
	if f.Category != nil {
		s.engine.SetCategory(parseCategory(*f.Category))
	}
	if mode != nil {
		s.engine.SetSortMode(*mode)
	}
	return nil
}

func (s *viewStream) report(problem string) {
	select {
	case s.problems <- problem:
	default:
	}
}

func (s *viewStream) writePump(ctx context.Context, done <-chan struct{}) {
	const op = "viewStream.writePump"
	log := slog.With("op", op, "collection", s.collection)

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.closeWith(websocket.CloseGoingAway, "server is shutting down")
			return
		case <-done:
			return
		case <-s.changed:
			resp := newListResponse(s.collection, s.engine.View(), s.now())
			if err := s.write(resp); err != nil {
				log.Warn("failed to push view", "err", err)
				return
			}
		case problem := <-s.problems:
			if err := s.write(ErrorResponse{Error: problem}); err != nil {
				log.Warn("failed to push error", "err", err)
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *viewStream) write(v any) error {
	if err := s.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	if err := s.conn.WriteJSON(v); err != nil {
		return fmt.Errorf("write json: %w", err)
	}
	return nil
}

func (s *viewStream) closeWith(code int, text string) {
	msg := websocket.FormatCloseMessage(code, text)
	_ = s.conn.WriteControl(
		websocket.CloseMessage, msg, time.Now().Add(writeWait),
	)
}
