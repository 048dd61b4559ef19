package httphandler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/goldmanhw/storefront/internal/core/catalog"
	"github.com/goldmanhw/storefront/internal/core/domain"
	"github.com/goldmanhw/storefront/internal/core/port"
	"github.com/gorilla/websocket"
)

// A ViewObserver counts open live view streams.
type ViewObserver interface {
	ViewOpened(c domain.Collection)
	ViewClosed(c domain.Collection)
}

type nopViewObserver struct{}

func (nopViewObserver) ViewOpened(domain.Collection) {}
func (nopViewObserver) ViewClosed(domain.Collection) {}

// CatalogConfig used for setup the public catalog routes.
//
// Engines serve plain reads and stay subscribed for the process
// lifetime. Every stream gets its own engine over Feeds. Streams end
// when Ctx is done.
type CatalogConfig struct {
	Ctx      context.Context
	Engines  map[domain.Collection]*catalog.Engine
	Feeds    map[domain.Collection]port.RemoteFeed
	Views    ViewObserver
	Upgrader *websocket.Upgrader
}

type CatalogHandler struct {
	ctx      context.Context
	engines  map[domain.Collection]*catalog.Engine
	feeds    map[domain.Collection]port.RemoteFeed
	views    ViewObserver
	upgrader *websocket.Upgrader
	now      func() time.Time
}

func RegisterCatalog(mux *http.ServeMux, config CatalogConfig) {
	h := newCatalogHandler(config)
	mux.Handle("GET /v1/{collection}",
		withTimeout(defaultTimeout)(http.HandlerFunc(h.GetEntries)),
	)
	mux.HandleFunc("GET /v1/stream/{collection}", h.Stream)
}

func newCatalogHandler(config CatalogConfig) CatalogHandler {
	const op = "httphandler.newCatalogHandler"

	if config.Ctx == nil || config.Engines == nil || config.Feeds == nil {
		panic(fmt.Errorf("%s: incomplete config", op)) // develop mistake
	}
	if config.Views == nil {
		config.Views = nopViewObserver{}
	}
	if config.Upgrader == nil {
		config.Upgrader = &websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		}
	}
	return CatalogHandler{
		ctx:      config.Ctx,
		engines:  config.Engines,
		feeds:    config.Feeds,
		views:    config.Views,
		upgrader: config.Upgrader,
		now:      time.Now,
	}
}

// GetEntries derives the list for the query filters:
// ?search=&category=&sort=.
func (h CatalogHandler) GetEntries(w http.ResponseWriter, r *http.Request) {
	const op = "CatalogHandler.GetEntries"
	log := slog.With("op", op)

	c, ok := pathCollection(r)
	engine := h.engines[c]
	if !ok || engine == nil {
		writeError(w, http.StatusNotFound, "unknown collection")
		return
	}

	q := r.URL.Query()
	mode, err := domain.ParseSortMode(q.Get("sort"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	v := engine.ViewWith(q.Get("search"), parseCategory(q.Get("category")), mode)
	writeJSON(w, http.StatusOK, newListResponse(c, v, h.now()))

	log.Debug("served", "collection", c, "state", v.State, "count", v.Count)
}
