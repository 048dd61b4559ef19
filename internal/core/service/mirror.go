package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/goldmanhw/storefront/internal/core/domain"
	"github.com/goldmanhw/storefront/internal/core/port"
	"github.com/goldmanhw/storefront/pkg/retry"
)

const (
	mirrorAttempts = 3
	mirrorDelay    = 500 * time.Millisecond
	mirrorCooldown = 5 * time.Second
)

// A Mirror copies every collection snapshot into the entries storage.
//
// Offers are mirrored without the active filter, so the admin listing
// sees inactive ones too.
type Mirror struct {
	feeds   map[domain.Collection]port.RemoteFeed
	storage port.EntriesStorage

	// retry covers one write; after it gives up the snapshot is put
	// back and tried again once cooldown passes.
	retry    retry.RetryConfig
	cooldown time.Duration
}

func NewMirror(
	feeds map[domain.Collection]port.RemoteFeed, storage port.EntriesStorage,
) *Mirror {
	return &Mirror{
		feeds:   feeds,
		storage: storage,
		retry: retry.RetryConfig{
			MaxAttempts: mirrorAttempts,
			Backoff:     retry.ExponentialBackoff(mirrorDelay),
		},
		cooldown: mirrorCooldown,
	}
}

// Run blocks until ctx is done.
func (m *Mirror) Run(ctx context.Context) {
	const op = "Mirror.Run"
	log := slog.With("op", op)

	var wg sync.WaitGroup
	for c, feed := range m.feeds {
		slot := newLatestSnapshot()
		sub := feed.SubscribeToCollection(
			domain.FeedQuery{
				Collection: c,
				OrderBy:    domain.FieldCreatedAt,
				Direction:  domain.Descending,
			},
			slot.put,
			func(err error) {
				log.Warn("feed failed", "collection", c, "err", err)
			},
		)

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer sub.Unsubscribe()
			m.write(ctx, c, slot)
		}()
	}

	log.Info("running")
	wg.Wait()
	log.Info("stopped")
}

// write stores the newest snapshot. Snapshots arriving during a write
// collapse into the latest one.
func (m *Mirror) write(
	ctx context.Context, c domain.Collection, slot *latestSnapshot,
) {
	const op = "Mirror.write"
	log := slog.With("op", op, "collection", c)

	for {
		select {
		case <-ctx.Done():
			return
		case <-slot.ready:
			es, ok := slot.take()
			if !ok {
				continue
			}
			err := retry.Do(ctx, m.retry, func() error {
				return m.storage.ReplaceCollection(ctx, c, es)
			})
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				log.Error("failed to mirror collection", "err", err)
				slot.restore(es)
				if !m.wait(ctx) {
					return
				}
				slot.signal()
				continue
			}
			log.Debug("collection mirrored", "entries", len(es))
		}
	}
}

func (m *Mirror) wait(ctx context.Context) bool {
	timer := time.NewTimer(m.cooldown)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

type latestSnapshot struct {
	mu    sync.Mutex
	es    []domain.Entry
	fresh bool
	ready chan struct{}
}

func newLatestSnapshot() *latestSnapshot {
	return &latestSnapshot{ready: make(chan struct{}, 1)}
}

func (l *latestSnapshot) put(es []domain.Entry) {
	l.mu.Lock()
	l.es = es
	l.fresh = true
	l.mu.Unlock()

	l.signal()
}

// restore puts back a snapshot that failed to be written, unless
// a newer one arrived meanwhile.
func (l *latestSnapshot) restore(es []domain.Entry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.fresh {
		return
	}
	l.es = es
	l.fresh = true
}

func (l *latestSnapshot) signal() {
	select {
	case l.ready <- struct{}{}:
	default:
	}
}

func (l *latestSnapshot) take() ([]domain.Entry, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.fresh {
		return nil, false
	}
	es := l.es
	l.es, l.fresh = nil, false
	return es, true
}
