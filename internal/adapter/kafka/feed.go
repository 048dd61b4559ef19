package kafka

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goldmanhw/storefront/internal/core/domain"
	"github.com/goldmanhw/storefront/internal/core/port"
	"github.com/goldmanhw/storefront/pkg/schema"
	"github.com/twmb/franz-go/pkg/kgo"
)

var _ port.RemoteFeed = (*CollectionFeed)(nil)

const (
	defaultIdlePoll = time.Second
	slowDownTimeout = time.Second
)

type FeedOpt func(*feedOpts) error

type feedOpts struct {
	cl         ConsumerClient
	decoder    Decoder
	collection domain.Collection
	observer   FeedObserver
	idlePoll   time.Duration
}

func (o *feedOpts) apply(opts ...FeedOpt) error {
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return err
		}
	}
	return nil
}

// FeedClientOpt consumes the collection topic from its first offset.
// tlsConfig is optional.
func FeedClientOpt(
	seedBrokers []string, topic string, tlsConfig *tls.Config,
) FeedOpt {
	return func(o *feedOpts) error {
		cl, err := newConsumerClient(seedBrokers, topic, tlsConfig)
		if err != nil {
			return err
		}
		o.cl = cl
		return nil
	}
}

func FeedConsumerClientOpt(cl ConsumerClient) FeedOpt {
	return func(o *feedOpts) error {
		if cl == nil {
			return errors.New("consumer client is nil")
		}
		o.cl = cl
		return nil
	}
}

func FeedDecoderOpt(decoder Decoder) FeedOpt {
	return func(o *feedOpts) error {
		if decoder == nil {
			return errors.New("decoder is nil")
		}
		o.decoder = decoder
		return nil
	}
}

func FeedCollectionOpt(c domain.Collection) FeedOpt {
	return func(o *feedOpts) error {
		if !c.Valid() {
			return fmt.Errorf("%w: %q", domain.ErrInvalidCollection, c)
		}
		o.collection = c
		return nil
	}
}

func FeedObserverOpt(observer FeedObserver) FeedOpt {
	return func(o *feedOpts) error {
		if observer == nil {
			return errors.New("observer is nil")
		}
		o.observer = observer
		return nil
	}
}

// FeedIdlePollOpt sets how long a poll may wait for records before
// the feed considers itself caught up.
func FeedIdlePollOpt(d time.Duration) FeedOpt {
	return func(o *feedOpts) error {
		if d <= 0 {
			return errors.New("idle poll must be positive")
		}
		o.idlePoll = d
		return nil
	}
}

// A CollectionFeed mirrors one compacted collection topic into memory
// and pushes full snapshots to its subscribers.
//
// Records are keyed by entry id; an empty value deletes the entry.
type CollectionFeed struct {
	opPrefix      string
	collection    domain.Collection
	cl            ConsumerClient
	decoder       Decoder
	observer      FeedObserver
	idlePoll      time.Duration
	slowDownTimer *time.Timer

	mu      sync.Mutex
	table   map[string]domain.Entry
	version uint64
	ready   bool
	failed  bool
	lastErr error
	nextID  uint64
	subs    map[uint64]*feedSubscriber
}

func NewCollectionFeed(opts ...FeedOpt) (*CollectionFeed, error) {
	const op = "NewCollectionFeed"

	options := feedOpts{
		observer: nopObserver{},
		idlePoll: defaultIdlePoll,
	}
	if err := options.apply(opts...); err != nil {
		return nil, opErr(err, op)
	}
	if options.cl == nil || options.decoder == nil || options.collection == "" {
		return nil, opErr(ErrTooFewOpts, op)
	}

	slowDownTimer := time.NewTimer(slowDownTimeout)
	slowDownTimer.Stop()

	return &CollectionFeed{
		opPrefix:      "CollectionFeed",
		collection:    options.collection,
		cl:            options.cl,
		decoder:       options.decoder,
		observer:      options.observer,
		idlePoll:      options.idlePoll,
		slowDownTimer: slowDownTimer,
		table:         make(map[string]domain.Entry),
		subs:          make(map[uint64]*feedSubscriber),
	}, nil
}

// SubscribeToCollection registers a subscriber. When the feed has
// already caught up, the current snapshot is delivered before return.
func (f *CollectionFeed) SubscribeToCollection(
	q domain.FeedQuery, onSnapshot port.SnapshotFunc, onError port.ErrorFunc,
) port.Subscription {
	const op = "SubscribeToCollection"

	s := &feedSubscriber{
		query:      q,
		onSnapshot: onSnapshot,
		onError:    onError,
	}

	if err := validateQuery(q, f.collection); err != nil {
		s.closed.Store(true)
		onError(opErr(err, f.opPrefix, op))
		return s
	}

	f.mu.Lock()
	f.nextID++
	id := f.nextID
	s.release = func() { f.unsubscribe(id) }
	f.subs[id] = s
	ready, version := f.ready, f.version
	failed, lastErr := f.failed, f.lastErr
	var all []domain.Entry
	if ready {
		all = f.values()
	}
	f.mu.Unlock()

	// A subscriber joining during an outage gets the stale snapshot
	// and the outage.
	if ready {
		s.deliver(version, selectEntries(all, q))
	}
	if failed {
		s.fail(lastErr)
	}
	return s
}

func (f *CollectionFeed) unsubscribe(id uint64) {
	f.mu.Lock()
	delete(f.subs, id)
	f.mu.Unlock()
}

// Run consumes the topic until ctx is done.
func (f *CollectionFeed) Run(ctx context.Context) {
	const op = "Run"
	log := slog.With("op", makeOp(f.opPrefix, op), "collection", f.collection)

	log.Info("running")

	for {
		select {
		case <-ctx.Done():
			return
		default:
			err := f.consume(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				log.Error("failed to consume", "err", err)
				f.fail(err)
				f.slowDown(ctx)
			}
		}
	}
}

func (f *CollectionFeed) Close() {
	const op = "Close"
	log := slog.With("op", makeOp(f.opPrefix, op), "collection", f.collection)

	f.slowDownTimer.Stop()

	log.Info("closing feed...")
	f.cl.Close()
	log.Info("feed is closed")
}

func (f *CollectionFeed) consume(ctx context.Context) error {
	const op = "consume"

	pollCtx, cancel := context.WithTimeout(ctx, f.idlePoll)
	defer cancel()

	fetches := f.cl.PollFetches(pollCtx)
	if err := fetches.Err0(); err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			f.caughtUp()
			return nil
		}
		return opErr(err, f.opPrefix, op)
	}

	if err := f.handleFetchesErrs(fetches); err != nil {
		return opErr(err, f.opPrefix, op)
	}

	if fetches.Empty() {
		f.caughtUp()
		return nil
	}

	f.apply(fetches)
	f.publish()
	return nil
}

func (f *CollectionFeed) handleFetchesErrs(fetches kgo.Fetches) error {
	var errsMessages []string
	fetches.EachError(func(t string, p int32, err error) {
		if err != nil {
			errMsg := fmt.Sprintf(
				"topic %q partition %d: %q", t, p, err,
			)
			errsMessages = append(errsMessages, errMsg)
		}
	})

	if len(errsMessages) != 0 {
		return errors.New(strings.Join(errsMessages, "; "))
	}
	return nil
}

// apply folds records into the table. Undecodable values are skipped.
func (f *CollectionFeed) apply(fetches kgo.Fetches) {
	const op = "apply"
	log := slog.With("op", makeOp(f.opPrefix, op), "collection", f.collection)

	f.mu.Lock()
	defer f.mu.Unlock()

	fetches.EachRecord(func(r *kgo.Record) {
		id := string(r.Key)
		if id == "" {
			log.Warn("skip record without key", "offset", r.Offset)
			return
		}
		if len(r.Value) == 0 {
			delete(f.table, id)
			return
		}

		var s schema.EntryV1
		if err := f.decoder.Decode(r.Value, &s); err != nil {
			log.Error(
				"failed to decode value",
				"id", id, "err", opErr(err, f.opPrefix, op),
			)
			return
		}
		e := schemaV1ToEntry(f.collection, s)
		e.ID = id
		f.table[id] = e
	})
}

// caughtUp publishes the first snapshot, and the first one after
// a failure, even when no records arrived.
func (f *CollectionFeed) caughtUp() {
	f.mu.Lock()
	pending := !f.ready || f.failed
	f.mu.Unlock()

	if pending {
		f.publish()
	}
}

func (f *CollectionFeed) publish() {
	f.mu.Lock()
	f.ready = true
	f.failed = false
	f.lastErr = nil
	f.version++
	version := f.version
	all := f.values()
	subs := slices.Collect(maps.Values(f.subs))
	f.mu.Unlock()

	f.observer.ObserveDelivery(f.collection, len(all))
	for _, s := range subs {
		s.deliver(version, selectEntries(all, s.query))
	}
}

func (f *CollectionFeed) fail(err error) {
	f.mu.Lock()
	f.failed = true
	f.lastErr = err
	subs := slices.Collect(maps.Values(f.subs))
	f.mu.Unlock()

	f.observer.ObserveFailure(f.collection)
	for _, s := range subs {
		s.fail(err)
	}
}

// values must be called with f.mu held.
func (f *CollectionFeed) values() []domain.Entry {
	return slices.Collect(maps.Values(f.table))
}

func (f *CollectionFeed) slowDown(ctx context.Context) {
	f.slowDownTimer.Reset(slowDownTimeout)
	select {
	case <-ctx.Done():
		f.slowDownTimer.Stop()
	case <-f.slowDownTimer.C:
	}
}

type feedSubscriber struct {
	query      domain.FeedQuery
	onSnapshot port.SnapshotFunc
	onError    port.ErrorFunc
	release    func()

	closed atomic.Bool

	// mu orders deliveries; version drops snapshots older than
	// the last one delivered.
	mu      sync.Mutex
	version uint64
}

func (s *feedSubscriber) deliver(version uint64, es []domain.Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed.Load() || version <= s.version {
		return
	}
	s.version = version
	s.onSnapshot(es)
}

func (s *feedSubscriber) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed.Load() {
		return
	}
	s.onError(err)
}

func (s *feedSubscriber) Unsubscribe() {
	if s.closed.Swap(true) {
		return
	}
	if s.release != nil {
		s.release()
	}
}
