package catalog

import (
	"fmt"
	"slices"
	"sync"

	"github.com/goldmanhw/storefront/internal/core/domain"
	"github.com/goldmanhw/storefront/internal/core/port"
)

type Opt func(*engineOpts)

type engineOpts struct {
	onChange func()
}

// OnChangeOpt sets fn to be called after every applied feed delivery
// and every feed error. fn runs on the feed's goroutine.
func OnChangeOpt(fn func()) Opt {
	return func(o *engineOpts) {
		o.onChange = fn
	}
}

// A View is what the display surface renders.
type View struct {
	Entries    []domain.Entry
	Count      int
	Categories []string
	State      domain.ConnectionState
	Err        error
	SearchTerm string
	Category   string
	SortMode   domain.SortMode
}

// An Engine keeps a cached snapshot of one collection in sync with
// a remote feed and derives the displayed list from it.
//
// Every Engine is one view instance; engines share no state.
type Engine struct {
	feed     port.RemoteFeed
	query    domain.FeedQuery
	onChange func()

	mu       sync.Mutex
	snapshot []domain.Entry
	state    domain.ConnectionState
	err      error
	search   string
	category string
	sortMode domain.SortMode

	// gen changes on every subscribe and release, so callbacks of a
	// released subscription are recognized and dropped.
	gen uint64
	sub *Subscription
}

func New(feed port.RemoteFeed, c domain.Collection, opts ...Opt) *Engine {
	const op = "catalog.New"

	if feed == nil {
		panic(fmt.Errorf("%s: feed is nil", op)) // develop mistake
	}
	if !c.Valid() {
		panic(fmt.Errorf("%s: %w: %q", op, domain.ErrInvalidCollection, c))
	}

	var options engineOpts
	for _, opt := range opts {
		opt(&options)
	}

	return &Engine{
		feed:     feed,
		query:    domain.CollectionQuery(c),
		onChange: options.onChange,
		state:    domain.Connecting,
		category: domain.AllCategories,
		sortMode: domain.Newest,
	}
}

// A Subscription is the handle of the engine's standing feed subscription.
type Subscription struct {
	engine  *Engine
	once    sync.Once
	feedSub port.Subscription
}

// Unsubscribe releases the subscription. It is idempotent and safe
// to call while a delivery is in flight.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		s.engine.release(s)
	})
}

// Subscribe opens the standing feed subscription. While one is open,
// Subscribe returns it unchanged.
func (e *Engine) Subscribe() *Subscription {
	e.mu.Lock()
	if e.sub != nil {
		s := e.sub
		e.mu.Unlock()
		return s
	}
	e.gen++
	gen := e.gen
	s := &Subscription{engine: e}
	e.sub = s
	e.state = domain.Connecting
	e.mu.Unlock()

	// The feed may deliver before SubscribeToCollection returns.
	feedSub := e.feed.SubscribeToCollection(
		e.query,
		func(es []domain.Entry) { e.deliver(gen, es) },
		func(err error) { e.fail(gen, err) },
	)

	e.mu.Lock()
	released := e.sub != s
	if !released {
		s.feedSub = feedSub
	}
	e.mu.Unlock()

	if released && feedSub != nil {
		feedSub.Unsubscribe()
	}
	return s
}

// Unsubscribe releases the current subscription, if any.
func (e *Engine) Unsubscribe() {
	e.mu.Lock()
	s := e.sub
	e.mu.Unlock()

	if s != nil {
		s.Unsubscribe()
	}
}

func (e *Engine) release(s *Subscription) {
	e.mu.Lock()
	if e.sub != s {
		e.mu.Unlock()
		return
	}
	e.sub = nil
	e.gen++
	e.snapshot = nil
	e.state = domain.Connecting
	e.err = nil
	feedSub := s.feedSub
	e.mu.Unlock()

	if feedSub != nil {
		feedSub.Unsubscribe()
	}
}

func (e *Engine) deliver(gen uint64, es []domain.Entry) {
	e.mu.Lock()
	if e.sub == nil || e.gen != gen {
		e.mu.Unlock()
		return
	}
	e.snapshot = slices.Clone(es)
	e.state = domain.Live
	e.err = nil
	e.mu.Unlock()

	e.notify()
}

// fail keeps the last good snapshot.
func (e *Engine) fail(gen uint64, err error) {
	e.mu.Lock()
	if e.sub == nil || e.gen != gen {
		e.mu.Unlock()
		return
	}
	e.state = domain.Failed
	e.err = fmt.Errorf("%w: %w", domain.ErrFeedSubscription, err)
	e.mu.Unlock()

	e.notify()
}

func (e *Engine) notify() {
	if e.onChange != nil {
		e.onChange()
	}
}

func (e *Engine) SetSearchTerm(term string) {
	e.mu.Lock()
	e.search = term
	e.mu.Unlock()
}

func (e *Engine) SetCategory(category string) {
	e.mu.Lock()
	e.category = category
	e.mu.Unlock()
}

func (e *Engine) SetSortMode(mode domain.SortMode) {
	e.mu.Lock()
	e.sortMode = mode
	e.mu.Unlock()
}

// State returns the connection state and, when Failed, the last feed error.
func (e *Engine) State() (domain.ConnectionState, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state, e.err
}

// Snapshot returns a copy of the last delivered snapshot.
func (e *Engine) Snapshot() []domain.Entry {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Clone(e.snapshot)
}

// View derives the displayed list from the current snapshot and filters.
func (e *Engine) View() View {
	e.mu.Lock()
	search, category, mode := e.search, e.category, e.sortMode
	e.mu.Unlock()

	return e.ViewWith(search, category, mode)
}

// ViewWith derives a View for the given filters. The engine's own
// filters are left as they are.
func (e *Engine) ViewWith(
	search, category string, mode domain.SortMode,
) View {
	e.mu.Lock()
	snapshot := e.snapshot
	v := View{
		State:      e.state,
		Err:        e.err,
		SearchTerm: search,
		Category:   category,
		SortMode:   mode,
	}
	e.mu.Unlock()

	// snapshot is replaced, never mutated, so it is read outside the lock.
	v.Entries = Derive(snapshot, search, category, mode)
	v.Count = len(v.Entries)
	v.Categories = CategoryOptions(snapshot)
	return v
}
