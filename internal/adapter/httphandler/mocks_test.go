package httphandler

import (
	"context"
	"io"
	"sync"

	"github.com/goldmanhw/storefront/internal/core/domain"
	"github.com/goldmanhw/storefront/internal/core/port"
	"github.com/stretchr/testify/mock"
)

type storeMock struct {
	mock.Mock
}

func (m *storeMock) CreateEntry(
	ctx context.Context, c domain.Collection, f domain.EntryFields,
) (string, error) {
	args := m.Called(c, f)
	return args.String(0), args.Error(1)
}

func (m *storeMock) DeleteEntry(
	ctx context.Context, c domain.Collection, id string,
) error {
	args := m.Called(c, id)
	return args.Error(0)
}

func (m *storeMock) ListEntries(
	ctx context.Context, c domain.Collection,
) ([]domain.Entry, error) {
	args := m.Called(c)
	es, _ := args.Get(0).([]domain.Entry)
	return es, args.Error(1)
}

type uploaderMock struct {
	mock.Mock
}

func (m *uploaderMock) UploadImage(
	ctx context.Context, img domain.ImageUpload,
) (string, error) {
	body, _ := io.ReadAll(img.Body)
	args := m.Called(img.Folder, img.ContentType, body)
	return args.String(0), args.Error(1)
}

type authMock struct {
	mock.Mock
}

func (m *authMock) Login(
	ctx context.Context, email, password string,
) (string, error) {
	args := m.Called(email, password)
	return args.String(0), args.Error(1)
}

func (m *authMock) Verify(token string) error {
	args := m.Called(token)
	return args.Error(0)
}

// fakeFeed serves one collection; push fans out to every live
// subscriber.
type fakeFeed struct {
	mu       sync.Mutex
	snapshot []domain.Entry
	subs     map[*fakeSub]struct{}
}

type fakeSub struct {
	feed       *fakeFeed
	onSnapshot port.SnapshotFunc
	onError    port.ErrorFunc
}

func (s *fakeSub) Unsubscribe() {
	s.feed.mu.Lock()
	delete(s.feed.subs, s)
	s.feed.mu.Unlock()
}

func newFakeFeed(snapshot []domain.Entry) *fakeFeed {
	return &fakeFeed{snapshot: snapshot, subs: make(map[*fakeSub]struct{})}
}

func (f *fakeFeed) SubscribeToCollection(
	q domain.FeedQuery, onSnapshot port.SnapshotFunc, onError port.ErrorFunc,
) port.Subscription {
	s := &fakeSub{feed: f, onSnapshot: onSnapshot, onError: onError}
	f.mu.Lock()
	f.subs[s] = struct{}{}
	snapshot := f.snapshot
	f.mu.Unlock()

	if snapshot != nil {
		onSnapshot(snapshot)
	}
	return s
}

func (f *fakeFeed) push(es []domain.Entry) {
	f.mu.Lock()
	f.snapshot = es
	subs := make([]*fakeSub, 0, len(f.subs))
	for s := range f.subs {
		subs = append(subs, s)
	}
	f.mu.Unlock()

	for _, s := range subs {
		s.onSnapshot(es)
	}
}

func (f *fakeFeed) fail(err error) {
	f.mu.Lock()
	subs := make([]*fakeSub, 0, len(f.subs))
	for s := range f.subs {
		subs = append(subs, s)
	}
	f.mu.Unlock()

	for _, s := range subs {
		s.onError(err)
	}
}

func (f *fakeFeed) subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}
