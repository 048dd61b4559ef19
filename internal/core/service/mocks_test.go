package service

import (
	"context"
	"io"
	"sync"

	"github.com/goldmanhw/storefront/internal/core/domain"
	"github.com/goldmanhw/storefront/internal/core/port"
	"github.com/stretchr/testify/mock"
)

type producerMock struct {
	mock.Mock
}

func (m *producerMock) ProduceEntry(ctx context.Context, e domain.Entry) error {
	args := m.Called(ctx, e)
	return args.Error(0)
}

func (m *producerMock) ProduceDeletion(
	ctx context.Context, c domain.Collection, id string,
) error {
	args := m.Called(ctx, c, id)
	return args.Error(0)
}

func (m *producerMock) Close() {
	m.Called()
}

type storageMock struct {
	mock.Mock
}

func (m *storageMock) ReplaceCollection(
	ctx context.Context, c domain.Collection, es []domain.Entry,
) error {
	args := m.Called(ctx, c, es)
	return args.Error(0)
}

func (m *storageMock) ReadEntries(
	ctx context.Context, c domain.Collection,
) ([]domain.Entry, error) {
	args := m.Called(ctx, c)
	es, _ := args.Get(0).([]domain.Entry)
	return es, args.Error(1)
}

func (m *storageMock) ReadEntry(
	ctx context.Context, c domain.Collection, id string,
) (domain.Entry, error) {
	args := m.Called(ctx, c, id)
	return args.Get(0).(domain.Entry), args.Error(1)
}

type imagesMock struct {
	mock.Mock
}

func (m *imagesMock) PutImage(
	ctx context.Context, key, contentType string, data []byte,
) (string, error) {
	args := m.Called(ctx, key, contentType, data)
	return args.String(0), args.Error(1)
}

func (m *imagesMock) DeleteImage(ctx context.Context, url string) error {
	args := m.Called(ctx, url)
	return args.Error(0)
}

type compressorMock struct {
	mock.Mock
}

func (m *compressorMock) Compress(r io.Reader) ([]byte, string, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, "", err
	}
	args := m.Called(b)
	data, _ := args.Get(0).([]byte)
	return data, args.String(1), args.Error(2)
}

// fakeFeed records subscriptions and lets tests push snapshots.
type fakeFeed struct {
	mu           sync.Mutex
	queries      []domain.FeedQuery
	onSnapshot   port.SnapshotFunc
	onError      port.ErrorFunc
	unsubscribed bool
}

func (f *fakeFeed) SubscribeToCollection(
	q domain.FeedQuery, onSnapshot port.SnapshotFunc, onError port.ErrorFunc,
) port.Subscription {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, q)
	f.onSnapshot, f.onError = onSnapshot, onError
	return f
}

func (f *fakeFeed) Unsubscribe() {
	f.mu.Lock()
	f.unsubscribed = true
	f.mu.Unlock()
}

func (f *fakeFeed) push(es []domain.Entry) {
	f.mu.Lock()
	fn := f.onSnapshot
	f.mu.Unlock()
	fn(es)
}

func (f *fakeFeed) subscribed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.onSnapshot != nil
}

func (f *fakeFeed) isUnsubscribed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.unsubscribed
}
