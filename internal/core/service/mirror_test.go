package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/goldmanhw/storefront/internal/core/domain"
	"github.com/goldmanhw/storefront/internal/core/port"
	"github.com/goldmanhw/storefront/pkg/retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestMirror(
	feeds map[domain.Collection]port.RemoteFeed, storage port.EntriesStorage,
) *Mirror {
	m := NewMirror(feeds, storage)
	m.retry = retry.RetryConfig{
		MaxAttempts: 2,
		Backoff:     retry.LinearBackoff(time.Millisecond),
	}
	m.cooldown = 10 * time.Millisecond
	return m
}

func runMirror(t *testing.T, m *Mirror) (cancel func(), wait func()) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		m.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		wg.Wait()
	})
	return cancel, wg.Wait
}

func TestMirror(t *testing.T) {
	products, offers := new(fakeFeed), new(fakeFeed)
	storage := new(storageMock)

	m := newTestMirror(map[domain.Collection]port.RemoteFeed{
		domain.Products: products,
		domain.Offers:   offers,
	}, storage)

	cancel, wait := runMirror(t, m)

	require.Eventually(t, func() bool {
		return products.subscribed() && offers.subscribed()
	}, time.Second, 5*time.Millisecond)

	assert.Nil(t, offers.queries[0].Filter)
	assert.Equal(t, domain.Offers, offers.queries[0].Collection)

	written := make(chan []domain.Entry, 4)
	storage.On("ReplaceCollection", mock.Anything, domain.Products, mock.Anything).
		Run(func(args mock.Arguments) {
			written <- args.Get(2).([]domain.Entry)
		}).
		Return(nil)
	storage.On("ReplaceCollection", mock.Anything, domain.Offers, mock.Anything).
		Return(errors.New("db down"))

	snapshot := []domain.Entry{{ID: "p1"}, {ID: "p2"}}
	products.push(snapshot)
	offers.push([]domain.Entry{{ID: "o1"}})

	select {
	case got := <-written:
		assert.Equal(t, snapshot, got)
	case <-time.After(time.Second):
		t.Fatal("snapshot was not mirrored")
	}

	cancel()
	wait()
	assert.True(t, products.isUnsubscribed())
	assert.True(t, offers.isUnsubscribed())
}

func TestMirrorRewritesAfterFailedWrite(t *testing.T) {
	products := new(fakeFeed)
	storage := new(storageMock)

	m := newTestMirror(map[domain.Collection]port.RemoteFeed{
		domain.Products: products,
	}, storage)
	m.retry.MaxAttempts = 1

	written := make(chan []domain.Entry, 1)
	storage.On("ReplaceCollection", mock.Anything, domain.Products, mock.Anything).
		Return(errors.New("db down")).Once()
	storage.On("ReplaceCollection", mock.Anything, domain.Products, mock.Anything).
		Run(func(args mock.Arguments) {
			written <- args.Get(2).([]domain.Entry)
		}).
		Return(nil).Once()

	runMirror(t, m)
	require.Eventually(t, products.subscribed, time.Second, 5*time.Millisecond)

	snapshot := []domain.Entry{{ID: "p1"}}
	products.push(snapshot)

	select {
	case got := <-written:
		assert.Equal(t, snapshot, got)
	case <-time.After(3 * time.Second):
		t.Fatal("snapshot was not written after the failed attempt")
	}
	storage.AssertNumberOfCalls(t, "ReplaceCollection", 2)
}

func TestLatestSnapshotRestore(t *testing.T) {
	l := newLatestSnapshot()
	old := []domain.Entry{{ID: "old"}}
	newer := []domain.Entry{{ID: "new"}}

	l.restore(old)
	es, ok := l.take()
	require.True(t, ok)
	assert.Equal(t, old, es)

	l.put(newer)
	l.restore(old)
	es, ok = l.take()
	require.True(t, ok)
	assert.Equal(t, newer, es)
}

func TestLatestSnapshot(t *testing.T) {
	l := newLatestSnapshot()

	_, ok := l.take()
	assert.False(t, ok)

	l.put([]domain.Entry{{ID: "a"}})
	l.put([]domain.Entry{})
	<-l.ready

	es, ok := l.take()
	require.True(t, ok)
	assert.Empty(t, es)

	_, ok = l.take()
	assert.False(t, ok)
}
