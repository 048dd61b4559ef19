package port

import (
	"context"
	"io"

	"github.com/goldmanhw/storefront/internal/core/domain"
)

type closer interface {
	Close()
}

type (
	// A SnapshotFunc receives a full snapshot of a collection,
	// ordered as the query requested.
	SnapshotFunc func([]domain.Entry)

	// An ErrorFunc receives feed failures. The feed keeps trying after
	// reporting one.
	ErrorFunc func(error)
)

// A Subscription is a standing feed subscription.
//
// Unsubscribe is idempotent. A callback already running when it is
// called may still complete, so subscribers drop late deliveries.
type Subscription interface {
	Unsubscribe()
}

type RemoteFeed interface {
	SubscribeToCollection(
		q domain.FeedQuery, onSnapshot SnapshotFunc, onError ErrorFunc,
	) Subscription
}

type EntryStore interface {
	CreateEntry(
		ctx context.Context, c domain.Collection, f domain.EntryFields,
	) (id string, err error)
	DeleteEntry(ctx context.Context, c domain.Collection, id string) error
}

type EntryLister interface {
	ListEntries(ctx context.Context, c domain.Collection) ([]domain.Entry, error)
}

type ImageUploader interface {
	UploadImage(ctx context.Context, img domain.ImageUpload) (url string, err error)
}

type Authenticator interface {
	Login(ctx context.Context, email, password string) (token string, err error)
	Verify(token string) error
}

type Backuper interface {
	Backup(ctx context.Context, w io.Writer) (domain.BackupSummary, error)
}

// EntryProducer writes entry mutations to the remote feed's log.
type EntryProducer interface {
	ProduceEntry(ctx context.Context, e domain.Entry) error
	ProduceDeletion(ctx context.Context, c domain.Collection, id string) error
	closer
}

type EntriesStorage interface {
	ReplaceCollection(
		ctx context.Context, c domain.Collection, es []domain.Entry,
	) error
	ReadEntries(ctx context.Context, c domain.Collection) ([]domain.Entry, error)
	ReadEntry(
		ctx context.Context, c domain.Collection, id string,
	) (domain.Entry, error)
}

type ImageStorage interface {
	PutImage(
		ctx context.Context, key, contentType string, data []byte,
	) (url string, err error)
	DeleteImage(ctx context.Context, url string) error
}

type ImageCompressor interface {
	Compress(r io.Reader) (data []byte, contentType string, err error)
}
