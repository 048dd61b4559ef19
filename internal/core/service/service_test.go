package service

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/goldmanhw/storefront/internal/core/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 5, 4, 10, 30, 0, 0, time.UTC)

type serviceMocks struct {
	producer   *producerMock
	storage    *storageMock
	images     *imagesMock
	compressor *compressorMock
}

func newTestService(t *testing.T, maxImageSize int64) (*Service, serviceMocks) {
	t.Helper()
	m := serviceMocks{
		producer:   new(producerMock),
		storage:    new(storageMock),
		images:     new(imagesMock),
		compressor: new(compressorMock),
	}
	s := New(m.producer, m.storage, m.images, m.compressor, maxImageSize)
	s.now = func() time.Time { return testNow }
	s.newID = func() string { return "0b7e5c1a-id" }
	t.Cleanup(func() {
		m.producer.AssertExpectations(t)
		m.storage.AssertExpectations(t)
		m.images.AssertExpectations(t)
		m.compressor.AssertExpectations(t)
	})
	return s, m
}

func ptr[T any](v T) *T { return &v }

func TestCreateEntry(t *testing.T) {
	ctx := context.Background()

	t.Run("Offer", func(t *testing.T) {
		s, m := newTestService(t, 0)
		fields := domain.EntryFields{
			Name:          "Summer sale drill",
			Price:         decimal.RequireFromString("80"),
			OriginalPrice: decimal.NewNullDecimal(decimal.RequireFromString("100")),
			Category:      "Tools",
			Stock:         ptr[int64](3),
		}
		m.producer.On("ProduceEntry", ctx, mock.MatchedBy(func(e domain.Entry) bool {
			return e.ID == "0b7e5c1a-id" &&
				e.Collection == domain.Offers &&
				e.Active &&
				e.CreatedAt.Equal(testNow) &&
				e.Price.Valid && e.Price.Decimal.Equal(fields.Price) &&
				e.OriginalPrice == fields.OriginalPrice
		})).Return(nil).Once()

		id, err := s.CreateEntry(ctx, domain.Offers, fields)
		require.NoError(t, err)
		assert.Equal(t, "0b7e5c1a-id", id)
	})

	t.Run("Validation", func(t *testing.T) {
		s, _ := newTestService(t, 0)
		fields := domain.EntryFields{
			Price:         decimal.RequireFromString("-1"),
			OriginalPrice: decimal.NewNullDecimal(decimal.RequireFromString("5")),
			Stock:         ptr[int64](-2),
			Rating:        ptr(5.5),
		}

		_, err := s.CreateEntry(ctx, domain.Products, fields)
		require.ErrorIs(t, err, domain.ErrInvalidEntry)
		for _, msg := range []string{
			"name is required",
			"price must not be negative",
			"original price applies to offers only",
			"stock must not be negative",
			"rating must be within [0, 5]",
		} {
			assert.ErrorContains(t, err, msg)
		}
	})

	t.Run("OriginalPriceBelowPrice", func(t *testing.T) {
		s, _ := newTestService(t, 0)
		_, err := s.CreateEntry(ctx, domain.Offers, domain.EntryFields{
			Name:          "Lamp",
			Price:         decimal.RequireFromString("20"),
			OriginalPrice: decimal.NewNullDecimal(decimal.RequireFromString("10")),
		})
		assert.ErrorIs(t, err, domain.ErrInvalidEntry)
	})

	t.Run("ReservedCategory", func(t *testing.T) {
		s, _ := newTestService(t, 0)
		_, err := s.CreateEntry(ctx, domain.Products, domain.EntryFields{
			Name:     "Lamp",
			Category: "all",
		})
		require.ErrorIs(t, err, domain.ErrInvalidEntry)
		assert.ErrorContains(t, err, `category "all" is reserved`)
	})

	t.Run("InvalidCollection", func(t *testing.T) {
		s, _ := newTestService(t, 0)
		_, err := s.CreateEntry(ctx, "tools", domain.EntryFields{Name: "x"})
		assert.ErrorIs(t, err, domain.ErrInvalidCollection)
	})

	t.Run("ProducerFails", func(t *testing.T) {
		s, m := newTestService(t, 0)
		produceErr := errors.New("broker down")
		m.producer.On("ProduceEntry", ctx, mock.Anything).Return(produceErr).Once()

		_, err := s.CreateEntry(ctx, domain.Products, domain.EntryFields{Name: "x"})
		assert.ErrorIs(t, err, produceErr)
	})
}

func TestDeleteEntry(t *testing.T) {
	ctx := context.Background()

	t.Run("WithImage", func(t *testing.T) {
		s, m := newTestService(t, 0)
		m.storage.On("ReadEntry", ctx, domain.Products, "p1").
			Return(domain.Entry{ID: "p1", ImageURL: "https://img/products/a.jpg"}, nil).Once()
		m.producer.On("ProduceDeletion", ctx, domain.Products, "p1").Return(nil).Once()
		m.images.On("DeleteImage", ctx, "https://img/products/a.jpg").
			Return(errors.New("access denied")).Once()

		assert.NoError(t, s.DeleteEntry(ctx, domain.Products, "p1"))
	})

	t.Run("NotMirrored", func(t *testing.T) {
		s, m := newTestService(t, 0)
		m.storage.On("ReadEntry", ctx, domain.Offers, "o1").
			Return(domain.Entry{}, domain.ErrNotFound).Once()
		m.producer.On("ProduceDeletion", ctx, domain.Offers, "o1").Return(nil).Once()

		assert.NoError(t, s.DeleteEntry(ctx, domain.Offers, "o1"))
		m.images.AssertNotCalled(t, "DeleteImage", mock.Anything, mock.Anything)
	})

	t.Run("ProducerFails", func(t *testing.T) {
		s, m := newTestService(t, 0)
		m.storage.On("ReadEntry", ctx, domain.Products, "p1").
			Return(domain.Entry{ID: "p1", ImageURL: "u"}, nil).Once()
		produceErr := errors.New("broker down")
		m.producer.On("ProduceDeletion", ctx, domain.Products, "p1").
			Return(produceErr).Once()

		assert.ErrorIs(t, s.DeleteEntry(ctx, domain.Products, "p1"), produceErr)
		m.images.AssertNotCalled(t, "DeleteImage", mock.Anything, mock.Anything)
	})

	t.Run("EmptyID", func(t *testing.T) {
		s, _ := newTestService(t, 0)
		assert.ErrorIs(t, s.DeleteEntry(ctx, domain.Products, ""), domain.ErrInvalidEntry)
	})
}

func TestListEntries(t *testing.T) {
	ctx := context.Background()
	s, m := newTestService(t, 0)
	es := []domain.Entry{{ID: "o1"}, {ID: "o2"}}
	m.storage.On("ReadEntries", ctx, domain.Offers).Return(es, nil).Once()

	got, err := s.ListEntries(ctx, domain.Offers)
	require.NoError(t, err)
	assert.Equal(t, es, got)

	_, err = s.ListEntries(ctx, "tools")
	assert.ErrorIs(t, err, domain.ErrInvalidCollection)
}

func TestUploadImage(t *testing.T) {
	ctx := context.Background()
	raw := []byte("raw image bytes")

	upload := func(contentType, folder string, body []byte) domain.ImageUpload {
		return domain.ImageUpload{
			Folder:      folder,
			Filename:    "photo",
			ContentType: contentType,
			Size:        int64(len(body)),
			Body:        bytes.NewReader(body),
		}
	}

	t.Run("Stored", func(t *testing.T) {
		s, m := newTestService(t, 1024)
		m.compressor.On("Compress", raw).Return([]byte("jpeg"), "image/jpeg", nil).Once()
		m.images.On("PutImage", ctx, "offers/0b7e5c1a-id.jpg", "image/jpeg", []byte("jpeg")).
			Return("https://img/offers/0b7e5c1a-id.jpg", nil).Once()

		url, err := s.UploadImage(ctx, upload("image/webp", "offers", raw))
		require.NoError(t, err)
		assert.Equal(t, "https://img/offers/0b7e5c1a-id.jpg", url)
	})

	t.Run("UnsupportedType", func(t *testing.T) {
		s, _ := newTestService(t, 1024)
		_, err := s.UploadImage(ctx, upload("image/svg+xml", "offers", raw))
		assert.ErrorIs(t, err, domain.ErrInvalidImage)
	})

	t.Run("BadFolder", func(t *testing.T) {
		s, _ := newTestService(t, 1024)
		_, err := s.UploadImage(ctx, upload("image/png", "../etc", raw))
		assert.ErrorIs(t, err, domain.ErrInvalidImage)
	})

	t.Run("DeclaredTooLarge", func(t *testing.T) {
		s, _ := newTestService(t, 4)
		_, err := s.UploadImage(ctx, upload("image/png", "products", raw))
		assert.ErrorIs(t, err, domain.ErrImageTooLarge)
	})

	t.Run("BodyTooLarge", func(t *testing.T) {
		s, _ := newTestService(t, 4)
		img := upload("image/png", "products", raw)
		img.Size = 1
		_, err := s.UploadImage(ctx, img)
		assert.ErrorIs(t, err, domain.ErrImageTooLarge)
	})

	t.Run("Undecodable", func(t *testing.T) {
		s, m := newTestService(t, 1024)
		m.compressor.On("Compress", raw).
			Return(nil, "", errors.New("unknown format")).Once()
		_, err := s.UploadImage(ctx, upload("image/png", "products", raw))
		assert.ErrorIs(t, err, domain.ErrInvalidImage)
	})

	t.Run("DefaultLimit", func(t *testing.T) {
		s, _ := newTestService(t, 0)
		big := strings.Repeat("x", DefaultMaxImageSize+1)
		_, err := s.UploadImage(ctx, upload("image/png", "products", []byte(big)))
		assert.ErrorIs(t, err, domain.ErrImageTooLarge)
	})
}
