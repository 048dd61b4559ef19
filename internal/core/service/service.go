package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"regexp"
	"time"

	"github.com/goldmanhw/storefront/internal/core/domain"
	"github.com/goldmanhw/storefront/internal/core/port"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var _ port.EntryStore = (*Service)(nil)
var _ port.EntryLister = (*Service)(nil)
var _ port.ImageUploader = (*Service)(nil)

const DefaultMaxImageSize = 5 << 20

var (
	maxRating     = 5.0
	folderPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*$`)

	imageTypes = map[string]struct{}{
		"image/jpeg": {},
		"image/jpg":  {},
		"image/png":  {},
		"image/gif":  {},
		"image/webp": {},
	}
)

// Service serves the admin side of the storefront: entry mutations go
// to the feed log, listings come from the durable mirror.
type Service struct {
	producer     port.EntryProducer
	storage      port.EntriesStorage
	images       port.ImageStorage
	compressor   port.ImageCompressor
	maxImageSize int64

	now   func() time.Time
	newID func() string
}

// New returns the admin service. maxImageSize <= 0 means
// [DefaultMaxImageSize].
func New(
	producer port.EntryProducer,
	storage port.EntriesStorage,
	images port.ImageStorage,
	compressor port.ImageCompressor,
	maxImageSize int64,
) *Service {
	if maxImageSize <= 0 {
		maxImageSize = DefaultMaxImageSize
	}
	return &Service{
		producer:     producer,
		storage:      storage,
		images:       images,
		compressor:   compressor,
		maxImageSize: maxImageSize,
		now:          time.Now,
		newID:        uuid.NewString,
	}
}

func (s *Service) CreateEntry(
	ctx context.Context, c domain.Collection, f domain.EntryFields,
) (string, error) {
	const op = "Service.CreateEntry"

	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if !c.Valid() {
		return "", fmt.Errorf("%s: %w: %q", op, domain.ErrInvalidCollection, c)
	}
	if err := validateFields(c, f); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	e := domain.Entry{
		ID:            s.newID(),
		Collection:    c,
		Name:          f.Name,
		Description:   f.Description,
		Price:         decimal.NewNullDecimal(f.Price),
		OriginalPrice: f.OriginalPrice,
		Category:      f.Category,
		Stock:         f.Stock,
		Rating:        f.Rating,
		ImageURL:      f.ImageURL,
		Active:        true,
		CreatedAt:     s.now().UTC(),
	}

	if err := s.producer.ProduceEntry(ctx, e); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	slog.Info("entry created", "op", op, "collection", c, "id", e.ID)
	return e.ID, nil
}

func validateFields(c domain.Collection, f domain.EntryFields) error {
	var errs []error
	invalid := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(
			"%w: %s", domain.ErrInvalidEntry, fmt.Sprintf(format, args...),
		))
	}

	if f.Name == "" {
		invalid("name is required")
	}
	if f.Category == domain.AllCategoriesLabel {
		invalid("category %q is reserved", domain.AllCategoriesLabel)
	}
	if f.Price.IsNegative() {
		invalid("price must not be negative")
	}
	if f.OriginalPrice.Valid {
		switch {
		case c != domain.Offers:
			invalid("original price applies to offers only")
		case f.OriginalPrice.Decimal.IsNegative():
			invalid("original price must not be negative")
		case f.OriginalPrice.Decimal.LessThan(f.Price):
			invalid("original price must not be less than price")
		}
	}
	if f.Stock != nil && *f.Stock < 0 {
		invalid("stock must not be negative")
	}
	if f.Rating != nil && (*f.Rating < 0 || *f.Rating > maxRating) {
		invalid("rating must be within [0, %v]", maxRating)
	}

	return errors.Join(errs...)
}

// DeleteEntry tombstones the entry, then drops its image. An image
// that cannot be removed is only logged.
func (s *Service) DeleteEntry(
	ctx context.Context, c domain.Collection, id string,
) error {
	const op = "Service.DeleteEntry"
	log := slog.With("op", op, "collection", c, "id", id)

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if !c.Valid() {
		return fmt.Errorf("%s: %w: %q", op, domain.ErrInvalidCollection, c)
	}
	if id == "" {
		return fmt.Errorf("%s: %w: id is required", op, domain.ErrInvalidEntry)
	}

	var imageURL string
	e, err := s.storage.ReadEntry(ctx, c, id)
	switch {
	case err == nil:
		imageURL = e.ImageURL
	case errors.Is(err, domain.ErrNotFound):
		log.Warn("entry is not mirrored yet")
	default:
		log.Error("failed to read entry", "err", err)
	}

	if err := s.producer.ProduceDeletion(ctx, c, id); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	log.Info("entry deleted")

	if imageURL == "" {
		return nil
	}
	if err := s.images.DeleteImage(ctx, imageURL); err != nil {
		log.Error("failed to delete image", "url", imageURL, "err", err)
	}
	return nil
}

func (s *Service) ListEntries(
	ctx context.Context, c domain.Collection,
) ([]domain.Entry, error) {
	const op = "Service.ListEntries"

	if !c.Valid() {
		return nil, fmt.Errorf("%s: %w: %q", op, domain.ErrInvalidCollection, c)
	}

	es, err := s.storage.ReadEntries(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return es, nil
}

// UploadImage compresses the image and stores it under
// "<folder>/<uuid>.jpg".
func (s *Service) UploadImage(
	ctx context.Context, img domain.ImageUpload,
) (string, error) {
	const op = "Service.UploadImage"

	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if _, ok := imageTypes[img.ContentType]; !ok {
		return "", fmt.Errorf(
			"%s: %w: unsupported content type %q",
			op, domain.ErrInvalidImage, img.ContentType,
		)
	}
	if !folderPattern.MatchString(img.Folder) {
		return "", fmt.Errorf(
			"%s: %w: invalid folder %q", op, domain.ErrInvalidImage, img.Folder,
		)
	}
	if img.Size > s.maxImageSize {
		return "", fmt.Errorf("%s: %w", op, domain.ErrImageTooLarge)
	}

	// Size is client supplied, the body is the source of truth.
	raw, err := io.ReadAll(io.LimitReader(img.Body, s.maxImageSize+1))
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if int64(len(raw)) > s.maxImageSize {
		return "", fmt.Errorf("%s: %w", op, domain.ErrImageTooLarge)
	}

	data, contentType, err := s.compressor.Compress(bytes.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("%s: %w: %w", op, domain.ErrInvalidImage, err)
	}

	key := path.Join(img.Folder, s.newID()+".jpg")
	url, err := s.images.PutImage(ctx, key, contentType, data)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	slog.Info(
		"image uploaded", "op", op,
		"key", key, "original", len(raw), "stored", len(data),
	)
	return url, nil
}
