package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/goldmanhw/storefront/internal/core/domain"
	"github.com/goldmanhw/storefront/internal/core/port"
	"github.com/shopspring/decimal"
)

var _ port.Backuper = (*Backup)(nil)

// A Backup dumps every collection of the entries storage as one JSON
// document.
type Backup struct {
	storage port.EntriesStorage
	now     func() time.Time
}

func NewBackup(storage port.EntriesStorage) *Backup {
	return &Backup{storage: storage, now: time.Now}
}

type backupDocument struct {
	Timestamp   time.Time                `json:"timestamp"`
	Collections map[string][]backupEntry `json:"collections"`
}

type backupEntry struct {
	ID            string               `json:"id"`
	Name          string               `json:"name"`
	Description   string               `json:"description,omitempty"`
	Price         decimal.NullDecimal  `json:"price"`
	OriginalPrice *decimal.NullDecimal `json:"originalPrice,omitempty"`
	Category      string               `json:"category,omitempty"`
	Stock         *int64               `json:"stock,omitempty"`
	Rating        *float64             `json:"rating,omitempty"`
	ImageURL      string               `json:"imageUrl,omitempty"`
	Active        bool                 `json:"active"`
	CreatedAt     time.Time            `json:"createdAt"`
}

func toBackupEntry(e domain.Entry) backupEntry {
	b := backupEntry{
		ID:          e.ID,
		Name:        e.Name,
		Description: e.Description,
		Price:       e.Price,
		Category:    e.Category,
		Stock:       e.Stock,
		Rating:      e.Rating,
		ImageURL:    e.ImageURL,
		Active:      e.Active,
		CreatedAt:   e.CreatedAt.UTC(),
	}
	if e.OriginalPrice.Valid {
		b.OriginalPrice = &e.OriginalPrice
	}
	return b
}

// Backup writes the document to w. A collection that cannot be read
// is logged and written empty.
func (b *Backup) Backup(
	ctx context.Context, w io.Writer,
) (domain.BackupSummary, error) {
	const op = "Backup.Backup"
	log := slog.With("op", op)

	summary := domain.BackupSummary{
		Timestamp: b.now().UTC(),
		Counts:    make(map[domain.Collection]int, len(domain.Collections)),
	}
	doc := backupDocument{
		Timestamp:   summary.Timestamp,
		Collections: make(map[string][]backupEntry, len(domain.Collections)),
	}

	for _, c := range domain.Collections {
		if err := ctx.Err(); err != nil {
			return domain.BackupSummary{}, fmt.Errorf("%s: %w", op, err)
		}

		es, err := b.storage.ReadEntries(ctx, c)
		if err != nil {
			log.Error("failed to read collection", "collection", c, "err", err)
			es = nil
		}

		entries := make([]backupEntry, 0, len(es))
		for _, e := range es {
			entries = append(entries, toBackupEntry(e))
		}
		doc.Collections[c.String()] = entries
		summary.Counts[c] = len(entries)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return domain.BackupSummary{}, fmt.Errorf("%s: %w", op, err)
	}
	return summary, nil
}
