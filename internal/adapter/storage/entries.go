package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/goldmanhw/storefront/internal/core/domain"
	"github.com/goldmanhw/storefront/internal/core/port"
)

var _ port.EntriesStorage = (*EntriesRepository)(nil)

const entryColumns = `
	id, name, description, price, original_price, category,
	stock, rating, image_url, active, created_at`

type EntriesRepository struct {
	sqldb sqldb
}

func NewEntriesRepository(sqldb sqldb) EntriesRepository {
	return EntriesRepository{sqldb}
}

// ReplaceCollection makes es the whole stored content of c.
func (r EntriesRepository) ReplaceCollection(
	ctx context.Context, c domain.Collection, es []domain.Entry,
) (storeErr error) {
	const op = "EntriesRepository.ReplaceCollection"
	log := slog.With("op", op, "collection", c)

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	tx, err := r.sqldb.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: failed to begin tx: %w", op, err)
	}

	defer func() {
		if storeErr == nil {
			if err := tx.Commit(); err != nil {
				storeErr = fmt.Errorf("%s: failed to commit: %w", op, err)
			}
			return
		}

		if err := tx.Rollback(); err != nil {
			log.Error("failed to rollback tx", "err", err)
		}
	}()

	_, err = tx.ExecContext(ctx,
		`DELETE FROM entries WHERE collection = $1;`, c.String(),
	)
	if err != nil {
		return fmt.Errorf("%s: failed to clear collection: %w", op, err)
	}

	if len(es) == 0 {
		return nil
	}

	query := `
		INSERT INTO entries (collection,` + entryColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12);`

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("%s: failed to prepare stmt: %w", op, err)
	}
	defer func() {
		if err := stmt.Close(); err != nil {
			log.Error("failed to close prepared stmt", "err", err)
		}
	}()

	for _, e := range es {
		_, err := stmt.ExecContext(ctx, append(
			[]any{c.String()}, entryArgs(e)...,
		)...)
		if err != nil {
			return fmt.Errorf("%s: failed to exec: %w", op, err)
		}
	}

	return nil
}

// ReadEntries returns c ordered by createdAt, newest first.
func (r EntriesRepository) ReadEntries(
	ctx context.Context, c domain.Collection,
) ([]domain.Entry, error) {
	const op = "EntriesRepository.ReadEntries"

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	query := `SELECT` + entryColumns + `
		FROM entries
		WHERE collection = $1
		ORDER BY created_at DESC, id ASC;`

	rows, err := r.sqldb.QueryContext(ctx, query, c.String())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var es []domain.Entry
	for rows.Next() {
		e, err := scanEntry(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		e.Collection = c
		es = append(es, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return es, nil
}

func (r EntriesRepository) ReadEntry(
	ctx context.Context, c domain.Collection, id string,
) (domain.Entry, error) {
	const op = "EntriesRepository.ReadEntry"

	if err := ctx.Err(); err != nil {
		return domain.Entry{}, fmt.Errorf("%s: %w", op, err)
	}

	query := `SELECT` + entryColumns + `
		FROM entries
		WHERE collection = $1 AND id = $2;`

	row := r.sqldb.QueryRowContext(ctx, query, c.String(), id)
	e, err := scanEntry(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Entry{}, fmt.Errorf("%s: %w", op, domain.ErrNotFound)
		}
		return domain.Entry{}, fmt.Errorf("%s: %w", op, err)
	}
	e.Collection = c
	return e, nil
}

func entryArgs(e domain.Entry) []any {
	return []any{
		e.ID, e.Name, e.Description, e.Price, e.OriginalPrice, e.Category,
		e.Stock, e.Rating, e.ImageURL, e.Active, e.CreatedAt.UTC(),
	}
}

func scanEntry(scan func(dest ...any) error) (domain.Entry, error) {
	var e domain.Entry
	err := scan(
		&e.ID, &e.Name, &e.Description, &e.Price, &e.OriginalPrice,
		&e.Category, &e.Stock, &e.Rating, &e.ImageURL, &e.Active,
		&e.CreatedAt,
	)
	return e, err
}
