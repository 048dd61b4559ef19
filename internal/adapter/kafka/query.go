package kafka

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/goldmanhw/storefront/internal/core/domain"
)

// validateQuery rejects queries a collection topic cannot answer.
func validateQuery(q domain.FeedQuery, c domain.Collection) error {
	if q.Collection != c {
		return fmt.Errorf("%w: collection %q", ErrUnsupportedQuery, q.Collection)
	}
	switch q.OrderBy {
	case "", domain.FieldCreatedAt:
	default:
		return fmt.Errorf("%w: order by %q", ErrUnsupportedQuery, q.OrderBy)
	}
	if q.Filter == nil {
		return nil
	}
	switch q.Filter.Field {
	case domain.FieldActive:
		if _, ok := q.Filter.Value.(bool); !ok {
			return fmt.Errorf("%w: %s wants bool", ErrUnsupportedQuery, q.Filter.Field)
		}
	case domain.FieldCategory:
		if _, ok := q.Filter.Value.(string); !ok {
			return fmt.Errorf("%w: %s wants string", ErrUnsupportedQuery, q.Filter.Field)
		}
	default:
		return fmt.Errorf("%w: filter on %q", ErrUnsupportedQuery, q.Filter.Field)
	}
	return nil
}

// selectEntries answers a validated query over the table values.
// Entries with equal sort keys are ordered by ID, so equal tables
// always produce equal snapshots.
func selectEntries(all []domain.Entry, q domain.FeedQuery) []domain.Entry {
	out := make([]domain.Entry, 0, len(all))
	for _, e := range all {
		if q.Filter != nil && !matchesFilter(e, *q.Filter) {
			continue
		}
		out = append(out, e)
	}

	slices.SortFunc(out, func(a, b domain.Entry) int {
		if q.OrderBy == domain.FieldCreatedAt {
			c := a.CreatedAt.Compare(b.CreatedAt)
			if q.Direction == domain.Descending {
				c = -c
			}
			if c != 0 {
				return c
			}
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}

func matchesFilter(e domain.Entry, f domain.EqualityFilter) bool {
	switch f.Field {
	case domain.FieldActive:
		return e.Active == f.Value
	case domain.FieldCategory:
		return e.Category == f.Value
	}
	return false
}
