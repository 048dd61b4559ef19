package catalog

import (
	"slices"
	"strings"

	"github.com/goldmanhw/storefront/internal/core/domain"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// collationTag is the locale names are ordered by.
var collationTag = language.English

// Derive returns the displayed list for snapshot: the category filter,
// then the search filter, then a stable sort by mode.
//
// Derive never modifies snapshot and its result is always
// a subsequence of snapshot up to reordering.
func Derive(
	snapshot []domain.Entry,
	searchTerm string,
	category string,
	mode domain.SortMode,
) []domain.Entry {
	term := strings.ToLower(searchTerm)

	out := make([]domain.Entry, 0, len(snapshot))
	for _, e := range snapshot {
		if category != domain.AllCategories && e.Category != category {
			continue
		}
		if term != "" && !matchesTerm(e, term) {
			continue
		}
		out = append(out, e)
	}

	sortEntries(out, mode)
	return out
}

// CategoryOptions returns AllCategories followed by the distinct
// non-empty categories of snapshot in first-seen order.
func CategoryOptions(snapshot []domain.Entry) []string {
	seen := make(map[string]struct{})
	opts := []string{domain.AllCategories}
	for _, e := range snapshot {
		if e.Category == "" {
			continue
		}
		if _, ok := seen[e.Category]; ok {
			continue
		}
		seen[e.Category] = struct{}{}
		opts = append(opts, e.Category)
	}
	return opts
}

// matchesTerm expects term in lower case.
func matchesTerm(e domain.Entry, term string) bool {
	return strings.Contains(strings.ToLower(e.Name), term) ||
		strings.Contains(strings.ToLower(e.Description), term) ||
		(e.Category != "" && strings.Contains(strings.ToLower(e.Category), term))
}

func sortEntries(es []domain.Entry, mode domain.SortMode) {
	switch mode {
	case domain.NameAscending:
		// A Collator is not safe for concurrent use.
		c := collate.New(collationTag)
		slices.SortStableFunc(es, func(a, b domain.Entry) int {
			return c.CompareString(a.Name, b.Name)
		})
	case domain.PriceAscending:
		slices.SortStableFunc(es, func(a, b domain.Entry) int {
			return comparePrice(a, b, false)
		})
	case domain.PriceDescending:
		slices.SortStableFunc(es, func(a, b domain.Entry) int {
			return comparePrice(a, b, true)
		})
	default:
		// Newest keeps the feed order.
	}
}

// comparePrice orders entries without a price last in both directions.
func comparePrice(a, b domain.Entry, desc bool) int {
	switch {
	case !a.Price.Valid && !b.Price.Valid:
		return 0
	case !a.Price.Valid:
		return 1
	case !b.Price.Valid:
		return -1
	}
	c := a.Price.Decimal.Cmp(b.Price.Decimal)
	if desc {
		return -c
	}
	return c
}
