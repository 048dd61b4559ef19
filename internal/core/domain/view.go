package domain

import "fmt"

// AllCategories is the category filter that retains every entry.
//
// An empty category marks an uncategorized entry, so the empty label
// can never be a real filter target.
const AllCategories = ""

// AllCategoriesLabel is how AllCategories is named on the wire. It is
// reserved and never stored as a category.
const AllCategoriesLabel = "all"

type SortMode int

const (
	Newest SortMode = iota
	NameAscending
	PriceAscending
	PriceDescending
)

var sortModeNames = map[SortMode]string{
	Newest:          "newest",
	NameAscending:   "name",
	PriceAscending:  "price-low",
	PriceDescending: "price-high",
}

func (m SortMode) String() string {
	if s, ok := sortModeNames[m]; ok {
		return s
	}
	return fmt.Sprintf("SortMode(%d)", int(m))
}

// ParseSortMode maps the storefront's sort names onto a SortMode.
// The empty string selects Newest.
func ParseSortMode(s string) (SortMode, error) {
	if s == "" {
		return Newest, nil
	}
	for m, name := range sortModeNames {
		if name == s {
			return m, nil
		}
	}
	return Newest, fmt.Errorf("%w: %q", ErrInvalidSortMode, s)
}

type ConnectionState int

const (
	Connecting ConnectionState = iota
	Live
	Failed
)

func (s ConnectionState) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Live:
		return "live"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("ConnectionState(%d)", int(s))
}

type Direction int

const (
	Ascending Direction = iota
	Descending
)

// Entry fields a feed query can order or filter by.
const (
	FieldCreatedAt = "createdAt"
	FieldActive    = "active"
	FieldCategory  = "category"
)

// An EqualityFilter retains entries whose Field equals Value.
type EqualityFilter struct {
	Field string
	Value any
}

// A FeedQuery selects and orders one collection of a remote feed.
type FeedQuery struct {
	Collection Collection
	OrderBy    string
	Direction  Direction
	Filter     *EqualityFilter
}

// CollectionQuery returns the query the storefront sends for c:
// newest first, offers restricted to active ones.
func CollectionQuery(c Collection) FeedQuery {
	q := FeedQuery{
		Collection: c,
		OrderBy:    FieldCreatedAt,
		Direction:  Descending,
	}
	if c == Offers {
		q.Filter = &EqualityFilter{Field: FieldActive, Value: true}
	}
	return q
}
