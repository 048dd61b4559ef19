package httphandler

import (
	"time"

	"github.com/goldmanhw/storefront/internal/core/catalog"
	"github.com/goldmanhw/storefront/internal/core/domain"
	"github.com/shopspring/decimal"
)

type (
	Entry struct {
		ID              string              `json:"id"`
		Name            string              `json:"name"`
		Description     string              `json:"description"`
		Price           decimal.NullDecimal `json:"price"`
		OriginalPrice   decimal.NullDecimal `json:"originalPrice"`
		DiscountPercent *int64              `json:"discountPercent,omitempty"`
		Category        string              `json:"category"`
		Stock           *int64              `json:"stock"`
		Rating          *float64            `json:"rating"`
		ImageURL        string              `json:"imageUrl"`
		Active          bool                `json:"active"`
		CreatedAt       time.Time           `json:"createdAt"`
	}

	ListResponse struct {
		Items      []Entry  `json:"items"`
		Count      int      `json:"count"`
		State      string   `json:"state,omitempty"`
		Error      string   `json:"error,omitempty"`
		Categories []string `json:"categories,omitempty"`
		Search     string   `json:"search,omitempty"`
		Category   string   `json:"category,omitempty"`
		Sort       string   `json:"sort,omitempty"`
		EndsIn     string   `json:"endsIn,omitempty"`
	}

	CreateEntryRequest struct {
		Name          string              `json:"name"`
		Description   string              `json:"description"`
		Price         decimal.NullDecimal `json:"price"`
		OriginalPrice decimal.NullDecimal `json:"originalPrice"`
		Category      string              `json:"category"`
		Stock         *int64              `json:"stock"`
		Rating        *float64            `json:"rating"`
		ImageURL      string              `json:"imageUrl"`
	}

	LoginRequest struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}

	TokenResponse struct {
		Token string `json:"token"`
	}

	IDResponse struct {
		ID string `json:"id"`
	}

	URLResponse struct {
		URL string `json:"url"`
	}

	ErrorResponse struct {
		Error string `json:"error"`
	}

	// A ViewFilter is sent by stream clients. Absent fields keep
	// their current value.
	ViewFilter struct {
		Search   *string `json:"search"`
		Category *string `json:"category"`
		Sort     *string `json:"sort"`
	}
)

func toEntry(e domain.Entry) Entry {
	v := Entry{
		ID:            e.ID,
		Name:          e.Name,
		Description:   e.Description,
		Price:         e.Price,
		OriginalPrice: e.OriginalPrice,
		Category:      e.Category,
		Stock:         e.Stock,
		Rating:        e.Rating,
		ImageURL:      e.ImageURL,
		Active:        e.Active,
		CreatedAt:     e.CreatedAt,
	}
	if e.Collection == domain.Offers {
		if pct, ok := domain.DiscountPercent(e); ok {
			v.DiscountPercent = &pct
		}
	}
	return v
}

func toEntries(es []domain.Entry) []Entry {
	items := make([]Entry, 0, len(es))
	for _, e := range es {
		items = append(items, toEntry(e))
	}
	return items
}

func (r CreateEntryRequest) toDomain() domain.EntryFields {
	return domain.EntryFields{
		Name:          r.Name,
		Description:   r.Description,
		Price:         r.Price.Decimal,
		OriginalPrice: r.OriginalPrice,
		Category:      r.Category,
		Stock:         r.Stock,
		Rating:        r.Rating,
		ImageURL:      r.ImageURL,
	}
}

func categoryLabels(categories []string) []string {
	labels := make([]string, len(categories))
	for i, c := range categories {
		if c == domain.AllCategories {
			c = domain.AllCategoriesLabel
		}
		labels[i] = c
	}
	return labels
}

func parseCategory(label string) string {
	if label == domain.AllCategoriesLabel {
		return domain.AllCategories
	}
	return label
}

func newListResponse(
	c domain.Collection, v catalog.View, now time.Time,
) ListResponse {
	resp := ListResponse{
		Items:      toEntries(v.Entries),
		Count:      v.Count,
		State:      v.State.String(),
		Categories: categoryLabels(v.Categories),
		Search:     v.SearchTerm,
		Category:   categoryLabels([]string{v.Category})[0],
		Sort:       v.SortMode.String(),
	}
	if v.Err != nil {
		resp.Error = v.Err.Error()
	}
	if c == domain.Offers {
		resp.EndsIn = domain.FormatCountdown(domain.OffersEndIn(now))
	}
	return resp
}
