package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Collection string

const (
	Products Collection = "products"
	Offers   Collection = "offers"
)

// Collections lists every collection the storefront serves.
var Collections = []Collection{Products, Offers}

func (c Collection) Valid() bool {
	switch c {
	case Products, Offers:
		return true
	}
	return false
}

func (c Collection) String() string {
	return string(c)
}

// An Entry is a catalog item, a product or an offer.
//
// Optional numeric fields are nil (or not Valid) when absent.
type Entry struct {
	ID            string
	Collection    Collection
	Name          string
	Description   string
	Price         decimal.NullDecimal
	OriginalPrice decimal.NullDecimal
	Category      string
	Stock         *int64
	Rating        *float64
	ImageURL      string
	Active        bool
	CreatedAt     time.Time
}

// EntryFields holds the user supplied part of a new entry.
// The store assigns ID and CreatedAt.
type EntryFields struct {
	Name          string
	Description   string
	Price         decimal.Decimal
	OriginalPrice decimal.NullDecimal
	Category      string
	Stock         *int64
	Rating        *float64
	ImageURL      string
}
