package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// DiscountPercent returns the whole percent an offer is reduced by.
//
// ok is false when the entry has no original price, or the original
// price does not exceed the price.
func DiscountPercent(e Entry) (pct int64, ok bool) {
	if !e.OriginalPrice.Valid || !e.Price.Valid {
		return 0, false
	}
	orig, price := e.OriginalPrice.Decimal, e.Price.Decimal
	if !orig.GreaterThan(price) || !orig.IsPositive() {
		return 0, false
	}
	hundred := decimal.NewFromInt(100)
	return orig.Sub(price).Mul(hundred).Div(orig).Round(0).IntPart(), true
}

// OffersEndIn returns the time left until the next local midnight,
// when the daily offers reset.
func OffersEndIn(now time.Time) time.Duration {
	y, m, d := now.Date()
	midnight := time.Date(y, m, d+1, 0, 0, 0, 0, now.Location())
	return midnight.Sub(now)
}

// FormatCountdown renders d as "<h>h <m>m <s>s".
func FormatCountdown(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	h := int(d / time.Hour)
	m := int(d % time.Hour / time.Minute)
	s := int(d % time.Minute / time.Second)
	return fmt.Sprintf("%dh %dm %ds", h, m, s)
}
