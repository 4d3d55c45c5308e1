package ledger

import (
	"strings"
	"time"

	"clinicstock/m/domain"
)

const (
	DefaultHorizonDays       = 30
	DefaultLowStockThreshold = 100
)

var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// Horizon is how far ahead of the reference date an expiration counts as
// soon: either a fixed number of days or one calendar month.
type Horizon struct {
	days  int
	month bool
	set   bool
}

// Days returns a fixed window of n days. Negative n is treated as zero.
func Days(n int) Horizon {
	if n < 0 {
		n = 0
	}
	return Horizon{days: n, set: true}
}

// CalendarMonth returns a window ending on the same day next month.
func CalendarMonth() Horizon { return Horizon{month: true, set: true} }

// IsCalendarMonth reports whether h was built by CalendarMonth.
func (h Horizon) IsCalendarMonth() bool { return h.month }

// DaysFrom resolves the window to a day count relative to asOf.
func (h Horizon) DaysFrom(asOf time.Time) int {
	if !h.month {
		return h.days
	}
	start := civilDay(asOf)
	// AddDate normalises overflow, so Jan 31 + 1 month lands on Mar 2/3.
	return int(start.AddDate(0, 1, 0).Sub(start) / (24 * time.Hour))
}

// ParseDate reads an expiration or receipt date. Values without an offset
// are taken in loc (UTC when nil).
func ParseDate(s string, loc *time.Location) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if loc == nil {
		loc = time.UTC
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t.In(loc), true
		}
	}
	return time.Time{}, false
}

// civilDay maps t to midnight UTC of its calendar date so day differences
// are exact multiples of 24h regardless of DST.
func civilDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// StartOfDay truncates t to midnight in its own location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// DaysUntilExpiration returns the signed number of calendar days from asOf
// to the expiration date. ok is false when the date is missing or cannot
// be parsed.
func DaysUntilExpiration(expirationDate *string, asOf time.Time) (days int, ok bool) {
	if expirationDate == nil {
		return 0, false
	}
	exp, ok := ParseDate(*expirationDate, asOf.Location())
	if !ok {
		return 0, false
	}
	diff := civilDay(exp).Sub(civilDay(asOf))
	return int(diff / (24 * time.Hour)), true
}

// ExpiringSoon returns the lots with stock left that expire between asOf
// and the end of the horizon, both days inclusive. Already expired lots and
// lots without a readable date are skipped.
func ExpiringSoon(items []domain.InventoryItem, asOf time.Time, h Horizon) []domain.InventoryItem {
	limit := h.DaysFrom(asOf)
	out := []domain.InventoryItem{}
	for _, it := range items {
		if it.RemainingBalance <= 0 {
			continue
		}
		days, ok := DaysUntilExpiration(it.ExpirationDate, asOf)
		if !ok || days < 0 || days > limit {
			continue
		}
		out = append(out, it)
	}
	return out
}

// LowStock returns the lots with 0 < remaining < threshold. Out-of-stock
// lots are a separate state and are not flagged here.
func LowStock(items []domain.InventoryItem, threshold int64) []domain.InventoryItem {
	out := []domain.InventoryItem{}
	for _, it := range items {
		if it.RemainingBalance > 0 && it.RemainingBalance < threshold {
			out = append(out, it)
		}
	}
	return out
}

// Options tunes Evaluate. The zero value means a 30 day window and a
// threshold of 100.
type Options struct {
	Horizon           Horizon
	LowStockThreshold int64
}

func (o Options) withDefaults() Options {
	if !o.Horizon.set {
		o.Horizon = Days(DefaultHorizonDays)
	}
	if o.LowStockThreshold <= 0 {
		o.LowStockThreshold = DefaultLowStockThreshold
	}
	return o
}

// Evaluate builds the alert set for one ledger snapshot.
func Evaluate(kind domain.Kind, items []domain.InventoryItem, asOf time.Time, opts Options) domain.AlertSet {
	opts = opts.withDefaults()
	return domain.AlertSet{
		Kind:         kind,
		ExpiringSoon: ExpiringSoon(items, asOf, opts.Horizon),
		LowStock:     LowStock(items, opts.LowStockThreshold),
		HorizonDays:  opts.Horizon.DaysFrom(asOf),
		Threshold:    opts.LowStockThreshold,
		EvaluatedAt:  asOf,
	}
}
