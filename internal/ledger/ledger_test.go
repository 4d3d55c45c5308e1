package ledger

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"clinicstock/m/domain"
)

func date(s string) *string { return &s }

func asOf(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		t.Fatalf("bad test date %q: %v", s, err)
	}
	return d
}

func TestRemainingBalance(t *testing.T) {
	testCases := []struct {
		name string
		item domain.InventoryItem
		want int64
	}{
		{"scenario A", domain.InventoryItem{BeginningBalance: 100, Consumption: 30, StockTransferIn: 10, StockTransferOut: 5}, 75},
		{"all missing", domain.InventoryItem{}, 0},
		{"only beginning", domain.InventoryItem{BeginningBalance: 40}, 40},
		{"only transfer out", domain.InventoryItem{StockTransferOut: 7}, -7},
		{"negative not clamped", domain.InventoryItem{BeginningBalance: 5, Consumption: 9}, -4},
		{"delivery ignored", domain.InventoryItem{BeginningBalance: 10, Delivery: "2024-06-01"}, 10},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := RemainingBalance(tc.item); got != tc.want {
				t.Errorf("Expected %d, got %d", tc.want, got)
			}
		})
	}
}

func TestRemainingBalance_MissingFieldsFromRecord(t *testing.T) {
	// Each subset of the four ledger fields left out still obeys the identity.
	full := map[string]int64{"b": 120, "c": 15, "i": 8, "o": 3}
	for mask := 0; mask < 16; mask++ {
		var r Record
		var b, c, in, out int64
		if mask&1 != 0 {
			r.BeginningBalance, b = N(full["b"]), full["b"]
		}
		if mask&2 != 0 {
			r.Consumption, c = N(full["c"]), full["c"]
		}
		if mask&4 != 0 {
			r.StockTrasferIn, in = N(full["i"]), full["i"]
		}
		if mask&8 != 0 {
			r.StockTrasferOut, out = N(full["o"]), full["o"]
		}
		item := r.Item(domain.KindVaccine)
		if got, want := RemainingBalance(item), b-c+in-out; got != want {
			t.Errorf("mask %04b: expected %d, got %d", mask, want, got)
		}
		if item.RemainingBalance != b-c+in-out {
			t.Errorf("mask %04b: missing remaining_balance should be derived, got %d", mask, item.RemainingBalance)
		}
	}
}

func TestDaysUntilExpiration(t *testing.T) {
	ref := time.Date(2024, 6, 1, 17, 45, 0, 0, time.UTC)

	testCases := []struct {
		name   string
		exp    *string
		want   int
		wantOK bool
	}{
		{"scenario B", date("2024-06-15"), 14, true},
		{"today", date("2024-06-01"), 0, true},
		{"yesterday", date("2024-05-31"), -1, true},
		{"past", date("2024-05-20"), -12, true},
		{"timestamp late in day", date("2024-06-02T23:59:00Z"), 1, true},
		{"space separated", date("2024-06-03 08:00:00"), 2, true},
		{"missing", nil, 0, false},
		{"empty", date(""), 0, false},
		{"garbage", date("not a date"), 0, false},
		{"impossible day", date("2024-02-31"), 0, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := DaysUntilExpiration(tc.exp, ref)
			if ok != tc.wantOK {
				t.Fatalf("Expected ok=%v, got %v", tc.wantOK, ok)
			}
			if got != tc.want {
				t.Errorf("Expected %d days, got %d", tc.want, got)
			}
		})
	}
}

func TestDaysUntilExpiration_DSTBoundary(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	// The night of 2024-11-03 is 25 hours long in New York.
	ref := time.Date(2024, 11, 2, 9, 0, 0, 0, loc)
	got, ok := DaysUntilExpiration(date("2024-11-04"), ref)
	if !ok || got != 2 {
		t.Errorf("Expected 2 days across DST change, got %d (ok=%v)", got, ok)
	}
}

func TestExpiringSoon_Boundaries(t *testing.T) {
	ref := asOf(t, "2024-06-01")
	items := []domain.InventoryItem{
		{ID: 1, ExpirationDate: date("2024-06-01"), RemainingBalance: 10}, // today
		{ID: 2, ExpirationDate: date("2024-05-31"), RemainingBalance: 10}, // yesterday
		{ID: 3, ExpirationDate: date("2024-07-01"), RemainingBalance: 10}, // horizon
		{ID: 4, ExpirationDate: date("2024-07-02"), RemainingBalance: 10}, // horizon + 1
		{ID: 5, ExpirationDate: date("2024-06-10"), RemainingBalance: 0},  // no stock
		{ID: 6, ExpirationDate: date("2024-06-10"), RemainingBalance: -3}, // negative stock
		{ID: 7, ExpirationDate: nil, RemainingBalance: 10},
		{ID: 8, ExpirationDate: date("soon"), RemainingBalance: 10},
	}

	got := ExpiringSoon(items, ref, Days(30))
	if ids := idsOf(got); !reflect.DeepEqual(ids, []int64{1, 3}) {
		t.Errorf("Expected items [1 3], got %v", ids)
	}
}

func TestExpiringSoon_Scenarios(t *testing.T) {
	ref := asOf(t, "2024-06-01")

	b := domain.InventoryItem{ID: 10, ExpirationDate: date("2024-06-15"), RemainingBalance: 20}
	if got := ExpiringSoon([]domain.InventoryItem{b}, ref, Days(30)); len(got) != 1 {
		t.Errorf("scenario B: expected item to be expiring soon, got %v", idsOf(got))
	}

	c := domain.InventoryItem{ID: 11, ExpirationDate: date("2024-05-20"), RemainingBalance: 500}
	if got := ExpiringSoon([]domain.InventoryItem{c}, ref, Days(30)); len(got) != 0 {
		t.Errorf("scenario C: expired item must be excluded, got %v", idsOf(got))
	}
}

func TestExpiringSoon_CalendarMonth(t *testing.T) {
	testCases := []struct {
		name   string
		asOf   string
		inside string
		beyond string
		days   int
	}{
		{"june has 30 days ahead", "2024-06-01", "2024-07-01", "2024-07-02", 30},
		{"january has 31 days ahead", "2024-01-15", "2024-02-15", "2024-02-16", 31},
		{"feb in leap year", "2024-02-01", "2024-03-01", "2024-03-02", 29},
		{"month end overflows", "2023-01-31", "2023-03-03", "2023-03-04", 31},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ref := asOf(t, tc.asOf)
			h := CalendarMonth()
			if got := h.DaysFrom(ref); got != tc.days {
				t.Errorf("Expected horizon of %d days, got %d", tc.days, got)
			}
			items := []domain.InventoryItem{
				{ID: 1, ExpirationDate: date(tc.inside), RemainingBalance: 1},
				{ID: 2, ExpirationDate: date(tc.beyond), RemainingBalance: 1},
			}
			if ids := idsOf(ExpiringSoon(items, ref, h)); !reflect.DeepEqual(ids, []int64{1}) {
				t.Errorf("Expected [1], got %v", ids)
			}
		})
	}
}

func TestLowStock(t *testing.T) {
	items := []domain.InventoryItem{
		{ID: 1, RemainingBalance: 100},
		{ID: 2, RemainingBalance: 99},
		{ID: 3, RemainingBalance: 0},
		{ID: 4, RemainingBalance: 1},
		{ID: 5, RemainingBalance: -2},
		{ID: 6, RemainingBalance: 45},
	}

	if ids := idsOf(LowStock(items, 100)); !reflect.DeepEqual(ids, []int64{2, 4, 6}) {
		t.Errorf("Expected [2 4 6], got %v", ids)
	}

	// scenario D
	d := []domain.InventoryItem{{ID: 9, RemainingBalance: 45}}
	if got := LowStock(d, 100); len(got) != 1 {
		t.Errorf("scenario D: expected low stock at threshold 100")
	}
	if got := LowStock(d, 40); len(got) != 0 {
		t.Errorf("scenario D: expected no low stock at threshold 40")
	}
}

func TestFinders_Idempotent(t *testing.T) {
	ref := asOf(t, "2024-06-01")
	items := []domain.InventoryItem{
		{ID: 3, ExpirationDate: date("2024-06-20"), RemainingBalance: 12},
		{ID: 1, ExpirationDate: date("2024-06-02"), RemainingBalance: 250},
		{ID: 2, ExpirationDate: date("2025-01-01"), RemainingBalance: 50},
	}

	first := Evaluate(domain.KindContraceptive, items, ref, Options{})
	second := Evaluate(domain.KindContraceptive, items, ref, Options{})
	if !reflect.DeepEqual(first, second) {
		t.Errorf("Expected identical results, got %+v and %+v", first, second)
	}
	if ids := idsOf(first.ExpiringSoon); !reflect.DeepEqual(ids, []int64{3, 1}) {
		t.Errorf("Expected input order [3 1], got %v", ids)
	}
	if ids := idsOf(first.LowStock); !reflect.DeepEqual(ids, []int64{3, 2}) {
		t.Errorf("Expected input order [3 2], got %v", ids)
	}
	if first.HorizonDays != DefaultHorizonDays || first.Threshold != DefaultLowStockThreshold {
		t.Errorf("Expected default options, got horizon=%d threshold=%d", first.HorizonDays, first.Threshold)
	}
}

func TestEvaluate_ExplicitZeroHorizon(t *testing.T) {
	ref := asOf(t, "2024-06-01")
	items := []domain.InventoryItem{
		{ID: 1, ExpirationDate: date("2024-06-01"), RemainingBalance: 5},
		{ID: 2, ExpirationDate: date("2024-06-02"), RemainingBalance: 5},
	}
	set := Evaluate(domain.KindVaccine, items, ref, Options{Horizon: Days(0)})
	if ids := idsOf(set.ExpiringSoon); !reflect.DeepEqual(ids, []int64{1}) {
		t.Errorf("Expected only today's lot, got %v", ids)
	}
}

func TestApplyConsumption(t *testing.T) {
	item := domain.InventoryItem{ID: 7, BeginningBalance: 50, Consumption: 10, RemainingBalance: 40}

	updated, err := ApplyConsumption(item, 15)
	if err != nil {
		t.Fatalf("Expected consumption to succeed: %v", err)
	}
	if updated.Consumption != 25 || updated.RemainingBalance != 25 {
		t.Errorf("Expected consumption 25 and remaining 25, got %d and %d", updated.Consumption, updated.RemainingBalance)
	}
	if RemainingBalance(updated) != updated.RemainingBalance {
		t.Errorf("Expected ledger identity to hold after consumption")
	}
	if item.Consumption != 10 || item.RemainingBalance != 40 {
		t.Errorf("Input item was modified: %+v", item)
	}

	all, err := ApplyConsumption(item, 40)
	if err != nil || all.RemainingBalance != 0 {
		t.Errorf("Expected using the full balance to succeed, got %+v, %v", all, err)
	}
}

func TestApplyConsumption_Errors(t *testing.T) {
	item := domain.InventoryItem{ID: 7, BeginningBalance: 50, Consumption: 10, RemainingBalance: 40}

	testCases := []struct {
		name     string
		quantity int64
		want     error
	}{
		{"zero", 0, ErrInvalidQuantity},
		{"negative", -3, ErrInvalidQuantity},
		{"too many", 41, ErrInsufficientStock},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ApplyConsumption(item, tc.quantity)
			if !errors.Is(err, tc.want) {
				t.Fatalf("Expected %v, got %v", tc.want, err)
			}
			if got != (domain.InventoryItem{}) {
				t.Errorf("Expected zero item on error, got %+v", got)
			}
			if item.Consumption != 10 || item.RemainingBalance != 40 {
				t.Errorf("Input item was modified: %+v", item)
			}
		})
	}

	_, err := ApplyConsumption(item, 41)
	var stockErr *InsufficientStockError
	if !errors.As(err, &stockErr) {
		t.Fatalf("Expected *InsufficientStockError, got %T", err)
	}
	if stockErr.Available != 40 || stockErr.Requested != 41 {
		t.Errorf("Unexpected error detail: %+v", stockErr)
	}
}

func TestReconcile(t *testing.T) {
	items := []domain.InventoryItem{
		{ID: 1, BeginningBalance: 10, Consumption: 2, RemainingBalance: 8},
		{ID: 2, BeginningBalance: 10, Consumption: 2, RemainingBalance: 9},
		{ID: 3, BeginningBalance: 5, StockTransferIn: 5, RemainingBalance: 0},
	}
	got := Reconcile(items)
	if len(got) != 2 {
		t.Fatalf("Expected 2 discrepancies, got %d", len(got))
	}
	if got[0].ID != 2 || got[0].Stored != 9 || got[0].Computed != 8 {
		t.Errorf("Unexpected first discrepancy: %+v", got[0])
	}
	if got[1].ID != 3 || got[1].Computed != 10 {
		t.Errorf("Unexpected second discrepancy: %+v", got[1])
	}
	if fixed := Recompute(items[1]); fixed.RemainingBalance != 8 {
		t.Errorf("Expected recomputed balance 8, got %d", fixed.RemainingBalance)
	}
}

func idsOf(items []domain.InventoryItem) []int64 {
	ids := []int64{}
	for _, it := range items {
		ids = append(ids, it.ID)
	}
	return ids
}
