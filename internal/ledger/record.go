package ledger

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"clinicstock/m/domain"
)

// Count is a ledger quantity decoded leniently: JSON numbers, numeric
// strings, empty strings, null and garbage are all accepted. Anything that
// is not a number decodes to an invalid zero.
type Count struct {
	Value int64
	Valid bool
}

// N is a shorthand for a valid Count.
func N(v int64) Count { return Count{Value: v, Valid: true} }

func (c *Count) UnmarshalJSON(data []byte) error {
	*c = ParseCount(string(data))
	return nil
}

func (c Count) MarshalJSON() ([]byte, error) {
	if !c.Valid {
		return []byte("null"), nil
	}
	return []byte(strconv.FormatInt(c.Value, 10)), nil
}

// ParseCount coerces a raw value (possibly JSON-quoted) to a Count.
func ParseCount(raw string) Count {
	s := strings.TrimSpace(raw)
	if unq, err := strconv.Unquote(s); err == nil {
		s = strings.TrimSpace(unq)
	}
	if s == "" || s == "null" {
		return Count{}
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return N(n)
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || math.Abs(f) >= math.MaxInt64 {
		return Count{}
	}
	return N(int64(f))
}

// Text is a string field that also accepts numbers and null.
type Text string

func (t *Text) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*t = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*t = Text(strings.TrimSpace(s))
		return nil
	}
	*t = Text(data)
	return nil
}

func (t Text) ptr() *string {
	if t == "" {
		return nil
	}
	s := string(t)
	return &s
}

// Record is an inventory lot in the shape the dashboard sends and stores.
// The stock_trasfer_* spelling is the historical one; the corrected keys are
// accepted too and win when both are present.
type Record struct {
	ID               Count `json:"id"`
	Product          Text  `json:"product"`
	ProductName      Text  `json:"productName"`
	ProductNameSnake Text  `json:"product_name"`
	DateReceived     Text  `json:"date_received"`
	BeginningBalance Count `json:"beginning_balance"`
	Delivery         Text  `json:"delivery"`
	Consumption      Count `json:"consumption"`
	StockTrasferIn   Count `json:"stock_trasfer_in"`
	StockTrasferOut  Count `json:"stock_trasfer_out"`
	StockTransferIn  Count `json:"stock_transfer_in"`
	StockTransferOut Count `json:"stock_transfer_out"`
	ExpirationDate   Text  `json:"expiration_date"`
	RemainingBalance Count `json:"remaining_balance"`
}

// Name returns the first non-empty product label.
func (r Record) Name() string {
	for _, n := range []Text{r.ProductName, r.ProductNameSnake, r.Product} {
		if n != "" {
			return string(n)
		}
	}
	return ""
}

func pick(preferred, fallback Count) int64 {
	if preferred.Valid {
		return preferred.Value
	}
	return fallback.Value
}

// Item converts the record to a domain item of the given kind. A missing
// remaining balance is derived from the ledger fields.
func (r Record) Item(kind domain.Kind) domain.InventoryItem {
	item := domain.InventoryItem{
		ID:               r.ID.Value,
		Kind:             kind,
		ProductName:      r.Name(),
		DateReceived:     r.DateReceived.ptr(),
		BeginningBalance: r.BeginningBalance.Value,
		Delivery:         string(r.Delivery),
		Consumption:      r.Consumption.Value,
		StockTransferIn:  pick(r.StockTransferIn, r.StockTrasferIn),
		StockTransferOut: pick(r.StockTransferOut, r.StockTrasferOut),
		ExpirationDate:   r.ExpirationDate.ptr(),
	}
	if r.RemainingBalance.Valid {
		item.RemainingBalance = r.RemainingBalance.Value
	} else {
		item.RemainingBalance = RemainingBalance(item)
	}
	return item
}

// Items converts a batch of records.
func Items(kind domain.Kind, records []Record) []domain.InventoryItem {
	out := make([]domain.InventoryItem, 0, len(records))
	for _, r := range records {
		out = append(out, r.Item(kind))
	}
	return out
}
