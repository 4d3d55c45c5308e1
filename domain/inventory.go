package domain

import "time"

// Kind distinguishes the two stock ledgers kept by the clinic.
type Kind string

const (
	KindVaccine       Kind = "vaccine"
	KindContraceptive Kind = "contraceptive"
)

// Kinds lists every ledger in display order.
var Kinds = []Kind{KindVaccine, KindContraceptive}

// Valid reports whether k is a known ledger.
func (k Kind) Valid() bool {
	return k == KindVaccine || k == KindContraceptive
}

// InventoryItem is one received lot of a vaccine or contraceptive product.
type InventoryItem struct {
	ID               int64   `db:"id" json:"id"`
	Kind             Kind    `db:"kind" json:"kind"`
	ProductName      string  `db:"product_name" json:"product_name"`
	DateReceived     *string `db:"date_received" json:"date_received,omitempty"`
	BeginningBalance int64   `db:"beginning_balance" json:"beginning_balance"`
	Delivery         string  `db:"delivery" json:"delivery"`
	Consumption      int64   `db:"consumption" json:"consumption"`
	StockTransferIn  int64   `db:"stock_transfer_in" json:"stock_transfer_in"`
	StockTransferOut int64   `db:"stock_transfer_out" json:"stock_transfer_out"`
	ExpirationDate   *string `db:"expiration_date" json:"expiration_date,omitempty"`
	RemainingBalance int64   `db:"remaining_balance" json:"remaining_balance"`
	CreatedAt        string  `db:"created_at" json:"created_at"`
	UpdatedAt        string  `db:"updated_at" json:"updated_at"`
}

// AlertSet is the derived banner state for one ledger. It is never stored.
type AlertSet struct {
	Kind         Kind            `json:"kind"`
	ExpiringSoon []InventoryItem `json:"expiring_soon"`
	LowStock     []InventoryItem `json:"low_stock"`
	HorizonDays  int             `json:"horizon_days"`
	Threshold    int64           `json:"threshold"`
	EvaluatedAt  time.Time       `json:"evaluated_at"`
}
