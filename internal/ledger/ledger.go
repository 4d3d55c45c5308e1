// Package ledger holds the stock rules shared by the vaccine and
// contraceptive ledgers: balance derivation, expiry and low-stock alerts,
// and the quantity-use action. Everything here is pure; callers own I/O.
package ledger

import (
	"errors"
	"fmt"

	"clinicstock/m/domain"
)

var (
	ErrInvalidQuantity   = errors.New("quantity must be a positive whole number")
	ErrInsufficientStock = errors.New("insufficient stock")
)

// InvalidQuantityError is returned when a consumption quantity is zero,
// negative or not a whole number.
type InvalidQuantityError struct {
	Quantity int64
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("invalid quantity %d: %v", e.Quantity, ErrInvalidQuantity)
}

func (e *InvalidQuantityError) Is(target error) bool { return target == ErrInvalidQuantity }

// InsufficientStockError is returned when a consumption asks for more units
// than the lot has left.
type InsufficientStockError struct {
	ItemID    int64
	Requested int64
	Available int64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for item %d (requested %d, remaining %d)", e.ItemID, e.Requested, e.Available)
}

func (e *InsufficientStockError) Is(target error) bool { return target == ErrInsufficientStock }

// RemainingBalance derives the balance from the ledger fields. Delivery is
// informational and never part of the sum. Negative results are returned
// unchanged; they point at a data entry problem upstream.
func RemainingBalance(item domain.InventoryItem) int64 {
	return item.BeginningBalance - item.Consumption + item.StockTransferIn - item.StockTransferOut
}

// Recompute returns a copy of item with RemainingBalance derived from its
// ledger fields.
func Recompute(item domain.InventoryItem) domain.InventoryItem {
	item.RemainingBalance = RemainingBalance(item)
	return item
}

// ApplyConsumption records the use of quantity units. The input is never
// modified; on error the zero item is returned.
func ApplyConsumption(item domain.InventoryItem, quantity int64) (domain.InventoryItem, error) {
	if quantity <= 0 {
		return domain.InventoryItem{}, &InvalidQuantityError{Quantity: quantity}
	}
	if quantity > item.RemainingBalance {
		return domain.InventoryItem{}, &InsufficientStockError{
			ItemID:    item.ID,
			Requested: quantity,
			Available: item.RemainingBalance,
		}
	}
	item.Consumption += quantity
	item.RemainingBalance -= quantity
	return item, nil
}

// Discrepancy is a lot whose stored balance disagrees with its ledger.
type Discrepancy struct {
	ID          int64       `json:"id"`
	Kind        domain.Kind `json:"kind"`
	ProductName string      `json:"product_name"`
	Stored      int64       `json:"stored"`
	Computed    int64       `json:"computed"`
}

// Reconcile lists the items whose stored RemainingBalance differs from the
// value derived from their ledger fields, in input order.
func Reconcile(items []domain.InventoryItem) []Discrepancy {
	var out []Discrepancy
	for _, it := range items {
		computed := RemainingBalance(it)
		if computed != it.RemainingBalance {
			out = append(out, Discrepancy{
				ID:          it.ID,
				Kind:        it.Kind,
				ProductName: it.ProductName,
				Stored:      it.RemainingBalance,
				Computed:    computed,
			})
		}
	}
	return out
}
