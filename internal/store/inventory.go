package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"clinicstock/m/domain"
	"clinicstock/m/internal/ledger"
)

const inventoryColumns = `id, kind, product_name, date_received, beginning_balance, delivery, consumption,
	stock_transfer_in, stock_transfer_out, expiration_date, remaining_balance, created_at, updated_at`

type InventoryRepo struct{ db *sqlx.DB }

func NewInventoryRepo(db *sqlx.DB) *InventoryRepo { return &InventoryRepo{db: db} }

// List returns the lots of one kind ordered by product and expiration. A
// non-empty query filters on product name.
func (r *InventoryRepo) List(ctx context.Context, kind domain.Kind, query string) ([]domain.InventoryItem, error) {
	args := []any{kind}
	q := `SELECT ` + inventoryColumns + ` FROM inventory WHERE kind = ?`
	if query = strings.TrimSpace(query); query != "" {
		q += ` AND LOWER(product_name) LIKE ?`
		args = append(args, "%"+strings.ToLower(query)+"%")
	}
	q += ` ORDER BY product_name, expiration_date, id`

	items := []domain.InventoryItem{}
	if err := r.db.SelectContext(ctx, &items, q, args...); err != nil {
		return nil, fmt.Errorf("list inventory: %w", err)
	}
	return items, nil
}

// All returns every lot of every kind in id order.
func (r *InventoryRepo) All(ctx context.Context) ([]domain.InventoryItem, error) {
	items := []domain.InventoryItem{}
	if err := r.db.SelectContext(ctx, &items, `SELECT `+inventoryColumns+` FROM inventory ORDER BY id`); err != nil {
		return nil, fmt.Errorf("load inventory: %w", err)
	}
	return items, nil
}

func (r *InventoryRepo) Get(ctx context.Context, kind domain.Kind, id int64) (domain.InventoryItem, error) {
	var item domain.InventoryItem
	err := r.db.GetContext(ctx, &item, `SELECT `+inventoryColumns+` FROM inventory WHERE id = ? AND kind = ?`, id, kind)
	if err != nil {
		return domain.InventoryItem{}, notFound(err)
	}
	return item, nil
}

// Create inserts a lot with its balance derived from the ledger fields and
// returns the stored row.
func (r *InventoryRepo) Create(ctx context.Context, item domain.InventoryItem) (domain.InventoryItem, error) {
	item = ledger.Recompute(item)
	res, err := r.db.ExecContext(ctx, `INSERT INTO inventory
		(kind, product_name, date_received, beginning_balance, delivery, consumption,
		 stock_transfer_in, stock_transfer_out, expiration_date, remaining_balance)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.Kind, item.ProductName, item.DateReceived, item.BeginningBalance, item.Delivery, item.Consumption,
		item.StockTransferIn, item.StockTransferOut, item.ExpirationDate, item.RemainingBalance)
	if err != nil {
		return domain.InventoryItem{}, fmt.Errorf("insert inventory: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return domain.InventoryItem{}, fmt.Errorf("insert inventory: %w", err)
	}
	return r.Get(ctx, item.Kind, id)
}

// Update overwrites the editable fields of a lot and recomputes its balance.
func (r *InventoryRepo) Update(ctx context.Context, item domain.InventoryItem) (domain.InventoryItem, error) {
	item = ledger.Recompute(item)
	res, err := r.db.ExecContext(ctx, `UPDATE inventory SET
		product_name = ?, date_received = ?, beginning_balance = ?, delivery = ?, consumption = ?,
		stock_transfer_in = ?, stock_transfer_out = ?, expiration_date = ?, remaining_balance = ?,
		updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND kind = ?`,
		item.ProductName, item.DateReceived, item.BeginningBalance, item.Delivery, item.Consumption,
		item.StockTransferIn, item.StockTransferOut, item.ExpirationDate, item.RemainingBalance,
		item.ID, item.Kind)
	if err != nil {
		return domain.InventoryItem{}, fmt.Errorf("update inventory: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.InventoryItem{}, ErrNotFound
	}
	return r.Get(ctx, item.Kind, item.ID)
}

func (r *InventoryRepo) Delete(ctx context.Context, kind domain.Kind, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM inventory WHERE id = ? AND kind = ?`, id, kind)
	if err != nil {
		return fmt.Errorf("delete inventory: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Consume applies a quantity-use to a lot inside a transaction. The ledger
// preconditions run before anything is written, so an invalid or
// over-quantity request leaves the row untouched.
func (r *InventoryRepo) Consume(ctx context.Context, kind domain.Kind, id, quantity int64) (domain.InventoryItem, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return domain.InventoryItem{}, fmt.Errorf("begin consume: %w", err)
	}
	defer tx.Rollback()

	var current domain.InventoryItem
	if err := tx.GetContext(ctx, &current, `SELECT `+inventoryColumns+` FROM inventory WHERE id = ? AND kind = ?`, id, kind); err != nil {
		return domain.InventoryItem{}, notFound(err)
	}

	next, err := ledger.ApplyConsumption(current, quantity)
	if err != nil {
		return domain.InventoryItem{}, err
	}

	if _, err := tx.ExecContext(ctx, `UPDATE inventory SET consumption = ?, remaining_balance = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`, next.Consumption, next.RemainingBalance, id); err != nil {
		return domain.InventoryItem{}, fmt.Errorf("consume inventory: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return domain.InventoryItem{}, fmt.Errorf("commit consume: %w", err)
	}
	return r.Get(ctx, kind, id)
}

// Exists reports whether a lot with the same product and expiration is
// already stored. The seed loader uses it to stay idempotent.
func (r *InventoryRepo) Exists(ctx context.Context, kind domain.Kind, productName string, expirationDate *string) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM inventory
		WHERE kind = ? AND product_name = ? AND COALESCE(expiration_date, '') = COALESCE(?, ''))`,
		kind, productName, expirationDate)
	if err != nil {
		return false, fmt.Errorf("check inventory: %w", err)
	}
	return exists, nil
}
