package seed

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"clinicstock/m/domain"
	"clinicstock/m/internal/ledger"
)

// InventoryWriter is the part of the inventory store the loader needs.
type InventoryWriter interface {
	Exists(ctx context.Context, kind domain.Kind, productName string, expirationDate *string) (bool, error)
	Create(ctx context.Context, item domain.InventoryItem) (domain.InventoryItem, error)
}

var header = []string{
	"kind", "product_name", "date_received", "beginning_balance", "delivery",
	"consumption", "stock_transfer_in", "stock_transfer_out", "expiration_date",
}

// LoadInventory ingests the CSV into the inventory table, skipping lots that
// already exist with the same kind, product and expiration. A missing file
// is not an error.
func LoadInventory(ctx context.Context, repo InventoryWriter, csvPath string) (int, error) {
	file, err := os.Open(csvPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			log.Printf("no inventory seed at %s, skipping", csvPath)
			return 0, nil
		}
		return 0, fmt.Errorf("open inventory seed: %w", err)
	}
	defer file.Close()
	return Load(ctx, repo, file)
}

// Load reads seed rows from r.
func Load(ctx context.Context, repo InventoryWriter, r io.Reader) (int, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	// Skip header
	if _, err := reader.Read(); err != nil {
		if err == io.EOF {
			return 0, nil
		}
		return 0, fmt.Errorf("read inventory header: %w", err)
	}

	rows := 0
	for line := 2; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			log.Printf("unable to read inventory row %d: %v", line, err)
			continue
		}
		if len(record) < len(header) {
			log.Printf("skipping short inventory row %d", line)
			continue
		}
		item, ok := parseRow(record)
		if !ok {
			log.Printf("skipping inventory row %d: unknown kind or empty product", line)
			continue
		}

		exists, err := repo.Exists(ctx, item.Kind, item.ProductName, item.ExpirationDate)
		if err != nil {
			return rows, err
		}
		if exists {
			continue
		}
		if _, err := repo.Create(ctx, item); err != nil {
			return rows, fmt.Errorf("insert inventory row %d: %w", line, err)
		}
		rows++
	}

	log.Printf("seeded inventory with %d lots", rows)
	return rows, nil
}

func parseRow(record []string) (domain.InventoryItem, bool) {
	field := func(i int) string { return strings.TrimSpace(record[i]) }
	optional := func(i int) *string {
		if v := field(i); v != "" {
			return &v
		}
		return nil
	}

	kind := domain.Kind(strings.ToLower(field(0)))
	name := field(1)
	if !kind.Valid() || name == "" {
		return domain.InventoryItem{}, false
	}
	return domain.InventoryItem{
		Kind:             kind,
		ProductName:      name,
		DateReceived:     optional(2),
		BeginningBalance: ledger.ParseCount(field(3)).Value,
		Delivery:         field(4),
		Consumption:      ledger.ParseCount(field(5)).Value,
		StockTransferIn:  ledger.ParseCount(field(6)).Value,
		StockTransferOut: ledger.ParseCount(field(7)).Value,
		ExpirationDate:   optional(8),
	}, true
}
