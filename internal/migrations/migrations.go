package migrations

import (
	"fmt"
	"log"

	"github.com/jmoiron/sqlx"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            username TEXT NOT NULL,
            email TEXT NOT NULL UNIQUE,
            password TEXT NOT NULL,
            role TEXT NOT NULL CHECK (role IN ('admin','staff')),
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP
        );`,
	`CREATE TABLE IF NOT EXISTS inventory (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            kind TEXT NOT NULL CHECK (kind IN ('vaccine','contraceptive')),
            product_name TEXT NOT NULL,
            date_received TEXT,
            beginning_balance INTEGER NOT NULL DEFAULT 0,
            delivery TEXT NOT NULL DEFAULT '',
            consumption INTEGER NOT NULL DEFAULT 0,
            stock_transfer_in INTEGER NOT NULL DEFAULT 0,
            stock_transfer_out INTEGER NOT NULL DEFAULT 0,
            expiration_date TEXT,
            remaining_balance INTEGER NOT NULL DEFAULT 0,
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
        );`,
	`CREATE INDEX IF NOT EXISTS idx_inventory_kind ON inventory(kind);`,
	`CREATE INDEX IF NOT EXISTS idx_inventory_expiration ON inventory(expiration_date);`,
	`CREATE TABLE IF NOT EXISTS audit_logs (
            id TEXT PRIMARY KEY,
            user_id INTEGER,
            action TEXT NOT NULL,
            entity TEXT NOT NULL,
            entity_id TEXT NOT NULL,
            detail TEXT NOT NULL DEFAULT '',
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            FOREIGN KEY(user_id) REFERENCES users(id) ON DELETE SET NULL
        );`,
	`CREATE INDEX IF NOT EXISTS idx_audit_logs_created_at ON audit_logs(created_at);`,
}

// Apply creates the schema, returning the first failing statement's error.
func Apply(db *sqlx.DB) error {
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

// Run creates the database schema required by the API and exits on failure.
func Run(db *sqlx.DB) {
	if err := Apply(db); err != nil {
		log.Fatalf("%v", err)
	}
}
