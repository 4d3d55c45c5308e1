package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"clinicstock/m/domain"
)

type AuditRepo struct{ db *sqlx.DB }

func NewAuditRepo(db *sqlx.DB) *AuditRepo { return &AuditRepo{db: db} }

// Record appends an entry and returns it with its generated id.
func (r *AuditRepo) Record(ctx context.Context, entry domain.AuditLog) (domain.AuditLog, error) {
	entry.ID = uuid.NewString()
	_, err := r.db.ExecContext(ctx, `INSERT INTO audit_logs (id, user_id, action, entity, entity_id, detail) VALUES (?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.UserID, entry.Action, entry.Entity, entry.EntityID, entry.Detail)
	if err != nil {
		return domain.AuditLog{}, fmt.Errorf("insert audit log: %w", err)
	}
	return entry, nil
}

// Latest returns up to limit entries, newest first.
func (r *AuditRepo) Latest(ctx context.Context, limit int) ([]domain.AuditLog, error) {
	if limit <= 0 {
		limit = 100
	}
	logs := []domain.AuditLog{}
	err := r.db.SelectContext(ctx, &logs, `SELECT id, user_id, action, entity, entity_id, detail, created_at
		FROM audit_logs ORDER BY datetime(created_at) DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list audit logs: %w", err)
	}
	return logs, nil
}
