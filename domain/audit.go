package domain

// AuditLog records one mutation performed through the API.
type AuditLog struct {
	ID        string `db:"id" json:"id"`
	UserID    *int64 `db:"user_id" json:"user_id,omitempty"`
	Action    string `db:"action" json:"action"`
	Entity    string `db:"entity" json:"entity"`
	EntityID  string `db:"entity_id" json:"entity_id"`
	Detail    string `db:"detail" json:"detail"`
	CreatedAt string `db:"created_at" json:"created_at"`
}
