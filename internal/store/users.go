package store

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"clinicstock/m/domain"
)

type UserRepo struct{ db *sqlx.DB }

func NewUserRepo(db *sqlx.DB) *UserRepo { return &UserRepo{db: db} }

// ByEmail includes the password hash; callers must clear it before replying.
func (r *UserRepo) ByEmail(ctx context.Context, email string) (domain.User, error) {
	var u domain.User
	err := r.db.GetContext(ctx, &u, `SELECT id, username, email, password, role, created_at FROM users WHERE LOWER(email) = LOWER(?)`, email)
	if err != nil {
		return domain.User{}, notFound(err)
	}
	return u, nil
}

func (r *UserRepo) ByID(ctx context.Context, id int64) (domain.User, error) {
	var u domain.User
	err := r.db.GetContext(ctx, &u, `SELECT id, username, email, role, created_at FROM users WHERE id = ?`, id)
	if err != nil {
		return domain.User{}, notFound(err)
	}
	return u, nil
}

func (r *UserRepo) List(ctx context.Context) ([]domain.User, error) {
	users := []domain.User{}
	if err := r.db.SelectContext(ctx, &users, `SELECT id, username, email, role, created_at FROM users ORDER BY username`); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

func (r *UserRepo) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM users`); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return n, nil
}

// Create stores a user whose Password already holds a bcrypt hash.
func (r *UserRepo) Create(ctx context.Context, u domain.User) (domain.User, error) {
	res, err := r.db.ExecContext(ctx, `INSERT INTO users (username, email, password, role) VALUES (?, ?, ?, ?)`,
		u.Username, u.Email, u.Password, u.Role)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.User{}, ErrConflict
		}
		return domain.User{}, fmt.Errorf("insert user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return domain.User{}, fmt.Errorf("insert user: %w", err)
	}
	return r.ByID(ctx, id)
}

// CreateFirst stores u only while the users table is empty. The check and
// the insert are one statement, so concurrent callers cannot both succeed.
func (r *UserRepo) CreateFirst(ctx context.Context, u domain.User) (domain.User, error) {
	res, err := r.db.ExecContext(ctx, `INSERT INTO users (username, email, password, role)
		SELECT ?, ?, ?, ? WHERE NOT EXISTS (SELECT 1 FROM users)`,
		u.Username, u.Email, u.Password, u.Role)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.User{}, ErrConflict
		}
		return domain.User{}, fmt.Errorf("insert first user: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.User{}, ErrUsersExist
	}
	id, err := res.LastInsertId()
	if err != nil {
		return domain.User{}, fmt.Errorf("insert first user: %w", err)
	}
	return r.ByID(ctx, id)
}

func (r *UserRepo) Update(ctx context.Context, u domain.User) (domain.User, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE users SET username = ?, email = ?, role = ? WHERE id = ?`,
		u.Username, u.Email, u.Role, u.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.User{}, ErrConflict
		}
		return domain.User{}, fmt.Errorf("update user: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.User{}, ErrNotFound
	}
	return r.ByID(ctx, u.ID)
}

func (r *UserRepo) SetPassword(ctx context.Context, id int64, hash string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE users SET password = ? WHERE id = ?`, hash, id)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *UserRepo) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
