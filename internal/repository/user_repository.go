package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/iliyamo/field-booking/internal/model"
)

type UserRepo struct {
	db      *sql.DB
	timeout time.Duration
}

func NewUserRepo(db *sql.DB, timeout time.Duration) *UserRepo {
	return &UserRepo{db: db, timeout: timeout}
}

const userColumns = "id, full_name, email, phone, role, is_active, created_at, updated_at"

func scanUser(row rowScanner) (*model.User, error) {
	var u model.User
	var email sql.NullString
	if err := row.Scan(&u.ID, &u.FullName, &email, &u.Phone, &u.Role, &u.IsActive, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	u.Email = stringPtr(email)
	return &u, nil
}

func (r *UserRepo) findOne(ctx context.Context, where string, arg any) (*model.User, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()
	u, err := scanUser(r.db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE "+where+" LIMIT 1", arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return u, err
}

// FindUser returns nil when no user has the id.
func (r *UserRepo) FindUser(ctx context.Context, id uint64) (*model.User, error) {
	return r.findOne(ctx, "id = ?", id)
}

// FindCustomerByPhone returns nil when no user has the phone number.
func (r *UserRepo) FindCustomerByPhone(ctx context.Context, phone string) (*model.User, error) {
	return r.findOne(ctx, "phone = ?", strings.TrimSpace(phone))
}

// CreateCustomer inserts a passwordless customer and fills in its id and
// timestamps. A taken phone number yields ErrPhoneExists.
func (r *UserRepo) CreateCustomer(ctx context.Context, u *model.User) error {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()
	u.Role = model.RoleCustomer
	u.IsActive = true
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO users (full_name, email, phone, role, is_active) VALUES (?, ?, ?, ?, ?)",
		u.FullName, nullString(u.Email), u.Phone, u.Role, u.IsActive)
	if err != nil {
		if IsDuplicateEntry(err) {
			return ErrPhoneExists
		}
		return fmt.Errorf("insert user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	u.ID = uint64(id)
	return r.db.QueryRowContext(ctx, "SELECT created_at, updated_at FROM users WHERE id = ?", u.ID).
		Scan(&u.CreatedAt, &u.UpdatedAt)
}
