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

// FieldRepo stores the bookable pitches.
type FieldRepo struct {
	db      *sql.DB
	timeout time.Duration
}

func NewFieldRepo(db *sql.DB, timeout time.Duration) *FieldRepo {
	return &FieldRepo{db: db, timeout: timeout}
}

const fieldColumns = `id, name, field_type, location, price_per_hour, description, image,
	is_active, open_time, close_time, created_at, updated_at`

func scanField(row rowScanner) (*model.Field, error) {
	var f model.Field
	var desc, image sql.NullString
	err := row.Scan(&f.ID, &f.Name, &f.FieldType, &f.Location, &f.PricePerHour, &desc, &image,
		&f.IsActive, &f.OpenTime, &f.CloseTime, &f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		return nil, err
	}
	f.Description = stringPtr(desc)
	f.Image = stringPtr(image)
	return &f, nil
}

// FindField returns nil when the id matches no field.
func (r *FieldRepo) FindField(ctx context.Context, id uint64) (*model.Field, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()
	f, err := scanField(r.db.QueryRowContext(ctx, "SELECT "+fieldColumns+" FROM fields WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return f, err
}

// GetField is FindField with ErrFieldNotFound for a missing row.
func (r *FieldRepo) GetField(ctx context.Context, id uint64) (*model.Field, error) {
	f, err := r.FindField(ctx, id)
	if err != nil {
		return nil, err
	}
	if f == nil {
		return nil, ErrFieldNotFound
	}
	return f, nil
}

func (r *FieldRepo) ListActiveFields(ctx context.Context) ([]*model.Field, error) {
	return r.ListFields(ctx, FieldFilter{ActiveOnly: true})
}

// ListFields returns fields matching filter ordered by name.
func (r *FieldRepo) ListFields(ctx context.Context, filter FieldFilter) ([]*model.Field, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	var where []string
	var args []any
	if filter.ActiveOnly {
		where = append(where, "is_active = 1")
	}
	if filter.FieldType != "" {
		where = append(where, "field_type = ?")
		args = append(args, filter.FieldType)
	}
	if s := strings.TrimSpace(filter.Search); s != "" {
		like := "%" + s + "%"
		where = append(where, "(name LIKE ? OR location LIKE ?)")
		args = append(args, like, like)
	}
	q := "SELECT " + fieldColumns + " FROM fields"
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY name ASC, id ASC"

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []*model.Field{}
	for rows.Next() {
		f, err := scanField(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// CreateField inserts f and reloads it so defaults are populated.
func (r *FieldRepo) CreateField(ctx context.Context, f *model.Field) error {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()
	res, err := r.db.ExecContext(ctx, `INSERT INTO fields
		(name, field_type, location, price_per_hour, description, image, is_active, open_time, close_time)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		f.Name, f.FieldType, f.Location, f.PricePerHour, nullString(f.Description), nullString(f.Image),
		f.IsActive, f.OpenTime, f.CloseTime)
	if err != nil {
		return fmt.Errorf("insert field: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	f.ID = uint64(id)
	return r.reload(ctx, f)
}

// UpdateField writes every mutable column of f.
func (r *FieldRepo) UpdateField(ctx context.Context, f *model.Field) error {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()
	_, err := r.db.ExecContext(ctx, `UPDATE fields SET
		name = ?, field_type = ?, location = ?, price_per_hour = ?, description = ?, image = ?,
		is_active = ?, open_time = ?, close_time = ?
		WHERE id = ?`,
		f.Name, f.FieldType, f.Location, f.PricePerHour, nullString(f.Description), nullString(f.Image),
		f.IsActive, f.OpenTime, f.CloseTime, f.ID)
	if err != nil {
		return fmt.Errorf("update field: %w", err)
	}
	return r.reload(ctx, f)
}

func (r *FieldRepo) reload(ctx context.Context, f *model.Field) error {
	got, err := scanField(r.db.QueryRowContext(ctx, "SELECT "+fieldColumns+" FROM fields WHERE id = ?", f.ID))
	if errors.Is(err, sql.ErrNoRows) {
		return ErrFieldNotFound
	}
	if err != nil {
		return err
	}
	*f = *got
	return nil
}

// DeleteField removes a field. Fields referenced by bookings yield ErrConflict.
func (r *FieldRepo) DeleteField(ctx context.Context, id uint64) error {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()
	res, err := r.db.ExecContext(ctx, "DELETE FROM fields WHERE id = ?", id)
	if err != nil {
		if isRowReferenced(err) {
			return ErrConflict
		}
		return fmt.Errorf("delete field: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrFieldNotFound
	}
	return nil
}
