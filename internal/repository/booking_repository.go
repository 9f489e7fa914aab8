package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/iliyamo/field-booking/internal/booking"
	"github.com/iliyamo/field-booking/internal/model"
	"github.com/iliyamo/field-booking/internal/timeslot"
)

// ErrSlotLockTimeout is returned when another writer held the slot lock for
// longer than the configured wait.
var ErrSlotLockTimeout = errors.New("slot lock wait timed out")

// DefaultSlotLockTimeout is used when no lock wait is configured.
const DefaultSlotLockTimeout = 5 * time.Second

// BookingRepo stores bookings and implements booking.BookingStore.
type BookingRepo struct {
	db          *sql.DB
	timeout     time.Duration
	lockTimeout time.Duration
}

func NewBookingRepo(db *sql.DB, timeout, lockTimeout time.Duration) *BookingRepo {
	if lockTimeout <= 0 {
		lockTimeout = DefaultSlotLockTimeout
	}
	return &BookingRepo{db: db, timeout: timeout, lockTimeout: lockTimeout}
}

var _ booking.BookingStore = (*BookingRepo)(nil)

const bookingSelect = `SELECT b.id, b.user_id, b.field_id, b.booking_date, b.start_time, b.end_time,
	b.duration, b.total_price, b.status, b.payment_status, b.payment_method, b.notes,
	b.booking_code, b.created_at, b.updated_at,
	u.full_name, u.phone, u.email,
	f.name, f.field_type, f.location, f.price_per_hour
FROM bookings b
JOIN users u ON u.id = b.user_id
JOIN fields f ON f.id = b.field_id`

func scanBooking(row rowScanner) (*model.Booking, error) {
	var (
		b      model.Booking
		u      model.UserSummary
		f      model.FieldSummary
		method sql.NullString
		notes  sql.NullString
		email  sql.NullString
	)
	err := row.Scan(&b.ID, &b.UserID, &b.FieldID, &b.BookingDate, &b.StartTime, &b.EndTime,
		&b.Duration, &b.TotalPrice, &b.Status, &b.PaymentStatus, &method, &notes,
		&b.BookingCode, &b.CreatedAt, &b.UpdatedAt,
		&u.FullName, &u.Phone, &email,
		&f.Name, &f.FieldType, &f.Location, &f.PricePerHour)
	if err != nil {
		return nil, err
	}
	if method.Valid {
		pm := model.PaymentMethod(method.String)
		b.PaymentMethod = &pm
	}
	b.Notes = stringPtr(notes)
	u.ID, u.Email = b.UserID, stringPtr(email)
	f.ID = b.FieldID
	b.User, b.Field = &u, &f
	return &b, nil
}

func queryBookings(ctx context.Context, q queryer, query string, args ...any) ([]*model.Booking, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []*model.Booking{}
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func findBooking(ctx context.Context, q queryer, query string, id uint64) (*model.Booking, error) {
	b, err := scanBooking(q.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return b, err
}

// FindBooking returns nil when the id matches no booking.
func (r *BookingRepo) FindBooking(ctx context.Context, id uint64) (*model.Booking, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()
	return findBooking(ctx, r.db, bookingSelect+" WHERE b.id = ?", id)
}

// GetBooking is FindBooking with ErrBookingNotFound for a missing row.
func (r *BookingRepo) GetBooking(ctx context.Context, id uint64) (*model.Booking, error) {
	b, err := r.FindBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, ErrBookingNotFound
	}
	return b, nil
}

func (r *BookingRepo) ListActiveBookings(ctx context.Context, fieldID uint64, date time.Time) ([]*model.Booking, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()
	return queryBookings(ctx, r.db, bookingSelect+`
		WHERE b.field_id = ? AND b.booking_date = ? AND b.status <> 'cancelled'
		ORDER BY b.start_time`, fieldID, timeslot.FormatDate(date))
}

func (r *BookingRepo) ListActiveBookingsOnDate(ctx context.Context, date time.Time) ([]*model.Booking, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()
	return queryBookings(ctx, r.db, bookingSelect+`
		WHERE b.booking_date = ? AND b.status <> 'cancelled'
		ORDER BY b.field_id, b.start_time`, timeslot.FormatDate(date))
}

// ListBookings returns bookings matching filter, newest day first.
func (r *BookingRepo) ListBookings(ctx context.Context, filter BookingFilter) ([]*model.Booking, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	var where []string
	var args []any
	add := func(clause string, arg any) {
		where = append(where, clause)
		args = append(args, arg)
	}
	if filter.UserID != nil {
		add("b.user_id = ?", *filter.UserID)
	}
	if filter.FieldID != nil {
		add("b.field_id = ?", *filter.FieldID)
	}
	if filter.Status != nil {
		add("b.status = ?", string(*filter.Status))
	}
	if filter.PaymentStatus != nil {
		add("b.payment_status = ?", string(*filter.PaymentStatus))
	}
	if filter.From != nil {
		add("b.booking_date >= ?", timeslot.FormatDate(*filter.From))
	}
	if filter.To != nil {
		add("b.booking_date <= ?", timeslot.FormatDate(*filter.To))
	}
	q := bookingSelect
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY b.booking_date DESC, b.start_time DESC"
	return queryBookings(ctx, r.db, q, args...)
}

// slotLockName is the MySQL user-level lock guarding one field on one day.
func slotLockName(fieldID uint64, date time.Time) string {
	return fmt.Sprintf("field_booking:slot:%d:%s", fieldID, timeslot.FormatDate(date))
}

// WithSlotLock pins a pooled connection, takes GET_LOCK for (fieldID, date),
// runs fn in a READ COMMITTED transaction on that connection, commits, and
// releases the lock. The unique slot index stays in force underneath.
func (r *BookingRepo) WithSlotLock(ctx context.Context, fieldID uint64, date time.Time, fn func(booking.SlotTx) error) error {
	conn, err := r.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Close()

	name := slotLockName(fieldID, date)
	wait := int(math.Ceil(r.lockTimeout.Seconds()))
	lctx, cancel := context.WithTimeout(ctx, r.lockTimeout+r.timeout)
	var got sql.NullInt64
	err = conn.QueryRowContext(lctx, "SELECT GET_LOCK(?, ?)", name, wait).Scan(&got)
	cancel()
	if err != nil {
		return fmt.Errorf("get slot lock: %w", err)
	}
	if !got.Valid || got.Int64 != 1 {
		return ErrSlotLockTimeout
	}
	defer func() {
		rctx, cancel := withTimeout(context.WithoutCancel(ctx), r.timeout)
		defer cancel()
		var released sql.NullInt64
		_ = conn.QueryRowContext(rctx, "SELECT RELEASE_LOCK(?)", name).Scan(&released)
	}()

	tx, err := conn.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := fn(&slotTx{tx: tx, timeout: r.timeout}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	committed = true
	return nil
}

type slotTx struct {
	tx      *sql.Tx
	timeout time.Duration
}

// FindBooking reads the booking row with an exclusive row lock.
func (t *slotTx) FindBooking(ctx context.Context, id uint64) (*model.Booking, error) {
	ctx, cancel := withTimeout(ctx, t.timeout)
	defer cancel()
	return findBooking(ctx, t.tx, bookingSelect+" WHERE b.id = ? FOR UPDATE OF b", id)
}

func (t *slotTx) ListActiveBookings(ctx context.Context, fieldID uint64, date time.Time, excludeID uint64) ([]*model.Booking, error) {
	ctx, cancel := withTimeout(ctx, t.timeout)
	defer cancel()
	return queryBookings(ctx, t.tx, bookingSelect+`
		WHERE b.field_id = ? AND b.booking_date = ? AND b.status <> 'cancelled' AND b.id <> ?
		ORDER BY b.start_time`, fieldID, timeslot.FormatDate(date), excludeID)
}

func (t *slotTx) InsertBooking(ctx context.Context, b *model.Booking) error {
	ctx, cancel := withTimeout(ctx, t.timeout)
	defer cancel()
	res, err := t.tx.ExecContext(ctx, `INSERT INTO bookings
		(user_id, field_id, booking_date, start_time, end_time, duration, total_price,
		 status, payment_status, payment_method, notes, booking_code)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.UserID, b.FieldID, timeslot.FormatDate(b.BookingDate), b.StartTime, b.EndTime, b.Duration, b.TotalPrice,
		string(b.Status), string(b.PaymentStatus), paymentMethodArg(b.PaymentMethod), nullString(b.Notes), b.BookingCode)
	if err != nil {
		if IsDuplicateEntry(err) {
			return fmt.Errorf("insert booking: %w", booking.ErrDuplicateSlot)
		}
		return fmt.Errorf("insert booking: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	b.ID = uint64(id)
	return t.tx.QueryRowContext(ctx, "SELECT created_at, updated_at FROM bookings WHERE id = ?", b.ID).
		Scan(&b.CreatedAt, &b.UpdatedAt)
}

func (t *slotTx) UpdateBooking(ctx context.Context, b *model.Booking) error {
	ctx, cancel := withTimeout(ctx, t.timeout)
	defer cancel()
	_, err := t.tx.ExecContext(ctx, `UPDATE bookings SET
		booking_date = ?, start_time = ?, end_time = ?, duration = ?, total_price = ?,
		status = ?, payment_status = ?, payment_method = ?, notes = ?
		WHERE id = ?`,
		timeslot.FormatDate(b.BookingDate), b.StartTime, b.EndTime, b.Duration, b.TotalPrice,
		string(b.Status), string(b.PaymentStatus), paymentMethodArg(b.PaymentMethod), nullString(b.Notes), b.ID)
	if err != nil {
		if IsDuplicateEntry(err) {
			return fmt.Errorf("update booking: %w", booking.ErrDuplicateSlot)
		}
		return fmt.Errorf("update booking: %w", err)
	}
	return nil
}

func paymentMethodArg(m *model.PaymentMethod) sql.NullString {
	if m == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(*m), Valid: true}
}
