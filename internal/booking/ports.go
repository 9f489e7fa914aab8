package booking

import (
	"context"
	"errors"
	"time"

	"github.com/iliyamo/field-booking/internal/model"
)

// ErrDuplicateSlot is returned by stores when the unique slot index rejects a
// write. The allocator reports it as a slot conflict.
var ErrDuplicateSlot = errors.New("booking: duplicate slot")

// Finders return (nil, nil) when the record does not exist.

type UserLookup interface {
	FindUser(ctx context.Context, id uint64) (*model.User, error)
}

type FieldLookup interface {
	FindField(ctx context.Context, id uint64) (*model.Field, error)
	// ListActiveFields returns active fields ordered by name.
	ListActiveFields(ctx context.Context) ([]*model.Field, error)
}

// BookingStore persists bookings. List methods return non-cancelled bookings
// with their User summary populated.
type BookingStore interface {
	FindBooking(ctx context.Context, id uint64) (*model.Booking, error)
	ListActiveBookings(ctx context.Context, fieldID uint64, date time.Time) ([]*model.Booking, error)
	ListActiveBookingsOnDate(ctx context.Context, date time.Time) ([]*model.Booking, error)

	// WithSlotLock runs fn while holding the exclusive lock for (fieldID, date)
	// inside a single transaction. fn's error rolls the transaction back.
	WithSlotLock(ctx context.Context, fieldID uint64, date time.Time, fn func(SlotTx) error) error
}

// SlotTx is the transactional view handed to WithSlotLock callbacks.
type SlotTx interface {
	// FindBooking reads and locks the row.
	FindBooking(ctx context.Context, id uint64) (*model.Booking, error)
	ListActiveBookings(ctx context.Context, fieldID uint64, date time.Time, excludeID uint64) ([]*model.Booking, error)
	// InsertBooking sets b.ID and timestamps.
	InsertBooking(ctx context.Context, b *model.Booking) error
	UpdateBooking(ctx context.Context, b *model.Booking) error
}
