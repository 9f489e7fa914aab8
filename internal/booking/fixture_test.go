package booking_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/field-booking/internal/booking"
	"github.com/iliyamo/field-booking/internal/model"
	"github.com/iliyamo/field-booking/internal/repository/memstore"
	"github.com/iliyamo/field-booking/internal/timeslot"
)

const day = "2024-06-01"

type recordingPublisher struct {
	mu     sync.Mutex
	events []booking.BookingCreatedEvent
	err    error
}

func (p *recordingPublisher) PublishBookingCreated(_ context.Context, ev booking.BookingCreatedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func (p *recordingPublisher) Events() []booking.BookingCreatedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]booking.BookingCreatedEvent(nil), p.events...)
}

type fixture struct {
	store     *memstore.Store
	alloc     *booking.Allocator
	proj      *booking.Projector
	pub       *recordingPublisher
	alice     *model.User
	bob       *model.User
	admin     *model.User
	field     *model.Field
	closed    *model.Field
	otherPark *model.Field
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	s := memstore.New()

	f := &fixture{store: s, pub: &recordingPublisher{}}
	f.alice = &model.User{FullName: "Alice Nguyen", Phone: "0901234567"}
	f.bob = &model.User{FullName: "Bob Tran", Phone: "0907654321"}
	require.NoError(t, s.CreateCustomer(ctx, f.alice))
	require.NoError(t, s.CreateCustomer(ctx, f.bob))
	f.admin = &model.User{FullName: "Admin", Phone: "0900000000", Role: model.RoleAdmin, IsActive: true}
	require.NoError(t, s.CreateUser(ctx, f.admin))

	f.field = newField("Pitch A", true)
	f.closed = newField("Pitch B", false)
	f.otherPark = newField("Pitch C", true)
	for _, fl := range []*model.Field{f.field, f.closed, f.otherPark} {
		require.NoError(t, s.CreateField(ctx, fl))
	}

	now := time.Date(2024, 5, 20, 23, 30, 0, 0, time.UTC)
	f.alloc = booking.NewAllocator(s, s, s, booking.Options{
		Publisher: f.pub,
		Location:  time.FixedZone("ICT", 7*3600),
		Now:       func() time.Time { return now },
	})
	f.proj = booking.NewProjector(s, s, booking.ProjectorOptions{Window: booking.WindowField})
	return f
}

func newField(name string, active bool) *model.Field {
	return &model.Field{
		Name:         name,
		FieldType:    model.FieldType5v5,
		Location:     "District 1",
		PricePerHour: decimal.NewFromInt(200000),
		IsActive:     active,
		OpenTime:     timeslot.At(6, 0),
		CloseTime:    timeslot.At(23, 0),
	}
}

func (f *fixture) book(t *testing.T, actor booking.Actor, userID uint64, field *model.Field, start, end string) *model.Booking {
	t.Helper()
	b, err := f.alloc.Allocate(context.Background(), actor, booking.AllocateRequest{
		FieldID: field.ID, UserID: userID, Date: day, StartTime: start, EndTime: end,
	})
	require.NoError(t, err)
	return b
}

func requireKind(t *testing.T, err error, kind booking.Kind) *booking.Error {
	t.Helper()
	require.Error(t, err)
	var be *booking.Error
	require.True(t, errors.As(err, &be), "expected *booking.Error, got %T: %v", err, err)
	require.Equal(t, kind, be.Kind, be.Error())
	return be
}

// requireNoOverlaps checks the core invariant over every field and the test day.
func requireNoOverlaps(t *testing.T, s *memstore.Store) {
	t.Helper()
	d, _ := timeslot.ParseDate(day)
	list, err := s.ListActiveBookingsOnDate(context.Background(), d)
	require.NoError(t, err)
	for i := range list {
		for j := i + 1; j < len(list); j++ {
			a, b := list[i], list[j]
			if a.FieldID != b.FieldID {
				continue
			}
			require.False(t, a.Interval().Overlaps(b.Interval()),
				"bookings %d (%s) and %d (%s) overlap", a.ID, a.Interval(), b.ID, b.Interval())
		}
	}
}

// untouchable fails the test if any persistence method is reached.
type untouchable struct{ t *testing.T }

func (u untouchable) FindUser(context.Context, uint64) (*model.User, error) {
	u.t.Fatal("FindUser called")
	return nil, nil
}

func (u untouchable) FindField(context.Context, uint64) (*model.Field, error) {
	u.t.Fatal("FindField called")
	return nil, nil
}

func (u untouchable) ListActiveFields(context.Context) ([]*model.Field, error) {
	u.t.Fatal("ListActiveFields called")
	return nil, nil
}

func (u untouchable) FindBooking(context.Context, uint64) (*model.Booking, error) {
	u.t.Fatal("FindBooking called")
	return nil, nil
}

func (u untouchable) ListActiveBookings(context.Context, uint64, time.Time) ([]*model.Booking, error) {
	u.t.Fatal("ListActiveBookings called")
	return nil, nil
}

func (u untouchable) ListActiveBookingsOnDate(context.Context, time.Time) ([]*model.Booking, error) {
	u.t.Fatal("ListActiveBookingsOnDate called")
	return nil, nil
}

func (u untouchable) WithSlotLock(context.Context, uint64, time.Time, func(booking.SlotTx) error) error {
	u.t.Fatal("WithSlotLock called")
	return nil
}
