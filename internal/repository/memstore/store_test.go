package memstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/field-booking/internal/booking"
	"github.com/iliyamo/field-booking/internal/model"
	"github.com/iliyamo/field-booking/internal/repository"
	"github.com/iliyamo/field-booking/internal/timeslot"
)

func seed(t *testing.T) (*Store, *model.User, *model.Field) {
	t.Helper()
	s := New()
	u := &model.User{FullName: "Alice", Phone: "0901234567"}
	require.NoError(t, s.CreateCustomer(context.Background(), u))
	f := &model.Field{Name: "Pitch A", FieldType: model.FieldType5v5, Location: "North", PricePerHour: decimal.NewFromInt(100), IsActive: true, OpenTime: timeslot.At(6, 0), CloseTime: timeslot.At(23, 0)}
	require.NoError(t, s.CreateField(context.Background(), f))
	return s, u, f
}

func insert(t *testing.T, s *Store, b *model.Booking) {
	t.Helper()
	err := s.WithSlotLock(context.Background(), b.FieldID, b.BookingDate, func(tx booking.SlotTx) error {
		return tx.InsertBooking(context.Background(), b)
	})
	require.NoError(t, err)
}

func mkBooking(u *model.User, f *model.Field, date string, start, end int, status model.BookingStatus) *model.Booking {
	d, _ := timeslot.ParseDate(date)
	return &model.Booking{
		UserID: u.ID, FieldID: f.ID, BookingDate: d,
		StartTime: timeslot.At(start, 0), EndTime: timeslot.At(end, 0), Duration: end - start,
		Status: status, PaymentStatus: model.PaymentUnpaid, BookingCode: "BK-TEST",
	}
}

func TestPhoneIsUnique(t *testing.T) {
	s, _, _ := seed(t)
	err := s.CreateCustomer(context.Background(), &model.User{FullName: "Other", Phone: "0901234567"})
	assert.ErrorIs(t, err, repository.ErrPhoneExists)

	found, err := s.FindCustomerByPhone(context.Background(), "0901234567")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "Alice", found.FullName)
	assert.Equal(t, model.RoleCustomer, found.Role)
}

func TestUniqueSlotIgnoresCancelled(t *testing.T) {
	s, u, f := seed(t)
	ctx := context.Background()
	first := mkBooking(u, f, "2024-06-01", 18, 20, model.StatusPending)
	insert(t, s, first)

	dup := mkBooking(u, f, "2024-06-01", 18, 20, model.StatusPending)
	err := s.WithSlotLock(ctx, f.ID, dup.BookingDate, func(tx booking.SlotTx) error {
		return tx.InsertBooking(ctx, dup)
	})
	assert.ErrorIs(t, err, booking.ErrDuplicateSlot)

	first.Status = model.StatusCancelled
	require.NoError(t, s.WithSlotLock(ctx, f.ID, first.BookingDate, func(tx booking.SlotTx) error {
		return tx.UpdateBooking(ctx, first)
	}))
	insert(t, s, mkBooking(u, f, "2024-06-01", 18, 20, model.StatusPending))
}

func TestFailedCallbackDiscardsWrites(t *testing.T) {
	s, u, f := seed(t)
	ctx := context.Background()
	b := mkBooking(u, f, "2024-06-01", 8, 9, model.StatusPending)
	boom := errors.New("boom")

	err := s.WithSlotLock(ctx, f.ID, b.BookingDate, func(tx booking.SlotTx) error {
		require.NoError(t, tx.InsertBooking(ctx, b))
		staged, err := tx.ListActiveBookings(ctx, f.ID, b.BookingDate, 0)
		require.NoError(t, err)
		assert.Len(t, staged, 1, "staged rows are visible inside the transaction")
		return boom
	})
	assert.ErrorIs(t, err, boom)

	list, err := s.ListActiveBookings(ctx, f.ID, b.BookingDate)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestLockedReadBlocksOtherTransactions(t *testing.T) {
	s, u, f := seed(t)
	ctx := context.Background()
	b := mkBooking(u, f, "2024-06-01", 8, 9, model.StatusPending)
	insert(t, s, b)
	other, _ := timeslot.ParseDate("2024-06-03")

	locked := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- s.WithSlotLock(ctx, f.ID, other, func(tx booking.SlotTx) error {
			got, err := tx.FindBooking(ctx, b.ID)
			if err != nil {
				return err
			}
			close(locked)
			<-release
			got.Status = model.StatusConfirmed
			return tx.UpdateBooking(ctx, got)
		})
	}()
	<-locked

	// a writer on a different (field, date) key still waits for the row
	wctx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	err := s.WithSlotLock(wctx, f.ID, b.BookingDate, func(tx booking.SlotTx) error {
		_, err := tx.FindBooking(wctx, b.ID)
		return err
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(release)
	require.NoError(t, <-done)

	// the row lock is released with the transaction and sees its write
	err = s.WithSlotLock(ctx, f.ID, b.BookingDate, func(tx booking.SlotTx) error {
		got, err := tx.FindBooking(ctx, b.ID)
		require.NoError(t, err)
		assert.Equal(t, model.StatusConfirmed, got.Status)
		return nil
	})
	require.NoError(t, err)
}

func TestListBookingsFiltersAndOrder(t *testing.T) {
	s, u, f := seed(t)
	ctx := context.Background()
	insert(t, s, mkBooking(u, f, "2024-06-01", 8, 9, model.StatusPending))
	insert(t, s, mkBooking(u, f, "2024-06-01", 10, 11, model.StatusConfirmed))
	insert(t, s, mkBooking(u, f, "2024-06-03", 8, 9, model.StatusPending))

	all, err := s.ListBookings(ctx, repository.BookingFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "2024-06-03", timeslot.FormatDate(all[0].BookingDate))
	assert.Equal(t, "10:00", all[1].StartTime.String())
	assert.Equal(t, "Alice", all[0].User.FullName)
	assert.Equal(t, "Pitch A", all[0].Field.Name)

	pending := model.StatusPending
	from := time.Date(2024, 6, 2, 0, 0, 0, 0, time.UTC)
	got, err := s.ListBookings(ctx, repository.BookingFilter{Status: &pending, From: &from})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "2024-06-03", timeslot.FormatDate(got[0].BookingDate))

	other := uint64(99)
	got, err = s.ListBookings(ctx, repository.BookingFilter{UserID: &other})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestFieldLifecycle(t *testing.T) {
	s, u, f := seed(t)
	ctx := context.Background()

	spare := &model.Field{Name: "Annex", FieldType: model.FieldType7v7, Location: "South", IsActive: false}
	require.NoError(t, s.CreateField(ctx, spare))

	active, err := s.ListActiveFields(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)

	found, err := s.ListFields(ctx, repository.FieldFilter{Search: "sou"})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "Annex", found[0].Name)

	spare.IsActive = true
	require.NoError(t, s.UpdateField(ctx, spare))
	active, _ = s.ListActiveFields(ctx)
	assert.Equal(t, []string{"Annex", "Pitch A"}, []string{active[0].Name, active[1].Name})

	require.NoError(t, s.DeleteField(ctx, spare.ID))
	assert.ErrorIs(t, s.DeleteField(ctx, spare.ID), repository.ErrFieldNotFound)

	insert(t, s, mkBooking(u, f, "2024-06-01", 8, 9, model.StatusPending))
	assert.ErrorIs(t, s.DeleteField(ctx, f.ID), repository.ErrConflict)
}

func TestSeedDemo(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, SeedDemo(ctx, s))

	admin, err := s.FindUser(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, admin)
	assert.True(t, admin.Role.IsElevated())

	fields, err := s.ListActiveFields(ctx)
	require.NoError(t, err)
	assert.Len(t, fields, 3)
}
