package booking_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/field-booking/internal/booking"
	"github.com/iliyamo/field-booking/internal/timeslot"
)

func unavailable(a *booking.Availability) []string {
	var out []string
	for _, s := range a.Slots {
		if !s.Available {
			out = append(out, s.Start.String()+"-"+s.End.String())
		}
	}
	return out
}

func TestProjectUsesFieldHours(t *testing.T) {
	f := newFixture(t)
	f.book(t, booking.Anonymous(), f.alice.ID, f.field, "18:00", "20:00")

	a, err := f.proj.Project(context.Background(), f.field.ID, day)
	require.NoError(t, err)
	require.Len(t, a.Slots, 17)
	assert.Equal(t, "06:00", a.Slots[0].Start.String())
	assert.Equal(t, "23:00", a.Slots[16].End.String())
	assert.Equal(t, []string{"18:00-19:00", "19:00-20:00"}, unavailable(a))

	again, err := f.proj.Project(context.Background(), f.field.ID, day)
	require.NoError(t, err)
	assert.Equal(t, a.Slots, again.Slots)
}

func TestProjectFixedWindow(t *testing.T) {
	f := newFixture(t)
	f.book(t, booking.Anonymous(), f.alice.ID, f.field, "21:00", "23:00")
	proj := booking.NewProjector(f.store, f.store, booking.ProjectorOptions{
		Window:       booking.WindowFixed,
		DefaultOpen:  timeslot.At(6, 0),
		DefaultClose: timeslot.At(22, 0),
	})

	a, err := proj.Project(context.Background(), f.field.ID, day)
	require.NoError(t, err)
	require.Len(t, a.Slots, 16)
	assert.Equal(t, []string{"21:00-22:00"}, unavailable(a))
}

func TestProjectIgnoresCancelledBookings(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.book(t, booking.Customer(f.alice.ID), f.alice.ID, f.field, "10:00", "12:00")
	_, err := f.alloc.Cancel(ctx, booking.Customer(f.alice.ID), b.ID)
	require.NoError(t, err)

	a, err := f.proj.Project(ctx, f.field.ID, day)
	require.NoError(t, err)
	assert.Empty(t, unavailable(a))
}

func TestProjectErrors(t *testing.T) {
	f := newFixture(t)
	_, err := f.proj.Project(context.Background(), 999, day)
	requireKind(t, err, booking.KindNotFound)

	_, err = f.proj.Project(context.Background(), f.field.ID, "June 1")
	requireKind(t, err, booking.KindInvalidRange)
}

func TestFindAvailableFieldsPartitions(t *testing.T) {
	f := newFixture(t)
	taken := f.book(t, booking.Anonymous(), f.bob.ID, f.otherPark, "17:00", "19:00")

	res, err := f.proj.FindAvailableFields(context.Background(), day, "18:00", "20:00")
	require.NoError(t, err)

	require.Len(t, res.Available, 1)
	assert.Equal(t, f.field.ID, res.Available[0].Field.ID)
	assert.True(t, decimal.NewFromInt(400000).Equal(res.Available[0].EstimatedPrice), res.Available[0].EstimatedPrice.String())

	require.Len(t, res.Unavailable, 1)
	u := res.Unavailable[0]
	assert.Equal(t, f.otherPark.ID, u.Field.ID)
	assert.Equal(t, taken.ID, u.Conflict.BookingID)
	assert.Equal(t, "Bob Tran", u.Conflict.RequesterName)
	assert.Equal(t, "17:00", u.Conflict.StartTime.String())
	assert.Equal(t, "19:00", u.Conflict.EndTime.String())
}

func TestFindAvailableFieldsValidation(t *testing.T) {
	u := untouchable{t}
	proj := booking.NewProjector(u, u, booking.ProjectorOptions{})
	cases := map[string][3]string{
		"missing":       {"", "10:00", "11:00"},
		"bad date":      {"2024/06/01", "10:00", "11:00"},
		"bad time":      {day, "10h", "11:00"},
		"reversed":      {day, "11:00", "10:00"},
		"too short":     {day, "10:00", "10:30"},
		"thirteen hour": {day, "06:00", "19:00"},
		"partial hour":  {day, "10:00", "11:30"},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := proj.FindAvailableFields(context.Background(), in[0], in[1], in[2])
			requireKind(t, err, booking.KindInvalidRange)
		})
	}
}
