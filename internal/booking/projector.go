package booking

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/field-booking/internal/model"
	"github.com/iliyamo/field-booking/internal/timeslot"
)

// WindowPolicy selects which operating window Project enumerates.
type WindowPolicy string

const (
	// WindowField uses each field's own open and close times.
	WindowField WindowPolicy = "field"
	// WindowFixed uses ProjectorOptions.DefaultOpen/DefaultClose for every field.
	WindowFixed WindowPolicy = "fixed"
)

func (p WindowPolicy) Valid() bool { return p == WindowField || p == WindowFixed }

type ProjectorOptions struct {
	Window       WindowPolicy
	DefaultOpen  timeslot.TimeOfDay
	DefaultClose timeslot.TimeOfDay
}

// Projector is the read side: it never writes and never takes the slot lock.
type Projector struct {
	fields   FieldLookup
	bookings BookingStore
	opts     ProjectorOptions
}

func NewProjector(fields FieldLookup, bookings BookingStore, opts ProjectorOptions) *Projector {
	if !opts.Window.Valid() {
		opts.Window = WindowField
	}
	if opts.DefaultClose <= opts.DefaultOpen {
		opts.DefaultOpen, opts.DefaultClose = timeslot.At(6, 0), timeslot.At(22, 0)
	}
	return &Projector{fields: fields, bookings: bookings, opts: opts}
}

type Slot struct {
	Start     timeslot.TimeOfDay
	End       timeslot.TimeOfDay
	Available bool
}

type Availability struct {
	Field *model.Field
	Date  time.Time
	Open  timeslot.TimeOfDay
	Close timeslot.TimeOfDay
	Slots []Slot
}

// window falls back to the defaults when a field's hours are unusable.
func (p *Projector) window(f *model.Field) (timeslot.TimeOfDay, timeslot.TimeOfDay) {
	if p.opts.Window == WindowField && f.CloseTime > f.OpenTime && f.CloseTime.Valid() {
		return f.OpenTime, f.CloseTime
	}
	return p.opts.DefaultOpen, p.opts.DefaultClose
}

// Project lists the one-hour slots of fieldID on date, marking each slot that
// any non-cancelled booking overlaps as unavailable.
func (p *Projector) Project(ctx context.Context, fieldID uint64, date string) (*Availability, error) {
	d, err := timeslot.ParseDate(date)
	if err != nil {
		return nil, &Error{Kind: KindInvalidRange, Message: "date must be YYYY-MM-DD", Err: err}
	}
	field, err := p.fields.FindField(ctx, fieldID)
	if err != nil {
		return nil, fmt.Errorf("find field %d: %w", fieldID, err)
	}
	if field == nil {
		return nil, newError(KindNotFound, "field %d not found", fieldID)
	}
	held, err := p.bookings.ListActiveBookings(ctx, field.ID, d)
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}

	open, closeAt := p.window(field)
	hours := timeslot.Hourly(open, closeAt)
	slots := make([]Slot, 0, len(hours))
	for _, iv := range hours {
		slots = append(slots, Slot{Start: iv.Start, End: iv.End, Available: firstOverlap(held, iv) == nil})
	}
	return &Availability{Field: field, Date: d, Open: open, Close: closeAt, Slots: slots}, nil
}

type AvailableField struct {
	Field          *model.Field
	EstimatedPrice decimal.Decimal
}

type UnavailableField struct {
	Field    *model.Field
	Conflict *Conflict
}

// FieldSearch partitions the active fields for one requested interval.
type FieldSearch struct {
	Date        time.Time
	Interval    timeslot.Interval
	Available   []AvailableField
	Unavailable []UnavailableField
}

// FindAvailableFields checks every active field against [start, end) on date.
// All input problems are reported as InvalidRange.
func (p *Projector) FindAvailableFields(ctx context.Context, date, start, end string) (*FieldSearch, error) {
	if blank(date) || blank(start) || blank(end) {
		return nil, newError(KindInvalidRange, "date, start time and end time are required")
	}
	d, err := timeslot.ParseDate(date)
	if err != nil {
		return nil, &Error{Kind: KindInvalidRange, Message: "date must be YYYY-MM-DD", Err: err}
	}
	iv, err := parseInterval(start, end)
	if err != nil {
		return nil, err
	}
	minutes := iv.Minutes()
	if minutes < MinDurationHours*60 || minutes > MaxDurationHours*60 {
		return nil, newError(KindInvalidRange, "duration must be between %d and %d hours", MinDurationHours, MaxDurationHours)
	}
	// only intervals Allocate would accept are offered
	if minutes%60 != 0 {
		return nil, newError(KindInvalidRange, "duration must be a whole number of hours")
	}

	fields, err := p.fields.ListActiveFields(ctx)
	if err != nil {
		return nil, fmt.Errorf("list fields: %w", err)
	}
	held, err := p.bookings.ListActiveBookingsOnDate(ctx, d)
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	byField := make(map[uint64][]*model.Booking)
	for _, b := range held {
		byField[b.FieldID] = append(byField[b.FieldID], b)
	}

	hours := decimal.NewFromInt(int64(minutes / 60))
	out := &FieldSearch{
		Date:        d,
		Interval:    iv,
		Available:   []AvailableField{},
		Unavailable: []UnavailableField{},
	}
	for _, f := range fields {
		if c := firstOverlap(byField[f.ID], iv); c != nil {
			out.Unavailable = append(out.Unavailable, UnavailableField{Field: f, Conflict: conflictOf(c)})
			continue
		}
		out.Available = append(out.Available, AvailableField{Field: f, EstimatedPrice: f.PricePerHour.Mul(hours).Round(2)})
	}
	return out, nil
}
