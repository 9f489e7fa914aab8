// Package booking allocates, reschedules and cancels field bookings without
// double-booking, and projects slot availability from the same data.
//
// Every write runs under the store's per (field, date) slot lock, so the
// overlap check and the write it guards are atomic with respect to other
// writers on the same field and day.
package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/field-booking/internal/logger"
	"github.com/iliyamo/field-booking/internal/metrics"
	"github.com/iliyamo/field-booking/internal/model"
	"github.com/iliyamo/field-booking/internal/timeslot"
)

const (
	MinDurationHours = 1
	MaxDurationHours = 12

	defaultCodePrefix   = "BK"
	defaultEventTimeout = 3 * time.Second
	rescheduleAttempts  = 3
)

// Options tunes an Allocator. Zero values fall back to defaults.
type Options struct {
	Publisher    Publisher
	Logger       *logger.Logger
	Metrics      *metrics.BookingMetrics
	CodePrefix   string
	Location     *time.Location // zone of the booking code date stamp
	EventTimeout time.Duration
	Now          func() time.Time
}

type Allocator struct {
	users    UserLookup
	fields   FieldLookup
	bookings BookingStore

	pub          Publisher
	log          *logger.Logger
	metrics      *metrics.BookingMetrics
	codePrefix   string
	loc          *time.Location
	eventTimeout time.Duration
	now          func() time.Time

	inflight sync.WaitGroup
}

func NewAllocator(users UserLookup, fields FieldLookup, bookings BookingStore, opts Options) *Allocator {
	a := &Allocator{
		users:        users,
		fields:       fields,
		bookings:     bookings,
		pub:          opts.Publisher,
		log:          opts.Logger,
		metrics:      opts.Metrics,
		codePrefix:   opts.CodePrefix,
		loc:          opts.Location,
		eventTimeout: opts.EventTimeout,
		now:          opts.Now,
	}
	if a.pub == nil {
		a.pub = NopPublisher{}
	}
	if a.log == nil {
		a.log = logger.Nop()
	}
	if a.codePrefix == "" {
		a.codePrefix = defaultCodePrefix
	}
	if a.loc == nil {
		a.loc = time.UTC
	}
	if a.eventTimeout <= 0 {
		a.eventTimeout = defaultEventTimeout
	}
	if a.now == nil {
		a.now = time.Now
	}
	return a
}

// AllocateRequest carries the raw, unvalidated booking input. Date is
// YYYY-MM-DD and times are HH:MM. Duration and TotalPrice are derived when nil.
type AllocateRequest struct {
	FieldID       uint64
	UserID        uint64
	Date          string
	StartTime     string
	EndTime       string
	Duration      *int
	TotalPrice    *decimal.Decimal
	PaymentMethod *model.PaymentMethod
	Notes         *string
}

// Changes lists the reschedule edits; nil means unchanged. Status and
// PaymentStatus require an elevated actor.
type Changes struct {
	Date          *string
	StartTime     *string
	Duration      *int
	Notes         *string
	PaymentMethod *model.PaymentMethod
	Status        *model.BookingStatus
	PaymentStatus *model.PaymentStatus
}

type slot struct {
	date  time.Time
	iv    timeslot.Interval
	hours int
}

func parseSlot(date, start, end string, duration *int) (slot, error) {
	d, err := timeslot.ParseDate(date)
	if err != nil {
		return slot{}, &Error{Kind: KindInvalidRange, Message: "booking date must be YYYY-MM-DD", Err: err}
	}
	iv, err := parseInterval(start, end)
	if err != nil {
		return slot{}, err
	}
	hours, err := durationHours(iv.Minutes())
	if err != nil {
		return slot{}, err
	}
	if duration != nil && *duration != hours {
		return slot{}, newError(KindInvalidRange, "duration %d does not match %s", *duration, iv)
	}
	return slot{date: d, iv: iv, hours: hours}, nil
}

func parseInterval(start, end string) (timeslot.Interval, error) {
	s, err := timeslot.ParseTimeOfDay(start)
	if err != nil {
		return timeslot.Interval{}, &Error{Kind: KindInvalidRange, Message: "start time must be HH:MM", Err: err}
	}
	e, err := timeslot.ParseTimeOfDay(end)
	if err != nil {
		return timeslot.Interval{}, &Error{Kind: KindInvalidRange, Message: "end time must be HH:MM", Err: err}
	}
	iv := timeslot.Interval{Start: s, End: e}
	if iv.Minutes() <= 0 {
		return timeslot.Interval{}, newError(KindInvalidRange, "end time must be after start time")
	}
	return iv, nil
}

func durationHours(minutes int) (int, error) {
	if minutes%60 != 0 {
		return 0, newError(KindInvalidDuration, "duration must be a whole number of hours")
	}
	h := minutes / 60
	if h < MinDurationHours || h > MaxDurationHours {
		return 0, newError(KindInvalidDuration, "duration must be between %d and %d hours", MinDurationHours, MaxDurationHours)
	}
	return h, nil
}

func blank(s string) bool { return strings.TrimSpace(s) == "" }

// Allocate books a slot. Anonymous actors must name an existing customer and
// an active field; a successful anonymous booking emits BookingCreatedEvent.
func (a *Allocator) Allocate(ctx context.Context, actor Actor, req AllocateRequest) (_ *model.Booking, err error) {
	defer func() { a.metrics.IncOutcome("allocate", outcome(err)) }()

	if actor.Kind == ActorCustomer && req.UserID == 0 {
		req.UserID = actor.UserID
	}
	if req.FieldID == 0 || req.UserID == 0 || blank(req.Date) || blank(req.StartTime) || blank(req.EndTime) {
		return nil, newError(KindInvalidInput, "field id, user id, booking date, start time and end time are required")
	}
	s, err := parseSlot(req.Date, req.StartTime, req.EndTime, req.Duration)
	if err != nil {
		return nil, err
	}
	if req.TotalPrice != nil && req.TotalPrice.IsNegative() {
		return nil, newError(KindInvalidInput, "total price must not be negative")
	}
	if req.PaymentMethod != nil && !req.PaymentMethod.Valid() {
		return nil, newError(KindInvalidInput, "unknown payment method %q", *req.PaymentMethod)
	}
	if actor.Kind == ActorCustomer && req.UserID != actor.UserID {
		return nil, newError(KindForbidden, "customers can only book for themselves")
	}

	user, err := a.users.FindUser(ctx, req.UserID)
	if err != nil {
		return nil, fmt.Errorf("find user %d: %w", req.UserID, err)
	}
	if user == nil || (actor.Kind == ActorAnonymous && user.Role != model.RoleCustomer) {
		return nil, newError(KindNotFound, "customer %d not found", req.UserID)
	}
	field, err := a.fields.FindField(ctx, req.FieldID)
	if err != nil {
		return nil, fmt.Errorf("find field %d: %w", req.FieldID, err)
	}
	if field == nil {
		return nil, newError(KindNotFound, "field %d not found", req.FieldID)
	}
	if !field.IsActive && !actor.IsElevated() {
		return nil, newError(KindInactive, "field %q is not accepting bookings", field.Name)
	}

	price := field.PricePerHour.Mul(decimal.NewFromInt(int64(s.hours)))
	if req.TotalPrice != nil {
		price = *req.TotalPrice
	}
	b := &model.Booking{
		UserID:        user.ID,
		FieldID:       field.ID,
		BookingDate:   s.date,
		StartTime:     s.iv.Start,
		EndTime:       s.iv.End,
		Duration:      s.hours,
		TotalPrice:    price,
		Status:        model.StatusPending,
		PaymentStatus: model.PaymentUnpaid,
		PaymentMethod: req.PaymentMethod,
		Notes:         req.Notes,
		BookingCode:   NewCode(a.codePrefix, a.now(), a.loc),
	}

	err = a.withSlotLock(ctx, field.ID, s.date, func(tx SlotTx) error {
		held, err := tx.ListActiveBookings(ctx, field.ID, s.date, 0)
		if err != nil {
			return fmt.Errorf("list bookings: %w", err)
		}
		if c := firstOverlap(held, s.iv); c != nil {
			return slotConflict(c)
		}
		if err := tx.InsertBooking(ctx, b); err != nil {
			return writeConflict(ctx, tx, b, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	b.User = user.Summary()
	b.Field = field.Summary()

	lctx := a.log.WithFields(ctx, map[string]any{
		"booking_id": b.ID,
		"field_id":   b.FieldID,
		"date":       timeslot.FormatDate(b.BookingDate),
		"slot":       b.Interval().String(),
		"actor":      actor.Kind.String(),
	})
	a.log.Info(lctx, "booking allocated")

	if actor.Kind == ActorAnonymous {
		a.publishCreated(lctx, newCreatedEvent(b, user, field))
	}
	return b, nil
}

// errMovedConcurrently means the booking's date changed between the unlocked
// read and the locked re-read; the caller retries under the new date's lock.
var errMovedConcurrently = errors.New("booking moved concurrently")

// Reschedule edits a non-terminal booking. Moving it in time re-runs the
// overlap check excluding the booking itself; changing the duration reprices
// it from the field's current hourly rate.
func (a *Allocator) Reschedule(ctx context.Context, actor Actor, id uint64, ch Changes) (_ *model.Booking, err error) {
	defer func() { a.metrics.IncOutcome("reschedule", outcome(err)) }()

	if actor.Kind == ActorAnonymous {
		return nil, newError(KindForbidden, "sign in to change a booking")
	}
	if (ch.Status != nil || ch.PaymentStatus != nil) && !actor.IsElevated() {
		return nil, newError(KindForbidden, "only staff can change booking or payment status")
	}
	if ch.Status != nil && !ch.Status.Valid() {
		return nil, newError(KindInvalidInput, "unknown status %q", *ch.Status)
	}
	if ch.PaymentStatus != nil && !ch.PaymentStatus.Valid() {
		return nil, newError(KindInvalidInput, "unknown payment status %q", *ch.PaymentStatus)
	}
	if ch.PaymentMethod != nil && !ch.PaymentMethod.Valid() {
		return nil, newError(KindInvalidInput, "unknown payment method %q", *ch.PaymentMethod)
	}

	var newDate *time.Time
	if ch.Date != nil {
		d, err := timeslot.ParseDate(*ch.Date)
		if err != nil {
			return nil, &Error{Kind: KindInvalidRange, Message: "booking date must be YYYY-MM-DD", Err: err}
		}
		newDate = &d
	}
	var newStart *timeslot.TimeOfDay
	if ch.StartTime != nil {
		t, err := timeslot.ParseTimeOfDay(*ch.StartTime)
		if err != nil {
			return nil, &Error{Kind: KindInvalidRange, Message: "start time must be HH:MM", Err: err}
		}
		newStart = &t
	}
	if ch.Duration != nil && (*ch.Duration < MinDurationHours || *ch.Duration > MaxDurationHours) {
		return nil, newError(KindInvalidDuration, "duration must be between %d and %d hours", MinDurationHours, MaxDurationHours)
	}

	for attempt := 0; ; attempt++ {
		err = a.reschedule(ctx, actor, id, ch, newDate, newStart)
		if !errors.Is(err, errMovedConcurrently) || attempt+1 >= rescheduleAttempts {
			break
		}
	}
	if errors.Is(err, errMovedConcurrently) {
		return nil, &Error{Kind: KindSlotConflict, Message: "booking was changed by another request, try again", Err: err}
	}
	if err != nil {
		return nil, err
	}
	return a.reload(ctx, id)
}

func (a *Allocator) reschedule(ctx context.Context, actor Actor, id uint64, ch Changes, newDate *time.Time, newStart *timeslot.TimeOfDay) error {
	current, err := a.loadOwned(ctx, actor, id)
	if err != nil {
		return err
	}
	if current.IsTerminal() {
		return newError(KindImmutable, "booking is %s and can no longer be changed", current.Status)
	}

	var field *model.Field
	if ch.Duration != nil {
		field, err = a.fields.FindField(ctx, current.FieldID)
		if err != nil {
			return fmt.Errorf("find field %d: %w", current.FieldID, err)
		}
		if field == nil {
			return newError(KindNotFound, "field %d not found", current.FieldID)
		}
	}

	date := current.BookingDate
	if newDate != nil {
		date = *newDate
	}

	return a.withSlotLock(ctx, current.FieldID, date, func(tx SlotTx) error {
		b, err := tx.FindBooking(ctx, id)
		if err != nil {
			return fmt.Errorf("find booking: %w", err)
		}
		if b == nil {
			return newError(KindNotFound, "booking %d not found", id)
		}
		if b.IsTerminal() {
			return newError(KindImmutable, "booking is %s and can no longer be changed", b.Status)
		}
		if newDate == nil && !b.BookingDate.Equal(date) {
			return errMovedConcurrently
		}

		start, hours := b.StartTime, b.Duration
		if newStart != nil {
			start = *newStart
		}
		if ch.Duration != nil {
			hours = *ch.Duration
		}
		iv := timeslot.Interval{Start: start, End: start.Add(hours * 60)}
		if !iv.End.Valid() {
			return newError(KindInvalidRange, "booking must end by 24:00")
		}

		if !b.BookingDate.Equal(date) || iv != b.Interval() {
			held, err := tx.ListActiveBookings(ctx, b.FieldID, date, b.ID)
			if err != nil {
				return fmt.Errorf("list bookings: %w", err)
			}
			if c := firstOverlap(held, iv); c != nil {
				return slotConflict(c)
			}
		}
		if hours != b.Duration {
			b.TotalPrice = field.PricePerHour.Mul(decimal.NewFromInt(int64(hours)))
		}
		b.BookingDate, b.StartTime, b.EndTime, b.Duration = date, iv.Start, iv.End, hours

		if ch.Notes != nil {
			b.Notes = ch.Notes
		}
		if ch.PaymentMethod != nil {
			b.PaymentMethod = ch.PaymentMethod
		}
		if ch.Status != nil {
			b.Status = *ch.Status
		}
		if ch.PaymentStatus != nil {
			b.PaymentStatus = *ch.PaymentStatus
		}
		if err := tx.UpdateBooking(ctx, b); err != nil {
			return writeConflict(ctx, tx, b, err)
		}
		return nil
	})
}

// Cancel moves a booking to cancelled. The row is kept and stops taking part
// in overlap checks.
func (a *Allocator) Cancel(ctx context.Context, actor Actor, id uint64) (_ *model.Booking, err error) {
	defer func() { a.metrics.IncOutcome("cancel", outcome(err)) }()

	if actor.Kind == ActorAnonymous {
		return nil, newError(KindForbidden, "sign in to cancel a booking")
	}
	current, err := a.loadOwned(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if err := cancellable(current); err != nil {
		return nil, err
	}

	err = a.withSlotLock(ctx, current.FieldID, current.BookingDate, func(tx SlotTx) error {
		b, err := tx.FindBooking(ctx, id)
		if err != nil {
			return fmt.Errorf("find booking: %w", err)
		}
		if b == nil {
			return newError(KindNotFound, "booking %d not found", id)
		}
		if err := cancellable(b); err != nil {
			return err
		}
		b.Status = model.StatusCancelled
		return tx.UpdateBooking(ctx, b)
	})
	if err != nil {
		return nil, err
	}
	a.log.Info(a.log.WithField(ctx, "booking_id", id), "booking cancelled")
	return a.reload(ctx, id)
}

func cancellable(b *model.Booking) error {
	switch b.Status {
	case model.StatusCancelled:
		return newError(KindAlreadyCancelled, "booking %d is already cancelled", b.ID)
	case model.StatusCompleted:
		return newError(KindImmutable, "booking %d is completed and cannot be cancelled", b.ID)
	}
	return nil
}

func (a *Allocator) loadOwned(ctx context.Context, actor Actor, id uint64) (*model.Booking, error) {
	b, err := a.bookings.FindBooking(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("find booking %d: %w", id, err)
	}
	if b == nil {
		return nil, newError(KindNotFound, "booking %d not found", id)
	}
	if !actor.owns(b.UserID) {
		return nil, newError(KindForbidden, "booking %d belongs to another user", id)
	}
	return b, nil
}

func (a *Allocator) reload(ctx context.Context, id uint64) (*model.Booking, error) {
	b, err := a.bookings.FindBooking(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("reload booking %d: %w", id, err)
	}
	if b == nil {
		return nil, newError(KindNotFound, "booking %d not found", id)
	}
	return b, nil
}

func (a *Allocator) withSlotLock(ctx context.Context, fieldID uint64, date time.Time, fn func(SlotTx) error) error {
	requested := time.Now()
	return a.bookings.WithSlotLock(ctx, fieldID, date, func(tx SlotTx) error {
		a.metrics.ObserveLockWait(time.Since(requested))
		return fn(tx)
	})
}

// writeConflict turns a unique-index rejection into a SlotConflict, naming the
// clashing booking when it can be found.
func writeConflict(ctx context.Context, tx SlotTx, b *model.Booking, err error) error {
	if !errors.Is(err, ErrDuplicateSlot) {
		return fmt.Errorf("write booking: %w", err)
	}
	if held, lerr := tx.ListActiveBookings(ctx, b.FieldID, b.BookingDate, b.ID); lerr == nil {
		if c := firstOverlap(held, b.Interval()); c != nil {
			e := slotConflict(c)
			e.Err = err
			return e
		}
	}
	return &Error{Kind: KindSlotConflict, Message: "field already booked for this slot", Err: err}
}

func (a *Allocator) publishCreated(ctx context.Context, ev BookingCreatedEvent) {
	ctx = context.WithoutCancel(ctx)
	a.inflight.Add(1)
	go func() {
		defer a.inflight.Done()
		pctx, cancel := context.WithTimeout(ctx, a.eventTimeout)
		defer cancel()
		if err := a.pub.PublishBookingCreated(pctx, ev); err != nil {
			a.metrics.IncEvent("failed")
			a.log.Warn(ctx, "booking event delivery failed", err)
			return
		}
		a.metrics.IncEvent("published")
	}()
}

// Wait blocks until in-flight event deliveries have finished.
func (a *Allocator) Wait() { a.inflight.Wait() }
