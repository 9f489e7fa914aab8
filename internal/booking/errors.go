package booking

import (
	"errors"
	"fmt"

	"github.com/iliyamo/field-booking/internal/model"
	"github.com/iliyamo/field-booking/internal/timeslot"
)

// Kind classifies expected allocator failures.
type Kind int

const (
	KindNotFound Kind = iota + 1
	KindInactive
	KindInvalidInput
	KindInvalidRange
	KindInvalidDuration
	KindSlotConflict
	KindImmutable
	KindAlreadyCancelled
	KindForbidden
)

var kindNames = map[Kind]string{
	KindNotFound:         "not_found",
	KindInactive:         "inactive",
	KindInvalidInput:     "invalid_input",
	KindInvalidRange:     "invalid_range",
	KindInvalidDuration:  "invalid_duration",
	KindSlotConflict:     "slot_conflict",
	KindImmutable:        "immutable",
	KindAlreadyCancelled: "already_cancelled",
	KindForbidden:        "forbidden",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

// Sentinels for errors.Is. They match any *Error of the same kind.
var (
	ErrNotFound         = &Error{Kind: KindNotFound}
	ErrInactive         = &Error{Kind: KindInactive}
	ErrInvalidInput     = &Error{Kind: KindInvalidInput}
	ErrInvalidRange     = &Error{Kind: KindInvalidRange}
	ErrInvalidDuration  = &Error{Kind: KindInvalidDuration}
	ErrSlotConflict     = &Error{Kind: KindSlotConflict}
	ErrImmutable        = &Error{Kind: KindImmutable}
	ErrAlreadyCancelled = &Error{Kind: KindAlreadyCancelled}
	ErrForbidden        = &Error{Kind: KindForbidden}
)

// Conflict describes the booking that blocked an allocation.
type Conflict struct {
	BookingID     uint64             `json:"booking_id"`
	RequesterName string             `json:"customer_name"`
	Date          string             `json:"booking_date"`
	StartTime     timeslot.TimeOfDay `json:"start_time"`
	EndTime       timeslot.TimeOfDay `json:"end_time"`
}

func conflictOf(b *model.Booking) *Conflict {
	return &Conflict{
		BookingID:     b.ID,
		RequesterName: b.RequesterName(),
		Date:          timeslot.FormatDate(b.BookingDate),
		StartTime:     b.StartTime,
		EndTime:       b.EndTime,
	}
}

// Error is returned for every expected allocator outcome other than success.
type Error struct {
	Kind     Kind
	Message  string
	Conflict *Conflict
	Err      error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Kind.String()
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

func newError(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func slotConflict(b *model.Booking) *Error {
	c := conflictOf(b)
	msg := fmt.Sprintf("field already booked from %s to %s", c.StartTime, c.EndTime)
	if c.RequesterName != "" {
		msg += " by " + c.RequesterName
	}
	return &Error{Kind: KindSlotConflict, Message: msg, Conflict: c}
}

// KindOf extracts the kind of err, or 0 when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// outcome is the metrics label for an operation result.
func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	if k := KindOf(err); k != 0 {
		return k.String()
	}
	return "error"
}

// firstOverlap returns the first booking in list whose interval meets iv.
func firstOverlap(list []*model.Booking, iv timeslot.Interval) *model.Booking {
	for _, b := range list {
		if b.Holds() && b.Interval().Overlaps(iv) {
			return b
		}
	}
	return nil
}
