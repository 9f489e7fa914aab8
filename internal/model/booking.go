package model

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/field-booking/internal/timeslot"
)

// BookingStatus is the lifecycle state of a booking.
type BookingStatus string

const (
	StatusPending   BookingStatus = "pending"
	StatusConfirmed BookingStatus = "confirmed"
	StatusCompleted BookingStatus = "completed"
	StatusCancelled BookingStatus = "cancelled"
)

func (s BookingStatus) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// PaymentStatus is independent of BookingStatus and never gates overlap checks.
type PaymentStatus string

const (
	PaymentUnpaid   PaymentStatus = "unpaid"
	PaymentPaid     PaymentStatus = "paid"
	PaymentRefunded PaymentStatus = "refunded"
)

func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentUnpaid, PaymentPaid, PaymentRefunded:
		return true
	}
	return false
}

type PaymentMethod string

const (
	PaymentCash         PaymentMethod = "cash"
	PaymentBankTransfer PaymentMethod = "bank_transfer"
	PaymentMomo         PaymentMethod = "momo"
	PaymentVNPay        PaymentMethod = "vnpay"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentCash, PaymentBankTransfer, PaymentMomo, PaymentVNPay:
		return true
	}
	return false
}

// Booking is a time-bounded claim on a field, stored in the `bookings` table.
// BookingDate is a calendar day at midnight UTC; StartTime and EndTime form
// the half-open interval [StartTime, EndTime).
//
// Fields:
//
//	ID            – primary key identifier.
//	UserID        – requester.
//	FieldID       – reserved field.
//	BookingDate   – calendar day of the booking.
//	StartTime     – first minute of the booking.
//	EndTime       – first minute after the booking.
//	Duration      – whole hours, 1 to 12.
//	TotalPrice    – price charged for the booking.
//	Status        – pending, confirmed, completed or cancelled.
//	PaymentStatus – unpaid, paid or refunded.
//	PaymentMethod – how the customer pays (nullable).
//	Notes         – free-text notes (nullable).
//	BookingCode   – human-readable code, e.g. BK-20240309-7QZ1.
//
// User and Field are populated by reads that join the related rows.
type Booking struct {
	ID            uint64             // bookings.id
	UserID        uint64             // bookings.user_id
	FieldID       uint64             // bookings.field_id
	BookingDate   time.Time          // bookings.booking_date
	StartTime     timeslot.TimeOfDay // bookings.start_time
	EndTime       timeslot.TimeOfDay // bookings.end_time
	Duration      int                // bookings.duration
	TotalPrice    decimal.Decimal    // bookings.total_price
	Status        BookingStatus      // bookings.status
	PaymentStatus PaymentStatus      // bookings.payment_status
	PaymentMethod *PaymentMethod     // bookings.payment_method (nullable)
	Notes         *string            // bookings.notes (nullable)
	BookingCode   string             // bookings.booking_code
	CreatedAt     time.Time          // bookings.created_at
	UpdatedAt     time.Time          // bookings.updated_at

	User  *UserSummary
	Field *FieldSummary
}

func (b *Booking) Interval() timeslot.Interval {
	return timeslot.Interval{Start: b.StartTime, End: b.EndTime}
}

// IsTerminal reports whether no further time or content changes are allowed.
func (b *Booking) IsTerminal() bool {
	return b.Status == StatusCompleted || b.Status == StatusCancelled
}

// Holds reports whether the booking still occupies its slot.
func (b *Booking) Holds() bool { return b.Status != StatusCancelled }

// RequesterName is the display name of the requester, if it was loaded.
func (b *Booking) RequesterName() string {
	if b.User == nil {
		return ""
	}
	return b.User.FullName
}
