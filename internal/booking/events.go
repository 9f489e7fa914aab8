package booking

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/field-booking/internal/model"
	"github.com/iliyamo/field-booking/internal/timeslot"
)

// BookingCreatedEvent is emitted after a successful public booking.
type BookingCreatedEvent struct {
	BookingID     uint64          `json:"booking_id"`
	BookingCode   string          `json:"booking_code"`
	FieldID       uint64          `json:"field_id"`
	FieldName     string          `json:"field_name"`
	CustomerName  string          `json:"customer_name"`
	CustomerPhone string          `json:"customer_phone"`
	BookingDate   string          `json:"booking_date"`
	StartTime     string          `json:"start_time"`
	EndTime       string          `json:"end_time"`
	TotalPrice    decimal.Decimal `json:"total_price"`
	CreatedAt     time.Time       `json:"created_at"`
}

// Message is the short human-readable line shown to observers.
func (e BookingCreatedEvent) Message() string {
	return "New booking from " + e.CustomerName + " for " + e.FieldName
}

func newCreatedEvent(b *model.Booking, u *model.User, f *model.Field) BookingCreatedEvent {
	return BookingCreatedEvent{
		BookingID:     b.ID,
		BookingCode:   b.BookingCode,
		FieldID:       f.ID,
		FieldName:     f.Name,
		CustomerName:  u.FullName,
		CustomerPhone: u.Phone,
		BookingDate:   timeslot.FormatDate(b.BookingDate),
		StartTime:     b.StartTime.String(),
		EndTime:       b.EndTime.String(),
		TotalPrice:    b.TotalPrice,
		CreatedAt:     b.CreatedAt,
	}
}

// Publisher delivers booking events to real-time observers. Delivery is
// best-effort; errors are logged by the caller and never fail a booking.
type Publisher interface {
	PublishBookingCreated(ctx context.Context, ev BookingCreatedEvent) error
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) PublishBookingCreated(context.Context, BookingCreatedEvent) error { return nil }
