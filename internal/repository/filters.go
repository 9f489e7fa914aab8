package repository

import (
	"time"

	"github.com/iliyamo/field-booking/internal/model"
)

// FieldFilter narrows field listings. Search matches name or location.
type FieldFilter struct {
	Search     string
	FieldType  model.FieldType
	ActiveOnly bool
}

// BookingFilter narrows booking listings. Nil pointers do not filter.
// From and To bound the booking date inclusively.
type BookingFilter struct {
	UserID        *uint64
	FieldID       *uint64
	Status        *model.BookingStatus
	PaymentStatus *model.PaymentStatus
	From          *time.Time
	To            *time.Time
}
