package model

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/field-booking/internal/timeslot"
)

// FieldType is the physical configuration of a pitch.
type FieldType string

const (
	FieldType5v5   FieldType = "5vs5"
	FieldType7v7   FieldType = "7vs7"
	FieldType11v11 FieldType = "11vs11"
)

// Valid reports whether t is one of the known configurations.
func (t FieldType) Valid() bool {
	switch t {
	case FieldType5v5, FieldType7v7, FieldType11v11:
		return true
	}
	return false
}

// Field is a bookable pitch as stored in the `fields` table.
//
// Fields:
//
//	ID           – primary key identifier.
//	Name         – display name, shown to customers.
//	FieldType    – 5vs5, 7vs7 or 11vs11.
//	Location     – free-form address or area.
//	PricePerHour – hourly rate used to price bookings.
//	Description  – optional long description.
//	Image        – optional image URL.
//	IsActive     – inactive fields reject new public bookings.
//	OpenTime     – start of the daily operating window.
//	CloseTime    – end of the daily operating window (exclusive).
type Field struct {
	ID           uint64             // fields.id
	Name         string             // fields.name
	FieldType    FieldType          // fields.field_type
	Location     string             // fields.location
	PricePerHour decimal.Decimal    // fields.price_per_hour
	Description  *string            // fields.description (nullable)
	Image        *string            // fields.image (nullable)
	IsActive     bool               // fields.is_active
	OpenTime     timeslot.TimeOfDay // fields.open_time
	CloseTime    timeslot.TimeOfDay // fields.close_time
	CreatedAt    time.Time          // fields.created_at
	UpdatedAt    time.Time          // fields.updated_at
}

// Summary returns the denormalized view embedded in booking responses.
func (f *Field) Summary() *FieldSummary {
	if f == nil {
		return nil
	}
	return &FieldSummary{
		ID:           f.ID,
		Name:         f.Name,
		FieldType:    f.FieldType,
		Location:     f.Location,
		PricePerHour: f.PricePerHour,
	}
}

// FieldSummary is the subset of a field shown alongside a booking.
type FieldSummary struct {
	ID           uint64
	Name         string
	FieldType    FieldType
	Location     string
	PricePerHour decimal.Decimal
}
