package handler

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/field-booking/internal/booking"
	"github.com/iliyamo/field-booking/internal/model"
	"github.com/iliyamo/field-booking/internal/timeslot"
)

type fieldResponse struct {
	ID           uint64             `json:"id"`
	Name         string             `json:"name"`
	FieldType    model.FieldType    `json:"field_type"`
	Location     string             `json:"location"`
	PricePerHour decimal.Decimal    `json:"price_per_hour"`
	Description  *string            `json:"description,omitempty"`
	Image        *string            `json:"image,omitempty"`
	IsActive     bool               `json:"is_active"`
	OpenTime     timeslot.TimeOfDay `json:"open_time"`
	CloseTime    timeslot.TimeOfDay `json:"close_time"`
	CreatedAt    time.Time          `json:"created_at"`
	UpdatedAt    time.Time          `json:"updated_at"`
}

func toFieldResponse(f *model.Field) fieldResponse {
	return fieldResponse{
		ID:           f.ID,
		Name:         f.Name,
		FieldType:    f.FieldType,
		Location:     f.Location,
		PricePerHour: f.PricePerHour,
		Description:  f.Description,
		Image:        f.Image,
		IsActive:     f.IsActive,
		OpenTime:     f.OpenTime,
		CloseTime:    f.CloseTime,
		CreatedAt:    f.CreatedAt,
		UpdatedAt:    f.UpdatedAt,
	}
}

func toFieldResponses(list []*model.Field) []fieldResponse {
	out := make([]fieldResponse, 0, len(list))
	for _, f := range list {
		out = append(out, toFieldResponse(f))
	}
	return out
}

type userSummaryResponse struct {
	ID       uint64  `json:"id"`
	FullName string  `json:"full_name"`
	Phone    string  `json:"phone"`
	Email    *string `json:"email,omitempty"`
}

type fieldSummaryResponse struct {
	ID           uint64          `json:"id"`
	Name         string          `json:"name"`
	FieldType    model.FieldType `json:"field_type"`
	Location     string          `json:"location"`
	PricePerHour decimal.Decimal `json:"price_per_hour"`
}

type bookingResponse struct {
	ID            uint64                `json:"id"`
	BookingCode   string                `json:"booking_code"`
	UserID        uint64                `json:"user_id"`
	FieldID       uint64                `json:"field_id"`
	BookingDate   string                `json:"booking_date"`
	StartTime     timeslot.TimeOfDay    `json:"start_time"`
	EndTime       timeslot.TimeOfDay    `json:"end_time"`
	Duration      int                   `json:"duration"`
	TotalPrice    decimal.Decimal       `json:"total_price"`
	Status        model.BookingStatus   `json:"status"`
	PaymentStatus model.PaymentStatus   `json:"payment_status"`
	PaymentMethod *model.PaymentMethod  `json:"payment_method"`
	Notes         *string               `json:"notes"`
	CreatedAt     time.Time             `json:"created_at"`
	UpdatedAt     time.Time             `json:"updated_at"`
	User          *userSummaryResponse  `json:"user,omitempty"`
	Field         *fieldSummaryResponse `json:"field,omitempty"`
}

func toBookingResponse(b *model.Booking) bookingResponse {
	out := bookingResponse{
		ID:            b.ID,
		BookingCode:   b.BookingCode,
		UserID:        b.UserID,
		FieldID:       b.FieldID,
		BookingDate:   timeslot.FormatDate(b.BookingDate),
		StartTime:     b.StartTime,
		EndTime:       b.EndTime,
		Duration:      b.Duration,
		TotalPrice:    b.TotalPrice,
		Status:        b.Status,
		PaymentStatus: b.PaymentStatus,
		PaymentMethod: b.PaymentMethod,
		Notes:         b.Notes,
		CreatedAt:     b.CreatedAt,
		UpdatedAt:     b.UpdatedAt,
	}
	if u := b.User; u != nil {
		out.User = &userSummaryResponse{ID: u.ID, FullName: u.FullName, Phone: u.Phone, Email: u.Email}
	}
	if f := b.Field; f != nil {
		out.Field = &fieldSummaryResponse{ID: f.ID, Name: f.Name, FieldType: f.FieldType, Location: f.Location, PricePerHour: f.PricePerHour}
	}
	return out
}

func toBookingResponses(list []*model.Booking) []bookingResponse {
	out := make([]bookingResponse, 0, len(list))
	for _, b := range list {
		out = append(out, toBookingResponse(b))
	}
	return out
}

type slotResponse struct {
	StartTime timeslot.TimeOfDay `json:"start_time"`
	EndTime   timeslot.TimeOfDay `json:"end_time"`
	Available bool               `json:"available"`
}

type availabilityResponse struct {
	FieldID   uint64             `json:"field_id"`
	FieldName string             `json:"field_name"`
	Date      string             `json:"date"`
	OpenTime  timeslot.TimeOfDay `json:"open_time"`
	CloseTime timeslot.TimeOfDay `json:"close_time"`
	Slots     []slotResponse     `json:"slots"`
}

func toAvailabilityResponse(a *booking.Availability) availabilityResponse {
	slots := make([]slotResponse, 0, len(a.Slots))
	for _, s := range a.Slots {
		slots = append(slots, slotResponse{StartTime: s.Start, EndTime: s.End, Available: s.Available})
	}
	return availabilityResponse{
		FieldID:   a.Field.ID,
		FieldName: a.Field.Name,
		Date:      timeslot.FormatDate(a.Date),
		OpenTime:  a.Open,
		CloseTime: a.Close,
		Slots:     slots,
	}
}

type availableFieldResponse struct {
	fieldResponse
	EstimatedPrice decimal.Decimal `json:"estimated_price"`
}

type unavailableFieldResponse struct {
	fieldResponse
	Conflict *booking.Conflict `json:"conflict"`
}

type fieldSearchResponse struct {
	Date        string                     `json:"date"`
	StartTime   timeslot.TimeOfDay         `json:"start_time"`
	EndTime     timeslot.TimeOfDay         `json:"end_time"`
	Available   []availableFieldResponse   `json:"available"`
	Unavailable []unavailableFieldResponse `json:"unavailable"`
}

func toFieldSearchResponse(s *booking.FieldSearch) fieldSearchResponse {
	out := fieldSearchResponse{
		Date:        timeslot.FormatDate(s.Date),
		StartTime:   s.Interval.Start,
		EndTime:     s.Interval.End,
		Available:   make([]availableFieldResponse, 0, len(s.Available)),
		Unavailable: make([]unavailableFieldResponse, 0, len(s.Unavailable)),
	}
	for _, a := range s.Available {
		out.Available = append(out.Available, availableFieldResponse{fieldResponse: toFieldResponse(a.Field), EstimatedPrice: a.EstimatedPrice})
	}
	for _, u := range s.Unavailable {
		out.Unavailable = append(out.Unavailable, unavailableFieldResponse{fieldResponse: toFieldResponse(u.Field), Conflict: u.Conflict})
	}
	return out
}

type customerResponse struct {
	ID       uint64  `json:"id"`
	FullName string  `json:"full_name"`
	Phone    string  `json:"phone"`
	Email    *string `json:"email,omitempty"`
}
