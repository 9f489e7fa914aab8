package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/field-booking/internal/booking"
	"github.com/iliyamo/field-booking/internal/logger"
	"github.com/iliyamo/field-booking/internal/model"
	"github.com/iliyamo/field-booking/internal/repository"
	"github.com/iliyamo/field-booking/internal/timeslot"
)

// BookingHandler serves booking routes for signed-in customers and staff.
// Customers only ever see and change their own bookings.
type BookingHandler struct {
	Bookings  BookingReader
	Allocator *booking.Allocator
	Projector *booking.Projector
	Log       *logger.Logger
}

func NewBookingHandler(bookings BookingReader, alloc *booking.Allocator, proj *booking.Projector, log *logger.Logger) *BookingHandler {
	if bookings == nil || alloc == nil || proj == nil {
		panic("nil dependency passed to NewBookingHandler")
	}
	if log == nil {
		log = logger.Nop()
	}
	return &BookingHandler{Bookings: bookings, Allocator: alloc, Projector: proj, Log: log}
}

// Create handles POST /v1/bookings. Staff book on behalf of user_id and may
// override the price; customers book for themselves at the derived price.
func (h *BookingHandler) Create(c echo.Context) error {
	var req createBookingRequest
	if err := bind(c, &req); err != nil {
		return writeError(c, h.Log, err)
	}
	actor := actorFrom(c)
	ar := req.allocateRequest()
	if !actor.IsElevated() {
		ar.TotalPrice = nil
	}
	b, err := h.Allocator.Allocate(c.Request().Context(), actor, ar)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, toBookingResponse(b))
}

// List handles GET /v1/bookings with optional status, payment_status,
// field_id, user_id (staff only), start_date and end_date filters.
func (h *BookingHandler) List(c echo.Context) error {
	actor := actorFrom(c)
	filter, msg := bookingFilterFrom(c)
	if msg != "" {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: msg, Code: "invalid_input"})
	}
	if !actor.IsElevated() {
		uid := actor.UserID
		filter.UserID = &uid
	}
	list, err := h.Bookings.ListBookings(c.Request().Context(), filter)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": toBookingResponses(list)})
}

func bookingFilterFrom(c echo.Context) (repository.BookingFilter, string) {
	var f repository.BookingFilter
	if v := c.QueryParam("status"); v != "" {
		s := model.BookingStatus(v)
		if !s.Valid() {
			return f, "invalid status"
		}
		f.Status = &s
	}
	if v := c.QueryParam("payment_status"); v != "" {
		s := model.PaymentStatus(v)
		if !s.Valid() {
			return f, "invalid payment_status"
		}
		f.PaymentStatus = &s
	}
	for name, dst := range map[string]**uint64{"field_id": &f.FieldID, "user_id": &f.UserID} {
		if v := c.QueryParam(name); v != "" {
			id, err := strconv.ParseUint(v, 10, 64)
			if err != nil || id == 0 {
				return f, "invalid " + name
			}
			*dst = &id
		}
	}
	for name, dst := range map[string]**time.Time{"start_date": &f.From, "end_date": &f.To} {
		if v := c.QueryParam(name); v != "" {
			d, err := timeslot.ParseDate(v)
			if err != nil {
				return f, name + " must be YYYY-MM-DD"
			}
			*dst = &d
		}
	}
	return f, ""
}

// Get handles GET /v1/bookings/:id.
func (h *BookingHandler) Get(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return badID(c, "booking")
	}
	b, err := h.Bookings.GetBooking(c.Request().Context(), id)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	if actor := actorFrom(c); !actor.IsElevated() && b.UserID != actor.UserID {
		return writeError(c, h.Log, booking.ErrForbidden)
	}
	return c.JSON(http.StatusOK, toBookingResponse(b))
}

type updateBookingRequest struct {
	BookingDate   *string              `json:"booking_date"`
	StartTime     *string              `json:"start_time"`
	Duration      *int                 `json:"duration"`
	Notes         *string              `json:"notes" validate:"omitempty,max=1000"`
	PaymentMethod *model.PaymentMethod `json:"payment_method" validate:"omitempty,oneof=cash bank_transfer momo vnpay"`
	Status        *model.BookingStatus `json:"status" validate:"omitempty,oneof=pending confirmed completed cancelled"`
	PaymentStatus *model.PaymentStatus `json:"payment_status" validate:"omitempty,oneof=unpaid paid refunded"`
}

// Update handles PUT /v1/bookings/:id.
func (h *BookingHandler) Update(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return badID(c, "booking")
	}
	var req updateBookingRequest
	if err := bind(c, &req); err != nil {
		return writeError(c, h.Log, err)
	}
	b, err := h.Allocator.Reschedule(c.Request().Context(), actorFrom(c), id, booking.Changes{
		Date:          req.BookingDate,
		StartTime:     req.StartTime,
		Duration:      req.Duration,
		Notes:         req.Notes,
		PaymentMethod: req.PaymentMethod,
		Status:        req.Status,
		PaymentStatus: req.PaymentStatus,
	})
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, toBookingResponse(b))
}

// Cancel handles PUT /v1/bookings/:id/cancel.
func (h *BookingHandler) Cancel(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return badID(c, "booking")
	}
	b, err := h.Allocator.Cancel(c.Request().Context(), actorFrom(c), id)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, toBookingResponse(b))
}

// AvailableSlots handles GET /v1/bookings/available-slots/:field_id/:date.
func (h *BookingHandler) AvailableSlots(c echo.Context) error {
	return projectSlots(c, h.Projector, h.Log, "field_id")
}
