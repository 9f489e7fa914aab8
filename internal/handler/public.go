package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/iliyamo/field-booking/internal/booking"
	"github.com/iliyamo/field-booking/internal/logger"
	"github.com/iliyamo/field-booking/internal/model"
	"github.com/iliyamo/field-booking/internal/repository"
)

// PublicHandler serves the unauthenticated catalogue and booking flow.
type PublicHandler struct {
	Fields    FieldStore
	Customers CustomerStore
	Allocator *booking.Allocator
	Projector *booking.Projector
	Log       *logger.Logger
}

func NewPublicHandler(fields FieldStore, customers CustomerStore, alloc *booking.Allocator, proj *booking.Projector, log *logger.Logger) *PublicHandler {
	if fields == nil || customers == nil || alloc == nil || proj == nil {
		panic("nil dependency passed to NewPublicHandler")
	}
	if log == nil {
		log = logger.Nop()
	}
	return &PublicHandler{Fields: fields, Customers: customers, Allocator: alloc, Projector: proj, Log: log}
}

// ListFields handles GET /v1/public/fields?search=&field_type=.
func (h *PublicHandler) ListFields(c echo.Context) error {
	ft := model.FieldType(c.QueryParam("field_type"))
	if ft != "" && !ft.Valid() {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid field_type"})
	}
	fields, err := h.Fields.ListFields(c.Request().Context(), repository.FieldFilter{
		Search:     strings.TrimSpace(c.QueryParam("search")),
		FieldType:  ft,
		ActiveOnly: true,
	})
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": toFieldResponses(fields)})
}

// GetField handles GET /v1/public/fields/:id. Inactive fields are hidden.
func (h *PublicHandler) GetField(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return badID(c, "field")
	}
	f, err := h.Fields.GetField(c.Request().Context(), id)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	if !f.IsActive {
		return writeError(c, h.Log, repository.ErrFieldNotFound)
	}
	return c.JSON(http.StatusOK, toFieldResponse(f))
}

// SearchAvailable handles
// GET /v1/public/fields/search-available?date=&start_time=&end_time=.
func (h *PublicHandler) SearchAvailable(c echo.Context) error {
	res, err := h.Projector.FindAvailableFields(c.Request().Context(),
		c.QueryParam("date"), c.QueryParam("start_time"), c.QueryParam("end_time"))
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, toFieldSearchResponse(res))
}

// FieldSlots handles GET /v1/public/fields/:id/slots/:date.
func (h *PublicHandler) FieldSlots(c echo.Context) error {
	return projectSlots(c, h.Projector, h.Log, "id")
}

func projectSlots(c echo.Context, p *booking.Projector, log *logger.Logger, param string) error {
	id, ok := parseID(c, param)
	if !ok {
		return badID(c, "field")
	}
	av, err := p.Project(c.Request().Context(), id, c.Param("date"))
	if err != nil {
		return writeError(c, log, err)
	}
	return c.JSON(http.StatusOK, toAvailabilityResponse(av))
}

type findOrCreateCustomerRequest struct {
	FullName string  `json:"full_name" validate:"required,min=2,max=100"`
	Phone    string  `json:"phone" validate:"required,phone"`
	Email    *string `json:"email" validate:"omitempty,email"`
}

// FindOrCreateCustomer handles POST /v1/public/customers/find-or-create. It
// returns 200 for an existing customer and 201 for a new one.
func (h *PublicHandler) FindOrCreateCustomer(c echo.Context) error {
	var req findOrCreateCustomerRequest
	if err := bind(c, &req); err != nil {
		return writeError(c, h.Log, err)
	}
	ctx := c.Request().Context()

	u, err := h.Customers.FindCustomerByPhone(ctx, req.Phone)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	if u != nil {
		return h.existingCustomer(c, u)
	}

	u = &model.User{FullName: strings.TrimSpace(req.FullName), Phone: req.Phone, Email: req.Email}
	if err := h.Customers.CreateCustomer(ctx, u); err != nil {
		if !errors.Is(err, repository.ErrPhoneExists) {
			return writeError(c, h.Log, err)
		}
		// lost a race with a concurrent create for the same phone
		existing, ferr := h.Customers.FindCustomerByPhone(ctx, req.Phone)
		if ferr != nil || existing == nil {
			return writeError(c, h.Log, err)
		}
		return h.existingCustomer(c, existing)
	}
	return c.JSON(http.StatusCreated, echo.Map{"customer": toCustomerResponse(u), "created": true})
}

func (h *PublicHandler) existingCustomer(c echo.Context, u *model.User) error {
	if u.Role != model.RoleCustomer || !u.IsActive {
		return c.JSON(http.StatusConflict, errorResponse{Error: "phone belongs to an account that cannot book publicly", Code: "conflict"})
	}
	return c.JSON(http.StatusOK, echo.Map{"customer": toCustomerResponse(u), "created": false})
}

func toCustomerResponse(u *model.User) customerResponse {
	return customerResponse{ID: u.ID, FullName: u.FullName, Phone: u.Phone, Email: u.Email}
}

// createBookingRequest is shared by the public and authenticated create
// endpoints. Range and duration checks are left to the allocator so that
// they report InvalidRange and InvalidDuration.
type createBookingRequest struct {
	FieldID       uint64               `json:"field_id" validate:"required"`
	UserID        uint64               `json:"user_id"`
	BookingDate   string               `json:"booking_date" validate:"required"`
	StartTime     string               `json:"start_time" validate:"required"`
	EndTime       string               `json:"end_time" validate:"required"`
	Duration      *int                 `json:"duration"`
	TotalPrice    *decimal.Decimal     `json:"total_price"`
	PaymentMethod *model.PaymentMethod `json:"payment_method" validate:"omitempty,oneof=cash bank_transfer momo vnpay"`
	Notes         *string              `json:"notes" validate:"omitempty,max=1000"`
}

func (r createBookingRequest) allocateRequest() booking.AllocateRequest {
	return booking.AllocateRequest{
		FieldID:       r.FieldID,
		UserID:        r.UserID,
		Date:          r.BookingDate,
		StartTime:     r.StartTime,
		EndTime:       r.EndTime,
		Duration:      r.Duration,
		TotalPrice:    r.TotalPrice,
		PaymentMethod: r.PaymentMethod,
		Notes:         r.Notes,
	}
}

// CreateBooking handles POST /v1/public/bookings. The requester is the
// customer id returned by find-or-create; the price is always derived.
func (h *PublicHandler) CreateBooking(c echo.Context) error {
	var req createBookingRequest
	if err := bind(c, &req); err != nil {
		return writeError(c, h.Log, err)
	}
	if req.UserID == 0 {
		return writeError(c, h.Log, &validationError{msg: "validation failed", details: map[string]string{"user_id": "is required"}})
	}
	ar := req.allocateRequest()
	ar.TotalPrice = nil

	b, err := h.Allocator.Allocate(c.Request().Context(), booking.Anonymous(), ar)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, toBookingResponse(b))
}
