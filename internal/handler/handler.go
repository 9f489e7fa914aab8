// Package handler exposes the booking core over HTTP. Handlers parse and
// validate input, build the caller's booking.Actor and translate results and
// errors into JSON responses.
package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/field-booking/internal/booking"
	"github.com/iliyamo/field-booking/internal/middleware"
	"github.com/iliyamo/field-booking/internal/model"
	"github.com/iliyamo/field-booking/internal/repository"
)

// FieldStore is the field persistence used by the catalogue and admin
// handlers. Both repository.FieldRepo and memstore.Store satisfy it.
type FieldStore interface {
	GetField(ctx context.Context, id uint64) (*model.Field, error)
	ListFields(ctx context.Context, filter repository.FieldFilter) ([]*model.Field, error)
	CreateField(ctx context.Context, f *model.Field) error
	UpdateField(ctx context.Context, f *model.Field) error
	DeleteField(ctx context.Context, id uint64) error
}

// BookingReader serves booking history queries.
type BookingReader interface {
	GetBooking(ctx context.Context, id uint64) (*model.Booking, error)
	ListBookings(ctx context.Context, filter repository.BookingFilter) ([]*model.Booking, error)
}

// CustomerStore backs the passwordless find-or-create flow.
type CustomerStore interface {
	FindCustomerByPhone(ctx context.Context, phone string) (*model.User, error)
	CreateCustomer(ctx context.Context, u *model.User) error
}

// actorFrom maps the identity stored by middleware.JWTAuth to an actor.
// Requests without a token are anonymous.
func actorFrom(c echo.Context) booking.Actor {
	id, ok := middleware.UserID(c)
	if !ok {
		return booking.Anonymous()
	}
	return booking.ActorFor(id, model.Role(middleware.Role(c)))
}

func parseID(c echo.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	return id, err == nil && id > 0
}

func badID(c echo.Context, what string) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid " + what + " id"})
}
