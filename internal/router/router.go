// Package router registers the HTTP routes of the booking API.
package router

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/field-booking/internal/handler"
	"github.com/iliyamo/field-booking/internal/middleware"
	"github.com/iliyamo/field-booking/internal/model"
	"github.com/iliyamo/field-booking/internal/realtime"
)

// RegisterRoutes registers the operational endpoints: /healthz and, when
// metrics is non-nil, the Prometheus scrape endpoint.
func RegisterRoutes(e *echo.Echo, ping func(context.Context) error, metrics http.Handler) {
	e.GET("/healthz", handler.Health(ping))
	if metrics != nil {
		e.GET("/metrics", echo.WrapHandler(metrics))
	}
}

// RegisterPublic registers the unauthenticated catalogue and booking flow.
// cache wraps the slow-changing catalogue reads; limit guards the writes.
func RegisterPublic(e *echo.Echo, p *handler.PublicHandler, cache, limit echo.MiddlewareFunc) {
	g := e.Group("/v1/public")
	g.GET("/fields", p.ListFields, cache)
	g.GET("/fields/search-available", p.SearchAvailable)
	g.GET("/fields/:id", p.GetField, cache)
	g.GET("/fields/:id/slots/:date", p.FieldSlots)
	g.POST("/customers/find-or-create", p.FindOrCreateCustomer, limit)
	g.POST("/bookings", p.CreateBooking, limit)
}

// RegisterBookings registers booking routes for any signed-in role.
func RegisterBookings(e *echo.Echo, h *handler.BookingHandler, jwtSecret string) {
	g := e.Group("/v1/bookings",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleCustomer, model.RoleAdmin, model.RoleSuperAdmin),
	)
	g.POST("", h.Create)
	g.GET("", h.List)
	g.GET("/available-slots/:field_id/:date", h.AvailableSlots)
	g.GET("/:id", h.Get)
	g.PUT("/:id", h.Update)
	g.PUT("/:id/cancel", h.Cancel)
}

// RegisterAdmin registers staff-only field management and the live booking
// feed.
func RegisterAdmin(e *echo.Echo, f *handler.FieldHandler, hub *realtime.Hub, jwtSecret string) {
	staff := []echo.MiddlewareFunc{
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleAdmin, model.RoleSuperAdmin),
	}

	fields := e.Group("/v1/fields", staff...)
	fields.GET("", f.List)
	fields.POST("", f.Create)
	fields.PUT("/:id", f.Update)
	fields.DELETE("/:id", f.Delete)

	if hub != nil {
		e.GET("/v1/admin/notifications/ws", handler.Notifications(hub), staff...)
	}
}
