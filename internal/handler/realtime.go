package handler

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/field-booking/internal/realtime"
)

// Notifications handles GET /v1/admin/notifications/ws by upgrading to a
// websocket registered with hub.
func Notifications(hub *realtime.Hub) echo.HandlerFunc {
	return echo.WrapHandler(hub)
}
