package middleware

import (
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/field-booking/internal/logger"
)

const HeaderRequestID = "X-Request-ID"

// RequestLogger tags each request with an id (reusing a client-supplied
// X-Request-ID) and logs one line when it completes.
func RequestLogger(log *logger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			id := req.Header.Get(HeaderRequestID)
			if id == "" {
				id = uuid.NewString()
			}
			c.Response().Header().Set(HeaderRequestID, id)

			ctx := log.WithRequestID(req.Context(), id)
			c.SetRequest(req.WithContext(ctx))

			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}

			ctx = log.WithFields(c.Request().Context(), map[string]any{
				"method":     req.Method,
				"route":      c.Path(),
				"status":     c.Response().Status,
				"latency_ms": time.Since(start).Milliseconds(),
				"ip":         c.RealIP(),
			})
			if id, ok := UserID(c); ok {
				ctx = log.WithUserID(ctx, strconv.FormatUint(id, 10))
			}
			if c.Response().Status >= 500 {
				log.Warn(ctx, "request failed", err)
			} else {
				log.Info(ctx, "request completed")
			}
			return nil
		}
	}
}
