package middleware

import (
	"time"

	"github.com/labstack/echo/v4"

	"github.com/r9s-ai/jsonlog/pkg/tokens"
)

// Echo returns the access log middleware for echo. Handler errors are passed
// to the echo error handler before the line is written so the logged status
// is the one the client receives.
func Echo(opts Options) echo.MiddlewareFunc {
	a := newAccessLogger(opts)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if a.skipped(req.URL.Path) {
				return next(c)
			}
			start := time.Now()
			id := a.requestID(req)
			res := c.Response()
			res.Header().Set(a.header, id)
			c.Set(RequestIDKey, id)
			ctx, fields := withRequestState(req.Context(), id)
			c.SetRequest(req.WithContext(ctx))

			var headerAt time.Time
			res.Before(func() { headerAt = time.Now() })

			err := next(c)
			if err != nil {
				c.Error(err)
			}

			a.emit(&tokens.Context{
				Request:       c.Request(),
				Status:        res.Status,
				Header:        res.Header(),
				Size:          res.Size,
				Start:         start,
				HeaderWritten: headerAt,
				End:           time.Now(),
				RequestID:     id,
				Fields:        fields.snapshot(nil),
			})
			return err
		}
	}
}
