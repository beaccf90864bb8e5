package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/r9s-ai/jsonlog/pkg/tokens"
)

// Gin returns the access log middleware for gin. Values stored with c.Set
// are available to :field[key].
func Gin(opts Options) gin.HandlerFunc {
	a := newAccessLogger(opts)
	return func(c *gin.Context) {
		if a.skipped(c.Request.URL.Path) {
			c.Next()
			return
		}
		start := time.Now()
		id := a.requestID(c.Request)
		c.Header(a.header, id)
		c.Set(RequestIDKey, id)
		ctx, fields := withRequestState(c.Request.Context(), id)
		c.Request = c.Request.WithContext(ctx)

		tw := &ginTimingWriter{ResponseWriter: c.Writer}
		c.Writer = tw
		c.Next()
		c.Writer = tw.ResponseWriter

		size := int64(c.Writer.Size())
		if size < 0 {
			size = 0
		}
		a.emit(&tokens.Context{
			Request:       c.Request,
			Status:        c.Writer.Status(),
			Header:        c.Writer.Header(),
			Size:          size,
			Start:         start,
			HeaderWritten: tw.headerAt,
			End:           time.Now(),
			RequestID:     id,
			Fields:        fields.snapshot(ginKeys(c)),
		})
	}
}

func ginKeys(c *gin.Context) map[string]any {
	out := make(map[string]any, len(c.Keys))
	for k, v := range c.Keys {
		out[k] = v
	}
	return out
}

// ginTimingWriter records when the response header is flushed.
type ginTimingWriter struct {
	gin.ResponseWriter
	headerAt time.Time
}

func (w *ginTimingWriter) stamp() {
	if w.headerAt.IsZero() {
		w.headerAt = time.Now()
	}
}

func (w *ginTimingWriter) WriteHeaderNow() {
	w.stamp()
	w.ResponseWriter.WriteHeaderNow()
}

func (w *ginTimingWriter) Write(b []byte) (int, error) {
	w.stamp()
	return w.ResponseWriter.Write(b)
}

func (w *ginTimingWriter) WriteString(s string) (int, error) {
	w.stamp()
	return w.ResponseWriter.WriteString(s)
}
