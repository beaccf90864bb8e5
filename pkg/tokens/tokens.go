// Package tokens provides the standard access log tokens for net/http
// requests.
package tokens

import (
	"fmt"
	"net"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/r9s-ai/jsonlog/pkg/jsonformat"
)

const (
	clfLayout = "02/Jan/2006:15:04:05 -0700"
	isoLayout = "2006-01-02T15:04:05.000Z07:00"
)

// Context is what the standard tokens read. The middleware fills it once the
// handler has returned.
type Context struct {
	Request *http.Request
	// Status is 0 while no response header has been written.
	Status int
	// Header is the response header.
	Header http.Header
	// Size counts response body bytes.
	Size int64

	Start         time.Time
	HeaderWritten time.Time
	End           time.Time

	RequestID string
	// Fields carries handler supplied values for :field[key].
	Fields map[string]any
}

func (c *Context) headersSent() bool {
	return c.Status != 0
}

// Default returns a fresh token set; callers may add to it.
func Default() jsonformat.Tokens {
	return jsonformat.Tokens{
		"method":        withContext(method),
		"url":           withContext(url),
		"status":        withContext(status),
		"response-time": withContext(responseTime),
		"total-time":    withContext(totalTime),
		"date":          withContext(date),
		"remote-addr":   withContext(remoteAddr),
		"remote-user":   withContext(remoteUser),
		"http-version":  withContext(httpVersion),
		"referrer":      withContext(referrer),
		"user-agent":    withContext(userAgent),
		"req":           withContext(reqHeader),
		"res":           withContext(resHeader),
		"request-id":    withContext(requestID),
		"field":         withContext(field),
	}
}

// Names lists the tokens of Default in sorted order.
func Names() []string {
	set := Default()
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

type contextFunc func(c *Context, arg string) any

func withContext(fn contextFunc) jsonformat.TokenFunc {
	return func(ctx any, arg string) (any, error) {
		c, err := FromAny(ctx)
		if err != nil {
			return nil, err
		}
		return fn(c, arg), nil
	}
}

// FromAny extracts the Context a formatter was invoked with.
func FromAny(ctx any) (*Context, error) {
	switch c := ctx.(type) {
	case *Context:
		if c != nil {
			return c, nil
		}
	case Context:
		return &c, nil
	}
	return nil, fmt.Errorf("tokens: unsupported context %T", ctx)
}

func method(c *Context, _ string) any {
	if c.Request == nil {
		return nil
	}
	return c.Request.Method
}

func url(c *Context, _ string) any {
	if c.Request == nil {
		return nil
	}
	if c.Request.RequestURI != "" {
		return c.Request.RequestURI
	}
	if c.Request.URL == nil {
		return nil
	}
	return c.Request.URL.RequestURI()
}

func status(c *Context, _ string) any {
	if !c.headersSent() {
		return nil
	}
	return c.Status
}

// responseTime is the time until the response header was written, in
// milliseconds with arg digits (default 3).
func responseTime(c *Context, arg string) any {
	end := c.HeaderWritten
	if end.IsZero() {
		end = c.End
	}
	return elapsed(c.Start, end, arg)
}

func totalTime(c *Context, arg string) any {
	return elapsed(c.Start, c.End, arg)
}

func elapsed(start, end time.Time, arg string) any {
	if start.IsZero() || end.IsZero() {
		return nil
	}
	digits := 3
	if arg != "" {
		n, err := strconv.Atoi(arg)
		if err != nil || n < 0 || n > 20 {
			return nil
		}
		digits = n
	}
	ms := float64(end.Sub(start)) / float64(time.Millisecond)
	return strconv.FormatFloat(ms, 'f', digits, 64)
}

func date(c *Context, arg string) any {
	ts := c.End
	if ts.IsZero() {
		ts = time.Now()
	}
	ts = ts.UTC()
	switch arg {
	case "clf":
		return ts.Format(clfLayout)
	case "iso":
		return ts.Format(isoLayout)
	case "", "web":
		return ts.Format(http.TimeFormat)
	}
	return nil
}

func remoteAddr(c *Context, _ string) any {
	if c.Request == nil || c.Request.RemoteAddr == "" {
		return nil
	}
	host, _, err := net.SplitHostPort(c.Request.RemoteAddr)
	if err != nil {
		return c.Request.RemoteAddr
	}
	return host
}

func remoteUser(c *Context, _ string) any {
	if c.Request == nil {
		return nil
	}
	user, _, ok := c.Request.BasicAuth()
	if !ok || user == "" {
		return nil
	}
	return user
}

func httpVersion(c *Context, _ string) any {
	if c.Request == nil {
		return nil
	}
	return strconv.Itoa(c.Request.ProtoMajor) + "." + strconv.Itoa(c.Request.ProtoMinor)
}

func referrer(c *Context, _ string) any {
	if c.Request == nil {
		return nil
	}
	if v := c.Request.Header.Get("Referer"); v != "" {
		return v
	}
	return headerValue(c.Request.Header, "Referrer")
}

func userAgent(c *Context, _ string) any {
	if c.Request == nil {
		return nil
	}
	return headerValue(c.Request.Header, "User-Agent")
}

func reqHeader(c *Context, arg string) any {
	if c.Request == nil || arg == "" {
		return nil
	}
	return headerValue(c.Request.Header, arg)
}

// resHeader reads a response header. content-length falls back to the
// counted body size when the handler did not set it.
func resHeader(c *Context, arg string) any {
	if !c.headersSent() || arg == "" {
		return nil
	}
	if v := headerValue(c.Header, arg); v != nil {
		return v
	}
	if strings.EqualFold(arg, "content-length") && c.Size > 0 {
		return strconv.FormatInt(c.Size, 10)
	}
	return nil
}

func requestID(c *Context, _ string) any {
	if c.RequestID == "" {
		return nil
	}
	return c.RequestID
}

func field(c *Context, arg string) any {
	if arg == "" || c.Fields == nil {
		return nil
	}
	return c.Fields[arg]
}

func headerValue(h http.Header, name string) any {
	if h == nil {
		return nil
	}
	vals := h.Values(name)
	if len(vals) == 0 {
		return nil
	}
	return strings.Join(vals, ", ")
}
