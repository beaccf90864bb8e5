// Package middleware writes one JSON access log line per request for gin,
// net/http (chi) and echo servers.
package middleware

import (
	"context"
	"log"
	"net/http"
	"os"
	"strings"
	"sync"

	"github.com/r9s-ai/jsonlog/pkg/jsonformat"
	"github.com/r9s-ai/jsonlog/pkg/requestid"
	"github.com/r9s-ai/jsonlog/pkg/tokens"
)

// RequestIDKey is the gin/echo context key holding the request id.
const RequestIDKey = "jsonlog.request_id"

type Options struct {
	// Formatter renders the line. Source, when set, is consulted on every
	// request instead so a formatter can be swapped at runtime.
	Formatter *jsonformat.Formatter
	Source    func() *jsonformat.Formatter

	// Tokens defaults to tokens.Default().
	Tokens jsonformat.Resolver
	// Logger defaults to a bare logger on stdout.
	Logger *log.Logger

	RequestIDHeader string
	// GenerateRequestID is used when the client sent no usable id.
	// Defaults to requestid.Gen.
	GenerateRequestID func() string
	SkipPaths         []string
	// OnError receives render failures. Defaults to log.Printf.
	OnError func(err error)
}

type accessLogger struct {
	source   func() *jsonformat.Formatter
	tokens   jsonformat.Resolver
	logger   *log.Logger
	header   string
	generate func() string
	skip     map[string]struct{}
	onError  func(err error)
}

func newAccessLogger(opts Options) *accessLogger {
	a := &accessLogger{
		source:   opts.Source,
		tokens:   opts.Tokens,
		logger:   opts.Logger,
		header:   requestid.ResolveHeaderKey(opts.RequestIDHeader),
		generate: opts.GenerateRequestID,
		skip:     make(map[string]struct{}, len(opts.SkipPaths)),
		onError:  opts.OnError,
	}
	if a.source == nil {
		f := opts.Formatter
		a.source = func() *jsonformat.Formatter { return f }
	}
	if a.tokens == nil {
		a.tokens = tokens.Default()
	}
	if a.logger == nil {
		a.logger = log.New(os.Stdout, "", 0)
	}
	if a.generate == nil {
		a.generate = requestid.Gen
	}
	if a.onError == nil {
		a.onError = func(err error) { log.Printf("access log render failed: err=%v", err) }
	}
	for _, p := range opts.SkipPaths {
		if p = strings.TrimSpace(p); p != "" {
			a.skip[p] = struct{}{}
		}
	}
	return a
}

func (a *accessLogger) skipped(path string) bool {
	_, ok := a.skip[path]
	return ok
}

func (a *accessLogger) requestID(r *http.Request) string {
	if id, ok := requestid.FromRequest(r, a.header); ok {
		return id
	}
	return a.generate()
}

func (a *accessLogger) emit(c *tokens.Context) {
	f := a.source()
	if f == nil {
		return
	}
	line, err := f.Format(a.tokens, c)
	if err != nil {
		a.onError(err)
		return
	}
	a.logger.Println(line)
}

type fieldsKey struct{}
type requestIDKey struct{}

type fieldSet struct {
	mu sync.Mutex
	m  map[string]any
}

func (s *fieldSet) set(key string, v any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.m == nil {
		s.m = map[string]any{}
	}
	s.m[key] = v
}

func (s *fieldSet) snapshot(into map[string]any) map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.m) == 0 {
		return into
	}
	if into == nil {
		into = make(map[string]any, len(s.m))
	}
	for k, v := range s.m {
		into[k] = v
	}
	return into
}

func withRequestState(ctx context.Context, id string) (context.Context, *fieldSet) {
	fs := &fieldSet{}
	ctx = context.WithValue(ctx, fieldsKey{}, fs)
	if id != "" {
		ctx = context.WithValue(ctx, requestIDKey{}, id)
	}
	return ctx, fs
}

// SetField records a value for the :field[key] token of the current request.
// It reports false when ctx does not come from a logged request.
func SetField(ctx context.Context, key string, v any) bool {
	fs, ok := ctx.Value(fieldsKey{}).(*fieldSet)
	if !ok {
		return false
	}
	fs.set(key, v)
	return true
}

func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
