package server

import (
	"fmt"
	"log"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/r9s-ai/jsonlog/pkg/config"
	"github.com/r9s-ai/jsonlog/pkg/jsonformat"
	"github.com/r9s-ai/jsonlog/pkg/middleware"
	"github.com/r9s-ai/jsonlog/pkg/requestid"
)

const healthzPath = "/healthz"

// NewRouter builds the engine. source is read per request so reloads take
// effect without rebuilding the router.
func NewRouter(cfg *config.Config, source func() *jsonformat.Formatter, accessLogger *log.Logger) (*gin.Engine, error) {
	backend, err := newBackend(cfg.Proxy.Upstream)
	if err != nil {
		return nil, err
	}

	r := gin.New()
	if cfg.Logging.AccessLog {
		skip := cfg.Logging.SkipPaths
		if skip == nil {
			skip = []string{healthzPath}
		}
		r.Use(middleware.Gin(middleware.Options{
			Source:            source,
			Logger:            accessLogger,
			RequestIDHeader:   cfg.Logging.RequestIDHeader,
			GenerateRequestID: requestid.Generator(cfg.Logging.RequestIDStyle),
			SkipPaths:         skip,
		}))
	}
	r.Use(gin.Recovery())

	r.GET(healthzPath, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	r.NoRoute(backend)
	return r, nil
}

func newBackend(upstream string) (gin.HandlerFunc, error) {
	upstream = strings.TrimSpace(upstream)
	if upstream == "" {
		return echoRequest, nil
	}
	target, err := url.Parse(upstream)
	if err != nil {
		return nil, fmt.Errorf("parse proxy.upstream: %w", err)
	}
	rp := &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(target)
			pr.SetXForwarded()
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			log.Printf("upstream request failed: upstream=%q path=%q err=%v", target.Host, r.URL.Path, err)
			w.WriteHeader(http.StatusBadGateway)
		},
	}
	return func(c *gin.Context) {
		middleware.SetField(c.Request.Context(), "upstream", target.Host)
		rp.ServeHTTP(c.Writer, c.Request)
	}, nil
}

// echoRequest answers with a description of the request when no upstream is
// configured.
func echoRequest(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"method":     c.Request.Method,
		"path":       c.Request.URL.Path,
		"query":      c.Request.URL.RawQuery,
		"request_id": c.GetString(middleware.RequestIDKey),
	})
}
