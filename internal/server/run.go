package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/r9s-ai/jsonlog/internal/logx"
	"github.com/r9s-ai/jsonlog/pkg/config"
)

const shutdownTimeout = 10 * time.Second

// Run loads cfgPath (defaults and JSONLOG_* only when empty) and serves
// until SIGINT or SIGTERM.
func Run(cfgPath string) error {
	cfg, err := loadConfig(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	accessLogger, accessClose, err := openAccessLogger(cfg)
	if err != nil {
		return fmt.Errorf("init access log: %w", err)
	}
	if accessClose != nil {
		defer func() { _ = accessClose.Close() }()
	}

	rt, err := newRuntime(cfgPath, cfg)
	if err != nil {
		return err
	}

	reloadMu := &sync.Mutex{}
	stopSignals := installReloadSignalHandler(rt, accessClose, reloadMu)
	defer stopSignals()
	autoReloadClose, err := installAutoReload(cfgPath, cfg.Logging.AutoReload, rt, reloadMu)
	if err != nil {
		return fmt.Errorf("init auto reload: %w", err)
	}
	if autoReloadClose != nil {
		defer func() { _ = autoReloadClose.Close() }()
	}

	engine, err := NewRouter(cfg, rt.Formatter, accessLogger)
	if err != nil {
		return err
	}
	srv := &http.Server{
		Addr:              cfg.Server.Listen,
		Handler:           engine,
		ReadTimeout:       time.Duration(cfg.Server.ReadTimeoutMs) * time.Millisecond,
		ReadHeaderTimeout: time.Duration(cfg.Server.ReadTimeoutMs) * time.Millisecond,
		WriteTimeout:      time.Duration(cfg.Server.WriteTimeoutMs) * time.Millisecond,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	log.Printf("jsonlog listening on %s", cfg.Server.Listen)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("run: %w", err)
	case <-ctx.Done():
	}

	log.Printf("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func loadConfig(cfgPath string) (*config.Config, error) {
	if strings.TrimSpace(cfgPath) == "" {
		return config.Default()
	}
	return config.Load(cfgPath)
}

// openAccessLogger returns the access log sink. The closer is a
// *logx.RotatingFile when rotation is enabled, an *os.File for a plain file,
// and nil for stdout or a disabled access log.
func openAccessLogger(cfg *config.Config) (*log.Logger, io.Closer, error) {
	if cfg == nil || !cfg.Logging.AccessLog {
		return nil, nil, nil
	}

	path := strings.TrimSpace(cfg.Logging.AccessLogPath)
	if path == "" {
		if cfg.Logging.AccessLogRotate.Enabled {
			return nil, nil, errors.New("access_log_rotate requires access_log_path")
		}
		return log.New(os.Stdout, "", 0), nil, nil
	}

	if rc := cfg.Logging.AccessLogRotate; rc.Enabled {
		w, err := logx.NewRotatingFile(logx.RotateOptions{
			Path:       path,
			MaxSizeMB:  rc.MaxSizeMB,
			MaxBackups: rc.MaxBackups,
			MaxAgeDays: rc.MaxAgeDays,
			Compress:   rc.Compress,
		})
		if err != nil {
			return nil, nil, err
		}
		return log.New(w, "", 0), w, nil
	}

	dir := filepath.Dir(path)
	if strings.TrimSpace(dir) != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, nil, err
		}
	}
	// #nosec G304 -- access_log_path comes from trusted config/env.
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, nil, err
	}
	return log.New(f, "", 0), f, nil
}

type closerFunc func() error

func (c closerFunc) Close() error { return c() }

// installReloadSignalHandler recompiles the access log format on SIGHUP and
// reopens a rotating access log so external rotation tools can move it.
func installReloadSignalHandler(rt *runtime, access io.Closer, mu *sync.Mutex) func() {
	if rt == nil || mu == nil {
		return func() {}
	}
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGHUP)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for range ch {
			if r, ok := access.(interface{ Reopen() error }); ok {
				if err := r.Reopen(); err != nil {
					log.Printf("reopen access log failed (signal): %v", err)
				}
			}
			mu.Lock()
			res, err := rt.Reload()
			mu.Unlock()
			if err != nil {
				log.Printf("reload failed (signal): %v", err)
				continue
			}
			log.Printf("reload ok (signal): mode=%s fields=%s", res.Mode, fieldNamesForLog(res.Keys))
		}
	}()
	return func() {
		signal.Stop(ch)
		close(ch)
		<-done
	}
}

func fieldNamesForLog(names []string) string {
	if len(names) == 0 {
		return "<none>"
	}
	return strings.Join(names, ",")
}
