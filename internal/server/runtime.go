package server

import (
	"fmt"
	"log"
	"sync/atomic"

	"github.com/go-logr/logr"
	"github.com/go-logr/logr/funcr"

	"github.com/r9s-ai/jsonlog/pkg/config"
	"github.com/r9s-ai/jsonlog/pkg/jsonformat"
)

// runtime owns the live access log formatter. Requests read it lock-free;
// reloads replace it only after the new format compiled.
type runtime struct {
	cfgPath   string
	formatter atomic.Pointer[jsonformat.Formatter]
}

type reloadResult struct {
	Mode string
	Keys []string
}

func newRuntime(cfgPath string, cfg *config.Config) (*runtime, error) {
	f, err := compileFormat(cfg)
	if err != nil {
		return nil, fmt.Errorf("compile access log format: %w", err)
	}
	rt := &runtime{cfgPath: cfgPath}
	rt.formatter.Store(f)
	return rt, nil
}

func (rt *runtime) Formatter() *jsonformat.Formatter {
	return rt.formatter.Load()
}

// Reload re-reads the config file and swaps in the recompiled format. On
// error the current formatter stays in place.
func (rt *runtime) Reload() (reloadResult, error) {
	cfg, err := loadConfig(rt.cfgPath)
	if err != nil {
		return reloadResult{}, fmt.Errorf("reload config %q: %w", rt.cfgPath, err)
	}
	f, err := compileFormat(cfg)
	if err != nil {
		return reloadResult{}, fmt.Errorf("recompile access log format: %w", err)
	}
	rt.formatter.Store(f)
	return reloadResult{Mode: f.Mode(), Keys: f.Keys()}, nil
}

func compileFormat(cfg *config.Config) (*jsonformat.Formatter, error) {
	format, err := cfg.Logging.Format()
	if err != nil {
		return nil, err
	}
	return jsonformat.Compile(format, jsonformat.WithTracer(formatTracer(cfg.Logging.TraceFormat, log.Default())))
}

// formatTracer prints the compiled plan through l when enabled.
func formatTracer(enabled bool, l *log.Logger) logr.Logger {
	if !enabled || l == nil {
		return logr.Discard()
	}
	return funcr.New(func(prefix, args string) {
		if prefix != "" {
			l.Printf("[%s] %s", prefix, args)
			return
		}
		l.Print(args)
	}, funcr.Options{Verbosity: 1}).WithName("access_log_format")
}
