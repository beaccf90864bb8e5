package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/r9s-ai/jsonlog/pkg/jsonformat"
)

const (
	defaultListen                    = ":3310"
	defaultTimeoutMs                 = 60000
	defaultAccessLogRotateMaxSizeMB  = 100
	defaultAccessLogRotateMaxBackups = 14
	defaultAccessLogRotateMaxAgeDays = 14
	defaultAutoReloadDebounceMs      = 300
)

type AccessLogRotateConfig struct {
	Enabled    bool `yaml:"enabled"`
	MaxSizeMB  int  `yaml:"max_size_mb"`
	MaxBackups int  `yaml:"max_backups"`
	MaxAgeDays int  `yaml:"max_age_days"`
	Compress   bool `yaml:"compress"`

	maxSizeMBSet  bool `yaml:"-"`
	maxBackupsSet bool `yaml:"-"`
	maxAgeDaysSet bool `yaml:"-"`
}

func (c *AccessLogRotateConfig) UnmarshalYAML(value *yaml.Node) error {
	type plain AccessLogRotateConfig
	var raw plain
	if err := value.Decode(&raw); err != nil {
		return err
	}
	*c = AccessLogRotateConfig(raw)
	for _, key := range mappingKeys(value) {
		switch key {
		case "max_size_mb":
			c.maxSizeMBSet = true
		case "max_backups":
			c.maxBackupsSet = true
		case "max_age_days":
			c.maxAgeDaysSet = true
		}
	}
	return nil
}

type AutoReloadConfig struct {
	Enabled    bool `yaml:"enabled"`
	DebounceMs int  `yaml:"debounce_ms"`
}

type LoggingConfig struct {
	AccessLog     bool   `yaml:"access_log"`
	AccessLogPath string `yaml:"access_log_path"`
	// AccessLogFormat is a whole-template format; AccessLogFields, when set,
	// takes precedence and maps output keys to templates.
	AccessLogFormat       string                  `yaml:"access_log_format"`
	AccessLogFields       jsonformat.MappedFormat `yaml:"access_log_fields"`
	AccessLogFormatPreset string                  `yaml:"access_log_format_preset"`
	AccessLogRotate       AccessLogRotateConfig   `yaml:"access_log_rotate"`
	SkipPaths             []string                `yaml:"skip_paths"`
	RequestIDHeader       string                  `yaml:"request_id_header"`
	RequestIDStyle        string                  `yaml:"request_id_style"`
	// TraceFormat logs the compiled plan of the access log format.
	TraceFormat bool             `yaml:"trace_format"`
	AutoReload  AutoReloadConfig `yaml:"auto_reload"`

	accessLogSet bool `yaml:"-"`
}

func (c *LoggingConfig) UnmarshalYAML(value *yaml.Node) error {
	type plain LoggingConfig
	var raw plain
	if err := value.Decode(&raw); err != nil {
		return err
	}
	*c = LoggingConfig(raw)
	for _, key := range mappingKeys(value) {
		if key == "access_log" {
			c.accessLogSet = true
		}
	}
	return nil
}

// Format returns the access log format to compile: access_log_fields, then
// access_log_format, then the named preset, then the default preset.
func (c LoggingConfig) Format() (any, error) {
	if len(c.AccessLogFields) > 0 {
		return c.AccessLogFields, nil
	}
	if strings.TrimSpace(c.AccessLogFormat) != "" {
		return c.AccessLogFormat, nil
	}
	name := strings.ToLower(strings.TrimSpace(c.AccessLogFormatPreset))
	if name == "" {
		name = jsonformat.DefaultPreset
	}
	f, ok := jsonformat.Preset(name)
	if !ok {
		return nil, fmt.Errorf("invalid logging.access_log_format_preset: %q (known: %s)", c.AccessLogFormatPreset, strings.Join(jsonformat.PresetNames(), ", "))
	}
	return f, nil
}

type Config struct {
	Server struct {
		Listen         string `yaml:"listen"`
		ReadTimeoutMs  int    `yaml:"read_timeout_ms"`
		WriteTimeoutMs int    `yaml:"write_timeout_ms"`
	} `yaml:"server"`

	Proxy struct {
		// Upstream, when set, receives every request; otherwise the built-in
		// echo handler answers.
		Upstream string `yaml:"upstream"`
	} `yaml:"proxy"`

	Logging LoggingConfig `yaml:"logging"`
}

func Load(path string) (*Config, error) {
	// #nosec G304 -- path is provided by trusted config/flag.
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(b)
}

func Parse(b []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, err
	}
	return finish(&cfg)
}

// Default returns the configuration used without a config file, with
// environment overrides applied.
func Default() (*Config, error) {
	return finish(&Config{})
}

func finish(cfg *Config) (*Config, error) {
	applyDefaults(cfg)
	applyEnvOverrides(cfg)
	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.Server.Listen) == "" {
		cfg.Server.Listen = defaultListen
	}
	if cfg.Server.ReadTimeoutMs <= 0 {
		cfg.Server.ReadTimeoutMs = defaultTimeoutMs
	}
	if cfg.Server.WriteTimeoutMs <= 0 {
		cfg.Server.WriteTimeoutMs = defaultTimeoutMs
	}
	if !cfg.Logging.accessLogSet {
		cfg.Logging.AccessLog = true
	}
	if cfg.Logging.AutoReload.DebounceMs <= 0 {
		cfg.Logging.AutoReload.DebounceMs = defaultAutoReloadDebounceMs
	}
	if !cfg.Logging.AccessLogRotate.maxSizeMBSet {
		cfg.Logging.AccessLogRotate.MaxSizeMB = defaultAccessLogRotateMaxSizeMB
	}
	if !cfg.Logging.AccessLogRotate.maxBackupsSet {
		cfg.Logging.AccessLogRotate.MaxBackups = defaultAccessLogRotateMaxBackups
	}
	if !cfg.Logging.AccessLogRotate.maxAgeDaysSet {
		cfg.Logging.AccessLogRotate.MaxAgeDays = defaultAccessLogRotateMaxAgeDays
	}
}

func applyEnvOverrides(cfg *Config) {
	applyEnvServerOverrides(cfg)
	applyEnvLoggingOverrides(cfg)
}

func applyEnvServerOverrides(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("JSONLOG_LISTEN")); v != "" {
		cfg.Server.Listen = v
	}
	if n, ok := envInt("JSONLOG_READ_TIMEOUT_MS"); ok && n > 0 {
		cfg.Server.ReadTimeoutMs = n
	}
	if n, ok := envInt("JSONLOG_WRITE_TIMEOUT_MS"); ok && n > 0 {
		cfg.Server.WriteTimeoutMs = n
	}
	if v, ok := os.LookupEnv("JSONLOG_PROXY_UPSTREAM"); ok {
		cfg.Proxy.Upstream = strings.TrimSpace(v)
	}
}

func applyEnvLoggingOverrides(cfg *Config) {
	l := &cfg.Logging
	l.AccessLog = envBool("JSONLOG_ACCESS_LOG", l.AccessLog)
	if v := strings.TrimSpace(os.Getenv("JSONLOG_ACCESS_LOG_PATH")); v != "" {
		l.AccessLogPath = v
	}
	if v := os.Getenv("JSONLOG_ACCESS_LOG_FORMAT"); strings.TrimSpace(v) != "" {
		l.AccessLogFormat = v
		l.AccessLogFields = nil
	}
	if v := strings.TrimSpace(os.Getenv("JSONLOG_ACCESS_LOG_FORMAT_PRESET")); v != "" {
		l.AccessLogFormatPreset = v
	}
	l.AccessLogRotate.Enabled = envBool("JSONLOG_ACCESS_LOG_ROTATE_ENABLED", l.AccessLogRotate.Enabled)
	if n, ok := envInt("JSONLOG_ACCESS_LOG_ROTATE_MAX_SIZE_MB"); ok {
		l.AccessLogRotate.MaxSizeMB = n
	}
	if n, ok := envInt("JSONLOG_ACCESS_LOG_ROTATE_MAX_BACKUPS"); ok {
		l.AccessLogRotate.MaxBackups = n
	}
	if n, ok := envInt("JSONLOG_ACCESS_LOG_ROTATE_MAX_AGE_DAYS"); ok {
		l.AccessLogRotate.MaxAgeDays = n
	}
	l.AccessLogRotate.Compress = envBool("JSONLOG_ACCESS_LOG_ROTATE_COMPRESS", l.AccessLogRotate.Compress)
	if v := strings.TrimSpace(os.Getenv("JSONLOG_REQUEST_ID_HEADER")); v != "" {
		l.RequestIDHeader = v
	}
	if v := strings.TrimSpace(os.Getenv("JSONLOG_REQUEST_ID_STYLE")); v != "" {
		l.RequestIDStyle = v
	}
	l.TraceFormat = envBool("JSONLOG_TRACE_FORMAT", l.TraceFormat)
	l.AutoReload.Enabled = envBool("JSONLOG_AUTO_RELOAD_ENABLED", l.AutoReload.Enabled)
	if n, ok := envInt("JSONLOG_AUTO_RELOAD_DEBOUNCE_MS"); ok {
		l.AutoReload.DebounceMs = n
	}
}

func validate(cfg *Config) error {
	if v := strings.TrimSpace(cfg.Proxy.Upstream); v != "" {
		u, err := url.Parse(v)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return errors.New("proxy.upstream must be an http(s) URL (e.g. http://127.0.0.1:8080)")
		}
	}
	l := cfg.Logging
	if l.AutoReload.Enabled && l.AutoReload.DebounceMs <= 0 {
		return errors.New("logging.auto_reload.debounce_ms must be > 0 when logging.auto_reload.enabled=true")
	}
	switch strings.ToLower(strings.TrimSpace(l.RequestIDStyle)) {
	case "", "uuid", "uuidv4", "digits":
	default:
		return fmt.Errorf("invalid logging.request_id_style: %q", l.RequestIDStyle)
	}
	if l.AccessLogRotate.Enabled {
		if !l.AccessLog {
			return errors.New("logging.access_log must be true when logging.access_log_rotate.enabled=true")
		}
		if strings.TrimSpace(l.AccessLogPath) == "" {
			return errors.New("logging.access_log_path is required when logging.access_log_rotate.enabled=true")
		}
	}
	if l.AccessLogRotate.MaxSizeMB <= 0 {
		return errors.New("logging.access_log_rotate.max_size_mb must be > 0")
	}
	if l.AccessLogRotate.MaxBackups <= 0 {
		return errors.New("logging.access_log_rotate.max_backups must be > 0")
	}
	if l.AccessLogRotate.MaxAgeDays < 0 {
		return errors.New("logging.access_log_rotate.max_age_days must be >= 0")
	}
	format, err := l.Format()
	if err != nil {
		return err
	}
	if _, err := jsonformat.Compile(format); err != nil {
		return fmt.Errorf("invalid access log format: %w", err)
	}
	return nil
}

func mappingKeys(value *yaml.Node) []string {
	if value.Kind != yaml.MappingNode {
		return nil
	}
	keys := make([]string, 0, len(value.Content)/2)
	for i := 0; i+1 < len(value.Content); i += 2 {
		keys = append(keys, strings.TrimSpace(value.Content[i].Value))
	}
	return keys
}

func envInt(name string) (int, bool) {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

func envBool(name string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return def
	}
	switch strings.ToLower(v) {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}
