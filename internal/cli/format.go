package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/r9s-ai/jsonlog/pkg/config"
	"github.com/r9s-ai/jsonlog/pkg/jsonformat"
)

// formatOptions selects the format for render and explain. The first set
// source wins: --format, --fields, --preset, --config, then the default
// preset.
type formatOptions struct {
	format     string
	fieldsPath string
	preset     string
	cfgPath    string
}

func (o *formatOptions) bind(fs *pflag.FlagSet) {
	fs.StringVarP(&o.format, "format", "f", "", "template string, e.g. \":method :url :status\"")
	fs.StringVar(&o.fieldsPath, "fields", "", "yaml file mapping output keys to templates")
	fs.StringVarP(&o.preset, "preset", "p", "", "named preset ("+strings.Join(jsonformat.PresetNames(), ", ")+")")
	fs.StringVarP(&o.cfgPath, "config", "c", "", "take the format from a config yaml")
}

func (o formatOptions) resolve() (any, error) {
	if o.format != "" {
		return o.format, nil
	}
	if p := strings.TrimSpace(o.fieldsPath); p != "" {
		// #nosec G304 -- fields path comes from a trusted flag.
		b, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("read fields %q: %w", p, err)
		}
		var mf jsonformat.MappedFormat
		if err := yaml.Unmarshal(b, &mf); err != nil {
			return nil, fmt.Errorf("parse fields %q: %w", p, err)
		}
		return mf, nil
	}
	if name := strings.TrimSpace(o.preset); name != "" {
		f, ok := jsonformat.Preset(strings.ToLower(name))
		if !ok {
			return nil, fmt.Errorf("unknown preset %q (known: %s)", name, strings.Join(jsonformat.PresetNames(), ", "))
		}
		return f, nil
	}
	if p := strings.TrimSpace(o.cfgPath); p != "" {
		cfg, err := config.Load(p)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		return cfg.Logging.Format()
	}
	f, _ := jsonformat.Preset(jsonformat.DefaultPreset)
	return f, nil
}

func (o formatOptions) compile(extra ...jsonformat.Option) (*jsonformat.Formatter, error) {
	format, err := o.resolve()
	if err != nil {
		return nil, err
	}
	f, err := jsonformat.Compile(format, extra...)
	if err != nil {
		return nil, fmt.Errorf("compile format: %w", err)
	}
	return f, nil
}
