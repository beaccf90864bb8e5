package jsonformat

import "github.com/go-logr/logr"

// Option configures Compile.
type Option func(*compileOptions)

type compileOptions struct {
	stringify  bool
	tracer     logr.Logger
	converters map[string]Converter
}

func defaultCompileOptions() compileOptions {
	return compileOptions{
		stringify: true,
		tracer:    logr.Discard(),
	}
}

// WithStringify selects what Render returns: the serialized JSON string
// (true, the default) or the Record.
func WithStringify(stringify bool) Option {
	return func(o *compileOptions) { o.stringify = stringify }
}

// WithTracer receives the compiled plan at V(1) once per Compile call.
func WithTracer(l logr.Logger) Option {
	return func(o *compileOptions) { o.tracer = l }
}

// WithConverter registers a named converter usable as a template type. It
// shadows the built-in integer and float converters when names collide.
func WithConverter(name string, fn Converter) Option {
	return func(o *compileOptions) {
		if fn == nil {
			return
		}
		if o.converters == nil {
			o.converters = map[string]Converter{}
		}
		o.converters[name] = fn
	}
}

func (o compileOptions) converter(name string) (Converter, bool) {
	if fn, ok := o.converters[name]; ok {
		return fn, true
	}
	fn, ok := builtinConverters[name]
	return fn, ok
}
