package jsonformat

// Resolver looks up token values at render time. ctx is whatever the caller
// passed to the formatter and arg is the bracketed argument ("" when absent).
// A nil value means "no value" and takes the default.
type Resolver interface {
	Resolve(name string, ctx any, arg string) (any, error)
}

type TokenFunc func(ctx any, arg string) (any, error)

// Tokens is a Resolver backed by a map of token functions.
type Tokens map[string]TokenFunc

func (t Tokens) Resolve(name string, ctx any, arg string) (any, error) {
	fn, ok := t[name]
	if !ok || fn == nil {
		return nil, &UnknownTokenError{Name: name}
	}
	return fn(ctx, arg)
}

// With returns a copy of t extended (or overridden) by extra.
func (t Tokens) With(extra Tokens) Tokens {
	out := make(Tokens, len(t)+len(extra))
	for k, v := range t {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}

// Static builds a TokenFunc that ignores the context and returns v.
func Static(v any) TokenFunc {
	return func(any, string) (any, error) { return v, nil }
}
