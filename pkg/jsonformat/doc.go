// Package jsonformat compiles access log templates into reusable JSON
// formatters.
//
// A template is literal text interleaved with token references written as
// :name or :name[arg]. Token names are at least two characters long and made
// of letters, digits, underscores and hyphens. A format is either a single
// template string, rendered into an object keyed by token name, or an ordered
// mapping of output key to TokenTemplate.
//
// Compilation happens once; the returned Formatter holds only immutable data
// and is safe for concurrent use. Each invocation resolves tokens through a
// Resolver, applies type coercion and the default-value policy, and emits
// either a serialized JSON string or a Record.
//
// The default-value policy is a falsy test, not an absent test: nil, "",
// false, numeric zero and NaN all take the default ("-" unless overridden).
package jsonformat
