package jsonformat

import (
	"errors"
	"fmt"
	"strings"

	"github.com/hashicorp/hcl/v2"
)

var (
	ErrEmptyFormat   = errors.New("argument format string must not be empty")
	ErrInvalidFormat = errors.New("argument format must be a string or an object")
)

// InvalidTypeError reports an unsupported "type" on a mapped format property.
type InvalidTypeError struct {
	Key  string
	Type string
}

func (e *InvalidTypeError) Error() string {
	return fmt.Sprintf("invalid \"type\" specified for property: %s", e.Key)
}

// ExpressionError reports a value expression that cannot be compiled.
type ExpressionError struct {
	Key    string
	Source string
	Diags  hcl.Diagnostics
	Reason string
}

func (e *ExpressionError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "invalid value expression for property %s", e.Key)
	if e.Reason != "" {
		b.WriteString(": ")
		b.WriteString(e.Reason)
	}
	for _, d := range e.Diags {
		if d.Severity != hcl.DiagError {
			continue
		}
		b.WriteString(": ")
		b.WriteString(d.Summary)
		if d.Detail != "" {
			b.WriteString(" (")
			b.WriteString(d.Detail)
			b.WriteString(")")
		}
	}
	return b.String()
}

// UnknownTokenError is returned at render time when a template references a
// token the resolver does not provide.
type UnknownTokenError struct {
	Name string
}

func (e *UnknownTokenError) Error() string {
	return fmt.Sprintf("unknown token %q", e.Name)
}

func invalidFormatf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidFormat, fmt.Sprintf(format, args...))
}
