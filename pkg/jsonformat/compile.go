package jsonformat

import (
	"fmt"
	"sort"
	"strings"
)

// Formatter renders one JSON record per invocation. It is immutable and safe
// for concurrent use.
type Formatter struct {
	fields    []compiledField
	stringify bool
	mode      string
}

type evalFunc func(r Resolver, ctx any) (any, error)

type compiledField struct {
	key  string
	plan FieldPlan
	eval evalFunc
}

// FieldPlan describes how one output property is produced.
type FieldPlan struct {
	Key      string
	Mode     string
	Template string
	Type     string
	Tokens   []TokenRef
	// Trailer is the literal suffix of a whole-template field.
	Trailer string
	// Expression is the rewritten value expression for "*" templates.
	Expression string
	Default    any
	NoDefault  bool
}

const (
	ModeToken       = "token"
	ModeConstant    = "constant"
	ModeString      = "string"
	ModePassthrough = "passthrough"
	ModeExpression  = "expression"
	ModeConvert     = "convert"
)

// Compile builds a Formatter from a template string or a mapped format.
//
// Accepted formats are string, MappedFormat, []Field, map[string]string,
// map[string]TokenTemplate and map[string]any. Plain Go maps carry no order,
// so their keys are emitted sorted.
func Compile(format any, opts ...Option) (*Formatter, error) {
	o := defaultCompileOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}

	var (
		f   *Formatter
		err error
	)
	switch v := format.(type) {
	case string:
		if v == "" {
			return nil, ErrEmptyFormat
		}
		f = compileString(v)
	default:
		mf, nerr := normalizeMapped(format)
		if nerr != nil {
			return nil, nerr
		}
		f, err = compileMapped(mf, o)
		if err != nil {
			return nil, err
		}
	}
	f.stringify = o.stringify
	trace(o, f)
	return f, nil
}

func trace(o compileOptions, f *Formatter) {
	l := o.tracer.V(1)
	if !l.Enabled() {
		return
	}
	l.Info("compiled access log format", "mode", f.mode, "fields", len(f.fields), "stringify", f.stringify)
	for _, p := range f.Plan() {
		kv := []any{"key", p.Key, "mode", p.Mode, "template", p.Template, "type", p.Type}
		if p.Expression != "" {
			kv = append(kv, "expression", p.Expression)
		}
		if p.Trailer != "" {
			kv = append(kv, "trailer", p.Trailer)
		}
		l.Info("format field", kv...)
	}
}

func compileString(template string) *Formatter {
	order, byName := parseStringFormat(template)
	f := &Formatter{mode: "string", fields: make([]compiledField, 0, len(order))}
	for _, name := range order {
		sf := byName[name]
		ref, trailer := sf.token, sf.trailer
		f.fields = append(f.fields, compiledField{
			key: name,
			plan: FieldPlan{
				Key:      name,
				Mode:     ModeToken,
				Template: ref.String(),
				Type:     "*",
				Tokens:   []TokenRef{ref},
				Trailer:  trailer,
				Default:  "-",
			},
			eval: func(r Resolver, ctx any) (any, error) {
				v, err := r.Resolve(ref.Name, ctx, ref.Arg)
				if err != nil {
					return nil, err
				}
				if Falsy(v) {
					v = "-"
				}
				if trailer == "" {
					return v, nil
				}
				return Stringify(v) + trailer, nil
			},
		})
	}
	return f
}

func compileMapped(mf MappedFormat, o compileOptions) (*Formatter, error) {
	f := &Formatter{mode: "object", fields: make([]compiledField, 0, len(mf))}
	seen := make(map[string]struct{}, len(mf))
	for _, fld := range mf {
		if _, dup := seen[fld.Key]; dup {
			return nil, invalidFormatf("duplicate property %q", fld.Key)
		}
		seen[fld.Key] = struct{}{}
		cf, err := compileField(fld.Key, fld.Template, o)
		if err != nil {
			return nil, err
		}
		f.fields = append(f.fields, cf)
	}
	return f, nil
}

func compileField(key string, t TokenTemplate, o compileOptions) (compiledField, error) {
	segs := Parse(t.Value)
	plan := FieldPlan{
		Key:       key,
		Template:  t.Value,
		Type:      t.Type.String(),
		Tokens:    tokenRefs(segs),
		Default:   t.defaultValue(),
		NoDefault: t.NoDefault,
	}
	cf := compiledField{key: key}

	if tokenCount(segs) == 0 {
		switch t.Type.kind {
		case kindNamed:
			if _, ok := o.converter(t.Type.name); !ok {
				return cf, &InvalidTypeError{Key: key, Type: t.Type.name}
			}
		case kindFunc:
			if t.Type.fn == nil {
				return cf, &InvalidTypeError{Key: key, Type: "func"}
			}
		}
		literal := literalText(segs)
		plan.Mode = ModeConstant
		cf.plan = plan
		cf.eval = func(Resolver, any) (any, error) { return literal, nil }
		return cf, nil
	}

	pol := policy{def: t.defaultValue(), noDefault: t.NoDefault}
	switch t.Type.kind {
	case kindString:
		plan.Mode = ModeString
		cf.eval = stringEval(segs, pol, nil)
	case kindAny:
		if ref, ok := singleToken(segs); ok {
			plan.Mode = ModePassthrough
			cf.eval = passthroughEval(ref, pol, nil)
			break
		}
		expr, err := compileValueExpr(key, segs)
		if err != nil {
			return cf, err
		}
		plan.Mode = ModeExpression
		plan.Expression = expr.source
		cf.eval = expressionEval(expr, pol)
	case kindNamed, kindFunc:
		conv := t.Type.fn
		if t.Type.kind == kindNamed {
			var ok bool
			if conv, ok = o.converter(t.Type.name); !ok {
				return cf, &InvalidTypeError{Key: key, Type: t.Type.name}
			}
		}
		if conv == nil {
			return cf, &InvalidTypeError{Key: key, Type: "func"}
		}
		plan.Mode = ModeConvert
		if ref, ok := singleToken(segs); ok {
			cf.eval = passthroughEval(ref, pol, conv)
		} else {
			cf.eval = stringEval(segs, pol, conv)
		}
	default:
		return cf, &InvalidTypeError{Key: key, Type: t.Type.String()}
	}
	cf.plan = plan
	return cf, nil
}

type policy struct {
	def       any
	noDefault bool
}

// apply substitutes the default for falsy values unless noDefault is set,
// in which case the value passes through unchanged.
func (p policy) apply(v any) any {
	if p.noDefault || !Falsy(v) {
		return v
	}
	return p.def
}

func stringEval(segs []Segment, pol policy, conv Converter) evalFunc {
	def := Stringify(pol.def)
	return func(r Resolver, ctx any) (any, error) {
		var b strings.Builder
		for _, s := range segs {
			if !s.IsToken() {
				b.WriteString(s.Literal)
				continue
			}
			v, err := r.Resolve(s.Token.Name, ctx, s.Token.Arg)
			if err != nil {
				return nil, err
			}
			if conv != nil {
				v = conv(v, s.Token.Name, s.Token.Arg)
			}
			if Falsy(v) {
				if !pol.noDefault {
					b.WriteString(def)
				}
				continue
			}
			b.WriteString(Stringify(v))
		}
		return b.String(), nil
	}
}

func passthroughEval(ref TokenRef, pol policy, conv Converter) evalFunc {
	return func(r Resolver, ctx any) (any, error) {
		v, err := r.Resolve(ref.Name, ctx, ref.Arg)
		if err != nil {
			return nil, err
		}
		if conv != nil {
			v = conv(v, ref.Name, ref.Arg)
		}
		return pol.apply(v), nil
	}
}

func expressionEval(expr *valueExpr, pol policy) evalFunc {
	return func(r Resolver, ctx any) (any, error) {
		values := make([]any, len(expr.tokens))
		for i, ref := range expr.tokens {
			v, err := r.Resolve(ref.Name, ctx, ref.Arg)
			if err != nil {
				return nil, err
			}
			values[i] = pol.apply(v)
		}
		if out, ok := expr.eval(values); ok {
			return out, nil
		}
		if pol.noDefault {
			return nil, nil
		}
		return pol.def, nil
	}
}

func tokenRefs(segs []Segment) []TokenRef {
	out := make([]TokenRef, 0, len(segs))
	for _, s := range segs {
		if s.IsToken() {
			out = append(out, *s.Token)
		}
	}
	return out
}

// Record renders the structured output.
func (f *Formatter) Record(r Resolver, ctx any) (Record, error) {
	if r == nil {
		r = Tokens(nil)
	}
	out := make(Record, 0, len(f.fields))
	for _, fld := range f.fields {
		v, err := fld.eval(r, ctx)
		if err != nil {
			return nil, err
		}
		out = append(out, Value{Key: fld.key, Value: v})
	}
	return out, nil
}

// Format renders the serialized JSON text.
func (f *Formatter) Format(r Resolver, ctx any) (string, error) {
	rec, err := f.Record(r, ctx)
	if err != nil {
		return "", err
	}
	b, err := rec.MarshalJSON()
	if err != nil {
		return "", fmt.Errorf("encode record: %w", err)
	}
	return string(b), nil
}

// Render returns a string or a Record depending on WithStringify.
func (f *Formatter) Render(r Resolver, ctx any) (any, error) {
	if f.stringify {
		return f.Format(r, ctx)
	}
	return f.Record(r, ctx)
}

func (f *Formatter) Stringify() bool { return f.stringify }

// Mode is "string" for a whole-template format and "object" otherwise.
func (f *Formatter) Mode() string { return f.mode }

// Plan returns a copy of the compiled field descriptions.
func (f *Formatter) Plan() []FieldPlan {
	out := make([]FieldPlan, 0, len(f.fields))
	for _, fld := range f.fields {
		p := fld.plan
		p.Tokens = append([]TokenRef(nil), p.Tokens...)
		out = append(out, p)
	}
	return out
}

func (f *Formatter) Keys() []string {
	out := make([]string, 0, len(f.fields))
	for _, fld := range f.fields {
		out = append(out, fld.key)
	}
	return out
}

func normalizeMapped(format any) (MappedFormat, error) {
	switch v := format.(type) {
	case MappedFormat:
		if v == nil {
			return nil, ErrInvalidFormat
		}
		return v, nil
	case *MappedFormat:
		if v == nil || *v == nil {
			return nil, ErrInvalidFormat
		}
		return *v, nil
	case []Field:
		if v == nil {
			return nil, ErrInvalidFormat
		}
		return MappedFormat(v), nil
	case map[string]string:
		if v == nil {
			return nil, ErrInvalidFormat
		}
		out := make(MappedFormat, 0, len(v))
		for _, k := range sortedKeys(v) {
			out = append(out, Field{Key: k, Template: T(v[k])})
		}
		return out, nil
	case map[string]TokenTemplate:
		if v == nil {
			return nil, ErrInvalidFormat
		}
		out := make(MappedFormat, 0, len(v))
		for _, k := range sortedKeys(v) {
			out = append(out, Field{Key: k, Template: v[k]})
		}
		return out, nil
	case map[string]any:
		if v == nil {
			return nil, ErrInvalidFormat
		}
		out := make(MappedFormat, 0, len(v))
		for _, k := range sortedKeys(v) {
			tt, err := templateFromAny(k, v[k])
			if err != nil {
				return nil, err
			}
			out = append(out, Field{Key: k, Template: tt})
		}
		return out, nil
	}
	return nil, ErrInvalidFormat
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func templateFromAny(key string, v any) (TokenTemplate, error) {
	switch t := v.(type) {
	case string:
		return T(t), nil
	case TokenTemplate:
		return t, nil
	case *TokenTemplate:
		if t != nil {
			return *t, nil
		}
	case map[string]any:
		return templateFromMap(key, t)
	}
	return TokenTemplate{}, invalidFormatf("property %q must be a template string or an object", key)
}

func templateFromMap(key string, m map[string]any) (TokenTemplate, error) {
	var tt TokenTemplate
	value, ok := m["value"].(string)
	if !ok {
		return tt, invalidFormatf("property %q has no \"value\" template", key)
	}
	tt.Value = value

	switch typ := m["type"].(type) {
	case nil:
	case string:
		tt.Type = ParseType(typ)
	case Type:
		tt.Type = typ
	case Converter:
		tt.Type = Convert(typ)
	case func(any, string, string) any:
		tt.Type = Convert(typ)
	default:
		return tt, &InvalidTypeError{Key: key, Type: fmt.Sprintf("%T", typ)}
	}

	tt.DefaultValue = m["defaultValue"]
	tt.NoDefault, _ = m["noDefault"].(bool)
	tt.Required, _ = m["required"].(bool)
	return tt, nil
}
