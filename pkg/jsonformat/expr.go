package jsonformat

import (
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"reflect"
	"strconv"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/gocty"
)

// valueExpr is a value expression compiled from a "*" template. Token
// references become the placeholder variables tok0, tok1, ... and the
// literal text around them is expression syntax. Only operators, literals
// and conditionals are allowed: no function calls and no other variables.
type valueExpr struct {
	source string
	expr   hclsyntax.Expression
	tokens []TokenRef
}

func placeholder(i int) string { return "tok" + strconv.Itoa(i) }

func compileValueExpr(key string, segs []Segment) (*valueExpr, error) {
	var src strings.Builder
	tokens := make([]TokenRef, 0, len(segs))
	for _, s := range segs {
		if !s.IsToken() {
			src.WriteString(s.Literal)
			continue
		}
		src.WriteString("(")
		src.WriteString(placeholder(len(tokens)))
		src.WriteString(")")
		tokens = append(tokens, *s.Token)
	}
	source := src.String()

	expr, diags := hclsyntax.ParseExpression([]byte(source), key, hcl.Pos{Line: 1, Column: 1, Byte: 0})
	if diags.HasErrors() {
		return nil, &ExpressionError{Key: key, Source: source, Diags: diags}
	}

	allowed := make(map[string]struct{}, len(tokens))
	for i := range tokens {
		allowed[placeholder(i)] = struct{}{}
	}
	for _, tr := range expr.Variables() {
		if _, ok := allowed[tr.RootName()]; !ok {
			return nil, &ExpressionError{Key: key, Source: source, Reason: fmt.Sprintf("unknown identifier %q", tr.RootName())}
		}
	}
	var fnName string
	hclsyntax.VisitAll(expr, func(n hclsyntax.Node) hcl.Diagnostics {
		if call, ok := n.(*hclsyntax.FunctionCallExpr); ok && fnName == "" {
			fnName = call.Name
		}
		return nil
	})
	if fnName != "" {
		return nil, &ExpressionError{Key: key, Source: source, Reason: fmt.Sprintf("function calls are not supported (%s)", fnName)}
	}
	return &valueExpr{source: source, expr: expr, tokens: tokens}, nil
}

// eval evaluates the expression over the resolved operands. When strict
// evaluation fails, additions are retried with JavaScript "+" rules so that
// a string operand concatenates instead of failing. ok is false when the
// expression has no value either way.
func (e *valueExpr) eval(values []any) (any, bool) {
	vars := make(map[string]cty.Value, len(values))
	for i, v := range values {
		cv, err := toCty(v)
		if err != nil {
			cv = cty.StringVal(Stringify(v))
		}
		vars[placeholder(i)] = cv
	}
	ctx := &hcl.EvalContext{Variables: vars}
	if out, diags := e.expr.Value(ctx); !diags.HasErrors() {
		if v, err := fromCty(out); err == nil {
			return v, true
		}
	}
	return looseValue(e.expr, ctx)
}

func looseValue(x hclsyntax.Expression, ctx *hcl.EvalContext) (any, bool) {
	switch t := x.(type) {
	case *hclsyntax.ParenthesesExpr:
		return looseValue(t.Expression, ctx)
	case *hclsyntax.BinaryOpExpr:
		if t.Op != hclsyntax.OpAdd {
			break
		}
		l, ok := looseValue(t.LHS, ctx)
		if !ok {
			return nil, false
		}
		r, ok := looseValue(t.RHS, ctx)
		if !ok {
			return nil, false
		}
		return looseAdd(l, r)
	}
	out, diags := x.Value(ctx)
	if diags.HasErrors() {
		return nil, false
	}
	v, err := fromCty(out)
	return v, err == nil
}

// looseAdd is JavaScript's a + b for strings, numbers and null.
func looseAdd(a, b any) (any, bool) {
	_, as := a.(string)
	_, bs := b.(string)
	if as || bs {
		return Stringify(a) + Stringify(b), true
	}
	ai, aInt := a.(int64)
	bi, bInt := b.(int64)
	if a == nil {
		ai, aInt = 0, true
	}
	if b == nil {
		bi, bInt = 0, true
	}
	if aInt && bInt {
		return ai + bi, true
	}
	af, aok := looseNumber(a)
	bf, bok := looseNumber(b)
	if !aok || !bok {
		return nil, false
	}
	return af + bf, true
}

func looseNumber(v any) (float64, bool) {
	switch t := v.(type) {
	case nil:
		return 0, true
	case int64:
		return float64(t), true
	case float64:
		return t, true
	}
	return 0, false
}

func toCty(v any) (cty.Value, error) {
	switch t := v.(type) {
	case nil:
		return cty.NullVal(cty.DynamicPseudoType), nil
	case string:
		return cty.StringVal(t), nil
	case bool:
		return cty.BoolVal(t), nil
	case int:
		return cty.NumberIntVal(int64(t)), nil
	case int64:
		return cty.NumberIntVal(t), nil
	case float64:
		if math.IsNaN(t) {
			return cty.NullVal(cty.Number), nil
		}
		if math.IsInf(t, 1) {
			return cty.PositiveInfinity, nil
		}
		if math.IsInf(t, -1) {
			return cty.NegativeInfinity, nil
		}
		return cty.NumberFloatVal(t), nil
	case json.Number:
		return cty.ParseNumberVal(t.String())
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return cty.NumberIntVal(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return cty.NumberUIntVal(rv.Uint()), nil
	case reflect.Float32:
		return toCty(rv.Float())
	}
	ty, err := gocty.ImpliedType(v)
	if err != nil {
		return cty.StringVal(Stringify(v)), nil
	}
	return gocty.ToCtyValue(v, ty)
}

func fromCty(v cty.Value) (any, error) {
	if !v.IsKnown() || v.IsNull() {
		return nil, nil
	}
	ty := v.Type()
	switch {
	case ty == cty.String:
		return v.AsString(), nil
	case ty == cty.Bool:
		return v.True(), nil
	case ty == cty.Number:
		bf := v.AsBigFloat()
		if bf.IsInt() {
			if n, acc := bf.Int64(); acc == big.Exact {
				return n, nil
			}
		}
		f, _ := bf.Float64()
		return f, nil
	case ty.IsListType() || ty.IsTupleType() || ty.IsSetType():
		out := make([]any, 0)
		it := v.ElementIterator()
		for it.Next() {
			_, ev := it.Element()
			nv, err := fromCty(ev)
			if err != nil {
				return nil, err
			}
			out = append(out, nv)
		}
		return out, nil
	case ty.IsObjectType() || ty.IsMapType():
		out := make(map[string]any)
		it := v.ElementIterator()
		for it.Next() {
			k, ev := it.Element()
			nv, err := fromCty(ev)
			if err != nil {
				return nil, fmt.Errorf("in attribute %q: %w", k.AsString(), err)
			}
			out[k.AsString()] = nv
		}
		return out, nil
	}
	return nil, fmt.Errorf("unsupported expression result type %s", ty.FriendlyName())
}
