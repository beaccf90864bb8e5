package jsonformat

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
)

func anyField(key, value string) MappedFormat {
	return MappedFormat{{Key: key, Template: TokenTemplate{Value: value, Type: AnyType()}}}
}

func TestValueExpressions(t *testing.T) {
	tokens := Tokens{
		"status":    Static(503),
		"req-bytes": Static(10),
		"res-bytes": Static(32),
		"rt":        Static(1.5),
		"method":    Static("GET"),
	}

	cases := []struct {
		name     string
		template string
		want     string
	}{
		{name: "sum", template: ":req-bytes + :res-bytes", want: `{"v":42}`},
		{name: "float", template: ":rt + 1", want: `{"v":2.5}`},
		{name: "integral float result", template: ":rt * 2", want: `{"v":3}`},
		{name: "comparison", template: ":status >= 500", want: `{"v":true}`},
		{name: "conditional", template: `:status >= 500 ? "error" : "ok"`, want: `{"v":"error"}`},
		{name: "logical", template: ":status >= 400 && :status < 500", want: `{"v":false}`},
		{name: "string equality", template: `:method == "GET"`, want: `{"v":true}`},
		{name: "interpolation", template: `"${:method}-${:status}"`, want: `{"v":"GET-503"}`},
		{name: "negation", template: "-:rt", want: `{"v":-1.5}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out := mustFormat(t, anyField("v", tc.template), tokens)
			require.Equal(t, tc.want, out)
		})
	}
}

func TestValueExpressionCompileErrors(t *testing.T) {
	cases := map[string]string{
		"syntax":             ":status +",
		"unknown identifier": ":status + foo",
		"placeholder guess":  ":status + tok9",
		"function call":      "upper(:method)",
	}
	for name, template := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Compile(anyField("v", template))
			var ee *ExpressionError
			require.ErrorAs(t, err, &ee)
			require.Equal(t, "v", ee.Key)
			require.Contains(t, err.Error(), "invalid value expression for property v")
		})
	}
}

func TestValueExpressionLooseFallback(t *testing.T) {
	anyTemplate := func(value string) TokenTemplate { return TokenTemplate{Value: value, Type: AnyType()} }
	tokens := Tokens{
		"status":        Static(200),
		"method":        Static("GET"),
		"url":           Static("/x"),
		"response-time": Static(nil),
	}

	t.Run("missing operand concatenates the default", func(t *testing.T) {
		format := MappedFormat{
			{Key: "sum", Template: anyTemplate(":status + :response-time")},
			{Key: "method", Template: anyTemplate(":method")},
		}
		require.Equal(t, `{"sum":"200-","method":"GET"}`, mustFormat(t, format, tokens))
	})

	t.Run("strings concatenate", func(t *testing.T) {
		require.Equal(t, `{"v":"GET/x"}`, mustFormat(t, anyField("v", ":method + :url"), tokens))
		require.Equal(t, `{"v":"GET/x!"}`, mustFormat(t, anyField("v", "(:method + :url) + \"!\""), tokens))
	})

	t.Run("null operand counts as zero without default", func(t *testing.T) {
		format := MappedFormat{{Key: "v", Template: TokenTemplate{Value: ":response-time + 1", Type: AnyType(), NoDefault: true}}}
		require.Equal(t, `{"v":1}`, mustFormat(t, format, tokens))
	})

	t.Run("other operators fall back to the default", func(t *testing.T) {
		require.Equal(t, `{"v":"-"}`, mustFormat(t, anyField("v", ":response-time > 1"), tokens))

		format := MappedFormat{{Key: "v", Template: TokenTemplate{Value: ":response-time > 1", Type: AnyType(), NoDefault: true}}}
		require.Equal(t, `{"v":null}`, mustFormat(t, format, tokens))
	})
}

func TestValueExpressionDefaultsOperands(t *testing.T) {
	format := MappedFormat{{Key: "v", Template: TokenTemplate{Value: ":hits + 1", Type: AnyType(), DefaultValue: 100}}}
	out := mustFormat(t, format, Tokens{"hits": Static(0)})
	require.Equal(t, `{"v":101}`, out)
}

func TestCtyConversion(t *testing.T) {
	t.Run("to cty", func(t *testing.T) {
		v, err := toCty(json.Number("1.25"))
		require.NoError(t, err)
		f, _ := v.AsBigFloat().Float64()
		require.Equal(t, 1.25, f)

		v, err = toCty(uint16(7))
		require.NoError(t, err)
		n, _ := v.AsBigFloat().Int64()
		require.Equal(t, int64(7), n)

		v, err = toCty(nil)
		require.NoError(t, err)
		require.True(t, v.IsNull())

		v, err = toCty(map[string]string{"a": "b"})
		require.NoError(t, err)
		require.Equal(t, "b", v.Index(cty.StringVal("a")).AsString())
	})

	t.Run("from cty", func(t *testing.T) {
		got, err := fromCty(cty.NumberIntVal(3))
		require.NoError(t, err)
		require.Equal(t, int64(3), got)

		got, err = fromCty(cty.NumberFloatVal(0.5))
		require.NoError(t, err)
		require.Equal(t, 0.5, got)

		got, err = fromCty(cty.TupleVal([]cty.Value{cty.StringVal("a"), cty.True}))
		require.NoError(t, err)
		require.Equal(t, []any{"a", true}, got)

		got, err = fromCty(cty.ObjectVal(map[string]cty.Value{"n": cty.NumberIntVal(1)}))
		require.NoError(t, err)
		require.Equal(t, map[string]any{"n": int64(1)}, got)

		got, err = fromCty(cty.NullVal(cty.String))
		require.NoError(t, err)
		require.Nil(t, got)
	})
}
