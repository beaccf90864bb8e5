package jsonformat

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestMappedFormatYAML(t *testing.T) {
	src := `
request: ":method :url"
status:
  value: ":status"
  type: integer
elapsed:
  value: ":response-time"
  type: "*"
  defaultValue: 0
agent:
  value: ":user-agent"
  no_default: true
  required: true
`
	var mf MappedFormat
	require.NoError(t, yaml.Unmarshal([]byte(src), &mf))
	want := MappedFormat{
		{Key: "request", Template: T(":method :url")},
		{Key: "status", Template: TokenTemplate{Value: ":status", Type: Named("integer")}},
		{Key: "elapsed", Template: TokenTemplate{Value: ":response-time", Type: AnyType(), DefaultValue: 0}},
		{Key: "agent", Template: TokenTemplate{Value: ":user-agent", NoDefault: true, Required: true}},
	}
	require.Empty(t, cmp.Diff(want, mf, cmp.AllowUnexported(Type{})), "mismatch (-want +got)")

	out, err := yaml.Marshal(mf)
	require.NoError(t, err)
	var again MappedFormat
	require.NoError(t, yaml.Unmarshal(out, &again), "%s", out)
	require.Empty(t, cmp.Diff(mf, again, cmp.AllowUnexported(Type{})), "yaml output does not load back (-want +got)")
}

func TestMappedFormatYAMLErrors(t *testing.T) {
	cases := map[string]string{
		"duplicate key":   "a: \":url\"\na: \":method\"\n",
		"missing value":   "a:\n  type: \"*\"\n",
		"not a mapping":   "- \":url\"\n",
		"list template":   "a:\n  - x\n",
		"non-string type": "a:\n  value: \":url\"\n  type: [1]\n",
	}
	for name, src := range cases {
		t.Run(name, func(t *testing.T) {
			var mf MappedFormat
			require.Error(t, yaml.Unmarshal([]byte(src), &mf))
		})
	}
}

func TestParseType(t *testing.T) {
	cases := map[string]string{
		"":        "string",
		"string":  "string",
		"*":       "*",
		" float ": "float",
		"integer": "integer",
	}
	for in, want := range cases {
		require.Equal(t, want, ParseType(in).String(), "ParseType(%q)", in)
	}
	require.Equal(t, "func", Convert(Integer).String())
	_, err := Convert(Integer).MarshalYAML()
	require.Error(t, err, "converter functions cannot be yaml encoded")
}

func TestMappedFormatSet(t *testing.T) {
	var mf MappedFormat
	mf = mf.Set("a", T(":url"))
	mf = mf.Set("b", T(":method"))
	mf = mf.Set("a", T(":status"))
	require.Equal(t, []string{"a", "b"}, mf.Keys())
	got, ok := mf.Get("a")
	require.True(t, ok)
	require.Equal(t, ":status", got.Value)
	_, ok = mf.Get("zz")
	require.False(t, ok)
}
