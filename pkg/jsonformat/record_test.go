package jsonformat

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRecordMarshalJSON(t *testing.T) {
	rec := Record{
		{Key: "b", Value: "<tag> & \"q\""},
		{Key: "a", Value: 1},
		{Key: "nan", Value: math.NaN()},
		{Key: "inf", Value: math.Inf(1)},
		{Key: "nested", Value: map[string]any{"k": []any{true, nil}}},
		{Key: "n", Value: nil},
	}
	b, err := rec.MarshalJSON()
	require.NoError(t, err)
	want := `{"b":"<tag> & \"q\"","a":1,"nan":null,"inf":null,"nested":{"k":[true,null]},"n":null}`
	require.Equal(t, want, string(b))
}

func TestRecordKeepsHTMLCharacters(t *testing.T) {
	tokens := Tokens{
		"url":  Static("/search?q=<b>&page=1"),
		"meta": Static(map[string]any{"ref": "a&b<c>"}),
	}
	out := mustFormat(t, MappedFormat{
		{Key: "url", Template: T(":url")},
		{Key: "a&b", Template: TokenTemplate{Value: ":meta", Type: AnyType()}},
	}, tokens)
	require.Equal(t, `{"url":"/search?q=<b>&page=1","a&b":{"ref":"a&b<c>"}}`, out)

	out = mustFormat(t, ":url :meta", tokens)
	require.Equal(t, `{"url":"/search?q=<b>&page=1","meta":"{\"ref\":\"a&b<c>\"}"}`, out)
}

func TestRecordAccessors(t *testing.T) {
	rec := Record{{Key: "x", Value: 1}, {Key: "y", Value: "two"}}
	v, ok := rec.Get("y")
	require.True(t, ok)
	require.Equal(t, "two", v)
	_, ok = rec.Get("z")
	require.False(t, ok)

	m := rec.Map()
	require.Len(t, m, 2)
	require.Equal(t, 1, m["x"])

	b, err := (Record{}).MarshalJSON()
	require.NoError(t, err)
	require.Equal(t, "{}", string(b))
}
