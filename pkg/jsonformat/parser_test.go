package jsonformat

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func ref(name, arg string) *TokenRef { return &TokenRef{Name: name, Arg: arg} }

func TestParse(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want []Segment
	}{
		{
			name: "tokens and literals",
			in:   ":method :url HTTP/:http-version",
			want: []Segment{
				{Token: ref("method", "")},
				{Literal: " "},
				{Token: ref("url", "")},
				{Literal: " HTTP/"},
				{Token: ref("http-version", "")},
			},
		},
		{
			name: "argument",
			in:   ":res[content-length] bytes",
			want: []Segment{
				{Token: ref("res", "content-length")},
				{Literal: " bytes"},
			},
		},
		{
			name: "single character name stays literal",
			in:   ":a text",
			want: []Segment{{Literal: ":a text"}},
		},
		{
			name: "two character name is a token",
			in:   ":ab",
			want: []Segment{{Token: ref("ab", "")}},
		},
		{
			name: "bare colon",
			in:   "a : b",
			want: []Segment{{Literal: "a : b"}},
		},
		{
			name: "empty bracket stays literal",
			in:   ":req[]",
			want: []Segment{{Token: ref("req", "")}, {Literal: "[]"}},
		},
		{
			name: "unclosed bracket stays literal",
			in:   ":req[host",
			want: []Segment{{Token: ref("req", "")}, {Literal: "[host"}},
		},
		{
			name: "underscore and digits",
			in:   "[:my_token2]",
			want: []Segment{{Literal: "["}, {Token: ref("my_token2", "")}, {Literal: "]"}},
		},
		{
			name: "adjacent tokens",
			in:   ":status:method",
			want: []Segment{{Token: ref("status", "")}, {Token: ref("method", "")}},
		},
		{
			name: "empty",
			in:   "",
			want: []Segment{},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Parse(tc.in)
			require.Empty(t, cmp.Diff(tc.want, got), "Parse(%q) mismatch (-want +got)", tc.in)
		})
	}
}

func TestParseStringFormat(t *testing.T) {
	t.Run("trailer is right trimmed only", func(t *testing.T) {
		order, fields := parseStringFormat(":response-time ms   ")
		require.Equal(t, []string{"response-time"}, order)
		require.Equal(t, " ms", fields["response-time"].trailer)
	})

	t.Run("trailer stops at next colon", func(t *testing.T) {
		_, fields := parseStringFormat(":status done: later :url")
		require.Equal(t, " done", fields["status"].trailer)
		require.Empty(t, fields["url"].trailer)
	})

	t.Run("first occurrence order with last reference", func(t *testing.T) {
		order, fields := parseStringFormat(":req[host] :method :req[accept]")
		require.Equal(t, []string{"req", "method"}, order)
		require.Equal(t, "accept", fields["req"].token.Arg)
	})

	t.Run("leading text is dropped", func(t *testing.T) {
		order, _ := parseStringFormat("prefix :method")
		require.Equal(t, []string{"method"}, order)
	})
}

func TestSingleToken(t *testing.T) {
	r, ok := singleToken(Parse("  :status "))
	require.True(t, ok)
	require.Equal(t, "status", r.Name)

	for _, in := range []string{":status ms", ":status :url", "plain"} {
		_, ok := singleToken(Parse(in))
		require.False(t, ok, "%q must not count as a single token", in)
	}
}
