package jsonformat

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInteger(t *testing.T) {
	cases := []struct {
		in   any
		want any
	}{
		{"42", int64(42)},
		{"  -17kb", int64(-17)},
		{"+3", int64(3)},
		{"12.9", int64(12)},
		{"abc", nil},
		{"", nil},
		{"-", nil},
		{json.Number("8"), int64(8)},
		{7, 7},
		{2.5, 2.5},
		{true, nil},
		{nil, nil},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, Integer(tc.in, "t", ""), "Integer(%#v)", tc.in)
	}

	big := Integer("123456789012345678901234567890", "t", "")
	f, ok := big.(float64)
	require.True(t, ok, "expected large float, got %#v", big)
	require.Greater(t, f, 1e29)
}

func TestFloat(t *testing.T) {
	cases := []struct {
		in   any
		want any
	}{
		{"1.5", 1.5},
		{"  .5", 0.5},
		{"3.", 3.0},
		{"1e3", 1000.0},
		{"2.5E-1x", 0.25},
		{"1e", 1.0},
		{"-4.25ms", -4.25},
		{".", nil},
		{"abc", nil},
		{json.Number("0.75"), 0.75},
		{3, 3},
		{map[string]any{}, nil},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, Float(tc.in, "t", ""), "Float(%#v)", tc.in)
	}

	require.Equal(t, math.Inf(-1), Float("-Infinity", "t", ""))
	require.Equal(t, math.Inf(1), Float("Infinity and more", "t", ""))
}
