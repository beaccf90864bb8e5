package jsonformat

import (
	"strings"
	"testing"

	"github.com/go-logr/logr/funcr"
	"github.com/stretchr/testify/require"
)

func captureTracer(verbosity int) (*[]string, Option) {
	lines := &[]string{}
	l := funcr.New(func(prefix, args string) {
		*lines = append(*lines, args)
	}, funcr.Options{Verbosity: verbosity})
	return lines, WithTracer(l)
}

func TestTracerReceivesPlan(t *testing.T) {
	lines, opt := captureTracer(1)
	_, err := Compile(MappedFormat{
		{Key: "req", Template: T(":method :url")},
		{Key: "slow", Template: TokenTemplate{Value: ":response-time > 1000", Type: AnyType()}},
	}, opt)
	require.NoError(t, err)
	require.Len(t, *lines, 3)
	all := strings.Join(*lines, "\n")
	for _, want := range []string{
		`"msg"="compiled access log format"`,
		`"mode"="object"`,
		`"key"="req"`,
		`"mode"="expression"`,
		`"expression"="(tok0) > 1000"`,
	} {
		require.Contains(t, all, want)
	}
}

func TestTracerStringMode(t *testing.T) {
	lines, opt := captureTracer(1)
	_, err := Compile(":response-time ms", opt)
	require.NoError(t, err)
	all := strings.Join(*lines, "\n")
	require.Contains(t, all, `"mode"="string"`)
	require.Contains(t, all, `"trailer"=" ms"`)
}

func TestTracerQuietByDefault(t *testing.T) {
	lines, opt := captureTracer(0)
	_, err := Compile(":method", opt)
	require.NoError(t, err)
	require.Empty(t, *lines)
}
