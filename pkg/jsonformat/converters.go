package jsonformat

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"unicode"
)

// Converter transforms a raw token value before the default policy runs.
// Returning nil means "no result".
type Converter func(value any, name string, arg string) any

var builtinConverters = map[string]Converter{
	"integer": Integer,
	"float":   Float,
}

// Integer parses the leading base-10 integer of a string. Numbers pass
// through unchanged; anything else yields nil.
func Integer(value any, _ string, _ string) any {
	switch t := value.(type) {
	case string:
		return parseIntPrefix(t)
	case json.Number:
		return parseIntPrefix(t.String())
	}
	if isNumber(value) {
		return value
	}
	return nil
}

// Float parses the leading decimal number of a string, fraction and exponent
// included. Numbers pass through unchanged; anything else yields nil.
func Float(value any, _ string, _ string) any {
	switch t := value.(type) {
	case string:
		return parseFloatPrefix(t)
	case json.Number:
		return parseFloatPrefix(t.String())
	}
	if isNumber(value) {
		return value
	}
	return nil
}

func isNumber(v any) bool {
	switch v.(type) {
	case int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return true
	}
	return false
}

func parseIntPrefix(s string) any {
	s = strings.TrimLeftFunc(s, unicode.IsSpace)
	end := 0
	if end < len(s) && (s[end] == '+' || s[end] == '-') {
		end++
	}
	digitsStart := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == digitsStart {
		return nil
	}
	if n, err := strconv.ParseInt(s[:end], 10, 64); err == nil {
		return n
	}
	f, err := strconv.ParseFloat(s[:end], 64)
	if err != nil && !math.IsInf(f, 0) {
		return nil
	}
	return f
}

func parseFloatPrefix(s string) any {
	s = strings.TrimLeftFunc(s, unicode.IsSpace)
	i := 0
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		i++
	}
	if strings.HasPrefix(s[i:], "Infinity") {
		if s[0] == '-' {
			return math.Inf(-1)
		}
		return math.Inf(1)
	}
	intDigits := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
		intDigits++
	}
	fracDigits := 0
	if i < len(s) && s[i] == '.' {
		j := i + 1
		for j < len(s) && s[j] >= '0' && s[j] <= '9' {
			j++
			fracDigits++
		}
		if intDigits > 0 || fracDigits > 0 {
			i = j
		}
	}
	if intDigits == 0 && fracDigits == 0 {
		return nil
	}
	if i < len(s) && (s[i] == 'e' || s[i] == 'E') {
		j := i + 1
		if j < len(s) && (s[j] == '+' || s[j] == '-') {
			j++
		}
		expStart := j
		for j < len(s) && s[j] >= '0' && s[j] <= '9' {
			j++
		}
		if j > expStart {
			i = j
		}
	}
	f, err := strconv.ParseFloat(s[:i], 64)
	if err != nil && !math.IsInf(f, 0) {
		return nil
	}
	return f
}
