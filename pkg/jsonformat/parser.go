package jsonformat

import (
	"strings"
	"unicode"
)

const minTokenNameLen = 2

// TokenRef is a parsed :name[arg] reference.
type TokenRef struct {
	Name string
	Arg  string
}

func (t TokenRef) String() string {
	if t.Arg == "" {
		return ":" + t.Name
	}
	return ":" + t.Name + "[" + t.Arg + "]"
}

// Segment is either literal text or a token reference.
type Segment struct {
	Literal string
	Token   *TokenRef
}

func (s Segment) IsToken() bool { return s.Token != nil }

// Parse splits a template into literal and token segments. A colon that is
// not followed by at least two name characters stays literal text, as does a
// bracket that is empty or never closed.
func Parse(template string) []Segment {
	segs := make([]Segment, 0, 4)
	var lit strings.Builder

	flushLiteral := func() {
		if lit.Len() == 0 {
			return
		}
		segs = append(segs, Segment{Literal: lit.String()})
		lit.Reset()
	}

	for i := 0; i < len(template); {
		if template[i] != ':' {
			lit.WriteByte(template[i])
			i++
			continue
		}
		j := i + 1
		for j < len(template) && isTokenNameByte(template[j]) {
			j++
		}
		if j-(i+1) < minTokenNameLen {
			lit.WriteByte(':')
			i++
			continue
		}
		flushLiteral()
		ref := TokenRef{Name: template[i+1 : j]}
		if j < len(template) && template[j] == '[' {
			if k := strings.IndexByte(template[j+1:], ']'); k > 0 {
				ref.Arg = template[j+1 : j+1+k]
				j += k + 2
			}
		}
		segs = append(segs, Segment{Token: &ref})
		i = j
	}
	flushLiteral()
	return segs
}

func isTokenNameByte(b byte) bool {
	switch {
	case b >= 'a' && b <= 'z', b >= 'A' && b <= 'Z', b >= '0' && b <= '9':
		return true
	case b == '_' || b == '-':
		return true
	}
	return false
}

// stringField is one entry of a whole-template (string mode) format.
type stringField struct {
	token   TokenRef
	trailer string
}

// parseStringFormat keys every token by name in first-occurrence order. The
// trailer is the literal text after the token up to the next ':' or end of
// template, right-trimmed. A repeated name keeps its first position and takes
// the last reference. Text before the first token and text after a trailer's
// stopping colon has no key and is dropped.
func parseStringFormat(template string) ([]string, map[string]stringField) {
	segs := Parse(template)
	order := make([]string, 0, len(segs))
	fields := make(map[string]stringField, len(segs))
	for i, seg := range segs {
		if !seg.IsToken() {
			continue
		}
		trailer := ""
		if i+1 < len(segs) && !segs[i+1].IsToken() {
			trailer = segs[i+1].Literal
			if k := strings.IndexByte(trailer, ':'); k >= 0 {
				trailer = trailer[:k]
			}
			trailer = strings.TrimRightFunc(trailer, unicode.IsSpace)
		}
		if _, seen := fields[seg.Token.Name]; !seen {
			order = append(order, seg.Token.Name)
		}
		fields[seg.Token.Name] = stringField{token: *seg.Token, trailer: trailer}
	}
	return order, fields
}

func tokenCount(segs []Segment) int {
	n := 0
	for _, s := range segs {
		if s.IsToken() {
			n++
		}
	}
	return n
}

// singleToken returns the only token of a template whose literal text is
// whitespace at most.
func singleToken(segs []Segment) (TokenRef, bool) {
	var ref *TokenRef
	for _, s := range segs {
		if s.IsToken() {
			if ref != nil {
				return TokenRef{}, false
			}
			ref = s.Token
			continue
		}
		if strings.TrimSpace(s.Literal) != "" {
			return TokenRef{}, false
		}
	}
	if ref == nil {
		return TokenRef{}, false
	}
	return *ref, true
}

func literalText(segs []Segment) string {
	var b strings.Builder
	for _, s := range segs {
		b.WriteString(s.Literal)
	}
	return b.String()
}
