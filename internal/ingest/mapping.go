package ingest

import (
	"fmt"
	"strings"
)

// Entry is one key/value pair of a usage mapping. Value keeps the raw
// literal text; numeric coercion happens later.
type Entry struct {
	Key   string
	Value string
}

// ParseMapping parses a usage mapping literal such as
//
//	{'gpt-4o': 12, "o3": '4', canvas: 1,}
//
// Keys and values are single- or double-quoted strings or bare tokens.
// A trailing comma is allowed. When a key repeats, the last value wins and
// the entry keeps the position of its first occurrence.
func ParseMapping(s string) ([]Entry, error) {
	p := &mappingParser{src: s}
	return p.parse()
}

type mappingParser struct {
	src string
	pos int
}

func (p *mappingParser) parse() ([]Entry, error) {
	p.skipSpace()
	if !p.consume('{') {
		return nil, p.errorf("expected '{'")
	}

	var entries []Entry
	index := map[string]int{}
	for {
		p.skipSpace()
		if p.consume('}') {
			break
		}
		key, err := p.token("key")
		if err != nil {
			return nil, err
		}
		if key == "" {
			return nil, p.errorf("empty key")
		}
		p.skipSpace()
		if !p.consume(':') {
			return nil, p.errorf("expected ':' after key %q", key)
		}
		p.skipSpace()
		value, err := p.token("value")
		if err != nil {
			return nil, err
		}

		if i, ok := index[key]; ok {
			entries[i].Value = value
		} else {
			index[key] = len(entries)
			entries = append(entries, Entry{Key: key, Value: value})
		}

		p.skipSpace()
		if p.consume(',') {
			continue
		}
		if p.consume('}') {
			break
		}
		return nil, p.errorf("expected ',' or '}'")
	}

	p.skipSpace()
	if p.pos != len(p.src) {
		return nil, p.errorf("unexpected trailing input")
	}
	return entries, nil
}

// token reads a quoted or bare token.
func (p *mappingParser) token(what string) (string, error) {
	if p.pos >= len(p.src) {
		return "", p.errorf("expected %s, got end of input", what)
	}
	switch c := p.src[p.pos]; c {
	case '\'', '"':
		return p.quoted(c)
	}

	start := p.pos
	for p.pos < len(p.src) && !isDelimiter(p.src[p.pos]) {
		p.pos++
	}
	if p.pos == start {
		return "", p.errorf("expected %s", what)
	}
	return p.src[start:p.pos], nil
}

func (p *mappingParser) quoted(q byte) (string, error) {
	start := p.pos
	p.pos++
	var b strings.Builder
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		switch {
		case c == '\\' && p.pos+1 < len(p.src):
			b.WriteByte(p.src[p.pos+1])
			p.pos += 2
		case c == q:
			p.pos++
			return b.String(), nil
		default:
			b.WriteByte(c)
			p.pos++
		}
	}
	p.pos = start
	return "", p.errorf("unterminated string")
}

func (p *mappingParser) skipSpace() {
	for p.pos < len(p.src) && isSpace(p.src[p.pos]) {
		p.pos++
	}
}

func (p *mappingParser) consume(c byte) bool {
	if p.pos < len(p.src) && p.src[p.pos] == c {
		p.pos++
		return true
	}
	return false
}

func (p *mappingParser) errorf(format string, args ...any) error {
	return fmt.Errorf("offset %d: %s", p.pos, fmt.Sprintf(format, args...))
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

func isDelimiter(c byte) bool {
	switch c {
	case ',', ':', '{', '}', '\'', '"':
		return true
	}
	return isSpace(c)
}
