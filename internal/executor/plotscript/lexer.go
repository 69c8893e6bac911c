package plotscript

import (
	"fmt"
	"strings"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokNewline
	tokIdent
	tokNumber
	tokString
	tokPunct
)

type token struct {
	kind tokenKind
	text string
	line int
}

func (t token) String() string {
	switch t.kind {
	case tokEOF:
		return "end of input"
	case tokNewline:
		return "end of line"
	case tokString:
		return fmt.Sprintf("string %q", t.text)
	}
	return fmt.Sprintf("%q", t.text)
}

// lex splits src into tokens. Newlines inside brackets are dropped so calls
// can span lines; ';' is reported as a newline.
func lex(src string) ([]token, error) {
	var toks []token
	line, depth := 1, 0
	emitNewline := func() {
		if depth == 0 && len(toks) > 0 && toks[len(toks)-1].kind != tokNewline {
			toks = append(toks, token{kind: tokNewline, line: line})
		}
	}

	for i := 0; i < len(src); {
		c := src[i]
		switch {
		case c == '\n':
			emitNewline()
			line++
			i++
		case c == ' ' || c == '\t' || c == '\r' || c == '\\' && i+1 < len(src) && src[i+1] == '\n':
			if c == '\\' {
				line++
				i++
			}
			i++
		case c == '#':
			for i < len(src) && src[i] != '\n' {
				i++
			}
		case c == ';':
			emitNewline()
			i++
		case isIdentStart(c):
			start := i
			for i < len(src) && isIdentPart(src[i]) {
				i++
			}
			toks = append(toks, token{kind: tokIdent, text: src[start:i], line: line})
		case isDigit(c) || c == '.' && i+1 < len(src) && isDigit(src[i+1]):
			start := i
			for i < len(src) && (isDigit(src[i]) || src[i] == '.' || src[i] == '_' ||
				src[i] == 'e' || src[i] == 'E' ||
				(src[i] == '-' || src[i] == '+') && (src[i-1] == 'e' || src[i-1] == 'E')) {
				i++
			}
			toks = append(toks, token{kind: tokNumber, text: strings.ReplaceAll(src[start:i], "_", ""), line: line})
		case c == '"' || c == '\'':
			s, n, err := lexString(src[i:])
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", line, err)
			}
			toks = append(toks, token{kind: tokString, text: s, line: line})
			line += strings.Count(src[i:i+n], "\n")
			i += n
		default:
			if i+1 < len(src) {
				switch two := src[i : i+2]; two {
				case "==", "!=", ">=", "<=":
					toks = append(toks, token{kind: tokPunct, text: two, line: line})
					i += 2
					continue
				}
			}
			if !strings.ContainsRune("=<>()[]{},.:-+", rune(c)) {
				return nil, fmt.Errorf("line %d: unexpected character %q", line, c)
			}
			switch c {
			case '(', '[', '{':
				depth++
			case ')', ']', '}':
				depth = max(depth-1, 0)
			}
			toks = append(toks, token{kind: tokPunct, text: string(c), line: line})
			i++
		}
	}
	emitNewline()
	return append(toks, token{kind: tokEOF, line: line}), nil
}

// lexString reads a quoted string, including triple-quoted forms, and
// returns its value and the number of bytes consumed.
func lexString(src string) (string, int, error) {
	q := src[0]
	delim := string(q)
	if strings.HasPrefix(src, strings.Repeat(delim, 3)) {
		delim = strings.Repeat(delim, 3)
	}
	var b strings.Builder
	for i := len(delim); i < len(src); {
		if strings.HasPrefix(src[i:], delim) {
			return b.String(), i + len(delim), nil
		}
		c := src[i]
		if c == '\n' && len(delim) == 1 {
			break
		}
		if c == '\\' && i+1 < len(src) {
			switch e := src[i+1]; e {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			default:
				b.WriteByte(e)
			}
			i += 2
			continue
		}
		b.WriteByte(c)
		i++
	}
	return "", 0, fmt.Errorf("unterminated string")
}

func isIdentStart(c byte) bool {
	return c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}

func isIdentPart(c byte) bool { return isIdentStart(c) || isDigit(c) }

func isDigit(c byte) bool { return c >= '0' && c <= '9' }
