package plotscript

import (
	"fmt"
	"strconv"
	"strings"
)

type expr interface{ line() int }

type (
	identExpr struct {
		name string
		ln   int
	}
	literalExpr struct {
		value any
		ln    int
	}
	listExpr struct {
		items []expr
		ln    int
	}
	dictExpr struct {
		keys, values []expr
		ln           int
	}
	attrExpr struct {
		x    expr
		name string
		ln   int
	}
	indexExpr struct {
		x, index expr
		ln       int
	}
	negExpr struct {
		x  expr
		ln int
	}
	callExpr struct {
		fn     expr
		args   []expr
		kwargs []kwarg
		ln     int
	}
)

type kwarg struct {
	name  string
	value expr
}

func (e *identExpr) line() int   { return e.ln }
func (e *literalExpr) line() int { return e.ln }
func (e *listExpr) line() int    { return e.ln }
func (e *dictExpr) line() int    { return e.ln }
func (e *attrExpr) line() int    { return e.ln }
func (e *indexExpr) line() int   { return e.ln }
func (e *negExpr) line() int     { return e.ln }
func (e *callExpr) line() int    { return e.ln }

// statement is `target = value` or a bare expression (empty target).
type statement struct {
	target string
	value  expr
	line   int
}

type parser struct {
	toks []token
	pos  int
}

func parse(src string) ([]statement, error) {
	toks, err := lex(src)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	var stmts []statement
	for p.peek().kind != tokEOF {
		st, err := p.statement()
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, st)
	}
	return stmts, nil
}

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) isPunct(text string) bool {
	t := p.peek()
	return t.kind == tokPunct && t.text == text
}

func (p *parser) expect(text string) error {
	if !p.isPunct(text) {
		return p.errorf("expected %q, got %s", text, p.peek())
	}
	p.next()
	return nil
}

func (p *parser) errorf(format string, args ...any) error {
	return fmt.Errorf("line %d: syntax error: %s", p.peek().line, fmt.Sprintf(format, args...))
}

func (p *parser) statement() (statement, error) {
	ln := p.peek().line
	st := statement{line: ln}
	if t := p.peek(); t.kind == tokIdent && (t.text == "import" || t.text == "from") {
		return st, p.importLine()
	}
	if p.peek().kind == tokIdent && p.pos+1 < len(p.toks) {
		if n := p.toks[p.pos+1]; n.kind == tokPunct && n.text == "=" {
			st.target = p.next().text
			p.next()
		}
	}
	v, err := p.expr()
	if err != nil {
		return st, err
	}
	st.value = v
	switch t := p.peek(); t.kind {
	case tokNewline:
		p.next()
	case tokEOF:
	default:
		return st, p.errorf("unexpected %s", t)
	}
	return st, nil
}

// allowedImports are the libraries already bound as pd and px. Importing
// them again is accepted and ignored.
var allowedImports = map[string]bool{"pandas": true, "plotly": true, "plotly.express": true}

// importLine consumes an import statement, leaving st.value nil.
func (p *parser) importLine() error {
	kw := p.next()
	var module strings.Builder
	for t := p.peek(); t.kind == tokIdent || t.kind == tokPunct && t.text == "."; t = p.peek() {
		if t.kind == tokIdent && module.Len() > 0 && !strings.HasSuffix(module.String(), ".") {
			break
		}
		module.WriteString(p.next().text)
	}
	if !allowedImports[module.String()] {
		return fmt.Errorf("line %d: import of %q is not allowed", kw.line, module.String())
	}
	for t := p.peek(); t.kind != tokNewline && t.kind != tokEOF; t = p.peek() {
		p.next()
	}
	p.next()
	return nil
}

func (p *parser) expr() (expr, error) {
	if p.isPunct("-") {
		ln := p.next().line
		x, err := p.expr()
		if err != nil {
			return nil, err
		}
		return &negExpr{x: x, ln: ln}, nil
	}
	x, err := p.primary()
	if err != nil {
		return nil, err
	}
	for {
		switch {
		case p.isPunct("."):
			p.next()
			t := p.next()
			if t.kind != tokIdent {
				return nil, p.errorf("expected attribute name after '.'")
			}
			x = &attrExpr{x: x, name: t.text, ln: t.line}
		case p.isPunct("("):
			call, err := p.call(x)
			if err != nil {
				return nil, err
			}
			x = call
		case p.isPunct("["):
			ln := p.next().line
			idx, err := p.expr()
			if err != nil {
				return nil, err
			}
			if err := p.expect("]"); err != nil {
				return nil, err
			}
			x = &indexExpr{x: x, index: idx, ln: ln}
		default:
			return x, nil
		}
	}
}

func (p *parser) call(fn expr) (expr, error) {
	c := &callExpr{fn: fn, ln: p.next().line}
	for !p.isPunct(")") {
		if t := p.peek(); t.kind == tokIdent && p.pos+1 < len(p.toks) &&
			p.toks[p.pos+1].kind == tokPunct && p.toks[p.pos+1].text == "=" {
			p.next()
			p.next()
			v, err := p.expr()
			if err != nil {
				return nil, err
			}
			c.kwargs = append(c.kwargs, kwarg{name: t.text, value: v})
		} else {
			if len(c.kwargs) > 0 {
				return nil, p.errorf("positional argument follows keyword argument")
			}
			v, err := p.expr()
			if err != nil {
				return nil, err
			}
			c.args = append(c.args, v)
		}
		if !p.isPunct(",") {
			break
		}
		p.next()
	}
	if err := p.expect(")"); err != nil {
		return nil, err
	}
	return c, nil
}

func (p *parser) primary() (expr, error) {
	t := p.next()
	switch t.kind {
	case tokIdent:
		switch t.text {
		case "True":
			return &literalExpr{value: true, ln: t.line}, nil
		case "False":
			return &literalExpr{value: false, ln: t.line}, nil
		case "None":
			return &literalExpr{value: nil, ln: t.line}, nil
		case "import", "from", "def", "class", "lambda", "for", "while", "with", "exec", "eval", "open", "__import__":
			return nil, fmt.Errorf("line %d: %q is not supported", t.line, t.text)
		}
		return &identExpr{name: t.text, ln: t.line}, nil
	case tokNumber:
		return parseNumber(t)
	case tokString:
		s := t.text
		for p.peek().kind == tokString {
			s += p.next().text
		}
		return &literalExpr{value: s, ln: t.line}, nil
	case tokPunct:
		switch t.text {
		case "(":
			x, err := p.expr()
			if err != nil {
				return nil, err
			}
			if err := p.expect(")"); err != nil {
				return nil, err
			}
			return x, nil
		case "[":
			l := &listExpr{ln: t.line}
			for !p.isPunct("]") {
				v, err := p.expr()
				if err != nil {
					return nil, err
				}
				l.items = append(l.items, v)
				if !p.isPunct(",") {
					break
				}
				p.next()
			}
			return l, p.expect("]")
		case "{":
			d := &dictExpr{ln: t.line}
			for !p.isPunct("}") {
				k, err := p.expr()
				if err != nil {
					return nil, err
				}
				if err := p.expect(":"); err != nil {
					return nil, err
				}
				v, err := p.expr()
				if err != nil {
					return nil, err
				}
				d.keys = append(d.keys, k)
				d.values = append(d.values, v)
				if !p.isPunct(",") {
					break
				}
				p.next()
			}
			return d, p.expect("}")
		}
	}
	return nil, fmt.Errorf("line %d: syntax error: unexpected %s", t.line, t)
}

func parseNumber(t token) (expr, error) {
	if !strings.ContainsAny(t.text, ".eE") {
		if n, err := strconv.ParseInt(t.text, 10, 64); err == nil {
			return &literalExpr{value: n, ln: t.line}, nil
		}
	}
	f, err := strconv.ParseFloat(t.text, 64)
	if err != nil {
		return nil, fmt.Errorf("line %d: invalid number %q", t.line, t.text)
	}
	return &literalExpr{value: f, ln: t.line}, nil
}
