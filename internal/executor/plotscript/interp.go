package plotscript

import (
	"context"
	"fmt"

	"github.com/sakif/usage-dashboard/internal/chart"
	"github.com/sakif/usage-dashboard/internal/frame"
)

type interp struct {
	ctx  context.Context
	vars map[string]any
}

func (in *interp) run(stmts []statement) error {
	for _, st := range stmts {
		if err := in.ctx.Err(); err != nil {
			return err
		}
		if st.value == nil {
			continue
		}
		v, err := in.eval(st.value)
		if err != nil {
			return lineError(st.line, err)
		}
		if st.target != "" {
			in.vars[st.target] = v
		}
	}
	return nil
}

type posError struct {
	line int
	err  error
}

func (e *posError) Error() string { return fmt.Sprintf("line %d: %v", e.line, e.err) }
func (e *posError) Unwrap() error { return e.err }

func lineError(line int, err error) error {
	if _, ok := err.(*posError); ok {
		return err
	}
	return &posError{line: line, err: err}
}

func (in *interp) eval(e expr) (any, error) {
	switch e := e.(type) {
	case *literalExpr:
		return e.value, nil
	case *identExpr:
		v, ok := in.vars[e.name]
		if !ok {
			if b, ok := globals[e.name]; ok {
				return b, nil
			}
			return nil, fmt.Errorf("name %q is not defined", e.name)
		}
		return v, nil
	case *listExpr:
		out := make([]any, 0, len(e.items))
		for _, item := range e.items {
			v, err := in.eval(item)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	case *dictExpr:
		d := &dict{values: map[string]any{}}
		for i, k := range e.keys {
			kv, err := in.eval(k)
			if err != nil {
				return nil, err
			}
			key, ok := kv.(string)
			if !ok {
				return nil, fmt.Errorf("dict keys must be str, not %s", typeName(kv))
			}
			v, err := in.eval(e.values[i])
			if err != nil {
				return nil, err
			}
			if _, dup := d.values[key]; !dup {
				d.keys = append(d.keys, key)
			}
			d.values[key] = v
		}
		return d, nil
	case *negExpr:
		v, err := in.eval(e.x)
		if err != nil {
			return nil, err
		}
		switch n := v.(type) {
		case int64:
			return -n, nil
		case float64:
			return -n, nil
		}
		return nil, fmt.Errorf("bad operand type for unary -: %s", typeName(v))
	case *attrExpr:
		x, err := in.eval(e.x)
		if err != nil {
			return nil, err
		}
		return attribute(x, e.name)
	case *indexExpr:
		x, err := in.eval(e.x)
		if err != nil {
			return nil, err
		}
		idx, err := in.eval(e.index)
		if err != nil {
			return nil, err
		}
		return index(x, idx)
	case *callExpr:
		return in.call(e)
	}
	return nil, fmt.Errorf("unsupported expression %T", e)
}

func attribute(x any, name string) (any, error) {
	switch v := x.(type) {
	case *namespace:
		if _, ok := v.funcs[name]; !ok {
			return nil, fmt.Errorf("module %s has no attribute %q", v.name, name)
		}
		return &method{recv: v, name: name}, nil
	case *table:
		if _, ok := tableMethods[name]; ok {
			return &method{recv: v, name: name}, nil
		}
		if name == "columns" {
			return stringList(v.f.ColumnNames()), nil
		}
		if v.f.Has(name) {
			return selectColumns(v.f, []string{name})
		}
		return nil, columnError(v.f, name)
	case *group:
		if _, ok := groupMethods[name]; ok {
			return &method{recv: v, name: name}, nil
		}
		return nil, fmt.Errorf("GroupBy has no method %q", name)
	case *chart.Figure:
		return &method{recv: v, name: name}, nil
	}
	return nil, fmt.Errorf("%s has no attribute %q", typeName(x), name)
}

func index(x, idx any) (any, error) {
	switch v := x.(type) {
	case *table:
		switch i := idx.(type) {
		case string:
			return selectColumns(v.f, []string{i})
		case []any:
			names, err := stringItems(i)
			if err != nil {
				return nil, err
			}
			return selectColumns(v.f, names)
		}
	case *group:
		switch i := idx.(type) {
		case string:
			return v.withColumns([]string{i})
		case []any:
			names, err := stringItems(i)
			if err != nil {
				return nil, err
			}
			return v.withColumns(names)
		}
	case *dict:
		if k, ok := idx.(string); ok {
			if val, ok := v.values[k]; ok {
				return val, nil
			}
			return nil, fmt.Errorf("key %q not found", k)
		}
	case []any:
		if n, ok := idx.(int64); ok {
			if n < 0 {
				n += int64(len(v))
			}
			if n < 0 || n >= int64(len(v)) {
				return nil, fmt.Errorf("list index out of range")
			}
			return v[n], nil
		}
	}
	return nil, fmt.Errorf("%s cannot be indexed by %s", typeName(x), typeName(idx))
}

func (in *interp) call(e *callExpr) (any, error) {
	fn, err := in.eval(e.fn)
	if err != nil {
		return nil, err
	}
	m, ok := fn.(*method)
	if !ok {
		if g, ok := fn.(builtin); ok {
			m = &method{recv: g, name: exprName(e.fn)}
		} else {
			return nil, fmt.Errorf("%s is not callable", typeName(fn))
		}
	}

	a := &args{fn: m.name, kw: map[string]any{}, seen: map[string]bool{}}
	for _, arg := range e.args {
		v, err := in.eval(arg)
		if err != nil {
			return nil, err
		}
		a.pos = append(a.pos, v)
	}
	for _, kw := range e.kwargs {
		v, err := in.eval(kw.value)
		if err != nil {
			return nil, err
		}
		a.kw[kw.name] = v
	}

	switch r := m.recv.(type) {
	case builtin:
		return r(a)
	case *namespace:
		a.fn = r.name + "." + m.name
		return r.funcs[m.name](a)
	case *table:
		return tableMethods[m.name](r.f, a)
	case *group:
		return groupMethods[m.name](r, a)
	case *chart.Figure:
		return figureMethod(r, m.name, a)
	}
	return nil, fmt.Errorf("%s is not callable", typeName(fn))
}

func exprName(e expr) string {
	if id, ok := e.(*identExpr); ok {
		return id.name
	}
	return "function"
}

// globals are the few free functions available without a namespace.
var globals = map[string]builtin{
	"len": func(a *args) (any, error) {
		v, ok := a.get(0, "")
		if !ok {
			return nil, fmt.Errorf("len() takes exactly one argument")
		}
		switch x := v.(type) {
		case *table:
			return int64(x.f.Len()), nil
		case []any:
			return int64(len(x)), nil
		case string:
			return int64(len(x)), nil
		}
		return nil, fmt.Errorf("object of type %s has no len()", typeName(v))
	},
}

func stringList(names []string) []any {
	out := make([]any, len(names))
	for i, n := range names {
		out[i] = n
	}
	return out
}

func stringItems(items []any) ([]string, error) {
	out := make([]string, 0, len(items))
	for _, item := range items {
		s, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("column names must be str, not %s", typeName(item))
		}
		out = append(out, s)
	}
	return out, nil
}

func newRuntime(ctx context.Context, tbl *frame.Frame) *interp {
	return &interp{
		ctx: ctx,
		vars: map[string]any{
			DataVar:    &table{tbl},
			PlotAlias:  pxNamespace,
			TableAlias: pdNamespace,
		},
	}
}
