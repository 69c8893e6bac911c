package plotscript

import (
	"fmt"
	"strings"
	"time"

	"github.com/sakif/usage-dashboard/internal/chart"
	"github.com/sakif/usage-dashboard/internal/frame"
	"github.com/samber/lo"
)

// Runtime values are nil, string, int64, float64, bool, time.Time, []any,
// *dict, *table, *group, *namespace, *method and *chart.Figure.

type table struct{ f *frame.Frame }

type group struct {
	src      *frame.Frame
	keys     []string
	selected []string
}

type dict struct {
	keys   []string
	values map[string]any
}

type builtin func(a *args) (any, error)

type namespace struct {
	name  string
	funcs map[string]builtin
}

// method is an attribute of a value awaiting a call.
type method struct {
	recv any
	name string
}

func typeName(v any) string {
	switch v := v.(type) {
	case nil:
		return "None"
	case string:
		return "str"
	case int64:
		return "int"
	case float64:
		return "float"
	case bool:
		return "bool"
	case time.Time:
		return "date"
	case []any:
		return "list"
	case *dict:
		return "dict"
	case *table:
		return "DataFrame"
	case *group:
		return "GroupBy"
	case *namespace:
		return "module " + v.name
	case *method:
		return "method " + v.name
	case *chart.Figure:
		return "Figure"
	}
	return fmt.Sprintf("%T", v)
}

func columnError(f *frame.Frame, name string) error {
	return fmt.Errorf("column %q does not exist (available: %s)", name, strings.Join(f.ColumnNames(), ", "))
}

func requireColumns(f *frame.Frame, names ...string) error {
	for _, n := range names {
		if !f.Has(n) {
			return columnError(f, n)
		}
	}
	return nil
}

// args gives builtins uniform access to positional and keyword arguments.
type args struct {
	fn   string
	pos  []any
	kw   map[string]any
	seen map[string]bool
}

func (a *args) get(i int, name string) (any, bool) {
	if name != "" {
		if v, ok := a.kw[name]; ok {
			a.seen[name] = true
			return v, true
		}
	}
	if i >= 0 && i < len(a.pos) {
		return a.pos[i], true
	}
	return nil, false
}

func (a *args) str(i int, name string) (string, error) {
	v, ok := a.get(i, name)
	if !ok {
		return "", fmt.Errorf("%s() missing required argument %q", a.fn, name)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%s() argument %q must be str, not %s", a.fn, name, typeName(v))
	}
	return s, nil
}

func (a *args) optStr(i int, name string) (string, error) {
	v, ok := a.get(i, name)
	if !ok || v == nil {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%s() argument %q must be str, not %s", a.fn, name, typeName(v))
	}
	return s, nil
}

func (a *args) integer(i int, name string, def int64) (int64, error) {
	v, ok := a.get(i, name)
	if !ok || v == nil {
		return def, nil
	}
	switch n := v.(type) {
	case int64:
		return n, nil
	case float64:
		if n == float64(int64(n)) {
			return int64(n), nil
		}
	}
	return 0, fmt.Errorf("%s() argument %q must be int, not %s", a.fn, name, typeName(v))
}

func (a *args) boolean(i int, name string, def bool) (bool, error) {
	v, ok := a.get(i, name)
	if !ok || v == nil {
		return def, nil
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("%s() argument %q must be bool, not %s", a.fn, name, typeName(v))
	}
	return b, nil
}

func (a *args) frame(i int, name string) (*frame.Frame, error) {
	v, ok := a.get(i, name)
	if !ok {
		return nil, fmt.Errorf("%s() missing required argument %q", a.fn, name)
	}
	t, ok := v.(*table)
	if !ok {
		return nil, fmt.Errorf("%s() argument %q must be a DataFrame, not %s", a.fn, name, typeName(v))
	}
	return t.f, nil
}

// names collects column names given as trailing positional strings, a
// single list, or the keyword name.
func (a *args) names(from int, name string) ([]string, error) {
	var raw []any
	if v, ok := a.kw[name]; ok {
		a.seen[name] = true
		raw = []any{v}
	} else if from >= 0 && from < len(a.pos) {
		raw = a.pos[from:]
	}
	var out []string
	for _, v := range raw {
		switch x := v.(type) {
		case string:
			out = append(out, x)
		case []any:
			for _, item := range x {
				s, ok := item.(string)
				if !ok {
					return nil, fmt.Errorf("%s() column names must be str, not %s", a.fn, typeName(item))
				}
				out = append(out, s)
			}
		case nil:
		default:
			return nil, fmt.Errorf("%s() column names must be str, not %s", a.fn, typeName(v))
		}
	}
	return out, nil
}

// strict rejects keyword arguments the builtin did not read.
func (a *args) strict() error {
	for k := range a.kw {
		if !a.seen[k] {
			return fmt.Errorf("%s() got an unexpected keyword argument %q", a.fn, k)
		}
	}
	return nil
}

func (a *args) maxPositional(n int) error {
	if len(a.pos) > n {
		return fmt.Errorf("%s() takes at most %d positional arguments (%d given)", a.fn, n, len(a.pos))
	}
	return nil
}

func distinctKeys(values []any) []any {
	return lo.UniqBy(values, func(v any) string { return typeName(v) + ":" + frame.FormatValue(v) })
}
