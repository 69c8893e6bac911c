package plotscript

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/sakif/usage-dashboard/internal/frame"
	"github.com/sakif/usage-dashboard/internal/schema"
)

type tableMethod func(f *frame.Frame, a *args) (any, error)

var tableMethods map[string]tableMethod

func init() {
	tableMethods = map[string]tableMethod{
		"filter":       tableFilter,
		"groupby":      tableGroupBy,
		"sort_values":  tableSort,
		"head":         tableHead,
		"tail":         tableTail,
		"nlargest":     tableNLargest(true),
		"nsmallest":    tableNLargest(false),
		"dropna":       tableDropNA,
		"select":       tableSelect,
		"rename":       tableRename,
		"unique":       tableUnique,
		"value_counts": tableValueCounts,
		"reset_index":  tableResetIndex,
		"copy":         func(f *frame.Frame, _ *args) (any, error) { return &table{f.Clone()}, nil },
	}
}

var filterOps = []string{"==", "!=", ">", ">=", "<", "<=", "contains", "in"}

func tableFilter(f *frame.Frame, a *args) (any, error) {
	col, err := a.str(0, "column")
	if err != nil {
		return nil, err
	}
	op, err := a.str(1, "op")
	if err != nil {
		return nil, err
	}
	value, ok := a.get(2, "value")
	if !ok {
		return nil, fmt.Errorf("filter() missing required argument \"value\"")
	}
	if err := a.strict(); err != nil {
		return nil, err
	}
	idx := f.Index(col)
	if idx < 0 {
		return nil, columnError(f, col)
	}
	if !slices.Contains(filterOps, op) {
		return nil, fmt.Errorf("filter() unknown operator %q (want one of %s)", op, strings.Join(filterOps, " "))
	}

	value = coerceLike(f.Columns[idx], value)
	out := frame.New(f.Columns)
	for _, row := range f.Rows {
		keep, err := matches(row[idx], op, value, f.Columns[idx])
		if err != nil {
			return nil, err
		}
		if keep {
			out.Rows = append(out.Rows, row)
		}
	}
	return &table{out}, nil
}

// coerceLike parses date strings when comparing against a date column.
func coerceLike(col schema.Column, v any) any {
	switch x := v.(type) {
	case string:
		if col.Type == schema.TypeDate {
			if t, err := time.Parse(frame.DateLayout, x); err == nil {
				return t
			}
		}
	case []any:
		return lo.Map(x, func(item any, _ int) any { return coerceLike(col, item) })
	}
	return v
}

// matches never selects null cells.
func matches(cell any, op string, value any, col schema.Column) (bool, error) {
	if cell == nil {
		return false, nil
	}
	switch op {
	case "==":
		return frame.Equal(cell, value), nil
	case "!=":
		return !frame.Equal(cell, value), nil
	case ">":
		return value != nil && frame.Compare(cell, value) > 0, nil
	case ">=":
		return value != nil && frame.Compare(cell, value) >= 0, nil
	case "<":
		return value != nil && frame.Compare(cell, value) < 0, nil
	case "<=":
		return value != nil && frame.Compare(cell, value) <= 0, nil
	case "contains":
		s, ok := value.(string)
		if !ok {
			return false, fmt.Errorf("filter() contains needs a str value, not %s", typeName(value))
		}
		return strings.Contains(frame.FormatValue(cell), s), nil
	case "in":
		list, ok := value.([]any)
		if !ok {
			return false, fmt.Errorf("filter() in needs a list value, not %s", typeName(value))
		}
		return lo.ContainsBy(list, func(v any) bool { return frame.Equal(cell, v) }), nil
	}
	return false, fmt.Errorf("filter() unknown operator %q on column %q", op, col.Name)
}

func tableGroupBy(f *frame.Frame, a *args) (any, error) {
	keys, err := a.names(0, "by")
	if err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return nil, fmt.Errorf("groupby() needs at least one column")
	}
	if err := a.strict(); err != nil {
		return nil, err
	}
	if err := requireColumns(f, keys...); err != nil {
		return nil, err
	}
	return &group{src: f, keys: keys}, nil
}

func tableSort(f *frame.Frame, a *args) (any, error) {
	by, err := a.names(0, "by")
	if err != nil {
		return nil, err
	}
	if len(by) == 0 {
		return nil, fmt.Errorf("sort_values() missing required argument \"by\"")
	}
	if err := requireColumns(f, by...); err != nil {
		return nil, err
	}
	asc := make([]bool, len(by))
	v, ok := a.get(-1, "ascending")
	switch x := v.(type) {
	case nil:
		if ok {
			return nil, fmt.Errorf("sort_values() ascending must be bool")
		}
		for i := range asc {
			asc[i] = true
		}
	case bool:
		for i := range asc {
			asc[i] = x
		}
	case []any:
		if len(x) != len(by) {
			return nil, fmt.Errorf("sort_values() ascending has %d values for %d columns", len(x), len(by))
		}
		for i, item := range x {
			b, ok := item.(bool)
			if !ok {
				return nil, fmt.Errorf("sort_values() ascending must hold bools")
			}
			asc[i] = b
		}
	default:
		return nil, fmt.Errorf("sort_values() ascending must be bool, not %s", typeName(v))
	}
	if err := a.strict(); err != nil {
		return nil, err
	}
	return &table{sortFrame(f, by, asc)}, nil
}

// sortFrame sorts stably; nulls go last in either direction.
func sortFrame(f *frame.Frame, by []string, asc []bool) *frame.Frame {
	out := f.Clone()
	idx := lo.Map(by, func(name string, _ int) int { return f.Index(name) })
	slices.SortStableFunc(out.Rows, func(x, y []any) int {
		for i, col := range idx {
			a, b := x[col], y[col]
			if a == nil || b == nil {
				if c := frame.Compare(a, b); c != 0 {
					return c
				}
				continue
			}
			c := frame.Compare(a, b)
			if !asc[i] {
				c = -c
			}
			if c != 0 {
				return c
			}
		}
		return 0
	})
	return out
}

func tableHead(f *frame.Frame, a *args) (any, error) {
	n, err := a.integer(0, "n", 5)
	if err != nil {
		return nil, err
	}
	if err := a.strict(); err != nil {
		return nil, err
	}
	return &table{f.Head(int(n))}, nil
}

func tableTail(f *frame.Frame, a *args) (any, error) {
	n, err := a.integer(0, "n", 5)
	if err != nil {
		return nil, err
	}
	if err := a.strict(); err != nil {
		return nil, err
	}
	return &table{f.Tail(int(n))}, nil
}

func tableNLargest(largest bool) tableMethod {
	return func(f *frame.Frame, a *args) (any, error) {
		n, err := a.integer(0, "n", 5)
		if err != nil {
			return nil, err
		}
		cols, err := a.names(1, "columns")
		if err != nil {
			return nil, err
		}
		if len(cols) == 0 {
			return nil, fmt.Errorf("%s() missing required argument \"columns\"", a.fn)
		}
		if err := a.strict(); err != nil {
			return nil, err
		}
		if err := requireColumns(f, cols...); err != nil {
			return nil, err
		}
		asc := lo.Map(cols, func(string, int) bool { return !largest })
		sorted := sortFrame(dropNulls(f, cols), cols, asc)
		return &table{sorted.Head(int(n))}, nil
	}
}

func dropNulls(f *frame.Frame, cols []string) *frame.Frame {
	idx := lo.Map(cols, func(name string, _ int) int { return f.Index(name) })
	if len(cols) == 0 {
		idx = lo.Range(len(f.Columns))
	}
	out := frame.New(f.Columns)
	out.Rows = lo.Filter(f.Rows, func(row []any, _ int) bool {
		return !lo.SomeBy(idx, func(i int) bool { return row[i] == nil })
	})
	return out
}

func tableDropNA(f *frame.Frame, a *args) (any, error) {
	cols, err := a.names(0, "subset")
	if err != nil {
		return nil, err
	}
	if err := a.strict(); err != nil {
		return nil, err
	}
	if err := requireColumns(f, cols...); err != nil {
		return nil, err
	}
	return &table{dropNulls(f, cols)}, nil
}

func tableSelect(f *frame.Frame, a *args) (any, error) {
	cols, err := a.names(0, "columns")
	if err != nil {
		return nil, err
	}
	if err := a.strict(); err != nil {
		return nil, err
	}
	return selectColumns(f, cols)
}

func selectColumns(f *frame.Frame, cols []string) (*table, error) {
	if err := requireColumns(f, cols...); err != nil {
		return nil, err
	}
	defs := lo.Map(cols, func(name string, _ int) schema.Column {
		c, _ := f.Column(name)
		return c
	})
	return &table{f.Project(defs)}, nil
}

func tableRename(f *frame.Frame, a *args) (any, error) {
	names := map[string]string{}
	if v, ok := a.get(0, "columns"); ok {
		d, ok := v.(*dict)
		if !ok {
			return nil, fmt.Errorf("rename() columns must be a dict, not %s", typeName(v))
		}
		for _, k := range d.keys {
			s, ok := d.values[k].(string)
			if !ok {
				return nil, fmt.Errorf("rename() new name for %q must be str", k)
			}
			names[k] = s
		}
	}
	for k, v := range a.kw {
		if k == "columns" {
			continue
		}
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("rename() new name for %q must be str", k)
		}
		a.seen[k] = true
		names[k] = s
	}
	for old := range names {
		if !f.Has(old) {
			return nil, columnError(f, old)
		}
	}
	out := f.Clone()
	out.Rename(names)
	return &table{out}, nil
}

func tableUnique(f *frame.Frame, a *args) (any, error) {
	col, err := a.str(0, "column")
	if err != nil {
		return nil, err
	}
	if err := a.strict(); err != nil {
		return nil, err
	}
	idx := f.Index(col)
	if idx < 0 {
		return nil, columnError(f, col)
	}
	out := frame.New([]schema.Column{f.Columns[idx]})
	values := lo.FilterMap(f.Rows, func(row []any, _ int) (any, bool) { return row[idx], row[idx] != nil })
	for _, v := range distinctKeys(values) {
		out.Append(v)
	}
	return &table{out}, nil
}

func tableValueCounts(f *frame.Frame, a *args) (any, error) {
	col, err := a.str(0, "column")
	if err != nil {
		return nil, err
	}
	if err := a.strict(); err != nil {
		return nil, err
	}
	return valueCounts(f, col)
}

func valueCounts(f *frame.Frame, col string) (*table, error) {
	idx := f.Index(col)
	if idx < 0 {
		return nil, columnError(f, col)
	}
	type bucket struct {
		value any
		n     int64
	}
	var order []string
	buckets := map[string]*bucket{}
	for _, row := range f.Rows {
		v := row[idx]
		if v == nil {
			continue
		}
		k := typeName(v) + ":" + frame.FormatValue(v)
		if b, ok := buckets[k]; ok {
			b.n++
			continue
		}
		order = append(order, k)
		buckets[k] = &bucket{value: v, n: 1}
	}
	list := lo.Map(order, func(k string, _ int) *bucket { return buckets[k] })
	slices.SortStableFunc(list, func(x, y *bucket) int { return int(y.n - x.n) })

	out := frame.New([]schema.Column{f.Columns[idx], {Name: "count", Type: schema.TypeInt}})
	for _, b := range list {
		out.Append(b.value, b.n)
	}
	return &table{out}, nil
}

// tableResetIndex exists because aggregation results are already flat.
// With name= it renames the last column, as after size().
func tableResetIndex(f *frame.Frame, a *args) (any, error) {
	name, err := a.optStr(-1, "name")
	if err != nil {
		return nil, err
	}
	a.get(-1, "drop")
	if err := a.strict(); err != nil {
		return nil, err
	}
	out := f.Clone()
	if name != "" && len(out.Columns) > 0 {
		out.Columns[len(out.Columns)-1].Name = name
	}
	return &table{out}, nil
}

func concat(a *args) (any, error) {
	v, ok := a.get(0, "objs")
	if !ok {
		return nil, fmt.Errorf("concat() missing required argument \"objs\"")
	}
	a.get(-1, "ignore_index")
	if err := a.strict(); err != nil {
		return nil, err
	}
	list, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("concat() needs a list of DataFrames, not %s", typeName(v))
	}
	var cols []schema.Column
	var frames []*frame.Frame
	for _, item := range list {
		t, ok := item.(*table)
		if !ok {
			return nil, fmt.Errorf("concat() needs a list of DataFrames, found %s", typeName(item))
		}
		frames = append(frames, t.f)
		for _, c := range t.f.Columns {
			if !lo.ContainsBy(cols, func(x schema.Column) bool { return x.Name == c.Name }) {
				cols = append(cols, c)
			}
		}
	}
	out := frame.New(cols)
	for _, f := range frames {
		out.Rows = append(out.Rows, f.Project(cols).Rows...)
	}
	return &table{out}, nil
}

func pdValueCounts(a *args) (any, error) {
	f, err := a.frame(0, "data")
	if err != nil {
		return nil, err
	}
	col, err := a.str(1, "column")
	if err != nil {
		return nil, err
	}
	if err := a.strict(); err != nil {
		return nil, err
	}
	return valueCounts(f, col)
}
