package plotscript

import (
	"fmt"
	"slices"
	"strings"

	"github.com/samber/lo"

	"github.com/sakif/usage-dashboard/internal/frame"
	"github.com/sakif/usage-dashboard/internal/schema"
)

type groupMethod func(g *group, a *args) (any, error)

var groupMethods map[string]groupMethod

func init() {
	groupMethods = map[string]groupMethod{
		"sum":     aggregator("sum"),
		"mean":    aggregator("mean"),
		"min":     aggregator("min"),
		"max":     aggregator("max"),
		"count":   aggregator("count"),
		"nunique": aggregator("nunique"),
		"size":    groupSize,
	}
}

// selected is set by indexing a group, as in df.groupby("a")["b"].sum().
func (g *group) withColumns(cols []string) (*group, error) {
	if err := requireColumns(g.src, cols...); err != nil {
		return nil, err
	}
	return &group{src: g.src, keys: g.keys, selected: cols}, nil
}

type bucketRows struct {
	key  []any
	rows [][]any
}

// buckets partitions rows by key, dropping null keys, ordered by key.
func (g *group) buckets() []*bucketRows {
	idx := lo.Map(g.keys, func(k string, _ int) int { return g.src.Index(k) })
	byKey := map[string]*bucketRows{}
	var list []*bucketRows
	for _, row := range g.src.Rows {
		key := lo.Map(idx, func(i int, _ int) any { return row[i] })
		if lo.Contains(key, nil) {
			continue
		}
		k := strings.Join(lo.Map(key, func(v any, _ int) string { return typeName(v) + ":" + frame.FormatValue(v) }), "\x00")
		b, ok := byKey[k]
		if !ok {
			b = &bucketRows{key: key}
			byKey[k] = b
			list = append(list, b)
		}
		b.rows = append(b.rows, row)
	}
	slices.SortStableFunc(list, func(x, y *bucketRows) int {
		for i := range x.key {
			if c := frame.Compare(x.key[i], y.key[i]); c != 0 {
				return c
			}
		}
		return 0
	})
	return list
}

func (g *group) keyColumns() []schema.Column {
	return lo.Map(g.keys, func(k string, _ int) schema.Column {
		c, _ := g.src.Column(k)
		return c
	})
}

func isNumeric(t schema.Type) bool {
	return t == schema.TypeInt || t == schema.TypeFloat || t == schema.TypeBool
}

// valueColumns resolves the aggregated columns: explicit arguments, then
// the indexed selection, then every non-key column (numeric only for
// arithmetic aggregations).
func (g *group) valueColumns(explicit []string, numericOnly bool) ([]schema.Column, error) {
	names := explicit
	if len(names) == 0 {
		names = g.selected
	}
	if len(names) == 0 {
		for _, c := range g.src.Columns {
			if slices.Contains(g.keys, c.Name) || numericOnly && !isNumeric(c.Type) {
				continue
			}
			names = append(names, c.Name)
		}
	}
	if err := requireColumns(g.src, names...); err != nil {
		return nil, err
	}
	return lo.Map(names, func(n string, _ int) schema.Column {
		c, _ := g.src.Column(n)
		return c
	}), nil
}

func aggregator(fn string) groupMethod {
	return func(g *group, a *args) (any, error) {
		explicit, err := a.names(0, "columns")
		if err != nil {
			return nil, err
		}
		a.get(-1, "numeric_only")
		if err := a.strict(); err != nil {
			return nil, err
		}
		numericOnly := fn == "sum" || fn == "mean"
		cols, err := g.valueColumns(explicit, numericOnly)
		if err != nil {
			return nil, err
		}

		outCols := g.keyColumns()
		for _, c := range cols {
			t := c.Type
			switch fn {
			case "sum":
				if !isNumeric(t) {
					return nil, fmt.Errorf("cannot sum column %q of type %s", c.Name, t)
				}
				if t == schema.TypeBool {
					t = schema.TypeInt
				}
			case "mean":
				if !isNumeric(t) {
					return nil, fmt.Errorf("cannot average column %q of type %s", c.Name, t)
				}
				t = schema.TypeFloat
			case "count", "nunique":
				t = schema.TypeInt
			}
			outCols = append(outCols, schema.Column{Name: c.Name, Type: t})
		}

		out := frame.New(outCols)
		for _, b := range g.buckets() {
			row := slices.Clone(b.key)
			for _, c := range cols {
				idx := g.src.Index(c.Name)
				values := lo.FilterMap(b.rows, func(r []any, _ int) (any, bool) { return r[idx], r[idx] != nil })
				row = append(row, reduce(fn, c.Type, values))
			}
			out.Append(row...)
		}
		return &table{out}, nil
	}
}

func reduce(fn string, t schema.Type, values []any) any {
	switch fn {
	case "count":
		return int64(len(values))
	case "nunique":
		return int64(len(distinctKeys(values)))
	case "min", "max":
		if len(values) == 0 {
			return nil
		}
		best := values[0]
		for _, v := range values[1:] {
			c := frame.Compare(v, best)
			if fn == "min" && c < 0 || fn == "max" && c > 0 {
				best = v
			}
		}
		return best
	case "mean":
		if len(values) == 0 {
			return nil
		}
		return sumFloat(values) / float64(len(values))
	}
	// sum
	if t == schema.TypeFloat {
		return sumFloat(values)
	}
	var n int64
	for _, v := range values {
		switch x := v.(type) {
		case int64:
			n += x
		case bool:
			if x {
				n++
			}
		}
	}
	return n
}

func sumFloat(values []any) float64 {
	total := 0.0
	for _, v := range values {
		f, _ := frame.ToFloat(v)
		total += f
	}
	return total
}

func groupSize(g *group, a *args) (any, error) {
	if err := a.maxPositional(0); err != nil {
		return nil, err
	}
	if err := a.strict(); err != nil {
		return nil, err
	}
	out := frame.New(append(g.keyColumns(), schema.Column{Name: "size", Type: schema.TypeInt}))
	for _, b := range g.buckets() {
		out.Append(append(slices.Clone(b.key), int64(len(b.rows)))...)
	}
	return &table{out}, nil
}
