// Package frame is a small column-typed, row-oriented table used wherever the
// dashboard handles tabular data generically: CSV ingestion, flattening,
// prompt samples and the chart query interpreter.
//
// A cell holds one of: nil (null), string, int64, float64, bool or
// time.Time (a calendar day at UTC midnight).
package frame

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/sakif/usage-dashboard/internal/schema"
)

// DateLayout is the textual form of date cells.
const DateLayout = "2006-01-02"

// Frame is an ordered set of typed columns and rows of cells.
type Frame struct {
	Columns []schema.Column
	Rows    [][]any
}

// New returns an empty frame with the given columns.
func New(cols []schema.Column) *Frame {
	return &Frame{Columns: append([]schema.Column(nil), cols...)}
}

// Empty returns a correctly-columned empty frame for a master table.
func Empty(kind schema.Kind) *Frame {
	return New(schema.Columns(kind))
}

// Strings returns an empty frame whose columns are all TypeString.
func Strings(names []string) *Frame {
	return New(lo.Map(names, func(n string, _ int) schema.Column {
		return schema.Column{Name: n, Type: schema.TypeString}
	}))
}

// Len is the number of rows.
func (f *Frame) Len() int { return len(f.Rows) }

// ColumnNames lists column names in order.
func (f *Frame) ColumnNames() []string {
	return lo.Map(f.Columns, func(c schema.Column, _ int) string { return c.Name })
}

// Index returns the position of the named column, or -1.
func (f *Frame) Index(name string) int {
	for i, c := range f.Columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// Has reports whether the named column exists.
func (f *Frame) Has(name string) bool { return f.Index(name) >= 0 }

// Column returns the named column definition.
func (f *Frame) Column(name string) (schema.Column, bool) {
	if i := f.Index(name); i >= 0 {
		return f.Columns[i], true
	}
	return schema.Column{}, false
}

// Append adds a row. It panics if the row width does not match.
func (f *Frame) Append(row ...any) {
	if len(row) != len(f.Columns) {
		panic(fmt.Sprintf("frame: row has %d cells, frame has %d columns", len(row), len(f.Columns)))
	}
	f.Rows = append(f.Rows, row)
}

// Value returns the cell at row i in the named column; nil when the column
// does not exist.
func (f *Frame) Value(i int, name string) any {
	idx := f.Index(name)
	if idx < 0 {
		return nil
	}
	return f.Rows[i][idx]
}

// Clone copies the frame; cells are immutable values so rows are copied
// shallowly.
func (f *Frame) Clone() *Frame {
	out := New(f.Columns)
	out.Rows = make([][]any, len(f.Rows))
	for i, r := range f.Rows {
		out.Rows[i] = append([]any(nil), r...)
	}
	return out
}

// Project reorders and restricts the frame to cols. Columns absent from f
// are filled with nulls; extra columns of f are dropped.
func (f *Frame) Project(cols []schema.Column) *Frame {
	out := New(cols)
	src := lo.Map(cols, func(c schema.Column, _ int) int { return f.Index(c.Name) })
	for _, r := range f.Rows {
		row := make([]any, len(cols))
		for j, idx := range src {
			if idx >= 0 {
				row[j] = r[idx]
			}
		}
		out.Rows = append(out.Rows, row)
	}
	return out
}

// Rename changes column names in place according to from→to.
func (f *Frame) Rename(names map[string]string) {
	for i, c := range f.Columns {
		if to, ok := names[c.Name]; ok {
			f.Columns[i].Name = to
		}
	}
}

// Head returns the first n rows.
func (f *Frame) Head(n int) *Frame {
	return f.slice(0, min(max(n, 0), f.Len()))
}

// Tail returns the last n rows.
func (f *Frame) Tail(n int) *Frame {
	n = min(max(n, 0), f.Len())
	return f.slice(f.Len()-n, f.Len())
}

func (f *Frame) slice(from, to int) *Frame {
	out := New(f.Columns)
	out.Rows = append([][]any(nil), f.Rows[from:to]...)
	return out
}

// NonNull counts the non-null cells of column idx.
func (f *Frame) NonNull(idx int) int {
	return lo.CountBy(f.Rows, func(r []any) bool { return r[idx] != nil })
}

// Describe renders a schema summary: row count and, per column, the
// non-null count and type.
func (f *Frame) Describe() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d rows x %d columns\n", f.Len(), len(f.Columns))
	rows := [][]string{{"#", "column", "non-null", "type"}}
	for i, c := range f.Columns {
		rows = append(rows, []string{strconv.Itoa(i), c.Name, strconv.Itoa(f.NonNull(i)), string(c.Type)})
	}
	writeAligned(&b, rows)
	return b.String()
}

// String renders the frame as an aligned text table.
func (f *Frame) String() string {
	var b strings.Builder
	rows := [][]string{f.ColumnNames()}
	for _, r := range f.Rows {
		rows = append(rows, lo.Map(r, func(v any, _ int) string { return FormatValue(v) }))
	}
	writeAligned(&b, rows)
	return b.String()
}

func writeAligned(b *strings.Builder, rows [][]string) {
	if len(rows) == 0 {
		return
	}
	widths := make([]int, len(rows[0]))
	for _, r := range rows {
		for j, cell := range r {
			widths[j] = max(widths[j], len(cell))
		}
	}
	for _, r := range rows {
		for j, cell := range r {
			if j > 0 {
				b.WriteString("  ")
			}
			if j == len(r)-1 {
				b.WriteString(cell)
			} else {
				b.WriteString(cell + strings.Repeat(" ", widths[j]-len(cell)))
			}
		}
		b.WriteByte('\n')
	}
}

// FormatValue renders a cell for display.
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case bool:
		if x {
			return "True"
		}
		return "False"
	case time.Time:
		return x.Format(DateLayout)
	default:
		return fmt.Sprint(x)
	}
}

// ToFloat converts numeric and boolean cells to float64.
func ToFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case int64:
		return float64(x), true
	case float64:
		if math.IsNaN(x) {
			return 0, false
		}
		return x, true
	case bool:
		if x {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}

// Compare orders two cells: nulls sort last, numbers numerically, dates
// chronologically, everything else by its formatted text.
func Compare(a, b any) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	}
	if fa, ok := ToFloat(a); ok {
		if fb, ok := ToFloat(b); ok {
			switch {
			case fa < fb:
				return -1
			case fa > fb:
				return 1
			}
			return 0
		}
	}
	if ta, ok := a.(time.Time); ok {
		if tb, ok := b.(time.Time); ok {
			return ta.Compare(tb)
		}
	}
	return strings.Compare(FormatValue(a), FormatValue(b))
}

// Equal reports whether two cells hold the same value.
func Equal(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return Compare(a, b) == 0
}
