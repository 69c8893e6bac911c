package ingest

import (
	"fmt"
	"strings"

	"github.com/samber/lo"

	"github.com/sakif/usage-dashboard/internal/apperror"
	"github.com/sakif/usage-dashboard/internal/frame"
	"github.com/sakif/usage-dashboard/internal/schema"
)

// Flatten unnests a column of mapping literals into one row per entry.
//
// Rows missing any id value or the source value are dropped, as are rows
// whose source does not start with '{' (a scalar such as "0" means no
// usage). Each surviving entry yields the id values followed by keyName
// (the entry key) and valueName (the raw value text). A value that starts
// with '{' but does not parse fails the whole call with a data integrity
// error naming the row and column.
func Flatten(rows *frame.Frame, idColumns []string, sourceColumn, keyName, valueName string) (*frame.Frame, error) {
	cols := make([]schema.Column, 0, len(idColumns)+2)
	for _, name := range idColumns {
		col, ok := rows.Column(name)
		if !ok {
			col = schema.Column{Name: name, Type: schema.TypeString}
		}
		cols = append(cols, col)
	}
	cols = append(cols,
		schema.Column{Name: keyName, Type: schema.TypeString},
		schema.Column{Name: valueName, Type: schema.TypeString},
	)
	out := frame.New(cols)

	src := rows.Index(sourceColumn)
	ids := lo.Map(idColumns, func(name string, _ int) int { return rows.Index(name) })
	if src < 0 || lo.Contains(ids, -1) {
		return out, nil
	}

	for i, row := range rows.Rows {
		if lo.SomeBy(ids, func(idx int) bool { return missing(row[idx]) }) || missing(row[src]) {
			continue
		}
		text := strings.TrimSpace(frame.FormatValue(row[src]))
		if !strings.HasPrefix(text, "{") {
			continue
		}

		entries, err := ParseMapping(text)
		if err != nil {
			return nil, apperror.DataIntegrity(
				fmt.Sprintf("malformed mapping in column %s at row %d: %v", sourceColumn, i+1, err), err)
		}
		for _, e := range entries {
			cells := make([]any, 0, len(cols))
			for _, idx := range ids {
				cells = append(cells, row[idx])
			}
			cells = append(cells, e.Key, e.Value)
			out.Append(cells...)
		}
	}
	return out, nil
}

func missing(v any) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && strings.TrimSpace(s) == ""
}
