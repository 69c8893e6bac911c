package frame

import (
	"encoding/json"
	"math"
	"time"

	"github.com/sakif/usage-dashboard/internal/schema"
)

type jsonFrame struct {
	Columns []schema.Column `json:"columns"`
	Rows    [][]any         `json:"rows"`
}

// MarshalJSON encodes the frame as {"columns": [...], "rows": [[...]]}.
// Dates become "YYYY-MM-DD" and non-finite floats become null.
func (f *Frame) MarshalJSON() ([]byte, error) {
	out := jsonFrame{Columns: f.Columns, Rows: make([][]any, len(f.Rows))}
	if out.Columns == nil {
		out.Columns = []schema.Column{}
	}
	for i, row := range f.Rows {
		cells := make([]any, len(row))
		for j, v := range row {
			switch x := v.(type) {
			case time.Time:
				cells[j] = x.Format(DateLayout)
			case float64:
				if math.IsNaN(x) || math.IsInf(x, 0) {
					cells[j] = nil
				} else {
					cells[j] = x
				}
			default:
				cells[j] = v
			}
		}
		out.Rows[i] = cells
	}
	return json.Marshal(out)
}
