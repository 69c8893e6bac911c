package docker

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/samber/lo"

	"github.com/sakif/usage-dashboard/internal/chart"
	"github.com/sakif/usage-dashboard/internal/frame"
	"github.com/sakif/usage-dashboard/internal/schema"
)

// resultMarker precedes the JSON chart summary on stdout.
const resultMarker = "__USAGE_DASHBOARD_RESULT__"

const prelude = `import sys
import pandas as pd
import plotly.express as px
df = pd.read_csv(sys.stdin, parse_dates=%s)
del sys
`

const epilogue = `
def __usage_dashboard_emit():
    import json, math
    import pandas as _pd

    def label(v):
        if isinstance(v, str):
            return v
        try:
            ts = _pd.Timestamp(v)
            if not _pd.isna(ts) and not isinstance(v, (int, float)) and ts == ts.normalize():
                return ts.strftime("%%Y-%%m-%%d")
        except Exception:
            pass
        return str(v)

    def number(v):
        try:
            f = float(v)
            return 0.0 if math.isnan(f) or math.isinf(f) else f
        except Exception:
            return 0.0

    def title(obj):
        try:
            return obj.title.text or ""
        except Exception:
            return ""

    f = globals().get("fig")
    if f is None:
        return {"bound": False}
    kind, series = None, []
    for tr in f.data:
        d = tr.to_plotly_json()
        t = d.get("type", "bar")
        if t == "scatter":
            mode = d.get("mode") or ""
            t = "area" if d.get("fill") or d.get("stackgroup") else ("line" if "lines" in mode else "scatter")
        if t == "pie":
            labels, values = d.get("labels"), d.get("values")
        else:
            labels, values = d.get("x"), d.get("y")
            if d.get("orientation") == "h":
                labels, values = values, labels
        labels = [] if labels is None else list(labels)
        if values is None:
            counts = _pd.Series(labels).value_counts(sort=False).sort_index()
            labels, values = list(counts.index), list(counts.values)
        else:
            values = list(values)
        kind = kind or t
        series.append({
            "name": str(d.get("name") or ""),
            "labels": [label(v) for v in labels],
            "values": [number(v) for v in values],
        })
    return {"bound": True, "figure": {
        "kind": kind or "bar",
        "title": title(f.layout),
        "xLabel": title(f.layout.xaxis),
        "yLabel": title(f.layout.yaxis),
        "series": series,
    }}

print("%s" + __import__("json").dumps(__usage_dashboard_emit()))
`

// buildScript wraps generated code with the prelude that binds df, px and
// pd, and the epilogue that reports fig.
func buildScript(code string, table *frame.Frame) string {
	dates := lo.FilterMap(table.Columns, func(c schema.Column, _ int) (string, bool) {
		return c.Name, c.Type == schema.TypeDate
	})
	list, _ := json.Marshal(dates)
	if dates == nil {
		list = []byte("[]")
	}
	return fmt.Sprintf(prelude, list) + code + "\n" + fmt.Sprintf(epilogue, resultMarker)
}

// encodeCSV renders the table for pandas.read_csv.
func encodeCSV(table *frame.Frame) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(table.ColumnNames()); err != nil {
		return nil, err
	}
	rec := make([]string, len(table.Columns))
	for _, row := range table.Rows {
		for i, v := range row {
			if v == nil {
				rec[i] = ""
			} else {
				rec[i] = frame.FormatValue(v)
			}
		}
		if err := w.Write(rec); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

type result struct {
	Bound  bool          `json:"bound"`
	Figure *chart.Figure `json:"figure"`
}

// parseResult reads the chart summary printed after the last marker.
func parseResult(stdout string) (*chart.Figure, error) {
	i := strings.LastIndex(stdout, resultMarker)
	if i < 0 {
		return nil, fmt.Errorf("sandbox produced no result")
	}
	line := stdout[i+len(resultMarker):]
	if nl := strings.IndexByte(line, '\n'); nl >= 0 {
		line = line[:nl]
	}
	var r result
	if err := json.Unmarshal([]byte(line), &r); err != nil {
		return nil, fmt.Errorf("decoding sandbox result: %w", err)
	}
	if !r.Bound || r.Figure == nil {
		return nil, nil
	}
	return r.Figure, nil
}
