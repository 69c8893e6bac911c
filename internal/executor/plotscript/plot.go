package plotscript

import (
	"fmt"
	"slices"

	"github.com/sakif/usage-dashboard/internal/chart"
	"github.com/sakif/usage-dashboard/internal/frame"
)

// plotOptions are the keyword arguments shared by the px functions. Other
// plotly keywords (hover_data, size, markers, ...) are accepted and ignored.
type plotOptions struct {
	f      *frame.Frame
	title  string
	labels map[string]string
}

func readPlotOptions(a *args) (*plotOptions, error) {
	f, err := a.frame(0, "data_frame")
	if err != nil {
		return nil, err
	}
	title, err := a.optStr(-1, "title")
	if err != nil {
		return nil, err
	}
	opts := &plotOptions{f: f, title: title, labels: map[string]string{}}
	if v, ok := a.get(-1, "labels"); ok && v != nil {
		d, ok := v.(*dict)
		if !ok {
			return nil, fmt.Errorf("%s() labels must be a dict, not %s", a.fn, typeName(v))
		}
		for _, k := range d.keys {
			opts.labels[k] = frame.FormatValue(d.values[k])
		}
	}
	return opts, nil
}

func (o *plotOptions) label(col string) string {
	if l, ok := o.labels[col]; ok {
		return l
	}
	return col
}

func plotXY(kind chart.Kind) builtin {
	return func(a *args) (any, error) {
		opts, err := readPlotOptions(a)
		if err != nil {
			return nil, err
		}
		x, err := a.str(1, "x")
		if err != nil {
			return nil, err
		}
		ys, err := a.names(-1, "y")
		if err != nil {
			return nil, err
		}
		if len(ys) == 0 {
			if v, ok := a.get(2, ""); ok {
				if s, ok := v.(string); ok {
					ys = []string{s}
				}
			}
		}
		if len(ys) == 0 {
			return nil, fmt.Errorf("%s() missing required argument \"y\"", a.fn)
		}
		color, err := a.optStr(-1, "color")
		if err != nil {
			return nil, err
		}
		orientation, err := a.optStr(-1, "orientation")
		if err != nil {
			return nil, err
		}
		if orientation == "h" && len(ys) == 1 {
			x, ys = ys[0], []string{x}
		}

		f := opts.f
		if err := requireColumns(f, append([]string{x}, ys...)...); err != nil {
			return nil, err
		}
		if color != "" {
			if err := requireColumns(f, color); err != nil {
				return nil, err
			}
		}
		for _, y := range ys {
			if err := numericColumn(a.fn, f, y); err != nil {
				return nil, err
			}
		}

		fig := &chart.Figure{Kind: kind, Title: opts.title, XLabel: opts.label(x), YLabel: opts.label(ys[0])}
		if len(ys) > 1 {
			fig.YLabel = "value"
		}
		xi := f.Index(x)
		switch {
		case color != "":
			ci, yi := f.Index(color), f.Index(ys[0])
			var order []string
			series := map[string]*chart.Series{}
			for _, row := range f.Rows {
				v, ok := frame.ToFloat(row[yi])
				if !ok {
					continue
				}
				name := frame.FormatValue(row[ci])
				s, ok := series[name]
				if !ok {
					s = &chart.Series{Name: name}
					series[name] = s
					order = append(order, name)
				}
				s.Labels = append(s.Labels, frame.FormatValue(row[xi]))
				s.Values = append(s.Values, v)
			}
			for _, name := range order {
				fig.Series = append(fig.Series, *series[name])
			}
		default:
			for _, y := range ys {
				yi := f.Index(y)
				s := chart.Series{Name: opts.label(y)}
				for _, row := range f.Rows {
					v, ok := frame.ToFloat(row[yi])
					if !ok {
						continue
					}
					s.Labels = append(s.Labels, frame.FormatValue(row[xi]))
					s.Values = append(s.Values, v)
				}
				fig.Series = append(fig.Series, s)
			}
		}
		return fig, nil
	}
}

func numericColumn(fn string, f *frame.Frame, name string) error {
	c, _ := f.Column(name)
	if !isNumeric(c.Type) {
		return fmt.Errorf("%s() column %q is %s, not numeric", fn, name, c.Type)
	}
	return nil
}

// histogram counts rows per distinct x value, or sums y when given.
func histogram(a *args) (any, error) {
	opts, err := readPlotOptions(a)
	if err != nil {
		return nil, err
	}
	x, err := a.str(1, "x")
	if err != nil {
		return nil, err
	}
	y, err := a.optStr(2, "y")
	if err != nil {
		return nil, err
	}
	f := opts.f
	if err := requireColumns(f, x); err != nil {
		return nil, err
	}
	yLabel := "count"
	if y != "" {
		if err := requireColumns(f, y); err != nil {
			return nil, err
		}
		if err := numericColumn(a.fn, f, y); err != nil {
			return nil, err
		}
		yLabel = "sum of " + opts.label(y)
	}

	labels, values := accumulate(f, x, y)
	order := make([]int, len(labels.raw))
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(i, j int) int { return frame.Compare(labels.raw[i], labels.raw[j]) })

	s := chart.Series{Name: yLabel}
	for _, i := range order {
		s.Labels = append(s.Labels, labels.text[i])
		s.Values = append(s.Values, values[i])
	}
	return &chart.Figure{
		Kind:   chart.Histogram,
		Title:  opts.title,
		XLabel: opts.label(x),
		YLabel: yLabel,
		Series: []chart.Series{s},
	}, nil
}

func pie(a *args) (any, error) {
	opts, err := readPlotOptions(a)
	if err != nil {
		return nil, err
	}
	names, err := a.str(1, "names")
	if err != nil {
		return nil, err
	}
	values, err := a.optStr(2, "values")
	if err != nil {
		return nil, err
	}
	f := opts.f
	if err := requireColumns(f, names); err != nil {
		return nil, err
	}
	seriesName := "count"
	if values != "" {
		if err := requireColumns(f, values); err != nil {
			return nil, err
		}
		if err := numericColumn(a.fn, f, values); err != nil {
			return nil, err
		}
		seriesName = opts.label(values)
	}
	labels, totals := accumulate(f, names, values)
	return &chart.Figure{
		Kind:   chart.Pie,
		Title:  opts.title,
		XLabel: opts.label(names),
		YLabel: seriesName,
		Series: []chart.Series{{Name: seriesName, Labels: labels.text, Values: totals}},
	}, nil
}

type labelSet struct {
	raw  []any
	text []string
}

// accumulate sums the value column (or counts rows when valueCol is empty)
// per distinct key, in first-seen order. Null keys are skipped.
func accumulate(f *frame.Frame, keyCol, valueCol string) (labelSet, []float64) {
	ki, vi := f.Index(keyCol), f.Index(valueCol)
	var labels labelSet
	var totals []float64
	pos := map[string]int{}
	for _, row := range f.Rows {
		k := row[ki]
		if k == nil {
			continue
		}
		add := 1.0
		if vi >= 0 {
			v, ok := frame.ToFloat(row[vi])
			if !ok {
				continue
			}
			add = v
		}
		key := typeName(k) + ":" + frame.FormatValue(k)
		i, ok := pos[key]
		if !ok {
			i = len(totals)
			pos[key] = i
			labels.raw = append(labels.raw, k)
			labels.text = append(labels.text, frame.FormatValue(k))
			totals = append(totals, 0)
		}
		totals[i] += add
	}
	return labels, totals
}

// figureMethod implements the plotly Figure methods generated code tends
// to call. Layout titles are applied; everything else is a no-op.
func figureMethod(fig *chart.Figure, name string, a *args) (any, error) {
	switch name {
	case "update_layout":
		for _, kw := range []struct {
			key string
			dst *string
		}{
			{"title", &fig.Title},
			{"title_text", &fig.Title},
			{"xaxis_title", &fig.XLabel},
			{"yaxis_title", &fig.YLabel},
		} {
			if v, ok := a.get(-1, kw.key); ok {
				if s, ok := v.(string); ok {
					*kw.dst = s
				}
			}
		}
		return fig, nil
	case "update_traces", "update_xaxes", "update_yaxes", "show":
		return fig, nil
	}
	return nil, fmt.Errorf("Figure has no method %q", name)
}
