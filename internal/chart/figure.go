// Package chart holds the engine-neutral chart result produced by executing
// generated code, and renders it for terminals.
package chart

import "fmt"

// Kind is the chart type.
type Kind string

const (
	Bar       Kind = "bar"
	Line      Kind = "line"
	Scatter   Kind = "scatter"
	Area      Kind = "area"
	Histogram Kind = "histogram"
	Pie       Kind = "pie"
)

// ParseKind maps a plotting function name to a Kind.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(s); k {
	case Bar, Line, Scatter, Area, Histogram, Pie:
		return k, nil
	}
	return "", fmt.Errorf("unknown chart type %q", s)
}

// Series is one trace: parallel labels (x values or pie slice names) and
// numeric values.
type Series struct {
	Name   string    `json:"name"`
	Labels []string  `json:"labels"`
	Values []float64 `json:"values"`
}

// Figure is a rendered chart specification.
type Figure struct {
	Kind   Kind     `json:"kind"`
	Title  string   `json:"title,omitempty"`
	XLabel string   `json:"xLabel,omitempty"`
	YLabel string   `json:"yLabel,omitempty"`
	Series []Series `json:"series"`
}

// Points counts data points across all series.
func (f *Figure) Points() int {
	n := 0
	for _, s := range f.Series {
		n += len(s.Values)
	}
	return n
}

// Validate checks that every series has matching labels and values.
func (f *Figure) Validate() error {
	if _, err := ParseKind(string(f.Kind)); err != nil {
		return err
	}
	for _, s := range f.Series {
		if len(s.Labels) != len(s.Values) {
			return fmt.Errorf("series %q has %d labels and %d values", s.Name, len(s.Labels), len(s.Values))
		}
	}
	return nil
}
