package executor

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/usage-dashboard/internal/apperror"
	"github.com/sakif/usage-dashboard/internal/chart"
	"github.com/sakif/usage-dashboard/internal/frame"
	"github.com/sakif/usage-dashboard/internal/schema"
)

func TestSanitize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "  fig = px.bar(df)  ", "fig = px.bar(df)"},
		{"python fence", "```python\nfig = px.bar(df)\n```", "fig = px.bar(df)"},
		{"bare fence", "```\nx = 1\nfig = px.line(df)\n```\n", "x = 1\nfig = px.line(df)"},
		{"plotscript fence", "\n```plotscript\nfig = px.pie(df)\n```", "fig = px.pie(df)"},
		{"only opening fence", "```python\nfig = px.bar(df)", "fig = px.bar(df)"},
		{"empty", "   ", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Sanitize(tt.in))
		})
	}
}

type stubEngine struct {
	gotCode string
	fig     *chart.Figure
	err     error
	mutate  bool
	panics  bool
}

func (s *stubEngine) Contract() Contract { return Contract{DataVar: "df"} }

func (s *stubEngine) Execute(_ context.Context, code string, table *frame.Frame) (*chart.Figure, error) {
	s.gotCode = code
	if s.panics {
		var rows [][]any
		_ = rows[len(code)]
	}
	if s.mutate && table.Len() > 0 {
		table.Rows[0][0] = "mutated"
	}
	return s.fig, s.err
}

func table() *frame.Frame {
	f := frame.New([]schema.Column{{Name: "email", Type: schema.TypeString}})
	f.Append("a@x.com")
	return f
}

func TestRenderPassesSanitizedCodeOnCopy(t *testing.T) {
	eng := &stubEngine{mutate: true, fig: &chart.Figure{Kind: chart.Bar}}
	tbl := table()

	fig, err := Render(context.Background(), eng, "```python\nfig = 1\n```", tbl)
	require.NoError(t, err)
	assert.NotNil(t, fig)
	assert.Equal(t, "fig = 1", eng.gotCode)
	assert.Equal(t, "a@x.com", tbl.Rows[0][0])
}

func TestRenderNoChart(t *testing.T) {
	fig, err := Render(context.Background(), &stubEngine{}, "x = 1", table())
	assert.NoError(t, err)
	assert.Nil(t, fig)

	fig, err = Render(context.Background(), &stubEngine{}, "```\n```", table())
	assert.NoError(t, err)
	assert.Nil(t, fig)
}

func TestRenderWrapsEngineErrors(t *testing.T) {
	_, err := Render(context.Background(), &stubEngine{err: errors.New("boom")}, "x", table())
	assert.True(t, errors.Is(err, apperror.ErrExecution))
	assert.EqualError(t, err, "boom")

	bad := &chart.Figure{Kind: chart.Bar, Series: []chart.Series{{Labels: []string{"a"}}}}
	_, err = Render(context.Background(), &stubEngine{fig: bad}, "x", table())
	assert.True(t, errors.Is(err, apperror.ErrExecution))
}

func TestRenderRecoversEnginePanic(t *testing.T) {
	var fig *chart.Figure
	var err error
	require.NotPanics(t, func() {
		fig, err = Render(context.Background(), &stubEngine{panics: true}, "fig = df[99]", table())
	})
	assert.Nil(t, fig)
	require.True(t, errors.Is(err, apperror.ErrExecution))
	assert.Contains(t, err.Error(), "engine panicked")
	assert.Contains(t, err.Error(), "index out of range")
}
