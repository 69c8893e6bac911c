package plotscript

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/usage-dashboard/internal/apperror"
	"github.com/sakif/usage-dashboard/internal/chart"
	"github.com/sakif/usage-dashboard/internal/frame"
	"github.com/sakif/usage-dashboard/internal/schema"
)

func day(d int) time.Time { return time.Date(2025, 5, d, 0, 0, 0, 0, time.UTC) }

func usageTable() *frame.Frame {
	f := frame.New([]schema.Column{
		{Name: "week_start", Type: schema.TypeDate},
		{Name: "email", Type: schema.TypeString},
		{Name: "model", Type: schema.TypeString},
		{Name: "messages", Type: schema.TypeInt},
	})
	f.Append(day(1), "a@x.com", "gpt-4o", int64(10))
	f.Append(day(1), "b@x.com", "o3", int64(5))
	f.Append(day(8), "a@x.com", "gpt-4o", int64(7))
	f.Append(day(8), "b@x.com", "gpt-4o", int64(1))
	f.Append(day(8), "c@x.com", "o3", nil)
	return f
}

func run(t *testing.T, code string) (*chart.Figure, error) {
	t.Helper()
	return New().Execute(context.Background(), code, usageTable())
}

func TestGroupedBarChart(t *testing.T) {
	fig, err := run(t, `
weekly = df.groupby("week_start").sum("messages")
fig = px.bar(weekly, x="week_start", y="messages", title="Messages per week")
`)
	require.NoError(t, err)
	require.NotNil(t, fig)

	assert.Equal(t, chart.Bar, fig.Kind)
	assert.Equal(t, "Messages per week", fig.Title)
	require.Len(t, fig.Series, 1)
	assert.Equal(t, []string{"2025-05-01", "2025-05-08"}, fig.Series[0].Labels)
	assert.Equal(t, []float64{15, 8}, fig.Series[0].Values)
}

func TestNoFigIsNotAnError(t *testing.T) {
	fig, err := run(t, `top = df.nlargest(2, "messages")`)
	assert.NoError(t, err)
	assert.Nil(t, fig)

	fig, err = run(t, "fig = None")
	assert.NoError(t, err)
	assert.Nil(t, fig)
}

func TestErrors(t *testing.T) {
	tests := []struct {
		name string
		code string
		want string
	}{
		{"unknown column", `fig = px.bar(df, x="foo", y="messages")`, `column "foo" does not exist (available: week_start, email, model, messages)`},
		{"unknown column in index", `x = df["nope"]`, `column "nope" does not exist`},
		{"unknown name", `fig = px.bar(data, x="email", y="messages")`, `name "data" is not defined`},
		{"disallowed import", "import os\nfig = None", `import of "os" is not allowed`},
		{"syntax error", `fig = px.bar(df, x="email"`, "syntax error"},
		{"not a chart", `fig = df.head()`, "fig is a DataFrame, not a chart"},
		{"unknown method", `x = df.to_csv("out.csv")`, `column "to_csv" does not exist`},
		{"unknown px function", `fig = px.treemap(df)`, `module px has no attribute "treemap"`},
		{"non numeric y", `fig = px.bar(df, x="messages", y="email")`, `column "email" is string, not numeric`},
		{"bad keyword", `x = df.head(rows=3)`, `unexpected keyword argument "rows"`},
		{"bad filter op", `x = df.filter("messages", "~", 1)`, "unknown operator"},
		{"loops are not supported", "for r in df: pass", `"for" is not supported`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, tt.code)
			require.Error(t, err)
			assert.True(t, errors.Is(err, apperror.ErrExecution), "got %v", err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestAllowedImportsAreIgnored(t *testing.T) {
	fig, err := run(t, "import plotly.express as px\nimport pandas as pd\nfig = px.pie(df, names=\"model\")")
	require.NoError(t, err)
	require.NotNil(t, fig)
	assert.Equal(t, []string{"gpt-4o", "o3"}, fig.Series[0].Labels)
	assert.Equal(t, []float64{3, 2}, fig.Series[0].Values)
}

func TestFilterAndPie(t *testing.T) {
	fig, err := run(t, `recent = df.filter("week_start", ">=", "2025-05-08"); fig = px.pie(recent, names="model", values="messages", title="Latest week")`)
	require.NoError(t, err)
	require.NotNil(t, fig)

	assert.Equal(t, chart.Pie, fig.Kind)
	// the only o3 row that week has a null message count
	assert.Equal(t, []string{"gpt-4o"}, fig.Series[0].Labels)
	assert.Equal(t, []float64{8}, fig.Series[0].Values)
}

func TestColorSplitsSeries(t *testing.T) {
	fig, err := run(t, `
per_model = df.groupby(["week_start", "model"]).sum()
fig = px.line(per_model, x="week_start", y="messages", color="model")
`)
	require.NoError(t, err)
	require.Len(t, fig.Series, 2)
	assert.Equal(t, "gpt-4o", fig.Series[0].Name)
	assert.Equal(t, []string{"2025-05-01", "2025-05-08"}, fig.Series[0].Labels)
	assert.Equal(t, []float64{10, 8}, fig.Series[0].Values)
	assert.Equal(t, "o3", fig.Series[1].Name)
	// week 8 has an o3 group whose sum of nulls is 0
	assert.Equal(t, []float64{5, 0}, fig.Series[1].Values)
}

func TestSelectedGroupColumn(t *testing.T) {
	fig, err := run(t, `
totals = df.groupby("email")["messages"].sum().sort_values("messages", ascending=False)
fig = px.bar(totals, x="email", y="messages")
fig.update_layout(title="Top users", yaxis_title="Messages")
`)
	require.NoError(t, err)
	assert.Equal(t, []string{"a@x.com", "b@x.com", "c@x.com"}, fig.Series[0].Labels)
	assert.Equal(t, []float64{17, 6, 0}, fig.Series[0].Values)
	assert.Equal(t, "Top users", fig.Title)
	assert.Equal(t, "Messages", fig.YLabel)
}

func TestSizeResetIndexAndHorizontalBar(t *testing.T) {
	fig, err := run(t, `
counts = df.groupby("model").size().reset_index(name="users")
fig = px.bar(counts, x="users", y="model", orientation="h", labels={"users": "Users"})
`)
	require.NoError(t, err)
	assert.Equal(t, []string{"gpt-4o", "o3"}, fig.Series[0].Labels)
	assert.Equal(t, []float64{3, 2}, fig.Series[0].Values)
	assert.Equal(t, "model", fig.XLabel)
	assert.Equal(t, "Users", fig.YLabel)
}

func TestHistogramCounts(t *testing.T) {
	fig, err := run(t, `fig = px.histogram(df, x="email")`)
	require.NoError(t, err)
	assert.Equal(t, chart.Histogram, fig.Kind)
	assert.Equal(t, []string{"a@x.com", "b@x.com", "c@x.com"}, fig.Series[0].Labels)
	assert.Equal(t, []float64{2, 2, 1}, fig.Series[0].Values)
}

func TestTableOperations(t *testing.T) {
	rt := newRuntime(context.Background(), usageTable())
	stmts, err := parse(`
clean = df.dropna("messages")
top = df.nlargest(1, "messages")
models = df.unique("model")
vc = df.value_counts("model")
both = pd.concat([df.head(1), df.tail(1).select("email")])
renamed = df.rename(messages="msgs")
means = df.groupby("model").mean("messages")
n = len(df)
`)
	require.NoError(t, err)
	require.NoError(t, rt.run(stmts))

	get := func(name string) *frame.Frame { return rt.vars[name].(*table).f }
	assert.Equal(t, 4, get("clean").Len())
	assert.Equal(t, int64(10), get("top").Value(0, "messages"))
	assert.Equal(t, 2, get("models").Len())
	assert.Equal(t, []any{"gpt-4o", int64(3)}, get("vc").Rows[0])

	both := get("both")
	require.Equal(t, 2, both.Len())
	assert.Nil(t, both.Value(1, "messages"), "missing columns are null after concat")
	assert.Equal(t, "c@x.com", both.Value(1, "email"))

	assert.True(t, get("renamed").Has("msgs"))
	assert.InDelta(t, 6.0, get("means").Value(0, "messages"), 1e-9)
	assert.InDelta(t, 5.0, get("means").Value(1, "messages"), 1e-9)
	assert.Equal(t, 2, get("means").Len())
	assert.Equal(t, int64(5), rt.vars["n"])
}

func TestSortPutsNullsLast(t *testing.T) {
	rt := newRuntime(context.Background(), usageTable())
	stmts, err := parse(`asc = df.sort_values("messages")` + "\n" + `desc = df.sort_values(["messages"], ascending=[False])`)
	require.NoError(t, err)
	require.NoError(t, rt.run(stmts))

	asc := rt.vars["asc"].(*table).f
	desc := rt.vars["desc"].(*table).f
	assert.Equal(t, int64(1), asc.Value(0, "messages"))
	assert.Nil(t, asc.Value(4, "messages"))
	assert.Equal(t, int64(10), desc.Value(0, "messages"))
	assert.Nil(t, desc.Value(4, "messages"))
}

func TestStatementLimit(t *testing.T) {
	code := strings.Repeat("x = 1\n", MaxStatements+1)
	_, err := run(t, code)
	assert.True(t, errors.Is(err, apperror.ErrExecution))
	assert.Contains(t, err.Error(), "limit")
}

func TestCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New().Execute(ctx, "fig = px.pie(df, names=\"model\")", usageTable())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestContract(t *testing.T) {
	c := New().Contract()
	assert.Equal(t, "df", c.DataVar)
	assert.Equal(t, "px", c.PlotAlias)
	assert.Equal(t, "pd", c.TableAlias)
	assert.Equal(t, "fig", c.OutputVar)
	assert.Contains(t, c.Vocabulary, "px.bar")
}

func TestInputTableIsNotModified(t *testing.T) {
	tbl := usageTable()
	_, err := New().Execute(context.Background(), `x = df.rename(messages="m").sort_values("m")`, tbl)
	require.NoError(t, err)
	assert.Equal(t, "messages", tbl.Columns[3].Name)
	assert.Equal(t, int64(10), tbl.Rows[0][3])
}
