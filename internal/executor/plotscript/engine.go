// Package plotscript is an in-process interpreter for a small, pandas- and
// plotly-flavoured chart language. Programs can only reach the table bound
// as df and the px and pd namespaces: there are no loops, imports (other
// than no-op imports of pandas and plotly), file, network or process access.
package plotscript

import (
	"context"
	"fmt"

	"github.com/sakif/usage-dashboard/internal/apperror"
	"github.com/sakif/usage-dashboard/internal/chart"
	"github.com/sakif/usage-dashboard/internal/executor"
	"github.com/sakif/usage-dashboard/internal/frame"
)

// Binding names exposed to programs.
const (
	DataVar    = "df"
	PlotAlias  = "px"
	TableAlias = "pd"
	OutputVar  = "fig"
)

// MaxStatements bounds program length.
const MaxStatements = 200

const vocabulary = `Statements are "name = expression" or a bare expression, one per line (or separated by ";"). Comments start with "#".
Values: strings, numbers, True, False, None, lists [a, b] and dicts {"k": v}.
DataFrame methods (each returns a new DataFrame):
  df.filter(column, op, value)  op is one of == != > >= < <= contains in
  df.groupby(col, ...)  then .sum(cols...) .mean(cols...) .min(col) .max(col) .count() .size() .nunique(col)
  df.groupby(col)["other"].sum()  aggregates only the selected column
  df.sort_values(by, ascending=True)  df.head(n=5)  df.tail(n=5)  df.nlargest(n, col)  df.nsmallest(n, col)
  df.dropna(cols...)  df.select(cols...)  df[["a", "b"]]  df["a"]  df.rename(old="new")  df.rename(columns={"old": "new"})
  df.unique(col)  df.value_counts(col)  df.reset_index(name="count")
Namespaces:
  pd.concat([df1, df2])  pd.value_counts(df, col)
  px.bar / px.line / px.scatter / px.area(df, x="col", y="col" or ["a", "b"], color="col", title="...", labels={"col": "Label"}, orientation="h")
  px.histogram(df, x="col", y="col"?)  px.pie(df, names="col", values="col"?, title="...")
  fig.update_layout(title="...", xaxis_title="...", yaxis_title="...")
There are no loops, functions, imports or item assignment.`

var pxNamespace = &namespace{name: PlotAlias, funcs: map[string]builtin{
	"bar":       plotXY(chart.Bar),
	"line":      plotXY(chart.Line),
	"scatter":   plotXY(chart.Scatter),
	"area":      plotXY(chart.Area),
	"histogram": histogram,
	"pie":       pie,
}}

var pdNamespace = &namespace{name: TableAlias, funcs: map[string]builtin{
	"concat":       concat,
	"value_counts": pdValueCounts,
}}

// Engine runs plotscript programs.
type Engine struct{}

func New() *Engine { return &Engine{} }

func (e *Engine) Contract() executor.Contract {
	return executor.Contract{
		Language:   "plotscript",
		DataVar:    DataVar,
		PlotAlias:  PlotAlias,
		TableAlias: TableAlias,
		OutputVar:  OutputVar,
		Vocabulary: vocabulary,
	}
}

// Execute runs code with df bound to table. It returns (nil, nil) when the
// program never binds fig (or binds it to None).
func (e *Engine) Execute(ctx context.Context, code string, table *frame.Frame) (*chart.Figure, error) {
	stmts, err := parse(code)
	if err != nil {
		return nil, apperror.Execution(err.Error())
	}
	if len(stmts) > MaxStatements {
		return nil, apperror.Execution(fmt.Sprintf("program has %d statements, the limit is %d", len(stmts), MaxStatements))
	}

	rt := newRuntime(ctx, table)
	if err := rt.run(stmts); err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		return nil, apperror.Execution(err.Error())
	}

	out, ok := rt.vars[OutputVar]
	if !ok || out == nil {
		return nil, nil
	}
	fig, ok := out.(*chart.Figure)
	if !ok {
		return nil, apperror.Execution(fmt.Sprintf("%s is a %s, not a chart", OutputVar, typeName(out)))
	}
	return fig, nil
}
