// Package executor runs model-generated chart code against a table.
//
// Generated code is untrusted. Every Engine exposes exactly three bindings
// (the table, a plotting namespace and a tabular namespace) and reads the
// chart back from one output variable. The in-process plotscript engine has
// no host capabilities to reach; the docker engine relies on container
// isolation. A prompt-injected or compromised backend can still produce any
// code that the reachable vocabulary allows.
package executor

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sakif/usage-dashboard/internal/apperror"
	"github.com/sakif/usage-dashboard/internal/chart"
	"github.com/sakif/usage-dashboard/internal/frame"
)

// Contract describes the execution environment to the code generator.
type Contract struct {
	// Language names the dialect, also accepted as a code fence tag.
	Language   string
	DataVar    string
	PlotAlias  string
	TableAlias string
	OutputVar  string
	// Vocabulary documents the functions and methods available.
	Vocabulary string
}

// Engine executes sanitized code. A nil figure with a nil error means the
// code ran without binding the output variable.
type Engine interface {
	Contract() Contract
	Execute(ctx context.Context, code string, table *frame.Frame) (*chart.Figure, error)
}

const fence = "```"

// Sanitize strips surrounding whitespace and one pair of code fences,
// including an optional language tag on the opening fence.
func Sanitize(code string) string {
	code = strings.TrimSpace(code)
	if strings.HasPrefix(code, fence) {
		if nl := strings.IndexByte(code, '\n'); nl >= 0 {
			code = code[nl+1:]
		} else {
			code = strings.TrimPrefix(code, fence)
		}
	}
	code = strings.TrimSpace(code)
	code = strings.TrimSuffix(code, fence)
	return strings.TrimSpace(code)
}

// Render sanitizes code and runs it on a copy of table. Failures are
// reported as execution errors; the caller's table is never modified.
func Render(ctx context.Context, engine Engine, code string, table *frame.Frame) (*chart.Figure, error) {
	code = Sanitize(code)
	if code == "" {
		return nil, nil
	}

	fig, err := execute(ctx, engine, code, table.Clone())
	if err != nil {
		if errors.Is(err, apperror.ErrExecution) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, apperror.Execution(err.Error())
	}
	if fig == nil {
		return nil, nil
	}
	if err := fig.Validate(); err != nil {
		return nil, apperror.Execution("invalid chart: " + err.Error())
	}
	return fig, nil
}

// execute converts a panic inside the engine into an execution error.
func execute(ctx context.Context, engine Engine, code string, table *frame.Frame) (fig *chart.Figure, err error) {
	defer func() {
		if r := recover(); r != nil {
			fig, err = nil, apperror.Execution(fmt.Sprintf("engine panicked: %v", r))
		}
	}()
	return engine.Execute(ctx, code, table)
}
