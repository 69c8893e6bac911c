package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sakif/usage-dashboard/internal/apperror"
	"github.com/sakif/usage-dashboard/internal/chart"
	"github.com/sakif/usage-dashboard/internal/executor"
	"github.com/sakif/usage-dashboard/internal/frame"
	"github.com/sakif/usage-dashboard/internal/llm"
	"github.com/sakif/usage-dashboard/internal/metrics"
	"github.com/sakif/usage-dashboard/internal/model"
	"github.com/sakif/usage-dashboard/internal/prompt"
	"github.com/sakif/usage-dashboard/internal/repository"
	"github.com/sakif/usage-dashboard/internal/schema"
	"github.com/sakif/usage-dashboard/internal/session"
)

// Validation limits for chart requests.
const (
	MaxRequestLength    = 2000
	MaxFeedbackLength   = 2000
	MaxCodeLength       = 100000
	MaxChartNameLength  = 100
	DefaultChartListLim = 20
	MaxChartListLimit   = 100
)

// CodeGenerator turns a prompt into code. *llm.Client implements it.
type CodeGenerator interface {
	Generate(ctx context.Context, backend llm.Backend, p prompt.Prompt) (string, error)
	Backends() []llm.BackendStatus
}

// ChartService runs the generate, execute and refine loop on the session's
// current chart and keeps a library of saved charts.
type ChartService struct {
	sess       *session.Session
	gen        CodeGenerator
	engine     executor.Engine
	engineName string
	charts     repository.ChartRepository
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

// NewChartService wires the service. engineName labels render metrics;
// m may be nil.
func NewChartService(
	sess *session.Session,
	gen CodeGenerator,
	engine executor.Engine,
	engineName string,
	charts repository.ChartRepository,
	m *metrics.Metrics,
	logger *slog.Logger,
) *ChartService {
	return &ChartService{
		sess:       sess,
		gen:        gen,
		engine:     engine,
		engineName: engineName,
		charts:     charts,
		metrics:    m,
		logger:     logger,
	}
}

// GenerateInput is a fresh chart request.
type GenerateInput struct {
	Table   string       `json:"table"`
	Backend string       `json:"backend"`
	Request string       `json:"request"`
	Filter  model.Filter `json:"-"`
}

// ChartResult is the current chart plus a status summary: rendered,
// no_chart, failed or idle.
type ChartResult struct {
	session.ChartState
	Outcome string `json:"status"`
}

func resultOf(c session.ChartState) *ChartResult {
	return &ChartResult{ChartState: c, Outcome: c.Status()}
}

// EngineName reports which executor runs generated code.
func (s *ChartService) EngineName() string { return s.engineName }

// Backends lists the generation backends and whether each has a credential.
func (s *ChartService) Backends() []llm.BackendStatus {
	return s.gen.Backends()
}

// Generate asks the backend for code for a new request, runs it and makes
// the result the current chart. A generation failure is returned as an error
// and leaves the previous chart in place. An execution failure is not: it is
// reported in the result's Error and the broken code is dropped so it is not
// re-run.
func (s *ChartService) Generate(ctx context.Context, in GenerateInput) (*ChartResult, error) {
	request := strings.TrimSpace(in.Request)
	if request == "" {
		return nil, apperror.ValidationFailed("request", "please enter a request for the visualization")
	}
	if len(request) > MaxRequestLength {
		return nil, apperror.ValidationFailed("request",
			fmt.Sprintf("request must be %d characters or less", MaxRequestLength))
	}
	kind, err := schema.ParseKind(in.Table)
	if err != nil {
		return nil, apperror.ValidationFailed("table", err.Error())
	}
	backend, err := llm.ParseBackend(in.Backend)
	if err != nil {
		return nil, err
	}

	var result *ChartResult
	err = s.sess.Do(func(st *session.State) error {
		table := st.Data.View(in.Filter).Frame(kind)
		code, err := s.generate(ctx, backend, prompt.Request{
			Text:     request,
			Table:    table,
			Contract: s.engine.Contract(),
		})
		if err != nil {
			return err
		}

		next := session.ChartState{
			Table:     kind,
			Backend:   backend,
			Request:   request,
			Filter:    in.Filter,
			Code:      code,
			UpdatedAt: time.Now().UTC(),
		}
		if err := s.execute(ctx, &next, table); err != nil {
			return err
		}
		st.Chart = next
		result = resultOf(next)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("chart generated",
		slog.String("table", string(kind)),
		slog.String("backend", string(backend)),
		slog.String("status", result.Outcome),
	)
	return result, nil
}

// Refine asks the backend to revise the current chart's code according to
// feedback. When generation fails the previous chart is kept.
func (s *ChartService) Refine(ctx context.Context, feedback string) (*ChartResult, error) {
	feedback = strings.TrimSpace(feedback)
	if feedback == "" {
		return nil, apperror.ValidationFailed("feedback", "please enter your feedback before regenerating")
	}
	if len(feedback) > MaxFeedbackLength {
		return nil, apperror.ValidationFailed("feedback",
			fmt.Sprintf("feedback must be %d characters or less", MaxFeedbackLength))
	}

	var result *ChartResult
	err := s.sess.Do(func(st *session.State) error {
		current := st.Chart
		if current.Code == "" {
			return apperror.ValidationFailed("feedback", "there is no generated chart to refine")
		}

		table := st.Data.View(current.Filter).Frame(current.Table)
		code, err := s.generate(ctx, current.Backend, prompt.Request{
			Text:      current.Request,
			Table:     table,
			Contract:  s.engine.Contract(),
			PriorCode: current.Code,
			Feedback:  feedback,
		})
		if err != nil {
			return err
		}

		st.Chart.Code = code
		st.Chart.Feedback = feedback
		st.Chart.UpdatedAt = time.Now().UTC()
		if err := s.execute(ctx, &st.Chart, table); err != nil {
			return err
		}
		result = resultOf(st.Chart)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("chart refined",
		slog.String("table", string(result.Table)),
		slog.String("status", result.Outcome),
	)
	return result, nil
}

// Current returns the chart being worked on.
func (s *ChartService) Current() *ChartResult {
	return resultOf(s.sess.Snapshot().Chart)
}

// Clear forgets the current request, code and chart.
func (s *ChartService) Clear() {
	_ = s.sess.Do(func(st *session.State) error {
		st.ClearChart()
		return nil
	})
	s.logger.Info("chart session cleared")
}

func (s *ChartService) generate(ctx context.Context, backend llm.Backend, req prompt.Request) (string, error) {
	start := time.Now()
	code, err := s.gen.Generate(ctx, backend, prompt.Build(req))
	s.metrics.ObserveGeneration(string(backend), err, time.Since(start))
	if err != nil {
		return "", err
	}
	if len(code) > MaxCodeLength {
		return "", apperror.Generation(backend.Label(),
			fmt.Errorf("generated code is longer than %d characters", MaxCodeLength))
	}
	return code, nil
}

// execute runs c.Code against table and records the outcome on c. Only
// cancellation is returned as an error.
func (s *ChartService) execute(ctx context.Context, c *session.ChartState, table *frame.Frame) error {
	fig, err := executor.Render(ctx, s.engine, c.Code, table)
	s.metrics.ObserveRender(s.engineName, err, fig != nil)
	switch {
	case err == nil:
		c.Figure = fig
		c.Error = ""
		return nil
	case errors.Is(err, apperror.ErrExecution):
		s.logger.Warn("generated code failed",
			slog.String("table", string(c.Table)),
			slog.String("error", err.Error()),
		)
		c.Figure = nil
		c.Code = ""
		c.Error = "an error occurred while executing the generated code: " + err.Error()
		return nil
	default:
		return err
	}
}

// RenderCode runs code against the filtered table without touching the
// current chart. Execution failures are returned as errors.
func (s *ChartService) RenderCode(ctx context.Context, kind schema.Kind, f model.Filter, code string) (*chart.Figure, error) {
	if _, err := schema.ParseKind(string(kind)); err != nil {
		return nil, apperror.ValidationFailed("table", err.Error())
	}
	if strings.TrimSpace(code) == "" {
		return nil, apperror.ValidationFailed("code", "code is required")
	}
	if len(code) > MaxCodeLength {
		return nil, apperror.ValidationFailed("code",
			fmt.Sprintf("code must be %d characters or less", MaxCodeLength))
	}

	var table *frame.Frame
	_ = s.sess.Do(func(st *session.State) error {
		table = st.Data.View(f).Frame(kind)
		return nil
	})
	fig, err := executor.Render(ctx, s.engine, code, table)
	s.metrics.ObserveRender(s.engineName, err, fig != nil)
	return fig, err
}

// Save stores the current chart under name.
func (s *ChartService) Save(ctx context.Context, name string) (*model.SavedChart, error) {
	name, err := chartName(name)
	if err != nil {
		return nil, err
	}

	current := s.sess.Snapshot().Chart
	if current.Code == "" {
		return nil, apperror.ValidationFailed("code", "there is no generated chart to save")
	}

	saved := &model.SavedChart{
		Name:     name,
		Table:    current.Table,
		Backend:  string(current.Backend),
		Request:  current.Request,
		Code:     current.Code,
		Feedback: current.Feedback,
	}
	if err := s.charts.Create(ctx, saved); err != nil {
		s.logger.Error("failed to save chart",
			slog.String("name", name),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("saving chart: %w", err)
	}

	s.logger.Info("chart saved",
		slog.String("id", saved.ID),
		slog.String("name", saved.Name),
	)
	return saved, nil
}

// Rename changes a saved chart's name. Its code and request are untouched.
func (s *ChartService) Rename(ctx context.Context, id, name string) (*model.SavedChart, error) {
	name, err := chartName(name)
	if err != nil {
		return nil, err
	}
	saved, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	saved.Name = name
	if err := s.charts.Update(ctx, saved); err != nil {
		return nil, fmt.Errorf("renaming chart: %w", err)
	}
	s.logger.Info("chart renamed",
		slog.String("id", saved.ID),
		slog.String("name", saved.Name),
	)
	return saved, nil
}

func chartName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", apperror.ValidationFailed("name", "chart name is required")
	}
	if len(name) > MaxChartNameLength {
		return "", apperror.ValidationFailed("name",
			fmt.Sprintf("chart name must be %d characters or less", MaxChartNameLength))
	}
	return name, nil
}

// List returns saved charts newest first, optionally for one table.
func (s *ChartService) List(ctx context.Context, table string, limit, offset int) ([]model.SavedChart, error) {
	var kind schema.Kind
	if table != "" {
		k, err := schema.ParseKind(table)
		if err != nil {
			return nil, apperror.ValidationFailed("table", err.Error())
		}
		kind = k
	}
	if limit <= 0 {
		limit = DefaultChartListLim
	}
	limit = min(limit, MaxChartListLimit)
	offset = max(offset, 0)

	charts, err := s.charts.List(ctx, repository.ListOptions{Limit: limit, Offset: offset, Table: kind})
	if err != nil {
		s.logger.Error("failed to list charts", slog.String("error", err.Error()))
		return nil, fmt.Errorf("listing charts: %w", err)
	}
	return charts, nil
}

// Get returns one saved chart.
func (s *ChartService) Get(ctx context.Context, id string) (*model.SavedChart, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, apperror.ValidationFailed("id", "chart ID is required")
	}
	return s.charts.GetByID(ctx, id)
}

// Delete removes one saved chart.
func (s *ChartService) Delete(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return apperror.ValidationFailed("id", "chart ID is required")
	}
	if err := s.charts.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("chart deleted", slog.String("id", id))
	return nil
}

// ReplayResult is a saved chart re-rendered on the current data.
type ReplayResult struct {
	Chart  *model.SavedChart `json:"chart"`
	Figure *chart.Figure     `json:"figure"`
}

// Replay re-runs a saved chart's code on the current data. No backend is
// called. A nil Figure means the code ran without producing a chart.
func (s *ChartService) Replay(ctx context.Context, id string, f model.Filter) (*ReplayResult, error) {
	saved, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	fig, err := s.RenderCode(ctx, saved.Table, f, saved.Code)
	if err != nil {
		return nil, err
	}
	return &ReplayResult{Chart: saved, Figure: fig}, nil
}
