// Package app is the composition root shared by the HTTP server and the
// CLI: it turns a config.Config into loaded master tables, a session and
// the services that operate on them.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/sakif/usage-dashboard/internal/config"
	"github.com/sakif/usage-dashboard/internal/executor"
	"github.com/sakif/usage-dashboard/internal/executor/docker"
	"github.com/sakif/usage-dashboard/internal/executor/plotscript"
	"github.com/sakif/usage-dashboard/internal/ingest"
	"github.com/sakif/usage-dashboard/internal/llm"
	"github.com/sakif/usage-dashboard/internal/metrics"
	sqliteRepo "github.com/sakif/usage-dashboard/internal/repository/sqlite"
	"github.com/sakif/usage-dashboard/internal/service"
	"github.com/sakif/usage-dashboard/internal/session"
	"github.com/sakif/usage-dashboard/internal/store"
)

// App owns every long-lived dependency. Close releases them.
type App struct {
	Config    config.Config
	Store     *store.Store
	Session   *session.Session
	LLM       *llm.Client
	Engine    executor.Engine
	Dashboard *service.DashboardService
	Charts    *service.ChartService
	Metrics   *metrics.Metrics

	db     *sqliteRepo.DB
	docker *docker.Engine
	logger *slog.Logger
}

// New loads the master tables and wires the services. m may be nil (the
// CLI does not export metrics).
//
// DEPENDENCY CHAIN:
//
//	store.Load → session.New → DashboardService
//	llm.Client + executor.Engine + sqlite.DB → ChartService
//
// Services receive interfaces where a test wants a fake (TableStore,
// CodeGenerator, ChartRepository) and concrete types otherwise.
func New(ctx context.Context, cfg config.Config, m *metrics.Metrics, logger *slog.Logger) (*App, error) {
	a := &App{Config: cfg, Metrics: m, logger: logger}

	a.Store = store.New(cfg.DataDir, logger)
	data, err := a.Store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading master tables: %w", err)
	}
	a.Session = session.New(data)

	pmEmails, err := loadPMEmails(cfg.PMEmailsFile, logger)
	if err != nil {
		return nil, err
	}
	a.Dashboard = service.NewDashboardService(a.Session, a.Store, pmEmails, m, logger)

	if dir := filepath.Dir(cfg.DBPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory %s: %w", dir, err)
		}
	}
	a.db, err = sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	a.LLM = llm.NewClient(cfg.LLM, logger)
	engineName := a.setupEngine(ctx)
	a.Charts = service.NewChartService(a.Session, a.LLM, a.Engine, engineName, a.db, m, logger)

	for _, b := range a.LLM.Backends() {
		if !b.Configured {
			logger.Warn("generation backend has no credential",
				slog.String("backend", string(b.ID)),
			)
		}
	}
	return a, nil
}

// setupEngine picks the executor. The docker engine is optional: when the
// daemon or image is unavailable the in-process interpreter is used.
func (a *App) setupEngine(ctx context.Context) string {
	if a.Config.Executor == config.ExecutorDocker {
		eng, err := docker.New(ctx, a.Config.Sandbox, a.logger)
		if err == nil {
			a.docker = eng
			a.Engine = eng
			return config.ExecutorDocker
		}
		a.logger.Warn("docker executor unavailable, falling back to plotscript",
			slog.String("error", err.Error()),
		)
	}
	a.Engine = plotscript.New()
	return config.ExecutorPlotscript
}

func loadPMEmails(path string, logger *slog.Logger) ([]string, error) {
	if path == "" {
		return nil, nil
	}
	emails, err := ingest.LoadEmails(path)
	if err != nil {
		return nil, fmt.Errorf("loading PM email list: %w", err)
	}
	logger.Info("PM email list loaded", slog.Int("emails", len(emails)))
	return emails, nil
}

// Close stops the container pool and closes the database.
func (a *App) Close() error {
	var errs []error
	if a.docker != nil {
		errs = append(errs, a.docker.Close())
	}
	if a.db != nil {
		errs = append(errs, a.db.Close())
	}
	return errors.Join(errs...)
}
