// Package store persists the three master tables as parquet files in one
// directory. It is the only code that touches those files.
package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/parquet-go/parquet-go"

	"github.com/sakif/usage-dashboard/internal/apperror"
	"github.com/sakif/usage-dashboard/internal/model"
)

// File names of the master tables inside the data directory.
const (
	UsersFile  = "master_users.parquet"
	ModelsFile = "master_models.parquet"
	ToolsFile  = "master_tools.parquet"
)

var files = []string{UsersFile, ModelsFile, ToolsFile}

// Store reads and writes the master tables under Dir.
type Store struct {
	dir    string
	logger *slog.Logger
}

func New(dir string, logger *slog.Logger) *Store {
	return &Store{dir: dir, logger: logger}
}

// Dir is the data directory.
func (s *Store) Dir() string { return s.dir }

// Load reads the three tables. When none of the files exist yet it returns
// an empty dataset; when only some exist it fails with a data integrity
// error rather than guess.
func (s *Store) Load(ctx context.Context) (model.Dataset, error) {
	var present []string
	for _, name := range files {
		_, err := os.Stat(s.path(name))
		switch {
		case err == nil:
			present = append(present, name)
		case !errors.Is(err, fs.ErrNotExist):
			return model.Dataset{}, fmt.Errorf("store: checking %s: %w", name, err)
		}
	}
	if len(present) == 0 {
		s.logger.Info("no master tables found, starting empty", slog.String("dir", s.dir))
		return model.Dataset{}, nil
	}
	if len(present) != len(files) {
		return model.Dataset{}, apperror.DataIntegrity(
			fmt.Sprintf("incomplete master tables in %s: found only %v", s.dir, present), nil)
	}
	if err := ctx.Err(); err != nil {
		return model.Dataset{}, err
	}

	users, err := parquet.ReadFile[userRow](s.path(UsersFile))
	if err != nil {
		return model.Dataset{}, apperror.DataIntegrity("reading "+UsersFile, err)
	}
	models, err := parquet.ReadFile[modelRow](s.path(ModelsFile))
	if err != nil {
		return model.Dataset{}, apperror.DataIntegrity("reading "+ModelsFile, err)
	}
	tools, err := parquet.ReadFile[toolRow](s.path(ToolsFile))
	if err != nil {
		return model.Dataset{}, apperror.DataIntegrity("reading "+ToolsFile, err)
	}

	ds, err := fromRows(users, models, tools)
	if err != nil {
		return model.Dataset{}, apperror.DataIntegrity("decoding master tables", err)
	}
	s.logger.Info("master tables loaded",
		slog.Int("users", len(ds.Users)),
		slog.Int("models", len(ds.Models)),
		slog.Int("tools", len(ds.Tools)),
	)
	return ds, nil
}

// Save writes all three tables. Each is written to a temp file first and
// the three are renamed into place only once all writes succeed. A failure
// after the first rename leaves the set inconsistent and is reported as a
// data integrity error.
func (s *Store) Save(ctx context.Context, ds model.Dataset) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("store: creating %s: %w", s.dir, err)
	}

	users, models, tools := toRows(ds)
	var temps []string
	cleanup := func() {
		for _, t := range temps {
			_ = os.Remove(t)
		}
	}

	writes := []func(string) error{
		func(p string) error { return parquet.WriteFile(p, users) },
		func(p string) error { return parquet.WriteFile(p, models) },
		func(p string) error { return parquet.WriteFile(p, tools) },
	}
	for i, name := range files {
		tmp, err := os.CreateTemp(s.dir, "."+name+"-*")
		if err != nil {
			cleanup()
			return fmt.Errorf("store: creating temp file for %s: %w", name, err)
		}
		temps = append(temps, tmp.Name())
		_ = tmp.Close()
		if err := writes[i](tmp.Name()); err != nil {
			cleanup()
			return fmt.Errorf("store: writing %s: %w", name, err)
		}
	}

	for i, name := range files {
		if err := os.Rename(temps[i], s.path(name)); err != nil {
			cleanup()
			if i == 0 {
				return fmt.Errorf("store: replacing %s: %w", name, err)
			}
			return apperror.DataIntegrity(
				fmt.Sprintf("master tables partially written: replacing %s failed", name), err)
		}
	}

	s.logger.Info("master tables saved",
		slog.Int("users", len(ds.Users)),
		slog.Int("models", len(ds.Models)),
		slog.Int("tools", len(ds.Tools)),
	)
	return nil
}

// DeletePeriod removes every row for weekStart from all three tables and
// persists the result. The returned dataset is only valid when err is nil.
func (s *Store) DeletePeriod(ctx context.Context, ds model.Dataset, weekStart model.Date) (model.Dataset, model.DeleteResult, error) {
	out, res := ds.DeletePeriod(weekStart)
	if err := s.Save(ctx, out); err != nil {
		return ds, model.DeleteResult{}, err
	}
	s.logger.Info("report period deleted",
		slog.String("week_start", weekStart.String()),
		slog.Int("rows", res.Total()),
	)
	return out, res, nil
}

func (s *Store) path(name string) string {
	return filepath.Join(s.dir, name)
}
