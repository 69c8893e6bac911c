package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/usage-dashboard/internal/apperror"
	"github.com/sakif/usage-dashboard/internal/model"
	"github.com/sakif/usage-dashboard/internal/repository"
	"github.com/sakif/usage-dashboard/internal/schema"
)

// Page size bounds for List.
const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

var _ repository.ChartRepository = (*DB)(nil)

const chartColumns = `id, name, table_kind, backend, request, code, feedback, created_at, updated_at`

// Create inserts chart, assigning its ID and timestamps in place.
//
// xid ids are 20 characters, URL-safe and sort by creation time.
func (db *DB) Create(ctx context.Context, chart *model.SavedChart) error {
	chart.ID = xid.New().String()

	now := time.Now().UTC()
	chart.CreatedAt = now
	chart.UpdatedAt = now

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO saved_charts (`+chartColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		chart.ID,
		chart.Name,
		string(chart.Table),
		chart.Backend,
		chart.Request,
		chart.Code,
		chart.Feedback,
		chart.CreatedAt,
		chart.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating chart: %w", err)
	}
	return nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanChart(s rowScanner) (model.SavedChart, error) {
	var c model.SavedChart
	var table string
	err := s.Scan(&c.ID, &c.Name, &table, &c.Backend, &c.Request, &c.Code, &c.Feedback,
		&c.CreatedAt, &c.UpdatedAt)
	c.Table = schema.Kind(table)
	return c, err
}

func (db *DB) GetByID(ctx context.Context, id string) (*model.SavedChart, error) {
	c, err := scanChart(db.conn.QueryRowContext(ctx,
		`SELECT `+chartColumns+` FROM saved_charts WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("chart", id)
		}
		return nil, fmt.Errorf("sqlite: getting chart %s: %w", id, err)
	}
	return &c, nil
}

// List returns charts newest first. The limit is clamped to
// [1, MaxListLimit] with DefaultListLimit for zero.
func (db *DB) List(ctx context.Context, opts repository.ListOptions) ([]model.SavedChart, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	offset := max(opts.Offset, 0)

	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+chartColumns+`
		 FROM saved_charts
		 WHERE (? = '' OR table_kind = ?)
		 ORDER BY created_at DESC, id DESC
		 LIMIT ? OFFSET ?`,
		string(opts.Table), string(opts.Table), limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing charts: %w", err)
	}
	defer rows.Close()

	charts := make([]model.SavedChart, 0, limit)
	for rows.Next() {
		c, err := scanChart(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning chart row: %w", err)
		}
		charts = append(charts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating charts: %w", err)
	}
	return charts, nil
}

// Update rewrites the mutable fields of chart and bumps UpdatedAt.
func (db *DB) Update(ctx context.Context, chart *model.SavedChart) error {
	chart.UpdatedAt = time.Now().UTC()

	result, err := db.conn.ExecContext(ctx,
		`UPDATE saved_charts
		 SET name = ?, table_kind = ?, backend = ?, request = ?, code = ?, feedback = ?, updated_at = ?
		 WHERE id = ?`,
		chart.Name,
		string(chart.Table),
		chart.Backend,
		chart.Request,
		chart.Code,
		chart.Feedback,
		chart.UpdatedAt,
		chart.ID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating chart %s: %w", chart.ID, err)
	}
	return requireAffected(result, chart.ID)
}

func (db *DB) Delete(ctx context.Context, id string) error {
	result, err := db.conn.ExecContext(ctx, `DELETE FROM saved_charts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting chart %s: %w", id, err)
	}
	return requireAffected(result, id)
}

func requireAffected(result sql.Result, id string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if n == 0 {
		return apperror.NotFound("chart", id)
	}
	return nil
}
