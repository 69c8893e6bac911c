// Package service holds the business operations of the dashboard. Services
// validate input, run every interaction under the session lock and persist
// through the store before the in-memory state changes.
package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/sakif/usage-dashboard/internal/apperror"
	"github.com/sakif/usage-dashboard/internal/frame"
	"github.com/sakif/usage-dashboard/internal/ingest"
	"github.com/sakif/usage-dashboard/internal/kpi"
	"github.com/sakif/usage-dashboard/internal/metrics"
	"github.com/sakif/usage-dashboard/internal/model"
	"github.com/sakif/usage-dashboard/internal/schema"
	"github.com/sakif/usage-dashboard/internal/session"
)

// Row limits for table views.
const (
	DefaultTableLimit = 100
	MaxTableLimit     = 10000
)

// TableStore is the durable home of the master tables.
type TableStore interface {
	Save(ctx context.Context, ds model.Dataset) error
	DeletePeriod(ctx context.Context, ds model.Dataset, weekStart model.Date) (model.Dataset, model.DeleteResult, error)
}

type DashboardService struct {
	sess     *session.Session
	store    TableStore
	pmEmails []string
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// NewDashboardService wires the service. pmEmails is the allow-list behind
// the pm_only filter; nil disables that filter. m may be nil.
func NewDashboardService(sess *session.Session, store TableStore, pmEmails []string, m *metrics.Metrics, logger *slog.Logger) *DashboardService {
	return &DashboardService{
		sess:     sess,
		store:    store,
		pmEmails: pmEmails,
		metrics:  m,
		logger:   logger,
	}
}

// UploadResult summarizes an accepted report.
type UploadResult struct {
	Filename   string     `json:"filename"`
	ReportDate model.Date `json:"report_date"`
	Users      int        `json:"users"`
	Models     int        `json:"models"`
	Tools      int        `json:"tools"`
}

// Upload ingests one weekly export. A report whose date is already stored
// is refused with a duplicate report error and nothing is appended. The
// session only sees the new rows once all three tables are saved.
func (s *DashboardService) Upload(ctx context.Context, filename string, r io.Reader) (result *UploadResult, err error) {
	defer func() { s.metrics.ObserveUpload(err) }()

	raw, err := ingest.ReadCSV(r)
	if err != nil {
		return nil, err
	}
	day, err := ingest.ReportDate(filename, raw)
	if err != nil {
		return nil, err
	}

	err = s.sess.Do(func(st *session.State) error {
		if st.Data.HasReport(day) {
			return apperror.DuplicateReport(day.String())
		}

		batch, err := ingest.Ingest(raw)
		if err != nil {
			return err
		}
		// The file name may disagree with the weeks inside the file.
		for _, week := range batch.ReportDates() {
			if st.Data.HasReport(week) {
				return apperror.DuplicateReport(week.String())
			}
		}

		next := st.Data.Append(batch)
		if err := s.store.Save(ctx, next); err != nil {
			return fmt.Errorf("saving master tables: %w", err)
		}
		st.Data = next

		result = &UploadResult{
			Filename:   filename,
			ReportDate: day,
			Users:      len(batch.Users),
			Models:     len(batch.Models),
			Tools:      len(batch.Tools),
		}
		return nil
	})
	if err != nil {
		s.logger.Warn("upload rejected",
			slog.String("filename", filename),
			slog.String("report_date", day.String()),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	s.metrics.ObserveRows(false, result.Users, result.Models, result.Tools)
	s.logger.Info("report uploaded",
		slog.String("filename", filename),
		slog.String("report_date", day.String()),
		slog.Int("users", result.Users),
		slog.Int("models", result.Models),
		slog.Int("tools", result.Tools),
	)
	return result, nil
}

// DeleteReport removes every row whose week_start is day from all tables.
func (s *DashboardService) DeleteReport(ctx context.Context, day model.Date) (model.DeleteResult, error) {
	if day.IsZero() {
		return model.DeleteResult{}, apperror.ValidationFailed("date", "report date is required")
	}

	var res model.DeleteResult
	err := s.sess.Do(func(st *session.State) error {
		if !st.Data.HasReport(day) {
			return apperror.NotFound("report", day.String())
		}
		next, r, err := s.store.DeletePeriod(ctx, st.Data, day)
		if err != nil {
			return fmt.Errorf("deleting report %s: %w", day, err)
		}
		st.Data = next
		res = r
		return nil
	})
	if err != nil {
		return model.DeleteResult{}, err
	}

	s.metrics.ObserveRows(true, res.Users, res.Models, res.Tools)
	s.logger.Info("report deleted",
		slog.String("report_date", day.String()),
		slog.Int("rows", res.Total()),
	)
	return res, nil
}

// ReportSummary counts the stored rows of one report week.
type ReportSummary struct {
	Date   model.Date `json:"date"`
	Users  int        `json:"users"`
	Models int        `json:"models"`
	Tools  int        `json:"tools"`
}

// Reports lists the stored report weeks, newest first.
func (s *DashboardService) Reports() []ReportSummary {
	var out []ReportSummary
	_ = s.sess.Do(func(st *session.State) error {
		index := map[string]int{}
		for _, day := range st.Data.ReportDates() {
			index[day.String()] = len(out)
			out = append(out, ReportSummary{Date: day})
		}
		for _, r := range st.Data.Users {
			if i, ok := index[r.WeekStart.String()]; ok {
				out[i].Users++
			}
		}
		for _, r := range st.Data.Models {
			if i, ok := index[r.WeekStart.String()]; ok {
				out[i].Models++
			}
		}
		for _, r := range st.Data.Tools {
			if i, ok := index[r.WeekStart.String()]; ok {
				out[i].Tools++
			}
		}
		return nil
	})
	return out
}

// Filter builds a view filter. from and to are optional YYYY-MM-DD bounds.
func (s *DashboardService) Filter(pmOnly bool, from, to string) (model.Filter, error) {
	var f model.Filter
	var err error
	if from != "" {
		if f.From, err = model.ParseDate(from); err != nil {
			return model.Filter{}, apperror.ValidationFailed("from", fmt.Sprintf("invalid from date %q: want YYYY-MM-DD", from))
		}
	}
	if to != "" {
		if f.To, err = model.ParseDate(to); err != nil {
			return model.Filter{}, apperror.ValidationFailed("to", fmt.Sprintf("invalid to date %q: want YYYY-MM-DD", to))
		}
	}
	if !f.From.IsZero() && !f.To.IsZero() && f.To.Before(f.From) {
		return model.Filter{}, apperror.ValidationFailed("to", "to date is before from date")
	}
	if pmOnly {
		if s.pmEmails == nil {
			return model.Filter{}, apperror.Configuration("PM_EMAILS_FILE",
				"the PM only filter needs PM_EMAILS_FILE to point at a CSV with an email column")
		}
		f.Emails = slices.Clone(s.pmEmails)
	}
	return f, nil
}

// TableView is a filtered, truncated master table.
type TableView struct {
	Table schema.Kind  `json:"table"`
	Total int          `json:"total"`
	Frame *frame.Frame `json:"frame"`
}

// Table returns up to limit rows of the filtered table, newest week first.
func (s *DashboardService) Table(kind schema.Kind, f model.Filter, limit int) (*TableView, error) {
	if _, err := schema.ParseKind(string(kind)); err != nil {
		return nil, apperror.ValidationFailed("table", err.Error())
	}
	if limit <= 0 {
		limit = DefaultTableLimit
	}
	limit = min(limit, MaxTableLimit)

	var full *frame.Frame
	_ = s.sess.Do(func(st *session.State) error {
		full = st.Data.View(f).Frame(kind)
		return nil
	})
	return &TableView{Table: kind, Total: full.Len(), Frame: full.Head(limit)}, nil
}

// KPIs computes the latest-week metrics over the filtered users table.
func (s *DashboardService) KPIs(f model.Filter) []kpi.KPI {
	var view model.Dataset
	_ = s.sess.Do(func(st *session.State) error {
		view = st.Data.View(f)
		return nil
	})
	return kpi.Weekly(view)
}
