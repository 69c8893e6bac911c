// Package handler contains the HTTP request handlers of the dashboard API.
//
// Handlers are the glue between HTTP and the service layer:
//  1. Parse the incoming request (path values, query, JSON or multipart body)
//  2. Call one service method
//  3. Write the JSON response, or map the error with writeError
//
// They hold no business rules; validation lives in the services so the CLI
// gets the same behaviour.
package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/usage-dashboard/internal/apperror"
	"github.com/sakif/usage-dashboard/internal/model"
	"github.com/sakif/usage-dashboard/internal/schema"
	"github.com/sakif/usage-dashboard/internal/service"
)

// MaxUploadSize bounds one uploaded report.
const MaxUploadSize = 32 << 20

// DashboardHandler serves uploads, report management and table views.
type DashboardHandler struct {
	svc    *service.DashboardService
	logger *slog.Logger
}

func NewDashboardHandler(svc *service.DashboardService, logger *slog.Logger) *DashboardHandler {
	return &DashboardHandler{svc: svc, logger: logger}
}

// HandleUpload ingests one weekly report.
//
// HTTP: POST /api/uploads (multipart/form-data, field "file")
func (h *DashboardHandler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadSize)
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, apperror.ValidationFailed("file", "the uploaded file is too large"))
			return
		}
		writeError(w, apperror.ValidationFailed("file", "a CSV file is required in the \"file\" field"))
		return
	}
	defer file.Close()

	result, err := h.svc.Upload(r.Context(), header.Filename, file)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

// HandleListReports returns the stored report weeks, newest first.
//
// HTTP: GET /api/reports
func (h *DashboardHandler) HandleListReports(w http.ResponseWriter, r *http.Request) {
	reports := h.svc.Reports()
	if reports == nil {
		reports = []service.ReportSummary{}
	}
	writeJSON(w, http.StatusOK, reports)
}

// HandleDeleteReport removes all rows of one report week.
//
// HTTP: DELETE /api/reports/{date}
func (h *DashboardHandler) HandleDeleteReport(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "date")
	day, err := model.ParseDate(raw)
	if err != nil {
		writeError(w, apperror.ValidationFailed("date", "report date must be YYYY-MM-DD"))
		return
	}

	res, err := h.svc.DeleteReport(r.Context(), day)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"date": day, "deleted": res})
}

// HandleTable returns a filtered view of one master table.
//
// HTTP: GET /api/tables/{table}?pm_only=&from=&to=&limit=
func (h *DashboardHandler) HandleTable(w http.ResponseWriter, r *http.Request) {
	kind, err := schema.ParseKind(chi.URLParam(r, "table"))
	if err != nil {
		writeError(w, apperror.ValidationFailed("table", err.Error()))
		return
	}
	f, err := filterFromQuery(h.svc, r)
	if err != nil {
		writeError(w, err)
		return
	}
	limit, err := intQuery(r, "limit")
	if err != nil {
		writeError(w, err)
		return
	}

	view, err := h.svc.Table(kind, f, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// HandleKPIs returns the latest-week metrics.
//
// HTTP: GET /api/kpis?pm_only=&from=&to=
func (h *DashboardHandler) HandleKPIs(w http.ResponseWriter, r *http.Request) {
	f, err := filterFromQuery(h.svc, r)
	if err != nil {
		writeError(w, err)
		return
	}
	kpis := h.svc.KPIs(f)
	if kpis == nil {
		writeJSON(w, http.StatusOK, []any{})
		return
	}
	writeJSON(w, http.StatusOK, kpis)
}

// filterFromQuery reads pm_only, from and to.
func filterFromQuery(svc *service.DashboardService, r *http.Request) (model.Filter, error) {
	q := r.URL.Query()
	pmOnly := false
	if v := q.Get("pm_only"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return model.Filter{}, apperror.ValidationFailed("pm_only", "pm_only must be true or false")
		}
		pmOnly = b
	}
	return svc.Filter(pmOnly, q.Get("from"), q.Get("to"))
}

func intQuery(r *http.Request, name string) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, apperror.ValidationFailed(name, name+" must be a non-negative integer")
	}
	return n, nil
}
