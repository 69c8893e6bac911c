package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/usage-dashboard/internal/chart"
	"github.com/sakif/usage-dashboard/internal/service"
)

// ChartHandler serves the natural-language chart loop and saved charts.
type ChartHandler struct {
	charts    *service.ChartService
	dashboard *service.DashboardService
	logger    *slog.Logger
}

func NewChartHandler(charts *service.ChartService, dashboard *service.DashboardService, logger *slog.Logger) *ChartHandler {
	return &ChartHandler{charts: charts, dashboard: dashboard, logger: logger}
}

// HandleBackends lists the generation backends.
//
// HTTP: GET /api/backends
func (h *ChartHandler) HandleBackends(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.charts.Backends())
}

type generateRequest struct {
	Table   string `json:"table"`
	Backend string `json:"backend"`
	Request string `json:"request"`
	PMOnly  bool   `json:"pm_only"`
	From    string `json:"from"`
	To      string `json:"to"`
}

// HandleGenerate starts a new chart from a natural-language request.
//
// HTTP: POST /api/charts/generate
// REQUEST BODY: {"table": "models", "backend": "gemini", "request": "pie of model usage"}
//
// A chart whose code failed to run is still a 200: the failure is in the
// body's "status" and "error" fields, and the operator can try again.
func (h *ChartHandler) HandleGenerate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	f, err := h.dashboard.Filter(req.PMOnly, req.From, req.To)
	if err != nil {
		writeError(w, err)
		return
	}

	result, err := h.charts.Generate(r.Context(), service.GenerateInput{
		Table:   req.Table,
		Backend: req.Backend,
		Request: req.Request,
		Filter:  f,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// HandleRefine revises the current chart.
//
// HTTP: POST /api/charts/refine
// REQUEST BODY: {"feedback": "use names instead of emails"}
func (h *ChartHandler) HandleRefine(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Feedback string `json:"feedback"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	result, err := h.charts.Refine(r.Context(), req.Feedback)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// HandleCurrent returns the chart being worked on.
//
// HTTP: GET /api/charts/current
func (h *ChartHandler) HandleCurrent(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.charts.Current())
}

// HandleClear forgets the current chart.
//
// HTTP: DELETE /api/charts/current
func (h *ChartHandler) HandleClear(w http.ResponseWriter, r *http.Request) {
	h.charts.Clear()
	w.WriteHeader(http.StatusNoContent)
}

// HandleList returns saved charts, newest first.
//
// HTTP: GET /api/charts?table=&limit=&offset=
func (h *ChartHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	limit, err := intQuery(r, "limit")
	if err != nil {
		writeError(w, err)
		return
	}
	offset, err := intQuery(r, "offset")
	if err != nil {
		writeError(w, err)
		return
	}

	charts, err := h.charts.List(r.Context(), r.URL.Query().Get("table"), limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, charts)
}

// HandleSave stores the current chart under a name.
//
// HTTP: POST /api/charts
// REQUEST BODY: {"name": "weekly model mix"}
func (h *ChartHandler) HandleSave(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	saved, err := h.charts.Save(r.Context(), req.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, saved)
}

// HandleGet returns one saved chart.
//
// HTTP: GET /api/charts/{id}
func (h *ChartHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	saved, err := h.charts.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

// HandleRename changes a saved chart's name.
//
// HTTP: PUT /api/charts/{id}
// REQUEST BODY: {"name": "weekly model mix"}
func (h *ChartHandler) HandleRename(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	saved, err := h.charts.Rename(r.Context(), chi.URLParam(r, "id"), req.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

// HandleDelete removes one saved chart.
//
// HTTP: DELETE /api/charts/{id}
func (h *ChartHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.charts.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// replayResponse reports "no_chart" explicitly so clients need not infer it
// from a null figure.
type replayResponse struct {
	*service.ReplayResult
	Status string `json:"status"`
}

// HandleRender re-runs a saved chart on the current data without calling a
// backend.
//
// HTTP: POST /api/charts/{id}/render?pm_only=&from=&to=
func (h *ChartHandler) HandleRender(w http.ResponseWriter, r *http.Request) {
	f, err := filterFromQuery(h.dashboard, r)
	if err != nil {
		writeError(w, err)
		return
	}

	res, err := h.charts.Replay(r.Context(), chi.URLParam(r, "id"), f)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, replayResponse{ReplayResult: res, Status: figureStatus(res.Figure)})
}

func figureStatus(fig *chart.Figure) string {
	if fig == nil {
		return "no_chart"
	}
	return "rendered"
}
