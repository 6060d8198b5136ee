package api

import (
	"net/http"
	"time"

	"github.com/anuntech/metas/internal/domain/types"
)

// LevelsHandler serves the active level map.
type LevelsHandler struct {
	deps Reporter
}

// NewLevelsHandler creates a new levels handler.
func NewLevelsHandler(deps Reporter) *LevelsHandler {
	return &LevelsHandler{deps: deps}
}

// HandleGetLevels handles GET /v1/periods/{year}/{month}/levels.
func (h *LevelsHandler) HandleGetLevels(w http.ResponseWriter, r *http.Request) {
	period, err := periodParam(r)
	if err != nil {
		writeFailure(w, err)
		return
	}
	levels, err := h.deps.ResolveActiveLevels(r.Context(), period)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, types.FromActiveLevels(period, levels))
}

// ProgressHandler serves the dashboard summary.
type ProgressHandler struct {
	deps Reporter
}

// NewProgressHandler creates a new progress handler.
func NewProgressHandler(deps Reporter) *ProgressHandler {
	return &ProgressHandler{deps: deps}
}

// HandleGetProgress handles GET /v1/periods/{year}/{month}/progress?start=&end=.
func (h *ProgressHandler) HandleGetProgress(w http.ResponseWriter, r *http.Request) {
	period, err := periodParam(r)
	if err != nil {
		writeFailure(w, err)
		return
	}
	q := r.URL.Query()
	window, err := types.ParseWindow(q.Get("start"), q.Get("end"))
	if err != nil {
		writeFailure(w, err)
		return
	}

	sum, err := h.deps.Progress(r.Context(), period, window)
	if err != nil {
		writeFailure(w, err)
		return
	}

	out := types.ProgressSummary{
		Period:        sum.Period.String(),
		Start:         sum.Window.Start.Format(time.DateOnly),
		End:           sum.Window.End.Format(time.DateOnly),
		TotalComputed: sum.TotalComputed,
		Units:         make([]types.UnitProgress, 0, len(sum.Units)),
	}
	for _, u := range sum.Units {
		out.Units = append(out.Units, types.FromUnitProgress(u))
	}
	writeJSON(w, http.StatusOK, out)
}
