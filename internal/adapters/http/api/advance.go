package api

import (
	"net/http"

	"github.com/anuntech/metas/internal/domain/types"
)

// AdvanceHandler completes tiers.
type AdvanceHandler struct {
	deps Advancer
}

// NewAdvanceHandler creates a new advancement handler.
func NewAdvanceHandler(deps Advancer) *AdvanceHandler {
	return &AdvanceHandler{deps: deps}
}

// HandleCompleteTotal handles POST /v1/periods/{year}/{month}/total/levels/{level}/complete.
func (h *AdvanceHandler) HandleCompleteTotal(w http.ResponseWriter, r *http.Request) {
	period, err := periodParam(r)
	if err != nil {
		writeFailure(w, err)
		return
	}
	lvl, err := levelParam(r)
	if err != nil {
		writeFailure(w, err)
		return
	}

	next, err := h.deps.CompleteAggregateTier(r.Context(), period, lvl)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, types.Advancement{NextLevel: next.String()})
}

// HandleCompleteUnit handles POST /v1/periods/{year}/{month}/units/{unit}/levels/{level}/complete.
func (h *AdvanceHandler) HandleCompleteUnit(w http.ResponseWriter, r *http.Request) {
	period, err := periodParam(r)
	if err != nil {
		writeFailure(w, err)
		return
	}
	unit, err := unitParam(r)
	if err != nil {
		writeFailure(w, err)
		return
	}
	lvl, err := levelParam(r)
	if err != nil {
		writeFailure(w, err)
		return
	}

	adv, err := h.deps.CompleteUnitTier(r.Context(), period, unit, lvl)
	if err != nil {
		writeFailure(w, err)
		return
	}
	hasNext := adv.HasNextTier
	writeJSON(w, http.StatusOK, types.Advancement{NextLevel: adv.NextLevel.String(), HasNextTier: &hasNext})
}
