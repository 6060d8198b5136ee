package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/anuntech/metas/internal/domain/types"
)

// maxBodyBytes bounds ingestion payloads.
const maxBodyBytes = 1 << 20

// IngestHandler accepts tier and record writes.
type IngestHandler struct {
	deps Ingestor
}

// NewIngestHandler creates a new ingestion handler.
func NewIngestHandler(deps Ingestor) *IngestHandler {
	return &IngestHandler{deps: deps}
}

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", ErrBadRequest, err)
	}
	return nil
}

type tierResponse struct {
	ID        string    `json:"id"`
	Unit      string    `json:"unit"`
	Nivel     string    `json:"nivel"`
	Period    string    `json:"period"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// HandlePutTier handles PUT /v1/tiers.
func (h *IngestHandler) HandlePutTier(w http.ResponseWriter, r *http.Request) {
	var in types.TierInput
	if err := decode(w, r, &in); err != nil {
		writeFailure(w, err)
		return
	}
	tier, err := in.Model()
	if err != nil {
		writeFailure(w, err)
		return
	}
	saved, err := h.deps.SaveTier(r.Context(), tier)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tierResponse{
		ID:        saved.ID.String(),
		Unit:      saved.Unit,
		Nivel:     saved.Level.String(),
		Period:    saved.Period.String(),
		UpdatedAt: saved.UpdatedAt,
	})
}

type recordResponse struct {
	ID     string `json:"id"`
	Unit   string `json:"unit"`
	Period string `json:"period"`
	Start  string `json:"start"`
	End    string `json:"end"`
}

// HandlePutRecord handles PUT /v1/records.
func (h *IngestHandler) HandlePutRecord(w http.ResponseWriter, r *http.Request) {
	var in types.RecordInput
	if err := decode(w, r, &in); err != nil {
		writeFailure(w, err)
		return
	}
	rec, err := in.Model()
	if err != nil {
		writeFailure(w, err)
		return
	}
	saved, err := h.deps.SaveRecord(r.Context(), rec)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, recordResponse{
		ID:     saved.ID.String(),
		Unit:   saved.Unit,
		Period: saved.Period.String(),
		Start:  saved.Window.Start.Format(time.DateOnly),
		End:    saved.Window.End.Format(time.DateOnly),
	})
}
