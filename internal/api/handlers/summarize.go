package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/meetscribe/backend/internal/pipeline"
)

type SummarizeHandler struct {
	pipeline *pipeline.Pipeline
}

func NewSummarizeHandler(pl *pipeline.Pipeline) *SummarizeHandler {
	return &SummarizeHandler{pipeline: pl}
}

type summarizeRequest struct {
	Transcript string `json:"transcript"`
}

type summarizeResponse struct {
	Summary string `json:"summary"`
}

// Summarize generates a summary for an ad-hoc transcript without touching
// any stored meeting.
func (h *SummarizeHandler) Summarize(w http.ResponseWriter, r *http.Request) {
	var req summarizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Transcript == "" {
		jsonError(w, "transcript is required", http.StatusBadRequest)
		return
	}

	summary, err := h.pipeline.Summarize(r.Context(), req.Transcript)
	if err != nil {
		pipelineError(w, r, err)
		return
	}
	jsonResponse(w, summarizeResponse{Summary: summary}, http.StatusOK)
}
