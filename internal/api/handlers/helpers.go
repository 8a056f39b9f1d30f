package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/meetscribe/backend/internal/ai"
	"github.com/meetscribe/backend/internal/db"
	"github.com/meetscribe/backend/internal/logger"
	"github.com/meetscribe/backend/internal/pipeline"
)

func jsonResponse(w http.ResponseWriter, data interface{}, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func jsonError(w http.ResponseWriter, msg string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// pipelineError maps pipeline failures to HTTP responses. External-service
// failures surface their retryability; a persistence failure after paid
// external calls tells the client to retry only the save.
func pipelineError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		blobErr *pipeline.BlobStoreError
		trErr   *pipeline.TranscriptionError
		sumErr  *pipeline.SummarizationError
		perErr  *pipeline.PersistenceError
	)

	switch {
	case errors.Is(err, pipeline.ErrEmptyAudio):
		jsonError(w, "audio file is empty", http.StatusBadRequest)
	case errors.Is(err, pipeline.ErrNoTranscript):
		jsonError(w, "no transcript available", http.StatusBadRequest)
	case errors.Is(err, pipeline.ErrSummaryNotInHistory):
		jsonError(w, "summary not found in history", http.StatusNotFound)
	case errors.Is(err, db.ErrNotFound):
		jsonError(w, "meeting not found", http.StatusNotFound)
	case errors.As(err, &trErr), errors.As(err, &sumErr):
		jsonError(w, err.Error(), externalStatus(err))
	case errors.As(err, &perErr):
		logger.FromContext(r.Context()).Error("persistence failure after external calls", "error", err)
		jsonError(w, "failed to save meeting; external processing succeeded, retry the save", http.StatusInternalServerError)
	case errors.As(err, &blobErr):
		logger.FromContext(r.Context()).Error("blob store failure", "error", err)
		jsonError(w, "failed to store audio", http.StatusInternalServerError)
	default:
		logger.FromContext(r.Context()).Error("pipeline failure", "error", err)
		jsonError(w, "pipeline error: "+err.Error(), http.StatusInternalServerError)
	}
}

func externalStatus(err error) int {
	switch {
	case errors.Is(err, ai.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ai.ErrQuota):
		return http.StatusTooManyRequests
	default:
		return http.StatusBadGateway
	}
}
