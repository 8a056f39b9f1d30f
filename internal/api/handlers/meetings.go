package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/meetscribe/backend/internal/db"
	"github.com/meetscribe/backend/internal/pipeline"
)

type MeetingsHandler struct {
	db       *db.Database
	pipeline *pipeline.Pipeline
}

func NewMeetingsHandler(database *db.Database, pl *pipeline.Pipeline) *MeetingsHandler {
	return &MeetingsHandler{db: database, pipeline: pl}
}

// ListMeetings returns all meetings, newest first.
func (h *MeetingsHandler) ListMeetings(w http.ResponseWriter, r *http.Request) {
	meetings, err := h.db.ListMeetings()
	if err != nil {
		jsonError(w, "failed to fetch meetings", http.StatusInternalServerError)
		return
	}
	jsonResponse(w, meetings, http.StatusOK)
}

// ListFavorites returns favorited meetings, newest first.
func (h *MeetingsHandler) ListFavorites(w http.ResponseWriter, r *http.Request) {
	meetings, err := h.db.ListFavorites()
	if err != nil {
		jsonError(w, "failed to fetch favorites", http.StatusInternalServerError)
		return
	}
	jsonResponse(w, meetings, http.StatusOK)
}

// GetMeeting returns a single meeting by ID.
func (h *MeetingsHandler) GetMeeting(w http.ResponseWriter, r *http.Request) {
	meeting, err := h.db.GetMeeting(chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			jsonError(w, "meeting not found", http.StatusNotFound)
			return
		}
		jsonError(w, "failed to fetch meeting", http.StatusInternalServerError)
		return
	}
	jsonResponse(w, meeting, http.StatusOK)
}

type summaryRequest struct {
	Summary string `json:"summary"`
}

// UpdateSummary overwrites the current summary text. History is untouched;
// use the generate endpoint to append a new version.
func (h *MeetingsHandler) UpdateSummary(w http.ResponseWriter, r *http.Request) {
	var req summaryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Summary == "" {
		jsonError(w, "summary is required", http.StatusBadRequest)
		return
	}

	meeting, err := h.db.UpdateSummary(chi.URLParam(r, "id"), req.Summary)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			jsonError(w, "meeting not found", http.StatusNotFound)
			return
		}
		jsonError(w, "failed to save summary", http.StatusInternalServerError)
		return
	}
	jsonResponse(w, meeting, http.StatusOK)
}

// GenerateSummary runs the summarizer over the stored transcript and
// appends the result to the meeting's summary history.
func (h *MeetingsHandler) GenerateSummary(w http.ResponseWriter, r *http.Request) {
	meeting, err := h.pipeline.GenerateAndAppend(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		pipelineError(w, r, err)
		return
	}
	jsonResponse(w, meeting, http.StatusOK)
}

// RestoreSummary makes a historical summary current again.
func (h *MeetingsHandler) RestoreSummary(w http.ResponseWriter, r *http.Request) {
	var req summaryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Summary == "" {
		jsonError(w, "summary is required", http.StatusBadRequest)
		return
	}

	meeting, err := h.pipeline.Restore(r.Context(), chi.URLParam(r, "id"), req.Summary)
	if err != nil {
		pipelineError(w, r, err)
		return
	}
	jsonResponse(w, meeting, http.StatusOK)
}

// TranscribeMeeting transcribes a meeting that was uploaded without a
// transcript (e.g. after a degraded upload).
func (h *MeetingsHandler) TranscribeMeeting(w http.ResponseWriter, r *http.Request) {
	meeting, err := h.pipeline.Transcribe(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		pipelineError(w, r, err)
		return
	}
	jsonResponse(w, meeting, http.StatusOK)
}

type favoriteRequest struct {
	IsFavorite bool `json:"isFavorite"`
}

// UpdateFavorite toggles the favorite flag.
func (h *MeetingsHandler) UpdateFavorite(w http.ResponseWriter, r *http.Request) {
	var req favoriteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	meeting, err := h.db.UpdateFavorite(chi.URLParam(r, "id"), req.IsFavorite)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			jsonError(w, "meeting not found", http.StatusNotFound)
			return
		}
		jsonError(w, "failed to update favorite", http.StatusInternalServerError)
		return
	}
	jsonResponse(w, meeting, http.StatusOK)
}

// DeleteMeeting removes the meeting and its stored audio.
func (h *MeetingsHandler) DeleteMeeting(w http.ResponseWriter, r *http.Request) {
	meeting, err := h.pipeline.Delete(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		pipelineError(w, r, err)
		return
	}
	jsonResponse(w, meeting, http.StatusOK)
}
