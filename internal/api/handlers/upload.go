package handlers

import (
	"io"
	"net/http"

	"github.com/meetscribe/backend/internal/pipeline"
)

type UploadHandler struct {
	pipeline       *pipeline.Pipeline
	maxUploadBytes int64
}

func NewUploadHandler(pl *pipeline.Pipeline, maxUploadBytes int64) *UploadHandler {
	return &UploadHandler{pipeline: pl, maxUploadBytes: maxUploadBytes}
}

// Upload accepts a multipart recording and runs it through the pipeline.
// Fields: audio (file, required), title, userId, autoSummarize ("true" to
// transcribe and generate the first summary in one go).
func (h *UploadHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("audio")
	if err != nil {
		jsonError(w, "missing audio file", http.StatusBadRequest)
		return
	}
	defer file.Close()

	audio, err := io.ReadAll(file)
	if err != nil {
		jsonError(w, "failed to read audio file", http.StatusBadRequest)
		return
	}
	if len(audio) == 0 {
		jsonError(w, "audio file is empty", http.StatusBadRequest)
		return
	}

	autoSummarize := r.FormValue("autoSummarize") == "true"

	req := pipeline.SubmitRequest{
		Audio:    audio,
		Filename: header.Filename,
		Title:    r.FormValue("title"),
		OwnerID:  r.FormValue("userId"),

		// The basic path tolerates a transcription failure; the
		// auto-summary path has nothing to offer without one.
		AutoSummarize:                 autoSummarize,
		DegradeOnTranscriptionFailure: !autoSummarize,
	}

	meeting, err := h.pipeline.Submit(r.Context(), req)
	if err != nil {
		pipelineError(w, r, err)
		return
	}

	jsonResponse(w, meeting, http.StatusCreated)
}
