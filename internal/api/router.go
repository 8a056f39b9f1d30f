package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/meetscribe/backend/internal/api/handlers"
	"github.com/meetscribe/backend/internal/api/middleware"
	"github.com/meetscribe/backend/internal/config"
	"github.com/meetscribe/backend/internal/db"
	"github.com/meetscribe/backend/internal/pipeline"
)

// jsonBodyLimit caps JSON request bodies; transcripts posted to /summarize
// fit comfortably under this.
const jsonBodyLimit = 2 << 20

func NewRouter(database *db.Database, pl *pipeline.Pipeline, cfg *config.Config, log *slog.Logger) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger(log))
	r.Use(cors.Handler(middleware.CORSHandler(cfg.CORSOrigins)))

	// Uploads and summary generation trigger billable external calls.
	billable := middleware.NewRateLimiter(cfg.UploadRateLimit, time.Minute)

	// Handlers
	meetingsHandler := handlers.NewMeetingsHandler(database, pl)
	uploadHandler := handlers.NewUploadHandler(pl, cfg.MaxUploadBytes)
	summarizeHandler := handlers.NewSummarizeHandler(pl)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"status":"ok"}`))
		})

		// Multipart upload; /record/upload is kept as an alias for older
		// clients.
		r.Group(func(r chi.Router) {
			r.Use(billable.Handler)
			r.Post("/upload", uploadHandler.Upload)
			r.Post("/record/upload", uploadHandler.Upload)
		})

		// JSON routes
		r.Group(func(r chi.Router) {
			r.Use(middleware.MaxBodySize(jsonBodyLimit))

			r.Get("/meetings", meetingsHandler.ListMeetings)
			r.Get("/meetings/favorites", meetingsHandler.ListFavorites)
			r.Get("/meetings/{id}", meetingsHandler.GetMeeting)
			r.Patch("/meetings/{id}/summary", meetingsHandler.UpdateSummary)
			r.Patch("/meetings/{id}/favorite", meetingsHandler.UpdateFavorite)
			r.Post("/meetings/{id}/summary/restore", meetingsHandler.RestoreSummary)
			r.Delete("/meetings/{id}", meetingsHandler.DeleteMeeting)

			r.With(billable.Handler).Post("/meetings/{id}/summary/generate", meetingsHandler.GenerateSummary)
			r.With(billable.Handler).Post("/meetings/{id}/transcribe", meetingsHandler.TranscribeMeeting)
			r.With(billable.Handler).Post("/summarize", summarizeHandler.Summarize)
		})
	})

	return r
}
