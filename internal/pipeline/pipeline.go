package pipeline

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/meetscribe/backend/internal/ai"
	"github.com/meetscribe/backend/internal/db/models"
	"github.com/meetscribe/backend/internal/idempotency"
)

// DefaultTitle is used when the client submits a blank title.
const DefaultTitle = "Untitled Meeting"

// MeetingStore is the persistence surface the pipeline needs. Implemented
// by db.Database.
type MeetingStore interface {
	CreateMeeting(m *models.Meeting) error
	GetMeeting(id string) (*models.Meeting, error)
	AppendSummary(id, summary string) (*models.Meeting, error)
	SummaryInHistory(id, summary string) (bool, error)
	UpdateSummary(id, summary string) (*models.Meeting, error)
	SetTranscript(id, transcript string) (*models.Meeting, error)
	DeleteMeeting(id string) (*models.Meeting, error)
}

// BlobStore persists raw audio. Implemented by storage.BlobStore.
type BlobStore interface {
	Save(filename string, r io.Reader) (string, error)
	Open(ref string) (io.ReadCloser, error)
	Delete(ref string) error
}

// ResultCache caches external-call results by content hash. Implemented by
// idempotency.Cache. May be nil, in which case every call is billed.
type ResultCache interface {
	Get(key string) (string, bool, error)
	Put(key, value string) error
}

// Pipeline runs the store -> transcribe -> summarize -> persist sequence for
// uploads and owns the summary version history of every meeting.
type Pipeline struct {
	meetings    MeetingStore
	blobs       BlobStore
	transcriber ai.Transcriber
	summarizer  ai.Summarizer
	cache       ResultCache
	log         *slog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func New(meetings MeetingStore, blobs BlobStore, transcriber ai.Transcriber, summarizer ai.Summarizer, cache ResultCache, log *slog.Logger) *Pipeline {
	return &Pipeline{
		meetings:    meetings,
		blobs:       blobs,
		transcriber: transcriber,
		summarizer:  summarizer,
		cache:       cache,
		log:         log,
		locks:       make(map[string]*sync.Mutex),
	}
}

// SubmitRequest carries one upload through the pipeline.
type SubmitRequest struct {
	Audio    []byte
	Filename string
	Title    string
	OwnerID  string

	// AutoSummarize generates a first summary when a transcript is obtained.
	AutoSummarize bool

	// DegradeOnTranscriptionFailure keeps the meeting (without transcript)
	// when the speech service fails. When false, transcription failure
	// aborts the whole upload and the stored blob is released.
	DegradeOnTranscriptionFailure bool
}

// SubmitRecordingBasic uploads audio without summarization. A transcription
// failure still produces a meeting with the stored audio.
func (p *Pipeline) SubmitRecordingBasic(ctx context.Context, audio []byte, filename, title, ownerID string) (*models.Meeting, error) {
	return p.Submit(ctx, SubmitRequest{
		Audio:                         audio,
		Filename:                      filename,
		Title:                         title,
		OwnerID:                       ownerID,
		DegradeOnTranscriptionFailure: true,
	})
}

// SubmitRecordingWithAutoSummary uploads audio, transcribes it and generates
// the first summary. Transcription failure aborts the upload since the
// summary cannot be produced.
func (p *Pipeline) SubmitRecordingWithAutoSummary(ctx context.Context, audio []byte, filename, title, ownerID string) (*models.Meeting, error) {
	return p.Submit(ctx, SubmitRequest{
		Audio:         audio,
		Filename:      filename,
		Title:         title,
		OwnerID:       ownerID,
		AutoSummarize: true,
	})
}

// Submit runs the full pipeline for one upload. On success the returned
// meeting always has a valid AudioRef; transcript and summary may be absent
// depending on adapter outcomes and options.
func (p *Pipeline) Submit(ctx context.Context, req SubmitRequest) (*models.Meeting, error) {
	if len(req.Audio) == 0 {
		return nil, ErrEmptyAudio
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = DefaultTitle
	}

	// Stage 1: store the blob. The only all-or-nothing boundary: without a
	// stored artifact nothing downstream can proceed.
	ref, err := p.blobs.Save(req.Filename, bytes.NewReader(req.Audio))
	if err != nil {
		return nil, &BlobStoreError{Err: err}
	}

	// Stage 2: transcribe.
	transcript, terr := p.transcribeCached(ctx, req.Filename, req.Audio)
	if terr != nil {
		if !req.DegradeOnTranscriptionFailure {
			if derr := p.blobs.Delete(ref); derr != nil {
				p.log.Warn("failed to release blob after aborted upload", "ref", ref, "error", derr)
			}
			return nil, &TranscriptionError{Err: terr}
		}
		p.log.Warn("transcription failed, creating meeting without transcript", "error", terr)
		transcript = ""
	}

	// Stage 3: summarize. Never fatal: a meeting with a transcript but no
	// summary is valid and the client can retry generation later.
	summary := ""
	if req.AutoSummarize && transcript != "" {
		s, serr := p.summarizeCached(ctx, transcript)
		if serr != nil {
			p.log.Warn("summarization failed, creating meeting without summary", "error", serr)
		} else {
			summary = s
		}
	}

	m := &models.Meeting{
		ID:             uuid.New().String(),
		Title:          title,
		OwnerID:        req.OwnerID,
		AudioRef:       ref,
		Transcript:     transcript,
		Summary:        summary,
		SummaryHistory: []string{},
		UploadedAt:     time.Now().UTC(),
	}
	if summary != "" {
		m.SummaryHistory = []string{summary}
	}

	// Stage 4: persist. The external cost is already paid at this point, so
	// this always runs to completion regardless of client cancellation, and
	// its failure is surfaced distinctly.
	if err := p.meetings.CreateMeeting(m); err != nil {
		return nil, &PersistenceError{Err: err}
	}

	p.log.Info("meeting created",
		"id", m.ID,
		"title", m.Title,
		"transcribed", m.Transcript != "",
		"summarized", m.Summary != "")
	return m, nil
}

// Transcribe runs transcription for a meeting that was created without a
// transcript, reading the audio back from the blob store. Transcription runs
// at most once per meeting: a meeting that already has a transcript is
// returned unchanged.
func (p *Pipeline) Transcribe(ctx context.Context, meetingID string) (*models.Meeting, error) {
	m, err := p.meetings.GetMeeting(meetingID)
	if err != nil {
		return nil, err
	}
	if m.Transcript != "" {
		return m, nil
	}

	rc, err := p.blobs.Open(m.AudioRef)
	if err != nil {
		return nil, &BlobStoreError{Err: err}
	}
	audio, err := io.ReadAll(rc)
	rc.Close()
	if err != nil {
		return nil, &BlobStoreError{Err: err}
	}

	text, terr := p.transcribeCached(ctx, filepath.Base(m.AudioRef), audio)
	if terr != nil {
		return nil, &TranscriptionError{Err: terr}
	}

	updated, err := p.meetings.SetTranscript(meetingID, text)
	if err != nil {
		return nil, &PersistenceError{Err: err}
	}
	return updated, nil
}

// Summarize generates a summary for an ad-hoc transcript without touching
// any meeting record.
func (p *Pipeline) Summarize(ctx context.Context, transcript string) (string, error) {
	if strings.TrimSpace(transcript) == "" {
		return "", ErrNoTranscript
	}
	s, err := p.summarizeCached(ctx, transcript)
	if err != nil {
		return "", &SummarizationError{Err: err}
	}
	return s, nil
}

// Delete removes the meeting record and releases its audio blob. The blob
// delete is best-effort: the record is gone either way.
func (p *Pipeline) Delete(ctx context.Context, meetingID string) (*models.Meeting, error) {
	m, err := p.meetings.DeleteMeeting(meetingID)
	if err != nil {
		return nil, err
	}
	if err := p.blobs.Delete(m.AudioRef); err != nil {
		p.log.Warn("failed to delete audio blob", "ref", m.AudioRef, "error", err)
	}
	p.dropLock(meetingID)
	return m, nil
}

func (p *Pipeline) transcribeCached(ctx context.Context, filename string, audio []byte) (string, error) {
	key := idempotency.Key("transcript", audio)
	if p.cache != nil {
		if text, ok, err := p.cache.Get(key); err == nil && ok {
			p.log.Debug("transcription cache hit", "key", key)
			return text, nil
		}
	}

	text, err := p.transcriber.Transcribe(ctx, filename, bytes.NewReader(audio))
	if err != nil {
		return "", err
	}

	if p.cache != nil {
		if err := p.cache.Put(key, text); err != nil {
			p.log.Warn("failed to cache transcription result", "error", err)
		}
	}
	return text, nil
}

func (p *Pipeline) summarizeCached(ctx context.Context, transcript string) (string, error) {
	key := idempotency.Key("summary", []byte(transcript))
	if p.cache != nil {
		if text, ok, err := p.cache.Get(key); err == nil && ok {
			p.log.Debug("summarization cache hit", "key", key)
			return text, nil
		}
	}

	summary, err := p.summarizer.Summarize(ctx, transcript)
	if err != nil {
		return "", err
	}

	if p.cache != nil {
		if err := p.cache.Put(key, summary); err != nil {
			p.log.Warn("failed to cache summarization result", "error", err)
		}
	}
	return summary, nil
}
