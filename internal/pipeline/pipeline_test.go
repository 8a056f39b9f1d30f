package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/meetscribe/backend/internal/ai"
	"github.com/meetscribe/backend/internal/db"
	"github.com/meetscribe/backend/internal/storage"
)

type fakeTranscriber struct {
	text  string
	err   error
	calls atomic.Int32
}

func (f *fakeTranscriber) Transcribe(_ context.Context, _ string, audio io.Reader) (string, error) {
	f.calls.Add(1)
	io.Copy(io.Discard, audio)
	if f.err != nil {
		return "", f.err
	}
	return f.text, nil
}

func (f *fakeTranscriber) Name() string { return "fake-transcriber" }

type fakeSummarizer struct {
	err   error
	calls atomic.Int32
}

// Summarize returns a distinct summary per call so tests can tell versions
// apart.
func (f *fakeSummarizer) Summarize(_ context.Context, _ string) (string, error) {
	n := f.calls.Add(1)
	if f.err != nil {
		return "", f.err
	}
	return fmt.Sprintf("summary #%d", n), nil
}

func (f *fakeSummarizer) Name() string { return "fake-summarizer" }

type failingBlobStore struct{}

func (failingBlobStore) Save(string, io.Reader) (string, error) {
	return "", errors.New("disk full")
}
func (failingBlobStore) Open(string) (io.ReadCloser, error) { return nil, errors.New("disk full") }
func (failingBlobStore) Delete(string) error                { return errors.New("disk full") }

type memoryCache struct {
	mu sync.Mutex
	m  map[string]string
}

func newMemoryCache() *memoryCache { return &memoryCache{m: make(map[string]string)} }

func (c *memoryCache) Get(key string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.m[key]
	return v, ok, nil
}

func (c *memoryCache) Put(key, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[key] = value
	return nil
}

type testEnv struct {
	pipeline    *Pipeline
	db          *db.Database
	uploadDir   string
	transcriber *fakeTranscriber
	summarizer  *fakeSummarizer
}

func newTestEnv(t *testing.T, cache ResultCache) *testEnv {
	t.Helper()
	dir := t.TempDir()

	database, err := db.NewSQLite(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("NewSQLite: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	uploadDir := filepath.Join(dir, "uploads")
	blobs, err := storage.NewBlobStore(uploadDir)
	if err != nil {
		t.Fatalf("NewBlobStore: %v", err)
	}

	tr := &fakeTranscriber{text: "transcribed text"}
	sum := &fakeSummarizer{}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	return &testEnv{
		pipeline:    New(database, blobs, tr, sum, cache, log),
		db:          database,
		uploadDir:   uploadDir,
		transcriber: tr,
		summarizer:  sum,
	}
}

func (e *testEnv) uploadCount(t *testing.T) int {
	t.Helper()
	entries, err := os.ReadDir(e.uploadDir)
	if err != nil {
		t.Fatalf("read upload dir: %v", err)
	}
	return len(entries)
}

func TestSubmitBasic(t *testing.T) {
	env := newTestEnv(t, nil)

	m, err := env.pipeline.SubmitRecordingBasic(context.Background(), []byte("audio"), "rec.webm", "Standup", "user-1")
	if err != nil {
		t.Fatalf("SubmitRecordingBasic: %v", err)
	}
	if m.Title != "Standup" || m.OwnerID != "user-1" {
		t.Errorf("meeting = %+v", m)
	}
	if m.AudioRef == "" {
		t.Error("missing AudioRef")
	}
	if m.Transcript != "transcribed text" {
		t.Errorf("transcript = %q", m.Transcript)
	}
	if m.Summary != "" || len(m.SummaryHistory) != 0 {
		t.Errorf("basic upload should not summarize: summary=%q history=%v", m.Summary, m.SummaryHistory)
	}
	if env.summarizer.calls.Load() != 0 {
		t.Errorf("summarizer called %d times", env.summarizer.calls.Load())
	}

	// Must be persisted and readable back.
	stored, err := env.db.GetMeeting(m.ID)
	if err != nil {
		t.Fatalf("GetMeeting: %v", err)
	}
	if stored.AudioRef != m.AudioRef {
		t.Errorf("stored AudioRef = %q, want %q", stored.AudioRef, m.AudioRef)
	}
}

func TestSubmitBlankTitleGetsDefault(t *testing.T) {
	env := newTestEnv(t, nil)

	m, err := env.pipeline.SubmitRecordingBasic(context.Background(), []byte("audio"), "rec.webm", "   ", "")
	if err != nil {
		t.Fatalf("SubmitRecordingBasic: %v", err)
	}
	if m.Title != DefaultTitle {
		t.Errorf("title = %q, want %q", m.Title, DefaultTitle)
	}
}

func TestSubmitEmptyAudio(t *testing.T) {
	env := newTestEnv(t, nil)

	_, err := env.pipeline.SubmitRecordingBasic(context.Background(), nil, "rec.webm", "t", "")
	if !errors.Is(err, ErrEmptyAudio) {
		t.Fatalf("err = %v, want ErrEmptyAudio", err)
	}
	if env.uploadCount(t) != 0 {
		t.Error("blob stored for rejected upload")
	}
	if env.transcriber.calls.Load() != 0 {
		t.Error("transcriber called for rejected upload")
	}
}

func TestSubmitWithAutoSummary(t *testing.T) {
	env := newTestEnv(t, nil)

	m, err := env.pipeline.SubmitRecordingWithAutoSummary(context.Background(), []byte("audio"), "rec.webm", "Standup", "user-1")
	if err != nil {
		t.Fatalf("SubmitRecordingWithAutoSummary: %v", err)
	}
	if m.Summary != "summary #1" {
		t.Errorf("summary = %q", m.Summary)
	}
	if len(m.SummaryHistory) != 1 || m.SummaryHistory[0] != m.Summary {
		t.Errorf("history = %v", m.SummaryHistory)
	}
}

func TestSubmitBasicDegradesOnTranscriptionFailure(t *testing.T) {
	env := newTestEnv(t, nil)
	env.transcriber.err = fmt.Errorf("service down: %w", ai.ErrTransient)

	m, err := env.pipeline.SubmitRecordingBasic(context.Background(), []byte("audio"), "rec.webm", "Standup", "")
	if err != nil {
		t.Fatalf("SubmitRecordingBasic: %v", err)
	}
	if m.Transcript != "" || m.Summary != "" {
		t.Errorf("degraded meeting has transcript=%q summary=%q", m.Transcript, m.Summary)
	}
	if m.AudioRef == "" {
		t.Error("degraded meeting must keep its audio")
	}
	if env.uploadCount(t) != 1 {
		t.Errorf("%d blobs stored, want 1", env.uploadCount(t))
	}
}

func TestSubmitAutoSummaryAbortsOnTranscriptionFailure(t *testing.T) {
	env := newTestEnv(t, nil)
	env.transcriber.err = fmt.Errorf("service down: %w", ai.ErrTransient)

	_, err := env.pipeline.SubmitRecordingWithAutoSummary(context.Background(), []byte("audio"), "rec.webm", "Standup", "")
	var terr *TranscriptionError
	if !errors.As(err, &terr) {
		t.Fatalf("err = %v, want TranscriptionError", err)
	}
	if !errors.Is(err, ai.ErrTransient) {
		t.Errorf("cause not preserved: %v", err)
	}
	if env.uploadCount(t) != 0 {
		t.Errorf("%d blobs left after aborted upload, want 0", env.uploadCount(t))
	}
	meetings, err := env.db.ListMeetings()
	if err != nil {
		t.Fatalf("ListMeetings: %v", err)
	}
	if len(meetings) != 0 {
		t.Errorf("%d meetings persisted after aborted upload", len(meetings))
	}
	if env.summarizer.calls.Load() != 0 {
		t.Error("summarizer called despite transcription failure")
	}
}

func TestSubmitSummarizationFailureIsNotFatal(t *testing.T) {
	env := newTestEnv(t, nil)
	env.summarizer.err = fmt.Errorf("rate limited: %w", ai.ErrQuota)

	m, err := env.pipeline.SubmitRecordingWithAutoSummary(context.Background(), []byte("audio"), "rec.webm", "Standup", "")
	if err != nil {
		t.Fatalf("SubmitRecordingWithAutoSummary: %v", err)
	}
	if m.Transcript != "transcribed text" {
		t.Errorf("transcript = %q", m.Transcript)
	}
	if m.Summary != "" || len(m.SummaryHistory) != 0 {
		t.Errorf("summary = %q, history = %v; want none", m.Summary, m.SummaryHistory)
	}
}

func TestSubmitBlobFailureIsFatal(t *testing.T) {
	env := newTestEnv(t, nil)
	env.pipeline.blobs = failingBlobStore{}

	_, err := env.pipeline.SubmitRecordingBasic(context.Background(), []byte("audio"), "rec.webm", "t", "")
	var berr *BlobStoreError
	if !errors.As(err, &berr) {
		t.Fatalf("err = %v, want BlobStoreError", err)
	}
	if env.transcriber.calls.Load() != 0 {
		t.Error("transcriber called despite blob failure")
	}
}

func TestTranscribeRetryAfterDegradedUpload(t *testing.T) {
	env := newTestEnv(t, nil)
	env.transcriber.err = fmt.Errorf("service down: %w", ai.ErrTransient)

	m, err := env.pipeline.SubmitRecordingBasic(context.Background(), []byte("audio"), "rec.webm", "t", "")
	if err != nil {
		t.Fatalf("SubmitRecordingBasic: %v", err)
	}

	// Service recovers; the retry reads the audio back from the blob store.
	env.transcriber.err = nil
	updated, err := env.pipeline.Transcribe(context.Background(), m.ID)
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if updated.Transcript != "transcribed text" {
		t.Errorf("transcript = %q", updated.Transcript)
	}

	// Already transcribed: returned unchanged, no new external call.
	before := env.transcriber.calls.Load()
	again, err := env.pipeline.Transcribe(context.Background(), m.ID)
	if err != nil {
		t.Fatalf("second Transcribe: %v", err)
	}
	if again.Transcript != "transcribed text" {
		t.Errorf("transcript = %q", again.Transcript)
	}
	if env.transcriber.calls.Load() != before {
		t.Error("transcriber called for an already transcribed meeting")
	}
}

func TestGenerateAndAppendVersions(t *testing.T) {
	env := newTestEnv(t, nil)

	m, err := env.pipeline.SubmitRecordingBasic(context.Background(), []byte("audio"), "rec.webm", "t", "")
	if err != nil {
		t.Fatalf("SubmitRecordingBasic: %v", err)
	}

	first, err := env.pipeline.GenerateAndAppend(context.Background(), m.ID)
	if err != nil {
		t.Fatalf("GenerateAndAppend: %v", err)
	}
	second, err := env.pipeline.GenerateAndAppend(context.Background(), m.ID)
	if err != nil {
		t.Fatalf("GenerateAndAppend: %v", err)
	}

	if second.Summary != "summary #2" {
		t.Errorf("current summary = %q", second.Summary)
	}
	want := []string{first.Summary, second.Summary}
	if len(second.SummaryHistory) != 2 || second.SummaryHistory[0] != want[0] || second.SummaryHistory[1] != want[1] {
		t.Errorf("history = %v, want %v", second.SummaryHistory, want)
	}
}

func TestGenerateAndAppendWithoutTranscript(t *testing.T) {
	env := newTestEnv(t, nil)
	env.transcriber.err = fmt.Errorf("down: %w", ai.ErrTransient)

	m, err := env.pipeline.SubmitRecordingBasic(context.Background(), []byte("audio"), "rec.webm", "t", "")
	if err != nil {
		t.Fatalf("SubmitRecordingBasic: %v", err)
	}

	if _, err := env.pipeline.GenerateAndAppend(context.Background(), m.ID); !errors.Is(err, ErrNoTranscript) {
		t.Fatalf("err = %v, want ErrNoTranscript", err)
	}
}

func TestGenerateAndAppendFailureLeavesHistoryUntouched(t *testing.T) {
	env := newTestEnv(t, nil)

	m, err := env.pipeline.SubmitRecordingWithAutoSummary(context.Background(), []byte("audio"), "rec.webm", "t", "")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	env.summarizer.err = fmt.Errorf("down: %w", ai.ErrTransient)
	_, err = env.pipeline.GenerateAndAppend(context.Background(), m.ID)
	var serr *SummarizationError
	if !errors.As(err, &serr) {
		t.Fatalf("err = %v, want SummarizationError", err)
	}

	stored, err := env.db.GetMeeting(m.ID)
	if err != nil {
		t.Fatalf("GetMeeting: %v", err)
	}
	if len(stored.SummaryHistory) != 1 || stored.Summary != m.Summary {
		t.Errorf("history mutated on failure: summary=%q history=%v", stored.Summary, stored.SummaryHistory)
	}
}

func TestRestore(t *testing.T) {
	env := newTestEnv(t, nil)

	m, err := env.pipeline.SubmitRecordingBasic(context.Background(), []byte("audio"), "rec.webm", "t", "")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	first, err := env.pipeline.GenerateAndAppend(context.Background(), m.ID)
	if err != nil {
		t.Fatalf("GenerateAndAppend: %v", err)
	}
	if _, err := env.pipeline.GenerateAndAppend(context.Background(), m.ID); err != nil {
		t.Fatalf("GenerateAndAppend: %v", err)
	}

	restored, err := env.pipeline.Restore(context.Background(), m.ID, first.Summary)
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if restored.Summary != first.Summary {
		t.Errorf("summary = %q, want %q", restored.Summary, first.Summary)
	}
	if len(restored.SummaryHistory) != 2 {
		t.Errorf("restore mutated history: %v", restored.SummaryHistory)
	}
}

func TestRestoreRejectsUnknownSummary(t *testing.T) {
	env := newTestEnv(t, nil)

	m, err := env.pipeline.SubmitRecordingWithAutoSummary(context.Background(), []byte("audio"), "rec.webm", "t", "")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	if _, err := env.pipeline.Restore(context.Background(), m.ID, "never generated"); !errors.Is(err, ErrSummaryNotInHistory) {
		t.Fatalf("err = %v, want ErrSummaryNotInHistory", err)
	}
}

func TestConcurrentGenerateAndAppend(t *testing.T) {
	env := newTestEnv(t, nil)

	m, err := env.pipeline.SubmitRecordingBasic(context.Background(), []byte("audio"), "rec.webm", "t", "")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	const n = 10
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = env.pipeline.GenerateAndAppend(context.Background(), m.ID)
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("goroutine %d: %v", i, err)
		}
	}

	stored, err := env.db.GetMeeting(m.ID)
	if err != nil {
		t.Fatalf("GetMeeting: %v", err)
	}
	if len(stored.SummaryHistory) != n {
		t.Fatalf("history has %d entries, want %d", len(stored.SummaryHistory), n)
	}
	seen := make(map[string]bool, n)
	for _, s := range stored.SummaryHistory {
		if seen[s] {
			t.Errorf("duplicate history entry %q", s)
		}
		seen[s] = true
	}
	if stored.Summary != stored.SummaryHistory[n-1] {
		t.Errorf("current summary %q is not the last history entry %q", stored.Summary, stored.SummaryHistory[n-1])
	}
}

func TestCacheSkipsRepeatExternalCalls(t *testing.T) {
	env := newTestEnv(t, newMemoryCache())

	if _, err := env.pipeline.SubmitRecordingBasic(context.Background(), []byte("same audio"), "a.webm", "first", ""); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if _, err := env.pipeline.SubmitRecordingBasic(context.Background(), []byte("same audio"), "b.webm", "second", ""); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if got := env.transcriber.calls.Load(); got != 1 {
		t.Errorf("transcriber called %d times for identical audio, want 1", got)
	}

	if _, err := env.pipeline.Summarize(context.Background(), "same transcript"); err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if _, err := env.pipeline.Summarize(context.Background(), "same transcript"); err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if got := env.summarizer.calls.Load(); got != 1 {
		t.Errorf("summarizer called %d times for identical transcript, want 1", got)
	}
}

func TestSummarizeAdHoc(t *testing.T) {
	env := newTestEnv(t, nil)

	s, err := env.pipeline.Summarize(context.Background(), "some transcript")
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if s != "summary #1" {
		t.Errorf("summary = %q", s)
	}

	if _, err := env.pipeline.Summarize(context.Background(), "   "); !errors.Is(err, ErrNoTranscript) {
		t.Fatalf("err = %v, want ErrNoTranscript", err)
	}
}

func TestDeleteRemovesRecordAndBlob(t *testing.T) {
	env := newTestEnv(t, nil)

	m, err := env.pipeline.SubmitRecordingBasic(context.Background(), []byte("audio"), "rec.webm", "t", "")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if env.uploadCount(t) != 1 {
		t.Fatalf("%d blobs before delete", env.uploadCount(t))
	}

	if _, err := env.pipeline.Delete(context.Background(), m.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := env.db.GetMeeting(m.ID); !errors.Is(err, db.ErrNotFound) {
		t.Errorf("meeting still present: %v", err)
	}
	if env.uploadCount(t) != 0 {
		t.Errorf("%d blobs left after delete", env.uploadCount(t))
	}

	if _, err := env.pipeline.Delete(context.Background(), m.ID); !errors.Is(err, db.ErrNotFound) {
		t.Errorf("second delete: err = %v, want ErrNotFound", err)
	}
}
