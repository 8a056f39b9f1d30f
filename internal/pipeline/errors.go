package pipeline

import "errors"

// Each stage of the pipeline fails with its own error type so callers can
// tell a fatal blob failure from a degradable external-service failure, and
// a persistence failure (external cost already paid) from everything else.

type BlobStoreError struct {
	Err error
}

func (e *BlobStoreError) Error() string { return "blob store: " + e.Err.Error() }
func (e *BlobStoreError) Unwrap() error { return e.Err }

type TranscriptionError struct {
	Err error
}

func (e *TranscriptionError) Error() string { return "transcription: " + e.Err.Error() }
func (e *TranscriptionError) Unwrap() error { return e.Err }

type SummarizationError struct {
	Err error
}

func (e *SummarizationError) Error() string { return "summarization: " + e.Err.Error() }
func (e *SummarizationError) Unwrap() error { return e.Err }

type PersistenceError struct {
	Err error
}

func (e *PersistenceError) Error() string { return "persistence: " + e.Err.Error() }
func (e *PersistenceError) Unwrap() error { return e.Err }

var (
	// ErrEmptyAudio rejects uploads with no audio bytes before anything is
	// stored or billed.
	ErrEmptyAudio = errors.New("audio payload is empty")

	// ErrNoTranscript means a summary was requested for a meeting that was
	// never transcribed.
	ErrNoTranscript = errors.New("meeting has no transcript")

	// ErrSummaryNotInHistory rejects a restore of text that was never part
	// of the meeting's summary history.
	ErrSummaryNotInHistory = errors.New("summary not found in history")
)
