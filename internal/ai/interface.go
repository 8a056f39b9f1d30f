package ai

import (
	"context"
	"io"
)

// Transcriber converts recorded audio to plain text.
type Transcriber interface {
	// Transcribe sends the audio to a speech-to-text service. The filename
	// is only used as a format hint for the service.
	Transcribe(ctx context.Context, filename string, audio io.Reader) (string, error)
	// Name returns the engine name.
	Name() string
}

// Summarizer turns a meeting transcript into a structured summary.
type Summarizer interface {
	Summarize(ctx context.Context, transcript string) (string, error)
	// Name returns the engine name.
	Name() string
}
