package pipeline

import (
	"context"
	"sync"

	"github.com/meetscribe/backend/internal/db/models"
)

// Summary version management. History is append-only and insertion-ordered;
// restore changes only the current summary. Generate calls for the same
// meeting serialize on a per-meeting mutex so concurrent appends are never
// lost or interleaved.

// GenerateAndAppend invokes the summarizer over the meeting's transcript,
// appends the result to the summary history and makes it the current
// summary. A failed summarizer call leaves the history unchanged.
func (p *Pipeline) GenerateAndAppend(ctx context.Context, meetingID string) (*models.Meeting, error) {
	lock := p.meetingLock(meetingID)
	lock.Lock()
	defer lock.Unlock()

	m, err := p.meetings.GetMeeting(meetingID)
	if err != nil {
		return nil, err
	}
	if m.Transcript == "" {
		return nil, ErrNoTranscript
	}

	summary, err := p.summarizeCached(ctx, m.Transcript)
	if err != nil {
		return nil, &SummarizationError{Err: err}
	}

	updated, err := p.meetings.AppendSummary(meetingID, summary)
	if err != nil {
		return nil, &PersistenceError{Err: err}
	}
	return updated, nil
}

// Restore makes a previously generated summary current again. The text must
// be an element of the meeting's history; the history itself is not
// truncated or reordered.
func (p *Pipeline) Restore(ctx context.Context, meetingID, summary string) (*models.Meeting, error) {
	lock := p.meetingLock(meetingID)
	lock.Lock()
	defer lock.Unlock()

	ok, err := p.meetings.SummaryInHistory(meetingID, summary)
	if err != nil {
		return nil, &PersistenceError{Err: err}
	}
	if !ok {
		return nil, ErrSummaryNotInHistory
	}

	updated, err := p.meetings.UpdateSummary(meetingID, summary)
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (p *Pipeline) meetingLock(id string) *sync.Mutex {
	p.mu.Lock()
	defer p.mu.Unlock()
	lock, ok := p.locks[id]
	if !ok {
		lock = &sync.Mutex{}
		p.locks[id] = lock
	}
	return lock
}

func (p *Pipeline) dropLock(id string) {
	p.mu.Lock()
	delete(p.locks, id)
	p.mu.Unlock()
}
