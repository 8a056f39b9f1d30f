package models

import "time"

// Meeting is the canonical record for one uploaded recording.
type Meeting struct {
	ID             string    `json:"id"`
	Title          string    `json:"title"`
	OwnerID        string    `json:"ownerId"`
	AudioRef       string    `json:"audioRef"`
	Transcript     string    `json:"transcript,omitempty"`
	Summary        string    `json:"summary"`
	SummaryHistory []string  `json:"summaryHistory"`
	IsFavorite     bool      `json:"isFavorite"`
	UploadedAt     time.Time `json:"uploadedAt"`
}
