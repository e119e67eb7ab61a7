package models

import "time"

// Checkpoint is the durable progress record for the summary generator. It is
// rewritten whole after every verse reaches a terminal outcome. The remote
// store remains the source of truth for "needs enrichment"; the checkpoint's
// high-water mark is only a fallback when the store cannot be queried.
type Checkpoint struct {
	LastCompletedID int       `json:"last_completed_id"`
	TotalGenerated  int       `json:"total_generated"`
	Errors          []Failure `json:"errors"`
	StartedAt       string    `json:"started_at"`
	UpdatedAt       string    `json:"updated_at,omitempty"`
}

// Failure records one verse whose retries were exhausted.
type Failure struct {
	AyahID    int    `json:"ayah_id"`
	SurahAyah string `json:"surah_ayah"`
	Error     string `json:"error"`
	Timestamp string `json:"timestamp"`
}

// NewCheckpoint returns the initial state for a first run.
func NewCheckpoint() *Checkpoint {
	return &Checkpoint{
		Errors:    []Failure{},
		StartedAt: time.Now().Format(time.RFC3339),
	}
}

// RecordSuccess advances the high-water mark after a fully persisted verse.
func (c *Checkpoint) RecordSuccess(ayahID int) {
	c.LastCompletedID = ayahID
	c.TotalGenerated++
}

// RecordFailure appends an exhausted-retry failure entry.
func (c *Checkpoint) RecordFailure(ayahID int, label string, err error) {
	c.Errors = append(c.Errors, Failure{
		AyahID:    ayahID,
		SurahAyah: label,
		Error:     err.Error(),
		Timestamp: time.Now().Format(time.RFC3339),
	})
}
