package types

import (
	"context"

	"github.com/quranlearn/contentpipe/internal/models"
)

// Core interfaces
type SourceReader interface {
	ReadVerses(ctx context.Context) ([]models.Verse, error)
	ReadNamedVerses(ctx context.Context) ([]models.Verse, error)
	Count(ctx context.Context) (int, error)
	Close() error
}

type VerseStore interface {
	UpsertBatch(ctx context.Context, records []models.UpsertRecord) error
	UpsertOne(ctx context.Context, record models.UpsertRecord) error
	PendingIDs(ctx context.Context) ([]int, error)
	UpdateSummaries(ctx context.Context, id int, update models.SummaryUpdate) error
	Count(ctx context.Context) (int, error)
}

type SummaryEngine interface {
	Summarize(ctx context.Context, verse models.Verse, language string) (string, error)
}

type CheckpointStore interface {
	Load() (*models.Checkpoint, error)
	Save(cp *models.Checkpoint) error
}
