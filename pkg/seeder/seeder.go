package seeder

import (
	"context"
	"errors"
	"fmt"

	"github.com/quranlearn/contentpipe/internal/models"
	"github.com/quranlearn/contentpipe/internal/types"
	"github.com/quranlearn/contentpipe/pkg/store"
)

type SeederConfig struct {
	BatchSize int
	// OnBatch is called after each batch reaches a terminal outcome.
	OnBatch func(done, total int)
}

// Seeder copies verse rows from the local snapshot into the remote store.
// Re-running it against an unchanged snapshot is a no-op in effect: the
// upsert merges on identifier and conflicts mean "already present".
type Seeder struct {
	config SeederConfig
	source types.SourceReader
	store  types.VerseStore
}

// Result summarizes one seeding run. Warnings carry batch-level transport
// errors and the count mismatch, none of which halt the run.
type Result struct {
	SourceCount      int
	Batches          int
	ConflictBatches  int
	DestinationCount int
	CountVerified    bool
	Warnings         []string
}

func NewWithConfig(config SeederConfig, source types.SourceReader, verses types.VerseStore) *Seeder {
	if config.BatchSize == 0 {
		config.BatchSize = 100
	}
	return &Seeder{config: config, source: source, store: verses}
}

// Run reads all verses and upserts them in fixed-size batches.
func (s *Seeder) Run(ctx context.Context) (Result, error) {
	var result Result

	verses, err := s.source.ReadVerses(ctx)
	if err != nil {
		return result, fmt.Errorf("reading snapshot: %w", err)
	}
	result.SourceCount = len(verses)

	records := make([]models.UpsertRecord, len(verses))
	for i, v := range verses {
		records[i] = models.NewUpsertRecord(v)
	}

	total := (len(records) + s.config.BatchSize - 1) / s.config.BatchSize

	for i := 0; i < len(records); i += s.config.BatchSize {
		end := i + s.config.BatchSize
		if end > len(records) {
			end = len(records)
		}
		batch := records[i:end]
		batchNum := i/s.config.BatchSize + 1

		if err := s.store.UpsertBatch(ctx, batch); err != nil {
			if errors.Is(err, store.ErrConflict) {
				// Some rows already exist; resubmit one by one so the rest
				// of the batch still lands.
				result.ConflictBatches++
				s.upsertIndividually(ctx, batch, &result)
			} else {
				result.Warnings = append(result.Warnings,
					fmt.Sprintf("batch %d/%d failed: %v", batchNum, total, err))
			}
		}

		result.Batches++
		if s.config.OnBatch != nil {
			s.config.OnBatch(result.Batches, total)
		}
	}

	s.verifyCount(ctx, &result)
	return result, nil
}

func (s *Seeder) upsertIndividually(ctx context.Context, batch []models.UpsertRecord, result *Result) {
	for _, record := range batch {
		err := s.store.UpsertOne(ctx, record)
		if err == nil || errors.Is(err, store.ErrConflict) {
			continue
		}
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("record %d failed: %v", record.ID, err))
	}
}

// verifyCount compares destination and source row counts. A mismatch is a
// warning, not a failure; the cause is not diagnosed here.
func (s *Seeder) verifyCount(ctx context.Context, result *Result) {
	count, err := s.store.Count(ctx)
	if err != nil {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("count verification failed: %v", err))
		return
	}

	result.DestinationCount = count
	result.CountVerified = count == result.SourceCount
	if !result.CountVerified {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("expected %d verses in destination but found %d", result.SourceCount, count))
	}
}
