package generator

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/quranlearn/contentpipe/internal/models"
	"github.com/quranlearn/contentpipe/internal/types"
	"github.com/quranlearn/contentpipe/pkg/llm"
)

type GeneratorConfig struct {
	// MinDelay is the minimum spacing between consecutive completion calls
	// and the base delay for retry backoff.
	MinDelay          time.Duration
	MaxRetries        int
	BackoffMultiplier int

	// OnVerse is called before a verse is processed.
	OnVerse func(done, total int, verse models.Verse)
	// OnRetry is called after a failed attempt that will be retried.
	OnRetry func(verse models.Verse, attempt int, wait time.Duration, err error)
	// OnOutcome is called once a verse reaches a terminal outcome.
	OnOutcome func(verse models.Verse, err error)
}

// Generator fills in the missing summary fields for every pending verse,
// one verse at a time. It survives transient upstream failures through
// per-verse retries and resumes from the checkpoint after interruption.
type Generator struct {
	config     GeneratorConfig
	source     types.SourceReader
	store      types.VerseStore
	engine     types.SummaryEngine
	checkpoint types.CheckpointStore
	limiter    *rate.Limiter
}

// Result summarizes one generation run.
type Result struct {
	// Total is the size of the work set for this run.
	Total int
	// Generated and Failed count this run's terminal outcomes.
	Generated int
	Failed    int
	// ExactWorkSet is false when the store could not be queried and the
	// checkpoint high-water mark was used instead. That fallback is an
	// over-approximation: it cannot see out-of-order completions.
	ExactWorkSet bool
	// Failures are this run's exhausted-retry records.
	Failures []models.Failure
}

func NewWithConfig(
	config GeneratorConfig,
	source types.SourceReader,
	verses types.VerseStore,
	engine types.SummaryEngine,
	cp types.CheckpointStore,
) *Generator {
	if config.MinDelay == 0 {
		config.MinDelay = 2 * time.Second
	}
	if config.MaxRetries == 0 {
		config.MaxRetries = 3
	}
	if config.BackoffMultiplier == 0 {
		config.BackoffMultiplier = 2
	}

	return &Generator{
		config:     config,
		source:     source,
		store:      verses,
		engine:     engine,
		checkpoint: cp,
		limiter:    rate.NewLimiter(rate.Every(config.MinDelay), 1),
	}
}

// Run processes every verse in the work set and reports the totals. Verses
// that exhaust their retries are recorded in the checkpoint and skipped;
// only checkpoint persistence problems end the run early.
func (g *Generator) Run(ctx context.Context) (Result, error) {
	var result Result

	cp, err := g.checkpoint.Load()
	if err != nil {
		return result, fmt.Errorf("loading checkpoint: %w", err)
	}

	verses, err := g.source.ReadNamedVerses(ctx)
	if err != nil {
		return result, fmt.Errorf("reading snapshot: %w", err)
	}

	remaining, exact := g.workSet(ctx, verses, cp)
	result.Total = len(remaining)
	result.ExactWorkSet = exact

	for i, verse := range remaining {
		if g.config.OnVerse != nil {
			g.config.OnVerse(i+1, len(remaining), verse)
		}

		err := g.processVerse(ctx, verse)
		if g.config.OnOutcome != nil {
			g.config.OnOutcome(verse, err)
		}

		if err != nil {
			if ctx.Err() != nil {
				return result, ctx.Err()
			}
			result.Failed++
			cp.RecordFailure(verse.ID, verse.Label(), err)
			result.Failures = append(result.Failures, cp.Errors[len(cp.Errors)-1])
		} else {
			result.Generated++
			cp.RecordSuccess(verse.ID)
		}

		if err := g.checkpoint.Save(cp); err != nil {
			return result, fmt.Errorf("saving checkpoint: %w", err)
		}
	}

	return result, nil
}

// workSet selects the verses still missing summaries. The store query is
// the exact set; when it fails, everything above the checkpoint high-water
// mark is treated as pending.
func (g *Generator) workSet(ctx context.Context, verses []models.Verse, cp *models.Checkpoint) ([]models.Verse, bool) {
	ids, err := g.store.PendingIDs(ctx)
	if err != nil {
		var remaining []models.Verse
		for _, v := range verses {
			if v.ID > cp.LastCompletedID {
				remaining = append(remaining, v)
			}
		}
		return remaining, false
	}

	pending := make(map[int]bool, len(ids))
	for _, id := range ids {
		pending[id] = true
	}

	var remaining []models.Verse
	for _, v := range verses {
		if pending[v.ID] {
			remaining = append(remaining, v)
		}
	}
	return remaining, true
}

// processVerse runs the whole per-verse unit (both language generations and
// the persist) with retries. The unit succeeds or fails as a whole.
func (g *Generator) processVerse(ctx context.Context, verse models.Verse) error {
	var lastErr error

	for attempt := 0; attempt < g.config.MaxRetries; attempt++ {
		if attempt > 0 {
			wait := g.backoff(attempt - 1)
			if g.config.OnRetry != nil {
				g.config.OnRetry(verse, attempt, wait, lastErr)
			}
			if err := sleepCtx(ctx, wait); err != nil {
				return err
			}
		}

		if err := g.enrich(ctx, verse); err != nil {
			lastErr = err
			if ctx.Err() != nil {
				return ctx.Err()
			}
			continue
		}
		return nil
	}

	return lastErr
}

func (g *Generator) enrich(ctx context.Context, verse models.Verse) error {
	if err := g.limiter.Wait(ctx); err != nil {
		return err
	}
	summaryEN, err := g.engine.Summarize(ctx, verse, llm.LanguageEnglish)
	if err != nil {
		return err
	}

	if err := g.limiter.Wait(ctx); err != nil {
		return err
	}
	summaryID, err := g.engine.Summarize(ctx, verse, llm.LanguageIndonesian)
	if err != nil {
		return err
	}

	return g.store.UpdateSummaries(ctx, verse.ID, models.SummaryUpdate{
		SummaryEN: summaryEN,
		SummaryID: summaryID,
	})
}

func (g *Generator) backoff(attempt int) time.Duration {
	wait := g.config.MinDelay
	for i := 0; i < attempt; i++ {
		wait *= time.Duration(g.config.BackoffMultiplier)
	}
	return wait
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
