package generator_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quranlearn/contentpipe/internal/models"
	"github.com/quranlearn/contentpipe/pkg/checkpoint"
	"github.com/quranlearn/contentpipe/pkg/generator"
	"github.com/quranlearn/contentpipe/pkg/store"
)

// fakeRest emulates the remote table with pending-id queries and partial
// updates keyed by identifier.
type fakeRest struct {
	mu         sync.Mutex
	summaries  map[int]models.SummaryUpdate // id -> written summaries
	pending    []int
	pendingErr bool // fail the pending-id query
	patches    []string
}

func (f *fakeRest) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()

		switch r.Method {
		case http.MethodGet:
			if f.pendingErr {
				http.Error(w, "unreachable", http.StatusServiceUnavailable)
				return
			}
			remaining := []map[string]int{}
			for _, id := range f.pending {
				if _, done := f.summaries[id]; !done {
					remaining = append(remaining, map[string]int{"id": id})
				}
			}
			json.NewEncoder(w).Encode(remaining)

		case http.MethodPatch:
			idStr := strings.TrimPrefix(r.URL.Query().Get("id"), "eq.")
			id, err := strconv.Atoi(idStr)
			if err != nil {
				http.Error(w, "bad id filter", http.StatusBadRequest)
				return
			}

			body, err := io.ReadAll(r.Body)
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			var update models.SummaryUpdate
			if err := json.Unmarshal(body, &update); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			f.summaries[id] = update
			f.patches = append(f.patches, string(body))
			w.WriteHeader(http.StatusNoContent)

		default:
			http.Error(w, "unexpected method", http.StatusMethodNotAllowed)
		}
	})
}

// scriptedEngine returns fixed text, with optional per-call failures.
type scriptedEngine struct {
	mu    sync.Mutex
	text  string
	calls []string
	fail  func(call int, verse models.Verse, language string) error
}

func (e *scriptedEngine) Summarize(ctx context.Context, verse models.Verse, language string) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	call := len(e.calls)
	e.calls = append(e.calls, fmt.Sprintf("%d:%s", verse.ID, language))
	if e.fail != nil {
		if err := e.fail(call, verse, language); err != nil {
			return "", err
		}
	}
	return e.text, nil
}

type sliceSource struct {
	verses []models.Verse
}

func (s sliceSource) ReadVerses(ctx context.Context) ([]models.Verse, error)      { return s.verses, nil }
func (s sliceSource) ReadNamedVerses(ctx context.Context) ([]models.Verse, error) { return s.verses, nil }
func (s sliceSource) Count(ctx context.Context) (int, error)                      { return len(s.verses), nil }
func (s sliceSource) Close() error                                                { return nil }

type fixture struct {
	fake   *fakeRest
	engine *scriptedEngine
	cp     *checkpoint.File
	gen    *generator.Generator
}

func newFixture(t *testing.T, verses []models.Verse, pending []int) *fixture {
	t.Helper()

	fake := &fakeRest{summaries: map[int]models.SummaryUpdate{}, pending: pending}
	srv := httptest.NewServer(fake.handler())
	t.Cleanup(srv.Close)

	vs, err := store.NewWithConfig(store.VerseStoreConfig{BaseURL: srv.URL, ServiceRole: "r"})
	require.NoError(t, err)

	engine := &scriptedEngine{text: "T"}
	cp := checkpoint.New(filepath.Join(t.TempDir(), "progress.json"))

	gen := generator.NewWithConfig(generator.GeneratorConfig{
		MinDelay:          time.Millisecond,
		MaxRetries:        3,
		BackoffMultiplier: 2,
	}, sliceSource{verses}, vs, engine, cp)

	return &fixture{fake: fake, engine: engine, cp: cp, gen: gen}
}

func ayatKursi() models.Verse {
	return models.Verse{
		ID:            5,
		SurahID:       2,
		AyahNumber:    255,
		SurahName:     "Al-Baqarah",
		TextUthmani:   "ayat al-kursi uthmani",
		TranslationEN: "Allah - there is no deity except Him",
	}
}

func TestRunGeneratesBothSummaries(t *testing.T) {
	fx := newFixture(t, []models.Verse{ayatKursi()}, []int{5})

	result, err := fx.gen.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, result.Total)
	assert.Equal(t, 1, result.Generated)
	assert.Equal(t, 0, result.Failed)
	assert.True(t, result.ExactWorkSet)

	// Both languages generated, in order, then persisted in one PATCH.
	assert.Equal(t, []string{"5:English", "5:Indonesian"}, fx.engine.calls)
	require.Len(t, fx.fake.patches, 1)
	assert.JSONEq(t, `{"context_summary_en":"T","context_summary_id":"T"}`, fx.fake.patches[0])

	cp, err := fx.cp.Load()
	require.NoError(t, err)
	assert.Equal(t, 5, cp.LastCompletedID)
	assert.Equal(t, 1, cp.TotalGenerated)
	assert.Empty(t, cp.Errors)
}

func TestRunCompleteness(t *testing.T) {
	verses := []models.Verse{
		{ID: 1, SurahID: 1, AyahNumber: 1, SurahName: "Al-Fatihah"},
		{ID: 2, SurahID: 1, AyahNumber: 2, SurahName: "Al-Fatihah"},
		{ID: 3, SurahID: 1, AyahNumber: 3, SurahName: "Al-Fatihah"},
	}
	fx := newFixture(t, verses, []int{1, 2, 3})

	result, err := fx.gen.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, result.Generated)

	for _, v := range verses {
		update, ok := fx.fake.summaries[v.ID]
		require.True(t, ok, "verse %d missing summaries", v.ID)
		assert.NotEmpty(t, update.SummaryEN)
		assert.NotEmpty(t, update.SummaryID)
	}
}

func TestRunSkipsCompletedVerses(t *testing.T) {
	verses := []models.Verse{
		{ID: 1, SurahID: 1, AyahNumber: 1},
		{ID: 2, SurahID: 1, AyahNumber: 2},
		{ID: 3, SurahID: 1, AyahNumber: 3},
	}
	// Only verse 3 is still pending in the store.
	fx := newFixture(t, verses, []int{3})

	result, err := fx.gen.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, result.Total)
	assert.Equal(t, []string{"3:English", "3:Indonesian"}, fx.engine.calls)
}

func TestRunEmptyWorkSet(t *testing.T) {
	fx := newFixture(t, []models.Verse{ayatKursi()}, nil)

	result, err := fx.gen.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, result.Total)
	assert.Empty(t, fx.engine.calls)
}

func TestRunFallsBackToCheckpointWhenStoreUnreachable(t *testing.T) {
	verses := []models.Verse{
		{ID: 1, SurahID: 1, AyahNumber: 1},
		{ID: 2, SurahID: 1, AyahNumber: 2},
		{ID: 3, SurahID: 1, AyahNumber: 3},
	}
	fx := newFixture(t, verses, []int{1, 2, 3})
	fx.fake.pendingErr = true

	// Simulate a previous run that finished verse 1.
	cp, err := fx.cp.Load()
	require.NoError(t, err)
	cp.RecordSuccess(1)
	require.NoError(t, fx.cp.Save(cp))

	result, err := fx.gen.Run(context.Background())
	require.NoError(t, err)

	// High-water mark fallback: ids above 1, flagged as inexact.
	assert.False(t, result.ExactWorkSet)
	assert.Equal(t, 2, result.Total)
	assert.Equal(t, []string{"2:English", "2:Indonesian", "3:English", "3:Indonesian"}, fx.engine.calls)
}

func TestRunRetryExhaustion(t *testing.T) {
	verses := []models.Verse{ayatKursi(), {ID: 6, SurahID: 2, AyahNumber: 256, SurahName: "Al-Baqarah"}}
	fx := newFixture(t, verses, []int{5, 6})

	// Verse 5 always fails; verse 6 succeeds.
	fx.engine.fail = func(call int, verse models.Verse, language string) error {
		if verse.ID == 5 {
			return errors.New("upstream error 429")
		}
		return nil
	}

	result, err := fx.gen.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, result.Generated)
	assert.Equal(t, 1, result.Failed)

	// Three attempts for verse 5, each stopping at the English call.
	attempts := 0
	for _, call := range fx.engine.calls {
		if call == "5:English" {
			attempts++
		}
	}
	assert.Equal(t, 3, attempts)

	cp, err := fx.cp.Load()
	require.NoError(t, err)
	require.Len(t, cp.Errors, 1)
	assert.Equal(t, 5, cp.Errors[0].AyahID)
	assert.Equal(t, "2:255", cp.Errors[0].SurahAyah)
	assert.Contains(t, cp.Errors[0].Error, "429")
	assert.NotEmpty(t, cp.Errors[0].Timestamp)

	// The failed verse does not advance the high-water mark; verse 6 does.
	assert.Equal(t, 6, cp.LastCompletedID)
	assert.Equal(t, 1, cp.TotalGenerated)
}

func TestRunRetriesWholeUnit(t *testing.T) {
	fx := newFixture(t, []models.Verse{ayatKursi()}, []int{5})

	// First Indonesian call fails; the retry must redo English too.
	failed := false
	fx.engine.fail = func(call int, verse models.Verse, language string) error {
		if language == "Indonesian" && !failed {
			failed = true
			return errors.New("transient")
		}
		return nil
	}

	result, err := fx.gen.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, result.Generated)
	assert.Equal(t, []string{"5:English", "5:Indonesian", "5:English", "5:Indonesian"}, fx.engine.calls)
	require.Len(t, fx.fake.patches, 1)
}

func TestRunResumption(t *testing.T) {
	verses := []models.Verse{
		{ID: 1, SurahID: 1, AyahNumber: 1},
		{ID: 2, SurahID: 1, AyahNumber: 2},
	}
	fx := newFixture(t, verses, []int{1, 2})

	_, err := fx.gen.Run(context.Background())
	require.NoError(t, err)

	// Second run: the store now reports nothing pending.
	fx.engine.calls = nil
	result, err := fx.gen.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, result.Total)
	assert.Empty(t, fx.engine.calls)
}
