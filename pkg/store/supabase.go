package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/quranlearn/contentpipe/internal/models"
)

// ErrConflict marks a duplicate-key response from the store. Upsert callers
// treat it as "already present", not as a failure.
var ErrConflict = errors.New("duplicate key conflict")

const maxResponseBytes = 10 * 1024 * 1024

type VerseStoreConfig struct {
	BaseURL     string
	ServiceRole string
	Table       string
	Timeout     time.Duration
}

// VerseStore is a client for the remote table's REST surface. All requests
// carry the service-role credential as both bearer token and API key.
type VerseStore struct {
	config VerseStoreConfig
	client *http.Client
}

func NewWithConfig(config VerseStoreConfig) (*VerseStore, error) {
	if config.BaseURL == "" {
		return nil, fmt.Errorf("store base URL is required")
	}
	if config.ServiceRole == "" {
		return nil, fmt.Errorf("store service role is required")
	}
	if config.Table == "" {
		config.Table = "ayat"
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}

	return &VerseStore{
		config: config,
		client: &http.Client{Timeout: config.Timeout},
	}, nil
}

func (s *VerseStore) tableURL(query string) string {
	url := strings.TrimRight(s.config.BaseURL, "/") + "/rest/v1/" + s.config.Table
	if query != "" {
		url += "?" + query
	}
	return url
}

func (s *VerseStore) newRequest(ctx context.Context, method, url string, body []byte) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("apikey", s.config.ServiceRole)
	req.Header.Set("Authorization", "Bearer "+s.config.ServiceRole)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

func (s *VerseStore) do(req *http.Request) (int, []byte, error) {
	resp, err := s.client.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("reading response: %w", err)
	}
	return resp.StatusCode, body, nil
}

// UpsertBatch sends one batch of records as a single merge-on-duplicate
// insert. A 409 response is reported as ErrConflict so the caller can fall
// back to individual submissions.
func (s *VerseStore) UpsertBatch(ctx context.Context, records []models.UpsertRecord) error {
	return s.upsert(ctx, records)
}

// UpsertOne submits a single record with the same merge semantics.
func (s *VerseStore) UpsertOne(ctx context.Context, record models.UpsertRecord) error {
	return s.upsert(ctx, []models.UpsertRecord{record})
}

func (s *VerseStore) upsert(ctx context.Context, records []models.UpsertRecord) error {
	payload, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("marshalling records: %w", err)
	}

	req, err := s.newRequest(ctx, http.MethodPost, s.tableURL(""), payload)
	if err != nil {
		return err
	}
	req.Header.Set("Prefer", "resolution=merge-duplicates")

	status, body, err := s.do(req)
	if err != nil {
		return err
	}
	if status == http.StatusConflict {
		return fmt.Errorf("%w: %s", ErrConflict, strings.TrimSpace(string(body)))
	}
	if status < 200 || status > 299 {
		return fmt.Errorf("upsert failed with status %d: %s", status, strings.TrimSpace(string(body)))
	}
	return nil
}

// PendingIDs returns the identifiers of rows whose English summary column is
// still null, ordered by id. This is the exact work set; callers fall back
// to the checkpoint only when this query fails.
func (s *VerseStore) PendingIDs(ctx context.Context) ([]int, error) {
	url := s.tableURL("select=id&context_summary_en=is.null&order=id")
	req, err := s.newRequest(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	status, body, err := s.do(req)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("pending query failed with status %d: %s", status, strings.TrimSpace(string(body)))
	}

	var rows []struct {
		ID int `json:"id"`
	}
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("parsing pending ids: %w", err)
	}

	ids := make([]int, len(rows))
	for i, row := range rows {
		ids[i] = row.ID
	}
	return ids, nil
}

// UpdateSummaries writes both summary columns for one verse via a partial
// update keyed by identifier.
func (s *VerseStore) UpdateSummaries(ctx context.Context, id int, update models.SummaryUpdate) error {
	payload, err := json.Marshal(update)
	if err != nil {
		return fmt.Errorf("marshalling update: %w", err)
	}

	url := s.tableURL("id=eq." + strconv.Itoa(id))
	req, err := s.newRequest(ctx, http.MethodPatch, url, payload)
	if err != nil {
		return err
	}
	req.Header.Set("Prefer", "return=minimal")

	status, body, err := s.do(req)
	if err != nil {
		return err
	}
	if status < 200 || status > 299 {
		return fmt.Errorf("update failed with status %d: %s", status, strings.TrimSpace(string(body)))
	}
	return nil
}

// Count returns the exact number of rows in the remote table, taken from the
// Content-Range header of a count query.
func (s *VerseStore) Count(ctx context.Context) (int, error) {
	req, err := s.newRequest(ctx, http.MethodGet, s.tableURL("select=count"), nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Prefer", "count=exact")

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, fmt.Errorf("count query failed with status %d", resp.StatusCode)
	}

	// Content-Range looks like "0-99/6236"; the total follows the slash.
	contentRange := resp.Header.Get("Content-Range")
	idx := strings.LastIndex(contentRange, "/")
	if idx == -1 {
		return 0, fmt.Errorf("missing count in Content-Range %q", contentRange)
	}

	count, err := strconv.Atoi(contentRange[idx+1:])
	if err != nil {
		return 0, fmt.Errorf("parsing count from Content-Range %q: %w", contentRange, err)
	}
	return count, nil
}
