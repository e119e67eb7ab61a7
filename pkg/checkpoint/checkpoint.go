package checkpoint

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/quranlearn/contentpipe/internal/models"
)

// File persists generation progress as a single JSON document. Every save is
// a whole-file rewrite; the file is created on first save and never removed.
type File struct {
	path string
}

func New(path string) *File {
	return &File{path: path}
}

// Path returns the checkpoint file location.
func (f *File) Path() string {
	return f.path
}

// Load reads the checkpoint, returning a fresh one if the file does not
// exist yet.
func (f *File) Load() (*models.Checkpoint, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return models.NewCheckpoint(), nil
		}
		return nil, fmt.Errorf("reading checkpoint: %w", err)
	}

	var cp models.Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("parsing checkpoint: %w", err)
	}
	if cp.Errors == nil {
		cp.Errors = []models.Failure{}
	}
	return &cp, nil
}

// Save stamps the checkpoint and rewrites the file.
func (f *File) Save(cp *models.Checkpoint) error {
	cp.UpdatedAt = time.Now().Format(time.RFC3339)

	data, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return fmt.Errorf("marshalling checkpoint: %w", err)
	}
	if err := os.WriteFile(f.path, data, 0644); err != nil {
		return fmt.Errorf("writing checkpoint: %w", err)
	}
	return nil
}
