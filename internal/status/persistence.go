// Package status provides run progress tracking and persistence for the driver.
package status

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

//go:generate mockgen -destination=mocks/mock_persistence.go -package=mocks -source=persistence.go Persistence

const (
	// FileName is the name of the run status file inside the state directory.
	FileName = "run-status.json"
)

// Persistence defines the interface for run status persistence.
type Persistence interface {
	// Save writes the run status to persistent storage.
	Save(ctx context.Context, status *RunStatus) error

	// Load reads the run status from persistent storage.
	// Returns (nil, nil) if no status has been written yet.
	Load(ctx context.Context) (*RunStatus, error)
}

// filePersistence implements Persistence on the local filesystem.
type filePersistence struct {
	basePath string
}

// NewFilePersistence creates a file-based status persistence rooted at
// basePath. The directory is created on first save.
func NewFilePersistence(basePath string) Persistence {
	return &filePersistence{basePath: basePath}
}

// Save writes the run status as pretty-printed JSON using a temp-file plus
// rename so readers never observe a partial file.
func (f *filePersistence) Save(_ context.Context, status *RunStatus) error {
	if err := os.MkdirAll(f.basePath, 0750); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	filePath := filepath.Join(f.basePath, FileName)

	data, err := json.MarshalIndent(status, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal run status: %w", err)
	}

	tempPath := filePath + ".tmp"
	if err := os.WriteFile(tempPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write temporary status file: %w", err)
	}

	if err := os.Rename(tempPath, filePath); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("failed to rename status file: %w", err)
	}

	return nil
}

// Load reads the run status file. A missing file is not an error; it simply
// means no run has been recorded in this state directory.
func (f *filePersistence) Load(_ context.Context) (*RunStatus, error) {
	filePath := filepath.Join(f.basePath, FileName)

	// #nosec G304 -- filePath is constructed from the configured state directory
	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read status file: %w", err)
	}

	var status RunStatus
	if err := json.Unmarshal(data, &status); err != nil {
		return nil, fmt.Errorf("failed to unmarshal run status: %w", err)
	}

	return &status, nil
}
