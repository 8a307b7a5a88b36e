package storage

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// ArtifactStore keeps export archives on the local filesystem
type ArtifactStore struct {
	basePath string
	logger   *slog.Logger
}

// NewArtifactStore creates a new artifact store rooted at basePath
func NewArtifactStore(basePath string, logger *slog.Logger) (*ArtifactStore, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create artifact directory: %w", err)
	}

	return &ArtifactStore{
		basePath: basePath,
		logger:   logger,
	}, nil
}

// Create opens a new export archive for writing and returns its path.
// The caller must close the returned file.
func (s *ArtifactStore) Create(datasetID, name string) (*os.File, string, error) {
	dir := filepath.Join(s.basePath, "exports", datasetID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, "", fmt.Errorf("failed to create export directory: %w", err)
	}

	path := filepath.Join(dir, filepath.Base(name))
	f, err := os.Create(path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create export archive: %w", err)
	}

	s.logger.Info("export archive created",
		slog.String("dataset_id", datasetID),
		slog.String("path", path))

	return f, path, nil
}

// Open returns a reader for a previously written archive
func (s *ArtifactStore) Open(datasetID, name string) (io.ReadCloser, error) {
	path := filepath.Join(s.basePath, "exports", filepath.Base(datasetID), filepath.Base(name))

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("export archive not found: %s/%s", datasetID, name)
		}
		return nil, fmt.Errorf("failed to open export archive: %w", err)
	}

	return f, nil
}

// CleanupOldArchives removes archives older than the given duration
func (s *ArtifactStore) CleanupOldArchives(olderThan time.Duration) error {
	cutoff := time.Now().Add(-olderThan)
	exportsDir := filepath.Join(s.basePath, "exports")

	datasets, err := os.ReadDir(exportsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	for _, dataset := range datasets {
		if !dataset.IsDir() {
			continue
		}

		dir := filepath.Join(exportsDir, dataset.Name())
		files, err := os.ReadDir(dir)
		if err != nil {
			continue
		}

		for _, file := range files {
			info, err := file.Info()
			if err != nil {
				continue
			}
			if info.ModTime().Before(cutoff) {
				path := filepath.Join(dir, file.Name())
				if err := os.Remove(path); err != nil {
					s.logger.Warn("failed to remove old archive",
						slog.String("path", path),
						slog.Any("error", err))
				}
			}
		}
	}

	return nil
}
