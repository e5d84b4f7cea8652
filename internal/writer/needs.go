package writer

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/nvoss/needforge/pkg/models"
)

// NeedsWriter appends extracted needs to a JSONL file, one record per line.
// Safe for concurrent use.
type NeedsWriter struct {
	file   *os.File
	mu     sync.Mutex
	logger *slog.Logger
	count  int
	path   string
}

// NewNeedsWriter creates a writer for the given path, truncating any
// existing file.
func NewNeedsWriter(path string, logger *slog.Logger) (*NeedsWriter, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create needs file: %w", err)
	}

	return &NeedsWriter{
		file:   file,
		logger: logger,
		path:   path,
	}, nil
}

// WriteRecord appends a single need record as one JSON line
func (w *NeedsWriter) WriteRecord(record models.NeedRecord) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal need record: %w", err)
	}

	data = append(data, '\n')
	if _, err := w.file.Write(data); err != nil {
		return fmt.Errorf("failed to write need record: %w", err)
	}

	w.count++
	return nil
}

// WriteExtraction appends every need in a unit's extraction
func (w *NeedsWriter) WriteExtraction(extraction models.UnitExtraction) error {
	for _, need := range extraction.Needs {
		if err := w.WriteRecord(need); err != nil {
			return err
		}
	}
	return nil
}

// Count returns the number of records written so far
func (w *NeedsWriter) Count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.count
}

// Close flushes and closes the underlying file
func (w *NeedsWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.file.Sync(); err != nil {
		w.logger.Warn("Failed to sync needs file", "error", err)
	}

	if err := w.file.Close(); err != nil {
		return fmt.Errorf("failed to close needs file: %w", err)
	}

	w.logger.Info("Needs file written", "path", w.path, "records", w.count)
	return nil
}
