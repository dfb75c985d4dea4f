// Package results reads and writes the batch result log.
package results

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/timvw/taxomap/internal/model"
)

// Write stores records as an indented JSON array at path, creating parent
// directories as needed. The file is replaced as a whole.
func Write(path string, records []model.Record) error {
	if records == nil {
		records = []model.Record{}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(records); err != nil {
		return fmt.Errorf("encoding results: %w", err)
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create results dir: %w", err)
		}
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write results %s: %w", path, err)
	}
	return nil
}

// Read loads a result log written by Write.
func Read(path string) ([]model.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read results %s: %w", path, err)
	}
	var records []model.Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("parse results %s: %w", path, err)
	}
	return records, nil
}

// Counts returns the number of MAPPED and UNMAPPED records.
func Counts(records []model.Record) (mapped, unmapped int) {
	for _, r := range records {
		if r.Status == model.StatusMapped {
			mapped++
		}
	}
	return mapped, len(records) - mapped
}
