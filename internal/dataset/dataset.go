// Package dataset loads batches of story cases.
package dataset

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/timvw/taxomap/internal/model"
)

// LoadCases reads a case batch file. Files ending in .yaml or .yml are
// decoded as YAML, everything else as JSON.
func LoadCases(path string) ([]model.StoryCase, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading cases %s: %w", path, err)
	}

	var cases []model.StoryCase
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &cases)
	default:
		err = json.Unmarshal(data, &cases)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing cases %s: %w", path, err)
	}
	return cases, nil
}
