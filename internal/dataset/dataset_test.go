package dataset

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/timvw/taxomap/internal/model"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadCases(t *testing.T) {
	want := []model.StoryCase{
		{ID: 1, UserTags: []string{"romance", "bakery"}, Blurb: "Two rival bakers fall for each other."},
		{ID: 2, Blurb: "Step-by-step guide: mix flour and bake at 350 degrees"},
	}

	tests := []struct {
		name    string
		file    string
		content string
	}{
		{
			name: "json",
			file: "cases.json",
			content: `[
  {"id": 1, "user_tags": ["romance", "bakery"], "blurb": "Two rival bakers fall for each other."},
  {"id": 2, "blurb": "Step-by-step guide: mix flour and bake at 350 degrees"}
]`,
		},
		{
			name: "yaml",
			file: "cases.yml",
			content: `- id: 1
  user_tags: [romance, bakery]
  blurb: Two rival bakers fall for each other.
- id: 2
  blurb: "Step-by-step guide: mix flour and bake at 350 degrees"
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := LoadCases(writeFile(t, tt.file, tt.content))
			if err != nil {
				t.Fatalf("LoadCases() error: %v", err)
			}
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("LoadCases() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestLoadCases_Errors(t *testing.T) {
	if _, err := LoadCases(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}
	if _, err := LoadCases(writeFile(t, "bad.json", `{"id": 1}`)); err == nil {
		t.Error("expected error for non-array JSON")
	}
}
