package taxonomy

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

const sampleJSON = `{
  "Fiction": {
    "Romance": ["Slow-burn", "Enemies-to-Lovers", "Second Chance"],
    "Thriller": ["Espionage", "Psychological", "Legal Thriller"],
    "Horror": ["Psychological", "Slasher", "Gothic"]
  },
  "Meta": "not a mapping",
  "Speculative": {
    "Sci-Fi": ["Space Opera", "Cyberpunk"],
    "Notes": "ignored",
    "Fantasy": ["Epic", 42, "Urban"]
  }
}`

func TestParse_FlattensInFileOrder(t *testing.T) {
	tax, err := Parse([]byte(sampleJSON))
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}

	want := []string{
		"Slow-burn", "Enemies-to-Lovers", "Second Chance",
		"Espionage", "Psychological", "Legal Thriller",
		"Slasher", "Gothic",
		"Space Opera", "Cyberpunk",
		"Epic", "Urban",
	}
	if diff := cmp.Diff(want, tax.Labels()); diff != "" {
		t.Errorf("Labels() mismatch (-want +got):\n%s", diff)
	}
}

func TestParse_KeepsTree(t *testing.T) {
	tax, err := Parse([]byte(sampleJSON))
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}

	want := []Genre{
		{Name: "Fiction", Categories: []Category{
			{Name: "Romance", Labels: []string{"Slow-burn", "Enemies-to-Lovers", "Second Chance"}},
			{Name: "Thriller", Labels: []string{"Espionage", "Psychological", "Legal Thriller"}},
			{Name: "Horror", Labels: []string{"Psychological", "Slasher", "Gothic"}},
		}},
		{Name: "Speculative", Categories: []Category{
			{Name: "Sci-Fi", Labels: []string{"Space Opera", "Cyberpunk"}},
			{Name: "Fantasy", Labels: []string{"Epic", "Urban"}},
		}},
	}
	if diff := cmp.Diff(want, tax.Genres()); diff != "" {
		t.Errorf("Genres() mismatch (-want +got):\n%s", diff)
	}
}

func TestParse_YAML(t *testing.T) {
	doc := `
Fiction:
  Horror:
    - Slasher
    - Cosmic
`
	tax, err := Parse([]byte(doc))
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if diff := cmp.Diff([]string{"Slasher", "Cosmic"}, tax.Labels()); diff != "" {
		t.Errorf("Labels() mismatch (-want +got):\n%s", diff)
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"root is a list", `["Slasher"]`},
		{"malformed", `{"Fiction": [`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse([]byte(tt.doc)); err == nil {
				t.Errorf("Parse(%q) expected error", tt.doc)
			}
		})
	}
}

func TestParse_EmptyDocument(t *testing.T) {
	tax, err := Parse(nil)
	if err != nil {
		t.Fatalf("Parse(nil) error: %v", err)
	}
	if len(tax.Labels()) != 0 {
		t.Errorf("Labels() = %v, want empty", tax.Labels())
	}
}

func TestLabels_ReturnsCopy(t *testing.T) {
	tax, err := Parse([]byte(sampleJSON))
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	labels := tax.Labels()
	labels[0] = "mutated"
	if tax.Labels()[0] != "Slow-burn" {
		t.Error("Labels() exposed internal slice")
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "taxonomy.json")
	if err := os.WriteFile(path, []byte(sampleJSON), 0644); err != nil {
		t.Fatal(err)
	}

	tax, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if len(tax.Labels()) != 12 {
		t.Errorf("Labels(): got %d, want 12", len(tax.Labels()))
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("Load() of missing file should fail")
	}
}

func TestParse_JSONEscapes(t *testing.T) {
	doc := `{"Fiction": {"Romance": ["A\/B", "Café", "Tab\tbed"]}}`
	tax, err := Parse([]byte(doc))
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if diff := cmp.Diff([]string{"A/B", "Café", "Tab\tbed"}, tax.Labels()); diff != "" {
		t.Errorf("Labels() mismatch (-want +got):\n%s", diff)
	}
	if got := tax.Genres()[0].Categories[0].Name; got != "Romance" {
		t.Errorf("category name = %q, want %q", got, "Romance")
	}
}

func TestParse_JSONWithLeadingWhitespace(t *testing.T) {
	tax, err := Parse([]byte("\n\t  {\"F\": {\"R\": [\"x\\/y\"]}}"))
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if diff := cmp.Diff([]string{"x/y"}, tax.Labels()); diff != "" {
		t.Errorf("Labels() mismatch (-want +got):\n%s", diff)
	}
}

func TestLoad_ByExtension(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"escaped.json": `{"Fiction": {"Horror": ["Slasher", "Found\/Footage"]}}`,
		"flow.yaml":    `{Fiction: {Horror: [Slasher, Found/Footage]}}`,
		"block.yml":    "Fiction:\n  Horror:\n    - Slasher\n    - Found/Footage\n",
	}
	for name, content := range files {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			if err := os.WriteFile(path, []byte(content), 0644); err != nil {
				t.Fatal(err)
			}
			tax, err := Load(path)
			if err != nil {
				t.Fatalf("Load() error: %v", err)
			}
			if diff := cmp.Diff([]string{"Slasher", "Found/Footage"}, tax.Labels()); diff != "" {
				t.Errorf("Labels() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestLoad_JSONRootMustBeObject(t *testing.T) {
	path := filepath.Join(t.TempDir(), "taxonomy.json")
	if err := os.WriteFile(path, []byte(`["Slasher"]`), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("Load() of a JSON array should fail")
	}
}
