// Package taxonomy loads the genre tree and exposes its leaf labels.
//
// The file is a two-level mapping: top-level genre → sub-category → ordered
// list of leaf labels. JSON and YAML are both accepted. JSON is walked with
// gjson and YAML through yaml.Node, so the file's key order is preserved
// either way.
package taxonomy

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/gjson"
	"gopkg.in/yaml.v3"
)

// Genre is a top-level taxonomy entry.
type Genre struct {
	Name       string
	Categories []Category
}

// Category is a sub-category holding leaf labels.
type Category struct {
	Name   string
	Labels []string
}

// Taxonomy is the parsed genre tree plus its flattened leaf labels.
type Taxonomy struct {
	genres []Genre
	labels []string
}

// Load reads and parses the taxonomy file at path.
func Load(path string) (*Taxonomy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading taxonomy %s: %w", path, err)
	}
	var t *Taxonomy
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		t, err = parseJSON(data)
	case ".yaml", ".yml":
		t, err = parseYAML(data)
	default:
		t, err = Parse(data)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing taxonomy %s: %w", path, err)
	}
	return t, nil
}

// Parse decodes a taxonomy document. A document whose first non-space byte
// is '{' is read as JSON, anything else as YAML. Non-mapping genre values and
// non-sequence category values are ignored rather than rejected, as are
// non-string labels.
func Parse(data []byte) (*Taxonomy, error) {
	if trimmed := bytes.TrimLeft(data, " \t\r\n"); len(trimmed) > 0 && trimmed[0] == '{' {
		return parseJSON(data)
	}
	return parseYAML(data)
}

func parseJSON(data []byte) (*Taxonomy, error) {
	if !gjson.ValidBytes(data) {
		return nil, errors.New("invalid JSON")
	}
	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return nil, errors.New("taxonomy root must be an object")
	}

	var genres []Genre
	root.ForEach(func(genreKey, genreVal gjson.Result) bool {
		if !genreVal.IsObject() {
			return true
		}
		g := Genre{Name: genreKey.String()}
		genreVal.ForEach(func(catKey, catVal gjson.Result) bool {
			if !catVal.IsArray() {
				return true
			}
			c := Category{Name: catKey.String()}
			catVal.ForEach(func(_, item gjson.Result) bool {
				if item.Type == gjson.String {
					c.Labels = append(c.Labels, item.Str)
				}
				return true
			})
			g.Categories = append(g.Categories, c)
			return true
		})
		genres = append(genres, g)
		return true
	})
	return newTaxonomy(genres), nil
}

func parseYAML(data []byte) (*Taxonomy, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}

	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return &Taxonomy{}, nil
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("taxonomy root must be a mapping, got %s", kindName(root.Kind))
	}

	var genres []Genre
	for i := 0; i+1 < len(root.Content); i += 2 {
		genreKey, genreVal := root.Content[i], root.Content[i+1]
		if genreVal.Kind != yaml.MappingNode {
			continue
		}
		g := Genre{Name: genreKey.Value}
		for j := 0; j+1 < len(genreVal.Content); j += 2 {
			catKey, catVal := genreVal.Content[j], genreVal.Content[j+1]
			if catVal.Kind != yaml.SequenceNode {
				continue
			}
			c := Category{Name: catKey.Value}
			for _, item := range catVal.Content {
				if item.Kind == yaml.ScalarNode && item.Tag == "!!str" {
					c.Labels = append(c.Labels, item.Value)
				}
			}
			g.Categories = append(g.Categories, c)
		}
		genres = append(genres, g)
	}
	return newTaxonomy(genres), nil
}

// newTaxonomy flattens genres into unique leaf labels in file order.
func newTaxonomy(genres []Genre) *Taxonomy {
	t := &Taxonomy{genres: genres}
	seen := make(map[string]bool)
	for _, g := range genres {
		for _, c := range g.Categories {
			for _, l := range c.Labels {
				if !seen[l] {
					seen[l] = true
					t.labels = append(t.labels, l)
				}
			}
		}
	}
	return t
}

// Labels returns the unique leaf labels in file order.
func (t *Taxonomy) Labels() []string {
	out := make([]string, len(t.labels))
	copy(out, t.labels)
	return out
}

// Genres returns the genre tree.
func (t *Taxonomy) Genres() []Genre {
	return t.genres
}

func kindName(k yaml.Kind) string {
	switch k {
	case yaml.SequenceNode:
		return "sequence"
	case yaml.ScalarNode:
		return "scalar"
	case yaml.AliasNode:
		return "alias"
	default:
		return "unknown"
	}
}
