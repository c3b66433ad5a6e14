// Package catalog holds the read-only exercise reference list that game
// sessions unlock by tag.
package catalog

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"bossfit/internal/models"
)

//go:embed exercises.yaml
var defaultCatalog []byte

var tagCodes = map[rune]string{
	'C': models.TagCore,
	'L': models.TagLowerBody,
	'U': models.TagUpperBody,
	'B': models.TagBalance,
	'V': models.TagCardio,
}

type entry struct {
	Name       string `yaml:"name"`
	Difficulty string `yaml:"difficulty"`
	Tags       string `yaml:"tags"`
}

type Catalog struct {
	exercises []models.Exercise
}

// Load reads the catalog at path, or the built-in list when path is empty.
func Load(path string) (*Catalog, error) {
	data := defaultCatalog
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read catalog: %w", err)
		}
		data = raw
	}
	return Parse(data)
}

func Parse(data []byte) (*Catalog, error) {
	var entries []entry
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}

	c := &Catalog{exercises: make([]models.Exercise, 0, len(entries))}
	for i, e := range entries {
		if strings.TrimSpace(e.Name) == "" {
			return nil, fmt.Errorf("catalog entry %d: missing name", i)
		}
		difficulty := models.Difficulty(strings.ToLower(e.Difficulty))
		if !validDifficulty(difficulty) {
			return nil, fmt.Errorf("catalog entry %q: unknown difficulty %q", e.Name, e.Difficulty)
		}
		tags, err := decodeTags(e.Tags)
		if err != nil {
			return nil, fmt.Errorf("catalog entry %q: %w", e.Name, err)
		}
		c.exercises = append(c.exercises, models.Exercise{
			Name:       e.Name,
			Difficulty: difficulty,
			Tags:       tags,
		})
	}
	return c, nil
}

func validDifficulty(d models.Difficulty) bool {
	for _, known := range models.Difficulties {
		if d == known {
			return true
		}
	}
	return false
}

func decodeTags(codes string) ([]string, error) {
	var tags []string
	for _, r := range strings.ToUpper(codes) {
		tag, ok := tagCodes[r]
		if !ok {
			return nil, fmt.Errorf("unknown tag code %q", r)
		}
		tags = append(tags, tag)
	}
	return tags, nil
}

func (c *Catalog) Len() int {
	return len(c.exercises)
}

// ForTag groups exercise names carrying tag by difficulty. Every tier is
// present in the result, possibly empty, in catalog order.
func (c *Catalog) ForTag(tag string) map[models.Difficulty][]string {
	out := make(map[models.Difficulty][]string, len(models.Difficulties))
	for _, d := range models.Difficulties {
		out[d] = []string{}
	}
	for _, e := range c.exercises {
		if e.HasTag(tag) {
			out[e.Difficulty] = append(out[e.Difficulty], e.Name)
		}
	}
	return out
}
