// Package qualification implements the data-driven lead qualification engine:
// a catalog of legal practice areas, each with an ordered question list,
// answer weight tables and urgency triggers.
package qualification

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultCatalogYAML []byte

// Question is a single qualification step within a category.
type Question struct {
	ID           string   `yaml:"id"`
	Prompt       string   `yaml:"prompt"`
	Options      []string `yaml:"options,omitempty"`
	FollowUp     string   `yaml:"followUp,omitempty"`
	UrgencyCheck bool     `yaml:"urgencyCheck,omitempty"`
	HighPriority []string `yaml:"highPriority,omitempty"`
}

// Category groups the questions, score weights and classifier keywords for
// one legal practice area.
type Category struct {
	Name      string         `yaml:"name"`
	Keywords  []string       `yaml:"keywords"`
	Questions []Question     `yaml:"questions"`
	Weights   map[string]int `yaml:"weights"`
}

// Catalog holds all configured categories in declaration order.
type Catalog struct {
	categories []Category
	byName     map[string]*Category
}

type catalogFile struct {
	Categories []Category `yaml:"categories"`
}

// Parse builds a catalog from YAML bytes.
func Parse(data []byte) (*Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if len(file.Categories) == 0 {
		return nil, fmt.Errorf("catalog has no categories")
	}

	catalog := &Catalog{
		categories: file.Categories,
		byName:     make(map[string]*Category, len(file.Categories)),
	}
	for i := range catalog.categories {
		cat := &catalog.categories[i]
		if cat.Name == "" {
			return nil, fmt.Errorf("catalog category %d has no name", i)
		}
		if len(cat.Questions) == 0 {
			return nil, fmt.Errorf("category %q has no questions", cat.Name)
		}
		for _, q := range cat.Questions {
			if q.ID == "" || q.Prompt == "" {
				return nil, fmt.Errorf("category %q has a question without id or prompt", cat.Name)
			}
		}
		catalog.byName[cat.Name] = cat
	}
	return catalog, nil
}

// LoadFile reads a catalog from a YAML file on disk.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog file: %w", err)
	}
	return Parse(data)
}

// Default returns the embedded catalog. It panics on a malformed embed,
// which is a build defect rather than a runtime condition.
func Default() *Catalog {
	catalog, err := Parse(defaultCatalogYAML)
	if err != nil {
		panic(err)
	}
	return catalog
}

// Category returns the category with the given name.
func (c *Catalog) Category(name string) (*Category, bool) {
	cat, ok := c.byName[name]
	return cat, ok
}

// Names returns category names in declaration order.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.categories))
	for _, cat := range c.categories {
		names = append(names, cat.Name)
	}
	return names
}

// Categories returns all categories in declaration order.
func (c *Catalog) Categories() []Category {
	return c.categories
}

// Question returns the question at the given zero-based step.
func (cat *Category) Question(step int) (Question, bool) {
	if step < 0 || step >= len(cat.Questions) {
		return Question{}, false
	}
	return cat.Questions[step], true
}

// QuestionCount returns the number of qualification steps.
func (cat *Category) QuestionCount() int {
	return len(cat.Questions)
}
