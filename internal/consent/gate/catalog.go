package gate

import (
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"consentd/internal/consent/models"
)

// Integration is a third-party consumer that may only load once its category
// is allowed.
type Integration struct {
	Name        string          `yaml:"name" json:"name"`
	Category    models.Category `yaml:"category" json:"category"`
	Src         string          `yaml:"src" json:"src"`
	Description string          `yaml:"description,omitempty" json:"description,omitempty"`
}

type catalogFile struct {
	Integrations []Integration `yaml:"integrations"`
}

// Catalog is the immutable set of known integrations.
type Catalog struct {
	integrations []Integration
	byName       map[string]Integration
}

// LoadCatalog reads a YAML catalog from path.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read integration catalog %s: %w", path, err)
	}
	return ParseCatalog(data)
}

// ParseCatalog decodes and validates a YAML catalog. Names must be unique and
// every category must be known.
func ParseCatalog(data []byte) (*Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse integration catalog: %w", err)
	}
	return NewCatalog(f.Integrations...)
}

func NewCatalog(integrations ...Integration) (*Catalog, error) {
	c := &Catalog{byName: make(map[string]Integration, len(integrations))}
	for i, in := range integrations {
		if in.Name == "" {
			return nil, fmt.Errorf("integration %d: name required", i)
		}
		if !in.Category.IsValid() {
			return nil, fmt.Errorf("integration %s: unknown category %q", in.Name, in.Category)
		}
		if _, dup := c.byName[in.Name]; dup {
			return nil, fmt.Errorf("integration %s: duplicate name", in.Name)
		}
		c.byName[in.Name] = in
		c.integrations = append(c.integrations, in)
	}
	slices.SortFunc(c.integrations, func(a, b Integration) int {
		switch {
		case a.Name < b.Name:
			return -1
		case a.Name > b.Name:
			return 1
		}
		return 0
	})
	return c, nil
}

// All returns every integration sorted by name.
func (c *Catalog) All() []Integration {
	return slices.Clone(c.integrations)
}

func (c *Catalog) Lookup(name string) (Integration, bool) {
	in, ok := c.byName[name]
	return in, ok
}

// AllowedBy lists the integrations prefs permits, sorted by name.
func (c *Catalog) AllowedBy(prefs models.Preferences) []Integration {
	out := make([]Integration, 0, len(c.integrations))
	for _, in := range c.integrations {
		if prefs.Allows(in.Category) {
			out = append(out, in)
		}
	}
	return out
}
