// Package catalog loads the services offered in the "Informações" menu.
package catalog

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"dispatch_bot_backend/internal/domain"

	"gopkg.in/yaml.v3"
)

//go:embed services.yaml
var defaultCatalog []byte

// Service is one catalog entry.
type Service struct {
	ID             string `yaml:"id"`
	Name           string `yaml:"name"`
	Description    string `yaml:"description"`
	PriceFromCents int64  `yaml:"price_from_cents"`
}

// Summary is the text shown when the service is picked.
func (s Service) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "*%s*\n%s", s.Name, s.Description)
	if s.PriceFromCents > 0 {
		fmt.Fprintf(&b, "\n\nA partir de %s.", domain.FormatBRL(s.PriceFromCents))
	}
	return b.String()
}

// Catalog is an immutable list of services.
type Catalog struct {
	services []Service
}

type file struct {
	Services []Service `yaml:"services"`
}

// Parse decodes a YAML catalog.
func Parse(data []byte) (*Catalog, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	seen := make(map[string]struct{}, len(f.Services))
	for i, s := range f.Services {
		if s.ID == "" || s.Name == "" {
			return nil, fmt.Errorf("parse catalog: entry %d needs id and name", i+1)
		}
		if _, dup := seen[s.ID]; dup {
			return nil, fmt.Errorf("parse catalog: duplicate id %q", s.ID)
		}
		seen[s.ID] = struct{}{}
	}
	return &Catalog{services: f.Services}, nil
}

// Load reads the catalog at path, or the embedded default when path is empty.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Parse(defaultCatalog)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(data)
}

// Services returns the entries in file order.
func (c *Catalog) Services() []Service {
	return append([]Service(nil), c.services...)
}
