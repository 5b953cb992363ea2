package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
)

// Model is one catalog entry for a manufacturer.
type Model struct {
	Name       string `json:"name"`
	PrimaryUse string `json:"primary_use"`
}

// Catalog is the read-only reference catalog: manufacturer name to known
// models, plus the flat set of all known manufacturer names. Loaded once at
// startup and injected wherever listing text needs matching.
type Catalog struct {
	models        map[string][]Model
	manufacturers []string
}

// Load reads the models file (manufacturer -> [{name, primary_use}]) and an
// optional manufacturers file (flat JSON array of names). When the second
// path is empty the manufacturer set defaults to the models file's keys.
func Load(modelsPath, manufacturersPath string) (*Catalog, error) {
	data, err := os.ReadFile(modelsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog models: %w", err)
	}

	models := make(map[string][]Model)
	if err := json.Unmarshal(data, &models); err != nil {
		return nil, fmt.Errorf("failed to parse catalog models: %w", err)
	}

	var manufacturers []string
	if manufacturersPath != "" {
		data, err := os.ReadFile(manufacturersPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read manufacturer list: %w", err)
		}
		if err := json.Unmarshal(data, &manufacturers); err != nil {
			return nil, fmt.Errorf("failed to parse manufacturer list: %w", err)
		}
	} else {
		for name := range models {
			manufacturers = append(manufacturers, name)
		}
	}
	sort.Strings(manufacturers)

	return &Catalog{models: models, manufacturers: manufacturers}, nil
}

// New builds a catalog from already-loaded data. Used by tests and callers
// that source the catalog elsewhere.
func New(models map[string][]Model, manufacturers []string) *Catalog {
	if manufacturers == nil {
		for name := range models {
			manufacturers = append(manufacturers, name)
		}
		sort.Strings(manufacturers)
	}
	return &Catalog{models: models, manufacturers: manufacturers}
}

// ModelsFor returns the known models for a manufacturer, nil if unknown.
func (c *Catalog) ModelsFor(manufacturer string) []Model {
	if models, ok := c.models[manufacturer]; ok {
		return models
	}
	// Manufacturer keys come from curated data; tolerate case drift from
	// operator-supplied target names.
	for name, models := range c.models {
		if strings.EqualFold(name, manufacturer) {
			return models
		}
	}
	return nil
}

// Manufacturers returns every known manufacturer name.
func (c *Catalog) Manufacturers() []string {
	return c.manufacturers
}
