// Package persona provides the static catalog of conversation personas.
// The catalog is loaded once at process start and never mutated afterwards,
// so it is safe to share across concurrent conversations.
package persona

import (
	_ "embed"
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed personas.yaml
var catalogYAML []byte

// ErrNotFound is returned when a persona id is not in the catalog.
var ErrNotFound = errors.New("persona not found")

// Persona is a named conversational character with a fixed system prompt
// and a background image shown by the Mini App.
type Persona struct {
	ID              string `yaml:"id"`
	Name            string `yaml:"name"`
	SystemPrompt    string `yaml:"system_prompt"`
	BackgroundImage string `yaml:"background_image"`
}

// Catalog is a read-only set of personas keyed by id, preserving the
// declaration order for selection keyboards.
type Catalog struct {
	personas []Persona
	byID     map[string]*Persona
}

// LoadCatalog parses the embedded persona catalog.
func LoadCatalog() (*Catalog, error) {
	return parseCatalog(catalogYAML)
}

func parseCatalog(data []byte) (*Catalog, error) {
	var raw struct {
		Personas []Persona `yaml:"personas"`
	}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse persona catalog: %w", err)
	}
	if len(raw.Personas) == 0 {
		return nil, errors.New("persona catalog is empty")
	}

	c := &Catalog{
		personas: raw.Personas,
		byID:     make(map[string]*Persona, len(raw.Personas)),
	}
	for i := range c.personas {
		p := &c.personas[i]
		if p.ID == "" || p.Name == "" || p.SystemPrompt == "" {
			return nil, fmt.Errorf("persona %q is missing required fields", p.ID)
		}
		if _, dup := c.byID[p.ID]; dup {
			return nil, fmt.Errorf("duplicate persona id %q", p.ID)
		}
		c.byID[p.ID] = p
	}
	return c, nil
}

// Get returns the persona with the given id.
func (c *Catalog) Get(id string) (*Persona, error) {
	p, ok := c.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	return p, nil
}

// All returns the personas in declaration order.
func (c *Catalog) All() []Persona {
	return c.personas
}
