// Package persona holds the fixed set of bots a user can chat with.
package persona

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/eldtechnologies/chatsim/internal/models"
)

// DefaultID is the persona selected when nothing else is configured.
const DefaultID = "helper"

// Catalog is an immutable, ordered set of personas.
type Catalog struct {
	order []string
	byID  map[string]models.Persona
}

// NewCatalog validates personas and builds a catalog preserving their order.
func NewCatalog(personas []models.Persona) (*Catalog, error) {
	if len(personas) == 0 {
		return nil, fmt.Errorf("catalog needs at least one persona")
	}
	c := &Catalog{byID: make(map[string]models.Persona, len(personas))}
	for _, p := range personas {
		if p.ID == "" {
			return nil, fmt.Errorf("persona without id")
		}
		if _, dup := c.byID[p.ID]; dup {
			return nil, fmt.Errorf("duplicate persona %q", p.ID)
		}
		if len(p.ReplyPool) == 0 {
			return nil, fmt.Errorf("persona %q has an empty reply pool", p.ID)
		}
		if p.DisplayName == "" {
			p.DisplayName = p.ID
		}
		p.ReplyPool = append([]string(nil), p.ReplyPool...)
		c.byID[p.ID] = p
		c.order = append(c.order, p.ID)
	}
	return c, nil
}

// Lookup returns the persona with the given id.
func (c *Catalog) Lookup(id string) (models.Persona, bool) {
	p, ok := c.byID[id]
	if !ok {
		return models.Persona{}, false
	}
	p.ReplyPool = append([]string(nil), p.ReplyPool...)
	return p, true
}

// Has reports whether id names a persona in the catalog.
func (c *Catalog) Has(id string) bool {
	_, ok := c.byID[id]
	return ok
}

// List returns all personas in catalog order.
func (c *Catalog) List() []models.Persona {
	out := make([]models.Persona, 0, len(c.order))
	for _, id := range c.order {
		p, _ := c.Lookup(id)
		out = append(out, p)
	}
	return out
}

// First returns the id of the first persona.
func (c *Catalog) First() string {
	return c.order[0]
}

type catalogFile struct {
	Personas []models.Persona `yaml:"personas"`
}

// LoadFile reads a YAML catalog:
//
//	personas:
//	  - id: helper
//	    name: Helper
//	    avatar: https://...
//	    description: Friendly helper bot
//	    replies: ["Hi!"]
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return NewCatalog(f.Personas)
}
