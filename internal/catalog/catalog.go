// Package catalog holds the fixed set of workout templates a session can be
// started from.
package catalog

import (
	_ "embed"
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Category groups templates by how a session is recorded.
type Category string

const (
	Strength   Category = "strength"
	Functional Category = "functional"
	Cardio     Category = "cardio"
	Yoga       Category = "yoga"
)

// Structured reports whether sessions of this category record per-set data.
func (c Category) Structured() bool {
	return c == Strength || c == Functional
}

func (c Category) valid() bool {
	switch c {
	case Strength, Functional, Cardio, Yoga:
		return true
	}
	return false
}

// ErrTemplateNotFound is returned by Lookup for unknown template IDs.
var ErrTemplateNotFound = errors.New("template not found")

// Exercise is one movement within a template.
type Exercise struct {
	ID    string `yaml:"id" json:"id"`
	Name  string `yaml:"name" json:"name"`
	Sets  int    `yaml:"sets" json:"sets"`
	Reps  string `yaml:"reps" json:"reps"`
	Rest  string `yaml:"rest" json:"rest,omitempty"`
	Notes string `yaml:"notes" json:"notes,omitempty"`
}

// Template is a named workout definition: either structured exercises or a
// plain duration.
type Template struct {
	ID        string     `yaml:"id" json:"id"`
	Name      string     `yaml:"name" json:"name"`
	Category  Category   `yaml:"type" json:"type"`
	Duration  int        `yaml:"duration" json:"duration,omitempty"`
	Exercises []Exercise `yaml:"exercises" json:"exercises,omitempty"`
}

// Catalog is an immutable, ordered template list.
type Catalog struct {
	templates []Template
	byID      map[string]int
}

//go:embed templates.yaml
var builtinYAML []byte

var builtin = mustParse(builtinYAML)

// Default returns the catalog compiled into the binary.
func Default() *Catalog {
	return builtin
}

func mustParse(data []byte) *Catalog {
	c, err := Parse(data)
	if err != nil {
		panic(fmt.Sprintf("catalog: builtin templates: %v", err))
	}
	return c
}

// Parse decodes and validates a YAML template list.
func Parse(data []byte) (*Catalog, error) {
	var doc struct {
		Templates []Template `yaml:"templates"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing templates: %w", err)
	}
	return New(doc.Templates)
}

// New validates templates and builds a catalog from them.
func New(templates []Template) (*Catalog, error) {
	c := &Catalog{
		templates: make([]Template, 0, len(templates)),
		byID:      make(map[string]int, len(templates)),
	}
	exerciseIDs := make(map[string]string)
	for _, t := range templates {
		if err := validate(t); err != nil {
			return nil, err
		}
		if _, dup := c.byID[t.ID]; dup {
			return nil, fmt.Errorf("duplicate template id %q", t.ID)
		}
		for _, ex := range t.Exercises {
			if owner, dup := exerciseIDs[ex.ID]; dup {
				return nil, fmt.Errorf("exercise id %q used by both %q and %q", ex.ID, owner, t.ID)
			}
			exerciseIDs[ex.ID] = t.ID
		}
		c.byID[t.ID] = len(c.templates)
		c.templates = append(c.templates, clone(t))
	}
	return c, nil
}

func validate(t Template) error {
	if t.ID == "" {
		return fmt.Errorf("template %q: id is required", t.Name)
	}
	if !t.Category.valid() {
		return fmt.Errorf("template %q: unknown type %q", t.ID, t.Category)
	}
	if t.Category.Structured() && len(t.Exercises) == 0 {
		return fmt.Errorf("template %q: %s template needs exercises", t.ID, t.Category)
	}
	if !t.Category.Structured() && t.Duration <= 0 {
		return fmt.Errorf("template %q: %s template needs a duration", t.ID, t.Category)
	}
	if t.Duration < 0 {
		return fmt.Errorf("template %q: negative duration", t.ID)
	}
	seen := make(map[string]bool, len(t.Exercises))
	for _, ex := range t.Exercises {
		if ex.ID == "" {
			return fmt.Errorf("template %q: exercise %q has no id", t.ID, ex.Name)
		}
		if seen[ex.ID] {
			return fmt.Errorf("template %q: duplicate exercise id %q", t.ID, ex.ID)
		}
		seen[ex.ID] = true
		if ex.Sets <= 0 {
			return fmt.Errorf("template %q: exercise %q needs a positive set count", t.ID, ex.ID)
		}
	}
	return nil
}

func clone(t Template) Template {
	if t.Exercises != nil {
		ex := make([]Exercise, len(t.Exercises))
		copy(ex, t.Exercises)
		t.Exercises = ex
	}
	return t
}

// Templates returns a copy of all templates in catalog order.
func (c *Catalog) Templates() []Template {
	out := make([]Template, len(c.templates))
	for i, t := range c.templates {
		out[i] = clone(t)
	}
	return out
}

// Lookup returns the template with the given ID.
func (c *Catalog) Lookup(id string) (Template, error) {
	i, ok := c.byID[id]
	if !ok {
		return Template{}, fmt.Errorf("%w: %s", ErrTemplateNotFound, id)
	}
	return clone(c.templates[i]), nil
}

// Exercise finds an exercise by ID across all templates.
func (c *Catalog) Exercise(id string) (Exercise, bool) {
	for _, t := range c.templates {
		for _, ex := range t.Exercises {
			if ex.ID == id {
				return ex, true
			}
		}
	}
	return Exercise{}, false
}
