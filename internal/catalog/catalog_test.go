package catalog

import (
	"errors"
	"strings"
	"testing"
)

// TestDefaultCatalog verifies the embedded templates parse and keep file order.
func TestDefaultCatalog(t *testing.T) {
	c := Default()
	templates := c.Templates()
	if len(templates) != 6 {
		t.Fatalf("templates = %d, want 6", len(templates))
	}
	if templates[0].ID != "strength_a" {
		t.Errorf("first template = %q, want strength_a", templates[0].ID)
	}

	mp, err := c.Lookup("machine_power")
	if err != nil {
		t.Fatalf("Lookup(machine_power): %v", err)
	}
	if mp.Exercises[0].ID != "m_chest" || mp.Exercises[0].Sets != 3 {
		t.Errorf("machine_power first exercise = %+v, want m_chest with 3 sets", mp.Exercises[0])
	}

	yoga, err := c.Lookup("yoga_flow")
	if err != nil {
		t.Fatalf("Lookup(yoga_flow): %v", err)
	}
	if yoga.Duration != 30 || len(yoga.Exercises) != 0 {
		t.Errorf("yoga_flow = %+v, want 30 min without exercises", yoga)
	}
}

// TestLookupUnknown verifies unknown IDs surface ErrTemplateNotFound.
func TestLookupUnknown(t *testing.T) {
	_, err := Default().Lookup("nope")
	if !errors.Is(err, ErrTemplateNotFound) {
		t.Fatalf("err = %v, want ErrTemplateNotFound", err)
	}
}

// TestLookupReturnsCopy verifies callers cannot mutate catalog state.
func TestLookupReturnsCopy(t *testing.T) {
	c := Default()
	tpl, _ := c.Lookup("strength_a")
	tpl.Exercises[0].Sets = 99

	again, _ := c.Lookup("strength_a")
	if again.Exercises[0].Sets != 3 {
		t.Errorf("catalog mutated through Lookup copy: sets = %d", again.Exercises[0].Sets)
	}
}

// TestExerciseAcrossTemplates verifies exercise lookup by ID over the whole catalog.
func TestExerciseAcrossTemplates(t *testing.T) {
	ex, ok := Default().Exercise("ld1")
	if !ok {
		t.Fatal("ld1 not found")
	}
	if ex.Name != "Lat Pulldown" {
		t.Errorf("name = %q, want Lat Pulldown", ex.Name)
	}
	if _, ok := Default().Exercise("missing"); ok {
		t.Error("unexpected hit for missing exercise")
	}
}

func TestValidation(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name: "structured without exercises",
			yaml: `
templates:
  - {id: s, name: S, type: strength}
`,
			wantErr: "needs exercises",
		},
		{
			name: "cardio without duration",
			yaml: `
templates:
  - {id: c, name: C, type: cardio}
`,
			wantErr: "needs a duration",
		},
		{
			name: "unknown type",
			yaml: `
templates:
  - {id: p, name: P, type: pilates, duration: 20}
`,
			wantErr: "unknown type",
		},
		{
			name: "zero sets",
			yaml: `
templates:
  - id: s
    name: S
    type: strength
    exercises:
      - {id: e1, name: E, sets: 0, reps: "10"}
`,
			wantErr: "positive set count",
		},
		{
			name: "duplicate template",
			yaml: `
templates:
  - {id: y, name: Y, type: yoga, duration: 10}
  - {id: y, name: Y2, type: yoga, duration: 20}
`,
			wantErr: "duplicate template id",
		},
		{
			name: "exercise id reused across templates",
			yaml: `
templates:
  - id: a
    name: A
    type: strength
    exercises:
      - {id: e1, name: E, sets: 1, reps: "10"}
  - id: b
    name: B
    type: functional
    exercises:
      - {id: e1, name: E, sets: 1, reps: "10"}
`,
			wantErr: "used by both",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("err = %q, want substring %q", err, tt.wantErr)
			}
		})
	}
}
