package persona

import (
	"slices"
	"strings"
)

// Directive is the task bound to a persona.
type Directive struct {
	Description    string `json:"description"`
	ExpectedOutput string `json:"expected_output"`
}

// Persona is an immutable agent definition. Callers receive copies; the
// registry never hands out its own storage.
type Persona struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	Goal      string    `json:"goal"`
	Backstory string    `json:"backstory"`
	Task      Directive `json:"task"`
	Tools     []string  `json:"tools"`
}

func (p Persona) clone() Persona {
	p.Tools = slices.Clone(p.Tools)
	return p
}

// DirectiveSpec is the task half of a Spec.
type DirectiveSpec struct {
	Description    string `json:"description" toml:"description"`
	ExpectedOutput string `json:"expected_output" toml:"expected_output"`
}

// Spec is the client-supplied definition of a persona. It is what create and
// import accept and what config seeds decode into. An exported Persona decodes
// into a Spec; its id is ignored.
type Spec struct {
	Name      string         `json:"name" toml:"name"`
	Role      string         `json:"role" toml:"role"`
	Goal      string         `json:"goal" toml:"goal"`
	Backstory string         `json:"backstory" toml:"backstory"`
	Tools     []string       `json:"tools" toml:"tools"`
	Task      *DirectiveSpec `json:"task" toml:"task"`
}

// Validate reports every required field that is absent, in a fixed order.
// A nil tools list is missing; an empty one is not.
func (s Spec) Validate() error {
	var missing []string
	check := func(field, v string) {
		if strings.TrimSpace(v) == "" {
			missing = append(missing, field)
		}
	}

	check("name", s.Name)
	check("role", s.Role)
	check("goal", s.Goal)
	check("backstory", s.Backstory)
	if s.Tools == nil {
		missing = append(missing, "tools")
	}
	if s.Task == nil {
		missing = append(missing, "task.description", "task.expected_output")
	} else {
		check("task.description", s.Task.Description)
		check("task.expected_output", s.Task.ExpectedOutput)
	}

	if len(missing) > 0 {
		return &ValidationError{Missing: missing}
	}
	return nil
}

// ValidationError lists the required fields missing from a Spec.
type ValidationError struct {
	Missing []string
}

func (e *ValidationError) Error() string {
	return "missing required fields: " + strings.Join(e.Missing, ", ")
}
