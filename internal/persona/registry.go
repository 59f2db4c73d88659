package persona

import (
	"slices"
	"strconv"
	"sync"
)

// Registry holds personas in memory for the life of the process. Identifiers
// come from a counter that only moves forward, so they are never reused.
type Registry struct {
	mu       sync.Mutex
	next     uint64
	personas map[string]Persona
	order    []string
}

func NewRegistry() *Registry {
	return &Registry{personas: make(map[string]Persona)}
}

// Create validates spec, assigns the next identifier and stores the persona.
func (r *Registry) Create(spec Spec) (Persona, error) {
	if err := spec.Validate(); err != nil {
		return Persona{}, err
	}

	p := Persona{
		Name:      spec.Name,
		Role:      spec.Role,
		Goal:      spec.Goal,
		Backstory: spec.Backstory,
		Task: Directive{
			Description:    spec.Task.Description,
			ExpectedOutput: spec.Task.ExpectedOutput,
		},
		Tools: slices.Clone(spec.Tools),
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.next++
	p.ID = strconv.FormatUint(r.next, 10)
	r.personas[p.ID] = p
	r.order = append(r.order, p.ID)

	return p.clone(), nil
}

func (r *Registry) Get(id string) (Persona, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.personas[id]
	if !ok {
		return Persona{}, false
	}
	return p.clone(), true
}

// List returns personas in creation order.
func (r *Registry) List() []Persona {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Persona, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.personas[id].clone())
	}
	return out
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.order)
}
