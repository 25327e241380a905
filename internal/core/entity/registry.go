package entity

import (
	"fmt"
	"sort"
)

// Definition describes one registered entity type.
//
// Extends names the root definition for table-per-type specializations: the
// subtype maps to its own table but inherits cross-cutting behavior (the
// soft-delete filter in particular) from its root, and must not redeclare it.
type Definition struct {
	// Name is the canonical entity type name used in change records,
	// audit entries and cache keys (e.g. "page").
	Name string

	// Table is the storage table the type maps to.
	Table string

	// Extends is the Name of the root definition, empty for root types.
	Extends string
}

// IsRoot reports whether the definition is a root type (not a specialization).
func (d Definition) IsRoot() bool { return d.Extends == "" }

// Registry is the static registry of all persisted entity types.
//
// Registration happens once at startup, one explicit call per concrete type:
// a compile-time-checked generic constraint replaces the runtime reflection a
// model-initialization hook would otherwise need. The registry is read-only
// after startup and safe for concurrent reads.
type Registry struct {
	defs map[string]Definition
}

// NewRegistry creates an empty entity registry.
func NewRegistry() *Registry {
	return &Registry{defs: make(map[string]Definition)}
}

// Register adds the definition for entity type T to the registry.
// T must satisfy Auditable, which every type embedding Base does.
// Duplicate names and dangling Extends references are registration errors.
func Register[T Auditable](r *Registry, def Definition) error {
	if def.Name == "" || def.Table == "" {
		return fmt.Errorf("entity definition requires name and table, got %+v", def)
	}
	if _, dup := r.defs[def.Name]; dup {
		return fmt.Errorf("entity %q registered twice", def.Name)
	}
	r.defs[def.Name] = def
	return nil
}

// MustRegister is Register that panics on error. Use at startup only.
func MustRegister[T Auditable](r *Registry, def Definition) {
	if err := Register[T](r, def); err != nil {
		panic(err)
	}
}

// Get returns the definition for an entity type name.
func (r *Registry) Get(name string) (Definition, bool) {
	d, ok := r.defs[name]
	return d, ok
}

// MustGet returns the definition for name, panicking when unregistered.
// Use only where registration is a startup invariant.
func (r *Registry) MustGet(name string) Definition {
	d, ok := r.defs[name]
	if !ok {
		panic(fmt.Sprintf("entity %q not registered", name))
	}
	return d
}

// Root resolves the root definition for name, following Extends links.
// Returns an error on a dangling or cyclic chain.
func (r *Registry) Root(name string) (Definition, error) {
	seen := make(map[string]bool)
	for {
		d, ok := r.defs[name]
		if !ok {
			return Definition{}, fmt.Errorf("entity %q not registered", name)
		}
		if d.IsRoot() {
			return d, nil
		}
		if seen[name] {
			return Definition{}, fmt.Errorf("entity %q has a cyclic extends chain", name)
		}
		seen[name] = true
		name = d.Extends
	}
}

// All returns every registered definition, ordered by name.
func (r *Registry) All() []Definition {
	defs := make([]Definition, 0, len(r.defs))
	for _, d := range r.defs {
		defs = append(defs, d)
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}

// Validate checks registry consistency: every Extends link must resolve to a
// registered root. Called once after startup registration.
func (r *Registry) Validate() error {
	for name := range r.defs {
		if _, err := r.Root(name); err != nil {
			return err
		}
	}
	return nil
}
