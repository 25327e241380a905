package postgres

import (
	"fmt"

	"github.com/Masterminds/squirrel"

	"papyrus/internal/core/entity"
)

// Scope selects how a query treats soft-deleted rows.
//
// The default scope excludes them; the escape hatches are explicit opt-ins so
// soft-deleted data is never exposed by accident.
type Scope int

const (
	// ScopeDefault excludes soft-deleted rows.
	ScopeDefault Scope = iota
	// ScopeIncludeDeleted bypasses the soft-delete filter entirely.
	ScopeIncludeDeleted
	// ScopeOnlyDeleted inverts the filter: only soft-deleted rows.
	ScopeOnlyDeleted
)

// FilterSet holds the soft-delete predicates installed over the entity
// registry at model-initialization time. One predicate is installed per root
// entity type; table-per-type specializations resolve their predicate through
// their root and never get a second one.
type FilterSet struct {
	reg        *entity.Registry
	predicates map[string]squirrel.Sqlizer // keyed by root entity name
}

// InstallSoftDeleteFilters walks every registered entity type and installs the
// default "exclude soft-deleted rows" predicate for each root type.
//
// A misclassified root would silently drop the filter for its whole hierarchy,
// so the registry is validated first and Apply fails loudly when a type
// resolves to no installed predicate.
func InstallSoftDeleteFilters(reg *entity.Registry) (*FilterSet, error) {
	if err := reg.Validate(); err != nil {
		return nil, fmt.Errorf("install soft-delete filters: %w", err)
	}

	fs := &FilterSet{
		reg:        reg,
		predicates: make(map[string]squirrel.Sqlizer),
	}
	for _, def := range reg.All() {
		if def.IsRoot() {
			fs.predicates[def.Name] = squirrel.Eq{"is_deleted": false}
		}
	}
	return fs, nil
}

// Apply attaches the soft-delete predicate for entity type name to q,
// honouring the requested scope.
func (f *FilterSet) Apply(q squirrel.SelectBuilder, name string, scope Scope) (squirrel.SelectBuilder, error) {
	root, err := f.reg.Root(name)
	if err != nil {
		return q, err
	}
	if _, installed := f.predicates[root.Name]; !installed {
		return q, fmt.Errorf("no soft-delete filter installed for entity %q (root %q)", name, root.Name)
	}

	switch scope {
	case ScopeIncludeDeleted:
		return q, nil
	case ScopeOnlyDeleted:
		return q.Where(squirrel.Eq{"is_deleted": true}), nil
	default:
		return q.Where(squirrel.Eq{"is_deleted": false}), nil
	}
}

// InstalledCount returns how many predicates apply to entity type name.
// Every registered type must resolve to exactly one.
func (f *FilterSet) InstalledCount(name string) int {
	root, err := f.reg.Root(name)
	if err != nil {
		return 0
	}
	count := 0
	if _, ok := f.predicates[root.Name]; ok {
		count++
	}
	// A subtype must not carry its own predicate on top of the root's.
	if !f.reg.MustGet(name).IsRoot() {
		if _, ok := f.predicates[name]; ok {
			count++
		}
	}
	return count
}
