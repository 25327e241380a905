package postgres

import (
	"testing"

	"github.com/Masterminds/squirrel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"papyrus/internal/core/entity"
)

func hierarchyRegistry(t *testing.T) *entity.Registry {
	t.Helper()
	reg := entity.NewRegistry()
	entity.MustRegister[*note](reg, entity.Definition{Name: "document", Table: "documents"})
	entity.MustRegister[*note](reg, entity.Definition{Name: "contract", Table: "contracts", Extends: "document"})
	return reg
}

func selectFrom(table string) squirrel.SelectBuilder {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar).
		Select("id").From(table)
}

func TestApply_DefaultScopeExcludesDeleted(t *testing.T) {
	fs, err := InstallSoftDeleteFilters(hierarchyRegistry(t))
	require.NoError(t, err)

	q, err := fs.Apply(selectFrom("documents"), "document", ScopeDefault)
	require.NoError(t, err)

	sql, args, err := q.ToSql()
	require.NoError(t, err)
	assert.Equal(t, "SELECT id FROM documents WHERE is_deleted = $1", sql)
	assert.Equal(t, []any{false}, args)
}

func TestApply_IncludeDeletedBypassesFilter(t *testing.T) {
	fs, err := InstallSoftDeleteFilters(hierarchyRegistry(t))
	require.NoError(t, err)

	q, err := fs.Apply(selectFrom("documents"), "document", ScopeIncludeDeleted)
	require.NoError(t, err)

	sql, _, err := q.ToSql()
	require.NoError(t, err)
	assert.Equal(t, "SELECT id FROM documents", sql)
}

func TestApply_OnlyDeletedInvertsFilter(t *testing.T) {
	fs, err := InstallSoftDeleteFilters(hierarchyRegistry(t))
	require.NoError(t, err)

	q, err := fs.Apply(selectFrom("documents"), "document", ScopeOnlyDeleted)
	require.NoError(t, err)

	sql, args, err := q.ToSql()
	require.NoError(t, err)
	assert.Equal(t, "SELECT id FROM documents WHERE is_deleted = $1", sql)
	assert.Equal(t, []any{true}, args)
}

func TestApply_SubtypeResolvesThroughRoot(t *testing.T) {
	fs, err := InstallSoftDeleteFilters(hierarchyRegistry(t))
	require.NoError(t, err)

	q, err := fs.Apply(selectFrom("contracts"), "contract", ScopeDefault)
	require.NoError(t, err)

	sql, args, err := q.ToSql()
	require.NoError(t, err)
	assert.Equal(t, "SELECT id FROM contracts WHERE is_deleted = $1", sql)
	assert.Equal(t, []any{false}, args)
}

func TestInstall_ExactlyOnePredicatePerType(t *testing.T) {
	fs, err := InstallSoftDeleteFilters(hierarchyRegistry(t))
	require.NoError(t, err)

	// Root carries the predicate; the specialization resolves to the same
	// one and never gets its own.
	assert.Equal(t, 1, fs.InstalledCount("document"))
	assert.Equal(t, 1, fs.InstalledCount("contract"))
}

func TestApply_UnregisteredTypeFails(t *testing.T) {
	fs, err := InstallSoftDeleteFilters(hierarchyRegistry(t))
	require.NoError(t, err)

	_, err = fs.Apply(selectFrom("ghosts"), "ghost", ScopeDefault)
	assert.Error(t, err)
}

func TestInstall_InvalidRegistryFails(t *testing.T) {
	reg := entity.NewRegistry()
	entity.MustRegister[*note](reg, entity.Definition{Name: "orphan", Table: "orphans", Extends: "missing"})

	_, err := InstallSoftDeleteFilters(reg)
	assert.Error(t, err)
}
