package postgres

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"papyrus/internal/core/entity"
)

type taggedEntity struct {
	entity.Base
	Slug     string `db:"slug" json:"slug"`
	Title    string `db:"title" json:"title"`
	Internal string `db:"-"`
	Untagged string
}

func TestExtractDBColumns_FlattensBase(t *testing.T) {
	cols := ExtractDBColumns[taggedEntity]()

	expected := []string{
		"id", "is_deleted", "created_at", "updated_at",
		"deleted_at", "created_by", "updated_by", "deleted_by",
		"slug", "title",
	}
	for _, col := range expected {
		assert.Contains(t, cols, col)
	}
	assert.NotContains(t, cols, "-")
	assert.Len(t, cols, len(expected))
}

func TestExtractDBColumns_PointerTypeParameter(t *testing.T) {
	assert.Equal(t, ExtractDBColumns[taggedEntity](), ExtractDBColumns[*taggedEntity]())
}

func TestStructToMap_FlattensBase(t *testing.T) {
	uid := int64(7)
	e := taggedEntity{Slug: "welcome", Title: "Welcome"}
	e.ID = 42
	e.CreatedAt = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	e.CreatedBy = &uid

	m := StructToMap(&e)

	assert.Equal(t, int64(42), m["id"])
	assert.Equal(t, "welcome", m["slug"])
	assert.Equal(t, "Welcome", m["title"])
	assert.Equal(t, e.CreatedAt, m["created_at"])
	assert.Equal(t, &uid, m["created_by"])
	assert.NotContains(t, m, "Untagged")
}

func TestStructToMap_NilPointer(t *testing.T) {
	var e *taggedEntity
	assert.Nil(t, StructToMap(e))
}

func TestFilterColumns_KeepsOnlyListed(t *testing.T) {
	data := map[string]any{"a": 1, "b": 2, "c": 3}

	filtered := filterColumns(data, []string{"a", "c", "missing"})
	assert.Equal(t, map[string]any{"a": 1, "c": 3}, filtered)

	// Empty whitelist passes everything through.
	assert.Equal(t, data, filterColumns(data, nil))
}
