package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"papyrus/internal/core/principal"
)

func TestStampStagedChanges_AllKindsShareOneInstant(t *testing.T) {
	ctx := principal.WithUserID(context.Background(), 7)

	created := &note{}
	updated := &note{}
	updated.ID = 2
	updated.CreatedAt = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	deleted := &note{}
	deleted.ID = 3
	restored := &note{}
	restored.ID = 4
	restored.IsDeleted = true

	staged := []*trackedChange{
		{def: noteDef(), ent: created, kind: stageInsert},
		{def: noteDef(), ent: updated, kind: stageUpdate},
		{def: noteDef(), ent: deleted, kind: stageSoftDelete},
		{def: noteDef(), ent: restored, kind: stageRestore},
	}

	stampStagedChanges(ctx, staged)

	// One batch, one timestamp.
	assert.Equal(t, created.UpdatedAt, updated.UpdatedAt)
	assert.Equal(t, updated.UpdatedAt, deleted.UpdatedAt)
	assert.Equal(t, deleted.UpdatedAt, restored.UpdatedAt)
	assert.Equal(t, time.UTC, created.UpdatedAt.Location())

	// Insert: creation and update stamps coincide.
	assert.Equal(t, created.CreatedAt, created.UpdatedAt)
	require.NotNil(t, created.CreatedBy)
	assert.Equal(t, int64(7), *created.CreatedBy)

	// Update: creation stamp untouched.
	assert.Equal(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), updated.CreatedAt)
	require.NotNil(t, updated.UpdatedBy)
	assert.Equal(t, int64(7), *updated.UpdatedBy)

	// Soft delete: flagged with deletion stamp.
	assert.True(t, deleted.IsDeleted)
	require.NotNil(t, deleted.DeletedAt)
	require.NotNil(t, deleted.DeletedBy)
	assert.Equal(t, int64(7), *deleted.DeletedBy)

	// Restore: deletion state fully cleared.
	assert.False(t, restored.IsDeleted)
	assert.Nil(t, restored.DeletedAt)
	assert.Nil(t, restored.DeletedBy)
}

func TestStampStagedChanges_NoPrincipalStampsNilActor(t *testing.T) {
	doc := &note{}
	staged := []*trackedChange{{def: noteDef(), ent: doc, kind: stageInsert}}

	stampStagedChanges(context.Background(), staged)

	assert.False(t, doc.CreatedAt.IsZero())
	assert.Nil(t, doc.CreatedBy)
	assert.Nil(t, doc.UpdatedBy)
}
