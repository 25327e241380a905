package entity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStampDeleted_ThenRestored(t *testing.T) {
	uid := int64(7)
	deletedAt := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	var b Base
	b.StampDeleted(deletedAt, &uid)

	assert.True(t, b.Deleted())
	require.NotNil(t, b.DeletedAt)
	assert.Equal(t, deletedAt, *b.DeletedAt)
	require.NotNil(t, b.DeletedBy)
	assert.Equal(t, uid, *b.DeletedBy)
	assert.Equal(t, deletedAt, b.UpdatedAt)

	restoredAt := deletedAt.Add(time.Hour)
	b.StampRestored(restoredAt, &uid)

	assert.False(t, b.Deleted())
	assert.Nil(t, b.DeletedAt)
	assert.Nil(t, b.DeletedBy)
	assert.Equal(t, restoredAt, b.UpdatedAt)
}

func TestStampCreated_SetsBothTimestamps(t *testing.T) {
	at := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	var b Base
	b.StampCreated(at, nil)

	assert.Equal(t, at, b.CreatedAt)
	assert.Equal(t, at, b.UpdatedAt)
	assert.Nil(t, b.CreatedBy)
	assert.Equal(t, at, b.LastUpdatedAt())
}
