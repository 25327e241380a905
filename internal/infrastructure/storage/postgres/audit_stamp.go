package postgres

import (
	"context"
	"time"

	"papyrus/internal/core/principal"
)

// stampStagedChanges is the audit field interceptor. It runs once per save,
// before any physical write, and stamps every staged entity according to its
// operation kind:
//
//   - insert: createdAt == updatedAt, createdBy == updatedBy == principal
//   - update: updatedAt/updatedBy advance; createdAt/createdBy stay pinned
//     (the flush path additionally drops them from the UPDATE column set)
//   - soft delete: update stamp plus deletedAt/deletedBy
//   - restore: update stamp, deletedAt/deletedBy cleared
//
// The principal resolves to nil on any failure, never an error: audit
// stamping must not be a point of failure for the surrounding transaction.
func stampStagedChanges(ctx context.Context, staged []*trackedChange) {
	now := time.Now().UTC()
	uid := principal.CurrentUserID(ctx)

	for _, c := range staged {
		switch c.kind {
		case stageInsert:
			c.ent.StampCreated(now, uid)
		case stageUpdate:
			c.ent.StampUpdated(now, uid)
		case stageSoftDelete:
			c.ent.StampDeleted(now, uid)
		case stageRestore:
			c.ent.StampRestored(now, uid)
		}
	}
}
