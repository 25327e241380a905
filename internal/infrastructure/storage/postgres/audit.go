package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"

	"papyrus/internal/core/entity"
	"papyrus/internal/core/principal"
)

// CompressionAlgo specifies the compression algorithm used for a payload.
type CompressionAlgo string

const (
	CompressionNone CompressionAlgo = "none"
	CompressionZstd CompressionAlgo = "zstd"
)

// AuditEntry is one row of the audit trail: who did what to which entity.
// Large change payloads are stored zstd-compressed.
type AuditEntry struct {
	ID                uuid.UUID       `db:"id"`
	EntityType        string          `db:"entity_type"`
	EntityID          int64           `db:"entity_id"`
	Action            entity.ChangeOp `db:"action"`
	UserID            *int64          `db:"user_id"`
	Changes           json.RawMessage `db:"changes"`
	ChangesCompressed []byte          `db:"changes_compressed"`
	CompressionAlgo   CompressionAlgo `db:"compression_algo"`
	CreatedAt         time.Time       `db:"created_at"`
}

// newAuditEntry builds the audit entry for one staged change. The change
// payload is the entity's column snapshot at save time.
func newAuditEntry(ctx context.Context, c *trackedChange) AuditEntry {
	snapshot, err := json.Marshal(StructToMap(c.ent))
	if err != nil {
		snapshot = nil
	}
	return AuditEntry{
		ID:         uuid.New(),
		EntityType: c.def.Name,
		EntityID:   c.ent.GetID(),
		Action:     c.op(),
		UserID:     principal.CurrentUserID(ctx),
		Changes:    snapshot,
		CreatedAt:  time.Now().UTC(),
	}
}

// AuditTrail persists audit entries alongside the writes they describe.
// Entries are written through the caller's querier, so they commit or roll
// back with the data they audit.
type AuditTrail struct {
	encoder           *zstd.Encoder
	compressThreshold int // bytes
}

// NewAuditTrail creates an audit trail writer.
func NewAuditTrail() (*AuditTrail, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	return &AuditTrail{
		encoder:           encoder,
		compressThreshold: 10 * 1024,
	}, nil
}

// Record writes the given entries through q.
func (t *AuditTrail) Record(ctx context.Context, q Querier, entries []AuditEntry) error {
	builder := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

	for i := range entries {
		e := &entries[i]
		e.CompressionAlgo = CompressionNone
		if len(e.Changes) > t.compressThreshold {
			e.ChangesCompressed = t.encoder.EncodeAll(e.Changes, nil)
			e.CompressionAlgo = CompressionZstd
			e.Changes = nil
		}

		sql, args, err := builder.
			Insert("sys_audit_log").
			SetMap(map[string]any{
				"id":                 e.ID,
				"entity_type":        e.EntityType,
				"entity_id":          e.EntityID,
				"action":             string(e.Action),
				"user_id":            e.UserID,
				"changes":            e.Changes,
				"changes_compressed": e.ChangesCompressed,
				"compression_algo":   string(e.CompressionAlgo),
				"created_at":         e.CreatedAt,
			}).
			ToSql()
		if err != nil {
			return fmt.Errorf("build audit insert: %w", err)
		}
		if _, err := q.Exec(ctx, sql, args...); err != nil {
			return fmt.Errorf("insert audit entry for %s/%d: %w", e.EntityType, e.EntityID, err)
		}
	}
	return nil
}
