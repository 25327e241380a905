package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"papyrus/internal/core/apperror"
	"papyrus/internal/core/entity"
	"papyrus/pkg/logger"
)

var tracer = otel.Tracer("papyrus/storage")

// ErrNoTransaction is returned by Rollback when no transaction is open.
// The call itself is a no-op; the error exists for diagnostics and may be
// ignored by callers that rollback defensively.
var ErrNoTransaction = errors.New("no open transaction on session")

// Querier is the subset of pgx operations repositories need. Both pgxpool.Pool
// and pgx.Tx satisfy it, so reads transparently join an open transaction.
type Querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// DB is the connection source a session is built on. *pgxpool.Pool satisfies it.
type DB interface {
	Querier
	Begin(ctx context.Context) (pgx.Tx, error)
}

// ChangeNotifier receives the captured change-set after a successful save.
// Implementations must never let a failure reach the write path.
type ChangeNotifier interface {
	// Dispatch hands the batch off without waiting (fire-and-forget).
	Dispatch(records []entity.ChangeRecord)
	// Notify invokes the handler and waits for it; errors are absorbed.
	Notify(ctx context.Context, records []entity.ChangeRecord)
}

// stageKind is the staged mutation variant.
type stageKind int

const (
	stageInsert stageKind = iota
	stageUpdate
	stageSoftDelete
	stageRestore
)

// trackedChange is one staged entity mutation awaiting the next save.
type trackedChange struct {
	def  entity.Definition
	cols []string
	ent  entity.Auditable
	kind stageKind

	// prevUpdatedAt guards updates against concurrent writers. Captured at
	// stage time, before the audit interceptor advances UpdatedAt.
	prevUpdatedAt time.Time
}

// op maps the staged mutation to its change-record operation kind.
func (c *trackedChange) op() entity.ChangeOp {
	switch c.kind {
	case stageInsert:
		return entity.OpCreated
	case stageSoftDelete:
		return entity.OpDeleted
	default:
		return entity.OpModified
	}
}

// Session is the unit of work: it owns one connection source, at most one
// open transaction, the lazily constructed repositories bound to it, and the
// set of staged entity mutations.
//
// A session is single-owner. Create one per logical business operation
// (typically one HTTP request) and dispose it with Close. Concurrent use of
// one session by multiple goroutines is not supported.
type Session struct {
	db       DB
	log      *logger.Logger
	filters  *FilterSet
	notifier ChangeNotifier
	trail    *AuditTrail

	tx        pgx.Tx
	repos     map[string]any
	staged    []*trackedChange
	changeSet []entity.ChangeRecord
}

// Querier returns the open transaction if any, the pool otherwise. All
// repository reads go through it, so repositories bound to one session observe
// each other's uncommitted writes.
func (s *Session) Querier() Querier {
	if s.tx != nil {
		return s.tx
	}
	return s.db
}

// Filters returns the installed soft-delete filter set.
func (s *Session) Filters() *FilterSet { return s.filters }

// Repository returns the cached repository registered under name, building it
// on first use. Repeated calls return the same instance.
func (s *Session) Repository(name string, build func() any) any {
	if r, ok := s.repos[name]; ok {
		return r
	}
	r := build()
	s.repos[name] = r
	return r
}

// HasOpenTx reports whether an explicit transaction is open.
func (s *Session) HasOpenTx() bool { return s.tx != nil }

// PendingCount returns the number of staged mutations.
func (s *Session) PendingCount() int { return len(s.staged) }

// --- staging ---

// StageInsert stages a newly created entity.
func (s *Session) StageInsert(def entity.Definition, cols []string, e entity.Auditable) {
	s.staged = append(s.staged, &trackedChange{def: def, cols: cols, ent: e, kind: stageInsert})
}

// StageUpdate stages a modification of an existing entity.
func (s *Session) StageUpdate(def entity.Definition, cols []string, e entity.Auditable) {
	s.staged = append(s.staged, &trackedChange{
		def: def, cols: cols, ent: e, kind: stageUpdate,
		prevUpdatedAt: e.LastUpdatedAt(),
	})
}

// StageSoftDelete stages the soft-delete transition for an entity.
func (s *Session) StageSoftDelete(def entity.Definition, e entity.Auditable) {
	s.staged = append(s.staged, &trackedChange{def: def, ent: e, kind: stageSoftDelete})
}

// StageRestore stages the restore transition for a soft-deleted entity.
func (s *Session) StageRestore(def entity.Definition, e entity.Auditable) {
	s.staged = append(s.staged, &trackedChange{def: def, ent: e, kind: stageRestore})
}

// DetachAll releases the staged mutation set without writing. Used to reset
// state between logical steps within a long-lived session.
func (s *Session) DetachAll() {
	s.staged = nil
	s.changeSet = nil
}

// --- explicit transaction control ---

// Begin opens an explicit transaction. At most one transaction may be open
// per session; a second Begin without an intervening Commit/Rollback fails.
func (s *Session) Begin(ctx context.Context) error {
	if s.tx != nil {
		return apperror.NewTransaction("transaction already open on this session")
	}
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return apperror.NewTransaction("begin transaction").WithCause(err)
	}
	s.tx = tx
	return nil
}

// Commit commits the open transaction. On commit failure the transaction is
// rolled back before the original error is surfaced, so the caller never
// observes an ambiguous half-committed state.
func (s *Session) Commit(ctx context.Context) error {
	if s.tx == nil {
		return apperror.NewTransaction("no open transaction to commit")
	}
	tx := s.tx
	s.tx = nil

	if err := tx.Commit(ctx); err != nil {
		s.log.WithContext(ctx).Errorw("commit failed, rolling back", "error", err)
		// Background context: the rollback must complete even when the
		// original context is already cancelled.
		if rbErr := tx.Rollback(context.Background()); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			s.log.WithContext(ctx).Errorw("rollback after failed commit also failed", "error", rbErr)
		}
		return apperror.NewTransaction("commit transaction").WithCause(err)
	}
	return nil
}

// Rollback rolls back and releases the open transaction. Without an open
// transaction it is a no-op that still reports ErrNoTransaction so the
// condition stays observable.
func (s *Session) Rollback(ctx context.Context) error {
	if s.tx == nil {
		s.log.WithContext(ctx).Warnw("rollback requested with no open transaction")
		return ErrNoTransaction
	}
	tx := s.tx
	s.tx = nil

	if err := tx.Rollback(context.Background()); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return apperror.NewTransaction("rollback transaction").WithCause(err)
	}
	return nil
}

// Close disposes the session, rolling back any transaction that was never
// committed and dropping staged state.
func (s *Session) Close(ctx context.Context) {
	if s.tx != nil {
		s.log.WithContext(ctx).Warnw("session closed with open transaction, rolling back")
		if err := s.Rollback(ctx); err != nil && !errors.Is(err, ErrNoTransaction) {
			s.log.WithContext(ctx).Errorw("rollback on close failed", "error", err)
		}
	}
	s.DetachAll()
}

// --- save ---

// SaveChanges flushes all staged mutations as one atomic batch and returns
// the number of affected entities. The audit interceptor runs first; on
// success the captured change-set is dispatched to the cache-invalidation
// notifier fire-and-forget, keeping write-path latency unaffected.
func (s *Session) SaveChanges(ctx context.Context) (int64, error) {
	return s.save(ctx, false)
}

// SaveChangesAndNotify is SaveChanges with the invalidation handler awaited
// before returning. The dispatch stays best-effort: handler failures are
// logged and absorbed, never surfaced.
func (s *Session) SaveChangesAndNotify(ctx context.Context) (int64, error) {
	return s.save(ctx, true)
}

func (s *Session) save(ctx context.Context, await bool) (int64, error) {
	ctx, span := tracer.Start(ctx, "session.save",
		trace.WithAttributes(attribute.Int("staged", len(s.staged))))
	defer span.End()

	if len(s.staged) == 0 {
		return 0, nil
	}

	stampStagedChanges(ctx, s.staged)

	// The change-set is rebuilt on every save, never cumulative.
	s.changeSet = s.changeSet[:0]

	var affected int64
	var auditEntries []AuditEntry

	flush := func(q Querier) error {
		for _, c := range s.staged {
			n, err := s.flushChange(ctx, q, c)
			if err != nil {
				return err
			}
			affected += n
			s.changeSet = append(s.changeSet, entity.ChangeRecord{
				EntityType: c.def.Name,
				EntityID:   c.ent.GetID(),
				Op:         c.op(),
			})
			if s.trail != nil {
				auditEntries = append(auditEntries, newAuditEntry(ctx, c))
			}
		}
		if s.trail != nil && len(auditEntries) > 0 {
			return s.trail.Record(ctx, q, auditEntries)
		}
		return nil
	}

	if s.tx != nil {
		if err := flush(s.tx); err != nil {
			s.changeSet = nil
			return 0, err
		}
	} else {
		// No explicit transaction: the batch still commits atomically
		// through a short-lived implicit one.
		tx, err := s.db.Begin(ctx)
		if err != nil {
			return 0, apperror.NewTransaction("begin implicit transaction").WithCause(err)
		}
		if err := flush(tx); err != nil {
			if rbErr := tx.Rollback(context.Background()); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
				s.log.WithContext(ctx).Errorw("implicit rollback failed", "error", rbErr)
			}
			s.changeSet = nil
			return 0, err
		}
		if err := tx.Commit(ctx); err != nil {
			if rbErr := tx.Rollback(context.Background()); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
				s.log.WithContext(ctx).Errorw("rollback after failed implicit commit failed", "error", rbErr)
			}
			s.changeSet = nil
			return 0, apperror.NewTransaction("commit implicit transaction").WithCause(err)
		}
	}

	records := make([]entity.ChangeRecord, len(s.changeSet))
	copy(records, s.changeSet)

	// Consumed: staged set and change-set are discarded whatever happens next.
	s.staged = nil
	s.changeSet = nil

	if s.notifier != nil && len(records) > 0 {
		if await {
			s.notifier.Notify(ctx, records)
		} else {
			s.notifier.Dispatch(records)
		}
	}

	return affected, nil
}

// flushChange writes one staged mutation and returns the affected-row count.
func (s *Session) flushChange(ctx context.Context, q Querier, c *trackedChange) (int64, error) {
	builder := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

	switch c.kind {
	case stageInsert:
		data := filterColumns(StructToMap(c.ent), c.cols)
		delete(data, "id") // assigned by the store
		sql, args, err := builder.
			Insert(c.def.Table).
			SetMap(data).
			Suffix("RETURNING id").
			ToSql()
		if err != nil {
			return 0, apperror.NewInternal(err).WithDetail("entity", c.def.Name)
		}
		var id int64
		if err := q.QueryRow(ctx, sql, args...).Scan(&id); err != nil {
			return 0, s.storeError(ctx, c.def, err)
		}
		c.ent.SetID(id)
		return 1, nil

	case stageUpdate:
		data := filterColumns(StructToMap(c.ent), c.cols)
		// Creation audit fields are pinned: business-code changes to them
		// never reach storage.
		delete(data, "id")
		delete(data, "created_at")
		delete(data, "created_by")
		sql, args, err := builder.
			Update(c.def.Table).
			SetMap(data).
			Where(squirrel.Eq{"id": c.ent.GetID()}).
			Where(squirrel.Eq{"updated_at": c.prevUpdatedAt}).
			ToSql()
		if err != nil {
			return 0, apperror.NewInternal(err).WithDetail("entity", c.def.Name)
		}
		tag, err := q.Exec(ctx, sql, args...)
		if err != nil {
			return 0, s.storeError(ctx, c.def, err)
		}
		if tag.RowsAffected() == 0 {
			return 0, apperror.NewConcurrentModification(c.def.Name, c.ent.GetID())
		}
		return tag.RowsAffected(), nil

	case stageSoftDelete, stageRestore:
		data := StructToMap(c.ent)
		flags := map[string]any{
			"is_deleted": data["is_deleted"],
			"deleted_at": data["deleted_at"],
			"deleted_by": data["deleted_by"],
			"updated_at": data["updated_at"],
			"updated_by": data["updated_by"],
		}
		sql, args, err := builder.
			Update(c.def.Table).
			SetMap(flags).
			Where(squirrel.Eq{"id": c.ent.GetID()}).
			ToSql()
		if err != nil {
			return 0, apperror.NewInternal(err).WithDetail("entity", c.def.Name)
		}
		tag, err := q.Exec(ctx, sql, args...)
		if err != nil {
			return 0, s.storeError(ctx, c.def, err)
		}
		if tag.RowsAffected() == 0 {
			return 0, apperror.NewNotFound(c.def.Name, c.ent.GetID())
		}
		return tag.RowsAffected(), nil
	}

	return 0, apperror.NewInternal(errors.New("unknown staged change kind"))
}

// storeError classifies a physical-write failure. Everything is logged with
// its origin before surfacing; constraint violations become conflicts, the
// rest stays a store-update error surfaced as-is.
func (s *Session) storeError(ctx context.Context, def entity.Definition, err error) error {
	s.log.WithContext(ctx).Errorw("store write failed", "entity", def.Name, "table", def.Table, "error", err)

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return apperror.NewConflict("duplicate value violates a unique constraint").
				WithDetail("entity", def.Name).
				WithDetail("constraint", pgErr.ConstraintName).
				WithCause(err)
		case "23503":
			return apperror.NewConflict("operation violates a foreign key constraint").
				WithDetail("entity", def.Name).
				WithDetail("constraint", pgErr.ConstraintName).
				WithCause(err)
		}
	}
	return apperror.NewDatabase(err).WithDetail("entity", def.Name)
}

// filterColumns keeps only the keys present in cols.
func filterColumns(data map[string]any, cols []string) map[string]any {
	if len(cols) == 0 {
		return data
	}
	filtered := make(map[string]any, len(cols))
	for _, col := range cols {
		if val, ok := data[col]; ok {
			filtered[col] = val
		}
	}
	return filtered
}
