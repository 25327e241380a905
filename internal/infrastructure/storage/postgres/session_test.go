package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"papyrus/internal/core/apperror"
	"papyrus/internal/core/entity"
	"papyrus/internal/core/principal"
)

// --- fakes ---

type fakeRow struct {
	id  int64
	err error
}

func (r *fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	if len(dest) > 0 {
		if ptr, ok := dest[0].(*int64); ok {
			*ptr = r.id
		}
	}
	return nil
}

type recordedCall struct {
	sql  string
	args []any
	inTx bool
}

type fakeDB struct {
	nextID       int64
	rowsAffected int64
	beginErr     error
	commitErr    error

	begins int
	calls  []recordedCall
	txs    []*fakeTx
}

func newFakeDB() *fakeDB {
	return &fakeDB{rowsAffected: 1}
}

func (db *fakeDB) exec(sql string, args []any, inTx bool) (pgconn.CommandTag, error) {
	db.calls = append(db.calls, recordedCall{sql: sql, args: args, inTx: inTx})
	return pgconn.NewCommandTag(fmt.Sprintf("UPDATE %d", db.rowsAffected)), nil
}

func (db *fakeDB) queryRow(sql string, args []any, inTx bool) pgx.Row {
	db.calls = append(db.calls, recordedCall{sql: sql, args: args, inTx: inTx})
	db.nextID++
	return &fakeRow{id: db.nextID}
}

func (db *fakeDB) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return db.exec(sql, args, false)
}

func (db *fakeDB) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, errors.New("not implemented")
}

func (db *fakeDB) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return db.queryRow(sql, args, false)
}

func (db *fakeDB) Begin(ctx context.Context) (pgx.Tx, error) {
	if db.beginErr != nil {
		return nil, db.beginErr
	}
	db.begins++
	tx := &fakeTx{db: db, commitErr: db.commitErr}
	db.txs = append(db.txs, tx)
	return tx, nil
}

type fakeTx struct {
	pgx.Tx
	db         *fakeDB
	commitErr  error
	committed  bool
	rolledBack bool
}

func (t *fakeTx) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return t.db.exec(sql, args, true)
}

func (t *fakeTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, errors.New("not implemented")
}

func (t *fakeTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return t.db.queryRow(sql, args, true)
}

func (t *fakeTx) Commit(ctx context.Context) error {
	if t.commitErr != nil {
		return t.commitErr
	}
	t.committed = true
	return nil
}

func (t *fakeTx) Rollback(ctx context.Context) error {
	if t.committed || t.rolledBack {
		return pgx.ErrTxClosed
	}
	t.rolledBack = true
	return nil
}

type fakeNotifier struct {
	dispatched [][]entity.ChangeRecord
	notified   [][]entity.ChangeRecord
}

func (n *fakeNotifier) Dispatch(records []entity.ChangeRecord) {
	n.dispatched = append(n.dispatched, records)
}

func (n *fakeNotifier) Notify(ctx context.Context, records []entity.ChangeRecord) {
	n.notified = append(n.notified, records)
}

// --- test entity ---

type note struct {
	entity.Base
	Title string `db:"title" json:"title"`
}

func (n *note) Validate() error { return nil }

func testRegistry(t *testing.T) *entity.Registry {
	t.Helper()
	reg := entity.NewRegistry()
	entity.MustRegister[*note](reg, entity.Definition{Name: "note", Table: "notes"})
	return reg
}

func newTestSession(t *testing.T, db *fakeDB, opts ...FactoryOption) *Session {
	t.Helper()
	filters, err := InstallSoftDeleteFilters(testRegistry(t))
	require.NoError(t, err)
	return NewSessionFactory(db, filters, opts...).NewSession()
}

func noteDef() entity.Definition {
	return entity.Definition{Name: "note", Table: "notes"}
}

var noteCols = ExtractDBColumns[*note]()

// --- transaction lifecycle ---

func TestBegin_SecondBeginFails(t *testing.T) {
	s := newTestSession(t, newFakeDB())
	ctx := context.Background()

	require.NoError(t, s.Begin(ctx))
	err := s.Begin(ctx)
	require.Error(t, err)

	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeTransaction, appErr.Code)
	assert.True(t, s.HasOpenTx())
}

func TestCommit_WithoutTransactionFails(t *testing.T) {
	s := newTestSession(t, newFakeDB())
	err := s.Commit(context.Background())
	require.Error(t, err)
}

func TestRollback_WithoutTransactionIsNoop(t *testing.T) {
	s := newTestSession(t, newFakeDB())
	err := s.Rollback(context.Background())
	assert.ErrorIs(t, err, ErrNoTransaction)
}

func TestCommit_FailureRollsBack(t *testing.T) {
	db := newFakeDB()
	db.commitErr = errors.New("connection reset")
	s := newTestSession(t, db)
	ctx := context.Background()

	require.NoError(t, s.Begin(ctx))
	err := s.Commit(ctx)
	require.Error(t, err)

	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeTransaction, appErr.Code)
	assert.ErrorIs(t, appErr.Err, db.commitErr)

	require.Len(t, db.txs, 1)
	assert.True(t, db.txs[0].rolledBack)
	assert.False(t, s.HasOpenTx())
}

func TestClose_RollsBackOpenTransaction(t *testing.T) {
	db := newFakeDB()
	s := newTestSession(t, db)
	ctx := context.Background()

	require.NoError(t, s.Begin(ctx))
	s.StageInsert(noteDef(), noteCols, &note{Title: "draft"})
	s.Close(ctx)

	require.Len(t, db.txs, 1)
	assert.True(t, db.txs[0].rolledBack)
	assert.Equal(t, 0, s.PendingCount())
}

// --- save semantics ---

func TestSaveChanges_EmptyBatchIsNoop(t *testing.T) {
	db := newFakeDB()
	notifier := &fakeNotifier{}
	s := newTestSession(t, db, WithNotifier(notifier))

	n, err := s.SaveChanges(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Zero(t, db.begins)
	assert.Empty(t, db.calls)
	assert.Empty(t, notifier.dispatched)
}

func TestSaveChanges_ImplicitTransaction(t *testing.T) {
	db := newFakeDB()
	s := newTestSession(t, db)
	ctx := context.Background()

	doc := &note{Title: "hello"}
	s.StageInsert(noteDef(), noteCols, doc)

	n, err := s.SaveChanges(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	// One implicit transaction, committed, all writes inside it.
	require.Len(t, db.txs, 1)
	assert.True(t, db.txs[0].committed)
	for _, call := range db.calls {
		assert.True(t, call.inTx)
	}

	// Store-assigned identity propagated back.
	assert.Equal(t, int64(1), doc.ID)
	assert.Equal(t, 0, s.PendingCount())
}

func TestSaveChanges_JoinsExplicitTransaction(t *testing.T) {
	db := newFakeDB()
	s := newTestSession(t, db)
	ctx := context.Background()

	require.NoError(t, s.Begin(ctx))
	s.StageInsert(noteDef(), noteCols, &note{Title: "hello"})

	_, err := s.SaveChanges(ctx)
	require.NoError(t, err)

	// No second transaction, nothing committed until the caller commits.
	assert.Equal(t, 1, db.begins)
	require.Len(t, db.txs, 1)
	assert.False(t, db.txs[0].committed)

	require.NoError(t, s.Commit(ctx))
	assert.True(t, db.txs[0].committed)
}

func TestSaveChanges_InsertOmitsID(t *testing.T) {
	db := newFakeDB()
	s := newTestSession(t, db)

	s.StageInsert(noteDef(), noteCols, &note{Title: "hello"})
	_, err := s.SaveChanges(context.Background())
	require.NoError(t, err)

	require.NotEmpty(t, db.calls)
	insert := db.calls[0].sql
	assert.Contains(t, insert, "INSERT INTO notes")
	assert.Contains(t, insert, "RETURNING id")
	assert.NotContains(t, insert, "(id,")
}

func TestSaveChanges_UpdatePinsCreationFields(t *testing.T) {
	db := newFakeDB()
	s := newTestSession(t, db)

	doc := &note{Title: "hello"}
	doc.ID = 42
	doc.CreatedAt = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	doc.UpdatedAt = doc.CreatedAt
	s.StageUpdate(noteDef(), noteCols, doc)

	_, err := s.SaveChanges(context.Background())
	require.NoError(t, err)

	require.NotEmpty(t, db.calls)
	update := db.calls[0].sql
	assert.Contains(t, update, "UPDATE notes")
	assert.NotContains(t, update, "created_at =")
	assert.NotContains(t, update, "created_by =")
}

func TestSaveChanges_UpdateGuardsOnPreviousUpdatedAt(t *testing.T) {
	db := newFakeDB()
	s := newTestSession(t, db)

	prev := time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)
	doc := &note{Title: "hello"}
	doc.ID = 42
	doc.UpdatedAt = prev
	s.StageUpdate(noteDef(), noteCols, doc)

	_, err := s.SaveChanges(context.Background())
	require.NoError(t, err)

	// The WHERE guard must use the pre-save timestamp even though the audit
	// interceptor advanced UpdatedAt before the flush.
	require.NotEmpty(t, db.calls)
	update := db.calls[0]
	assert.Contains(t, update.sql, "updated_at =")
	assert.Contains(t, update.args, prev)
	assert.NotEqual(t, prev, doc.UpdatedAt)
}

func TestSaveChanges_UpdateConflictSurfacesConcurrentModification(t *testing.T) {
	db := newFakeDB()
	db.rowsAffected = 0
	s := newTestSession(t, db)

	doc := &note{Title: "hello"}
	doc.ID = 42
	s.StageUpdate(noteDef(), noteCols, doc)

	_, err := s.SaveChanges(context.Background())
	require.Error(t, err)
	assert.True(t, apperror.IsConcurrentModification(err))

	// The implicit transaction must not commit.
	require.Len(t, db.txs, 1)
	assert.False(t, db.txs[0].committed)
	assert.True(t, db.txs[0].rolledBack)
}

func TestSaveChanges_SoftDeleteMissingRowIsNotFound(t *testing.T) {
	db := newFakeDB()
	db.rowsAffected = 0
	s := newTestSession(t, db)

	doc := &note{Title: "hello"}
	doc.ID = 42
	s.StageSoftDelete(noteDef(), doc)

	_, err := s.SaveChanges(context.Background())
	require.Error(t, err)
	assert.True(t, apperror.IsNotFound(err))
}

func TestSaveChanges_SoftDeleteWritesOnlyDeletionFields(t *testing.T) {
	db := newFakeDB()
	s := newTestSession(t, db)
	ctx := principal.WithUserID(context.Background(), 7)

	doc := &note{Title: "hello"}
	doc.ID = 42
	s.StageSoftDelete(noteDef(), doc)

	_, err := s.SaveChanges(ctx)
	require.NoError(t, err)

	require.NotEmpty(t, db.calls)
	update := db.calls[0].sql
	assert.Contains(t, update, "is_deleted =")
	assert.Contains(t, update, "deleted_at =")
	assert.Contains(t, update, "deleted_by =")
	assert.NotContains(t, update, "title =")
}

// --- audit stamping through save ---

func TestSaveChanges_StampsCreateAudit(t *testing.T) {
	db := newFakeDB()
	s := newTestSession(t, db)
	ctx := principal.WithUserID(context.Background(), 7)

	doc := &note{Title: "hello"}
	s.StageInsert(noteDef(), noteCols, doc)

	_, err := s.SaveChanges(ctx)
	require.NoError(t, err)

	assert.False(t, doc.CreatedAt.IsZero())
	assert.Equal(t, doc.CreatedAt, doc.UpdatedAt)
	require.NotNil(t, doc.CreatedBy)
	assert.Equal(t, int64(7), *doc.CreatedBy)
}

func TestSaveChanges_AnonymousPrincipalLeavesActorNil(t *testing.T) {
	db := newFakeDB()
	s := newTestSession(t, db)

	doc := &note{Title: "hello"}
	s.StageInsert(noteDef(), noteCols, doc)

	_, err := s.SaveChanges(context.Background())
	require.NoError(t, err)

	assert.False(t, doc.CreatedAt.IsZero())
	assert.Nil(t, doc.CreatedBy)
}

// --- change-set capture and notification ---

func TestSaveChanges_ChangeSetCoversEveryMutation(t *testing.T) {
	db := newFakeDB()
	notifier := &fakeNotifier{}
	s := newTestSession(t, db, WithNotifier(notifier))
	ctx := context.Background()

	created := &note{Title: "a"}
	updated := &note{Title: "b"}
	updated.ID = 2
	deleted := &note{Title: "c"}
	deleted.ID = 3
	restored := &note{Title: "d"}
	restored.ID = 4

	s.StageInsert(noteDef(), noteCols, created)
	s.StageUpdate(noteDef(), noteCols, updated)
	s.StageSoftDelete(noteDef(), deleted)
	s.StageRestore(noteDef(), restored)

	n, err := s.SaveChanges(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)

	require.Len(t, notifier.dispatched, 1)
	records := notifier.dispatched[0]
	require.Len(t, records, 4)

	assert.Equal(t, entity.OpCreated, records[0].Op)
	assert.Equal(t, created.ID, records[0].EntityID)
	assert.Equal(t, entity.OpModified, records[1].Op)
	assert.Equal(t, entity.OpDeleted, records[2].Op)
	assert.Equal(t, entity.OpModified, records[3].Op)
	for _, rec := range records {
		assert.Equal(t, "note", rec.EntityType)
	}
}

func TestSaveChanges_ChangeSetRebuiltPerSave(t *testing.T) {
	db := newFakeDB()
	notifier := &fakeNotifier{}
	s := newTestSession(t, db, WithNotifier(notifier))
	ctx := context.Background()

	s.StageInsert(noteDef(), noteCols, &note{Title: "first"})
	_, err := s.SaveChanges(ctx)
	require.NoError(t, err)

	s.StageInsert(noteDef(), noteCols, &note{Title: "second"})
	_, err = s.SaveChanges(ctx)
	require.NoError(t, err)

	// Second dispatch carries only the second save's record.
	require.Len(t, notifier.dispatched, 2)
	assert.Len(t, notifier.dispatched[1], 1)
}

func TestSaveChanges_FailedSaveDispatchesNothing(t *testing.T) {
	db := newFakeDB()
	db.rowsAffected = 0
	notifier := &fakeNotifier{}
	s := newTestSession(t, db, WithNotifier(notifier))

	doc := &note{Title: "hello"}
	doc.ID = 42
	s.StageUpdate(noteDef(), noteCols, doc)

	_, err := s.SaveChanges(context.Background())
	require.Error(t, err)
	assert.Empty(t, notifier.dispatched)
	assert.Empty(t, notifier.notified)
}

func TestSaveChangesAndNotify_AwaitsHandler(t *testing.T) {
	db := newFakeDB()
	notifier := &fakeNotifier{}
	s := newTestSession(t, db, WithNotifier(notifier))

	s.StageInsert(noteDef(), noteCols, &note{Title: "hello"})
	_, err := s.SaveChangesAndNotify(context.Background())
	require.NoError(t, err)

	assert.Empty(t, notifier.dispatched)
	require.Len(t, notifier.notified, 1)
}

func TestDetachAll_DropsStagedChanges(t *testing.T) {
	db := newFakeDB()
	s := newTestSession(t, db)

	s.StageInsert(noteDef(), noteCols, &note{Title: "hello"})
	require.Equal(t, 1, s.PendingCount())

	s.DetachAll()
	assert.Equal(t, 0, s.PendingCount())

	n, err := s.SaveChanges(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, db.calls)
}

// --- audit trail participation ---

func TestSaveChanges_AuditEntriesShareTheTransaction(t *testing.T) {
	db := newFakeDB()
	trail, err := NewAuditTrail()
	require.NoError(t, err)
	s := newTestSession(t, db, WithAuditTrail(trail))
	ctx := principal.WithUserID(context.Background(), 7)

	s.StageInsert(noteDef(), noteCols, &note{Title: "hello"})
	_, err = s.SaveChanges(ctx)
	require.NoError(t, err)

	var auditInserts int
	for _, call := range db.calls {
		if strings.Contains(call.sql, "sys_audit_log") {
			auditInserts++
			assert.True(t, call.inTx)
		}
	}
	assert.Equal(t, 1, auditInserts)
}

// --- repository cache ---

func TestRepository_CachedPerSession(t *testing.T) {
	s := newTestSession(t, newFakeDB())

	built := 0
	build := func() any { built++; return &struct{}{} }

	first := s.Repository("note", build)
	second := s.Repository("note", build)

	assert.Same(t, first, second)
	assert.Equal(t, 1, built)
}

// --- tx.Manager behaviour ---

func TestRunInTransaction_CommitsOnSuccess(t *testing.T) {
	db := newFakeDB()
	filters, err := InstallSoftDeleteFilters(testRegistry(t))
	require.NoError(t, err)
	factory := NewSessionFactory(db, filters)

	err = factory.RunInTransaction(context.Background(), func(ctx context.Context) error {
		s := MustSession(ctx)
		s.StageInsert(noteDef(), noteCols, &note{Title: "hello"})
		return nil
	})
	require.NoError(t, err)

	require.Len(t, db.txs, 1)
	assert.True(t, db.txs[0].committed)
}

func TestRunInTransaction_RollsBackOnError(t *testing.T) {
	db := newFakeDB()
	filters, err := InstallSoftDeleteFilters(testRegistry(t))
	require.NoError(t, err)
	factory := NewSessionFactory(db, filters)

	boom := errors.New("domain failure")
	err = factory.RunInTransaction(context.Background(), func(ctx context.Context) error {
		s := MustSession(ctx)
		s.StageInsert(noteDef(), noteCols, &note{Title: "hello"})
		return boom
	})
	assert.ErrorIs(t, err, boom)

	require.Len(t, db.txs, 1)
	assert.False(t, db.txs[0].committed)
	assert.True(t, db.txs[0].rolledBack)
}
