package cache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"papyrus/internal/core/entity"
	"papyrus/pkg/logger"
)

type fakeInvalidator struct {
	mu       sync.Mutex
	batches  [][]entity.ChangeRecord
	attempts int
	err      error
	panics   bool
	block    chan struct{}
}

func (f *fakeInvalidator) InvalidateBatch(ctx context.Context, records []entity.ChangeRecord) error {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts++
	if f.panics {
		panic("invalidator exploded")
	}
	f.batches = append(f.batches, records)
	return f.err
}

func (f *fakeInvalidator) waitAttempts(t *testing.T, n int) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		f.mu.Lock()
		done := f.attempts >= n
		f.mu.Unlock()
		if done {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("invalidator never reached %d attempts", n)
}

func (f *fakeInvalidator) setPanics(v bool) {
	f.mu.Lock()
	f.panics = v
	f.mu.Unlock()
}

func (f *fakeInvalidator) batchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.batches)
}

func records(n int) []entity.ChangeRecord {
	out := make([]entity.ChangeRecord, n)
	for i := range out {
		out[i] = entity.ChangeRecord{EntityType: "page", EntityID: int64(i + 1), Op: entity.OpModified}
	}
	return out
}

func TestDispatch_ProcessedAsynchronously(t *testing.T) {
	inv := &fakeInvalidator{}
	d := NewDispatcher(inv, logger.Default())

	d.Dispatch(records(3))
	d.Close()

	require.Equal(t, 1, inv.batchCount())
	assert.Len(t, inv.batches[0], 3)
}

func TestDispatch_EmptyBatchIgnored(t *testing.T) {
	inv := &fakeInvalidator{}
	d := NewDispatcher(inv, logger.Default())

	d.Dispatch(nil)
	d.Close()

	assert.Zero(t, inv.batchCount())
}

func TestDispatch_FullQueueDropsWithoutBlocking(t *testing.T) {
	block := make(chan struct{})
	inv := &fakeInvalidator{block: block}
	d := NewDispatcher(inv, logger.Default(), WithQueueSize(1))

	// First batch occupies the worker, second fills the queue, third must be
	// dropped rather than block the caller.
	done := make(chan struct{})
	go func() {
		d.Dispatch(records(1))
		d.Dispatch(records(1))
		d.Dispatch(records(1))
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Dispatch blocked on a full queue")
	}

	close(block)
	d.Close()
	assert.LessOrEqual(t, inv.batchCount(), 2)
}

func TestClose_DrainsQueuedBatches(t *testing.T) {
	inv := &fakeInvalidator{}
	d := NewDispatcher(inv, logger.Default(), WithQueueSize(16))

	for i := 0; i < 10; i++ {
		d.Dispatch(records(1))
	}
	d.Close()

	assert.Equal(t, 10, inv.batchCount())
}

func TestClose_Idempotent(t *testing.T) {
	d := NewDispatcher(&fakeInvalidator{}, logger.Default())
	d.Close()
	assert.NotPanics(t, d.Close)
}

func TestNotify_SynchronousAndErrorSuppressed(t *testing.T) {
	inv := &fakeInvalidator{err: errors.New("cache backend down")}
	d := NewDispatcher(inv, logger.Default())
	defer d.Close()

	// Errors never propagate to the caller.
	d.Notify(context.Background(), records(2))

	assert.Equal(t, 1, inv.batchCount())
}

func TestNotify_PanicRecovered(t *testing.T) {
	inv := &fakeInvalidator{panics: true}
	d := NewDispatcher(inv, logger.Default())
	defer d.Close()

	assert.NotPanics(t, func() {
		d.Notify(context.Background(), records(1))
	})
}

func TestDispatch_PanicDoesNotKillWorker(t *testing.T) {
	inv := &fakeInvalidator{panics: true}
	d := NewDispatcher(inv, logger.Default())

	d.Dispatch(records(1))
	inv.waitAttempts(t, 1)

	// Worker survives the panic and keeps consuming.
	inv.setPanics(false)
	d.Dispatch(records(1))
	d.Close()

	assert.Equal(t, 1, inv.batchCount())
}

func TestRecorder_CountsPerEntityType(t *testing.T) {
	rec := NewRecorder()
	inv := &fakeInvalidator{}
	d := NewDispatcher(inv, logger.Default(), WithRecorder(rec))

	d.Dispatch([]entity.ChangeRecord{
		{EntityType: "page", EntityID: 1, Op: entity.OpCreated},
		{EntityType: "page", EntityID: 2, Op: entity.OpModified},
		{EntityType: "product", EntityID: 3, Op: entity.OpDeleted},
	})
	d.Close()

	snapshot := rec.Snapshot()
	require.Len(t, snapshot, 2)
	assert.Equal(t, TypeCount{EntityType: "page", Count: 2}, snapshot[0])
	assert.Equal(t, TypeCount{EntityType: "product", Count: 1}, snapshot[1])
}
