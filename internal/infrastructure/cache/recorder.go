package cache

import (
	"sort"

	"github.com/puzpuzpuz/xsync/v3"

	"papyrus/internal/core/entity"
)

// Recorder accumulates invalidation traffic counters. Used by the ops
// endpoints to show what the dispatcher has been evicting.
type Recorder struct {
	counts *xsync.MapOf[string, *xsync.Counter]
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{counts: xsync.NewMapOf[string, *xsync.Counter]()}
}

// Observe counts one batch of records by entity type.
func (r *Recorder) Observe(records []entity.ChangeRecord) {
	for _, rec := range records {
		c, _ := r.counts.LoadOrCompute(rec.EntityType, func() *xsync.Counter {
			return xsync.NewCounter()
		})
		c.Inc()
	}
}

// TypeCount holds the invalidation count for one entity type.
type TypeCount struct {
	EntityType string `json:"entityType"`
	Count      int64  `json:"count"`
}

// Snapshot returns the per-type counts, sorted by entity type.
func (r *Recorder) Snapshot() []TypeCount {
	out := make([]TypeCount, 0, r.counts.Size())
	r.counts.Range(func(key string, c *xsync.Counter) bool {
		out = append(out, TypeCount{EntityType: key, Count: c.Value()})
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].EntityType < out[j].EntityType })
	return out
}
