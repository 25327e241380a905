package handlers

import (
	"github.com/gin-gonic/gin"

	"papyrus/internal/infrastructure/cache"
)

// OpsHandler serves operational introspection endpoints.
type OpsHandler struct {
	*BaseHandler
	recorder *cache.Recorder
}

// NewOpsHandler creates an ops handler.
func NewOpsHandler(base *BaseHandler, recorder *cache.Recorder) *OpsHandler {
	return &OpsHandler{BaseHandler: base, recorder: recorder}
}

// InvalidationStats reports per-type cache invalidation counts.
func (h *OpsHandler) InvalidationStats(c *gin.Context) {
	h.OK(c, gin.H{"invalidations": h.recorder.Snapshot()})
}
