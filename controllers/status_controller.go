package controllers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"repricer/scheduler"
	"repricer/services/events"
	"repricer/services/pricecache"
	"repricer/store"
)

// StatusController exposes read-only operational state: job schedules,
// recent run history, cache freshness and the live run-event feed.
type StatusController struct {
	supervisor *scheduler.Supervisor
	audit      *store.AuditStore
	kv         store.KV
	cache      *pricecache.Cache
	hub        *events.Hub
}

// NewStatusController creates the ops controller
func NewStatusController(supervisor *scheduler.Supervisor, audit *store.AuditStore, kv store.KV, cache *pricecache.Cache, hub *events.Hub) *StatusController {
	return &StatusController{
		supervisor: supervisor,
		audit:      audit,
		kv:         kv,
		cache:      cache,
		hub:        hub,
	}
}

// Health is the unauthenticated liveness probe
// GET /health
func (sc *StatusController) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// GetStatus returns the schedule of every job across all accounts
// GET /api/v1/status
func (sc *StatusController) GetStatus(c *gin.Context) {
	statuses := sc.supervisor.JobStatuses()
	c.JSON(http.StatusOK, gin.H{
		"jobs":  statuses,
		"count": len(statuses),
	})
}

// GetRuns returns the most recent runs from the audit history
// GET /api/v1/runs?limit=50
func (sc *StatusController) GetRuns(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	runs, err := sc.audit.RecentRuns(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"runs":  runs,
		"count": len(runs),
	})
}

type datasetFreshness struct {
	Dataset string `json:"dataset"`
	Fresh   bool   `json:"fresh"`
	TTLSecs int64  `json:"ttl_seconds"`
}

// GetCache reports the freshness of both price datasets
// GET /api/v1/cache
func (sc *StatusController) GetCache(c *gin.Context) {
	datasets := []string{pricecache.DatasetPricelist, pricecache.DatasetLowestPrices}

	out := make([]datasetFreshness, 0, len(datasets))
	for _, dataset := range datasets {
		ttl, err := sc.kv.TTL(c.Request.Context(), sc.cache.Key(dataset))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		out = append(out, datasetFreshness{
			Dataset: dataset,
			Fresh:   ttl > 0,
			TTLSecs: int64(ttl / time.Second),
		})
	}

	c.JSON(http.StatusOK, gin.H{"datasets": out})
}

// StreamEvents upgrades to a websocket run-event subscription
// GET /ws
func (sc *StatusController) StreamEvents(c *gin.Context) {
	sc.hub.ServeWS(c.Writer, c.Request)
}
