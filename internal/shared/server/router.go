package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"partsync-backend/internal/job"
	"partsync-backend/internal/metadata"
	"partsync-backend/internal/shared/metrics"
	"partsync-backend/internal/shared/server/middleware"
	"partsync-backend/internal/shared/server/respond"
)

// RouterDeps carries the repositories the ops endpoints read from.
type RouterDeps struct {
	Jobs  job.Repo
	Cache metadata.Repo
}

// NewRouter constructs the Gin engine for the ops surface: health, metrics,
// job status, and cache inspection. The sync pipeline itself does not run
// behind this router.
func NewRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
	)

	r.GET("/healthz", func(c *gin.Context) {
		respond.OK(c, gin.H{"ok": true})
	})
	r.GET("/metrics", metrics.Handler())

	api := r.Group("/api/v1")
	api.Use(middleware.RateLimit(middleware.RateLimitConfig{
		Rules: map[string]middleware.RateLimitRule{
			"DEFAULT": {Rate: 5, Burst: 10},
		},
	}))

	api.GET("/jobs/:id", func(c *gin.Context) {
		j, err := deps.Jobs.Get(c.Request.Context(), c.Param("id"))
		if err != nil {
			if errors.Is(err, job.ErrNotFound) {
				respond.Error(c, http.StatusNotFound, "not_found", "Job not found", nil)
				return
			}
			respond.Error(c, http.StatusInternalServerError, "internal", "Failed to load job", nil)
			return
		}
		respond.OK(c, gin.H{
			"id":            j.ID,
			"totalRows":     j.TotalRows,
			"processedRows": j.ProcessedRows,
			"startedAt":     j.StartedAt,
			"completedAt":   j.CompletedAt,
		})
	})

	api.GET("/metadata/:key", func(c *gin.Context) {
		entry, err := deps.Cache.Get(c.Request.Context(), c.Param("key"))
		if err != nil {
			if errors.Is(err, metadata.ErrNotFound) {
				respond.Error(c, http.StatusNotFound, "not_found", "No cached entry for key", nil)
				return
			}
			respond.Error(c, http.StatusInternalServerError, "internal", "Failed to load entry", nil)
			return
		}
		respond.OK(c, gin.H{
			"key":            entry.Key,
			"description":    entry.Description,
			"category":       entry.Category,
			"manuallyEdited": entry.IsManuallyEdited,
			"enrichedAt":     entry.EnrichedAt,
		})
	})

	// Destructive: wipes every cached enrichment so the next run
	// reclassifies from scratch.
	api.POST("/metadata/reset", func(c *gin.Context) {
		if err := deps.Cache.Reset(c.Request.Context()); err != nil {
			respond.Error(c, http.StatusInternalServerError, "internal", "Failed to reset cache", nil)
			return
		}
		respond.OK(c, gin.H{"reset": true})
	})

	return r
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
