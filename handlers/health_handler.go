package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// DBPinger is the database health probe. *pgxpool.Pool satisfies it.
type DBPinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler serves liveness and readiness probes.
type HealthHandler struct {
	db      DBPinger
	redis   *redis.Client
	version string
}

func NewHealthHandler(db DBPinger, redisClient *redis.Client, version string) *HealthHandler {
	return &HealthHandler{db: db, redis: redisClient, version: version}
}

// Liveness handles GET /health/liveness. It answers as long as the process
// serves requests.
func (h *HealthHandler) Liveness(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "up", "version": h.version})
}

// Readiness handles GET /health. Degraded dependencies flip the status and
// the HTTP code so load balancers stop routing here.
func (h *HealthHandler) Readiness(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	components := gin.H{}
	healthy := true

	if err := h.db.Ping(ctx); err != nil {
		components["database"] = "down"
		healthy = false
	} else {
		components["database"] = "up"
	}

	if h.redis != nil {
		if err := h.redis.Ping(ctx).Err(); err != nil {
			components["redis"] = "down"
			healthy = false
		} else {
			components["redis"] = "up"
		}
	}

	status := http.StatusOK
	overall := "up"
	if !healthy {
		status = http.StatusServiceUnavailable
		overall = "degraded"
	}

	c.JSON(status, gin.H{
		"status":     overall,
		"version":    h.version,
		"components": components,
	})
}
