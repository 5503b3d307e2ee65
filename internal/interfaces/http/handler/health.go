package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ordersync/backend/internal/application/probe"
	"github.com/ordersync/backend/internal/domain/pipeline"
	"github.com/ordersync/backend/internal/infrastructure/roar"
	"github.com/ordersync/backend/internal/infrastructure/unleashed"
)

// roarAuthResource is the probe history key for target auth checks
const roarAuthResource = "roar:auth"

// AuthCheck verifies the stored target credentials against the live system
type AuthCheck func(ctx context.Context) *roar.AuthResult

// HealthHandler serves liveness plus the source and target health checks
type HealthHandler struct {
	BaseHandler
	probes    *probe.Service
	authCheck AuthCheck
	results   pipeline.ProbeResultRepository
	logger    *zap.Logger
}

// NewHealthHandler creates a new HealthHandler
func NewHealthHandler(probes *probe.Service, authCheck AuthCheck, results pipeline.ProbeResultRepository, logger *zap.Logger) *HealthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HealthHandler{
		probes:    probes,
		authCheck: authCheck,
		results:   results,
		logger:    logger.Named("health"),
	}
}

// Live handles GET /health
func (h *HealthHandler) Live(c *gin.Context) {
	h.Success(c, gin.H{"status": "ok"})
}

// matchResource resolves a path parameter to a known resource,
// case-insensitively
func matchResource(param string) (unleashed.Resource, bool) {
	for _, resource := range unleashed.Resources {
		if strings.EqualFold(string(resource), param) {
			return resource, true
		}
	}
	return "", false
}

// ProbeResource handles POST /health/unleashed/:resource, running one probe
// on demand.
func (h *HealthHandler) ProbeResource(c *gin.Context) {
	matched, ok := matchResource(c.Param("resource"))
	if !ok {
		h.BadRequest(c, "unknown resource")
		return
	}

	result, err := h.probes.RunProbe(c.Request.Context(), matched)
	if err != nil {
		h.InternalError(c, err.Error())
		return
	}
	h.Success(c, gin.H{
		"resource": result.Resource,
		"ok":       result.OK,
		"status":   result.Status,
		"message":  result.Message,
	})
}

// ResourceStatus handles GET /health/unleashed/:resource, summarizing the
// stored probe history.
func (h *HealthHandler) ResourceStatus(c *gin.Context) {
	matched, ok := matchResource(c.Param("resource"))
	if !ok {
		h.BadRequest(c, "unknown resource")
		return
	}

	summary, err := h.probes.ResourceStatus(c.Request.Context(), matched)
	if err != nil {
		h.InternalError(c, err.Error())
		return
	}
	h.Success(c, summary)
}

// RoarAuth handles GET /health/roar/auth. The outcome is recorded into the
// probe history under its own resource key.
func (h *HealthHandler) RoarAuth(c *gin.Context) {
	result := h.authCheck(c.Request.Context())

	status := http.StatusOK
	if !result.OK {
		status = http.StatusServiceUnavailable
	}

	if err := h.results.Record(c.Request.Context(), &pipeline.ProbeResult{
		Resource: roarAuthResource,
		OK:       result.OK,
		Status:   status,
		Message:  result.Message,
	}); err != nil {
		h.logger.Error("failed to record auth probe", zap.Error(err))
	}

	c.JSON(status, gin.H{"ok": result.OK, "message": result.Message})
}

// RegisterRoutes registers health routes
func (h *HealthHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/health", h.Live)

	health := rg.Group("/health")
	{
		health.GET("/unleashed/:resource", h.ResourceStatus)
		health.POST("/unleashed/:resource", h.ProbeResource)
		health.GET("/roar/auth", h.RoarAuth)
	}
}
