// Upstream sync and health HTTP handlers.
//
//   - GET /external-sync  (authenticated pull, 2s budget)
//   - GET /health         (liveness)
//   - GET /ready          (dependency readiness)
package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-catalog-cache/internal/http/middleware"
)

// readyTimeout bounds each readiness probe.
const readyTimeout = 2 * time.Second

// ExternalSync godoc
// @ID          externalSync
// @Summary     Pull from the upstream API
// @Description Obtains a cached access token and performs one GET against the configured upstream URL. The upstream JSON body is returned unchanged. There is no retry.
// @Tags        Sync
// @Produce     json
// @Success     200  {object}  object                  "Upstream payload"
// @Failure     504  {object}  handlers.ErrorResponse  "Upstream failed or timed out"
// @Router      /external-sync [get]
func (h *Handlers) ExternalSync(c *gin.Context) {
	body, err := h.sync.Fetch(c.Request.Context())
	if err != nil {
		middleware.LoggerFrom(c).Warn().Err(err).Msg("external sync failed")
		fail(c, http.StatusGatewayTimeout, ErrCodeUpstreamTimeout, "External API timeout/failure")
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", body)
}

// HealthResponse is the liveness/readiness body.
type HealthResponse struct {
	Status string            `json:"status" example:"ok"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Health godoc
// @ID          health
// @Summary     Liveness probe
// @Tags        Health
// @Produce     json
// @Success     200  {object}  handlers.HealthResponse
// @Router      /health [get]
func (h *Handlers) Health(c *gin.Context) {
	ok(c, http.StatusOK, HealthResponse{Status: "ok"})
}

// Ready godoc
// @ID          ready
// @Summary     Readiness probe
// @Description Pings the catalog database and the cache.
// @Tags        Health
// @Produce     json
// @Success     200  {object}  handlers.HealthResponse
// @Failure     503  {object}  handlers.HealthResponse
// @Router      /ready [get]
func (h *Handlers) Ready(c *gin.Context) {
	resp := HealthResponse{Status: "ready", Checks: make(map[string]string, len(h.checks))}
	status := http.StatusOK
	for _, chk := range h.checks {
		ctx, cancel := context.WithTimeout(c.Request.Context(), readyTimeout)
		err := chk.Ping(ctx)
		cancel()
		if err != nil {
			resp.Checks[chk.Name] = err.Error()
			resp.Status = ErrCodeNotReady
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[chk.Name] = "ok"
	}
	ok(c, status, resp)
}
