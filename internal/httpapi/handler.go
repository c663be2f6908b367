// Package httpapi exposes the rollcall services over HTTP with gin.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"rollcall/internal/account"
	"rollcall/internal/attendance"
	"rollcall/internal/classroom"
)

// HealthCheck is one dependency probed by /healthz.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// Handler holds the services behind the routes.
type Handler struct {
	accounts   *account.Service
	classes    *classroom.Service
	attendance *attendance.Service
	checks     []HealthCheck
	maxUpload  int64
	log        zerolog.Logger
}

func (h *Handler) Healthz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	status := http.StatusOK
	deps := make(map[string]string, len(h.checks))
	for _, chk := range h.checks {
		if err := chk.Check(ctx); err != nil {
			deps[chk.Name] = "down"
			status = http.StatusServiceUnavailable
			h.log.Warn().Err(err).Str("dependency", chk.Name).Msg("health check failed")
			continue
		}
		deps[chk.Name] = "ok"
	}
	c.JSON(status, Envelope{Success: status == http.StatusOK, Message: http.StatusText(status), Data: deps})
}
