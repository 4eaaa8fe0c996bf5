package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/corpnet/helpdesk/internal/observability"
)

const readinessTimeout = 2 * time.Second

// Pinger is satisfied by the Postgres pool and Redis client wrappers.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Dependency is a named backend checked by the readiness probe. A nil Pinger
// is reported as disabled and does not fail readiness.
type Dependency struct {
	Name   string
	Pinger Pinger
}

// HealthHandler serves liveness, readiness and counter snapshots.
type HealthHandler struct {
	serviceName string
	version     string
	metrics     *observability.Metrics
	deps        []Dependency
}

func NewHealthHandler(serviceName, version string, metrics *observability.Metrics, deps ...Dependency) *HealthHandler {
	return &HealthHandler{serviceName: serviceName, version: version, metrics: metrics, deps: deps}
}

func (h *HealthHandler) Live(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "alive",
		"service": h.serviceName,
		"version": h.version,
	})
}

// Ready pings every dependency and answers 503 if any of them fails.
func (h *HealthHandler) Ready(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), readinessTimeout)
	defer cancel()

	statuses := make(fiber.Map, len(h.deps))
	ready := true
	for _, dep := range h.deps {
		switch {
		case dep.Pinger == nil:
			statuses[dep.Name] = "disabled"
		case dep.Pinger.Ping(ctx) != nil:
			statuses[dep.Name] = "unavailable"
			ready = false
		default:
			statuses[dep.Name] = "ok"
		}
	}

	if !ready {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": fiber.Map{
				"code":    "DEPENDENCY_UNAVAILABLE",
				"message": "one or more dependencies unavailable",
				"details": statuses,
			},
		})
	}
	return c.JSON(fiber.Map{"status": "ready", "dependencies": statuses})
}

// Stats returns the in-process request, error and notification counters.
func (h *HealthHandler) Stats(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"data": h.metrics.Snapshot()})
}
