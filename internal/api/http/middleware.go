package http

import (
	"context"
	"errors"
	"runtime/debug"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/corpnet/helpdesk/internal/observability"
	apperrors "github.com/corpnet/helpdesk/pkg/util/errorutil"
)

const headerRequestID = "X-Request-ID"

// RegisterMiddlewares installs request ids, the per-request deadline, error
// rendering and access logging, in that order.
func RegisterMiddlewares(app *fiber.App, logger *zap.Logger, metrics *observability.Metrics, timeout time.Duration) {
	app.Use(requestIDMiddleware())
	if timeout > 0 {
		app.Use(requestTimeoutMiddleware(timeout))
	}
	app.Use(errorHandlingMiddleware(logger, metrics))
	app.Use(observability.RequestLogger(logger, metrics))
}

// requestIDMiddleware keeps a caller-supplied X-Request-ID or mints one.
func requestIDMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Get(headerRequestID)
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		c.Locals(observability.RequestIDKey, id)
		c.Set(headerRequestID, id)
		return c.Next()
	}
}

func requestTimeoutMiddleware(timeout time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), timeout)
		defer cancel()
		c.SetUserContext(ctx)
		return c.Next()
	}
}

func errorHandlingMiddleware(logger *zap.Logger, metrics *observability.Metrics) fiber.Handler {
	return func(c *fiber.Ctx) (err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("panic recovered",
					zap.Any("panic", r),
					zap.String("request_id", requestID(c)),
					zap.ByteString("stack", debug.Stack()),
				)
				err = apperrors.NewInternalError(nil)
			}
			if err == nil {
				return
			}
			renderError(c, err, logger, metrics)
			err = nil
		}()
		return c.Next()
	}
}

// renderError writes the {"error":{...}} envelope. Router-level errors such as
// unknown routes arrive as *fiber.Error and keep their status.
func renderError(c *fiber.Ctx, err error, logger *zap.Logger, metrics *observability.Metrics) {
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		_ = c.Status(fiberErr.Code).JSON(fiber.Map{"error": fiber.Map{
			"code":       "HTTP_ERROR",
			"message":    fiberErr.Message,
			"request_id": requestID(c),
		}})
		return
	}

	domainErr := apperrors.ToDomainError(err)
	if metrics != nil {
		metrics.RecordError(c.Path(), c.Method(), domainErr.Code)
	}
	body := fiber.Map{
		"code":       domainErr.Code,
		"message":    domainErr.Message,
		"request_id": requestID(c),
	}
	if len(domainErr.Details) > 0 {
		body["details"] = domainErr.Details
	}
	if domainErr.HTTPStatus >= fiber.StatusInternalServerError {
		logger.Error("request failed", zap.String("request_id", requestID(c)), zap.Error(domainErr))
	}
	_ = c.Status(domainErr.HTTPStatus).JSON(fiber.Map{"error": body})
}

func requestID(c *fiber.Ctx) string {
	id, _ := c.Locals(observability.RequestIDKey).(string)
	return id
}
