package http

import (
	"context"
	"runtime/debug"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-lifecycle/internal/observability"
	apperrors "github.com/spec-kit/ticket-lifecycle/pkg/util"
)

// RegisterMiddlewares attaches the request timeout, the error envelope and
// request logging, in that order.
func RegisterMiddlewares(app *fiber.App, logger *zap.Logger, metrics *observability.Metrics, timeout time.Duration) {
	if timeout > 0 {
		app.Use(requestTimeoutMiddleware(timeout))
	}
	app.Use(errorEnvelopeMiddleware(logger, metrics))
	app.Use(observability.RequestLogger(logger, metrics))
}

func requestTimeoutMiddleware(timeout time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), timeout)
		defer cancel()
		c.SetUserContext(ctx)
		return c.Next()
	}
}

// errorEnvelopeMiddleware renders every error as
// {"error":{"code","message","details","retryable"}}. Only a concurrency
// conflict is retryable: the ticket moved underneath the caller and the same
// request may succeed against the fresh version.
func errorEnvelopeMiddleware(logger *zap.Logger, metrics *observability.Metrics) fiber.Handler {
	return func(c *fiber.Ctx) (err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("panic recovered", zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))
				err = apperrors.NewInternalError(nil)
			}
			if err == nil {
				return
			}
			domainErr := apperrors.ToDomainError(err)
			route := routePattern(c)
			metrics.RecordError(route, c.Method(), domainErr.Code)

			body := fiber.Map{
				"code":      domainErr.Code,
				"message":   domainErr.Message,
				"retryable": domainErr.Code == apperrors.CodeConflict,
			}
			if len(domainErr.Details) > 0 {
				body["details"] = domainErr.Details
			}

			fields := []zap.Field{
				zap.String("route", route),
				zap.String("method", c.Method()),
				zap.String("code", domainErr.Code),
			}
			if domainErr.HTTPStatus >= 500 {
				logger.Error("request failed", append(fields, zap.Error(domainErr))...)
			} else {
				logger.Debug("request rejected", fields...)
			}

			c.Status(domainErr.HTTPStatus)
			_ = c.JSON(fiber.Map{"error": body})
			err = nil
		}()
		return c.Next()
	}
}

// routePattern keys counters by the matched route, so /tickets/1 and
// /tickets/2 share one entry.
func routePattern(c *fiber.Ctx) string {
	if r := c.Route(); r != nil && r.Path != "" {
		return r.Path
	}
	return c.Path()
}
