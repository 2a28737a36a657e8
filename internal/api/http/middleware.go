package http

import (
	"context"
	"runtime/debug"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/civic-issue-service/internal/auth"
	"github.com/spec-kit/civic-issue-service/internal/observability"
	apperrors "github.com/spec-kit/civic-issue-service/pkg/util"
)

// RegisterMiddlewares attaches global middlewares such as error handling and logging.
func RegisterMiddlewares(app *fiber.App, logger *zap.Logger, metrics *observability.Metrics, timeout time.Duration) {
	if timeout > 0 {
		app.Use(requestTimeoutMiddleware(timeout))
	}
	app.Use(errorHandlingMiddleware(logger, metrics))
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

func errorHandlingMiddleware(logger *zap.Logger, metrics *observability.Metrics) fiber.Handler {
	return func(c *fiber.Ctx) (err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("panic recovered", zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))
				err = apperrors.NewInternalError(nil)
			}
			if err != nil {
				domainErr := apperrors.ToDomainError(err)
				if metrics != nil {
					metrics.RecordError(c.Path(), c.Method(), domainErr.Code)
				}
				response := fiber.Map{"error": fiber.Map{
					"code":    domainErr.Code,
					"message": domainErr.Message,
				}}
				if len(domainErr.Details) > 0 {
					response["error"].(fiber.Map)["details"] = domainErr.Details
				}
				if domainErr.HTTPStatus >= 500 {
					logger.Error("request failed", zap.Error(domainErr))
				}
				c.Status(domainErr.HTTPStatus)
				_ = c.JSON(response)
				err = nil
			}
		}()
		return c.Next()
	}
}

const submissionLimitPrefix = "ratelimit:issue-submit"

// SubmissionRateLimiter caps how many issues a user may submit per rolling
// day, counted per user in Redis. A nil client or non-positive limit disables
// the cap.
func SubmissionRateLimiter(client *redis.Client, limit int, logger *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if client == nil || limit <= 0 {
			return c.Next()
		}
		principal, ok := auth.PrincipalFromContext(c)
		if !ok || principal.User == nil {
			return apperrors.NewUnauthorized("user required")
		}

		userKey := submissionLimitPrefix + ":" + principal.User.ID
		ctx := c.UserContext()

		count, err := client.Incr(ctx, userKey).Result()
		if err != nil {
			// Do not block submissions when the limiter store is down.
			logger.Warn("rate limiter unavailable", zap.Error(err))
			return c.Next()
		}
		if count == 1 {
			if err := client.Expire(ctx, userKey, 24*time.Hour).Err(); err != nil {
				logger.Warn("rate limiter ttl not set", zap.String("key", userKey), zap.Error(err))
			}
		}
		if count > int64(limit) {
			retryAfter, _ := client.TTL(ctx, userKey).Result()
			return apperrors.NewRateLimited("daily submission limit reached", map[string]any{
				"limit":               limit,
				"retry_after_seconds": int(retryAfter.Seconds()),
			})
		}
		return c.Next()
	}
}
