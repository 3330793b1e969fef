package logger

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const RequestIDHeader = "X-Request-ID"

// FiberMiddleware assigns a request id, stores a request-scoped logger in the
// user context and logs every request once the error handler has run.
func FiberMiddleware(base *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		requestID := c.Get(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set(RequestIDHeader, requestID)
		c.Locals("request_id", requestID)

		ctx, reqLogger := WithRequestID(c.UserContext(), base, requestID)
		reqLogger = reqLogger.With(
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
		)
		c.SetUserContext(WithContext(ctx, reqLogger))

		chainErr := c.Next()
		if chainErr != nil {
			// render the error now so the logged status matches the response
			if err := c.App().ErrorHandler(c, chainErr); err != nil {
				_ = c.SendStatus(fiber.StatusInternalServerError)
			}
		}

		status := c.Response().StatusCode()
		fields := []zap.Field{
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.IP()),
			zap.String("user_agent", c.Get(fiber.HeaderUserAgent)),
			zap.Int("body_size", len(c.Response().Body())),
		}
		if q := string(c.Request().URI().QueryString()); q != "" {
			fields = append(fields, zap.String("query", q))
		}
		if chainErr != nil {
			fields = append(fields, zap.Error(chainErr))
		}

		msg := "HTTP Request"
		switch {
		case status >= 500:
			reqLogger.Error(msg, fields...)
		case status >= 400:
			reqLogger.Warn(msg, fields...)
		default:
			reqLogger.Info(msg, fields...)
		}
		return nil
	}
}

// Recovery turns panics into 500 responses and logs them with a stack trace.
func Recovery(base *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) (err error) {
		defer func() {
			if r := recover(); r != nil {
				requestID, _ := c.Locals("request_id").(string)
				base.Error("Panic recovered",
					zap.String("request_id", requestID),
					zap.String("method", c.Method()),
					zap.String("path", c.Path()),
					zap.Any("error", r),
					zap.Stack("stacktrace"),
				)
				err = fiber.NewError(fiber.StatusInternalServerError, fmt.Sprint("panic: ", r))
			}
		}()
		return c.Next()
	}
}

// Ctx returns the request-scoped logger stored by FiberMiddleware.
func Ctx(c *fiber.Ctx) *zap.Logger {
	return FromContext(c.UserContext())
}
