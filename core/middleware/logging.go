package middleware

import (
	"time"

	"go.uber.org/zap"

	"github.com/miladsoleymani/topicmux/core"
)

// Logging returns middleware that logs message processing duration and errors.
func Logging(logger *zap.Logger) core.MiddlewareFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next core.HandlerFunc) core.HandlerFunc {
		return func(c core.Context) error {
			start := time.Now()
			err := next(c)

			fields := []zap.Field{
				zap.String("destination", c.Destination()),
				zap.String("kind", string(c.Kind())),
				zap.String("subscription_id", c.SubscriptionID()),
				zap.Duration("elapsed", time.Since(start)),
			}
			if err != nil {
				logger.Error("message failed", append(fields, zap.Error(err))...)
			} else {
				logger.Debug("message handled", fields...)
			}
			return err
		}
	}
}
