package middleware

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/miladsoleymani/topicmux/core"
)

// Recovery returns middleware that recovers from panics in handlers,
// logs the stack trace, and returns the panic as an error.
func Recovery(logger *zap.Logger) core.MiddlewareFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next core.HandlerFunc) core.HandlerFunc {
		return func(c core.Context) (err error) {
			defer func() {
				if r := recover(); r != nil {
					logger.Error("panic recovered",
						zap.String("destination", c.Destination()),
						zap.Any("panic", r),
						zap.StackSkip("stack", 1))
					err = fmt.Errorf("topicmux: panic recovered: %v", r)
				}
			}()
			return next(c)
		}
	}
}
