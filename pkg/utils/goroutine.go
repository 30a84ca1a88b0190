package utils

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/ronl/business-api/pkg/logger"
)

// SafeGo runs fn on a new goroutine and logs a panic instead of crashing the process.
func SafeGo(ctx context.Context, log logger.Logger, name string, fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Error(ctx, "Background task panicked", fmt.Errorf("%v", r),
					logger.String("task", name),
					logger.String("stack", string(debug.Stack())),
				)
			}
		}()
		fn()
	}()
}
