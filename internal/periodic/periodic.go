// Package periodic runs interval tasks with cooperative cancellation.
package periodic

import (
	"context"
	"log/slog"
	"runtime/debug"
	"time"
)

// Task is one periodic callable.
type Task func(ctx context.Context) error

// Every runs task every interval until the context is cancelled. Errors and
// panics are logged and the loop continues; cancellation exits cleanly.
// Blocks; run it in its own goroutine.
func Every(ctx context.Context, interval time.Duration, name string, task Task, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Debug("periodic task started", "task", name, "interval", interval)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("periodic task stopped", "task", name)
			return
		case <-ticker.C:
			runOnce(ctx, name, task, logger)
		}
	}
}

func runOnce(ctx context.Context, name string, task Task, logger *slog.Logger) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("periodic task panicked",
				"task", name,
				"panic", r,
				"stack", string(debug.Stack()),
			)
		}
	}()
	if err := task(ctx); err != nil {
		logger.Error("periodic task failed", "task", name, "error", err)
	}
}
