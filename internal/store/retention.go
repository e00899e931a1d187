package store

import (
	"context"
	"log/slog"
	"time"
)

// StartRetentionWorker runs a background goroutine that periodically deletes
// event logs older than maxAge. A zero maxAge disables the worker.
func StartRetentionWorker(ctx context.Context, events EventStore, maxAge, interval time.Duration) {
	if maxAge <= 0 {
		slog.Info("Retention worker disabled")
		return
	}

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		slog.Info("Retention worker started", "interval", interval, "max_age", maxAge)

		for {
			select {
			case <-ticker.C:
				PurgeExpiredEvents(ctx, events, maxAge, time.Now())
			case <-ctx.Done():
				slog.Info("Retention worker shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
}

// PurgeExpiredEvents runs one retention sweep and returns the number of rows removed.
func PurgeExpiredEvents(ctx context.Context, events EventStore, maxAge time.Duration, now time.Time) int64 {
	cutoff := now.Add(-maxAge)
	deleted, err := events.DeleteEventsBefore(ctx, cutoff)
	if err != nil {
		if ctx.Err() != nil {
			slog.Debug("Retention worker: context canceled during sweep", "error", err)
			return 0
		}
		slog.Error("Retention worker failed to delete old events", "error", err)
		return 0
	}
	if deleted > 0 {
		slog.Info("Retention worker removed old events", "count", deleted, "cutoff", cutoff)
	}
	return deleted
}
