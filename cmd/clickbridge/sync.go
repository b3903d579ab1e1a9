package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/Strob0t/clickbridge/internal/domain/installation"
)

// syncer is the part of the installation service the loop drives.
type syncer interface {
	Sync(ctx context.Context) (installation.SyncResult, error)
}

// syncTrigger requests out-of-band syncs. Requests made while one is
// already pending are coalesced.
type syncTrigger struct {
	ch chan string
}

func newSyncTrigger() *syncTrigger {
	return &syncTrigger{ch: make(chan string, 1)}
}

func (t *syncTrigger) fire(reason string) {
	select {
	case t.ch <- reason:
	default:
	}
}

// runSyncLoop syncs once at startup, then on every tick and trigger until
// ctx is done. interval 0 disables the ticker.
func runSyncLoop(ctx context.Context, s syncer, interval time.Duration, trigger *syncTrigger) {
	runSync(ctx, s, "startup")

	var tick <-chan time.Time
	if interval > 0 {
		t := time.NewTicker(interval)
		defer t.Stop()
		tick = t.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-tick:
			runSync(ctx, s, "interval")
		case reason := <-trigger.ch:
			runSync(ctx, s, reason)
		}
	}
}

func runSync(ctx context.Context, s syncer, reason string) {
	result, err := s.Sync(ctx)
	if err != nil {
		if ctx.Err() == nil {
			slog.Error("sync failed", "reason", reason, "error", err)
		}
		return
	}
	if result.Empty() {
		slog.Debug("sync made no change", "reason", reason)
		return
	}
	slog.Info("sync finished", "reason", reason, "new_status", result.NewStatus, "updates", result.SignalUpdates)
}
