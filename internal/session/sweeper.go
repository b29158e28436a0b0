package session

import (
	"context"
	"log/slog"
	"time"
)

const DefaultSweepInterval = time.Minute

// Sweeper periodically removes expired sessions. It runs as a worker
// alongside the gateway and messaging servers.
type Sweeper struct {
	service  *Service
	interval time.Duration
}

// NewSweeper creates a sweeper; a non-positive interval falls back to the
// default.
func NewSweeper(service *Service, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &Sweeper{service: service, interval: interval}
}

// Start runs the sweep loop until the context is cancelled.
func (w *Sweeper) Start(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := w.service.Sweep(ctx, time.Now().UTC()); err != nil {
				slog.WarnContext(ctx, "sweeping sessions", "error", err)
			}
		}
	}
}
