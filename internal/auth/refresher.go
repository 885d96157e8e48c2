package auth

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Refresher renews the session on a cron schedule so it never lapses while
// the app is open.
type Refresher struct {
	client  *Client
	cron    *cron.Cron
	logger  *slog.Logger
	timeout time.Duration
}

func NewRefresher(client *Client, schedule string, logger *slog.Logger) (*Refresher, error) {
	r := &Refresher{
		client:  client,
		cron:    cron.New(),
		logger:  logger.With("component", "session_refresher"),
		timeout: 10 * time.Second,
	}
	if _, err := r.cron.AddFunc(schedule, r.tick); err != nil {
		return nil, fmt.Errorf("parse refresh schedule %q: %w", schedule, err)
	}
	return r, nil
}

// Start runs until ctx is cancelled, then waits for an in-flight tick.
func (r *Refresher) Start(ctx context.Context) {
	r.cron.Start()
	r.logger.Info("session refresher started")

	<-ctx.Done()
	<-r.cron.Stop().Done()
	r.logger.Info("session refresher shut down")
}

func (r *Refresher) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	if err := r.client.Refresh(ctx); err != nil {
		r.logger.Warn("refresh tick", "error", err)
	}
}
