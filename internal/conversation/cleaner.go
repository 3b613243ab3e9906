package conversation

import (
	"context"
	"time"

	"github.com/mesavia/restaurant-ai-platform/internal/observability/metrics"
	"github.com/mesavia/restaurant-ai-platform/pkg/logging"
)

// idleSweeper is the slice of Store the cleaner needs.
type idleSweeper interface {
	DeleteIdleBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Cleaner removes conversations idle past the retention window. Deleting the
// row also drops the transcript via the database cascade, so an abandoned
// table session leaves nothing behind.
type Cleaner struct {
	store   idleSweeper
	ttl     time.Duration
	hour    int
	metrics *metrics.PipelineMetrics
	logger  *logging.Logger
}

// NewCleaner builds the sweep scheduler. ttl is how long a conversation may
// sit idle; hour is the UTC hour of day the daily sweep runs at.
func NewCleaner(store idleSweeper, ttl time.Duration, hour int, m *metrics.PipelineMetrics, logger *logging.Logger) *Cleaner {
	if logger == nil {
		logger = logging.Default()
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if hour < 0 || hour > 23 {
		hour = 4
	}
	return &Cleaner{store: store, ttl: ttl, hour: hour, metrics: m, logger: logger}
}

// Run sweeps once at startup to catch a backlog from downtime, then once a
// day at the configured hour until ctx is cancelled.
func (c *Cleaner) Run(ctx context.Context) {
	c.Sweep(ctx)

	for {
		wait := time.Until(c.nextRun(time.Now().UTC()))
		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
			c.Sweep(ctx)
		}
	}
}

// Sweep runs one idle-conversation deletion pass.
func (c *Cleaner) Sweep(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-c.ttl)
	removed, err := c.store.DeleteIdleBefore(ctx, cutoff)
	if err != nil {
		c.logger.Error("idle conversation sweep failed", "error", err)
		return
	}
	if removed > 0 {
		c.logger.Info("idle conversations removed", "count", removed, "cutoff", cutoff)
	}
	c.metrics.AddIdleSwept(removed)
}

func (c *Cleaner) nextRun(now time.Time) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), c.hour, 0, 0, 0, time.UTC)
	if !next.After(now) {
		next = next.Add(24 * time.Hour)
	}
	return next
}
