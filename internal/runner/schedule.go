package runner

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	appLog "calstatus/internal/log"
)

// Schedule runs job on the cron spec until ctx is cancelled. Runs never
// overlap: a tick that fires while the previous job is still running is
// skipped.
func Schedule(ctx context.Context, spec string, loc *time.Location, job func(context.Context), logger *appLog.Logger) error {
	if loc == nil {
		loc = time.Local
	}
	c := cron.New(
		cron.WithLocation(loc),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)
	if _, err := c.AddFunc(spec, func() { job(ctx) }); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", spec, err)
	}

	logger.Info("scheduler started", "schedule", spec, "timezone", loc.String())
	c.Start()
	<-ctx.Done()

	// Wait for an in-flight job to finish.
	<-c.Stop().Done()
	logger.Info("scheduler stopped")
	return nil
}
