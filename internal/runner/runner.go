package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/samber/mo"

	"calstatus/internal/config"
	"calstatus/internal/event"
	"calstatus/internal/ics"
	appLog "calstatus/internal/log"
	"calstatus/internal/model"
	"calstatus/internal/presence"
	"calstatus/internal/status"
)

// ErrNoIdentities is returned when a batch has nothing to process.
var ErrNoIdentities = errors.New("no identities configured")

// Fetcher returns the raw calendar feed behind a URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (ics.Feed, error)
}

// Runner drives one resolution pass per identity: fetch, parse, build
// today's events, resolve and (unless DryRun) push to the presence service.
type Runner struct {
	fetcher  Fetcher
	setter   presence.Setter
	builder  *event.Builder
	resolver *status.Resolver
	now      func() time.Time
	logger   *appLog.Logger

	// DryRun resolves statuses without calling the presence service.
	DryRun bool
}

// New creates a Runner. now is the clock; pass time.Now outside tests.
func New(fetcher Fetcher, setter presence.Setter, builder *event.Builder, resolver *status.Resolver, now func() time.Time, logger *appLog.Logger) *Runner {
	if now == nil {
		now = time.Now
	}
	return &Runner{
		fetcher:  fetcher,
		setter:   setter,
		builder:  builder,
		resolver: resolver,
		now:      now,
		logger:   logger.With("component", "runner"),
	}
}

// Outcome is the result for one identity.
type Outcome struct {
	Identity string
	Result   mo.Result[model.StatusPayload]
}

// Report collects the outcomes of one batch.
type Report struct {
	RunID    string
	Started  time.Time
	Finished time.Time
	Outcomes []Outcome
}

// Failed returns the outcomes that ended in an error.
func (r Report) Failed() []Outcome {
	var out []Outcome
	for _, o := range r.Outcomes {
		if o.Result.IsError() {
			out = append(out, o)
		}
	}
	return out
}

// Succeeded counts identities whose status was resolved (and set).
func (r Report) Succeeded() int {
	return len(r.Outcomes) - len(r.Failed())
}

// RunBatch processes identities sequentially. A failing identity is
// recorded in the report and does not stop the others.
func (r *Runner) RunBatch(ctx context.Context, ids []config.Identity) (Report, error) {
	rep := Report{
		RunID:   uuid.NewString(),
		Started: r.now(),
	}
	if len(ids) == 0 {
		return rep, ErrNoIdentities
	}

	logger := r.logger.With("run_id", rep.RunID)
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			rep.Outcomes = append(rep.Outcomes, Outcome{Identity: id.Identity, Result: mo.Err[model.StatusPayload](err)})
			continue
		}

		payload, err := r.RunOne(ctx, id)
		if err != nil {
			logger.Error("identity failed", err, "identity", id.Identity)
			rep.Outcomes = append(rep.Outcomes, Outcome{Identity: id.Identity, Result: mo.Err[model.StatusPayload](err)})
			continue
		}
		logger.Info("status resolved",
			"identity", id.Identity,
			"status_text", payload.StatusText,
			"status_emoji", payload.StatusEmoji,
			"dry_run", r.DryRun,
		)
		rep.Outcomes = append(rep.Outcomes, Outcome{Identity: id.Identity, Result: mo.Ok(payload)})
	}

	rep.Finished = r.now()
	logger.Info("batch finished", "identities", len(ids), "failed", len(rep.Failed()))
	return rep, nil
}

// RunOne resolves and, unless DryRun, sets the status for one identity.
func (r *Runner) RunOne(ctx context.Context, id config.Identity) (model.StatusPayload, error) {
	payload, err := r.Resolve(ctx, id)
	if err != nil {
		return model.StatusPayload{}, err
	}
	if r.DryRun {
		return payload, nil
	}
	if err := r.setter.SetStatus(ctx, id.Token, payload); err != nil {
		return payload, fmt.Errorf("set status: %w", err)
	}
	return payload, nil
}

// Resolve computes the status for one identity without side effects on
// the presence service.
func (r *Runner) Resolve(ctx context.Context, id config.Identity) (model.StatusPayload, error) {
	feed, err := r.fetcher.Fetch(ctx, id.CalendarURL)
	if err != nil {
		return model.StatusPayload{}, fmt.Errorf("fetch calendar: %w", err)
	}
	builder := r.builder.ForIdentity(id.Identity)
	sources, err := ics.Parse(feed.Body, builder.Location(), r.logger.With("identity", id.Identity))
	if err != nil {
		return model.StatusPayload{}, err
	}

	now := r.now()
	events := builder.Today(sources, now)
	r.logger.Debug("candidate events built",
		"identity", id.Identity,
		"source_events", len(sources),
		"today_events", len(events),
		"from_cache", feed.FromCache,
	)
	return r.resolver.Resolve(events, now), nil
}
