package bot

import (
	"context"
	"fmt"
	"github.com/fuad-daoud/discord-relay/bus"
	"github.com/robfig/cron/v3"
)

// SweepReport counts what one janitor run removed.
type SweepReport struct {
	Guilds     int
	Pending    int
	RateLimits int
}

// Sweep evicts expired guilds, fails calls older than the pending max age
// and forgets idle rate-limit windows.
func (b *Bot) Sweep(ctx context.Context) SweepReport {
	r := SweepReport{
		Guilds:     b.client.Cache().Sweep(),
		Pending:    b.client.Sweep(b.cfg.PendingMaxAge),
		RateLimits: b.limiter.Sweep(),
	}
	if r.Pending > 0 {
		b.log.WarnContext(ctx, "Abandoned stale calls", "count", r.Pending)
	}
	b.log.DebugContext(ctx, "Janitor ran", "guilds", r.Guilds, "pending", r.Pending, "rateLimits", r.RateLimits)
	return r
}

// Start starts draining the event lanes and schedules the janitor and the
// event summary.
func (b *Bot) Start(ctx context.Context) error {
	c := cron.New()
	if _, err := c.AddFunc(b.cfg.JanitorSchedule, func() { b.Sweep(ctx) }); err != nil {
		return fmt.Errorf("janitor schedule %q: %w", b.cfg.JanitorSchedule, err)
	}
	if _, err := c.AddFunc(b.cfg.SummarySchedule, func() { b.events.Flush(ctx) }); err != nil {
		return fmt.Errorf("summary schedule %q: %w", b.cfg.SummarySchedule, err)
	}
	b.cron = c
	c.Start()

	work := context.WithoutCancel(ctx)
	b.lanes.start(func(env bus.Envelope) {
		if err := b.Deliver(work, env); err != nil {
			b.log.ErrorContext(work, "Dispatch failed", "type", env.Type, "err", err)
		}
	})
	b.log.InfoContext(ctx, "Bot started", "prefix", b.cfg.Prefix)
	return nil
}

// Stop stops scheduling, lets the lanes drain queued events and fails every
// call still waiting on the gateway. Queued events are abandoned if ctx ends
// first.
func (b *Bot) Stop(ctx context.Context) error {
	if b.cron != nil {
		select {
		case <-b.cron.Stop().Done():
		case <-ctx.Done():
		}
	}
	b.lanes.close()

	drained := make(chan struct{})
	go func() {
		b.lanes.wait()
		close(drained)
	}()
	var err error
	select {
	case <-drained:
	case <-ctx.Done():
		err = fmt.Errorf("stop: %d events not dispatched: %w", b.lanes.len(), ctx.Err())
	}
	b.client.Close()
	b.events.Flush(ctx)
	return err
}
