// Package handlers holds the event handlers the bot registers with the
// dispatcher.
package handlers

import (
	"github.com/fuad-daoud/discord-relay/logger/dlog"
	"github.com/fuad-daoud/discord-relay/metrics"
	"log/slog"
	"time"
)

type Option func(*options)

type options struct {
	log      *slog.Logger
	metrics  metrics.Sink
	now      func() time.Time
	schedule func(time.Duration, func())
}

func defaultOptions() options {
	return options{
		log:     dlog.Discard(),
		metrics: metrics.Noop(),
		now:     time.Now,
		schedule: func(d time.Duration, fn func()) {
			time.AfterFunc(d, fn)
		},
	}
}

func buildOptions(opts []Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}

func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.log = logger
		}
	}
}

func WithMetrics(sink metrics.Sink) Option {
	return func(o *options) {
		if sink != nil {
			o.metrics = sink
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithScheduler replaces time.AfterFunc for delayed work.
func WithScheduler(schedule func(time.Duration, func())) Option {
	return func(o *options) {
		if schedule != nil {
			o.schedule = schedule
		}
	}
}
