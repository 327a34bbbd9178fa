package remote

import (
	"github.com/fuad-daoud/discord-relay/logger/dlog"
	"github.com/fuad-daoud/discord-relay/metrics"
	"github.com/google/uuid"
	"log/slog"
	"time"
)

type Option func(*options)

type options struct {
	logger         *slog.Logger
	metrics        metrics.Sink
	newID          func() string
	now            func() time.Time
	requestTimeout time.Duration
	cacheTTL       time.Duration
}

func defaultOptions() options {
	return options{
		logger:         dlog.Discard(),
		metrics:        metrics.Noop(),
		newID:          uuid.NewString,
		now:            time.Now,
		requestTimeout: 10 * time.Second,
		cacheTTL:       DefaultTTL,
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
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

// WithIDGenerator replaces the random correlation id source.
func WithIDGenerator(fn func() string) Option {
	return func(o *options) {
		if fn != nil {
			o.newID = fn
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

// WithRequestTimeout bounds the blocking calls made by the client itself:
// cache loads and the application info lookup.
func WithRequestTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.requestTimeout = d
		}
	}
}

func WithCacheTTL(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.cacheTTL = d
		}
	}
}
