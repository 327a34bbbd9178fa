// Package bot wires the relay together: the remote client and its cache,
// the dispatcher with the standard handlers, and the command router.
package bot

import (
	"github.com/fuad-daoud/discord-relay/audio"
	"github.com/fuad-daoud/discord-relay/bus"
	"github.com/fuad-daoud/discord-relay/command"
	"github.com/fuad-daoud/discord-relay/command/builtin"
	"github.com/fuad-daoud/discord-relay/config"
	"github.com/fuad-daoud/discord-relay/dispatch"
	"github.com/fuad-daoud/discord-relay/handlers"
	"github.com/fuad-daoud/discord-relay/logger/dlog"
	"github.com/fuad-daoud/discord-relay/metrics"
	"github.com/fuad-daoud/discord-relay/perms"
	"github.com/fuad-daoud/discord-relay/ratelimit"
	"github.com/fuad-daoud/discord-relay/remote"
	"github.com/robfig/cron/v3"
	"log/slog"
	"time"
)

type Option func(*options)

type options struct {
	log      *slog.Logger
	metrics  metrics.Sink
	relay    audio.Relay
	commands []command.Command
	exec     func(func())
	schedule func(time.Duration, func())
	now      func() time.Time
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

// WithRelay replaces the audio relay that publishes on the bus.
func WithRelay(relay audio.Relay) Option {
	return func(o *options) {
		if relay != nil {
			o.relay = relay
		}
	}
}

// WithCommands registers commands next to the built-in ones.
func WithCommands(cmds ...command.Command) Option {
	return func(o *options) {
		o.commands = append(o.commands, cmds...)
	}
}

// WithCommandExecutor sets where accepted commands run.
func WithCommandExecutor(exec func(func())) Option {
	return func(o *options) {
		if exec != nil {
			o.exec = exec
		}
	}
}

// WithScheduler sets how delayed work such as the hello message runs.
func WithScheduler(schedule func(time.Duration, func())) Option {
	return func(o *options) {
		if schedule != nil {
			o.schedule = schedule
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

type Bot struct {
	cfg     config.App
	log     *slog.Logger
	metrics metrics.Sink

	client     *remote.Client
	dispatcher *dispatch.Dispatcher
	router     *command.Router
	limiter    *ratelimit.Limiter
	events     *handlers.EventLogger

	cron  *cron.Cron
	lanes *lanes
}

func New(cfg config.App, pub bus.Publisher, store config.Store, opts ...Option) (*Bot, error) {
	o := options{log: dlog.Discard(), metrics: metrics.Noop(), now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	if o.relay == nil {
		o.relay = audio.NewBusRelay(pub, o.log, o.metrics)
	}

	client := remote.NewClient(pub,
		remote.WithLogger(o.log),
		remote.WithMetrics(o.metrics),
		remote.WithClock(o.now),
		remote.WithRequestTimeout(cfg.RequestTimeout),
		remote.WithCacheTTL(cfg.CacheTTL),
	)

	limiterOpts := []ratelimit.Option{
		ratelimit.WithLogger(o.log),
		ratelimit.WithMetrics(o.metrics),
		ratelimit.WithClock(o.now),
		ratelimit.WithWhitelist(cfg.AdminIDs...),
	}
	if cfg.AutoBlacklist {
		limiterOpts = append(limiterOpts, ratelimit.WithAutoBlacklist(cfg.BlacklistThreshold))
	}
	limiter := ratelimit.New(limiterOpts...)

	b := &Bot{cfg: cfg, log: o.log, metrics: o.metrics, client: client, limiter: limiter, lanes: newLanes()}
	b.events = handlers.NewEventLogger(handlers.WithLogger(o.log), handlers.WithMetrics(o.metrics))

	registry := command.NewRegistry()
	router := command.NewRouter(client, registry, store, perms.NewResolver(client, cfg.AdminIDs, o.log), limiter, cfg,
		command.WithLogger(o.log),
		command.WithMetrics(o.metrics),
		command.WithExecutor(o.exec),
	)
	b.router = router
	handlerOpts := []handlers.Option{
		handlers.WithLogger(o.log),
		handlers.WithMetrics(o.metrics),
		handlers.WithClock(o.now),
		handlers.WithScheduler(o.schedule),
	}
	b.dispatcher = dispatch.New(client,
		dispatch.WithLogger(o.log),
		dispatch.WithMetrics(o.metrics),
		dispatch.WithClock(o.now),
		dispatch.WithFailFast(cfg.FailFastHandlers),
		dispatch.WithStrictShardTransitions(cfg.StrictShardTransitions),
		dispatch.WithHandlers(
			b.events,
			handlers.NewGuildLifecycle(store, o.relay, cfg, handlerOpts...),
			handlers.NewVoiceRelay(o.relay, handlerOpts...),
			&cachePrimer{client: client, log: o.log},
			handlers.NewMessageEntry(router, handlerOpts...),
		),
	)

	cmds := append(builtin.All(store, b.dispatcher.Status()), o.commands...)
	if err := registry.Register(cmds...); err != nil {
		client.Close()
		return nil, err
	}
	return b, nil
}

func (b *Bot) Client() *remote.Client             { return b.client }
func (b *Bot) Dispatcher() *dispatch.Dispatcher   { return b.dispatcher }
func (b *Bot) Router() *command.Router            { return b.router }
func (b *Bot) Limiter() *ratelimit.Limiter        { return b.limiter }
func (b *Bot) EventLogger() *handlers.EventLogger { return b.events }
