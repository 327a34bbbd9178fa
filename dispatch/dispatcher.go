// Package dispatch turns inbound bus messages into typed events and hands
// them to an ordered list of handlers.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"github.com/fuad-daoud/discord-relay/bus"
	"github.com/fuad-daoud/discord-relay/entity"
	"github.com/fuad-daoud/discord-relay/logger/dlog"
	"github.com/fuad-daoud/discord-relay/metrics"
	"github.com/fuad-daoud/discord-relay/remote"
	"log/slog"
	"time"
)

var (
	ErrUnrecognizedEvent = errors.New("unrecognized event")
	ErrIllegalTransition = errors.New("illegal shard status transition")
	ErrHandlerPanic      = errors.New("handler panicked")
)

type Option func(*Dispatcher)

// WithHandlers appends handlers in the order given.
func WithHandlers(handlers ...Handler) Option {
	return func(d *Dispatcher) {
		d.handlers = append(d.handlers, handlers...)
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) {
		if logger != nil {
			d.log = logger
		}
	}
}

func WithMetrics(sink metrics.Sink) Option {
	return func(d *Dispatcher) {
		if sink != nil {
			d.metrics = sink
		}
	}
}

// WithFailFast stops an event at the first failing handler and returns its
// error. By default every handler runs and failures are only logged.
func WithFailFast(failFast bool) Option {
	return func(d *Dispatcher) {
		d.failFast = failFast
	}
}

func WithStrictShardTransitions(strict bool) Option {
	return func(d *Dispatcher) {
		d.status = NewStatusTable(strict)
	}
}

func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) {
		if now != nil {
			d.now = now
		}
	}
}

type Dispatcher struct {
	client   *remote.Client
	handlers []Handler
	log      *slog.Logger
	metrics  metrics.Sink
	failFast bool
	status   *StatusTable
	now      func() time.Time
}

func New(client *remote.Client, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		client:  client,
		log:     dlog.Discard(),
		metrics: metrics.Noop(),
		status:  NewStatusTable(false),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Dispatcher) Status() *StatusTable {
	return d.status
}

func (d *Dispatcher) Handlers() []Handler {
	return d.handlers
}

// Decode returns the typed event carried by env. Unknown types fail with
// ErrUnrecognizedEvent.
func Decode(env bus.Envelope) (bus.Typed, error) {
	switch env.Type {
	case bus.TypeShardStatusChange:
		return decode[bus.ShardStatusChange](env)
	case bus.TypeShardLifecycle:
		return decode[bus.ShardLifecycleEvent](env)
	case bus.TypeGuildJoin:
		return decode[bus.GuildJoinEvent](env)
	case bus.TypeGuildLeave:
		return decode[bus.GuildLeaveEvent](env)
	case bus.TypeVoiceJoin:
		return decode[bus.VoiceJoinEvent](env)
	case bus.TypeVoiceLeave:
		return decode[bus.VoiceLeaveEvent](env)
	case bus.TypeVoiceMove:
		return decode[bus.VoiceMoveEvent](env)
	case bus.TypeVoiceServerUpdate:
		return decode[bus.VoiceServerUpdate](env)
	case bus.TypeGuildMessage:
		return decode[bus.GuildMessageEvent](env)
	case bus.TypePrivateMessage:
		return decode[bus.PrivateMessageEvent](env)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnrecognizedEvent, env.Type)
}

func decode[T bus.Typed](env bus.Envelope) (bus.Typed, error) {
	v, err := bus.Decode[T](env)
	if err != nil {
		return nil, err
	}
	return v, nil
}

// Dispatch decodes env and runs every handler for it. Unrecognized and
// malformed messages are logged and dropped. Only fail-fast mode returns
// handler errors.
func (d *Dispatcher) Dispatch(ctx context.Context, env bus.Envelope) error {
	ev, err := Decode(env)
	if err != nil {
		d.log.WarnContext(ctx, "Dropping inbound message", "type", env.Type, "err", err)
		d.metrics.Count("dispatch.dropped", env.Type)
		return nil
	}
	d.metrics.Count("dispatch.events", env.Type)
	return d.dispatch(ctx, ev)
}

func (d *Dispatcher) dispatch(ctx context.Context, ev bus.Typed) error {
	c := d.client
	switch ev := ev.(type) {
	case bus.ShardStatusChange:
		if err := d.status.Record(ev, d.now()); err != nil {
			d.log.WarnContext(ctx, "Rejected shard status", "shard", ev.ShardID, "err", err)
			return nil
		}
		return d.each(ctx, ev.BusType(), func(h Handler) error { return h.OnShardStatusChange(ctx, ev) })
	case bus.ShardLifecycleEvent:
		return d.each(ctx, ev.BusType(), func(h Handler) error { return h.OnShardLifecycle(ctx, ev) })
	case bus.GuildJoinEvent:
		g := entity.NewGuild(c, ev.GuildID)
		return d.each(ctx, ev.BusType(), func(h Handler) error { return h.OnGuildJoin(ctx, g) })
	case bus.GuildLeaveEvent:
		g := entity.NewGuild(c, ev.GuildID)
		return d.each(ctx, ev.BusType(), func(h Handler) error { return h.OnGuildLeave(ctx, g) })
	case bus.VoiceJoinEvent:
		ch, m := entity.NewVoiceChannel(c, ev.GuildID, ev.ChannelID), entity.NewMember(c, ev.GuildID, ev.MemberID)
		return d.each(ctx, ev.BusType(), func(h Handler) error { return h.OnVoiceJoin(ctx, ch, m) })
	case bus.VoiceLeaveEvent:
		ch, m := entity.NewVoiceChannel(c, ev.GuildID, ev.ChannelID), entity.NewMember(c, ev.GuildID, ev.MemberID)
		return d.each(ctx, ev.BusType(), func(h Handler) error { return h.OnVoiceLeave(ctx, ch, m) })
	case bus.VoiceMoveEvent:
		from := entity.NewVoiceChannel(c, ev.GuildID, ev.OldChannelID)
		to := entity.NewVoiceChannel(c, ev.GuildID, ev.NewChannelID)
		m := entity.NewMember(c, ev.GuildID, ev.MemberID)
		return d.each(ctx, ev.BusType(), func(h Handler) error { return h.OnVoiceMove(ctx, from, to, m) })
	case bus.VoiceServerUpdate:
		return d.each(ctx, ev.BusType(), func(h Handler) error { return h.OnVoiceServerUpdate(ctx, ev) })
	case bus.GuildMessageEvent:
		msg := entity.NewMessage(c, ev)
		ctx := dlog.With(ctx, "guild", ev.GuildID, "channel", ev.ChannelID, "invoker", ev.AuthorID)
		return d.each(ctx, ev.BusType(), func(h Handler) error { return h.OnGuildMessage(ctx, msg) })
	case bus.PrivateMessageEvent:
		msg := entity.NewPrivateMessage(c, ev)
		ctx := dlog.With(ctx, "invoker", ev.AuthorID)
		return d.each(ctx, ev.BusType(), func(h Handler) error { return h.OnPrivateMessage(ctx, msg) })
	}
	return fmt.Errorf("%w: %T", ErrUnrecognizedEvent, ev)
}

func (d *Dispatcher) each(ctx context.Context, kind string, fn func(Handler) error) error {
	for i, h := range d.handlers {
		err := runSafely(func() error { return fn(h) })
		if err == nil {
			continue
		}
		d.metrics.Count("dispatch.handler.failures", kind)
		d.log.ErrorContext(ctx, "Handler failed", "event", kind, "handler", fmt.Sprintf("%T", h), "position", i, "err", err)
		if d.failFast {
			return fmt.Errorf("%s handler %d: %w", kind, i, err)
		}
	}
	return nil
}

func runSafely(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrHandlerPanic, r)
		}
	}()
	return fn()
}
