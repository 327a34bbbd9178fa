package command

import (
	"context"
	"fmt"
	"github.com/disgoorg/snowflake/v2"
	"github.com/fuad-daoud/discord-relay/bus"
	"github.com/fuad-daoud/discord-relay/config"
	"github.com/fuad-daoud/discord-relay/entity"
	"github.com/fuad-daoud/discord-relay/logger/dlog"
	"github.com/fuad-daoud/discord-relay/metrics"
	"github.com/fuad-daoud/discord-relay/perms"
	"github.com/fuad-daoud/discord-relay/ratelimit"
	"github.com/fuad-daoud/discord-relay/remote"
	"log/slog"
	"strings"
	"time"
)

// Outcome is where an invocation ended up.
type Outcome string

const (
	OutcomeBlacklisted      Outcome = "blacklisted"
	OutcomeSelf             Outcome = "self"
	OutcomeNoAccess         Outcome = "no-access"
	OutcomeNoCommand        Outcome = "no-command"
	OutcomeCannotReply      Outcome = "cannot-reply"
	OutcomeQueued           Outcome = "queued"
	OutcomeModuleDisabled   Outcome = "module-disabled"
	OutcomePermissionDenied Outcome = "permission-denied"
	OutcomeRateLimited      Outcome = "rate-limited"
	OutcomeCompleted        Outcome = "completed"
	OutcomeFailed           Outcome = "failed"
)

// Report is the final state of one guild message passed to the router.
type Report struct {
	Outcome Outcome
	Command string
	Err     error
}

type Option func(*Router)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Router) {
		if logger != nil {
			r.log = logger
		}
	}
}

func WithMetrics(sink metrics.Sink) Option {
	return func(r *Router) {
		if sink != nil {
			r.metrics = sink
		}
	}
}

// WithExecutor replaces the goroutine each accepted command runs on.
func WithExecutor(exec func(func())) Option {
	return func(r *Router) {
		if exec != nil {
			r.exec = exec
		}
	}
}

// WithCompletionHook is called once per guild message with its final state.
func WithCompletionHook(fn func(context.Context, Report)) Option {
	return func(r *Router) {
		r.hook = fn
	}
}

// WithCommandTimeout bounds a single command execution.
func WithCommandTimeout(d time.Duration) Option {
	return func(r *Router) {
		if d > 0 {
			r.timeout = d
		}
	}
}

func WithPrefixCommand(name string) Option {
	return func(r *Router) {
		r.parser.PrefixCommand = name
	}
}

type Router struct {
	client   *remote.Client
	registry *Registry
	store    config.Store
	resolver *perms.Resolver
	limiter  *ratelimit.Limiter
	parser   Parser
	log      *slog.Logger
	metrics  metrics.Sink
	exec     func(func())
	hook     func(context.Context, Report)
	timeout  time.Duration
}

func NewRouter(client *remote.Client, registry *Registry, store config.Store, resolver *perms.Resolver, limiter *ratelimit.Limiter, app config.App, opts ...Option) *Router {
	r := &Router{
		client:   client,
		registry: registry,
		store:    store,
		resolver: resolver,
		limiter:  limiter,
		parser: Parser{
			Registry:      registry,
			DefaultPrefix: app.Prefix,
			HelpCommand:   app.HelpCommand,
			PrefixCommand: "prefix",
		},
		log:     dlog.Discard(),
		metrics: metrics.Noop(),
		exec:    func(fn func()) { go fn() },
		timeout: time.Minute,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Router) Registry() *Registry {
	return r.registry
}

func (r *Router) DefaultPrefix() string {
	return r.parser.DefaultPrefix
}

func (r *Router) HelpCommand() string {
	return r.parser.HelpCommand
}

func (r *Router) finish(ctx context.Context, rep Report) Outcome {
	r.metrics.Count("command.outcome", string(rep.Outcome))
	if r.hook != nil {
		r.hook(ctx, rep)
	}
	return rep.Outcome
}

func (r *Router) drop(ctx context.Context, outcome Outcome, cmd string) Outcome {
	r.metrics.Count("command.dropped", string(outcome))
	return r.finish(ctx, Report{Outcome: outcome, Command: cmd})
}

// HandleGuildMessage filters and parses msg on the calling goroutine and
// hands accepted commands to the executor. It returns OutcomeQueued for
// those, or the reason the message was dropped.
func (r *Router) HandleGuildMessage(ctx context.Context, msg entity.Message) Outcome {
	author := msg.Author.ID()
	if r.limiter != nil && r.limiter.Blacklisted(author) {
		return r.drop(ctx, OutcomeBlacklisted, "")
	}
	var selfID snowflake.ID
	if info, err := r.client.ApplicationInfo(ctx); err != nil {
		r.log.WarnContext(ctx, "Could not resolve own identity", "err", err)
	} else {
		selfID = info.BotID
	}
	if author == selfID {
		return r.drop(ctx, OutcomeSelf, "")
	}

	canTalk := msg.Channel.CanTalk(ctx)
	if !canTalk && !r.parser.LooksLikeHelp(msg.Content) {
		return r.drop(ctx, OutcomeNoAccess, "")
	}

	guild, err := r.store.FetchGuild(ctx, msg.Guild.ID())
	if err != nil {
		r.log.ErrorContext(ctx, "Failed to fetch guild config, using defaults", "err", err)
		guild = config.DefaultGuild(msg.Guild.ID())
	}
	inv, ok := r.parser.Parse(msg.Content, guild.Prefix, selfID)
	if !ok {
		return r.finish(ctx, Report{Outcome: OutcomeNoCommand})
	}
	name := inv.Command.Name()
	if !canTalk && !r.parser.IsHelp(inv.Command) {
		r.log.InfoContext(ctx, "Cannot reply in channel, ignoring command", "command", name)
		return r.drop(ctx, OutcomeCannotReply, name)
	}

	c := &Context{
		Message:  msg,
		Command:  inv.Command,
		Trigger:  inv.Trigger,
		Args:     inv.Args,
		Prefix:   inv.Prefix,
		Guild:    guild,
		Registry: r.registry,

		DefaultPrefix: r.parser.DefaultPrefix,
		resolve: func(ctx context.Context) perms.Level {
			return r.resolver.Resolve(ctx, msg.Author, guild)
		},
	}
	ctx = context.WithoutCancel(dlog.With(ctx, "command", name))
	r.exec(func() { r.run(ctx, c) })
	return OutcomeQueued
}

func (r *Router) run(ctx context.Context, c *Context) {
	cmd := c.Command
	name := cmd.Name()
	if !c.Guild.ModuleEnabled(cmd.Module()) && !c.Level(ctx).AtLeast(perms.BotAdmin) {
		r.drop(ctx, OutcomeModuleDisabled, name)
		return
	}
	if required := minimumLevel(cmd); !c.Level(ctx).AtLeast(required) {
		r.log.InfoContext(ctx, "Permission denied", "level", c.Level(ctx), "required", required)
		reply := fmt.Sprintf("You need %s permission to use `%s`.", required, name)
		c.Reply(ctx, reply).Then(r.logUndelivered(ctx))
		r.finish(ctx, Report{Outcome: OutcomePermissionDenied, Command: name, Err: ErrPermissionDenied})
		return
	}
	if r.limiter != nil {
		d := r.limiter.Allow(c.Message.Author.ID(), c.Message.Guild.ID(), name, cmd.Module())
		if !d.Allowed {
			r.log.InfoContext(ctx, "Rate limited", "rule", d.Rule, "retryAfter", d.RetryAfter)
			r.metrics.Count("command.dropped", string(OutcomeRateLimited))
			r.finish(ctx, Report{Outcome: OutcomeRateLimited, Command: name, Err: ErrRateLimited})
			return
		}
	}

	execCtx, cancel := context.WithTimeout(ctx, r.timeout)
	stop := metrics.Time(r.metrics, "command.execution", name)
	err := runSafely(func() error { return cmd.Execute(execCtx, c) })
	stop()
	cancel()
	if err != nil {
		r.log.ErrorContext(ctx, "Command failed", "err", err)
		c.Reply(ctx, fmt.Sprintf("Something went wrong while running `%s`.", name)).Then(r.logUndelivered(ctx))
		r.finish(ctx, Report{Outcome: OutcomeFailed, Command: name, Err: err})
		return
	}
	r.finish(ctx, Report{Outcome: OutcomeCompleted, Command: name})
}

// HandlePrivateMessage runs private commands for the bot owner and bot
// admins; everyone else gets pointed at the help command.
func (r *Router) HandlePrivateMessage(ctx context.Context, msg entity.PrivateMessage) error {
	author := msg.Author.ID()
	info, err := r.client.ApplicationInfo(ctx)
	if err != nil {
		return err
	}
	if author == info.BotID {
		return nil
	}
	if r.limiter != nil && r.limiter.Blacklisted(author) {
		r.metrics.Count("command.dropped", string(OutcomeBlacklisted))
		return nil
	}

	level := perms.Base
	switch {
	case author == info.OwnerID:
		level = perms.BotOwner
	case r.resolver.IsBotAdminID(author):
		level = perms.BotAdmin
	}
	fields := strings.Fields(msg.Content)
	if len(fields) > 0 && level.AtLeast(perms.BotAdmin) {
		cmd, ok := r.registry.Lookup(fields[0])
		if p, private := cmd.(Private); ok && private && level.AtLeast(minimumLevel(cmd)) {
			ctx, cancel := context.WithTimeout(ctx, r.timeout)
			defer cancel()
			return runSafely(func() error { return p.ExecutePrivate(ctx, msg, fields[1:]) })
		}
	}
	help := fmt.Sprintf("Hi! I only take commands in servers. Type `%s%s` in a server channel to see what I can do.",
		r.parser.DefaultPrefix, r.parser.HelpCommand)
	msg.Author.SendPrivate(ctx, help).Then(func(_ bus.Ack, err error) {
		if err != nil {
			r.log.DebugContext(ctx, "Could not send private help", "err", err)
		}
	})
	return nil
}

func (r *Router) logUndelivered(ctx context.Context) func(bus.SendMessageResponse, error) {
	return func(_ bus.SendMessageResponse, err error) {
		if err != nil {
			r.log.DebugContext(ctx, "Could not deliver reply", "err", err)
		}
	}
}

func runSafely(fn func() error) (err error) {
	defer func() {
		if v := recover(); v != nil {
			err = fmt.Errorf("panic: %v", v)
		}
	}()
	return fn()
}
