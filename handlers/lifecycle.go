package handlers

import (
	"context"
	"fmt"
	"github.com/fuad-daoud/discord-relay/audio"
	"github.com/fuad-daoud/discord-relay/config"
	"github.com/fuad-daoud/discord-relay/dispatch"
	"github.com/fuad-daoud/discord-relay/entity"
	"time"
)

const helloTimeout = 30 * time.Second

// GuildLifecycle greets newly joined guilds once and cleans up after the
// bot leaves one.
type GuildLifecycle struct {
	dispatch.NopHandler
	options

	store config.Store
	relay audio.Relay
	app   config.App
	delay time.Duration
}

func NewGuildLifecycle(store config.Store, relay audio.Relay, app config.App, opts ...Option) *GuildLifecycle {
	return &GuildLifecycle{options: buildOptions(opts), store: store, relay: relay, app: app, delay: app.HelloDelay}
}

// OnGuildJoin schedules the hello message. The delay lets the gateway settle
// the bot's permissions in the new guild.
func (h *GuildLifecycle) OnGuildJoin(ctx context.Context, guild entity.Guild) error {
	ctx = context.WithoutCancel(ctx)
	h.schedule(h.delay, func() {
		ctx, cancel := context.WithTimeout(ctx, helloTimeout)
		defer cancel()
		if err := h.SendHello(ctx, guild); err != nil {
			h.log.WarnContext(ctx, "Could not greet guild", "guild", guild.ID(), "err", err)
		}
	})
	return nil
}

func (h *GuildLifecycle) OnGuildLeave(ctx context.Context, guild entity.Guild) error {
	h.relay.Remove(ctx, guild.ID())
	guild.Invalidate()
	return nil
}

// SendHello greets guild in its old default channel, or the first channel
// the bot can talk in. Guilds that were greeted before are skipped, which
// covers rejoins and replayed join events.
func (h *GuildLifecycle) SendHello(ctx context.Context, guild entity.Guild) error {
	cfg, err := h.store.FetchGuild(ctx, guild.ID())
	if err != nil {
		return fmt.Errorf("fetch guild config: %w", err)
	}
	if !cfg.HelloSentAt.IsZero() {
		return nil
	}
	channel, ok := h.helloChannel(ctx, guild)
	if !ok {
		h.log.DebugContext(ctx, "No channel to greet in", "guild", guild.ID())
		return nil
	}
	if _, err := channel.Send(ctx, h.hello(guild.Name(ctx), cfg)).Await(ctx); err != nil {
		return fmt.Errorf("send hello: %w", err)
	}

	cfg, err = h.store.FetchGuild(ctx, guild.ID())
	if err != nil {
		return fmt.Errorf("fetch guild config: %w", err)
	}
	cfg.HelloSentAt = h.now()
	if err := h.store.StoreGuild(ctx, cfg); err != nil {
		return fmt.Errorf("store hello marker: %w", err)
	}
	h.metrics.Count("guild.hello", "sent")
	return nil
}

func (h *GuildLifecycle) helloChannel(ctx context.Context, guild entity.Guild) (entity.TextChannel, bool) {
	if tc, ok := guild.TextChannel(ctx, guild.ID()); ok && tc.CanTalk(ctx) {
		return tc, true
	}
	for _, tc := range guild.TextChannels(ctx) {
		if tc.CanTalk(ctx) {
			return tc, true
		}
	}
	return entity.TextChannel{}, false
}

func (h *GuildLifecycle) hello(name string, cfg config.Guild) string {
	prefix := cfg.EffectivePrefix(h.app.Prefix)
	return fmt.Sprintf("Hello **%s**! Thanks for adding me. Type `%s%s` to see what I can do.", name, prefix, h.app.HelpCommand)
}
