package handlers

import (
	"context"
	"github.com/fuad-daoud/discord-relay/audio"
	"github.com/fuad-daoud/discord-relay/bus"
	"github.com/fuad-daoud/discord-relay/dispatch"
	"github.com/fuad-daoud/discord-relay/entity"
)

// VoiceRelay follows the bot's own voice state and tells the audio service
// to connect or disconnect accordingly. Other members are ignored.
type VoiceRelay struct {
	dispatch.NopHandler
	options

	relay audio.Relay
}

func NewVoiceRelay(relay audio.Relay, opts ...Option) *VoiceRelay {
	return &VoiceRelay{options: buildOptions(opts), relay: relay}
}

func (h *VoiceRelay) isSelf(ctx context.Context, member entity.Member) bool {
	info, err := member.Guild().Client().ApplicationInfo(ctx)
	if err != nil {
		h.log.WarnContext(ctx, "Could not resolve own identity", "err", err)
		return false
	}
	return member.ID() == info.BotID
}

func (h *VoiceRelay) OnVoiceJoin(ctx context.Context, channel entity.VoiceChannel, member entity.Member) error {
	if h.isSelf(ctx, member) {
		h.relay.QueueConnect(ctx, channel.GuildID(), channel.ID())
	}
	return nil
}

func (h *VoiceRelay) OnVoiceMove(ctx context.Context, _, to entity.VoiceChannel, member entity.Member) error {
	if h.isSelf(ctx, member) {
		h.relay.QueueConnect(ctx, to.GuildID(), to.ID())
	}
	return nil
}

func (h *VoiceRelay) OnVoiceLeave(ctx context.Context, channel entity.VoiceChannel, member entity.Member) error {
	if h.isSelf(ctx, member) {
		h.relay.QueueDisconnect(ctx, channel.GuildID())
	}
	return nil
}

func (h *VoiceRelay) OnVoiceServerUpdate(ctx context.Context, ev bus.VoiceServerUpdate) error {
	h.log.DebugContext(ctx, "Voice server update", "guild", ev.GuildID, "endpoint", ev.Endpoint)
	return nil
}
