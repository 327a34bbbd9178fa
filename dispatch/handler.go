package dispatch

import (
	"context"
	"github.com/fuad-daoud/discord-relay/bus"
	"github.com/fuad-daoud/discord-relay/entity"
)

// Handler receives every dispatched event. Embed NopHandler to implement
// only the events of interest.
type Handler interface {
	OnShardStatusChange(ctx context.Context, ev bus.ShardStatusChange) error
	OnShardLifecycle(ctx context.Context, ev bus.ShardLifecycleEvent) error
	OnGuildJoin(ctx context.Context, guild entity.Guild) error
	OnGuildLeave(ctx context.Context, guild entity.Guild) error
	OnVoiceJoin(ctx context.Context, channel entity.VoiceChannel, member entity.Member) error
	OnVoiceLeave(ctx context.Context, channel entity.VoiceChannel, member entity.Member) error
	OnVoiceMove(ctx context.Context, from, to entity.VoiceChannel, member entity.Member) error
	OnVoiceServerUpdate(ctx context.Context, ev bus.VoiceServerUpdate) error
	OnGuildMessage(ctx context.Context, msg entity.Message) error
	OnPrivateMessage(ctx context.Context, msg entity.PrivateMessage) error
}

type NopHandler struct{}

func (NopHandler) OnShardStatusChange(context.Context, bus.ShardStatusChange) error       { return nil }
func (NopHandler) OnShardLifecycle(context.Context, bus.ShardLifecycleEvent) error        { return nil }
func (NopHandler) OnGuildJoin(context.Context, entity.Guild) error                        { return nil }
func (NopHandler) OnGuildLeave(context.Context, entity.Guild) error                       { return nil }
func (NopHandler) OnVoiceJoin(context.Context, entity.VoiceChannel, entity.Member) error  { return nil }
func (NopHandler) OnVoiceLeave(context.Context, entity.VoiceChannel, entity.Member) error { return nil }
func (NopHandler) OnVoiceMove(context.Context, entity.VoiceChannel, entity.VoiceChannel, entity.Member) error {
	return nil
}
func (NopHandler) OnVoiceServerUpdate(context.Context, bus.VoiceServerUpdate) error { return nil }
func (NopHandler) OnGuildMessage(context.Context, entity.Message) error             { return nil }
func (NopHandler) OnPrivateMessage(context.Context, entity.PrivateMessage) error    { return nil }
