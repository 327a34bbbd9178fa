// Package audio relays voice intents to the audio service. Playback and
// decoding live in that service; this side only says what should happen.
package audio

import (
	"context"
	"github.com/disgoorg/snowflake/v2"
	"github.com/fuad-daoud/discord-relay/bus"
	"github.com/fuad-daoud/discord-relay/logger/dlog"
	"github.com/fuad-daoud/discord-relay/metrics"
	"log/slog"
)

type IntentKind string

const (
	IntentRemove          IntentKind = "REMOVE"
	IntentQueueConnect    IntentKind = "QUEUE_CONNECT"
	IntentQueueDisconnect IntentKind = "QUEUE_DISCONNECT"
)

const TypeIntent = "AudioIntent"

type Intent struct {
	Kind      IntentKind   `json:"kind"`
	GuildID   snowflake.ID `json:"guildId"`
	ChannelID snowflake.ID `json:"channelId,omitempty"`
}

func (Intent) BusType() string { return TypeIntent }

// Relay forwards intents without waiting for them to be carried out.
type Relay interface {
	Remove(ctx context.Context, guildID snowflake.ID)
	QueueConnect(ctx context.Context, guildID, channelID snowflake.ID)
	QueueDisconnect(ctx context.Context, guildID snowflake.ID)
}

// BusRelay publishes intents on the audio queue. Publish failures are
// logged and otherwise ignored.
type BusRelay struct {
	pub     bus.Publisher
	log     *slog.Logger
	metrics metrics.Sink
}

func NewBusRelay(pub bus.Publisher, logger *slog.Logger, sink metrics.Sink) *BusRelay {
	if logger == nil {
		logger = dlog.Discard()
	}
	if sink == nil {
		sink = metrics.Noop()
	}
	return &BusRelay{pub: pub, log: logger, metrics: sink}
}

func (r *BusRelay) Remove(ctx context.Context, guildID snowflake.ID) {
	r.publish(ctx, Intent{Kind: IntentRemove, GuildID: guildID})
}

func (r *BusRelay) QueueConnect(ctx context.Context, guildID, channelID snowflake.ID) {
	r.publish(ctx, Intent{Kind: IntentQueueConnect, GuildID: guildID, ChannelID: channelID})
}

func (r *BusRelay) QueueDisconnect(ctx context.Context, guildID snowflake.ID) {
	r.publish(ctx, Intent{Kind: IntentQueueDisconnect, GuildID: guildID})
}

func (r *BusRelay) publish(ctx context.Context, intent Intent) {
	r.metrics.Count("audio.intents", string(intent.Kind))
	if err := r.pub.Publish(ctx, bus.QueueAudio, bus.NewEnvelope(intent)); err != nil {
		r.log.ErrorContext(ctx, "Failed to relay audio intent", "kind", intent.Kind, "guild", intent.GuildID, "err", err)
	}
}
