package handlers

import (
	"context"
	"github.com/fuad-daoud/discord-relay/command"
	"github.com/fuad-daoud/discord-relay/dispatch"
	"github.com/fuad-daoud/discord-relay/entity"
)

// Router is the part of command.Router the message entry needs.
type Router interface {
	HandleGuildMessage(ctx context.Context, msg entity.Message) command.Outcome
	HandlePrivateMessage(ctx context.Context, msg entity.PrivateMessage) error
}

// MessageEntry hands chat messages to the command router.
type MessageEntry struct {
	dispatch.NopHandler
	options

	router Router
}

func NewMessageEntry(router Router, opts ...Option) *MessageEntry {
	return &MessageEntry{options: buildOptions(opts), router: router}
}

func (h *MessageEntry) OnGuildMessage(ctx context.Context, msg entity.Message) error {
	outcome := h.router.HandleGuildMessage(ctx, msg)
	h.log.DebugContext(ctx, "Routed guild message", "outcome", outcome)
	return nil
}

func (h *MessageEntry) OnPrivateMessage(ctx context.Context, msg entity.PrivateMessage) error {
	return h.router.HandlePrivateMessage(ctx, msg)
}
