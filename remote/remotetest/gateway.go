// Package remotetest provides an in-memory gateway for tests. Requests and
// responses pass through the real bus codec.
package remotetest

import (
	"context"
	"errors"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/snowflake/v2"
	"github.com/fuad-daoud/discord-relay/bus"
	"github.com/fuad-daoud/discord-relay/remote"
	"slices"
	"sync"
	"sync/atomic"
)

// ErrNoReply makes a Responder swallow the request without answering.
var ErrNoReply = errors.New("remotetest: no reply")

// Responder answers one decoded request. A returned error is sent back as a
// remote failure.
type Responder func(env bus.Envelope) (any, error)

type Gateway struct {
	mu         sync.Mutex
	client     *remote.Client
	responders map[string]Responder
	published  map[string][]bus.Envelope
	holding    bool
	held       []bus.Envelope
	publishErr error

	guilds    map[snowflake.ID]*bus.Guild
	messageID atomic.Uint64
}

func New() *Gateway {
	return &Gateway{
		responders: make(map[string]Responder),
		published:  make(map[string][]bus.Envelope),
		guilds:     make(map[snowflake.ID]*bus.Guild),
	}
}

// Attach makes g deliver responses to c.
func (g *Gateway) Attach(c *remote.Client) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.client = c
}

func (g *Gateway) Respond(msgType string, fn Responder) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.responders[msgType] = fn
}

// FailPublish makes every following Publish fail with err.
func (g *Gateway) FailPublish(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.publishErr = err
}

// Hold queues responses until Release or ReleaseReversed.
func (g *Gateway) Hold() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.holding = true
}

func (g *Gateway) Release() {
	g.release(false)
}

func (g *Gateway) ReleaseReversed() {
	g.release(true)
}

func (g *Gateway) release(reversed bool) {
	g.mu.Lock()
	held := g.held
	g.held = nil
	g.holding = false
	client := g.client
	g.mu.Unlock()

	if reversed {
		slices.Reverse(held)
	}
	for _, env := range held {
		client.Resolve(env)
	}
}

func (g *Gateway) Publish(_ context.Context, queue string, env bus.Envelope) error {
	raw, err := bus.Marshal(env)
	if err != nil {
		return err
	}
	decoded, err := bus.Unmarshal(raw)
	if err != nil {
		return err
	}

	g.mu.Lock()
	if g.publishErr != nil {
		err := g.publishErr
		g.mu.Unlock()
		return err
	}
	g.published[queue] = append(g.published[queue], decoded)
	responder := g.responders[decoded.Type]
	g.mu.Unlock()

	if queue != bus.QueueRequests || responder == nil {
		return nil
	}
	payload, rerr := responder(decoded)
	if errors.Is(rerr, ErrNoReply) {
		return nil
	}
	reply := bus.Envelope{Type: decoded.Type + "Response", CorrelationID: decoded.CorrelationID, Payload: payload}
	if rerr != nil {
		reply.Payload = nil
		reply.Error = rerr.Error()
	}
	raw, err = bus.Marshal(reply)
	if err != nil {
		return err
	}
	reply, err = bus.Unmarshal(raw)
	if err != nil {
		return err
	}

	g.mu.Lock()
	if g.holding {
		g.held = append(g.held, reply)
		g.mu.Unlock()
		return nil
	}
	client := g.client
	g.mu.Unlock()
	if client != nil {
		client.Resolve(reply)
	}
	return nil
}

// Published returns every envelope published to queue.
func (g *Gateway) Published(queue string) []bus.Envelope {
	g.mu.Lock()
	defer g.mu.Unlock()
	return slices.Clone(g.published[queue])
}

// Requests returns the requests of one type, oldest first.
func (g *Gateway) Requests(msgType string) []bus.Envelope {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []bus.Envelope
	for _, env := range g.published[bus.QueueRequests] {
		if env.Type == msgType {
			out = append(out, env)
		}
	}
	return out
}

func (g *Gateway) Count(msgType string) int {
	return len(g.Requests(msgType))
}

// SetGuild replaces the guild served for GuildRequest. nil removes it.
func (g *Gateway) SetGuild(id snowflake.ID, guild *bus.Guild) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if guild == nil {
		delete(g.guilds, id)
		return
	}
	g.guilds[id] = guild
}

// ServeGuilds answers GuildRequest from the guilds given here and through
// SetGuild. Unknown guilds are answered with an empty payload.
func (g *Gateway) ServeGuilds(guilds ...*bus.Guild) {
	for _, guild := range guilds {
		g.SetGuild(guild.ID, guild)
	}
	g.Respond(bus.TypeGuildRequest, func(env bus.Envelope) (any, error) {
		req, err := bus.Decode[bus.GuildRequest](env)
		if err != nil {
			return nil, err
		}
		g.mu.Lock()
		defer g.mu.Unlock()
		guild, ok := g.guilds[req.GuildID]
		if !ok {
			return nil, nil
		}
		return guild, nil
	})
}

func (g *Gateway) ServeApplicationInfo(info bus.ApplicationInfo) {
	g.Respond(bus.TypeApplicationInfoRequest, func(bus.Envelope) (any, error) {
		return info, nil
	})
}

// ServeMessages acknowledges every message request. Sent messages are
// echoed back with increasing ids.
func (g *Gateway) ServeMessages() {
	g.Respond(bus.TypeSendMessageRequest, func(env bus.Envelope) (any, error) {
		req, err := bus.Decode[bus.SendMessageRequest](env)
		if err != nil {
			return nil, err
		}
		id := snowflake.ID(g.messageID.Add(1))
		return bus.SendMessageResponse{ID: id, ChannelID: req.ChannelID, Content: req.Message}, nil
	})
	ack := func(bus.Envelope) (any, error) { return bus.Ack{}, nil }
	g.Respond(bus.TypeSendPrivateMessageRequest, ack)
	g.Respond(bus.TypeEditMessageRequest, ack)
	g.Respond(bus.TypeMessageDeleteRequest, ack)
	g.Respond(bus.TypeSendTypingRequest, ack)
}

// ServePermissions answers guild and channel permission checks by granting
// exactly the bits in granted.
func (g *Gateway) ServePermissions(granted discord.Permissions) {
	check := func(wanted discord.Permissions) bus.PermissionCheck {
		missing := wanted &^ granted
		return bus.PermissionCheck{Passed: missing == 0, Missing: missing}
	}
	g.Respond(bus.TypeGuildPermissionRequest, func(env bus.Envelope) (any, error) {
		req, err := bus.Decode[bus.GuildPermissionRequest](env)
		if err != nil {
			return nil, err
		}
		return check(req.Permissions), nil
	})
	g.Respond(bus.TypeChannelPermissionRequest, func(env bus.Envelope) (any, error) {
		req, err := bus.Decode[bus.ChannelPermissionRequest](env)
		if err != nil {
			return nil, err
		}
		return check(req.Permissions), nil
	})
}

// Messages returns the text of every SendMessageRequest sent to channelID.
func (g *Gateway) Messages(channelID snowflake.ID) []string {
	var out []string
	for _, env := range g.Requests(bus.TypeSendMessageRequest) {
		req, err := bus.Decode[bus.SendMessageRequest](env)
		if err == nil && req.ChannelID == channelID {
			out = append(out, req.Message)
		}
	}
	return out
}

// PrivateMessages returns the text of every private message sent to userID.
func (g *Gateway) PrivateMessages(userID snowflake.ID) []string {
	var out []string
	for _, env := range g.Requests(bus.TypeSendPrivateMessageRequest) {
		req, err := bus.Decode[bus.SendPrivateMessageRequest](env)
		if err == nil && req.UserID == userID {
			out = append(out, req.Message)
		}
	}
	return out
}
