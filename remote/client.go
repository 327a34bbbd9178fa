// Package remote talks to the gateway process over the bus: correlated
// request/response calls and the guild snapshot cache in front of them.
package remote

import (
	"context"
	"fmt"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/snowflake/v2"
	"github.com/fuad-daoud/discord-relay/bus"
	"github.com/fuad-daoud/discord-relay/metrics"
	"golang.org/x/sync/singleflight"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

type call struct {
	kind    string
	sent    time.Time
	resolve func(bus.Envelope)
	fail    func(error)
}

// Client issues correlated calls over the bus. Every call registers a
// continuation under a fresh correlation id; Resolve completes it when the
// matching response arrives.
type Client struct {
	pub            bus.Publisher
	log            *slog.Logger
	metrics        metrics.Sink
	newID          func() string
	now            func() time.Time
	requestTimeout time.Duration

	mu      sync.Mutex
	pending map[string]*call
	closed  bool

	appInfo atomic.Pointer[bus.ApplicationInfo]
	group   singleflight.Group

	cache *GuildCache
}

func NewClient(pub bus.Publisher, opts ...Option) *Client {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	c := &Client{
		pub:            pub,
		log:            o.logger,
		metrics:        o.metrics,
		newID:          o.newID,
		now:            o.now,
		requestTimeout: o.requestTimeout,
		pending:        make(map[string]*call),
	}
	c.cache = NewGuildCache(c.loadGuild,
		WithTTL(o.cacheTTL),
		WithCacheClock(o.now),
		WithCacheLogger(o.logger),
		WithCacheMetrics(o.metrics),
	)
	return c
}

func (c *Client) Cache() *GuildCache {
	return c.cache
}

// RequestTimeout is the bound used for the client's own blocking calls.
func (c *Client) RequestTimeout() time.Duration {
	return c.requestTimeout
}

func send[T any](ctx context.Context, c *Client, msg bus.Typed) *Pending[T] {
	kind := msg.BusType()
	id := c.newID()
	p := newPending[T]()
	p.abandon = func() { c.abandon(id, ErrRemoteTimeout) }

	var zero T
	cl := &call{
		kind: kind,
		sent: c.now(),
		resolve: func(env bus.Envelope) {
			if env.Error != "" {
				p.complete(zero, fmt.Errorf("%w: %s: %s", ErrRemoteError, kind, env.Error))
				return
			}
			v, err := bus.Decode[T](env)
			if err != nil {
				p.complete(zero, fmt.Errorf("%w: %w", ErrRemoteError, err))
				return
			}
			p.complete(v, nil)
		},
		fail: func(err error) {
			p.complete(zero, err)
		},
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		p.complete(zero, ErrClientClosed)
		return p
	}
	c.pending[id] = cl
	c.mu.Unlock()

	c.metrics.Count("remote.requests", kind)
	err := c.pub.Publish(ctx, bus.QueueRequests, bus.Envelope{Type: kind, CorrelationID: id, Payload: msg})
	if err != nil {
		c.take(id)
		p.complete(zero, fmt.Errorf("%w: publish %s: %w", ErrRemoteError, kind, err))
	}
	return p
}

func (c *Client) take(id string) *call {
	c.mu.Lock()
	defer c.mu.Unlock()
	cl, ok := c.pending[id]
	if !ok {
		return nil
	}
	delete(c.pending, id)
	return cl
}

func (c *Client) abandon(id string, err error) {
	if cl := c.take(id); cl != nil {
		cl.fail(err)
	}
}

// Resolve delivers a response to the call registered under its correlation
// id. Unknown or already abandoned ids are dropped and reported as false.
func (c *Client) Resolve(env bus.Envelope) bool {
	cl := c.take(env.CorrelationID)
	if cl == nil {
		c.log.Warn("Dropping response with unknown correlation id", "correlationId", env.CorrelationID, "type", env.Type)
		c.metrics.Count("remote.responses.dropped", env.Type)
		return false
	}
	cl.resolve(env)
	c.metrics.Observe("remote.latency", cl.kind, c.now().Sub(cl.sent))
	return true
}

// Sweep fails every call older than maxAge with ErrRemoteTimeout.
func (c *Client) Sweep(maxAge time.Duration) int {
	cutoff := c.now().Add(-maxAge)
	var stale []*call
	c.mu.Lock()
	for id, cl := range c.pending {
		if cl.sent.Before(cutoff) {
			stale = append(stale, cl)
			delete(c.pending, id)
		}
	}
	c.mu.Unlock()

	for _, cl := range stale {
		c.log.Warn("Abandoning unanswered request", "type", cl.kind, "age", c.now().Sub(cl.sent))
		cl.fail(ErrRemoteTimeout)
	}
	return len(stale)
}

// Close fails every outstanding call with ErrClientClosed and rejects new
// ones. Requests already published are not recalled.
func (c *Client) Close() {
	c.mu.Lock()
	c.closed = true
	outstanding := c.pending
	c.pending = make(map[string]*call)
	c.mu.Unlock()

	for _, cl := range outstanding {
		cl.fail(ErrClientClosed)
	}
}

// InFlight is the number of calls awaiting a response.
func (c *Client) InFlight() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// Guild returns the cached snapshot of id, loading it on a miss.
func (c *Client) Guild(ctx context.Context, id snowflake.ID) (*bus.Guild, bool) {
	return c.cache.Get(ctx, id)
}

func (c *Client) FetchGuild(ctx context.Context, id snowflake.ID) *Pending[*bus.Guild] {
	return send[*bus.Guild](ctx, c, bus.GuildRequest{GuildID: id})
}

func (c *Client) loadGuild(ctx context.Context, id snowflake.ID) (*bus.Guild, error) {
	g, err := c.FetchGuild(ctx, id).Wait(c.requestTimeout)
	if err != nil {
		return nil, err
	}
	if g == nil {
		c.log.WarnContext(ctx, "Guild not found", "guild", id)
		return nil, nil
	}
	return g, nil
}

// Guilds streams every guild of a shard and primes the cache with them.
func (c *Client) Guilds(ctx context.Context, shardID int) *Pending[[]*bus.Guild] {
	return Map(send[*bus.GuildsResponse](ctx, c, bus.GuildsRequest{ShardID: shardID}),
		func(r *bus.GuildsResponse) ([]*bus.Guild, error) {
			if r == nil {
				return nil, fmt.Errorf("%w: guilds of shard %d: empty response", ErrRemoteError, shardID)
			}
			guilds := make([]*bus.Guild, len(r.Guilds))
			for i := range r.Guilds {
				guilds[i] = &r.Guilds[i]
				c.cache.Put(guilds[i])
			}
			return guilds, nil
		})
}

func (c *Client) SendMessage(ctx context.Context, channelID snowflake.ID, message string) *Pending[bus.SendMessageResponse] {
	return send[bus.SendMessageResponse](ctx, c, bus.SendMessageRequest{ChannelID: channelID, Message: message})
}

func (c *Client) EditMessage(ctx context.Context, channelID, messageID snowflake.ID, message string) *Pending[bus.Ack] {
	return send[bus.Ack](ctx, c, bus.EditMessageRequest{ChannelID: channelID, MessageID: messageID, Message: message})
}

func (c *Client) DeleteMessages(ctx context.Context, channelID snowflake.ID, messageIDs ...snowflake.ID) *Pending[bus.Ack] {
	if len(messageIDs) == 0 {
		return Completed(bus.Ack{}, nil)
	}
	return send[bus.Ack](ctx, c, bus.MessageDeleteRequest{ChannelID: channelID, MessageIDs: messageIDs})
}

func (c *Client) SendTyping(ctx context.Context, channelID snowflake.ID) *Pending[bus.Ack] {
	return send[bus.Ack](ctx, c, bus.SendTypingRequest{ChannelID: channelID})
}

func (c *Client) SendPrivateMessage(ctx context.Context, userID snowflake.ID, message string) *Pending[bus.Ack] {
	return send[bus.Ack](ctx, c, bus.SendPrivateMessageRequest{UserID: userID, Message: message})
}

// ApplicationInfo returns the bot's identity. The first successful answer is
// kept for the lifetime of the client.
func (c *Client) ApplicationInfo(ctx context.Context) (bus.ApplicationInfo, error) {
	if info := c.appInfo.Load(); info != nil {
		return *info, nil
	}
	v, err, _ := c.group.Do("application-info", func() (any, error) {
		if info := c.appInfo.Load(); info != nil {
			return *info, nil
		}
		info, err := send[bus.ApplicationInfo](ctx, c, bus.ApplicationInfoRequest{}).Wait(c.requestTimeout)
		if err != nil {
			return nil, err
		}
		c.appInfo.Store(&info)
		return info, nil
	})
	if err != nil {
		return bus.ApplicationInfo{}, fmt.Errorf("application info: %w", err)
	}
	return v.(bus.ApplicationInfo), nil
}

// Target is the member or role a permission check is about.
type Target struct {
	MemberID snowflake.ID
	RoleID   snowflake.ID
}

func MemberTarget(id snowflake.ID) Target { return Target{MemberID: id} }
func RoleTarget(id snowflake.ID) Target   { return Target{RoleID: id} }

func (t Target) valid() bool {
	return (t.MemberID == 0) != (t.RoleID == 0)
}

func (c *Client) CheckGuildPermissions(ctx context.Context, guildID snowflake.ID, target Target, perms discord.Permissions) *Pending[bus.PermissionCheck] {
	if !target.valid() {
		return Completed(bus.PermissionCheck{}, fmt.Errorf("%w: exactly one of member and role must be set", ErrInvalidArgument))
	}
	return send[bus.PermissionCheck](ctx, c, bus.GuildPermissionRequest{
		GuildID:     guildID,
		MemberID:    target.MemberID,
		RoleID:      target.RoleID,
		Permissions: perms,
	})
}

func (c *Client) CheckChannelPermissions(ctx context.Context, channelID snowflake.ID, target Target, perms discord.Permissions) *Pending[bus.PermissionCheck] {
	if !target.valid() {
		return Completed(bus.PermissionCheck{}, fmt.Errorf("%w: exactly one of member and role must be set", ErrInvalidArgument))
	}
	return send[bus.PermissionCheck](ctx, c, bus.ChannelPermissionRequest{
		ChannelID:   channelID,
		MemberID:    target.MemberID,
		RoleID:      target.RoleID,
		Permissions: perms,
	})
}

// MemberKey identifies a member by guild and user id.
type MemberKey struct {
	GuildID snowflake.ID
	ID      snowflake.ID
}

// BulkPermissions returns the effective permissions of every member in
// guildID, aligned with members. Members the gateway could not resolve get
// zero. All members must belong to guildID; otherwise nothing is sent and
// the result fails with ErrInvalidArgument.
func (c *Client) BulkPermissions(ctx context.Context, guildID snowflake.ID, members []MemberKey) *Pending[[]discord.Permissions] {
	ids := make([]snowflake.ID, len(members))
	for i, m := range members {
		if m.GuildID != guildID {
			return Completed[[]discord.Permissions](nil, fmt.Errorf("%w: member %s belongs to guild %s, not %s",
				ErrInvalidArgument, m.ID, m.GuildID, guildID))
		}
		ids[i] = m.ID
	}
	if len(ids) == 0 {
		return Completed([]discord.Permissions{}, nil)
	}
	return Map(send[bus.BulkGuildPermissionResponse](ctx, c, bus.BulkGuildPermissionRequest{GuildID: guildID, MemberIDs: ids}),
		func(r bus.BulkGuildPermissionResponse) ([]discord.Permissions, error) {
			out := make([]discord.Permissions, len(ids))
			copy(out, r.Effective)
			return out, nil
		})
}
