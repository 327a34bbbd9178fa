package bot

import (
	"context"
	"fmt"
	"github.com/fuad-daoud/discord-relay/bus"
	"github.com/fuad-daoud/discord-relay/dispatch"
	"github.com/fuad-daoud/discord-relay/remote"
	"log/slog"
	"strconv"
	"sync"
)

// Deliver routes one inbound envelope on the calling goroutine. Responses
// complete pending calls, invalidations drop cached guilds and everything
// else goes to the dispatcher.
func (b *Bot) Deliver(ctx context.Context, env bus.Envelope) error {
	switch {
	case env.CorrelationID != "":
		if !b.client.Resolve(env) {
			b.log.DebugContext(ctx, "Dropping response without a pending call", "type", env.Type, "correlationId", env.CorrelationID)
		}
		return nil
	case env.Type == bus.TypeEntityInvalidation:
		inv, err := bus.Decode[bus.EntityInvalidation](env)
		if err != nil {
			b.metrics.Count("bot.dropped", env.Type)
			b.log.WarnContext(ctx, "Dropping malformed invalidation", "err", err)
			return nil
		}
		b.client.Cache().Invalidate(inv.GuildID)
		return nil
	}
	return b.dispatcher.Dispatch(ctx, env)
}
// Submit is the entry point for transports. Responses and invalidations are
// handled immediately so a handler waiting on a call is never stuck behind
// the event that is waiting. Events are queued on the lane of their stream
// and dispatched in arrival order within it once Start has run: a guild load
// that hangs only holds back events of the same guild.
func (b *Bot) Submit(ctx context.Context, env bus.Envelope) error {
	if env.CorrelationID != "" || env.Type == bus.TypeEntityInvalidation {
		return b.Deliver(ctx, env)
	}
	if !b.lanes.push(streamOf(env), env) {
		return fmt.Errorf("submit %s: %w", env.Type, remote.ErrClientClosed)
	}
	return nil
}

// streamOf names the lane an event is ordered on. Guild events share the
// guild's lane, shard events the shard's and private messages the author's.
// Anything undecodable goes to the default lane and fails in the dispatcher.
func streamOf(env bus.Envelope) string {
	ev, err := dispatch.Decode(env)
	if err != nil {
		return ""
	}
	switch ev := ev.(type) {
	case bus.ShardStatusChange:
		return "shard/" + strconv.Itoa(ev.ShardID)
	case bus.ShardLifecycleEvent:
		return "shard/" + strconv.Itoa(ev.ShardID)
	case bus.PrivateMessageEvent:
		return "user/" + ev.AuthorID.String()
	case bus.GuildJoinEvent:
		return "guild/" + ev.GuildID.String()
	case bus.GuildLeaveEvent:
		return "guild/" + ev.GuildID.String()
	case bus.VoiceJoinEvent:
		return "guild/" + ev.GuildID.String()
	case bus.VoiceLeaveEvent:
		return "guild/" + ev.GuildID.String()
	case bus.VoiceMoveEvent:
		return "guild/" + ev.GuildID.String()
	case bus.VoiceServerUpdate:
		return "guild/" + ev.GuildID.String()
	case bus.GuildMessageEvent:
		return "guild/" + ev.GuildID.String()
	}
	return ""
}

// lanes keeps one unbounded FIFO per stream. It never blocks producers: the
// transport read loop must stay free to deliver responses. A lane has at
// most one goroutine draining it, which exits once the lane is empty.
type lanes struct {
	mu      sync.Mutex
	queues  map[string][]bus.Envelope
	run     func(bus.Envelope)
	running bool
	closed  bool
	wg      sync.WaitGroup
}

func newLanes() *lanes {
	return &lanes{queues: map[string][]bus.Envelope{}}
}

func (l *lanes) push(key string, env bus.Envelope) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return false
	}
	q, active := l.queues[key]
	l.queues[key] = append(q, env)
	if !active && l.running {
		l.wg.Add(1)
		go l.drain(key)
	}
	return true
}

// start begins draining with run, including lanes filled before the call.
func (l *lanes) start(run func(bus.Envelope)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.running {
		return
	}
	l.run = run
	l.running = true
	for key := range l.queues {
		l.wg.Add(1)
		go l.drain(key)
	}
}

// drain dispatches key's events one at a time. The lane is removed under the
// lock once empty, so a later push starts a new drainer only after the last
// event of this one has been handled.
func (l *lanes) drain(key string) {
	defer l.wg.Done()
	for {
		l.mu.Lock()
		q := l.queues[key]
		if len(q) == 0 {
			delete(l.queues, key)
			l.mu.Unlock()
			return
		}
		env := q[0]
		q[0] = bus.Envelope{}
		l.queues[key] = q[1:]
		l.mu.Unlock()
		l.run(env)
	}
}

// close refuses further events. Queued events are still drained.
func (l *lanes) close() {
	l.mu.Lock()
	l.closed = true
	l.mu.Unlock()
}

func (l *lanes) wait() {
	l.wg.Wait()
}

func (l *lanes) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, q := range l.queues {
		n += len(q)
	}
	return n
}

// cachePrimer loads every guild of a shard into the cache once the shard is
// ready.
type cachePrimer struct {
	dispatch.NopHandler
	client *remote.Client
	log    *slog.Logger
}

func (p *cachePrimer) OnShardStatusChange(ctx context.Context, ev bus.ShardStatusChange) error {
	if ev.Status != bus.ShardReady {
		return nil
	}
	p.client.Guilds(ctx, ev.ShardID).Then(func(guilds []*bus.Guild, err error) {
		if err != nil {
			p.log.WarnContext(ctx, "Could not prime guild cache", "shard", ev.ShardID, "err", err)
			return
		}
		p.log.InfoContext(ctx, "Primed guild cache", "shard", ev.ShardID, "guilds", len(guilds))
	})
	return nil
}
