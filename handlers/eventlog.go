package handlers

import (
	"context"
	"github.com/fuad-daoud/discord-relay/bus"
	"github.com/fuad-daoud/discord-relay/dispatch"
	"github.com/fuad-daoud/discord-relay/entity"
	"log/slog"
	"sync"
)

// Summary is what EventLogger collected since the last flush.
type Summary struct {
	Joined   int
	Left     int
	Statuses map[bus.ShardStatus]int
}

func (s Summary) Empty() bool {
	return s.Joined == 0 && s.Left == 0 && len(s.Statuses) == 0
}

// EventLogger logs shard and guild membership events and keeps counters
// that Flush reports periodically.
type EventLogger struct {
	dispatch.NopHandler
	options

	mu      sync.Mutex
	summary Summary
}

func NewEventLogger(opts ...Option) *EventLogger {
	return &EventLogger{options: buildOptions(opts), summary: Summary{Statuses: map[bus.ShardStatus]int{}}}
}

func (l *EventLogger) OnShardStatusChange(ctx context.Context, ev bus.ShardStatusChange) error {
	l.mu.Lock()
	l.summary.Statuses[ev.Status]++
	l.mu.Unlock()
	l.metrics.Count("shard.status", string(ev.Status))
	l.log.InfoContext(ctx, "Shard status changed", "shard", ev.ShardID, "total", ev.ShardTotal, "status", ev.Status)
	return nil
}

func (l *EventLogger) OnShardLifecycle(ctx context.Context, ev bus.ShardLifecycleEvent) error {
	l.log.InfoContext(ctx, "Shard lifecycle", "shard", ev.ShardID, "total", ev.ShardTotal, "change", ev.Change)
	return nil
}

func (l *EventLogger) OnGuildJoin(ctx context.Context, guild entity.Guild) error {
	l.mu.Lock()
	l.summary.Joined++
	l.mu.Unlock()
	l.metrics.Count("guild.membership", "joined")
	l.log.InfoContext(ctx, "Joined guild", "guild", guild.ID(), "name", guild.Name(ctx), "members", len(guild.Members(ctx)))
	return nil
}

func (l *EventLogger) OnGuildLeave(ctx context.Context, guild entity.Guild) error {
	l.mu.Lock()
	l.summary.Left++
	l.mu.Unlock()
	l.metrics.Count("guild.membership", "left")
	l.log.InfoContext(ctx, "Left guild", "guild", guild.ID())
	return nil
}

// Flush logs and resets the collected counters. Nothing is logged when no
// event arrived since the previous flush.
func (l *EventLogger) Flush(ctx context.Context) Summary {
	l.mu.Lock()
	s := l.summary
	l.summary = Summary{Statuses: map[bus.ShardStatus]int{}}
	l.mu.Unlock()
	if s.Empty() {
		return s
	}
	statuses := make([]any, 0, len(s.Statuses))
	for status, n := range s.Statuses {
		statuses = append(statuses, slog.Int(string(status), n))
	}
	l.log.InfoContext(ctx, "Event summary", "joined", s.Joined, "left", s.Left, slog.Group("statuses", statuses...))
	return s
}
