package dispatch

import (
	"fmt"
	"github.com/fuad-daoud/discord-relay/bus"
	"slices"
	"sync"
	"time"
)

type ShardState struct {
	ShardID   int
	Total     int
	Status    bus.ShardStatus
	UpdatedAt time.Time
}

// StatusTable is the last known status of every shard. It is observational
// only; nothing in the dispatcher branches on it.
type StatusTable struct {
	mu     sync.RWMutex
	strict bool
	shards map[int]ShardState
}

func NewStatusTable(strict bool) *StatusTable {
	return &StatusTable{strict: strict, shards: make(map[int]ShardState)}
}

// Record stores the new status of a shard. In strict mode a repeated status
// and any move out of SHUTDOWN fail with ErrIllegalTransition and leave the
// table untouched.
func (t *StatusTable) Record(ev bus.ShardStatusChange, at time.Time) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	prev, known := t.shards[ev.ShardID]
	if t.strict && known {
		if prev.Status == ev.Status || prev.Status == bus.ShardShutdown {
			return fmt.Errorf("%w: shard %d %s -> %s", ErrIllegalTransition, ev.ShardID, prev.Status, ev.Status)
		}
	}
	t.shards[ev.ShardID] = ShardState{ShardID: ev.ShardID, Total: ev.ShardTotal, Status: ev.Status, UpdatedAt: at}
	return nil
}

func (t *StatusTable) Status(shardID int) (bus.ShardStatus, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s, ok := t.shards[shardID]
	return s.Status, ok
}

// Snapshot returns every shard ordered by id.
func (t *StatusTable) Snapshot() []ShardState {
	t.mu.RLock()
	out := make([]ShardState, 0, len(t.shards))
	for _, s := range t.shards {
		out = append(out, s)
	}
	t.mu.RUnlock()
	slices.SortFunc(out, func(a, b ShardState) int { return a.ShardID - b.ShardID })
	return out
}
