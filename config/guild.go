package config

import (
	"context"
	"github.com/disgoorg/snowflake/v2"
	"slices"
	"sync"
	"time"
)

// Guild is the persisted per-guild configuration.
type Guild struct {
	GuildID snowflake.ID
	// Prefix is empty when the guild uses the default prefix.
	Prefix string
	// Modules holds explicit toggles; modules not listed are enabled.
	Modules     map[string]bool
	AdminList   []snowflake.ID
	DJList      []snowflake.ID
	UserList    []snowflake.ID
	HelloSentAt time.Time
}

// DefaultGuild grants DJ and user level to everyone through the public role,
// whose id equals the guild id.
func DefaultGuild(id snowflake.ID) Guild {
	return Guild{
		GuildID:  id,
		DJList:   []snowflake.ID{id},
		UserList: []snowflake.ID{id},
	}
}

func (g Guild) ModuleEnabled(module string) bool {
	enabled, ok := g.Modules[module]
	return !ok || enabled
}

func (g Guild) EffectivePrefix(fallback string) string {
	if g.Prefix == "" {
		return fallback
	}
	return g.Prefix
}

func (g Guild) clone() Guild {
	out := g
	if g.Modules != nil {
		out.Modules = make(map[string]bool, len(g.Modules))
		for k, v := range g.Modules {
			out.Modules[k] = v
		}
	}
	out.AdminList = slices.Clone(g.AdminList)
	out.DJList = slices.Clone(g.DJList)
	out.UserList = slices.Clone(g.UserList)
	return out
}

type Store interface {
	FetchGuild(ctx context.Context, id snowflake.ID) (Guild, error)
	StoreGuild(ctx context.Context, g Guild) error
}

type MemoryStore struct {
	mu     sync.RWMutex
	guilds map[snowflake.ID]Guild
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{guilds: make(map[snowflake.ID]Guild)}
}

func (s *MemoryStore) FetchGuild(_ context.Context, id snowflake.ID) (Guild, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.guilds[id]
	if !ok {
		return DefaultGuild(id), nil
	}
	return g.clone(), nil
}

func (s *MemoryStore) StoreGuild(_ context.Context, g Guild) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.guilds[g.GuildID] = g.clone()
	return nil
}
