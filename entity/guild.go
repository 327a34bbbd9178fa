// Package entity holds id-keyed handles for remote guilds, members, users,
// channels and roles. Handles never keep resolved data: every accessor
// resolves the current snapshot through the cache, so two reads of one
// handle may observe different snapshots across a reload or invalidation.
// Accessors return zero values when the guild cannot be resolved.
package entity

import (
	"context"
	"github.com/disgoorg/snowflake/v2"
	"github.com/fuad-daoud/discord-relay/bus"
	"github.com/fuad-daoud/discord-relay/remote"
	"slices"
)

type Guild struct {
	id     snowflake.ID
	client *remote.Client
}

func NewGuild(client *remote.Client, id snowflake.ID) Guild {
	return Guild{id: id, client: client}
}

func (g Guild) ID() snowflake.ID       { return g.id }
func (g Guild) Equal(other Guild) bool { return g.id == other.id }
func (g Guild) Client() *remote.Client { return g.client }
func (g Guild) String() string         { return g.id.String() }

// Snapshot resolves the current snapshot of the guild.
func (g Guild) Snapshot(ctx context.Context) (*bus.Guild, bool) {
	return g.client.Guild(ctx, g.id)
}

func (g Guild) Exists(ctx context.Context) bool {
	_, ok := g.Snapshot(ctx)
	return ok
}

// Invalidate drops the cached snapshot so the next access reloads it.
func (g Guild) Invalidate() {
	g.client.Cache().Invalidate(g.id)
}

func (g Guild) Name(ctx context.Context) string {
	s, ok := g.Snapshot(ctx)
	if !ok {
		return ""
	}
	return s.Name
}

func (g Guild) Owner(ctx context.Context) (Member, bool) {
	s, ok := g.Snapshot(ctx)
	if !ok {
		return Member{}, false
	}
	return g.Member(ctx, s.OwnerID)
}

func (g Guild) Member(ctx context.Context, id snowflake.ID) (Member, bool) {
	s, ok := g.Snapshot(ctx)
	if !ok {
		return Member{}, false
	}
	if _, ok := s.Member(id); !ok {
		return Member{}, false
	}
	return NewMember(g.client, g.id, id), true
}

func (g Guild) Members(ctx context.Context) []Member {
	s, ok := g.Snapshot(ctx)
	if !ok {
		return nil
	}
	ids := make([]snowflake.ID, 0, len(s.Members))
	for _, m := range s.Members {
		ids = append(ids, m.ID)
	}
	slices.Sort(ids)
	out := make([]Member, len(ids))
	for i, id := range ids {
		out[i] = NewMember(g.client, g.id, id)
	}
	return out
}

// SelfMember is the bot's own member in this guild.
func (g Guild) SelfMember(ctx context.Context) (Member, bool) {
	info, err := g.client.ApplicationInfo(ctx)
	if err != nil {
		return Member{}, false
	}
	return g.Member(ctx, info.BotID)
}

func (g Guild) TextChannels(ctx context.Context) []TextChannel {
	s, ok := g.Snapshot(ctx)
	if !ok {
		return nil
	}
	out := make([]TextChannel, len(s.TextChannels))
	for i, c := range s.TextChannels {
		out[i] = NewTextChannel(g.client, g.id, c.ID)
	}
	return out
}

func (g Guild) TextChannel(ctx context.Context, id snowflake.ID) (TextChannel, bool) {
	s, ok := g.Snapshot(ctx)
	if !ok {
		return TextChannel{}, false
	}
	if _, ok := s.TextChannel(id); !ok {
		return TextChannel{}, false
	}
	return NewTextChannel(g.client, g.id, id), true
}

func (g Guild) VoiceChannels(ctx context.Context) []VoiceChannel {
	s, ok := g.Snapshot(ctx)
	if !ok {
		return nil
	}
	out := make([]VoiceChannel, len(s.VoiceChannels))
	for i, c := range s.VoiceChannels {
		out[i] = NewVoiceChannel(g.client, g.id, c.ID)
	}
	return out
}

func (g Guild) VoiceChannel(ctx context.Context, id snowflake.ID) (VoiceChannel, bool) {
	s, ok := g.Snapshot(ctx)
	if !ok {
		return VoiceChannel{}, false
	}
	if _, ok := s.VoiceChannel(id); !ok {
		return VoiceChannel{}, false
	}
	return NewVoiceChannel(g.client, g.id, id), true
}

func (g Guild) Roles(ctx context.Context) []Role {
	s, ok := g.Snapshot(ctx)
	if !ok {
		return nil
	}
	out := make([]Role, len(s.Roles))
	for i, r := range s.Roles {
		out[i] = NewRole(g.client, g.id, r.ID)
	}
	return out
}

func (g Guild) Role(ctx context.Context, id snowflake.ID) (Role, bool) {
	s, ok := g.Snapshot(ctx)
	if !ok {
		return Role{}, false
	}
	if _, ok := s.Role(id); !ok {
		return Role{}, false
	}
	return NewRole(g.client, g.id, id), true
}

// PublicRole is the everyone role. It shares the guild id and needs no lookup.
func (g Guild) PublicRole() Role {
	return NewRole(g.client, g.id, g.id)
}
