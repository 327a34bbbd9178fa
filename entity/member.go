package entity

import (
	"context"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/snowflake/v2"
	"github.com/fuad-daoud/discord-relay/bus"
	"github.com/fuad-daoud/discord-relay/remote"
)

type Member struct {
	id      snowflake.ID
	guildID snowflake.ID
	client  *remote.Client
}

func NewMember(client *remote.Client, guildID, id snowflake.ID) Member {
	return Member{id: id, guildID: guildID, client: client}
}

func (m Member) ID() snowflake.ID      { return m.id }
func (m Member) GuildID() snowflake.ID { return m.guildID }
func (m Member) Guild() Guild          { return NewGuild(m.client, m.guildID) }
func (m Member) User() User            { return NewUser(m.client, m.id) }
func (m Member) Mention() string       { return "<@" + m.id.String() + ">" }

func (m Member) Equal(other Member) bool {
	return m.id == other.id && m.guildID == other.guildID
}

func (m Member) resolve(ctx context.Context) (*bus.Guild, bus.Member, bool) {
	g, ok := m.client.Guild(ctx, m.guildID)
	if !ok {
		return nil, bus.Member{}, false
	}
	member, ok := g.Member(m.id)
	return g, member, ok
}

// Exists reports whether the member is still part of the current snapshot.
func (m Member) Exists(ctx context.Context) bool {
	_, _, ok := m.resolve(ctx)
	return ok
}

func (m Member) Name(ctx context.Context) string {
	_, member, _ := m.resolve(ctx)
	return member.Name
}

func (m Member) Nickname(ctx context.Context) string {
	_, member, _ := m.resolve(ctx)
	return member.Nickname
}

// EffectiveName is the nickname when set, the user name otherwise.
func (m Member) EffectiveName(ctx context.Context) string {
	_, member, _ := m.resolve(ctx)
	return member.EffectiveName()
}

func (m Member) Bot(ctx context.Context) bool {
	_, member, _ := m.resolve(ctx)
	return member.Bot
}

func (m Member) Roles(ctx context.Context) []Role {
	_, member, ok := m.resolve(ctx)
	if !ok {
		return nil
	}
	out := make([]Role, len(member.Roles))
	for i, id := range member.Roles {
		out[i] = NewRole(m.client, m.guildID, id)
	}
	return out
}

func (m Member) HasRole(ctx context.Context, roleID snowflake.ID) bool {
	_, member, _ := m.resolve(ctx)
	return member.HasRole(roleID)
}

// VoiceChannel is the voice channel the member sits in, if any.
func (m Member) VoiceChannel(ctx context.Context) (VoiceChannel, bool) {
	_, member, ok := m.resolve(ctx)
	if !ok || member.VoiceChannel == 0 {
		return VoiceChannel{}, false
	}
	return NewVoiceChannel(m.client, m.guildID, member.VoiceChannel), true
}

// IsOwner reports whether the member owns the guild.
func (m Member) IsOwner(ctx context.Context) bool {
	g, _, ok := m.resolve(ctx)
	return ok && g.OwnerID == m.id
}

// IsAdministrator is computed from the snapshot: the owner, or any held
// role, including the public one, granting Administrator.
func (m Member) IsAdministrator(ctx context.Context) bool {
	g, member, ok := m.resolve(ctx)
	if !ok {
		return false
	}
	if g.OwnerID == m.id {
		return true
	}
	if public, ok := g.PublicRole(); ok && public.Permissions.Has(discord.PermissionAdministrator) {
		return true
	}
	for _, id := range member.Roles {
		if r, ok := g.Role(id); ok && r.Permissions.Has(discord.PermissionAdministrator) {
			return true
		}
	}
	return false
}

// HasPermission asks the gateway whether the member holds perms guild-wide.
func (m Member) HasPermission(ctx context.Context, perms discord.Permissions) *remote.Pending[bus.PermissionCheck] {
	return m.client.CheckGuildPermissions(ctx, m.guildID, remote.MemberTarget(m.id), perms)
}

// HasChannelPermission asks the gateway whether the member holds perms in channel.
func (m Member) HasChannelPermission(ctx context.Context, channel TextChannel, perms discord.Permissions) *remote.Pending[bus.PermissionCheck] {
	return m.client.CheckChannelPermissions(ctx, channel.ID(), remote.MemberTarget(m.id), perms)
}
