package entity

import (
	"context"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/snowflake/v2"
	"github.com/fuad-daoud/discord-relay/bus"
	"github.com/fuad-daoud/discord-relay/remote"
)

type Role struct {
	id      snowflake.ID
	guildID snowflake.ID
	client  *remote.Client
}

func NewRole(client *remote.Client, guildID, id snowflake.ID) Role {
	return Role{id: id, guildID: guildID, client: client}
}

func (r Role) ID() snowflake.ID      { return r.id }
func (r Role) GuildID() snowflake.ID { return r.guildID }
func (r Role) Guild() Guild          { return NewGuild(r.client, r.guildID) }
func (r Role) Equal(other Role) bool { return r.id == other.id }

// IsPublic reports whether this is the everyone role of its guild.
func (r Role) IsPublic() bool { return r.id == r.guildID }

func (r Role) Mention() string {
	if r.IsPublic() {
		return "@everyone"
	}
	return "<@&" + r.id.String() + ">"
}

func (r Role) resolve(ctx context.Context) (bus.Role, bool) {
	g, ok := r.client.Guild(ctx, r.guildID)
	if !ok {
		return bus.Role{}, false
	}
	return g.Role(r.id)
}

func (r Role) Exists(ctx context.Context) bool {
	_, ok := r.resolve(ctx)
	return ok
}

func (r Role) Name(ctx context.Context) string {
	role, _ := r.resolve(ctx)
	return role.Name
}

func (r Role) Permissions(ctx context.Context) discord.Permissions {
	role, _ := r.resolve(ctx)
	return role.Permissions
}

func (r Role) HasPermission(ctx context.Context, perms discord.Permissions) *remote.Pending[bus.PermissionCheck] {
	return r.client.CheckGuildPermissions(ctx, r.guildID, remote.RoleTarget(r.id), perms)
}
