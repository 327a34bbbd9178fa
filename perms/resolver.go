package perms

import (
	"context"
	"github.com/disgoorg/snowflake/v2"
	"github.com/fuad-daoud/discord-relay/config"
	"github.com/fuad-daoud/discord-relay/entity"
	"github.com/fuad-daoud/discord-relay/logger/dlog"
	"github.com/fuad-daoud/discord-relay/remote"
	"log/slog"
	"slices"
)

// Resolver computes permission levels. The first matching rule wins:
// application owner, configured bot admin, platform administrator, then the
// guild's admin, DJ and user lists.
type Resolver struct {
	client    *remote.Client
	botAdmins []snowflake.ID
	log       *slog.Logger
}

// NewResolver takes the static bot admin list; entries may be user or role ids.
func NewResolver(client *remote.Client, botAdmins []snowflake.ID, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = dlog.Discard()
	}
	return &Resolver{client: client, botAdmins: slices.Clone(botAdmins), log: logger}
}

func (r *Resolver) Resolve(ctx context.Context, member entity.Member, guild config.Guild) Level {
	if r.IsBotOwner(ctx, member.ID()) {
		return BotOwner
	}
	if r.IsBotAdmin(ctx, member) {
		return BotAdmin
	}
	if member.IsAdministrator(ctx) {
		return Admin
	}
	switch {
	case InList(ctx, member, guild.AdminList):
		return Admin
	case InList(ctx, member, guild.DJList):
		return DJ
	case InList(ctx, member, guild.UserList):
		return User
	}
	return Base
}

func (r *Resolver) IsBotOwner(ctx context.Context, userID snowflake.ID) bool {
	info, err := r.client.ApplicationInfo(ctx)
	if err != nil {
		r.log.WarnContext(ctx, "Could not resolve application owner", "err", err)
		return false
	}
	return info.OwnerID == userID
}

// IsBotAdmin matches the member id or any role the member holds against
// the static admin list.
func (r *Resolver) IsBotAdmin(ctx context.Context, member entity.Member) bool {
	for _, id := range r.botAdmins {
		if id == member.ID() || member.HasRole(ctx, id) {
			return true
		}
	}
	return false
}

// IsBotAdminID is IsBotAdmin for callers without a guild, where only user
// ids can match.
func (r *Resolver) IsBotAdminID(userID snowflake.ID) bool {
	return slices.Contains(r.botAdmins, userID)
}

// InList reports whether member is named in list, either directly or
// through a role. Role entries match outright when the member is a platform
// administrator or the entry is the public role.
func InList(ctx context.Context, member entity.Member, list []snowflake.ID) bool {
	if len(list) == 0 {
		return false
	}
	if slices.Contains(list, member.ID()) {
		return true
	}
	g, ok := member.Guild().Snapshot(ctx)
	if !ok {
		return false
	}
	sm, ok := g.Member(member.ID())
	if !ok {
		return false
	}
	admin := member.IsAdministrator(ctx)
	for _, id := range list {
		if id == g.ID {
			return true
		}
		if _, isRole := g.Role(id); !isRole {
			continue
		}
		if admin || sm.HasRole(id) {
			return true
		}
	}
	return false
}
