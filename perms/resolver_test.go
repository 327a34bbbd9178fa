package perms

import (
	"context"
	"errors"
	"github.com/disgoorg/snowflake/v2"
	"github.com/fuad-daoud/discord-relay/bus"
	"github.com/fuad-daoud/discord-relay/config"
	"github.com/fuad-daoud/discord-relay/entity"
	"github.com/fuad-daoud/discord-relay/remote/remotetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"testing"
)

func TestResolve(t *testing.T) {
	c, _ := remotetest.NewSample(remotetest.TalkBits)
	t.Cleanup(c.Close)
	ctx := context.Background()
	defaults := config.DefaultGuild(remotetest.GuildID)
	bare := config.Guild{GuildID: remotetest.GuildID}

	tests := []struct {
		name      string
		member    snowflake.ID
		botAdmins []snowflake.ID
		guild     config.Guild
		want      Level
	}{
		{name: "application owner beats guild admin", member: remotetest.AppOwnerID, guild: defaults, want: BotOwner},
		{name: "bot admin by id", member: remotetest.AliceID, botAdmins: []snowflake.ID{remotetest.AliceID}, guild: defaults, want: BotAdmin},
		{name: "bot admin by role", member: remotetest.AliceID, botAdmins: []snowflake.ID{remotetest.DJRoleID}, guild: defaults, want: BotAdmin},
		{name: "guild owner is administrator", member: remotetest.GuildOwnerID, guild: bare, want: Admin},
		{name: "admin list by id", member: remotetest.BobID, guild: config.Guild{AdminList: []snowflake.ID{remotetest.BobID}}, want: Admin},
		{name: "admin list by role", member: remotetest.AliceID, guild: config.Guild{AdminList: []snowflake.ID{remotetest.DJRoleID}}, want: Admin},
		{name: "role not held", member: remotetest.BobID, guild: config.Guild{AdminList: []snowflake.ID{remotetest.DJRoleID}}, want: Base},
		{name: "default dj list names everyone", member: remotetest.BobID, guild: defaults, want: DJ},
		{name: "user list only", member: remotetest.BobID, guild: config.Guild{UserList: []snowflake.ID{remotetest.GuildID}}, want: User},
		{name: "nothing configured", member: remotetest.BobID, guild: bare, want: Base},
		{name: "member not in guild", member: 12345, guild: defaults, want: Base},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewResolver(c, tt.botAdmins, nil)
			m := entity.NewMember(c, remotetest.GuildID, tt.member)
			assert.Equal(t, tt.want, r.Resolve(ctx, m, tt.guild))
		})
	}
}

func TestResolveWithoutApplicationInfo(t *testing.T) {
	c, gw := remotetest.NewSample(remotetest.TalkBits)
	t.Cleanup(c.Close)
	gw.Respond(bus.TypeApplicationInfoRequest, func(bus.Envelope) (any, error) {
		return nil, errors.New("unavailable")
	})
	r := NewResolver(c, nil, nil)
	m := entity.NewMember(c, remotetest.GuildID, remotetest.AppOwnerID)
	assert.Equal(t, Admin, r.Resolve(context.Background(), m, config.DefaultGuild(remotetest.GuildID)),
		"falls through to the guild rules")
}

func TestAdministratorShortCircuitsRoleLists(t *testing.T) {
	c, _ := remotetest.NewSample(remotetest.TalkBits)
	t.Cleanup(c.Close)
	ctx := context.Background()
	owner := entity.NewMember(c, remotetest.GuildID, remotetest.GuildOwnerID)
	assert.True(t, InList(ctx, owner, []snowflake.ID{remotetest.DJRoleID}))
	assert.False(t, InList(ctx, owner, []snowflake.ID{424242}), "unknown ids are neither members nor roles")
	assert.False(t, InList(ctx, owner, nil))
}

func TestLevel(t *testing.T) {
	assert.Equal(t, "BOT_ADMIN", BotAdmin.String())
	assert.Equal(t, "Level(9)", Level(9).String())
	assert.True(t, BotOwner.AtLeast(Admin))
	assert.False(t, DJ.AtLeast(Admin))

	l, err := ParseLevel("dj")
	require.NoError(t, err)
	assert.Equal(t, DJ, l)
	_, err = ParseLevel("root")
	assert.Error(t, err)
}
