package entity_test

import (
	"context"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/snowflake/v2"
	"github.com/fuad-daoud/discord-relay/bus"
	"github.com/fuad-daoud/discord-relay/entity"
	"github.com/fuad-daoud/discord-relay/remote"
	"github.com/fuad-daoud/discord-relay/remote/remotetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"testing"
	"time"
)

const timeout = 2 * time.Second

func newSample(t *testing.T) (*remote.Client, *remotetest.Gateway) {
	t.Helper()
	c, gw := remotetest.NewSample(remotetest.TalkBits)
	t.Cleanup(c.Close)
	return c, gw
}

func TestGuildAccessors(t *testing.T) {
	t.Parallel()
	c, gw := newSample(t)
	ctx := context.Background()
	g := entity.NewGuild(c, remotetest.GuildID)

	assert.Zero(t, gw.Count(bus.TypeGuildRequest), "constructing a handle fetches nothing")
	assert.Equal(t, "sample", g.Name(ctx))

	owner, ok := g.Owner(ctx)
	require.True(t, ok)
	assert.Equal(t, remotetest.GuildOwnerID, owner.ID())

	members := g.Members(ctx)
	require.Len(t, members, 5)
	assert.Equal(t, remotetest.GuildOwnerID, members[0].ID())
	assert.Equal(t, remotetest.SelfID, members[4].ID())

	self, ok := g.SelfMember(ctx)
	require.True(t, ok)
	assert.True(t, self.Bot(ctx))

	assert.Len(t, g.TextChannels(ctx), 3)
	assert.Len(t, g.VoiceChannels(ctx), 1)
	assert.Len(t, g.Roles(ctx), 3)
	assert.True(t, g.PublicRole().IsPublic())
	assert.Equal(t, "@everyone", g.PublicRole().Mention())

	_, ok = g.TextChannel(ctx, remotetest.MusicID)
	assert.False(t, ok, "voice channels are not text channels")
	_, ok = g.Member(ctx, 12345)
	assert.False(t, ok)

	assert.Equal(t, 1, gw.Count(bus.TypeGuildRequest), "every read is served by one cached snapshot")
}

func TestMissingGuildYieldsZeroValues(t *testing.T) {
	t.Parallel()
	c, _ := newSample(t)
	ctx := context.Background()
	g := entity.NewGuild(c, 404)

	assert.False(t, g.Exists(ctx))
	assert.Empty(t, g.Name(ctx))
	assert.Nil(t, g.Members(ctx))
	_, ok := g.Owner(ctx)
	assert.False(t, ok)

	m := entity.NewMember(c, 404, remotetest.AliceID)
	assert.Empty(t, m.EffectiveName(ctx))
	assert.False(t, m.IsAdministrator(ctx))
	assert.Nil(t, m.Roles(ctx))

	ch := entity.NewTextChannel(c, 404, remotetest.CommandsID)
	assert.False(t, ch.CanTalk(ctx))
	assert.Zero(t, ch.OurEffectivePermissions(ctx))
}

func TestHandlesReResolveOnEveryRead(t *testing.T) {
	t.Parallel()
	c, gw := newSample(t)
	ctx := context.Background()
	alice := entity.NewMember(c, remotetest.GuildID, remotetest.AliceID)
	assert.Equal(t, "Al", alice.EffectiveName(ctx))

	renamed := remotetest.SampleGuild()
	m := renamed.Members[remotetest.AliceID.String()]
	m.Nickname = ""
	renamed.Members[remotetest.AliceID.String()] = m
	gw.SetGuild(remotetest.GuildID, renamed)

	assert.Equal(t, "Al", alice.EffectiveName(ctx), "served from the cache until invalidated")
	alice.Guild().Invalidate()
	assert.Equal(t, "alice", alice.EffectiveName(ctx))
	assert.Equal(t, 2, gw.Count(bus.TypeGuildRequest))
}

func TestMemberAccessors(t *testing.T) {
	t.Parallel()
	c, _ := newSample(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		id     snowflake.ID
		admin  bool
		owner  bool
		voice  bool
		nick   string
		roles  int
		effect string
	}{
		{name: "guild owner", id: remotetest.GuildOwnerID, admin: true, owner: true, effect: "owner"},
		{name: "nicknamed member", id: remotetest.AliceID, nick: "Al", roles: 1, effect: "Al"},
		{name: "member in voice", id: remotetest.BobID, voice: true, effect: "bob"},
		{name: "admin role holder", id: remotetest.AppOwnerID, admin: true, roles: 1, effect: "maintainer"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := entity.NewMember(c, remotetest.GuildID, tt.id)
			assert.True(t, m.Exists(ctx))
			assert.Equal(t, tt.admin, m.IsAdministrator(ctx))
			assert.Equal(t, tt.owner, m.IsOwner(ctx))
			assert.Equal(t, tt.nick, m.Nickname(ctx))
			assert.Equal(t, tt.effect, m.EffectiveName(ctx))
			assert.Len(t, m.Roles(ctx), tt.roles)
			_, inVoice := m.VoiceChannel(ctx)
			assert.Equal(t, tt.voice, inVoice)
			assert.Equal(t, "<@"+tt.id.String()+">", m.Mention())
		})
	}
}

func TestPublicRoleAdministratorMakesEveryoneAdmin(t *testing.T) {
	t.Parallel()
	c, gw := newSample(t)
	g := remotetest.SampleGuild()
	g.Roles[0].Permissions = discord.PermissionAdministrator
	gw.SetGuild(remotetest.GuildID, g)

	bob := entity.NewMember(c, remotetest.GuildID, remotetest.BobID)
	assert.True(t, bob.IsAdministrator(context.Background()))
}

func TestTextChannel(t *testing.T) {
	t.Parallel()
	c, gw := newSample(t)
	ctx := context.Background()

	commands := entity.NewTextChannel(c, remotetest.GuildID, remotetest.CommandsID)
	readOnly := entity.NewTextChannel(c, remotetest.GuildID, remotetest.ReadOnlyID)
	assert.Equal(t, "bot-commands", commands.Name(ctx))
	assert.True(t, commands.CanTalk(ctx))
	assert.False(t, readOnly.CanTalk(ctx))
	assert.Equal(t, "<#10>", commands.Mention())

	sent, err := commands.Send(ctx, "hello").Wait(timeout)
	require.NoError(t, err)
	assert.Equal(t, remotetest.CommandsID, sent.ChannelID)
	_, err = commands.Edit(ctx, sent.ID, "edited").Wait(timeout)
	require.NoError(t, err)
	_, err = commands.Delete(ctx, sent.ID).Wait(timeout)
	require.NoError(t, err)
	_, err = commands.SendTyping(ctx).Wait(timeout)
	require.NoError(t, err)
	assert.Equal(t, []string{"hello"}, gw.Messages(remotetest.CommandsID))

	check, err := commands.CheckOurPermissions(ctx, discord.PermissionSendMessages|discord.PermissionEmbedLinks).Wait(timeout)
	require.NoError(t, err)
	assert.False(t, check.Passed)
	assert.Equal(t, discord.PermissionEmbedLinks, check.Missing)

	req, err := bus.Decode[bus.ChannelPermissionRequest](gw.Requests(bus.TypeChannelPermissionRequest)[0])
	require.NoError(t, err)
	assert.Equal(t, remotetest.SelfID, req.MemberID)
}

func TestVoiceChannelMembers(t *testing.T) {
	t.Parallel()
	c, _ := newSample(t)
	ctx := context.Background()

	music := entity.NewVoiceChannel(c, remotetest.GuildID, remotetest.MusicID)
	assert.Equal(t, "music", music.Name(ctx))
	assert.True(t, music.CanConnect(ctx))
	members := music.Members(ctx)
	require.Len(t, members, 2)
	assert.Equal(t, remotetest.BobID, members[0].ID())
	assert.Equal(t, remotetest.SelfID, members[1].ID())
}

func TestRoleAndUser(t *testing.T) {
	t.Parallel()
	c, gw := newSample(t)
	ctx := context.Background()

	admins := entity.NewRole(c, remotetest.GuildID, remotetest.AdminRoleID)
	assert.Equal(t, "admins", admins.Name(ctx))
	assert.True(t, admins.Permissions(ctx).Has(discord.PermissionAdministrator))
	assert.False(t, admins.IsPublic())
	assert.Equal(t, "<@&30>", admins.Mention())

	check, err := admins.HasPermission(ctx, discord.PermissionViewChannel).Wait(timeout)
	require.NoError(t, err)
	assert.True(t, check.Passed)

	alice := entity.NewMember(c, remotetest.GuildID, remotetest.AliceID)
	_, err = alice.User().SendPrivate(ctx, "psst").Wait(timeout)
	require.NoError(t, err)
	assert.Equal(t, []string{"psst"}, gw.PrivateMessages(remotetest.AliceID))
	assert.True(t, alice.User().Equal(entity.NewUser(c, remotetest.AliceID)))
}

func TestNewMessageHoldsOnlyIDs(t *testing.T) {
	t.Parallel()
	c, gw := newSample(t)
	msg := entity.NewMessage(c, bus.GuildMessageEvent{
		ID: 500, GuildID: remotetest.GuildID, ChannelID: remotetest.CommandsID, AuthorID: remotetest.AliceID, Content: ";;help",
	})
	assert.Equal(t, remotetest.GuildID, msg.Guild.ID())
	assert.Equal(t, remotetest.CommandsID, msg.Channel.ID())
	assert.Equal(t, remotetest.AliceID, msg.Author.ID())
	assert.Empty(t, gw.Published(bus.QueueRequests))
}
