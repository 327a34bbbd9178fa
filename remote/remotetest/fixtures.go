package remotetest

import (
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/snowflake/v2"
	"github.com/fuad-daoud/discord-relay/bus"
	"github.com/fuad-daoud/discord-relay/remote"
)

// Ids of the sample guild.
const (
	GuildID      snowflake.ID = 1
	GuildOwnerID snowflake.ID = 2
	AliceID      snowflake.ID = 5
	BobID        snowflake.ID = 6
	AppOwnerID   snowflake.ID = 7
	SelfID       snowflake.ID = 99
	GeneralID    snowflake.ID = 1
	CommandsID   snowflake.ID = 10
	ReadOnlyID   snowflake.ID = 11
	MusicID      snowflake.ID = 20
	AdminRoleID  snowflake.ID = 30
	DJRoleID     snowflake.ID = 31
)

const (
	TalkBits     = discord.PermissionViewChannel | discord.PermissionSendMessages
	VoiceBits    = discord.PermissionConnect | discord.PermissionSpeak
	ReadOnlyBits = discord.PermissionViewChannel
)

// SampleGuild builds a small guild: an owner, two regular members, the
// application owner holding an admin role and the bot itself sitting in the
// music channel with Bob.
func SampleGuild() *bus.Guild {
	member := func(id snowflake.ID, name, nick string, roles ...snowflake.ID) bus.Member {
		return bus.Member{ID: id, Name: name, Nickname: nick, Roles: roles}
	}
	bob := member(BobID, "bob", "")
	bob.VoiceChannel = MusicID
	self := member(SelfID, "relay", "")
	self.Bot = true
	self.VoiceChannel = MusicID

	g := &bus.Guild{
		ID:      GuildID,
		Name:    "sample",
		OwnerID: GuildOwnerID,
		Members: map[string]bus.Member{},
		TextChannels: []bus.TextChannel{
			{ID: GeneralID, Name: "general", OurEffectivePermissions: TalkBits},
			{ID: CommandsID, Name: "bot-commands", OurEffectivePermissions: TalkBits},
			{ID: ReadOnlyID, Name: "announcements", OurEffectivePermissions: ReadOnlyBits},
		},
		VoiceChannels: []bus.VoiceChannel{
			{ID: MusicID, Name: "music", OurEffectivePermissions: VoiceBits},
		},
		Roles: []bus.Role{
			{ID: GuildID, Name: "@everyone"},
			{ID: AdminRoleID, Name: "admins", Permissions: discord.PermissionAdministrator},
			{ID: DJRoleID, Name: "dj"},
		},
	}
	for _, m := range []bus.Member{
		member(GuildOwnerID, "owner", ""),
		member(AliceID, "alice", "Al", DJRoleID),
		bob,
		member(AppOwnerID, "maintainer", "", AdminRoleID),
		self,
	} {
		g.Members[m.ID.String()] = m
	}
	return g
}

// SampleApplication is the identity matching SampleGuild.
func SampleApplication() bus.ApplicationInfo {
	return bus.ApplicationInfo{BotID: SelfID, OwnerID: AppOwnerID, Name: "relay"}
}

// NewSample wires a client to a gateway serving SampleGuild, the sample
// application identity, message requests and permission checks granting
// granted.
func NewSample(granted discord.Permissions, opts ...remote.Option) (*remote.Client, *Gateway) {
	gw := New()
	c := remote.NewClient(gw, opts...)
	gw.Attach(c)
	gw.ServeGuilds(SampleGuild())
	gw.ServeApplicationInfo(SampleApplication())
	gw.ServeMessages()
	gw.ServePermissions(granted)
	return c, gw
}
