package entity

import (
	"context"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/snowflake/v2"
	"github.com/fuad-daoud/discord-relay/bus"
	"github.com/fuad-daoud/discord-relay/remote"
)

// TalkPermissions are the bits the bot needs to read and answer in a channel.
const TalkPermissions = discord.PermissionViewChannel | discord.PermissionSendMessages

type TextChannel struct {
	id      snowflake.ID
	guildID snowflake.ID
	client  *remote.Client
}

func NewTextChannel(client *remote.Client, guildID, id snowflake.ID) TextChannel {
	return TextChannel{id: id, guildID: guildID, client: client}
}

func (c TextChannel) ID() snowflake.ID             { return c.id }
func (c TextChannel) GuildID() snowflake.ID        { return c.guildID }
func (c TextChannel) Guild() Guild                 { return NewGuild(c.client, c.guildID) }
func (c TextChannel) Mention() string              { return "<#" + c.id.String() + ">" }
func (c TextChannel) Equal(other TextChannel) bool { return c.id == other.id }

func (c TextChannel) resolve(ctx context.Context) (bus.TextChannel, bool) {
	g, ok := c.client.Guild(ctx, c.guildID)
	if !ok {
		return bus.TextChannel{}, false
	}
	return g.TextChannel(c.id)
}

func (c TextChannel) Exists(ctx context.Context) bool {
	_, ok := c.resolve(ctx)
	return ok
}

func (c TextChannel) Name(ctx context.Context) string {
	ch, _ := c.resolve(ctx)
	return ch.Name
}

// OurEffectivePermissions are the bot's permissions in the channel as of
// the current snapshot.
func (c TextChannel) OurEffectivePermissions(ctx context.Context) discord.Permissions {
	ch, _ := c.resolve(ctx)
	return ch.OurEffectivePermissions
}

// CanTalk reports whether the bot can both read and send in the channel.
func (c TextChannel) CanTalk(ctx context.Context) bool {
	return c.OurEffectivePermissions(ctx).Has(TalkPermissions)
}

// CheckOurPermissions asks the gateway for a fresh answer instead of the
// snapshot.
func (c TextChannel) CheckOurPermissions(ctx context.Context, perms discord.Permissions) *remote.Pending[bus.PermissionCheck] {
	info, err := c.client.ApplicationInfo(ctx)
	if err != nil {
		return remote.Completed(bus.PermissionCheck{}, err)
	}
	return c.client.CheckChannelPermissions(ctx, c.id, remote.MemberTarget(info.BotID), perms)
}

func (c TextChannel) Send(ctx context.Context, message string) *remote.Pending[bus.SendMessageResponse] {
	return c.client.SendMessage(ctx, c.id, message)
}

func (c TextChannel) Edit(ctx context.Context, messageID snowflake.ID, message string) *remote.Pending[bus.Ack] {
	return c.client.EditMessage(ctx, c.id, messageID, message)
}

func (c TextChannel) Delete(ctx context.Context, messageIDs ...snowflake.ID) *remote.Pending[bus.Ack] {
	return c.client.DeleteMessages(ctx, c.id, messageIDs...)
}

func (c TextChannel) SendTyping(ctx context.Context) *remote.Pending[bus.Ack] {
	return c.client.SendTyping(ctx, c.id)
}

type VoiceChannel struct {
	id      snowflake.ID
	guildID snowflake.ID
	client  *remote.Client
}

func NewVoiceChannel(client *remote.Client, guildID, id snowflake.ID) VoiceChannel {
	return VoiceChannel{id: id, guildID: guildID, client: client}
}

func (c VoiceChannel) ID() snowflake.ID              { return c.id }
func (c VoiceChannel) GuildID() snowflake.ID         { return c.guildID }
func (c VoiceChannel) Guild() Guild                  { return NewGuild(c.client, c.guildID) }
func (c VoiceChannel) Equal(other VoiceChannel) bool { return c.id == other.id }

func (c VoiceChannel) resolve(ctx context.Context) (*bus.Guild, bus.VoiceChannel, bool) {
	g, ok := c.client.Guild(ctx, c.guildID)
	if !ok {
		return nil, bus.VoiceChannel{}, false
	}
	ch, ok := g.VoiceChannel(c.id)
	return g, ch, ok
}

func (c VoiceChannel) Exists(ctx context.Context) bool {
	_, _, ok := c.resolve(ctx)
	return ok
}

func (c VoiceChannel) Name(ctx context.Context) string {
	_, ch, _ := c.resolve(ctx)
	return ch.Name
}

func (c VoiceChannel) OurEffectivePermissions(ctx context.Context) discord.Permissions {
	_, ch, _ := c.resolve(ctx)
	return ch.OurEffectivePermissions
}

// CanConnect reports whether the bot may join and speak in the channel.
func (c VoiceChannel) CanConnect(ctx context.Context) bool {
	return c.OurEffectivePermissions(ctx).Has(discord.PermissionConnect | discord.PermissionSpeak)
}

// Members are the members currently connected to the channel.
func (c VoiceChannel) Members(ctx context.Context) []Member {
	g, _, ok := c.resolve(ctx)
	if !ok {
		return nil
	}
	var out []Member
	for _, m := range NewGuild(c.client, c.guildID).Members(ctx) {
		if sm, ok := g.Member(m.ID()); ok && sm.VoiceChannel == c.id {
			out = append(out, m)
		}
	}
	return out
}
