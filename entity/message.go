package entity

import (
	"github.com/disgoorg/snowflake/v2"
	"github.com/fuad-daoud/discord-relay/bus"
	"github.com/fuad-daoud/discord-relay/remote"
)

// Message is a guild text message. Only ids are held; nothing is fetched.
type Message struct {
	ID      snowflake.ID
	Guild   Guild
	Channel TextChannel
	Author  Member
	Content string
}

type PrivateMessage struct {
	Author  User
	Content string
}

func NewMessage(client *remote.Client, ev bus.GuildMessageEvent) Message {
	return Message{
		ID:      ev.ID,
		Guild:   NewGuild(client, ev.GuildID),
		Channel: NewTextChannel(client, ev.GuildID, ev.ChannelID),
		Author:  NewMember(client, ev.GuildID, ev.AuthorID),
		Content: ev.Content,
	}
}

func NewPrivateMessage(client *remote.Client, ev bus.PrivateMessageEvent) PrivateMessage {
	return PrivateMessage{Author: NewUser(client, ev.AuthorID), Content: ev.Content}
}
