package bus

import (
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/snowflake/v2"
)

const (
	TypeGuildRequest               = "GuildRequest"
	TypeGuildsRequest              = "GuildsRequest"
	TypeSendMessageRequest         = "SendMessageRequest"
	TypeSendPrivateMessageRequest  = "SendPrivateMessageRequest"
	TypeEditMessageRequest         = "EditMessageRequest"
	TypeMessageDeleteRequest       = "MessageDeleteRequest"
	TypeSendTypingRequest          = "SendTypingRequest"
	TypeApplicationInfoRequest     = "ApplicationInfoRequest"
	TypeGuildPermissionRequest     = "GuildPermissionRequest"
	TypeChannelPermissionRequest   = "ChannelPermissionRequest"
	TypeBulkGuildPermissionRequest = "BulkGuildPermissionRequest"
)

type GuildRequest struct {
	GuildID snowflake.ID `json:"guildId"`
}

type GuildsRequest struct {
	ShardID int `json:"shardId"`
}

type GuildsResponse struct {
	Guilds []Guild `json:"guilds"`
}

type SendMessageRequest struct {
	ChannelID snowflake.ID `json:"channelId"`
	Message   string       `json:"message"`
}

type SendMessageResponse struct {
	ID        snowflake.ID `json:"id"`
	ChannelID snowflake.ID `json:"channelId"`
	Content   string       `json:"content"`
}

type SendPrivateMessageRequest struct {
	UserID  snowflake.ID `json:"userId"`
	Message string       `json:"message"`
}

type EditMessageRequest struct {
	ChannelID snowflake.ID `json:"channelId"`
	MessageID snowflake.ID `json:"messageId"`
	Message   string       `json:"message"`
}

type MessageDeleteRequest struct {
	ChannelID  snowflake.ID   `json:"channelId"`
	MessageIDs []snowflake.ID `json:"messageIds"`
}

type SendTypingRequest struct {
	ChannelID snowflake.ID `json:"channelId"`
}

type ApplicationInfoRequest struct{}

type ApplicationInfo struct {
	BotID   snowflake.ID `json:"botId"`
	OwnerID snowflake.ID `json:"ownerId"`
	Name    string       `json:"name,omitempty"`
}

// GuildPermissionRequest targets either a member or a role; exactly one of
// MemberID and RoleID is set.
type GuildPermissionRequest struct {
	GuildID     snowflake.ID        `json:"guildId"`
	MemberID    snowflake.ID        `json:"memberId,omitempty"`
	RoleID      snowflake.ID        `json:"roleId,omitempty"`
	Permissions discord.Permissions `json:"permissionBits"`
}

type ChannelPermissionRequest struct {
	ChannelID   snowflake.ID        `json:"channelId"`
	MemberID    snowflake.ID        `json:"memberId,omitempty"`
	RoleID      snowflake.ID        `json:"roleId,omitempty"`
	Permissions discord.Permissions `json:"permissionBits"`
}

type PermissionCheck struct {
	Passed             bool                `json:"passed"`
	Missing            discord.Permissions `json:"missingPermissions"`
	MissingEntityFault bool                `json:"missingEntityFault"`
}

type BulkGuildPermissionRequest struct {
	GuildID   snowflake.ID   `json:"guildId"`
	MemberIDs []snowflake.ID `json:"memberIds"`
}

type BulkGuildPermissionResponse struct {
	Effective []discord.Permissions `json:"effectivePermissions"`
}

// Ack is the empty response to requests that only report success.
type Ack struct{}

func (GuildRequest) BusType() string               { return TypeGuildRequest }
func (GuildsRequest) BusType() string              { return TypeGuildsRequest }
func (SendMessageRequest) BusType() string         { return TypeSendMessageRequest }
func (SendPrivateMessageRequest) BusType() string  { return TypeSendPrivateMessageRequest }
func (EditMessageRequest) BusType() string         { return TypeEditMessageRequest }
func (MessageDeleteRequest) BusType() string       { return TypeMessageDeleteRequest }
func (SendTypingRequest) BusType() string          { return TypeSendTypingRequest }
func (ApplicationInfoRequest) BusType() string     { return TypeApplicationInfoRequest }
func (GuildPermissionRequest) BusType() string     { return TypeGuildPermissionRequest }
func (ChannelPermissionRequest) BusType() string   { return TypeChannelPermissionRequest }
func (BulkGuildPermissionRequest) BusType() string { return TypeBulkGuildPermissionRequest }
