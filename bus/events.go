package bus

import (
	"github.com/disgoorg/snowflake/v2"
)

const (
	TypeShardStatusChange  = "ShardStatusChange"
	TypeShardLifecycle     = "ShardLifecycleEvent"
	TypeGuildJoin          = "GuildJoinEvent"
	TypeGuildLeave         = "GuildLeaveEvent"
	TypeVoiceJoin          = "VoiceJoinEvent"
	TypeVoiceLeave         = "VoiceLeaveEvent"
	TypeVoiceMove          = "VoiceMoveEvent"
	TypeVoiceServerUpdate  = "VoiceServerUpdate"
	TypeGuildMessage       = "GuildMessageEvent"
	TypePrivateMessage     = "PrivateMessageEvent"
	TypeEntityInvalidation = "EntityInvalidation"
)

type ShardStatus string

const (
	ShardInitializing ShardStatus = "INITIALIZING"
	ShardConnecting   ShardStatus = "CONNECTING"
	ShardLoading      ShardStatus = "LOADING"
	ShardReady        ShardStatus = "READY"
	ShardReconnecting ShardStatus = "RECONNECTING"
	ShardDisconnected ShardStatus = "DISCONNECTED"
	ShardShutdown     ShardStatus = "SHUTDOWN"
)

type LifecycleChange string

const (
	LifecycleStarted   LifecycleChange = "STARTED"
	LifecycleResumed   LifecycleChange = "RESUMED"
	LifecycleReconnect LifecycleChange = "RECONNECTED"
	LifecycleShutdown  LifecycleChange = "SHUTDOWN"
)

type ShardStatusChange struct {
	ShardID    int         `json:"shardId"`
	ShardTotal int         `json:"shardTotal"`
	Status     ShardStatus `json:"status"`
}

type ShardLifecycleEvent struct {
	ShardID    int             `json:"shardId"`
	ShardTotal int             `json:"shardTotal"`
	Change     LifecycleChange `json:"change"`
}

type GuildJoinEvent struct {
	GuildID snowflake.ID `json:"guildId"`
}

type GuildLeaveEvent struct {
	GuildID snowflake.ID `json:"guildId"`
}

type VoiceJoinEvent struct {
	GuildID   snowflake.ID `json:"guildId"`
	ChannelID snowflake.ID `json:"channel"`
	MemberID  snowflake.ID `json:"member"`
}

type VoiceLeaveEvent struct {
	GuildID   snowflake.ID `json:"guildId"`
	ChannelID snowflake.ID `json:"channel"`
	MemberID  snowflake.ID `json:"member"`
}

type VoiceMoveEvent struct {
	GuildID      snowflake.ID `json:"guildId"`
	OldChannelID snowflake.ID `json:"oldChannel"`
	NewChannelID snowflake.ID `json:"newChannel"`
	MemberID     snowflake.ID `json:"member"`
}

type VoiceServerUpdate struct {
	GuildID   snowflake.ID `json:"guildId"`
	SessionID string       `json:"sessionId"`
	Endpoint  string       `json:"endpoint"`
	Token     string       `json:"token"`
}

type GuildMessageEvent struct {
	ID        snowflake.ID `json:"id"`
	GuildID   snowflake.ID `json:"guildId"`
	ChannelID snowflake.ID `json:"channel"`
	AuthorID  snowflake.ID `json:"author"`
	Content   string       `json:"content"`
}

type PrivateMessageEvent struct {
	AuthorID snowflake.ID `json:"author"`
	Content  string       `json:"content"`
}

type EntityInvalidation struct {
	GuildID snowflake.ID `json:"guildId"`
}

func (ShardStatusChange) BusType() string   { return TypeShardStatusChange }
func (ShardLifecycleEvent) BusType() string { return TypeShardLifecycle }
func (GuildJoinEvent) BusType() string      { return TypeGuildJoin }
func (GuildLeaveEvent) BusType() string     { return TypeGuildLeave }
func (VoiceJoinEvent) BusType() string      { return TypeVoiceJoin }
func (VoiceLeaveEvent) BusType() string     { return TypeVoiceLeave }
func (VoiceMoveEvent) BusType() string      { return TypeVoiceMove }
func (VoiceServerUpdate) BusType() string   { return TypeVoiceServerUpdate }
func (GuildMessageEvent) BusType() string   { return TypeGuildMessage }
func (PrivateMessageEvent) BusType() string { return TypePrivateMessage }
func (EntityInvalidation) BusType() string  { return TypeEntityInvalidation }
