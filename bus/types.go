package bus

import (
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/snowflake/v2"
)

// Guild is an immutable snapshot of a remote guild. It is replaced
// wholesale on reload and must never be mutated once published.
type Guild struct {
	ID            snowflake.ID      `json:"id"`
	Name          string            `json:"name"`
	OwnerID       snowflake.ID      `json:"ownerId"`
	Members       map[string]Member `json:"members"`
	TextChannels  []TextChannel     `json:"textChannels"`
	VoiceChannels []VoiceChannel    `json:"voiceChannels"`
	Roles         []Role            `json:"roles"`
}

type Member struct {
	ID           snowflake.ID   `json:"id"`
	Name         string         `json:"name"`
	Nickname     string         `json:"nickname,omitempty"`
	Discrim      string         `json:"discrim,omitempty"`
	Bot          bool           `json:"bot"`
	Roles        []snowflake.ID `json:"roles"`
	VoiceChannel snowflake.ID   `json:"voiceChannel,omitempty"`
}

type User struct {
	ID      snowflake.ID `json:"id"`
	Name    string       `json:"name"`
	Discrim string       `json:"discrim,omitempty"`
	Bot     bool         `json:"bot"`
}

type TextChannel struct {
	ID                      snowflake.ID        `json:"id"`
	Name                    string              `json:"name"`
	OurEffectivePermissions discord.Permissions `json:"ourEffectivePermissions"`
}

type VoiceChannel struct {
	ID                      snowflake.ID        `json:"id"`
	Name                    string              `json:"name"`
	OurEffectivePermissions discord.Permissions `json:"ourEffectivePermissions"`
}

type Role struct {
	ID          snowflake.ID        `json:"id"`
	Name        string              `json:"name"`
	Permissions discord.Permissions `json:"permissions"`
}

func (g *Guild) Member(id snowflake.ID) (Member, bool) {
	m, ok := g.Members[id.String()]
	return m, ok
}

func (g *Guild) TextChannel(id snowflake.ID) (TextChannel, bool) {
	for _, c := range g.TextChannels {
		if c.ID == id {
			return c, true
		}
	}
	return TextChannel{}, false
}

func (g *Guild) VoiceChannel(id snowflake.ID) (VoiceChannel, bool) {
	for _, c := range g.VoiceChannels {
		if c.ID == id {
			return c, true
		}
	}
	return VoiceChannel{}, false
}

func (g *Guild) Role(id snowflake.ID) (Role, bool) {
	for _, r := range g.Roles {
		if r.ID == id {
			return r, true
		}
	}
	return Role{}, false
}

// PublicRole is the implicit everyone role, which shares the guild id.
func (g *Guild) PublicRole() (Role, bool) {
	return g.Role(g.ID)
}

func (m Member) EffectiveName() string {
	if m.Nickname != "" {
		return m.Nickname
	}
	return m.Name
}

func (m Member) HasRole(id snowflake.ID) bool {
	for _, r := range m.Roles {
		if r == id {
			return true
		}
	}
	return false
}
