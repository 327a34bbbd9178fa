package entity

import (
	"context"
	"github.com/disgoorg/snowflake/v2"
	"github.com/fuad-daoud/discord-relay/bus"
	"github.com/fuad-daoud/discord-relay/remote"
)

// User is a member stripped of its guild. It carries no snapshot of its own.
type User struct {
	id     snowflake.ID
	client *remote.Client
}

func NewUser(client *remote.Client, id snowflake.ID) User {
	return User{id: id, client: client}
}

func (u User) ID() snowflake.ID      { return u.id }
func (u User) Mention() string       { return "<@" + u.id.String() + ">" }
func (u User) Equal(other User) bool { return u.id == other.id }

func (u User) SendPrivate(ctx context.Context, message string) *remote.Pending[bus.Ack] {
	return u.client.SendPrivateMessage(ctx, u.id, message)
}
