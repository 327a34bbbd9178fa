package builtin

import (
	"context"
	"fmt"
	"github.com/fuad-daoud/discord-relay/command"
	"time"
)

// Ping measures the round trip of a message through the gateway.
type Ping struct{}

func (Ping) Name() string        { return "ping" }
func (Ping) Module() string      { return command.ModuleUtil }
func (Ping) Aliases() []string   { return []string{"pong"} }
func (Ping) Description() string { return "Checks that the bot is responsive." }

func (Ping) Execute(ctx context.Context, c *command.Context) error {
	start := time.Now()
	sent, err := c.Reply(ctx, "Pong!").Await(ctx)
	if err != nil {
		return err
	}
	rtt := time.Since(start).Round(time.Millisecond)
	_, err = c.Message.Channel.Edit(ctx, sent.ID, fmt.Sprintf("Pong! `%s`", rtt)).Await(ctx)
	return err
}
