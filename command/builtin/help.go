package builtin

import (
	"context"
	"fmt"
	"github.com/fuad-daoud/discord-relay/command"
	"strings"
)

// Help sends the command list privately and confirms in the channel when
// the bot can talk there.
type Help struct{}

func (Help) Name() string        { return "help" }
func (Help) Module() string      { return command.ModuleInfo }
func (Help) Aliases() []string   { return []string{"commands"} }
func (Help) Description() string { return "Lists the available commands." }

func (Help) Execute(ctx context.Context, c *command.Context) error {
	prefix := c.Guild.EffectivePrefix(c.DefaultPrefix)
	if strings.HasPrefix(c.Prefix, "<@") {
		prefix = c.Prefix + " "
	}
	text := Listing(c.Registry, prefix, c.Guild.ModuleEnabled)
	if _, err := c.ReplyPrivate(ctx, text).Await(ctx); err != nil {
		if c.Message.Channel.CanTalk(ctx) {
			c.Reply(ctx, "I could not send you a private message. Do you accept messages from server members?")
		}
		return nil
	}
	if c.Message.Channel.CanTalk(ctx) {
		c.Reply(ctx, "📬 "+c.Message.Author.Mention()+", check your private messages.")
	}
	return nil
}

// Listing renders the commands of every enabled module.
func Listing(registry *command.Registry, prefix string, enabled func(module string) bool) string {
	var b strings.Builder
	b.WriteString("**Commands**\n")
	module := ""
	for _, cmd := range registry.Commands() {
		if !enabled(cmd.Module()) {
			continue
		}
		if cmd.Module() != module {
			module = cmd.Module()
			fmt.Fprintf(&b, "\n__%s__\n", module)
		}
		fmt.Fprintf(&b, "`%s%s`", prefix, cmd.Name())
		if d, ok := cmd.(command.Described); ok && d.Description() != "" {
			b.WriteString(" - " + d.Description())
		}
		b.WriteByte('\n')
	}
	return b.String()
}
