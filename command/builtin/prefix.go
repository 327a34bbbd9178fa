package builtin

import (
	"context"
	"fmt"
	"github.com/fuad-daoud/discord-relay/command"
	"github.com/fuad-daoud/discord-relay/config"
	"github.com/fuad-daoud/discord-relay/perms"
	"strings"
	"unicode/utf8"
)

const maxPrefixLength = 10

// Prefix shows the guild prefix. Admins can change or reset it.
type Prefix struct {
	store config.Store
}

func NewPrefix(store config.Store) Prefix {
	return Prefix{store: store}
}

func (Prefix) Name() string        { return "prefix" }
func (Prefix) Module() string      { return command.ModuleConfig }
func (Prefix) Description() string { return "Shows or changes the command prefix." }

func (p Prefix) Execute(ctx context.Context, c *command.Context) error {
	current := c.Guild.Prefix
	if current == "" {
		current = c.DefaultPrefix
	}
	if len(c.Args) == 0 {
		_, err := c.Reply(ctx, fmt.Sprintf("My prefix here is `%s`.", current)).Await(ctx)
		return err
	}
	if !c.Level(ctx).AtLeast(perms.Admin) {
		_, err := c.Reply(ctx, "Only server admins can change the prefix.").Await(ctx)
		return err
	}

	g := c.Guild
	switch next := c.Args[0]; {
	case strings.EqualFold(next, "reset") || strings.EqualFold(next, "default"):
		g.Prefix = ""
	case utf8.RuneCountInString(next) > maxPrefixLength:
		_, err := c.Reply(ctx, fmt.Sprintf("A prefix can be at most %d characters.", maxPrefixLength)).Await(ctx)
		return err
	default:
		g.Prefix = next
	}
	if err := p.store.StoreGuild(ctx, g); err != nil {
		return fmt.Errorf("store prefix: %w", err)
	}
	shown := g.Prefix
	if shown == "" {
		shown = c.DefaultPrefix
	}
	_, err := c.Reply(ctx, fmt.Sprintf("Prefix set to `%s`.", shown)).Await(ctx)
	return err
}
