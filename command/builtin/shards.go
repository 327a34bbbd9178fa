package builtin

import (
	"context"
	"fmt"
	"github.com/fuad-daoud/discord-relay/command"
	"github.com/fuad-daoud/discord-relay/dispatch"
	"github.com/fuad-daoud/discord-relay/entity"
	"github.com/fuad-daoud/discord-relay/perms"
	"strings"
	"time"
)

// Shards reports the last known status of every shard. It also answers in
// private messages.
type Shards struct {
	status *dispatch.StatusTable
	now    func() time.Time
}

func NewShards(status *dispatch.StatusTable) Shards {
	return Shards{status: status, now: time.Now}
}

func (Shards) Name() string              { return "shards" }
func (Shards) Module() string            { return command.ModuleAdmin }
func (Shards) MinimumLevel() perms.Level { return perms.BotAdmin }
func (Shards) Description() string       { return "Shows the status of every shard." }

func (s Shards) Execute(ctx context.Context, c *command.Context) error {
	_, err := c.Reply(ctx, s.report()).Await(ctx)
	return err
}

func (s Shards) ExecutePrivate(ctx context.Context, msg entity.PrivateMessage, _ []string) error {
	_, err := msg.Author.SendPrivate(ctx, s.report()).Await(ctx)
	return err
}

func (s Shards) report() string {
	states := s.status.Snapshot()
	if len(states) == 0 {
		return "No shard has reported yet."
	}
	var b strings.Builder
	b.WriteString("```\n")
	for _, st := range states {
		age := s.now().Sub(st.UpdatedAt).Round(time.Second)
		fmt.Fprintf(&b, "shard %d/%d  %-12s %s ago\n", st.ShardID, st.Total, st.Status, age)
	}
	b.WriteString("```")
	return b.String()
}
