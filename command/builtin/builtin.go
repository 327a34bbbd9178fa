// Package builtin holds the commands every deployment ships with.
package builtin

import (
	"github.com/fuad-daoud/discord-relay/command"
	"github.com/fuad-daoud/discord-relay/config"
	"github.com/fuad-daoud/discord-relay/dispatch"
	"time"
)

// All returns help, prefix, ping, shards and eval.
func All(store config.Store, status *dispatch.StatusTable) []command.Command {
	return []command.Command{
		Help{},
		NewPrefix(store),
		Ping{},
		NewShards(status),
		NewEval(5 * time.Second),
	}
}
