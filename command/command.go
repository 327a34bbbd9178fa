// Package command parses guild messages into commands and runs them after
// permission, module and rate limit checks.
package command

import (
	"context"
	"errors"
	"github.com/fuad-daoud/discord-relay/bus"
	"github.com/fuad-daoud/discord-relay/config"
	"github.com/fuad-daoud/discord-relay/entity"
	"github.com/fuad-daoud/discord-relay/perms"
	"github.com/fuad-daoud/discord-relay/remote"
	"sync"
)

var (
	ErrPermissionDenied = errors.New("permission denied")
	ErrRateLimited      = errors.New("rate limited")
)

// Modules a command can belong to. Each can be switched off per guild.
const (
	ModuleAdmin      = "admin"
	ModuleInfo       = "info"
	ModuleConfig     = "config"
	ModuleMusic      = "music"
	ModuleModeration = "moderation"
	ModuleUtil       = "util"
	ModuleFun        = "fun"
)

var Modules = []string{ModuleAdmin, ModuleInfo, ModuleConfig, ModuleMusic, ModuleModeration, ModuleUtil, ModuleFun}

type Command interface {
	Name() string
	Module() string
	Execute(ctx context.Context, c *Context) error
}

// Aliased commands answer to extra names.
type Aliased interface {
	Aliases() []string
}

// Restricted commands refuse members below MinimumLevel.
type Restricted interface {
	MinimumLevel() perms.Level
}

type Described interface {
	Description() string
}

// Private commands can also be run from a private message.
type Private interface {
	ExecutePrivate(ctx context.Context, msg entity.PrivateMessage, args []string) error
}

func minimumLevel(cmd Command) perms.Level {
	if r, ok := cmd.(Restricted); ok {
		return r.MinimumLevel()
	}
	return perms.Base
}

// Context is one invocation of a command.
type Context struct {
	Message  entity.Message
	Command  Command
	Trigger  string
	Args     []string
	Prefix   string
	Guild    config.Guild
	Registry *Registry

	// DefaultPrefix is the process-wide prefix, used when the guild has none.
	DefaultPrefix string

	levelOnce sync.Once
	level     perms.Level
	resolve   func(context.Context) perms.Level
}

// Level is the invoker's permission level, resolved on first use.
func (c *Context) Level(ctx context.Context) perms.Level {
	c.levelOnce.Do(func() {
		if c.resolve != nil {
			c.level = c.resolve(ctx)
		}
	})
	return c.level
}

func (c *Context) Reply(ctx context.Context, message string) *remote.Pending[bus.SendMessageResponse] {
	return c.Message.Channel.Send(ctx, message)
}

func (c *Context) ReplyPrivate(ctx context.Context, message string) *remote.Pending[bus.Ack] {
	return c.Message.Author.User().SendPrivate(ctx, message)
}

// Func adapts a function into a Command.
type Func struct {
	CommandName string
	ModuleName  string
	Level       perms.Level
	Help        string
	Run         func(ctx context.Context, c *Context) error
}

func (f Func) Name() string                                  { return f.CommandName }
func (f Func) Module() string                                { return f.ModuleName }
func (f Func) MinimumLevel() perms.Level                     { return f.Level }
func (f Func) Description() string                           { return f.Help }
func (f Func) Execute(ctx context.Context, c *Context) error { return f.Run(ctx, c) }
