package builtin

import (
	"context"
	"errors"
	"fmt"
	"github.com/dop251/goja"
	"github.com/fuad-daoud/discord-relay/command"
	"github.com/fuad-daoud/discord-relay/perms"
	"strings"
	"time"
	"unicode/utf8"
)

const maxEvalOutput = 1900

// Eval runs JavaScript for the bot owner. Scripts see a read-only view of
// the invocation and a reply function; they have no other access.
type Eval struct {
	timeout time.Duration
}

func NewEval(timeout time.Duration) Eval {
	return Eval{timeout: timeout}
}

func (Eval) Name() string              { return "eval" }
func (Eval) Module() string            { return command.ModuleAdmin }
func (Eval) MinimumLevel() perms.Level { return perms.BotOwner }
func (Eval) Description() string       { return "Evaluates JavaScript." }

func (e Eval) Execute(ctx context.Context, c *command.Context) error {
	source := strings.Join(c.Args, " ")
	source = strings.TrimSpace(strings.Trim(strings.TrimPrefix(strings.TrimSpace(source), "```js"), "`"))
	if source == "" {
		_, err := c.Reply(ctx, "Nothing to evaluate.").Await(ctx)
		return err
	}
	out, err := e.Run(ctx, c, source)
	if err != nil {
		out = "Error: " + err.Error()
	}
	out = truncate(out, maxEvalOutput)
	_, err = c.Reply(ctx, "```\n"+out+"\n```").Await(ctx)
	return err
}

// Run evaluates source and returns its result as text.
func (e Eval) Run(ctx context.Context, c *command.Context, source string) (string, error) {
	vm := goja.New()
	vm.SetFieldNameMapper(goja.UncapFieldNameMapper())

	var replies []string
	bindings := map[string]any{
		"guild":   map[string]any{"id": c.Message.Guild.ID().String(), "name": c.Message.Guild.Name(ctx)},
		"channel": map[string]any{"id": c.Message.Channel.ID().String(), "name": c.Message.Channel.Name(ctx)},
		"author":  map[string]any{"id": c.Message.Author.ID().String(), "name": c.Message.Author.EffectiveName(ctx)},
		"args":    c.Args,
		"level":   c.Level(ctx).String(),
		"reply": func(text string) {
			replies = append(replies, text)
		},
	}
	for name, v := range bindings {
		if err := vm.Set(name, v); err != nil {
			return "", err
		}
	}

	timer := time.AfterFunc(e.timeout, func() { vm.Interrupt("timed out") })
	defer timer.Stop()
	stop := context.AfterFunc(ctx, func() { vm.Interrupt("canceled") })
	defer stop()

	v, err := vm.RunString(source)
	if err != nil {
		var interrupted *goja.InterruptedError
		if errors.As(err, &interrupted) {
			return "", fmt.Errorf("evaluation %v", interrupted.Value())
		}
		return "", err
	}
	for _, text := range replies {
		c.Reply(ctx, text)
	}
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return "undefined", nil
	}
	return v.String(), nil
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "…"
}
