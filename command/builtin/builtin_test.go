package builtin_test

import (
	"context"
	"github.com/disgoorg/snowflake/v2"
	"github.com/fuad-daoud/discord-relay/bus"
	"github.com/fuad-daoud/discord-relay/command"
	"github.com/fuad-daoud/discord-relay/command/builtin"
	"github.com/fuad-daoud/discord-relay/config"
	"github.com/fuad-daoud/discord-relay/dispatch"
	"github.com/fuad-daoud/discord-relay/entity"
	"github.com/fuad-daoud/discord-relay/perms"
	"github.com/fuad-daoud/discord-relay/ratelimit"
	"github.com/fuad-daoud/discord-relay/remote"
	"github.com/fuad-daoud/discord-relay/remote/remotetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"strings"
	"testing"
	"time"
	"unicode/utf8"
)

type bot struct {
	client  *remote.Client
	gw      *remotetest.Gateway
	store   *config.MemoryStore
	status  *dispatch.StatusTable
	router  *command.Router
	reports []command.Report
}

func newBot(t *testing.T, cmds ...command.Command) *bot {
	t.Helper()
	c, gw := remotetest.NewSample(remotetest.TalkBits)
	t.Cleanup(c.Close)
	b := &bot{client: c, gw: gw, store: config.NewMemoryStore(), status: dispatch.NewStatusTable(false)}

	registry := command.NewRegistry()
	if len(cmds) == 0 {
		cmds = builtin.All(b.store, b.status)
	}
	registry.MustRegister(cmds...)
	app := config.App{Prefix: ";;", HelpCommand: "help"}
	b.router = command.NewRouter(c, registry, b.store, perms.NewResolver(c, nil, nil), ratelimit.New(), app,
		command.WithExecutor(func(fn func()) { fn() }),
		command.WithCompletionHook(func(_ context.Context, r command.Report) { b.reports = append(b.reports, r) }),
	)
	return b
}

func (b *bot) say(author snowflake.ID, content string) command.Report {
	msg := entity.NewMessage(b.client, bus.GuildMessageEvent{
		ID: 500, GuildID: remotetest.GuildID, ChannelID: remotetest.CommandsID, AuthorID: author, Content: content,
	})
	b.router.HandleGuildMessage(context.Background(), msg)
	if len(b.reports) == 0 {
		return command.Report{}
	}
	return b.reports[len(b.reports)-1]
}

func (b *bot) replies() []string {
	return b.gw.Messages(remotetest.CommandsID)
}

func TestHelp(t *testing.T) {
	b := newBot(t)
	rep := b.say(remotetest.BobID, ";;help")
	require.Equal(t, command.OutcomeCompleted, rep.Outcome)

	dms := b.gw.PrivateMessages(remotetest.BobID)
	require.Len(t, dms, 1)
	assert.Contains(t, dms[0], "`;;ping` - Checks that the bot is responsive.")
	assert.Contains(t, dms[0], "__admin__")
	assert.Equal(t, []string{"📬 <@6>, check your private messages."}, b.replies())
}

func TestHelpUsesGuildPrefixAndModules(t *testing.T) {
	b := newBot(t)
	require.NoError(t, b.store.StoreGuild(context.Background(), config.Guild{
		GuildID: remotetest.GuildID,
		Prefix:  "!",
		Modules: map[string]bool{command.ModuleAdmin: false},
	}))
	b.say(remotetest.BobID, "!help")

	dms := b.gw.PrivateMessages(remotetest.BobID)
	require.Len(t, dms, 1)
	assert.Contains(t, dms[0], "`!ping`")
	assert.NotContains(t, dms[0], "shards")
}

func TestHelpReportsUndeliverablePrivateMessage(t *testing.T) {
	b := newBot(t)
	b.gw.Respond(bus.TypeSendPrivateMessageRequest, func(bus.Envelope) (any, error) {
		return nil, assert.AnError
	})
	rep := b.say(remotetest.BobID, ";;help")
	assert.Equal(t, command.OutcomeCompleted, rep.Outcome)
	require.Len(t, b.replies(), 1)
	assert.Contains(t, b.replies()[0], "could not send you a private message")
}

func TestPrefix(t *testing.T) {
	tests := []struct {
		name       string
		author     snowflake.ID
		content    string
		wantReply  string
		wantPrefix string
	}{
		{name: "show", author: remotetest.BobID, content: ";;prefix", wantReply: "My prefix here is `;;`."},
		{name: "change denied", author: remotetest.BobID, content: ";;prefix !", wantReply: "Only server admins can change the prefix."},
		{name: "change", author: remotetest.GuildOwnerID, content: ";;prefix !", wantReply: "Prefix set to `!`.", wantPrefix: "!"},
		{name: "too long", author: remotetest.GuildOwnerID, content: ";;prefix abcdefghijk", wantReply: "A prefix can be at most 10 characters."},
		{name: "reset", author: remotetest.GuildOwnerID, content: ";;prefix reset", wantReply: "Prefix set to `;;`."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newBot(t)
			b.say(tt.author, tt.content)
			assert.Equal(t, []string{tt.wantReply}, b.replies())
			g, err := b.store.FetchGuild(context.Background(), remotetest.GuildID)
			require.NoError(t, err)
			assert.Equal(t, tt.wantPrefix, g.Prefix)
		})
	}
}

func TestPingEditsWithRoundTrip(t *testing.T) {
	b := newBot(t)
	rep := b.say(remotetest.BobID, ";;pong")
	require.Equal(t, command.OutcomeCompleted, rep.Outcome)
	assert.Equal(t, []string{"Pong!"}, b.replies())

	edits := b.gw.Requests(bus.TypeEditMessageRequest)
	require.Len(t, edits, 1)
	req, err := bus.Decode[bus.EditMessageRequest](edits[0])
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(req.Message, "Pong! `"), req.Message)
}

func TestShards(t *testing.T) {
	b := newBot(t)
	b.say(remotetest.AppOwnerID, ";;shards")
	assert.Equal(t, []string{"No shard has reported yet."}, b.replies())

	now := time.Now()
	require.NoError(t, b.status.Record(bus.ShardStatusChange{ShardID: 1, ShardTotal: 2, Status: bus.ShardConnecting}, now))
	require.NoError(t, b.status.Record(bus.ShardStatusChange{ShardID: 0, ShardTotal: 2, Status: bus.ShardReady}, now))
	b.say(remotetest.AppOwnerID, ";;shards")
	require.Len(t, b.replies(), 2)
	report := b.replies()[1]
	assert.Contains(t, report, "shard 0/2  READY")
	assert.Contains(t, report, "shard 1/2  CONNECTING")
	assert.Less(t, strings.Index(report, "shard 0/2"), strings.Index(report, "shard 1/2"))

	rep := b.say(remotetest.BobID, ";;shards")
	assert.Equal(t, command.OutcomePermissionDenied, rep.Outcome)
}

func TestShardsInPrivate(t *testing.T) {
	b := newBot(t)
	msg := entity.NewPrivateMessage(b.client, bus.PrivateMessageEvent{AuthorID: remotetest.AppOwnerID, Content: "shards"})
	require.NoError(t, b.router.HandlePrivateMessage(context.Background(), msg))
	assert.Equal(t, []string{"No shard has reported yet."}, b.gw.PrivateMessages(remotetest.AppOwnerID))
}

func TestEval(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    []string
	}{
		{name: "arithmetic", content: ";;eval 1 + 2", want: []string{"```\n3\n```"}},
		{name: "bindings", content: ";;eval guild.name + '/' + author.id + '/' + level", want: []string{"```\nsample/7/BOT_OWNER\n```"}},
		{name: "code block", content: ";;eval ```js\nargs.length```", want: []string{"```\n2\n```"}},
		{name: "reply", content: ";;eval reply('hi')", want: []string{"hi", "```\nundefined\n```"}},
		{name: "empty", content: ";;eval", want: []string{"Nothing to evaluate."}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newBot(t)
			rep := b.say(remotetest.AppOwnerID, tt.content)
			assert.Equal(t, command.OutcomeCompleted, rep.Outcome)
			assert.Equal(t, tt.want, b.replies())
		})
	}
}

func TestEvalReportsScriptErrors(t *testing.T) {
	b := newBot(t)
	rep := b.say(remotetest.AppOwnerID, ";;eval nope()")
	assert.Equal(t, command.OutcomeCompleted, rep.Outcome)
	require.Len(t, b.replies(), 1)
	assert.True(t, strings.HasPrefix(b.replies()[0], "```\nError: ReferenceError: nope is not defined"), b.replies()[0])
}

func TestEvalIsOwnerOnly(t *testing.T) {
	b := newBot(t)
	rep := b.say(remotetest.GuildOwnerID, ";;eval 1")
	assert.Equal(t, command.OutcomePermissionDenied, rep.Outcome)
	assert.Equal(t, []string{"You need BOT_OWNER permission to use `eval`."}, b.replies())
}

func TestEvalInterruptsLongScripts(t *testing.T) {
	b := newBot(t, builtin.NewEval(20*time.Millisecond))
	rep := b.say(remotetest.AppOwnerID, ";;eval for (;;) {}")
	assert.Equal(t, command.OutcomeCompleted, rep.Outcome)
	assert.Equal(t, []string{"```\nError: evaluation timed out\n```"}, b.replies())
}

func TestEvalTruncatesOnRuneBoundary(t *testing.T) {
	b := newBot(t)
	// 1900 is not a multiple of the 3-byte rune, so a byte cut would split one.
	b.say(remotetest.AppOwnerID, ";;eval '€'.repeat(1000)")
	require.Len(t, b.replies(), 1)
	reply := b.replies()[0]
	assert.True(t, utf8.ValidString(reply))
	assert.True(t, strings.HasSuffix(reply, "€…\n```"), reply[len(reply)-20:])
	assert.LessOrEqual(t, len(reply), len("```\n")+1900+len("…\n```"))
}
