package bot_test

import (
	"context"
	"github.com/disgoorg/snowflake/v2"
	"github.com/fuad-daoud/discord-relay/audio"
	"github.com/fuad-daoud/discord-relay/bot"
	"github.com/fuad-daoud/discord-relay/bus"
	"github.com/fuad-daoud/discord-relay/command"
	"github.com/fuad-daoud/discord-relay/config"
	"github.com/fuad-daoud/discord-relay/entity"
	"github.com/fuad-daoud/discord-relay/metrics"
	"github.com/fuad-daoud/discord-relay/remote"
	"github.com/fuad-daoud/discord-relay/remote/remotetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var ctx = context.Background()

func testConfig() config.App {
	return config.App{
		Prefix:             ";;",
		HelpCommand:        "help",
		CacheTTL:           10 * time.Minute,
		RequestTimeout:     time.Second,
		PendingMaxAge:      time.Minute,
		JanitorSchedule:    "@every 1m",
		SummarySchedule:    "@every 1h",
		HelloDelay:         10 * time.Second,
		AutoBlacklist:      true,
		BlacklistThreshold: 10,
	}
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	bot     *bot.Bot
	gw      *remotetest.Gateway
	store   *config.MemoryStore
	clock   *clock
	metrics *metrics.Recorder
}

func newFixture(t *testing.T, opts ...bot.Option) *fixture {
	t.Helper()
	f := &fixture{
		gw:      remotetest.New(),
		store:   config.NewMemoryStore(),
		clock:   &clock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
		metrics: metrics.NewRecorder(),
	}
	opts = append([]bot.Option{
		bot.WithCommandExecutor(func(fn func()) { fn() }),
		bot.WithScheduler(func(_ time.Duration, fn func()) { fn() }),
		bot.WithClock(f.clock.Now),
		bot.WithMetrics(f.metrics),
	}, opts...)
	b, err := bot.New(testConfig(), f.gw, f.store, opts...)
	require.NoError(t, err)
	t.Cleanup(b.Client().Close)
	f.bot = b

	f.gw.Attach(b.Client())
	f.gw.ServeGuilds(remotetest.SampleGuild())
	f.gw.ServeApplicationInfo(remotetest.SampleApplication())
	f.gw.ServeMessages()
	f.gw.ServePermissions(remotetest.TalkBits)
	return f
}

func (f *fixture) message(author snowflake.ID, content string) bus.Envelope {
	return bus.NewEnvelope(bus.GuildMessageEvent{
		ID: 900, GuildID: remotetest.GuildID, ChannelID: remotetest.CommandsID, AuthorID: author, Content: content,
	})
}

func echo() command.Command {
	return command.Func{CommandName: "echo", ModuleName: command.ModuleUtil, Run: func(ctx context.Context, c *command.Context) error {
		_, err := c.Reply(ctx, strings.Join(c.Args, " ")).Await(ctx)
		return err
	}}
}

func TestGuildMessageFromWire(t *testing.T) {
	f := newFixture(t)
	env, err := bus.Unmarshal([]byte(`{"type":"GuildMessageEvent","payload":{"id":"900","guildId":"1","channel":10,"author":"6","content":";;ping"}}`))
	require.NoError(t, err)
	require.NoError(t, f.bot.Deliver(ctx, env))
	assert.Equal(t, []string{"Pong!"}, f.gw.Messages(remotetest.CommandsID))
}

func TestDeliverResolvesResponses(t *testing.T) {
	f := newFixture(t)
	f.gw.Respond(bus.TypeSendTypingRequest, func(bus.Envelope) (any, error) { return nil, remotetest.ErrNoReply })
	pending := f.bot.Client().SendTyping(ctx, remotetest.CommandsID)
	reqs := f.gw.Requests(bus.TypeSendTypingRequest)
	require.Len(t, reqs, 1)

	require.NoError(t, f.bot.Deliver(ctx, bus.Envelope{Type: "SendTypingRequestResponse", CorrelationID: "unknown"}))
	require.NoError(t, f.bot.Deliver(ctx, bus.Envelope{
		Type: "SendTypingRequestResponse", CorrelationID: reqs[0].CorrelationID, Payload: map[string]any{},
	}))
	_, err := pending.Wait(time.Second)
	assert.NoError(t, err)
	assert.Zero(t, f.bot.Client().InFlight())
}

func TestDeliverInvalidatesGuild(t *testing.T) {
	f := newFixture(t)
	guild := entity.NewGuild(f.bot.Client(), remotetest.GuildID)
	assert.Equal(t, "sample", guild.Name(ctx))
	assert.Equal(t, "sample", guild.Name(ctx))
	require.Equal(t, 1, f.gw.Count(bus.TypeGuildRequest))

	require.NoError(t, f.bot.Deliver(ctx, bus.NewEnvelope(bus.EntityInvalidation{GuildID: remotetest.GuildID})))
	assert.Equal(t, "sample", guild.Name(ctx))
	assert.Equal(t, 2, f.gw.Count(bus.TypeGuildRequest))
}

func TestReadyShardPrimesCache(t *testing.T) {
	f := newFixture(t)
	f.gw.Respond(bus.TypeGuildsRequest, func(bus.Envelope) (any, error) {
		return bus.GuildsResponse{Guilds: []bus.Guild{*remotetest.SampleGuild()}}, nil
	})
	ev := bus.ShardStatusChange{ShardID: 0, ShardTotal: 1, Status: bus.ShardReady}
	require.NoError(t, f.bot.Deliver(ctx, bus.NewEnvelope(ev)))

	assert.Eventually(t, func() bool { return f.bot.Client().Cache().Len() == 1 }, time.Second, 5*time.Millisecond)
	status, ok := f.bot.Dispatcher().Status().Status(0)
	require.True(t, ok)
	assert.Equal(t, bus.ShardReady, status)
	assert.Zero(t, f.gw.Count(bus.TypeGuildRequest), "guilds came from the shard stream")
}

func TestGuildJoinGreetsAndVoiceRelays(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.bot.Deliver(ctx, bus.NewEnvelope(bus.GuildJoinEvent{GuildID: remotetest.GuildID})))
	require.Len(t, f.gw.Messages(remotetest.GeneralID), 1)
	assert.Contains(t, f.gw.Messages(remotetest.GeneralID)[0], "`;;help`")

	require.NoError(t, f.bot.Deliver(ctx, bus.NewEnvelope(bus.VoiceJoinEvent{
		GuildID: remotetest.GuildID, ChannelID: remotetest.MusicID, MemberID: remotetest.SelfID,
	})))
	published := f.gw.Published(bus.QueueAudio)
	require.Len(t, published, 1)
	intent, err := bus.Decode[audio.Intent](published[0])
	require.NoError(t, err)
	assert.Equal(t, audio.Intent{Kind: audio.IntentQueueConnect, GuildID: remotetest.GuildID, ChannelID: remotetest.MusicID}, intent)

	s := f.bot.EventLogger().Flush(ctx)
	assert.Equal(t, 1, s.Joined)
}

func TestSubmitKeepsOrderAndStopDrains(t *testing.T) {
	f := newFixture(t, bot.WithCommands(echo()))
	require.NoError(t, f.bot.Start(ctx))
	for _, n := range []string{"1", "2", "3"} {
		require.NoError(t, f.bot.Submit(ctx, f.message(remotetest.BobID, ";;echo "+n)))
	}

	stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	require.NoError(t, f.bot.Stop(stopCtx))
	assert.Equal(t, []string{"1", "2", "3"}, f.gw.Messages(remotetest.CommandsID))

	err := f.bot.Submit(ctx, f.message(remotetest.BobID, ";;echo 4"))
	assert.ErrorIs(t, err, remote.ErrClientClosed)
}

func TestSubmitHungGuildDoesNotStallOthers(t *testing.T) {
	f := newFixture(t)
	const hung = snowflake.ID(77)
	f.gw.Respond(bus.TypeGuildRequest, func(env bus.Envelope) (any, error) {
		req, err := bus.Decode[bus.GuildRequest](env)
		if err != nil {
			return nil, err
		}
		if req.GuildID == hung {
			return nil, remotetest.ErrNoReply
		}
		return remotetest.SampleGuild(), nil
	})
	asked := func(id snowflake.ID) bool {
		for _, env := range f.gw.Requests(bus.TypeGuildRequest) {
			if req, err := bus.Decode[bus.GuildRequest](env); err == nil && req.GuildID == id {
				return true
			}
		}
		return false
	}
	require.NoError(t, f.bot.Start(ctx))

	require.NoError(t, f.bot.Submit(ctx, bus.NewEnvelope(bus.GuildMessageEvent{
		ID: 901, GuildID: hung, ChannelID: 770, AuthorID: remotetest.BobID, Content: ";;ping",
	})))
	require.Eventually(t, func() bool { return asked(hung) }, time.Second, 5*time.Millisecond)

	start := time.Now()
	require.NoError(t, f.bot.Submit(ctx, bus.NewEnvelope(bus.GuildLeaveEvent{GuildID: remotetest.GuildID})))
	require.Eventually(t, func() bool { return len(f.gw.Published(bus.QueueAudio)) == 1 }, 300*time.Millisecond, 5*time.Millisecond)
	assert.Less(t, time.Since(start), 300*time.Millisecond)

	stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	require.NoError(t, f.bot.Stop(stopCtx))
}

func TestSubmitHandlesResponsesInline(t *testing.T) {
	f := newFixture(t)
	f.gw.Respond(bus.TypeSendTypingRequest, func(bus.Envelope) (any, error) { return nil, remotetest.ErrNoReply })
	pending := f.bot.Client().SendTyping(ctx, remotetest.CommandsID)
	id := f.gw.Requests(bus.TypeSendTypingRequest)[0].CorrelationID

	// Start never ran; the response must not wait in a lane.
	require.NoError(t, f.bot.Submit(ctx, bus.Envelope{Type: "SendTypingRequestResponse", CorrelationID: id, Payload: map[string]any{}}))
	_, err := pending.Wait(time.Second)
	assert.NoError(t, err)
}

func TestSweep(t *testing.T) {
	f := newFixture(t)
	guild := entity.NewGuild(f.bot.Client(), remotetest.GuildID)
	require.True(t, guild.Exists(ctx))

	f.gw.Hold()
	pending := f.bot.Client().SendTyping(ctx, remotetest.CommandsID)
	f.clock.Advance(11 * time.Minute)

	r := f.bot.Sweep(ctx)
	assert.Equal(t, bot.SweepReport{Guilds: 1, Pending: 1}, r)
	_, err := pending.Wait(time.Second)
	assert.ErrorIs(t, err, remote.ErrRemoteTimeout)
	f.gw.Release()
}

func TestStartRejectsBadSchedule(t *testing.T) {
	cfg := testConfig()
	cfg.JanitorSchedule = "whenever"
	b, err := bot.New(cfg, remotetest.New(), config.NewMemoryStore())
	require.NoError(t, err)
	t.Cleanup(b.Client().Close)
	assert.Error(t, b.Start(ctx))
}

func TestNewRejectsDuplicateCommands(t *testing.T) {
	_, err := bot.New(testConfig(), remotetest.New(), config.NewMemoryStore(),
		bot.WithCommands(command.Func{CommandName: "ping", ModuleName: command.ModuleUtil}))
	assert.Error(t, err)
}
