package dispatch_test

import (
	"bytes"
	"context"
	"errors"
	"github.com/fuad-daoud/discord-relay/bus"
	"github.com/fuad-daoud/discord-relay/dispatch"
	"github.com/fuad-daoud/discord-relay/entity"
	"github.com/fuad-daoud/discord-relay/logger/dlog"
	"github.com/fuad-daoud/discord-relay/metrics"
	"github.com/fuad-daoud/discord-relay/remote"
	"github.com/fuad-daoud/discord-relay/remote/remotetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"log/slog"
	"sync"
	"testing"
	"time"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type journal struct {
	mu      sync.Mutex
	entries []string
}

func (j *journal) add(s string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, s)
}

func (j *journal) all() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]string(nil), j.entries...)
}

type recording struct {
	dispatch.NopHandler
	name  string
	log   *journal
	err   error
	panic bool
	ctxs  []context.Context
}

func (r *recording) record(event string) error {
	r.log.add(r.name + ":" + event)
	if r.panic {
		panic("boom")
	}
	return r.err
}

func (r *recording) OnGuildJoin(_ context.Context, g entity.Guild) error {
	return r.record("join " + g.ID().String())
}

func (r *recording) OnShardStatusChange(_ context.Context, ev bus.ShardStatusChange) error {
	return r.record("status " + string(ev.Status))
}

func (r *recording) OnVoiceMove(_ context.Context, from, to entity.VoiceChannel, m entity.Member) error {
	return r.record("move " + from.ID().String() + ">" + to.ID().String() + " " + m.ID().String())
}

func (r *recording) OnGuildMessage(ctx context.Context, msg entity.Message) error {
	r.ctxs = append(r.ctxs, ctx)
	return r.record("message " + msg.Content)
}

func newClient(t *testing.T) *remote.Client {
	t.Helper()
	c, _ := remotetest.NewSample(remotetest.TalkBits)
	t.Cleanup(c.Close)
	return c
}

func TestHandlersRunInOrderEvenWhenOneFails(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		failFast bool
		want     []string
		wantErr  bool
	}{
		{name: "fail open", want: []string{"a:join 1", "b:join 1", "c:join 1"}},
		{name: "fail fast", failFast: true, want: []string{"a:join 1", "b:join 1"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			j := &journal{}
			rec := metrics.NewRecorder()
			d := dispatch.New(newClient(t),
				dispatch.WithHandlers(
					&recording{name: "a", log: j},
					&recording{name: "b", log: j, err: errors.New("broken")},
					&recording{name: "c", log: j},
				),
				dispatch.WithFailFast(tt.failFast),
				dispatch.WithMetrics(rec),
			)
			err := d.Dispatch(context.Background(), bus.NewEnvelope(bus.GuildJoinEvent{GuildID: 1}))
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.want, j.all())
			assert.EqualValues(t, 1, rec.Counter("dispatch.handler.failures", bus.TypeGuildJoin))
		})
	}
}

func TestPanickingHandlerIsContained(t *testing.T) {
	t.Parallel()
	j := &journal{}
	d := dispatch.New(newClient(t), dispatch.WithHandlers(
		&recording{name: "a", log: j, panic: true},
		&recording{name: "b", log: j},
	))
	require.NoError(t, d.Dispatch(context.Background(), bus.NewEnvelope(bus.GuildJoinEvent{GuildID: 1})))
	assert.Equal(t, []string{"a:join 1", "b:join 1"}, j.all())

	failFast := dispatch.New(newClient(t), dispatch.WithFailFast(true), dispatch.WithHandlers(&recording{name: "a", log: j, panic: true}))
	err := failFast.Dispatch(context.Background(), bus.NewEnvelope(bus.GuildJoinEvent{GuildID: 1}))
	assert.ErrorIs(t, err, dispatch.ErrHandlerPanic)
}

func TestDecodeFromWire(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		raw     string
		want    bus.Typed
		wantErr error
	}{
		{
			name: "voice move with string ids",
			raw:  `{"type":"VoiceMoveEvent","payload":{"guildId":"1","oldChannel":"20","newChannel":"21","member":"5"}}`,
			want: bus.VoiceMoveEvent{GuildID: 1, OldChannelID: 20, NewChannelID: 21, MemberID: 5},
		},
		{
			name: "guild message with numeric ids",
			raw:  `{"type":"GuildMessageEvent","payload":{"id":500,"guildId":1,"channel":10,"author":5,"content":";;help"}}`,
			want: bus.GuildMessageEvent{ID: 500, GuildID: 1, ChannelID: 10, AuthorID: 5, Content: ";;help"},
		},
		{
			name:    "unknown type",
			raw:     `{"type":"ReactionAddEvent","payload":{}}`,
			wantErr: dispatch.ErrUnrecognizedEvent,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, err := bus.Unmarshal([]byte(tt.raw))
			require.NoError(t, err)
			got, err := dispatch.Decode(env)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestUnrecognizedAndMalformedAreDropped(t *testing.T) {
	t.Parallel()
	j := &journal{}
	rec := metrics.NewRecorder()
	d := dispatch.New(newClient(t), dispatch.WithHandlers(&recording{name: "a", log: j}), dispatch.WithMetrics(rec), dispatch.WithFailFast(true))

	assert.NoError(t, d.Dispatch(context.Background(), bus.Envelope{Type: "ReactionAddEvent"}))
	assert.NoError(t, d.Dispatch(context.Background(), bus.Envelope{Type: bus.TypeGuildJoin, Payload: "not an object"}))
	assert.Empty(t, j.all())
	assert.EqualValues(t, 1, rec.Counter("dispatch.dropped", "ReactionAddEvent"))
	assert.EqualValues(t, 1, rec.Counter("dispatch.dropped", bus.TypeGuildJoin))
}

func TestVoiceMoveBuildsHandles(t *testing.T) {
	t.Parallel()
	j := &journal{}
	d := dispatch.New(newClient(t), dispatch.WithHandlers(&recording{name: "a", log: j}))
	ev := bus.VoiceMoveEvent{GuildID: 1, OldChannelID: 20, NewChannelID: 21, MemberID: 5}
	require.NoError(t, d.Dispatch(context.Background(), bus.NewEnvelope(ev)))
	assert.Equal(t, []string{"a:move 20>21 5"}, j.all())
}

func TestMessageDiagnosticContext(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	logger := slog.New(dlog.ContextHandler{Handler: slog.NewTextHandler(&buf, nil)})

	h := &recording{name: "a", log: &journal{}}
	logging := &loggingHandler{log: logger}
	d := dispatch.New(newClient(t), dispatch.WithHandlers(h, logging, failing{}), dispatch.WithLogger(logger))

	ctx := context.Background()
	ev := bus.GuildMessageEvent{ID: 500, GuildID: 1, ChannelID: 10, AuthorID: 5, Content: "hello"}
	require.NoError(t, d.Dispatch(ctx, bus.NewEnvelope(ev)))

	require.Len(t, h.ctxs, 1)
	attrs := dlog.Attrs(h.ctxs[0])
	require.Len(t, attrs, 3)
	assert.Equal(t, "guild", attrs[0].Key)
	assert.Equal(t, "channel", attrs[1].Key)
	assert.Equal(t, "invoker", attrs[2].Key)
	assert.Empty(t, dlog.Attrs(ctx), "scope does not leak into the caller")

	assert.Contains(t, buf.String(), `msg="handling message" guild=1 channel=10 invoker=5`)
	assert.Contains(t, buf.String(), `msg="Handler failed"`)
	assert.Contains(t, buf.String(), "invoker=5", "failure log carries the scope too")
}

type loggingHandler struct {
	dispatch.NopHandler
	log *slog.Logger
}

func (l *loggingHandler) OnGuildMessage(ctx context.Context, _ entity.Message) error {
	l.log.InfoContext(ctx, "handling message")
	return nil
}

type failing struct {
	dispatch.NopHandler
}

func (failing) OnGuildMessage(context.Context, entity.Message) error {
	return errors.New("broken")
}

func TestShardStatusTable(t *testing.T) {
	t.Parallel()
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time { return at }
	ready := bus.NewEnvelope(bus.ShardStatusChange{ShardID: 0, ShardTotal: 2, Status: bus.ShardReady})

	t.Run("permissive records repeats", func(t *testing.T) {
		j := &journal{}
		d := dispatch.New(newClient(t), dispatch.WithClock(clock), dispatch.WithHandlers(&recording{name: "a", log: j}))
		require.NoError(t, d.Dispatch(context.Background(), ready))
		require.NoError(t, d.Dispatch(context.Background(), ready))
		assert.Equal(t, []string{"a:status READY", "a:status READY"}, j.all())
		status, ok := d.Status().Status(0)
		require.True(t, ok)
		assert.Equal(t, bus.ShardReady, status)
	})

	t.Run("strict rejects ready to ready", func(t *testing.T) {
		j := &journal{}
		d := dispatch.New(newClient(t), dispatch.WithStrictShardTransitions(true), dispatch.WithHandlers(&recording{name: "a", log: j}))
		require.NoError(t, d.Dispatch(context.Background(), ready))
		require.NoError(t, d.Dispatch(context.Background(), ready))
		assert.Equal(t, []string{"a:status READY"}, j.all())
	})

	t.Run("strict rejects leaving shutdown", func(t *testing.T) {
		table := dispatch.NewStatusTable(true)
		require.NoError(t, table.Record(bus.ShardStatusChange{ShardID: 1, Status: bus.ShardShutdown}, at))
		err := table.Record(bus.ShardStatusChange{ShardID: 1, Status: bus.ShardConnecting}, at)
		assert.ErrorIs(t, err, dispatch.ErrIllegalTransition)
		status, _ := table.Status(1)
		assert.Equal(t, bus.ShardShutdown, status)
	})

	t.Run("snapshot is ordered", func(t *testing.T) {
		table := dispatch.NewStatusTable(false)
		for _, id := range []int{3, 0, 2} {
			require.NoError(t, table.Record(bus.ShardStatusChange{ShardID: id, ShardTotal: 4, Status: bus.ShardLoading}, at))
		}
		snap := table.Snapshot()
		require.Len(t, snap, 3)
		assert.Equal(t, []int{0, 2, 3}, []int{snap[0].ShardID, snap[1].ShardID, snap[2].ShardID})
		assert.Equal(t, at, snap[0].UpdatedAt)
	})
}
