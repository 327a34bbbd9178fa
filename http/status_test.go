package http_test

import (
	"context"
	"encoding/json"
	"github.com/fuad-daoud/discord-relay/bus"
	"github.com/fuad-daoud/discord-relay/dispatch"
	"github.com/fuad-daoud/discord-relay/entity"
	relayhttp "github.com/fuad-daoud/discord-relay/http"
	"github.com/fuad-daoud/discord-relay/remote/remotetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestStatus(t *testing.T) {
	c, _ := remotetest.NewSample(remotetest.TalkBits)
	t.Cleanup(c.Close)
	table := dispatch.NewStatusTable(false)
	s := relayhttp.NewServer(":0", table, c, nil)
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		record    []bus.ShardStatusChange
		wantCode  int
		wantReady bool
	}{
		{name: "no shard yet", wantCode: http.StatusServiceUnavailable},
		{
			name:     "one shard loading",
			record:   []bus.ShardStatusChange{{ShardID: 0, ShardTotal: 2, Status: bus.ShardReady}, {ShardID: 1, ShardTotal: 2, Status: bus.ShardLoading}},
			wantCode: http.StatusServiceUnavailable,
		},
		{
			name:      "all ready",
			record:    []bus.ShardStatusChange{{ShardID: 1, ShardTotal: 2, Status: bus.ShardReady}},
			wantCode:  http.StatusOK,
			wantReady: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, ev := range tt.record {
				require.NoError(t, table.Record(ev, at))
			}
			rec := get(t, s.Handler(), "/status")
			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

			var status relayhttp.Status
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&status))
			assert.Equal(t, tt.wantReady, status.Ready)
			assert.Len(t, status.Shards, len(table.Snapshot()))
		})
	}
}

func TestStatusReportsCache(t *testing.T) {
	c, _ := remotetest.NewSample(remotetest.TalkBits)
	t.Cleanup(c.Close)
	s := relayhttp.NewServer(":0", dispatch.NewStatusTable(false), c, nil)

	guild := entity.NewGuild(c, remotetest.GuildID)
	guild.Name(context.Background())
	guild.Name(context.Background())

	status := s.Snapshot()
	assert.Equal(t, 1, status.Cache.Guilds)
	assert.Equal(t, uint64(1), status.Cache.Loads)
	assert.Equal(t, uint64(1), status.Cache.Hits)
	assert.Zero(t, status.InFlight)
}

func TestRoot(t *testing.T) {
	c, _ := remotetest.NewSample(remotetest.TalkBits)
	t.Cleanup(c.Close)
	s := relayhttp.NewServer(":0", dispatch.NewStatusTable(false), c, nil)

	rec := get(t, s.Handler(), "/")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "discord-relay\n", rec.Body.String())
	assert.Equal(t, http.StatusNotFound, get(t, s.Handler(), "/nope").Code)
}

func TestServeStopsWithContext(t *testing.T) {
	c, _ := remotetest.NewSample(remotetest.TalkBits)
	t.Cleanup(c.Close)
	s := relayhttp.NewServer("127.0.0.1:0", dispatch.NewStatusTable(false), c, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx) }()
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return")
	}
}
