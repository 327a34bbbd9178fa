// Package http serves the relay's health and status endpoints.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"github.com/fuad-daoud/discord-relay/bus"
	"github.com/fuad-daoud/discord-relay/dispatch"
	"github.com/fuad-daoud/discord-relay/logger/dlog"
	"github.com/fuad-daoud/discord-relay/remote"
	"log/slog"
	"net"
	"net/http"
	"time"
)

type Shard struct {
	ID        int       `json:"id"`
	Total     int       `json:"total"`
	Status    string    `json:"status"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type Cache struct {
	Guilds       int    `json:"guilds"`
	Hits         uint64 `json:"hits"`
	Misses       uint64 `json:"misses"`
	Loads        uint64 `json:"loads"`
	LoadFailures uint64 `json:"loadFailures"`
	Evictions    uint64 `json:"evictions"`
}

type Status struct {
	Ready    bool    `json:"ready"`
	Shards   []Shard `json:"shards"`
	Cache    Cache   `json:"cache"`
	InFlight int     `json:"inFlight"`
}

// Server reports shard and cache state. /status answers 503 until every
// known shard is READY.
type Server struct {
	status *dispatch.StatusTable
	client *remote.Client
	log    *slog.Logger
	server *http.Server
}

func NewServer(addr string, status *dispatch.StatusTable, client *remote.Client, logger *slog.Logger) *Server {
	if logger == nil {
		logger = dlog.Discard()
	}
	s := &Server{status: status, client: client, log: logger}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /", s.rootHandler)
	mux.HandleFunc("GET /status", s.statusHandler)
	s.server = &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	return s
}

func (s *Server) Handler() http.Handler { return s.server.Handler }

// Serve listens until ctx ends, then shuts the server down.
func (s *Server) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("status server: %w", err)
	}
	s.log.InfoContext(ctx, "Serving status", "addr", ln.Addr().String())
	stop := context.AfterFunc(ctx, func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	})
	defer stop()
	if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("status server: %w", err)
	}
	return nil
}

func (s *Server) Snapshot() Status {
	out := Status{InFlight: s.client.InFlight(), Shards: []Shard{}}
	ready := true
	for _, st := range s.status.Snapshot() {
		out.Shards = append(out.Shards, Shard{ID: st.ShardID, Total: st.Total, Status: string(st.Status), UpdatedAt: st.UpdatedAt})
		if st.Status != bus.ShardReady {
			ready = false
		}
	}
	out.Ready = ready && len(out.Shards) > 0

	stats := s.client.Cache().Stats()
	out.Cache = Cache{
		Guilds:       s.client.Cache().Len(),
		Hits:         stats.Hits,
		Misses:       stats.Misses,
		Loads:        stats.Loads,
		LoadFailures: stats.LoadFailures,
		Evictions:    stats.Evictions,
	}
	return out
}

func (s *Server) statusHandler(w http.ResponseWriter, r *http.Request) {
	s.logRequest(r)
	status := s.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	if !status.Ready {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	if err := json.NewEncoder(w).Encode(status); err != nil {
		s.log.WarnContext(r.Context(), "Writing status failed", "err", err)
	}
}

func (s *Server) rootHandler(w http.ResponseWriter, r *http.Request) {
	s.logRequest(r)
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	fmt.Fprintln(w, "discord-relay")
}

func (s *Server) logRequest(r *http.Request) {
	s.log.DebugContext(r.Context(), "Got request", "method", r.Method, "uri", r.RequestURI)
}
