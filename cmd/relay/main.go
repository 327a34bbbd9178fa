package main

import (
	"context"
	"errors"
	"github.com/fuad-daoud/discord-relay/bot"
	"github.com/fuad-daoud/discord-relay/config"
	relayhttp "github.com/fuad-daoud/discord-relay/http"
	"github.com/fuad-daoud/discord-relay/layers/db"
	"github.com/fuad-daoud/discord-relay/logger/dlog"
	"github.com/fuad-daoud/discord-relay/metrics"
	"github.com/fuad-daoud/discord-relay/transport/ws"
	"go.opentelemetry.io/otel"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

const shutdownTimeout = 30 * time.Second

func main() {
	if err := run(); err != nil {
		slog.Error("Relay stopped", "err", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	archiver, err := newArchiver(cfg.Log.Dir, cfg.Archive)
	if err != nil {
		return err
	}
	logger, err := dlog.New(dlog.Options{Level: cfg.Log.Level, Dir: cfg.Log.Dir, Color: cfg.Log.Color, Archiver: archiver})
	if err != nil {
		return err
	}
	defer logger.Close()
	if archiver != nil {
		if err := archiver.Schedule(cfg.Archive.Schedule); err != nil {
			return err
		}
		defer archiver.Stop()
	}
	log := logger.Logger

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := openStore(ctx, cfg.Neo4j, log)
	if err != nil {
		return err
	}
	defer closeStore()

	header := http.Header{}
	if cfg.GatewayToken != "" {
		header.Set("Authorization", "Bearer "+cfg.GatewayToken)
	}
	conn, err := ws.Dial(ctx, cfg.GatewayURL, header, log)
	if err != nil {
		return err
	}
	defer conn.Close()

	sink := metrics.NewOtelSink(otel.GetMeterProvider().Meter("discord-relay"))
	b, err := bot.New(cfg, conn, store, bot.WithLogger(log), bot.WithMetrics(sink))
	if err != nil {
		return err
	}
	if err := b.Start(ctx); err != nil {
		return err
	}
	if cfg.StatusAddr != "" {
		status := relayhttp.NewServer(cfg.StatusAddr, b.Dispatcher().Status(), b.Client(), log)
		go func() {
			if err := status.Serve(ctx); err != nil {
				log.Error("Status server stopped", "err", err)
			}
		}()
	}
	log.Info("Relay is running", "gateway", cfg.GatewayURL, "prefix", cfg.Prefix)

	listenErr := conn.Listen(ctx, b.Submit)
	if errors.Is(listenErr, context.Canceled) {
		listenErr = nil
	}
	log.Info("Shutting down")

	stopCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stop()
	return errors.Join(listenErr, b.Stop(stopCtx))
}

func newArchiver(dir string, cfg config.Archive) (*dlog.Archiver, error) {
	if dir == "" || cfg.Schedule == "" {
		return nil, nil
	}
	var uploader dlog.Uploader
	if cfg.Bucket != "" {
		spaces, err := dlog.NewSpacesUploader(dlog.SpacesConfig{
			Endpoint: cfg.Endpoint,
			Region:   cfg.Region,
			Bucket:   cfg.Bucket,
			Key:      cfg.Key,
			Secret:   cfg.Secret,
			Prefix:   cfg.Prefix,
		})
		if err != nil {
			return nil, err
		}
		uploader = spaces
	}
	return dlog.NewArchiver(dir, uploader), nil
}

// openStore keeps guild settings in Neo4j when it is configured and in
// memory otherwise.
func openStore(ctx context.Context, cfg config.Neo4j, log *slog.Logger) (config.Store, func(), error) {
	if cfg.URI == "" {
		log.Warn("NEO4J_URI is not set, guild settings will not survive a restart")
		return config.NewMemoryStore(), func() {}, nil
	}
	conn, err := db.Connect(ctx, cfg, log)
	if err != nil {
		return nil, nil, err
	}
	closeConn := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := conn.Close(ctx); err != nil {
			log.Error("Closing Neo4j failed", "err", err)
		}
	}
	return db.NewGuildStore(conn), closeConn, nil
}
