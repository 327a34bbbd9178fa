// Package db persists guild configuration in Neo4j.
package db

import (
	"context"
	"fmt"
	"github.com/fuad-daoud/discord-relay/config"
	"github.com/fuad-daoud/discord-relay/logger/dlog"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"log/slog"
	"strings"
)

type Write func(stmts ...string) error
type TransactionExecute func(write Write) error

// Session is what the stores need from a database connection.
type Session interface {
	Query(ctx context.Context, stmts ...string) (*neo4j.EagerResult, error)
	Transaction(ctx context.Context, execute TransactionExecute) error
}

type Connection struct {
	driver   neo4j.DriverWithContext
	database string
	log      *slog.Logger
}

// Connect opens a driver and verifies the server is reachable.
func Connect(ctx context.Context, cfg config.Neo4j, logger *slog.Logger) (*Connection, error) {
	if logger == nil {
		logger = dlog.Discard()
	}
	driver, err := neo4j.NewDriverWithContext(cfg.URI, neo4j.BasicAuth(cfg.User, cfg.Password, ""))
	if err != nil {
		return nil, fmt.Errorf("neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("neo4j connectivity: %w", err)
	}
	database := cfg.Database
	if database == "" {
		database = "neo4j"
	}
	logger.Info("Connection established.", "uri", cfg.URI, "database", database)
	return &Connection{driver: driver, database: database, log: logger}, nil
}

func (conn *Connection) Transaction(ctx context.Context, execute TransactionExecute) error {
	session := conn.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite, DatabaseName: conn.database})
	defer func() { _ = session.Close(ctx) }()
	transaction, err := session.BeginTransaction(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if err := execute(conn.txWrite(ctx, transaction)); err != nil {
		if rerr := transaction.Rollback(ctx); rerr != nil {
			conn.log.ErrorContext(ctx, "Rollback failed", "err", rerr)
		}
		return err
	}
	if err := transaction.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (conn *Connection) txWrite(ctx context.Context, transaction neo4j.ExplicitTransaction) Write {
	return func(stmts ...string) error {
		stmt := strings.Join(stmts, " ")
		conn.log.DebugContext(ctx, "Writing", "stmt", stmt)
		if _, err := transaction.Run(ctx, stmt, map[string]any{}); err != nil {
			return fmt.Errorf("run %q: %w", stmt, err)
		}
		return nil
	}
}

func (conn *Connection) Query(ctx context.Context, stmts ...string) (*neo4j.EagerResult, error) {
	stmt := strings.Join(stmts, " ")
	conn.log.DebugContext(ctx, "Querying", "stmt", stmt)
	result, err := neo4j.ExecuteQuery(ctx, conn.driver, stmt, map[string]any{}, neo4j.EagerResultTransformer,
		neo4j.ExecuteQueryWithDatabase(conn.database))
	if err != nil {
		return nil, fmt.Errorf("query %q: %w", stmt, err)
	}
	return result, nil
}

func (conn *Connection) Close(ctx context.Context) error {
	conn.log.Info("Closing Neo4j connection")
	return conn.driver.Close(ctx)
}
