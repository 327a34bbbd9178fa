// Package config holds process configuration read from the environment and
// the per-guild settings model.
package config

import (
	"fmt"
	"github.com/caarlos0/env/v11"
	"github.com/disgoorg/snowflake/v2"
	"log/slog"
	"reflect"
	"time"
)

type App struct {
	Prefix      string         `env:"BOT_PREFIX" envDefault:";;"`
	HelpCommand string         `env:"BOT_HELP_COMMAND" envDefault:"help"`
	AdminIDs    []snowflake.ID `env:"BOT_ADMIN_IDS" envSeparator:","`

	GatewayURL   string `env:"BOT_GATEWAY_URL" envDefault:"ws://localhost:8080/bus"`
	GatewayToken string `env:"BOT_GATEWAY_TOKEN"`
	// StatusAddr serves /status when set.
	StatusAddr   string `env:"BOT_STATUS_ADDR"`

	CacheTTL       time.Duration `env:"BOT_CACHE_TTL" envDefault:"10m"`
	RequestTimeout time.Duration `env:"BOT_REQUEST_TIMEOUT" envDefault:"10s"`
	PendingMaxAge  time.Duration `env:"BOT_PENDING_MAX_AGE" envDefault:"2m"`

	JanitorSchedule string `env:"BOT_JANITOR_SCHEDULE" envDefault:"@every 1m"`
	SummarySchedule string `env:"BOT_SUMMARY_SCHEDULE" envDefault:"@every 1h"`

	StrictShardTransitions bool          `env:"BOT_STRICT_SHARD_TRANSITIONS"`
	FailFastHandlers       bool          `env:"BOT_FAIL_FAST_HANDLERS"`
	HelloDelay             time.Duration `env:"BOT_HELLO_DELAY" envDefault:"10s"`

	AutoBlacklist      bool `env:"BOT_AUTO_BLACKLIST" envDefault:"true"`
	BlacklistThreshold int  `env:"BOT_BLACKLIST_THRESHOLD" envDefault:"10"`

	Log     Log     `envPrefix:"LOG_"`
	Neo4j   Neo4j   `envPrefix:"NEO4J_"`
	Archive Archive `envPrefix:"ARCHIVE_"`
}

type Log struct {
	Level slog.Level `env:"LEVEL" envDefault:"INFO"`
	Dir   string     `env:"DIR"`
	Color bool       `env:"COLOR" envDefault:"true"`
}

type Neo4j struct {
	URI      string `env:"URI"`
	User     string `env:"USER" envDefault:"neo4j"`
	Password string `env:"PASSWORD"`
	Database string `env:"DATABASE" envDefault:"neo4j"`
}

// Archive configures log rotation; uploads are enabled when Bucket is set.
type Archive struct {
	Schedule string `env:"CRON"`
	Endpoint string `env:"ENDPOINT"`
	Region   string `env:"REGION"`
	Bucket   string `env:"BUCKET"`
	Key      string `env:"KEY"`
	Secret   string `env:"SECRET"`
	Prefix   string `env:"PREFIX" envDefault:"logs"`
}

func Load() (App, error) {
	var cfg App
	err := env.ParseWithOptions(&cfg, env.Options{
		FuncMap: map[reflect.Type]env.ParserFunc{
			reflect.TypeOf(snowflake.ID(0)): func(v string) (any, error) {
				id, err := snowflake.Parse(v)
				if err != nil {
					return nil, err
				}
				return id, nil
			},
		},
	})
	if err != nil {
		return App{}, fmt.Errorf("parse env: %w", err)
	}
	if cfg.Prefix == "" {
		return App{}, fmt.Errorf("parse env: BOT_PREFIX must not be empty")
	}
	return cfg, nil
}
