package app

import (
	"fmt"

	"github.com/caarlos0/env/v11"

	"craftgate/server/progression/graph"
)

// Config is the process configuration, populated from the environment.
type Config struct {
	ListenAddr string `env:"CRAFTGATE_LISTEN_ADDR" envDefault:":8080"`

	// GraphPaths lists the graph sources in overlay order; the first path is
	// also the save target for editor mutations.
	GraphPaths   []string `env:"CRAFTGATE_GRAPH_PATHS" envSeparator:","`
	DatabasePath string   `env:"CRAFTGATE_DB_PATH" envDefault:"data/players.db"`

	AdminToken         string  `env:"CRAFTGATE_ADMIN_TOKEN"`
	GlobalPermissionID string  `env:"CRAFTGATE_GLOBAL_PERMISSION"`
	CraftingXPEnabled  bool    `env:"CRAFTGATE_CRAFTING_XP" envDefault:"true"`
	CraftingXPPerCraft float64 `env:"CRAFTGATE_CRAFTING_XP_PER_CRAFT" envDefault:"2"`
	RefundFraction     float64 `env:"CRAFTGATE_REFUND_FRACTION" envDefault:"0"`

	LogSinks    []string `env:"CRAFTGATE_LOG_SINKS" envSeparator:"," envDefault:"console"`
	LogJSONPath string   `env:"CRAFTGATE_LOG_JSON_PATH" envDefault:"logs/events.ndjson"`
}

// LoadConfig reads the configuration from the environment.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("app: failed to parse environment: %w", err)
	}
	if len(cfg.GraphPaths) == 0 {
		cfg.GraphPaths = []string{graph.DefaultPath()}
	}
	return cfg, nil
}
