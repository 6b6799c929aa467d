// Package config loads the server configuration from a YAML file, GITCG_
// environment variables and built-in defaults.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/gitcg/gitcg-server-go/internal/game"
)

// Config is the complete server configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Game     GameConfig     `mapstructure:"game"`
}

type ServerConfig struct {
	HTTP HTTPConfig `mapstructure:"http"`
	GRPC GRPCConfig `mapstructure:"grpc"`
	// RPCTimeout bounds how long a player may take to answer a request.
	RPCTimeout time.Duration `mapstructure:"rpc_timeout"`
	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	// AdminPasswordHash is the bcrypt hash guarding admin calls. Empty
	// disables them.
	AdminPasswordHash string `mapstructure:"admin_password_hash"`
}

type HTTPConfig struct {
	Address string `mapstructure:"address"`
}

type GRPCConfig struct {
	Address string `mapstructure:"address"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// DatabaseConfig configures replay persistence. An empty DSN disables it.
type DatabaseConfig struct {
	DSN      string `mapstructure:"dsn"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// RedisConfig configures the resync cache. An empty address disables it.
type RedisConfig struct {
	Address string        `mapstructure:"address"`
	TTL     time.Duration `mapstructure:"ttl"`
}

type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// GameConfig holds the match rules and the seed source.
type GameConfig struct {
	MaxRounds    int `mapstructure:"max_rounds"`
	InitialHands int `mapstructure:"initial_hands"`
	MaxHands     int `mapstructure:"max_hands"`
	MaxDice      int `mapstructure:"max_dice"`
	InitialDice  int `mapstructure:"initial_dice"`
	// Seed fixes the random seed of every match. Zero derives one per match.
	Seed uint64 `mapstructure:"seed"`
}

// Rules converts the game section into engine rules.
func (g GameConfig) Rules() game.Rules {
	r := game.DefaultRules()
	r.MaxRounds = g.MaxRounds
	r.InitialHands = g.InitialHands
	r.MaxHands = g.MaxHands
	r.MaxDice = g.MaxDice
	r.InitialDice = g.InitialDice
	return r
}

func setDefaults(v *viper.Viper) {
	rules := game.DefaultRules()

	v.SetDefault("server.http.address", ":8080")
	v.SetDefault("server.grpc.address", ":9090")
	v.SetDefault("server.rpc_timeout", 60*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.admin_password_hash", "")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.max_conns", 4)
	v.SetDefault("redis.address", "")
	v.SetDefault("redis.ttl", 30*time.Minute)
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("game.max_rounds", rules.MaxRounds)
	v.SetDefault("game.initial_hands", rules.InitialHands)
	v.SetDefault("game.max_hands", rules.MaxHands)
	v.SetDefault("game.max_dice", rules.MaxDice)
	v.SetDefault("game.initial_dice", rules.InitialDice)
	v.SetDefault("game.seed", 0)
}

// Load reads the configuration. A missing file is not an error; the
// defaults and environment apply.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("GITCG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("failed to read config %s: %w", path, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid logging.level %q", c.Logging.Level)
	}
	if c.Server.HTTP.Address == "" {
		return errors.New("server.http.address is required")
	}
	if c.Server.RPCTimeout < 0 {
		return errors.New("server.rpc_timeout must not be negative")
	}
	g := c.Game
	if g.MaxRounds < 1 {
		return fmt.Errorf("game.max_rounds must be positive, got %d", g.MaxRounds)
	}
	if g.InitialHands < 0 || g.InitialHands > g.MaxHands {
		return fmt.Errorf("game.initial_hands must be between 0 and game.max_hands (%d), got %d", g.MaxHands, g.InitialHands)
	}
	if g.InitialDice < 0 || g.InitialDice > g.MaxDice {
		return fmt.Errorf("game.initial_dice must be between 0 and game.max_dice (%d), got %d", g.MaxDice, g.InitialDice)
	}
	return nil
}
