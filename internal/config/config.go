// Package config provides Viper-based configuration loading for the arena
// session coordinator.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ServerConfig holds WebSocket listener settings.
type ServerConfig struct {
	// Host is the bind address for the HTTP/WebSocket listener.
	Host string `mapstructure:"host"`
	// Port is the TCP port for the HTTP/WebSocket listener.
	Port int `mapstructure:"port"`
	// ReadTimeout is the per-message read deadline for client connections.
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
	// WriteTimeout is the per-message write deadline for client connections.
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	// WarmupDelay is the boot grace period during which lobby creation and
	// joining are rejected.
	WarmupDelay time.Duration `mapstructure:"warmup_delay"`
}

// Addr returns the "host:port" listen address.
//
// Postcondition: Returns a non-empty string in "host:port" format.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// GameConfig holds the coordinator's capacity bounds, tick periods, and
// match rules.
type GameConfig struct {
	// MaxPlayers is the global player cap summed across all lobbies.
	MaxPlayers int `mapstructure:"max_players"`
	// LobbyCapacity is the per-lobby player cap.
	LobbyCapacity int `mapstructure:"lobby_capacity"`
	// ControlTick is the period of the lifecycle/full-sync tick.
	ControlTick time.Duration `mapstructure:"control_tick"`
	// SnapshotTick is the period of the in-game state snapshot tick.
	SnapshotTick time.Duration `mapstructure:"snapshot_tick"`
	// MatchDuration is the countdown assigned when a match starts.
	MatchDuration time.Duration `mapstructure:"match_duration"`
	// MoveTolerance is the per-update displacement bound on either axis.
	// Updates deviating further from the last accepted position are dropped.
	MoveTolerance float64 `mapstructure:"move_tolerance"`
	// StartingHealth is the health assigned to a player on lobby join.
	StartingHealth int `mapstructure:"starting_health"`
	// DefaultArena is the arena ID assigned to freshly created lobbies.
	DefaultArena string `mapstructure:"default_arena"`
}

// ContentConfig holds paths to YAML content directories.
type ContentConfig struct {
	// ArenasDir is the directory of arena definition YAML files.
	ArenasDir string `mapstructure:"arenas_dir"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	Level string `mapstructure:"level"`
	// Format is the log output format: "json" or "console".
	Format string `mapstructure:"format"`
}

// Config is the top-level application configuration.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Game    GameConfig    `mapstructure:"game"`
	Content ContentConfig `mapstructure:"content"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// Validate checks all configuration invariants.
//
// Postcondition: Returns nil if configuration is valid, or an error describing all violations.
func (c Config) Validate() error {
	var errs []string

	if err := validateServer(c.Server); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateGame(c.Game); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateContent(c.Content); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateLogging(c.Logging); err != nil {
		errs = append(errs, err.Error())
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func validateServer(s ServerConfig) error {
	var errs []string
	if s.Host == "" {
		errs = append(errs, "server.host must not be empty")
	}
	if s.Port < 1 || s.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be 1-65535, got %d", s.Port))
	}
	if s.ReadTimeout < 0 {
		errs = append(errs, fmt.Sprintf("server.read_timeout must be >= 0, got %s", s.ReadTimeout))
	}
	if s.WriteTimeout < 0 {
		errs = append(errs, fmt.Sprintf("server.write_timeout must be >= 0, got %s", s.WriteTimeout))
	}
	if s.WarmupDelay < 0 {
		errs = append(errs, fmt.Sprintf("server.warmup_delay must be >= 0, got %s", s.WarmupDelay))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateGame(g GameConfig) error {
	var errs []string
	if g.MaxPlayers < 1 {
		errs = append(errs, fmt.Sprintf("game.max_players must be >= 1, got %d", g.MaxPlayers))
	}
	if g.LobbyCapacity < 2 {
		errs = append(errs, fmt.Sprintf("game.lobby_capacity must be >= 2, got %d", g.LobbyCapacity))
	}
	if g.MaxPlayers >= 1 && g.LobbyCapacity >= 2 && g.LobbyCapacity > g.MaxPlayers {
		errs = append(errs, fmt.Sprintf("game.lobby_capacity (%d) must not exceed game.max_players (%d)", g.LobbyCapacity, g.MaxPlayers))
	}
	if g.ControlTick <= 0 {
		errs = append(errs, fmt.Sprintf("game.control_tick must be > 0, got %s", g.ControlTick))
	}
	if g.SnapshotTick <= 0 {
		errs = append(errs, fmt.Sprintf("game.snapshot_tick must be > 0, got %s", g.SnapshotTick))
	}
	if g.MatchDuration <= 0 {
		errs = append(errs, fmt.Sprintf("game.match_duration must be > 0, got %s", g.MatchDuration))
	}
	if g.MoveTolerance <= 0 {
		errs = append(errs, fmt.Sprintf("game.move_tolerance must be > 0, got %g", g.MoveTolerance))
	}
	if g.StartingHealth < 1 {
		errs = append(errs, fmt.Sprintf("game.starting_health must be >= 1, got %d", g.StartingHealth))
	}
	if g.DefaultArena == "" {
		errs = append(errs, "game.default_arena must not be empty")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateContent(c ContentConfig) error {
	if c.ArenasDir == "" {
		return fmt.Errorf("content.arenas_dir must not be empty")
	}
	return nil
}

func validateLogging(l LoggingConfig) error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[l.Level] {
		return fmt.Errorf("logging.level must be one of [debug, info, warn, error], got %q", l.Level)
	}
	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("logging.format must be one of [json, console], got %q", l.Format)
	}
	return nil
}

// Load reads configuration from the given file path, applies environment variable
// overrides, and validates the result.
//
// Precondition: path must be a valid file path to a YAML configuration file.
// Postcondition: Returns a valid Config or a non-nil error.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	// Environment variable overrides with ARENA_ prefix
	v.SetEnvPrefix("ARENA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// LoadFromViper builds a Config from an already-configured Viper instance.
//
// Precondition: v must be non-nil and have configuration values set.
// Postcondition: Returns a valid Config or a non-nil error.
func LoadFromViper(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 10000)
	v.SetDefault("server.read_timeout", "60s")
	v.SetDefault("server.write_timeout", "10s")
	v.SetDefault("server.warmup_delay", "2s")

	v.SetDefault("game.max_players", 10)
	v.SetDefault("game.lobby_capacity", 4)
	v.SetDefault("game.control_tick", "100ms")
	v.SetDefault("game.snapshot_tick", "33ms")
	v.SetDefault("game.match_duration", "120s")
	v.SetDefault("game.move_tolerance", 100.0)
	v.SetDefault("game.starting_health", 100)
	v.SetDefault("game.default_arena", "quarry")

	v.SetDefault("content.arenas_dir", "content/arenas")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}
