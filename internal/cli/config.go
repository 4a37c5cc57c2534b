package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/viewgrid/viewgrid/pkg/delta"
	"github.com/viewgrid/viewgrid/pkg/snapshot"
)

// Config is the TOML configuration for the serve command.
type Config struct {
	// Addr is the HTTP listen address.
	Addr string `toml:"addr"`

	// Store selects the snapshot backend: "memory", "file", "redis", or
	// "mongo".
	Store string `toml:"store"`

	// Snapshots configures the file backend.
	Snapshots struct {
		Dir string `toml:"dir"`
	} `toml:"snapshots"`

	// Redis configures the redis backend and the delta fan-out channel.
	Redis struct {
		Addr     string `toml:"addr"`
		Password string `toml:"password"`
		DB       int    `toml:"db"`
	} `toml:"redis"`

	// Mongo configures the mongo backend.
	Mongo struct {
		URI        string `toml:"uri"`
		Database   string `toml:"database"`
		Collection string `toml:"collection"`
	} `toml:"mongo"`
}

// defaultConfig returns the configuration used when no file is present.
func defaultConfig() Config {
	var cfg Config
	cfg.Addr = ":8080"
	cfg.Store = "memory"
	cfg.Redis.Addr = "localhost:6379"
	cfg.Mongo.URI = "mongodb://localhost:27017"
	cfg.Mongo.Database = appName
	cfg.Mongo.Collection = "snapshots"
	return cfg
}

// loadConfig reads the TOML config at path, or falls back to defaults when
// path is empty and no config file exists in the standard location.
func loadConfig(path string) (Config, error) {
	cfg := defaultConfig()

	explicit := path != ""
	if !explicit {
		path = defaultConfigPath()
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		if explicit {
			return cfg, fmt.Errorf("config file not found: %s", path)
		}
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// defaultConfigPath returns the XDG-standard config location
// (~/.config/viewgrid/config.toml).
func defaultConfigPath() string {
	if configHome := os.Getenv("XDG_CONFIG_HOME"); configHome != "" {
		return filepath.Join(configHome, appName, "config.toml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", appName, "config.toml")
}

// openStore builds the snapshot store the config names.
func openStore(cmd *cobra.Command, cfg Config) (snapshot.Store, error) {
	switch cfg.Store {
	case "", "memory":
		return snapshot.NewMemoryStore(), nil
	case "file":
		dir := cfg.Snapshots.Dir
		if dir == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return nil, fmt.Errorf("resolve snapshot dir: %w", err)
			}
			dir = filepath.Join(home, ".local", "share", appName, "snapshots")
		}
		return snapshot.NewFileStore(dir)
	case "redis":
		return snapshot.NewRedisStore(newRedisClient(cfg)), nil
	case "mongo":
		return snapshot.NewMongoStore(cmd.Context(), cfg.Mongo.URI, cfg.Mongo.Database, cfg.Mongo.Collection)
	default:
		return nil, fmt.Errorf("unknown store backend %q (must be memory, file, redis, or mongo)", cfg.Store)
	}
}

// openPublisher builds the Redis delta publisher when the redis backend is
// configured; other backends run without cross-instance fan-out.
func openPublisher(cfg Config) *delta.Publisher {
	if cfg.Store != "redis" {
		return nil
	}
	return delta.NewPublisher(newRedisClient(cfg))
}

func newRedisClient(cfg Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
}
