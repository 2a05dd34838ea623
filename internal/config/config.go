// Package config loads the moderation service configuration from defaults,
// an optional moderator.yaml and the environment, in increasing priority.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/whisper/moderation/internal/moderation"
)

// Config holds the moderator service settings. Each key maps to the
// upper-cased environment variable of the same name (listen_addr ->
// LISTEN_ADDR).
type Config struct {
	ServerName      string        `mapstructure:"server_name"`
	ListenAddr      string        `mapstructure:"listen_addr"`
	NATSURL         string        `mapstructure:"nats_url"`
	QueueGroup      string        `mapstructure:"queue_group"`
	RedisAddr       string        `mapstructure:"redis_addr"`
	RedisPassword   string        `mapstructure:"redis_password"`
	RedisDB         int           `mapstructure:"redis_db"`
	DatabaseURL     string        `mapstructure:"database_url"` // empty disables auditing
	DefaultPreset   string        `mapstructure:"default_preset"`
	PrefsTTL        time.Duration `mapstructure:"prefs_ttl"`
	LogLevel        string        `mapstructure:"log_level"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		ServerName:      "moderator-1",
		ListenAddr:      ":8090",
		NATSURL:         "nats://localhost:4222",
		QueueGroup:      "moderators",
		RedisAddr:       "localhost:6379",
		DefaultPreset:   string(moderation.LevelModerate),
		PrefsTTL:        24 * time.Hour,
		LogLevel:        "info",
		ShutdownTimeout: 10 * time.Second,
	}
}

// Load reads moderator.yaml from path (or the working directory) when one
// exists, then applies environment overrides.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v, Default())

	v.SetConfigName("moderator")
	v.SetConfigType("yaml")
	if path != "" {
		v.AddConfigPath(path)
	}
	v.AddConfigPath(".")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: read moderator.yaml: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks settings that would otherwise fail late.
func (c *Config) Validate() error {
	level, err := moderation.ParseLevel(c.DefaultPreset)
	if err != nil {
		return fmt.Errorf("config: default_preset: %w", err)
	}
	c.DefaultPreset = string(level)
	if c.ListenAddr == "" {
		return errors.New("config: listen_addr is required")
	}
	if c.QueueGroup == "" {
		return errors.New("config: queue_group is required")
	}
	if c.PrefsTTL <= 0 {
		return errors.New("config: prefs_ttl must be positive")
	}
	return nil
}

func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("server_name", d.ServerName)
	v.SetDefault("listen_addr", d.ListenAddr)
	v.SetDefault("nats_url", d.NATSURL)
	v.SetDefault("queue_group", d.QueueGroup)
	v.SetDefault("redis_addr", d.RedisAddr)
	v.SetDefault("redis_password", d.RedisPassword)
	v.SetDefault("redis_db", d.RedisDB)
	v.SetDefault("database_url", d.DatabaseURL)
	v.SetDefault("default_preset", d.DefaultPreset)
	v.SetDefault("prefs_ttl", d.PrefsTTL)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("shutdown_timeout", d.ShutdownTimeout)
}
