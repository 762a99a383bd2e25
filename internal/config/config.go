// Package config loads the daemon configuration from an optional YAML
// file and CHIME_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the full daemon configuration.
type Config struct {
	Server  Server  `mapstructure:"server"`
	Alarm   Alarm   `mapstructure:"alarm"`
	Storage Storage `mapstructure:"storage"`
	Log     Log     `mapstructure:"log"`
}

// Server identifies this device to protocol clients.
type Server struct {
	Name string `mapstructure:"name"`
}

// Alarm holds the alarm subsystem defaults.
type Alarm struct {
	SnoozeMinutes  int           `mapstructure:"snooze_minutes"`
	MaxSnoozeCount int           `mapstructure:"max_snooze_count"`
	TickInterval   time.Duration `mapstructure:"tick_interval"`
}

// Storage locates the settings database.
type Storage struct {
	Path string `mapstructure:"path"`
}

// Log configures logging.
type Log struct {
	Level string `mapstructure:"level"`
}

// Load reads the configuration. A missing file is only an error when the
// path was given explicitly; environment variables (CHIME_LOG_LEVEL and
// friends) override file values either way.
func Load(path string) (Config, error) {
	v := viper.New()

	v.SetDefault("server.name", "chime")
	v.SetDefault("alarm.snooze_minutes", 5)
	v.SetDefault("alarm.max_snooze_count", 3)
	v.SetDefault("alarm.tick_interval", time.Second)
	v.SetDefault("storage.path", "chime.db")
	v.SetDefault("log.level", "info")

	v.SetEnvPrefix("CHIME")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)

		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("chime")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")

		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	return cfg, nil
}
