// Package config loads engine configuration via viper, the way the rest of
// the stack loads YAML configuration with mapstructure tags and explicit
// defaults.
package config

import (
	"time"

	"github.com/spf13/viper"
)

// Config is the root configuration for the auctiond process.
type Config struct {
	// Engine controls the auction engine itself.
	Engine struct {
		BucketDurationSeconds int64  `mapstructure:"bucket_duration_seconds"`
		Owner                 string `mapstructure:"owner"`
	} `mapstructure:"engine"`

	// Server controls the gin HTTP surface.
	Server struct {
		Host         string        `mapstructure:"host"`
		Port         int           `mapstructure:"port"`
		ReadTimeout  time.Duration `mapstructure:"read_timeout"`
		WriteTimeout time.Duration `mapstructure:"write_timeout"`
	} `mapstructure:"server"`

	// Broker controls the event-log's outbound message broker.
	Broker struct {
		Type    string `mapstructure:"type"`
		Address string `mapstructure:"address"`
	} `mapstructure:"broker"`

	// Monitoring controls logging and metrics exposure.
	Monitoring struct {
		PrometheusPort int    `mapstructure:"prometheus_port"`
		LogLevel       string `mapstructure:"log_level"`
	} `mapstructure:"monitoring"`
}

// BucketDuration returns Engine.BucketDurationSeconds as a time.Duration.
func (c *Config) BucketDuration() time.Duration {
	return time.Duration(c.Engine.BucketDurationSeconds) * time.Second
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("engine.bucket_duration_seconds", 900)
	v.SetDefault("engine.owner", "owner")

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 5*time.Second)
	v.SetDefault("server.write_timeout", 10*time.Second)

	v.SetDefault("broker.type", "memory")
	v.SetDefault("broker.address", "")

	v.SetDefault("monitoring.prometheus_port", 9090)
	v.SetDefault("monitoring.log_level", "info")
}

// Load reads configuration from configPath (a directory containing
// config.yaml) plus the AUCTIOND_-prefixed environment, falling back to
// defaults for anything unset. configPath may be empty to search only the
// working directory and the environment.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	if configPath != "" {
		v.AddConfigPath(configPath)
	}
	v.AddConfigPath(".")

	v.SetEnvPrefix("AUCTIOND")
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return nil, err
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns a Config populated entirely from defaults, for tests and
// for running auctiond with no config.yaml present.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	cfg := &Config{}
	_ = v.Unmarshal(cfg)
	return cfg
}
