// Package config loads configs/config.yml through viper. Every key can be
// overridden from the environment with the STOVESYNC_ prefix
// (server.port -> STOVESYNC_SERVER_PORT). A .env file, when present, is
// loaded first so vendor secrets can stay out of the YAML.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const envPrefix = "STOVESYNC"

// Store drivers.
const (
	DriverSQLite = "sqlite"
	DriverRedis  = "redis"
	DriverMemory = "memory"
)

type Config struct {
	Server struct {
		Port       string `mapstructure:"port"`
		JWTKey     string `mapstructure:"jwt_key"`
		LogLevel   string `mapstructure:"log_level"`
		Timezone   string `mapstructure:"timezone"`
		Language   string `mapstructure:"language"`
		LogQueue   int    `mapstructure:"log_queue"`
		MetricsOff bool   `mapstructure:"metrics_off"`
	} `mapstructure:"server"`

	DB struct {
		Path string `mapstructure:"path"`
	} `mapstructure:"db"`

	Store struct {
		Driver        string `mapstructure:"driver"`
		RedisAddr     string `mapstructure:"redis_addr"`
		RedisPassword string `mapstructure:"redis_password"`
		RedisDB       int    `mapstructure:"redis_db"`
	} `mapstructure:"store"`

	Netatmo struct {
		BaseURL      string        `mapstructure:"base_url"`
		TokenURL     string        `mapstructure:"token_url"`
		ClientID     string        `mapstructure:"client_id"`
		ClientSecret string        `mapstructure:"client_secret"`
		RefreshToken string        `mapstructure:"refresh_token"`
		Timeout      time.Duration `mapstructure:"timeout"`
	} `mapstructure:"netatmo"`

	Stove struct {
		BaseURL string        `mapstructure:"base_url"`
		APIKey  string        `mapstructure:"api_key"`
		Timeout time.Duration `mapstructure:"timeout"`
	} `mapstructure:"stove"`

	MQTT struct {
		Broker      string `mapstructure:"broker"`
		ClientID    string `mapstructure:"client_id"`
		TopicPrefix string `mapstructure:"topic_prefix"`
	} `mapstructure:"mqtt"`

	Coordination struct {
		PollInterval    time.Duration `mapstructure:"poll_interval"`
		SweepInterval   time.Duration `mapstructure:"sweep_interval"`
		CallbackTimeout time.Duration `mapstructure:"callback_timeout"`
		DurableLimits   bool          `mapstructure:"durable_limits"`
		Users           []User        `mapstructure:"users"`
	} `mapstructure:"coordination"`
}

// User is one dwelling polled by the scheduler.
type User struct {
	ID          string `mapstructure:"id"`
	HomeID      string `mapstructure:"home_id"`
	StoveDevice string `mapstructure:"stove_device"`
}

var errNoJWTKey = errors.New("server.jwt_key must be set")

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.timezone", "Europe/Rome")
	v.SetDefault("server.language", "en")
	v.SetDefault("server.log_queue", 256)
	// Secrets have empty defaults so AutomaticEnv can see them on Unmarshal.
	for _, k := range []string{
		"server.jwt_key",
		"store.redis_password",
		"netatmo.client_id", "netatmo.client_secret", "netatmo.refresh_token",
		"stove.base_url", "stove.api_key",
		"mqtt.broker",
	} {
		v.SetDefault(k, "")
	}

	v.SetDefault("db.path", "app.db")

	v.SetDefault("store.driver", DriverSQLite)
	v.SetDefault("store.redis_addr", "localhost:6379")

	v.SetDefault("netatmo.base_url", "https://api.netatmo.com")
	v.SetDefault("netatmo.token_url", "https://api.netatmo.com/oauth2/token")
	v.SetDefault("netatmo.timeout", 15*time.Second)

	v.SetDefault("stove.timeout", 10*time.Second)

	v.SetDefault("mqtt.client_id", "stove-coordination")
	v.SetDefault("mqtt.topic_prefix", "stovesync/notifications")

	v.SetDefault("coordination.poll_interval", time.Minute)
	v.SetDefault("coordination.sweep_interval", time.Minute)
	v.SetDefault("coordination.callback_timeout", 30*time.Second)
	v.SetDefault("coordination.durable_limits", true)
}

// Load reads configs/<name>.yml from the given search paths. A missing file
// is not an error: defaults and environment still apply.
func Load(name string, paths ...string) (*Config, error) {
	_ = godotenv.Load() // optional .env

	v := viper.New()
	setDefaults(v)
	v.SetConfigName(name)
	v.SetConfigType("yml")
	for _, p := range paths {
		v.AddConfigPath(p)
	}
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Server.JWTKey == "" {
		return errNoJWTKey
	}
	switch c.Store.Driver {
	case DriverSQLite, DriverRedis, DriverMemory:
	default:
		return fmt.Errorf("store.driver %q: want sqlite, redis or memory", c.Store.Driver)
	}
	for i, u := range c.Coordination.Users {
		if u.ID == "" || u.HomeID == "" {
			return fmt.Errorf("coordination.users[%d]: id and home_id are required", i)
		}
	}
	return nil
}

// Location resolves server.timezone, falling back to UTC.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Server.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
