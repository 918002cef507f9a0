package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. BRISCOLA_SERVER_ADDR.
const EnvPrefix = "BRISCOLA"

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	NATS     NATSConfig     `mapstructure:"nats"`
	Game     GameConfig     `mapstructure:"game"`
	Client   ClientConfig   `mapstructure:"client"`
}

type ServerConfig struct {
	Addr           string        `mapstructure:"addr"`
	StaticDir      string        `mapstructure:"static_dir"`
	ReconnectGrace time.Duration `mapstructure:"reconnect_grace"` // How long a dropped seat waits for rejoin_room
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // "json" or "console"
}

type DatabaseConfig struct {
	Driver string `mapstructure:"driver"` // "sqlite3" or "pgx"
	DSN    string `mapstructure:"dsn"`
}

// RedisConfig is optional: an empty Addr keeps room snapshots in memory.
type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// NATSConfig is optional: an empty URL disables match events.
type NATSConfig struct {
	URL           string        `mapstructure:"url"`
	Subject       string        `mapstructure:"subject"`
	MaxReconnects int           `mapstructure:"max_reconnects"`
	ReconnectWait time.Duration `mapstructure:"reconnect_wait"`
}

type GameConfig struct {
	AIDelay      time.Duration `mapstructure:"ai_delay"`
	CollectDelay time.Duration `mapstructure:"collect_delay"`
}

type ClientConfig struct {
	URL               string        `mapstructure:"url"`
	ReconnectAttempts int           `mapstructure:"reconnect_attempts"`
	ReconnectDelay    time.Duration `mapstructure:"reconnect_delay"`
	PingInterval      time.Duration `mapstructure:"ping_interval"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.static_dir", "web/static")
	v.SetDefault("server.reconnect_grace", 30*time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("database.driver", "sqlite3")
	v.SetDefault("database.dsn", "./briscola.db")

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.ttl", 2*time.Hour)

	v.SetDefault("nats.url", "")
	v.SetDefault("nats.subject", "briscola.match.finished")
	v.SetDefault("nats.max_reconnects", 10)
	v.SetDefault("nats.reconnect_wait", 2*time.Second)

	v.SetDefault("game.ai_delay", 800*time.Millisecond)
	v.SetDefault("game.collect_delay", 3*time.Second)

	v.SetDefault("client.url", "ws://localhost:8080/ws")
	v.SetDefault("client.reconnect_attempts", 20)
	v.SetDefault("client.reconnect_delay", time.Second)
	v.SetDefault("client.ping_interval", 25*time.Second)
}

// Load reads the YAML file at path, when given, and applies BRISCOLA_*
// environment overrides on top of the defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

var ErrInvalid = errors.New("invalid config")

// Validate rejects values the server cannot start with.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite3", "pgx":
	default:
		return fmt.Errorf("%w: database.driver %q", ErrInvalid, c.Database.Driver)
	}
	if c.Server.ReconnectGrace < 0 {
		return fmt.Errorf("%w: server.reconnect_grace must not be negative", ErrInvalid)
	}
	if c.Client.ReconnectAttempts < 0 {
		return fmt.Errorf("%w: client.reconnect_attempts must not be negative", ErrInvalid)
	}
	return nil
}
