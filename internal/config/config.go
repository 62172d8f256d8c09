package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	appServer "github.com/leshachaplin/mouselog/internal/server/http"
	"github.com/leshachaplin/mouselog/internal/storage/event/clickhouse"
	"github.com/leshachaplin/mouselog/internal/storage/event/jsonl"
	"github.com/leshachaplin/mouselog/internal/worker"
	"github.com/leshachaplin/mouselog/internal/worker/redpanda/consumer"
	"github.com/leshachaplin/mouselog/internal/worker/redpanda/producer"
)

const (
	DefaultEventLogPath = "mouse_events.jsonl"
	defaultTopic        = "mouse-events"
	defaultErrorTopic   = "mouse-events-dlq"
	defaultGroup        = "mouselog-mirror"
)

// Config is the main config for the application
type Config struct {
	LogLevel string           `yaml:"log_level"`
	Server   appServer.Config `yaml:"server"`
	EventLog jsonl.Config     `yaml:"event_log"`
	Mirror   Mirror           `yaml:"mirror"`
}

// Mirror copies every logged batch through Redpanda into ClickHouse. It is
// off unless enabled.
type Mirror struct {
	Enabled    bool              `yaml:"enabled"`
	ErrorTopic string            `yaml:"error_topic"`
	Worker     worker.Config     `yaml:"worker"`
	Producer   producer.Config   `yaml:"producer"`
	Consumer   consumer.Config   `yaml:"consumer"`
	Clickhouse clickhouse.Config `yaml:"clickhouse"`
}

func Default() Config {
	return Config{
		LogLevel: "INFO",
		Server: appServer.Config{
			Addr: appServer.DefaultAddr,
		},
		EventLog: jsonl.Config{
			Path: DefaultEventLogPath,
		},
		Mirror: Mirror{
			ErrorTopic: defaultErrorTopic,
			Producer: producer.Config{
				Topic: defaultTopic,
			},
			Consumer: consumer.Config{
				ConsumerGroup: defaultGroup,
				Topics:        []string{defaultTopic},
			},
		},
	}
}

// Load reads the yaml file at path over the defaults. An empty path means
// defaults only.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// LoadFromEnv loads path, then a .env file if one exists, then applies
// MOUSELOG_* environment overrides.
func LoadFromEnv(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	cfg, err := Load(path)
	if err != nil {
		return Config{}, err
	}
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("MOUSELOG_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("MOUSELOG_EVENT_LOG_PATH"); v != "" {
		c.EventLog.Path = v
	}
	if v := os.Getenv("MOUSELOG_LOG_LEVEL"); v != "" {
		c.LogLevel = strings.ToUpper(v)
	}
	if v := os.Getenv("MOUSELOG_ALLOWED_ORIGINS"); v != "" {
		c.Server.AllowedOrigins = splitList(v)
	}
	if v := os.Getenv("MOUSELOG_BROKERS"); v != "" {
		brokers := splitList(v)
		c.Mirror.Producer.Brokers = brokers
		c.Mirror.Consumer.Brokers = brokers
		c.Mirror.Enabled = true
	}
	if v := os.Getenv("MOUSELOG_CLICKHOUSE_ADDR"); v != "" {
		c.Mirror.Clickhouse.Addr = v
	}
}

func (c Config) Validate() error {
	if c.EventLog.Path == "" {
		return errors.New("event_log.path is required")
	}
	if !c.Mirror.Enabled {
		return nil
	}
	if len(c.Mirror.Producer.Brokers) == 0 || len(c.Mirror.Consumer.Brokers) == 0 {
		return errors.New("mirror is enabled but no brokers are configured")
	}
	if c.Mirror.Clickhouse.Addr == "" {
		return errors.New("mirror is enabled but clickhouse.addr is empty")
	}
	return nil
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
