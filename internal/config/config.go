package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"tgrelay/internal/filter"
	"tgrelay/internal/queue"
	"tgrelay/internal/routing"
)

const (
	envPrefix   = "RELAY_"
	defaultPath = "config.yaml"
)

type Config struct {
	Telegram  TelegramConfig `koanf:"telegram"`
	SourceIDs []int64        `koanf:"source_ids"`
	Sources   []SourceConfig `koanf:"sources"`
	Filters   []FilterConfig `koanf:"filters"`
	Feeds     []FeedConfig   `koanf:"feeds"`
	Routing   RoutingConfig  `koanf:"routing"`
	Queue     QueueConfig    `koanf:"queue"`
	Worker    WorkerConfig   `koanf:"worker"`
	Resolver  ResolverConfig `koanf:"resolver"`
	Redis     RedisConfig    `koanf:"redis"`
	Export    ExportConfig   `koanf:"export"`
	Server    ServerConfig   `koanf:"server"`
	Log       LogConfig      `koanf:"log"`
}

type TelegramConfig struct {
	Token          string        `koanf:"token"`
	APIURL         string        `koanf:"api_url"`
	PollTimeout    time.Duration `koanf:"poll_timeout"`
	RequestTimeout time.Duration `koanf:"request_timeout"`
}

// SourceConfig is one monitored chat: its stop-words, its own keyword group
// and the targets matching messages are forwarded to.
type SourceConfig struct {
	ID        int64    `koanf:"id"`
	Keywords  []string `koanf:"keywords"`
	Stopwords []string `koanf:"stopwords"`
	Match     string   `koanf:"match"`
	Targets   []int64  `koanf:"targets"`
}

// FilterConfig is a keyword group shared by several sources.
type FilterConfig struct {
	Name     string   `koanf:"name"`
	Sources  []int64  `koanf:"sources"`
	Keywords []string `koanf:"keywords"`
	Match    string   `koanf:"match"`
}

type FeedConfig struct {
	URL      string        `koanf:"url"`
	SourceID int64         `koanf:"source_id"`
	Interval time.Duration `koanf:"interval"`
}

type RoutingConfig struct {
	OnDuplicate string `koanf:"on_duplicate"`
}

type QueueConfig struct {
	Capacity int    `koanf:"capacity"`
	Overflow string `koanf:"overflow"`
}

type WorkerConfig struct {
	Restart string `koanf:"restart"`
}

type ResolverConfig struct {
	CacheTTL time.Duration `koanf:"cache_ttl"`
}

type RedisConfig struct {
	Addr    string        `koanf:"addr"`
	SeenTTL time.Duration `koanf:"seen_ttl"`
}

type ExportConfig struct {
	Enabled bool   `koanf:"enabled"`
	Path    string `koanf:"path"`
}

type ServerConfig struct {
	Port string `koanf:"port"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// ConfigError describes a missing or invalid startup setting.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config %s: %s", e.Field, e.Reason)
}

func defaults() Config {
	return Config{
		Telegram: TelegramConfig{
			APIURL:         "https://api.telegram.org",
			PollTimeout:    30 * time.Second,
			RequestTimeout: 15 * time.Second,
		},
		Routing:  RoutingConfig{OnDuplicate: "reject"},
		Queue:    QueueConfig{Overflow: "block"},
		Worker:   WorkerConfig{Restart: "resume"},
		Resolver: ResolverConfig{CacheTTL: 10 * time.Minute},
		Redis:    RedisConfig{SeenTTL: 7 * 24 * time.Hour},
		Export:   ExportConfig{Enabled: true, Path: "group_ids.txt"},
		Log:      LogConfig{Level: "debug", Format: "console"},
	}
}

// Load reads config.yaml (or the file named by RELAY_CONFIG) and applies
// RELAY_* environment overrides. Nested keys use a double underscore, so
// RELAY_TELEGRAM__TOKEN sets telegram.token. List values are comma separated.
func Load() (*Config, error) {
	k := koanf.New(".")

	path, explicit := os.LookupEnv(envPrefix + "CONFIG")
	if !explicit {
		path = defaultPath
	}
	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, &ConfigError{Field: "file", Reason: err.Error()}
		}
	} else if explicit {
		return nil, &ConfigError{Field: "file", Reason: err.Error()}
	}

	if err := k.Load(env.ProviderWithValue(envPrefix, ".", envKey), nil); err != nil {
		return nil, &ConfigError{Field: "env", Reason: err.Error()}
	}

	cfg := defaults()
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, &ConfigError{Field: "decode", Reason: err.Error()}
	}

	return &cfg, nil
}

func envKey(key, value string) (string, interface{}) {
	key = strings.TrimPrefix(key, envPrefix)
	if key == "CONFIG" {
		return "", nil
	}
	key = strings.ReplaceAll(strings.ToLower(key), "__", ".")

	if key == "source_ids" {
		var ids []string
		for _, s := range strings.Split(value, ",") {
			if s = strings.TrimSpace(s); s != "" {
				ids = append(ids, s)
			}
		}
		return key, ids
	}
	return key, value
}

// Validate checks the settings the relay cannot start without.
func (c *Config) Validate() error {
	var errs []error
	add := func(field, reason string) {
		errs = append(errs, &ConfigError{Field: field, Reason: reason})
	}

	if strings.TrimSpace(c.Telegram.Token) == "" {
		add("telegram.token", "missing bot token")
	}
	if c.Telegram.PollTimeout < 0 {
		add("telegram.poll_timeout", "must not be negative")
	}
	if len(c.Subscriptions()) == 0 {
		add("source_ids", "no sources configured")
	}

	policy, ok := routing.ParseDuplicatePolicy(c.Routing.OnDuplicate)
	if !ok {
		add("routing.on_duplicate", fmt.Sprintf("unknown policy %q", c.Routing.OnDuplicate))
	}
	if policy == routing.DuplicateReject {
		seen := make(map[int64]bool, len(c.Sources))
		for _, s := range c.Sources {
			if seen[s.ID] {
				add("sources", fmt.Sprintf("source %d declared more than once", s.ID))
			}
			seen[s.ID] = true
		}
	}

	for _, s := range c.Sources {
		if s.ID == 0 {
			add("sources", "source id must be non-zero")
		}
		if _, ok := filter.ParseMode(s.Match); !ok {
			add("sources", fmt.Sprintf("source %d: unknown match mode %q", s.ID, s.Match))
		}
		if hasEmpty(s.Keywords) {
			add("sources", fmt.Sprintf("source %d: empty keyword", s.ID))
		}
		if hasEmpty(s.Stopwords) {
			add("sources", fmt.Sprintf("source %d: empty stop-word", s.ID))
		}
	}
	for i, f := range c.Filters {
		if len(f.Sources) == 0 {
			add("filters", fmt.Sprintf("filter %d (%s) has no sources", i, f.Name))
		}
		if _, ok := filter.ParseMode(f.Match); !ok {
			add("filters", fmt.Sprintf("filter %d (%s): unknown match mode %q", i, f.Name, f.Match))
		}
		if hasEmpty(f.Keywords) {
			add("filters", fmt.Sprintf("filter %d (%s): empty keyword", i, f.Name))
		}
	}
	for i, f := range c.Feeds {
		if f.URL == "" || f.SourceID == 0 {
			add("feeds", fmt.Sprintf("feed %d needs url and source_id", i))
		}
	}

	if c.Queue.Capacity < 0 {
		add("queue.capacity", "must not be negative")
	}
	if _, err := queue.ParseOverflow(c.Queue.Overflow); err != nil {
		add("queue.overflow", err.Error())
	}
	switch strings.ToLower(c.Worker.Restart) {
	case "", "resume", "exit":
	default:
		add("worker.restart", fmt.Sprintf("unknown policy %q", c.Worker.Restart))
	}

	return errors.Join(errs...)
}

// hasEmpty reports a blank pattern, which would otherwise match every message.
func hasEmpty(patterns []string) bool {
	for _, p := range patterns {
		if strings.TrimSpace(p) == "" {
			return true
		}
	}
	return false
}

// Subscriptions returns the chats the relay listens on: source_ids when set,
// otherwise every declared source, plus every feed's source id.
func (c *Config) Subscriptions() []int64 {
	seen := make(map[int64]bool)
	var ids []int64
	add := func(id int64) {
		if id != 0 && !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}

	if len(c.SourceIDs) > 0 {
		for _, id := range c.SourceIDs {
			add(id)
		}
	} else {
		for _, s := range c.Sources {
			add(s.ID)
		}
	}
	for _, f := range c.Feeds {
		add(f.SourceID)
	}
	return ids
}
