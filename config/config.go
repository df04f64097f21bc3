package config

import (
	"crypto/tls"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultFrontendOrigin = "https://kaamkaaz-frontend.onrender.com"

// Config holds the service settings read from the environment.
type Config struct {
	ListenAddr      string
	FrontendOrigins []string
	Debug           bool
	LogFormat       string
	SeedSampleData  bool
	BodyLimit       string
	Pprof           bool
	ShutdownTimeout time.Duration

	RedisConnectionString string
	IdempotencyTTL        time.Duration

	StorageConnectionString string
	EventsQueue             string
	EventWorkers            int
	EventBuffer             int
	EventTimeout            time.Duration
	EventHandoffTimeout     time.Duration
}

// Load reads the configuration from environment variables.
func Load() (Config, error) {
	return load(os.LookupEnv)
}

func load(lookup func(string) (string, bool)) (Config, error) {
	p := parser{lookup: lookup}
	cfg := Config{
		ListenAddr:      ":" + p.str("PORT", "8000"),
		FrontendOrigins: p.list("FRONTEND_ORIGINS", []string{defaultFrontendOrigin}),
		Debug:           p.boolean("DEBUG", false),
		LogFormat:       strings.ToLower(p.str("LOG_FORMAT", "text")),
		SeedSampleData:  p.boolean("SEED_SAMPLE_DATA", true),
		BodyLimit:       p.str("BODY_LIMIT", "64K"),
		Pprof:           p.boolean("PPROF", false),
		ShutdownTimeout: p.duration("SHUTDOWN_TIMEOUT", 10*time.Second),

		RedisConnectionString: p.str("REDIS_CONNECTION_STRING", ""),
		IdempotencyTTL:        p.duration("IDEMPOTENCY_TTL", 24*time.Hour),

		StorageConnectionString: p.str("STORAGE_CONNECTION_STRING", ""),
		EventsQueue:             p.str("EVENTS_QUEUE", ""),
		EventWorkers:            p.positiveInt("EVENT_WORKERS", 4),
		EventBuffer:             p.positiveInt("EVENT_BUFFER", 1024),
		EventTimeout:            p.duration("EVENT_TIMEOUT", 30*time.Second),
		EventHandoffTimeout:     p.duration("EVENT_HANDOFF_TIMEOUT", 15*time.Millisecond),
	}
	if cfg.LogFormat != "text" && cfg.LogFormat != "json" {
		p.fail("LOG_FORMAT", fmt.Errorf("unsupported format %q", cfg.LogFormat))
	}
	if (cfg.StorageConnectionString == "") != (cfg.EventsQueue == "") {
		p.errs = append(p.errs, errors.New("STORAGE_CONNECTION_STRING and EVENTS_QUEUE must be set together"))
	}
	if len(p.errs) > 0 {
		return Config{}, errors.Join(p.errs...)
	}
	return cfg, nil
}

// PublishEvents reports whether board events go to a storage queue.
func (c Config) PublishEvents() bool {
	return c.StorageConnectionString != "" && c.EventsQueue != ""
}

// RedisOptions parses the Redis connection string. Both redis:// URLs and the
// "host:port,password=...,ssl=true" form are accepted.
func (c Config) RedisOptions() (*redis.Options, error) {
	if c.RedisConnectionString == "" {
		return nil, errors.New("redis connection string is empty")
	}
	if opts, err := redis.ParseURL(c.RedisConnectionString); err == nil {
		return opts, nil
	}
	parts := strings.Split(c.RedisConnectionString, ",")
	if strings.Contains(parts[0], "://") || strings.TrimSpace(parts[0]) == "" {
		return nil, fmt.Errorf("invalid redis address %q", parts[0])
	}
	opts := &redis.Options{Addr: strings.TrimSpace(parts[0])}
	for _, p := range parts[1:] {
		kv := strings.SplitN(p, "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch strings.ToLower(strings.TrimSpace(kv[0])) {
		case "password":
			opts.Password = kv[1]
		case "ssl":
			if strings.EqualFold(kv[1], "true") {
				opts.TLSConfig = &tls.Config{}
			}
		}
	}
	return opts, nil
}

type parser struct {
	lookup func(string) (string, bool)
	errs   []error
}

func (p *parser) fail(key string, err error) {
	p.errs = append(p.errs, fmt.Errorf("invalid %s: %w", key, err))
}

func (p *parser) raw(key string) (string, bool) {
	v, ok := p.lookup(key)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

func (p *parser) str(key, def string) string {
	if v, ok := p.raw(key); ok {
		return v
	}
	return def
}

func (p *parser) list(key string, def []string) []string {
	v, ok := p.raw(key)
	if !ok {
		return def
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}

func (p *parser) boolean(key string, def bool) bool {
	v, ok := p.raw(key)
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		p.fail(key, err)
		return def
	}
	return b
}

func (p *parser) positiveInt(key string, def int) int {
	v, ok := p.raw(key)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.fail(key, err)
		return def
	}
	if n <= 0 {
		p.fail(key, errors.New("must be greater than zero"))
		return def
	}
	return n
}

func (p *parser) duration(key string, def time.Duration) time.Duration {
	v, ok := p.raw(key)
	if !ok {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		p.fail(key, err)
		return def
	}
	if d <= 0 {
		p.fail(key, errors.New("must be greater than zero"))
		return def
	}
	return d
}
