package config

import (
	"net/url"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/pkg/errors"

	"github.com/sonirico/wsfeed"
)

// EnvPrefix is the prefix of every environment variable read by Load.
const EnvPrefix = "WSFEED_"

type Config struct {
	Feed    FeedConfig    `koanf:"feed"`
	Logging LoggingConfig `koanf:"logging"`
	Sink    SinkConfig    `koanf:"sink"`
	Metrics MetricsConfig `koanf:"metrics"`
}

type FeedConfig struct {
	URL                   string        `koanf:"url"`
	ReconnectDelay        time.Duration `koanf:"reconnect_delay"`
	MaxReconnectAttempts  int           `koanf:"max_reconnect_attempts"`
	LivenessTimeout       time.Duration `koanf:"liveness_timeout"`
	LivenessCheckInterval time.Duration `koanf:"liveness_check_interval"`
	// PingInterval enables active websocket pings when positive.
	PingInterval     time.Duration `koanf:"ping_interval"`
	HandshakeTimeout time.Duration `koanf:"handshake_timeout"`
	ProductIDs       []string      `koanf:"product_ids"`
	Channels         []string      `koanf:"channels"`
}

type LoggingConfig struct {
	// Level is one of debug, info, warn or error.
	Level       string `koanf:"level"`
	Development bool   `koanf:"development"`
}

type SinkConfig struct {
	Influx InfluxConfig `koanf:"influx"`
	NATS   NATSConfig   `koanf:"nats"`
}

type InfluxConfig struct {
	Enabled       bool          `koanf:"enabled"`
	URL           string        `koanf:"url"`
	Org           string        `koanf:"org"`
	Bucket        string        `koanf:"bucket"`
	Token         string        `koanf:"token"`
	FlushInterval time.Duration `koanf:"flush_interval"`
}

type NATSConfig struct {
	Enabled       bool   `koanf:"enabled"`
	URL           string `koanf:"url"`
	SubjectPrefix string `koanf:"subject_prefix"`
}

type MetricsConfig struct {
	Enabled bool   `koanf:"enabled"`
	Address string `koanf:"address"`
}

// Load reads the configuration. Environment variables take precedence over the file at configPath,
// which takes precedence over defaults. configPath may be empty.
func Load(configPath string) (*Config, error) {
	cfg := defaultConfig()

	k := koanf.New(".")

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, errors.Wrap(err, "failed to load config file")
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, errors.Wrap(err, "failed to load environment variables")
	}

	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{
		DecoderConfig: &mapstructure.DecoderConfig{
			TagName:          "koanf",
			WeaklyTypedInput: true,
			Result:           cfg,
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				mapstructure.StringToSliceHookFunc(","),
			),
		},
	}); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}

	cfg.Feed.ProductIDs = compact(cfg.Feed.ProductIDs)
	cfg.Feed.Channels = compact(cfg.Feed.Channels)
	if len(cfg.Feed.Channels) == 0 {
		cfg.Feed.Channels = []string{wsfeed.HeartbeatChannel, wsfeed.TickerChannel}
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}

	return cfg, nil
}

// envKey maps WSFEED_SINK_INFLUX_FLUSH__INTERVAL to sink.influx.flush_interval.
func envKey(s string) string {
	s = strings.TrimPrefix(s, EnvPrefix)
	s = strings.ToLower(s)

	s = strings.ReplaceAll(s, "__", "%UNDERSCORE%")
	s = strings.ReplaceAll(s, "_", ".")
	return strings.ReplaceAll(s, "%UNDERSCORE%", "_")
}

func defaultConfig() *Config {
	return &Config{
		Feed: FeedConfig{
			URL:                   wsfeed.DefaultURL,
			ReconnectDelay:        wsfeed.DefaultReconnectDelay,
			MaxReconnectAttempts:  wsfeed.DefaultMaxReconnectAttempts,
			LivenessTimeout:       wsfeed.DefaultLivenessTimeout,
			LivenessCheckInterval: wsfeed.DefaultLivenessCheckInterval,
			PingInterval:          0,
			HandshakeTimeout:      10 * time.Second,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Sink: SinkConfig{
			Influx: InfluxConfig{
				URL:           "http://localhost:8086",
				FlushInterval: 10 * time.Second,
			},
			NATS: NATSConfig{
				URL:           "nats://127.0.0.1:4222",
				SubjectPrefix: "wsfeed",
			},
		},
		Metrics: MetricsConfig{
			Address: ":9090",
		},
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	u, err := url.Parse(c.Feed.URL)
	if err != nil {
		return errors.Wrapf(err, "invalid feed.url %q", c.Feed.URL)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return errors.Errorf("feed.url must use ws or wss, got: %q", u.Scheme)
	}

	if len(c.Feed.ProductIDs) == 0 {
		return errors.New("feed.product_ids cannot be empty")
	}
	if len(c.Feed.Channels) == 0 {
		return errors.New("feed.channels cannot be empty")
	}
	if c.Feed.MaxReconnectAttempts <= 0 {
		return errors.Errorf("invalid feed.max_reconnect_attempts: %d (must be > 0)", c.Feed.MaxReconnectAttempts)
	}
	if c.Feed.LivenessTimeout <= 0 {
		return errors.Errorf("invalid feed.liveness_timeout: %s (must be > 0)", c.Feed.LivenessTimeout)
	}
	if c.Feed.ReconnectDelay < 0 {
		return errors.Errorf("invalid feed.reconnect_delay: %s", c.Feed.ReconnectDelay)
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return errors.Errorf("logging.level must be one of debug, info, warn or error, got: %s", c.Logging.Level)
	}

	if c.Sink.Influx.Enabled {
		if c.Sink.Influx.Token == "" {
			return errors.New("sink.influx.token is required when the influx sink is enabled")
		}
		if c.Sink.Influx.Org == "" || c.Sink.Influx.Bucket == "" {
			return errors.New("sink.influx.org and sink.influx.bucket are required when the influx sink is enabled")
		}
		if c.Sink.Influx.FlushInterval <= 0 {
			return errors.Errorf("invalid sink.influx.flush_interval: %s", c.Sink.Influx.FlushInterval)
		}
	}

	if c.Sink.NATS.Enabled && c.Sink.NATS.SubjectPrefix == "" {
		return errors.New("sink.nats.subject_prefix cannot be empty when the nats sink is enabled")
	}

	if c.Metrics.Enabled && c.Metrics.Address == "" {
		return errors.New("metrics.address cannot be empty when metrics are enabled")
	}

	return nil
}

// SubscribeRequest builds the request subscribing every configured channel to every product.
func (c FeedConfig) SubscribeRequest() wsfeed.SubscribeRequest {
	channels := make([]wsfeed.Channel, 0, len(c.Channels))
	for _, name := range c.Channels {
		channels = append(channels, wsfeed.NewChannel(name, c.ProductIDs...))
	}
	return wsfeed.NewSubscribeRequest(channels...)
}

func compact(values []string) []string {
	out := values[:0]
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
