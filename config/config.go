// Package config loads the engine's runtime configuration from an
// optional engine.yaml plus MATCHBOOK_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Development bool `mapstructure:"development"`

	// Mode selects the run shape: "simulate" drives the two-phase
	// dataset + random simulation, "stream" consumes the Kafka feed
	// until interrupted.
	Mode string `mapstructure:"mode"`

	Workers   int `mapstructure:"workers"`
	QueueSize int `mapstructure:"queue_size"`

	DatasetPath string `mapstructure:"dataset_path"`

	Random struct {
		Count   int    `mapstructure:"count"`
		Tickers int    `mapstructure:"tickers"`
		Seed    uint64 `mapstructure:"seed"`
	} `mapstructure:"random"`

	Tape struct {
		Dir         string        `mapstructure:"dir"`
		SegmentSize int64         `mapstructure:"segment_size"`
		SegmentAge  time.Duration `mapstructure:"segment_age"`
	} `mapstructure:"tape"`

	Outbox struct {
		Dir string `mapstructure:"dir"`
	} `mapstructure:"outbox"`

	Kafka struct {
		Brokers    []string `mapstructure:"brokers"`
		FeedTopic  string   `mapstructure:"feed_topic"`
		TradeTopic string   `mapstructure:"trade_topic"`
		Group      string   `mapstructure:"group"`
	} `mapstructure:"kafka"`

	Janitor struct {
		Interval   time.Duration `mapstructure:"interval"`
		PruneLimit int           `mapstructure:"prune_limit"`
	} `mapstructure:"janitor"`

	Broadcaster struct {
		Interval time.Duration `mapstructure:"interval"`
	} `mapstructure:"broadcaster"`
}

// Load reads engine.yaml from path (missing file is fine, defaults
// apply) and overlays MATCHBOOK_* environment variables, e.g.
// MATCHBOOK_WORKERS=8 or MATCHBOOK_KAFKA_BROKERS=host:9092.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetConfigName("engine")
	v.SetConfigType("yaml")
	v.AddConfigPath(path)

	v.SetEnvPrefix("MATCHBOOK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("development", false)
	v.SetDefault("mode", "simulate")
	v.SetDefault("workers", 4)
	v.SetDefault("queue_size", 1024)

	v.SetDefault("dataset_path", "")

	v.SetDefault("random.count", 10000)
	v.SetDefault("random.tickers", 1024)
	v.SetDefault("random.seed", 42)

	v.SetDefault("tape.dir", "./data/tape")
	v.SetDefault("tape.segment_size", 2*1024*1024)
	v.SetDefault("tape.segment_age", time.Minute)

	v.SetDefault("outbox.dir", "./data/outbox")

	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.feed_topic", "orders")
	v.SetDefault("kafka.trade_topic", "trades")
	v.SetDefault("kafka.group", "matchbook")

	v.SetDefault("janitor.interval", 2*time.Second)
	v.SetDefault("janitor.prune_limit", 4096)

	v.SetDefault("broadcaster.interval", 250*time.Millisecond)
}
