package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/vnykmshr/chanflow/pkg/common/validation"
)

// envPrefix namespaces environment overrides, e.g. CHANLOAD_PRODUCERS=8.
const envPrefix = "CHANLOAD"

// Config holds the load generator settings.
type Config struct {
	Producers     int           `mapstructure:"producers"`
	Consumers     int           `mapstructure:"consumers"`
	Items         int           `mapstructure:"items"`
	Capacity      int           `mapstructure:"capacity"`
	ConsumerDelay time.Duration `mapstructure:"consumerDelay"`
	MetricsAddr   string        `mapstructure:"metricsAddr"`
	SampleSpec    string        `mapstructure:"sampleSpec"`
	LogLevel      string        `mapstructure:"logLevel"`
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	for _, f := range []struct {
		name  string
		value int
	}{
		{"producers", c.Producers},
		{"consumers", c.Consumers},
		{"capacity", c.Capacity},
	} {
		if err := validation.ValidatePositive("chanload", f.name, f.value); err != nil {
			return err
		}
	}
	if err := validation.ValidateNonNegative("chanload", "items", c.Items); err != nil {
		return err
	}
	if err := validation.ValidateNonNegativeDuration("chanload", "consumerDelay", c.ConsumerDelay); err != nil {
		return err
	}
	if _, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel)); err != nil {
		return fmt.Errorf("invalid logLevel %q: %w", c.LogLevel, err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("producers", 4)
	v.SetDefault("consumers", 4)
	v.SetDefault("items", 100000)
	v.SetDefault("capacity", 64)
	v.SetDefault("consumerDelay", time.Duration(0))
	v.SetDefault("metricsAddr", "")
	v.SetDefault("sampleSpec", "@every 1s")
	v.SetDefault("logLevel", "info")
}

func newFlagSet() *pflag.FlagSet {
	fs := pflag.NewFlagSet("chanload", pflag.ContinueOnError)
	fs.String("config", "", "path to a config file (json, yaml or toml)")
	fs.Int("producers", 0, "number of producer goroutines")
	fs.Int("consumers", 0, "number of consumer goroutines")
	fs.Int("items", 0, "total number of items to send")
	fs.Int("capacity", 0, "channel capacity")
	fs.Duration("consumer-delay", 0, "simulated work per received item")
	fs.String("metrics-addr", "", "serve Prometheus metrics on this address, e.g. :9090")
	fs.String("sample-spec", "", `cron spec for occupancy sampling, e.g. "@every 1s"`)
	fs.String("log-level", "", "trace, debug, info, warn or error")
	return fs
}

// loadConfig resolves settings from, in increasing precedence: defaults, the
// config file, CHANLOAD_* environment variables, and command-line flags.
func loadConfig(args []string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	fs := newFlagSet()
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	for key, flag := range map[string]string{
		"producers":     "producers",
		"consumers":     "consumers",
		"items":         "items",
		"capacity":      "capacity",
		"consumerDelay": "consumer-delay",
		"metricsAddr":   "metrics-addr",
		"sampleSpec":    "sample-spec",
		"logLevel":      "log-level",
	} {
		if err := v.BindPFlag(key, fs.Lookup(flag)); err != nil {
			return Config{}, err
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()

	if path, _ := fs.GetString("config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("error decoding config: %w", err)
	}
	return cfg, cfg.Validate()
}
