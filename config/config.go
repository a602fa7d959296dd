package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds everything tunable at startup. Values are resolved in the
// usual order: flags over environment over config file over defaults.
type Config struct {
	APIListenAddr  string `mapstructure:"api_listen_addr"`
	WSListenAddr   string `mapstructure:"ws_listen_addr"`
	LogLevel       string `mapstructure:"log_level"`
	SendQueueDepth int    `mapstructure:"send_queue_depth"`
}

// Load parses command line arguments and merges them with SIGNALING_*
// environment variables and an optional signaling.yaml in the working
// directory or ./config.
func Load(args []string) (*Config, error) {
	fs := pflag.NewFlagSet("signaling", pflag.ContinueOnError)
	fs.StringP("api-listen-addr", "a", ":8080", "api listen address")
	fs.StringP("ws-listen-addr", "w", ":4000", "websocket signaling listen address")
	fs.StringP("log-level", "l", "debug", "log level")
	fs.Int("send-queue-depth", 256, "per-connection outbound queue depth")
	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("failed to parse command line arguments: %w", err)
	}

	v := viper.New()
	v.SetConfigName("signaling")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetEnvPrefix("SIGNALING")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	for flagKey, cfgKey := range map[string]string{
		"api-listen-addr":  "api_listen_addr",
		"ws-listen-addr":   "ws_listen_addr",
		"log-level":        "log_level",
		"send-queue-depth": "send_queue_depth",
	} {
		if err := v.BindPFlag(cfgKey, fs.Lookup(flagKey)); err != nil {
			return nil, fmt.Errorf("failed to bind flag %s: %w", flagKey, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
