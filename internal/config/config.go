// Package config loads the crawler's run configuration from command-line
// flags, environment variables, and an optional config.yaml, layered the
// way github.com/spf13/viper layers them: flags win, then env, then the
// file, then the defaults set here.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config is the resolved set of values a run needs. CAS_USERNAME and
// CAS_PASSWORD are deliberately absent: the CAS handshake reads those two
// directly from the environment (cas.EnvOrPrompt), never through viper, so
// the documented two-variable contract stays exact regardless of whatever
// else this layer grows.
type Config struct {
	Concurrency     int
	CASHost         string
	AllowedDomains  []string
	Blacklist       []string
	DataDir         string
	Timeout         time.Duration
	TrackEdges      bool
	SearchSinkURL   string
	SearchSinkIndex string
	SearchSinkKey   string
	StoreDSN        string
	MetricsPort     int
}

// Load builds a Config from flags already registered on fs, layering in
// OPENFINDER_-prefixed environment variables and an optional config.yaml
// discovered in the current directory or configDir.
func Load(fs *pflag.FlagSet, configDir string) (Config, error) {
	v := viper.New()

	v.SetDefault("concurrency", 20)
	v.SetDefault("cas-host", "")
	v.SetDefault("allowed-domains", []string{})
	v.SetDefault("blacklist", []string{})
	v.SetDefault("data-dir", "./data")
	v.SetDefault("timeout", 2*time.Second)
	v.SetDefault("track-edges", false)
	v.SetDefault("search-sink-url", "http://localhost:7700")
	v.SetDefault("search-sink-index", "docs")
	v.SetDefault("search-sink-key", "key")
	v.SetDefault("store-dsn", "")
	v.SetDefault("metrics-port", 0)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if configDir != "" {
		v.AddConfigPath(configDir)
	}
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return Config{}, fmt.Errorf("config: reading config.yaml: %w", err)
		}
	}

	v.SetEnvPrefix("OPENFINDER")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if fs != nil {
		if err := v.BindPFlags(fs); err != nil {
			return Config{}, fmt.Errorf("config: binding flags: %w", err)
		}
	}

	return Config{
		Concurrency:     v.GetInt("concurrency"),
		CASHost:         v.GetString("cas-host"),
		AllowedDomains:  v.GetStringSlice("allowed-domains"),
		Blacklist:       v.GetStringSlice("blacklist"),
		DataDir:         v.GetString("data-dir"),
		Timeout:         v.GetDuration("timeout"),
		TrackEdges:      v.GetBool("track-edges"),
		SearchSinkURL:   v.GetString("search-sink-url"),
		SearchSinkIndex: v.GetString("search-sink-index"),
		SearchSinkKey:   v.GetString("search-sink-key"),
		StoreDSN:        v.GetString("store-dsn"),
		MetricsPort:     v.GetInt("metrics-port"),
	}, nil
}
