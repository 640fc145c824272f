package config

import (
	"os"
	"testing"

	"github.com/spf13/pflag"
)

func TestLoadDefaults(t *testing.T) {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.Int("concurrency", 20, "")

	cfg, err := Load(fs, t.TempDir())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Concurrency != 20 {
		t.Errorf("expected default concurrency 20, got %d", cfg.Concurrency)
	}
	if cfg.SearchSinkURL != "http://localhost:7700" {
		t.Errorf("unexpected default search sink url %q", cfg.SearchSinkURL)
	}
	if cfg.SearchSinkIndex != "docs" {
		t.Errorf("unexpected default search sink index %q", cfg.SearchSinkIndex)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("OPENFINDER_CAS_HOST", "cas.example.com")

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	cfg, err := Load(fs, t.TempDir())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.CASHost != "cas.example.com" {
		t.Errorf("expected env override of cas-host, got %q", cfg.CASHost)
	}
}

func TestLoadFlagOverridesEnv(t *testing.T) {
	t.Setenv("OPENFINDER_CONCURRENCY", "5")

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.Int("concurrency", 20, "")
	if err := fs.Set("concurrency", "40"); err != nil {
		t.Fatalf("setting flag: %v", err)
	}

	cfg, err := Load(fs, t.TempDir())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Concurrency != 40 {
		t.Errorf("expected flag value 40 to win over env, got %d", cfg.Concurrency)
	}
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	yaml := "data-dir: /tmp/openfinder-data\nallowed-domains:\n  - example.com\n"
	if err := os.WriteFile(dir+"/config.yaml", []byte(yaml), 0o644); err != nil {
		t.Fatalf("writing config.yaml: %v", err)
	}

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	cfg, err := Load(fs, dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DataDir != "/tmp/openfinder-data" {
		t.Errorf("expected data-dir from config.yaml, got %q", cfg.DataDir)
	}
	if len(cfg.AllowedDomains) != 1 || cfg.AllowedDomains[0] != "example.com" {
		t.Errorf("expected allowed-domains from config.yaml, got %v", cfg.AllowedDomains)
	}
}
