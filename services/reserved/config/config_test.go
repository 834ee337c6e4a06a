package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
auth:
  api_tokens: ["token-a"]
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ListenAddress != ":8661" {
		t.Fatalf("unexpected listen address: %q", cfg.ListenAddress)
	}
	if cfg.DataDir != "data/reserved" {
		t.Fatalf("unexpected data dir: %q", cfg.DataDir)
	}
	if cfg.RateLimit.RequestsPerMinute != 600 || cfg.RateLimit.Burst != 50 {
		t.Fatalf("unexpected rate limit defaults: %+v", cfg.RateLimit)
	}
}

func TestLoadNormalisesAssets(t *testing.T) {
	path := writeConfig(t, `
assets: [" usd ", "", "eur"]
auth:
  admin_tokens: ["admin-a"]
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cfg.Assets) != 2 || cfg.Assets[0] != "USD" || cfg.Assets[1] != "EUR" {
		t.Fatalf("unexpected assets: %v", cfg.Assets)
	}
}

func TestLoadRequiresTokens(t *testing.T) {
	path := writeConfig(t, `
listen: ":9000"
`)
	if _, err := Load(path); err == nil {
		t.Fatalf("expected error when no tokens are configured")
	}
}

func TestLoadRejectsMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
	if _, err := Load(""); err == nil {
		t.Fatalf("expected error for empty path")
	}
}
