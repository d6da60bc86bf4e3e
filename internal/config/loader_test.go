package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	got := DefaultConfig()

	if got.Theme != "catppuccin-mocha" {
		t.Fatalf("Theme = %q, want catppuccin-mocha", got.Theme)
	}
	if !got.Network.InterceptTransport {
		t.Fatal("InterceptTransport = false, want true")
	}
	if got.Network.MaxBodyBytes != 1<<20 {
		t.Fatalf("MaxBodyBytes = %d, want 1MiB", got.Network.MaxBodyBytes)
	}
	if got.Network.Timeout != 30*time.Second {
		t.Fatalf("Timeout = %s, want 30s", got.Network.Timeout)
	}
	if got.Log.Level != "info" || got.Log.Format != "console" {
		t.Fatalf("Log = %+v, want info/console", got.Log)
	}
}

func TestLoadReturnsDefaultsWhenConfigMissing(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	got := Load()
	want := DefaultConfig()

	if got != want {
		t.Fatalf("Load() = %#v, want defaults %#v", got, want)
	}
}

func writeConfig(t *testing.T, home, content string) string {
	t.Helper()
	configDir := filepath.Join(home, ".config", "netwatch")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		t.Fatalf("MkdirAll() failed: %v", err)
	}
	path := filepath.Join(configDir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile() failed: %v", err)
	}
	return path
}

func TestLoadReadsConfigFile(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	writeConfig(t, home, `theme: nord
network:
  intercept_transport: false
  max_body_bytes: 4096
  timeout: 5s
  proxy: socks5://127.0.0.1:1080
  no_proxy: localhost
log:
  level: debug
  format: json
  file: /tmp/netwatch.log
`)

	got := Load()

	if got.Theme != "nord" {
		t.Fatalf("Theme = %q, want nord", got.Theme)
	}
	if got.Network.InterceptTransport {
		t.Fatal("InterceptTransport = true, want false")
	}
	if got.Network.MaxBodyBytes != 4096 {
		t.Fatalf("MaxBodyBytes = %d, want 4096", got.Network.MaxBodyBytes)
	}
	if got.Network.Timeout != 5*time.Second {
		t.Fatalf("Timeout = %s, want 5s", got.Network.Timeout)
	}
	if got.Network.Proxy != "socks5://127.0.0.1:1080" || got.Network.NoProxy != "localhost" {
		t.Fatalf("proxy settings = %q %q", got.Network.Proxy, got.Network.NoProxy)
	}
	if got.Log.Level != "debug" || got.Log.Format != "json" || got.Log.File != "/tmp/netwatch.log" {
		t.Fatalf("Log = %+v", got.Log)
	}
}

func TestLoadMergesPartialConfigWithDefaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	writeConfig(t, home, "theme: gruvbox\n")

	got := Load()
	want := DefaultConfig()
	want.Theme = "gruvbox"

	if got != want {
		t.Fatalf("Load() = %#v, want %#v", got, want)
	}
}

func TestLoadInvalidYAMLKeepsDefaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	path := writeConfig(t, home, "theme: [\n")

	got := Load()
	want := DefaultConfig()

	if got != want {
		t.Fatalf("Load() = %#v, want defaults %#v", got, want)
	}
	if _, err := LoadFile(path); err == nil {
		t.Fatal("LoadFile() error = nil, want parse error")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := DefaultConfig()
	cfg.Theme = "nord"
	cfg.Network.InterceptTransport = false

	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}
	got, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() failed: %v", err)
	}
	if got != cfg {
		t.Fatalf("LoadFile() = %#v, want %#v", got, cfg)
	}

	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Fatalf("expected only the config file, found %d entries", len(entries))
	}
}
