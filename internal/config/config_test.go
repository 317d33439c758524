package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/hammelm/mempeek/internal/env"
)

func withTempHome(t *testing.T) string {
	t.Helper()
	tmp := t.TempDir()
	SetConfigDir(tmp)
	t.Cleanup(func() { SetConfigDir("") })
	return tmp
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	withTempHome(t)

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.WordSize != 64 {
		t.Fatalf("WordSize = %d, want 64", cfg.WordSize)
	}
	if cfg.PrintModifier != "hex" {
		t.Fatalf("PrintModifier = %q, want hex", cfg.PrintModifier)
	}
	if cfg.History.MaxSize != 500 {
		t.Fatalf("History.MaxSize = %d, want 500", cfg.History.MaxSize)
	}
}

func TestLoadValidConfig(t *testing.T) {
	tmp := withTempHome(t)

	content := `device = "/dev/mem2"
include_paths = ["/usr/local/share/mempeek"]
word_size = 32
print_modifier = "dec"

[history]
max_size = 200
`
	if err := os.WriteFile(filepath.Join(tmp, "config.toml"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Device != "/dev/mem2" {
		t.Fatalf("Device = %q, want /dev/mem2", cfg.Device)
	}
	if len(cfg.IncludePaths) != 1 || cfg.IncludePaths[0] != "/usr/local/share/mempeek" {
		t.Fatalf("IncludePaths = %v", cfg.IncludePaths)
	}
	if cfg.WordSize != 32 {
		t.Fatalf("WordSize = %d, want 32", cfg.WordSize)
	}
	if cfg.History.MaxSize != 200 {
		t.Fatalf("History.MaxSize = %d, want 200", cfg.History.MaxSize)
	}
}

func TestLoadMalformedTOML(t *testing.T) {
	tmp := withTempHome(t)

	if err := os.WriteFile(filepath.Join(tmp, "config.toml"), []byte("not valid [[ toml"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(); err == nil {
		t.Fatal("expected an error for malformed config.toml")
	}
}

func TestSetThenGetRoundtrip(t *testing.T) {
	withTempHome(t)

	if err := Set("word_size", "32"); err != nil {
		t.Fatal(err)
	}
	val, err := Get("word_size")
	if err != nil {
		t.Fatal(err)
	}
	if val != "32" {
		t.Fatalf("word_size = %q, want 32", val)
	}
}

func TestSetInvalidWordSizeRejected(t *testing.T) {
	withTempHome(t)

	if err := Set("word_size", "17"); err == nil {
		t.Fatal("expected an error for an invalid word_size")
	}
}

func TestGetUnknownKey(t *testing.T) {
	withTempHome(t)

	if _, err := Get("nonexistent_key"); err == nil {
		t.Fatal("expected an error for an unknown config key")
	}
}

func TestApplyPushesDefaultsIntoEnvironment(t *testing.T) {
	e := env.New()
	cfg := &Config{WordSize: 32, PrintModifier: "dec", IncludePaths: []string{t.TempDir()}}

	if err := Apply(cfg, e); err != nil {
		t.Fatal(err)
	}
	if e.DefaultWordSize() != 32 {
		t.Fatalf("DefaultWordSize = %d, want 32", e.DefaultWordSize())
	}
}
