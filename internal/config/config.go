package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/hammelm/mempeek/internal/ast"
	"github.com/hammelm/mempeek/internal/env"
)

// Config represents the ~/.mempeek/config.toml file: the defaults a fresh
// interpreter starts with before any command-line flags or def/print
// statements override them.
type Config struct {
	Device        string   `toml:"device,omitempty" json:"device"`
	IncludePaths  []string `toml:"include_paths,omitempty" json:"include_paths"`
	WordSize      int      `toml:"word_size,omitempty" json:"word_size"`
	PrintModifier string   `toml:"print_modifier,omitempty" json:"print_modifier"`
	History       History  `toml:"history,omitempty" json:"history"`
}

// History holds REPL command-history preferences.
type History struct {
	MaxSize int `toml:"max_size,omitempty" json:"max_size"`
}

// configDirOverride is set by the --config-dir flag or MEMPEEK_HOME env var.
var configDirOverride string

// SetConfigDir allows the CLI to pass in the --config-dir / MEMPEEK_HOME value.
func SetConfigDir(dir string) {
	configDirOverride = dir
}

// Home returns the config directory path.
// Precedence: --config-dir flag / SetConfigDir > MEMPEEK_HOME env > ~/.mempeek
func Home() string {
	if configDirOverride != "" {
		return configDirOverride
	}
	if v := os.Getenv("MEMPEEK_HOME"); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".mempeek")
	}
	return filepath.Join(home, ".mempeek")
}

// ConfigPath returns the full path to config.toml.
func ConfigPath() string {
	return filepath.Join(Home(), "config.toml")
}

// HistoryPath returns the full path to the REPL history file.
func HistoryPath() string {
	return filepath.Join(Home(), "history")
}

// EnsureDir creates the config home directory if it does not exist.
func EnsureDir() error {
	return os.MkdirAll(Home(), 0o755)
}

// defaults mirrors the interpreter's own built-in defaults (64-bit words,
// hex printing) so a missing config.toml behaves identically to one that
// spells them out.
func defaults() *Config {
	return &Config{
		WordSize:      64,
		PrintModifier: "hex",
		History:       History{MaxSize: 500},
	}
}

// Load reads config.toml and returns a Config struct.
// If the file does not exist, it returns the built-in defaults.
func Load() (*Config, error) {
	cfg := defaults()
	data, err := os.ReadFile(ConfigPath())
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config.toml: %w", err)
	}
	return cfg, nil
}

// Save writes the Config struct back to config.toml.
func Save(cfg *Config) error {
	if err := EnsureDir(); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}
	data, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	return os.WriteFile(ConfigPath(), data, 0o644)
}

// validKeys lists the dot-separated keys that can be used with Get/Set.
var validKeys = map[string]bool{
	"device":           true,
	"include_paths":    true,
	"word_size":        true,
	"print_modifier":   true,
	"history.max_size": true,
}

// Get retrieves a single config value by dot-separated key.
func Get(key string) (string, error) {
	if !validKeys[key] {
		return "", fmt.Errorf("unknown config key: %s", key)
	}
	cfg, err := Load()
	if err != nil {
		return "", err
	}
	return getField(cfg, key)
}

// Set sets a single config value by dot-separated key.
func Set(key, value string) error {
	if !validKeys[key] {
		return fmt.Errorf("unknown config key: %s", key)
	}
	cfg, err := Load()
	if err != nil {
		return err
	}
	if err := setField(cfg, key, value); err != nil {
		return err
	}
	return Save(cfg)
}

func getField(cfg *Config, key string) (string, error) {
	switch key {
	case "device":
		return cfg.Device, nil
	case "include_paths":
		return strings.Join(cfg.IncludePaths, ","), nil
	case "word_size":
		return strconv.Itoa(cfg.WordSize), nil
	case "print_modifier":
		return cfg.PrintModifier, nil
	case "history.max_size":
		return strconv.Itoa(cfg.History.MaxSize), nil
	default:
		return "", fmt.Errorf("unknown config key: %s", key)
	}
}

// Apply pushes the config's startup defaults into a freshly built
// environment: word size, print modifier, and include paths. Device is
// not applied here since map() statements name their own device, and a
// config-wide device is only a default used by the cmd/mempeek flags.
func Apply(cfg *Config, e *env.Environment) error {
	if cfg.WordSize != 0 {
		e.SetDefaultWordSize(cfg.WordSize)
	}
	mod, err := parsePrintModifier(cfg.PrintModifier)
	if err != nil {
		return err
	}
	if cfg.PrintModifier != "" {
		e.SetDefaultPrintModifier(mod)
	}
	for _, dir := range cfg.IncludePaths {
		e.AddIncludePath(dir)
	}
	return nil
}

func parsePrintModifier(s string) (uint64, error) {
	var mt ast.PrintModType
	switch s {
	case "", "hex":
		mt = ast.ModHex
	case "dec":
		mt = ast.ModDec
	case "bin":
		mt = ast.ModBin
	case "signed":
		mt = ast.ModSignedDec
	default:
		return 0, fmt.Errorf("unknown print modifier %q", s)
	}
	return uint64(mt) | uint64(ast.ModWordSize)<<8, nil
}

func setField(cfg *Config, key, value string) error {
	switch key {
	case "device":
		cfg.Device = value
	case "include_paths":
		if value == "" {
			cfg.IncludePaths = nil
		} else {
			cfg.IncludePaths = strings.Split(value, ",")
		}
	case "word_size":
		n, err := strconv.Atoi(value)
		if err != nil || (n != 8 && n != 16 && n != 32 && n != 64) {
			return fmt.Errorf("word_size must be one of 8, 16, 32, 64")
		}
		cfg.WordSize = n
	case "print_modifier":
		switch value {
		case "hex", "dec", "bin", "signed":
			cfg.PrintModifier = value
		default:
			return fmt.Errorf("print_modifier must be one of hex, dec, bin, signed")
		}
	case "history.max_size":
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 {
			return fmt.Errorf("history.max_size must be a non-negative integer")
		}
		cfg.History.MaxSize = n
	default:
		return fmt.Errorf("unknown config key: %s", key)
	}
	return nil
}
