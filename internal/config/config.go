package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

const (
	Dir          = ".trellis"
	DefaultPath  = Dir + "/config.json"
	defaultDB    = Dir + "/trellis.db"
	defaultSnap  = Dir + "/snapshot.jsonl"
	defaultAddr  = ":8000"
	defaultLevel = "info"
)

// Duration is a time.Duration written as a Go duration string ("5m", "4s")
// in config files.
type Duration time.Duration

func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("duration must be a string: %w", err)
	}
	return d.parse(s)
}

func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	return d.parse(node.Value)
}

func (d *Duration) parse(s string) error {
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(v)
	return nil
}

type Config struct {
	// Addr is where `trellis serve` listens.
	Addr string `json:"addr" yaml:"addr"`
	// ServerURL is the remote the board talks to. When empty the board
	// opens the database directly.
	ServerURL string `json:"server_url" yaml:"server_url"`

	DBPath       string `json:"db_path" yaml:"db_path"`
	SnapshotPath string `json:"snapshot_path" yaml:"snapshot_path"`

	RedisAddr string   `json:"redis_addr" yaml:"redis_addr"`
	CacheTTL  Duration `json:"cache_ttl" yaml:"cache_ttl"`

	LogLevel string `json:"log_level" yaml:"log_level"`

	Board BoardConfig `json:"board" yaml:"board"`
}

type BoardConfig struct {
	// ActivationDistance is how many cells a pressed card must travel
	// before it is lifted.
	ActivationDistance int      `json:"activation_distance" yaml:"activation_distance"`
	ToastDuration      Duration `json:"toast_duration" yaml:"toast_duration"`
	RequestTimeout     Duration `json:"request_timeout" yaml:"request_timeout"`
}

func Default() Config {
	return Config{
		Addr:         defaultAddr,
		DBPath:       defaultDB,
		SnapshotPath: defaultSnap,
		CacheTTL:     Duration(5 * time.Minute),
		LogLevel:     defaultLevel,
		Board: BoardConfig{
			ActivationDistance: 2,
			ToastDuration:      Duration(4 * time.Second),
			RequestTimeout:     Duration(10 * time.Second),
		},
	}
}

// Load reads the config file at path over the defaults. A missing file is
// not an error. Files ending in .yaml or .yml are YAML; anything else is
// JSON, where comments and trailing commas are allowed.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	default:
		if err := json.Unmarshal(jsonc.ToJSON(data), &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.DBPath == "" {
		return errors.New("db_path must not be empty")
	}
	if c.Board.ActivationDistance < 0 {
		return fmt.Errorf("board.activation_distance must be >= 0, got %d", c.Board.ActivationDistance)
	}
	if c.Board.ToastDuration < 0 || c.Board.RequestTimeout < 0 || c.CacheTTL < 0 {
		return errors.New("durations must not be negative")
	}
	return nil
}

// Write stores c as indented JSON at path, creating its directory.
func Write(path string, c Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}
