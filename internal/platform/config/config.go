package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	SoundPlayerNone    = "none"
	SoundPlayerCommand = "command"
	SoundPlayerPlugin  = "plugin"

	DefaultTickInterval = time.Second
)

type Config struct {
	DataDir      string
	DBPath       string
	RoutinesPath string
	ActivePath   string
	SessionsDir  string
	TickInterval time.Duration
	LogLevel     string
	LogFormat    string
	Sound        SoundConfig
}

type SoundConfig struct {
	Player  string
	Command []string
	Plugin  string
}

// fileConfig mirrors the optional config.yaml in the data directory.
type fileConfig struct {
	TickInterval string `yaml:"tick_interval"`
	LogLevel     string `yaml:"log_level"`
	LogFormat    string `yaml:"log_format"`
	Sound        struct {
		Player  string   `yaml:"player"`
		Command []string `yaml:"command"`
		Plugin  string   `yaml:"plugin"`
	} `yaml:"sound"`
}

func New(dataDir string) (Config, error) {
	if dataDir == "" {
		return Config{}, fmt.Errorf("data dir is required")
	}
	return Config{
		DataDir:      dataDir,
		DBPath:       filepath.Join(dataDir, "mccall.db"),
		RoutinesPath: filepath.Join(dataDir, "routines.yaml"),
		ActivePath:   filepath.Join(dataDir, "active-session.json"),
		SessionsDir:  filepath.Join(dataDir, "sessions"),
		TickInterval: DefaultTickInterval,
		LogLevel:     "info",
		LogFormat:    "text",
		Sound:        SoundConfig{Player: SoundPlayerNone},
	}, nil
}

// Load builds the default layout for dataDir and applies <dataDir>/config.yaml when present.
func Load(dataDir string) (Config, error) {
	cfg, err := New(dataDir)
	if err != nil {
		return Config{}, err
	}
	raw, err := os.ReadFile(filepath.Join(dataDir, "config.yaml"))
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	file := fileConfig{}
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if file.TickInterval != "" {
		interval, err := time.ParseDuration(file.TickInterval)
		if err != nil {
			return Config{}, fmt.Errorf("parse tick_interval: %w", err)
		}
		if interval <= 0 {
			return Config{}, fmt.Errorf("tick_interval must be positive")
		}
		cfg.TickInterval = interval
	}
	if file.LogLevel != "" {
		cfg.LogLevel = file.LogLevel
	}
	if file.LogFormat != "" {
		cfg.LogFormat = file.LogFormat
	}
	if file.Sound.Player != "" {
		cfg.Sound.Player = file.Sound.Player
	}
	cfg.Sound.Command = file.Sound.Command
	cfg.Sound.Plugin = file.Sound.Plugin

	switch cfg.Sound.Player {
	case SoundPlayerNone:
	case SoundPlayerCommand:
		if len(cfg.Sound.Command) == 0 {
			return Config{}, fmt.Errorf("sound.command is required for the command player")
		}
	case SoundPlayerPlugin:
		if cfg.Sound.Plugin == "" {
			return Config{}, fmt.Errorf("sound.plugin is required for the plugin player")
		}
	default:
		return Config{}, fmt.Errorf("unsupported sound player %q", cfg.Sound.Player)
	}
	return cfg, nil
}
