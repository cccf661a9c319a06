package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadWithoutFileUsesDefaults(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	cfg, err := Load(dir)
	require.NoError(t, err)

	require.Equal(t, filepath.Join(dir, "mccall.db"), cfg.DBPath)
	require.Equal(t, filepath.Join(dir, "active-session.json"), cfg.ActivePath)
	require.Equal(t, time.Second, cfg.TickInterval)
	require.Equal(t, SoundPlayerNone, cfg.Sound.Player)
}

func TestLoadAppliesOverrides(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	content := "tick_interval: 250ms\nlog_level: debug\nlog_format: json\nsound:\n  player: command\n  command: [paplay, /tmp/bell.ogg]\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0o644))

	cfg, err := Load(dir)
	require.NoError(t, err)
	require.Equal(t, 250*time.Millisecond, cfg.TickInterval)
	require.Equal(t, "debug", cfg.LogLevel)
	require.Equal(t, "json", cfg.LogFormat)
	require.Equal(t, []string{"paplay", "/tmp/bell.ogg"}, cfg.Sound.Command)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	t.Parallel()
	cases := map[string]string{
		"negative tick":     "tick_interval: -1s\n",
		"bad tick":          "tick_interval: soon\n",
		"unknown player":    "sound:\n  player: speaker\n",
		"command w/o argv":  "sound:\n  player: command\n",
		"plugin w/o binary": "sound:\n  player: plugin\n",
	}
	for name, content := range cases {
		content := content
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			dir := t.TempDir()
			require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0o644))
			_, err := Load(dir)
			require.Error(t, err)
		})
	}
}

func TestNewRequiresDataDir(t *testing.T) {
	t.Parallel()
	_, err := New("")
	require.Error(t, err)
}
