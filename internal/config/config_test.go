package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadReadsYAMLOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clawbuds.yaml")
	require.NoError(t, os.WriteFile(path, []byte("reflex:\n  hard_max_messages_per_hour: 5\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.Reflex.HardMaxMessagesPerHour)
	assert.Equal(t, Default().Layer1, cfg.Layer1)
}

func TestEnvOverridesWinOverYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clawbuds.yaml")
	require.NoError(t, os.WriteFile(path, []byte("reflex:\n  hard_max_messages_per_hour: 5\n"), 0o600))

	t.Setenv("HARD_MAX_MESSAGES_PER_HOUR", "30")
	t.Setenv("HOST_TYPE", "openclaw")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 30, cfg.Reflex.HardMaxMessagesPerHour)
	assert.Equal(t, "openclaw", cfg.Host.Type)
}
