package config_test

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mochi-hpc/mofka-sub001/internal/config"
)

func TestLoadDaemonDefaults(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	cfg, err := config.LoadDaemon(fs, "")
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:8431", cfg.ListenAddress)
	assert.Equal(t, "text", cfg.LogFormat)
}

func TestLoadDaemonFileOverlay(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/etc/mofkad.json", []byte(`{"ListenAddress":"0.0.0.0:9000"}`), 0o644))

	cfg, err := config.LoadDaemon(fs, "/etc/mofkad.json")
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:9000", cfg.ListenAddress)
}

func TestLoadDaemonMissingFileIsNotAnError(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	cfg, err := config.LoadDaemon(fs, "/does/not/exist.json")
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:8431", cfg.ListenAddress)
}
