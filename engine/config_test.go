package engine

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gridcalc.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
max_eval_depth: 64
copy_verbatim: true
max_rows: 1000
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 64, cfg.MaxEvalDepth)
	assert.True(t, cfg.CopyVerbatim)
	assert.Equal(t, uint32(1000), cfg.MaxRows)
	// absent keys keep their defaults
	assert.Equal(t, uint32(MaxColumns), cfg.MaxColumns)
}

func TestLoadConfigInvalid(t *testing.T) {
	cases := map[string]string{
		"negative depth": "max_eval_depth: -1",
		"zero rows":      "max_rows: 0",
		"rows too large": "max_rows: 99999999",
		"bad yaml":       "max_rows: [",
	}

	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, content))
			assert.Error(t, err)
		})
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 0, cfg.MaxEvalDepth)
	assert.False(t, cfg.CopyVerbatim)
	assert.NoError(t, cfg.validate())
}
