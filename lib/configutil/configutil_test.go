package configutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

type testConfig struct {
	Name    string `json:"name"`
	Port    int    `json:"port"`
	Verbose bool   `json:"verbose"`
}

func TestReadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json5")

	err := os.WriteFile(path, []byte(`{
		// comments are allowed
		name: "wishwatch",
		port: 8080,
	}`), 0644)
	require.NoError(t, err)

	config, err := ReadConfig[testConfig](path)
	require.NoError(t, err)
	require.Equal(t, "wishwatch", config.Name)
	require.Equal(t, 8080, config.Port)
	require.False(t, config.Verbose)
}

func TestReadConfigLocalOverride(t *testing.T) {
	dir := t.TempDir()

	err := os.WriteFile(filepath.Join(dir, "config.json5"),
		[]byte(`{name: "wishwatch", port: 8080}`), 0644)
	require.NoError(t, err)
	err = os.WriteFile(filepath.Join(dir, "config.local.json5"),
		[]byte(`{port: 9090, verbose: true}`), 0644)
	require.NoError(t, err)

	config, err := ReadConfig[testConfig](filepath.Join(dir, "config.json5"))
	require.NoError(t, err)
	require.Equal(t, "wishwatch", config.Name)
	require.Equal(t, 9090, config.Port)
	require.True(t, config.Verbose)
}

func TestReadConfigMissing(t *testing.T) {
	_, err := ReadConfig[testConfig](filepath.Join(t.TempDir(), "config.json5"))
	require.ErrorIs(t, err, os.ErrNotExist)
}
