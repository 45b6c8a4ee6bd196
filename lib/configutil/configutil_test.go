package configutil_test

import (
	"os"
	"path/filepath"
	"testing"

	"surplus-backend/lib/configutil"

	"github.com/stretchr/testify/require"
)

type testConfig struct {
	Port    int `json:"port"`
	Scrapyd struct {
		BaseUrl string `json:"base_url"`
	} `json:"scrapyd"`
}

func TestReadConfigMergesLocalOverrides(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "config.json5")
	require.NoError(t, os.WriteFile(
		base,
		[]byte(`{port: 8445, scrapyd: {base_url: "http://scrapyd:6800"}}`),
		0o644,
	))
	require.NoError(t, os.WriteFile(
		filepath.Join(dir, "config.local.json5"),
		[]byte(`{port: 9000}`),
		0o644,
	))

	config, err := configutil.ReadConfig[testConfig](base)
	require.NoError(t, err)
	require.Equal(t, 9000, config.Port)
	require.Equal(t, "http://scrapyd:6800", config.Scrapyd.BaseUrl)
}

func TestReadConfigLocalOnly(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(
		filepath.Join(dir, "config.local.json5"),
		[]byte(`{port: 9000}`),
		0o644,
	))

	config, err := configutil.ReadConfig[testConfig](filepath.Join(dir, "config.json5"))
	require.NoError(t, err)
	require.Equal(t, 9000, config.Port)
}

func TestReadConfigMissing(t *testing.T) {
	_, err := configutil.ReadConfig[testConfig](filepath.Join(t.TempDir(), "config.json5"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestReadConfigMalformed(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json5")
	require.NoError(t, os.WriteFile(path, []byte(`{port: `), 0o644))

	_, err := configutil.ReadConfig[testConfig](path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "parse")
}
