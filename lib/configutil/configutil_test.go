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
	Nested  struct {
		Url string `json:"url"`
	} `json:"nested"`
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestLocalName(t *testing.T) {
	require.Equal(t, "config.local.json5", LocalName("config.json5"))
	require.Equal(t, "/etc/app/telemetry.local.json", LocalName("/etc/app/telemetry.json"))
	require.Equal(t, "noext.local", LocalName("noext"))
}

func TestReadConfigMergesLocal(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json5")
	writeFile(t, path, `{
		// comments are allowed
		name: "server",
		port: 8080,
		nested: { url: "https://univer.kstu.kz" },
	}`)
	writeFile(t, filepath.Join(dir, "config.local.json5"), `{ port: 9090, verbose: true }`)

	config, err := ReadConfig[testConfig](path)
	require.NoError(t, err)
	require.Equal(t, "server", config.Name)
	require.Equal(t, 9090, config.Port)
	require.True(t, config.Verbose)
	require.Equal(t, "https://univer.kstu.kz", config.Nested.Url)
}

func TestReadConfigOnlyLocal(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "config.local.json5"), `{ name: "local" }`)

	config, err := ReadConfig[testConfig](filepath.Join(dir, "config.json5"))
	require.NoError(t, err)
	require.Equal(t, "local", config.Name)
}

func TestReadConfigMissing(t *testing.T) {
	_, err := ReadConfig[testConfig](filepath.Join(t.TempDir(), "config.json5"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestReadConfigInvalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json5")
	writeFile(t, path, `{ name: `)

	_, err := ReadConfig[testConfig](path)
	require.Error(t, err)
	require.NotErrorIs(t, err, os.ErrNotExist)
}

func TestReadRecursively(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0755))
	writeFile(t, filepath.Join(root, "recursive-test.json5"), `{ name: "found" }`)

	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(nested))
	t.Cleanup(func() {
		os.Chdir(wd)
	})

	config, err := ReadRecursively[testConfig]("recursive-test.json5")
	require.NoError(t, err)
	require.Equal(t, "found", config.Name)
}

func TestWithDefaults(t *testing.T) {
	defaults := testConfig{Name: "default", Port: 80}
	config, err := WithDefaults(testConfig{Port: 9000}, defaults)
	require.NoError(t, err)
	require.Equal(t, "default", config.Name)
	require.Equal(t, 9000, config.Port)
}
