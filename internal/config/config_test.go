package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load(viper.New(), "")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080", cfg.ServerAddress)
	assert.Equal(t, "stomp", cfg.Transport)
	assert.Equal(t, "/ws", cfg.EndpointPath)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Empty(t, cfg.File)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	file := filepath.Join(dir, "topicmux.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`
server_address: http://file:9000
transport: kafka
brokers:
  - localhost:9092
group: dashboards
extra:
  async: true
`), 0o600))
	t.Setenv("TOPICMUX_SERVER_ADDRESS", "http://env:7000")

	cfg, err := Load(viper.New(), file)
	require.NoError(t, err)
	assert.Equal(t, "http://env:7000", cfg.ServerAddress)
	assert.Equal(t, "kafka", cfg.Transport)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Brokers)
	assert.Equal(t, file, cfg.File)

	tc := cfg.TransportConfig()
	assert.Equal(t, "dashboards", tc.Group)
	assert.Equal(t, true, tc.Extra["async"])
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("TOPICMUX_LOG_LEVEL=debug\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("TOPICMUX_LOG_LEVEL") })

	cfg, err := Load(viper.New(), "")
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoad_MissingFile(t *testing.T) {
	t.Chdir(t.TempDir())
	_, err := Load(viper.New(), "does-not-exist.yaml")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := &Config{}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server_address is required")
	assert.Contains(t, err.Error(), "transport is required")

	cfg = &Config{ServerAddress: "http://x", Transport: "kafka"}
	assert.ErrorContains(t, cfg.Validate(), "brokers are required")
}
