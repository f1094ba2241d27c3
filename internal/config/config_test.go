package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCommand(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	cmd := &cobra.Command{Use: "test"}
	AddFlags(cmd)
	require.NoError(t, cmd.ParseFlags(args))
	return cmd
}

func TestSetDefaults(t *testing.T) {
	v := viper.New()
	setDefaults(v)

	assert.Equal(t, "info", v.GetString("log_level"))
	assert.Equal(t, "text", v.GetString("log_format"))
	assert.False(t, v.GetBool("verbose"))
	assert.False(t, v.GetBool("no_sync"))
	assert.Equal(t, 0, v.GetInt("mmap_size"))
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(newTestCommand(t))
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.False(t, cfg.Verbose)
	assert.False(t, cfg.NoSync)
	assert.Equal(t, 0, cfg.MmapSize)
}

func TestLoad_Flags(t *testing.T) {
	cmd := newTestCommand(t, "--log-level=debug", "--log-format=json", "-v", "--no-sync", "--mmap-size=1048576")
	cfg, err := Load(cmd)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.True(t, cfg.Verbose)
	assert.True(t, cfg.NoSync)
	assert.Equal(t, 1048576, cfg.MmapSize)
}

func TestLoad_ConfigFile(t *testing.T) {
	fn := filepath.Join(t.TempDir(), "docscript.yaml")
	require.NoError(t, os.WriteFile(fn, []byte("log_level: warn\nno_sync: true\n"), 0644))

	cfg, err := Load(newTestCommand(t, "--config", fn))
	require.NoError(t, err)

	assert.Equal(t, "warn", cfg.LogLevel)
	assert.True(t, cfg.NoSync)
	assert.Equal(t, "text", cfg.LogFormat)
}

func TestLoad_MissingConfigFile(t *testing.T) {
	_, err := Load(newTestCommand(t, "--config", filepath.Join(t.TempDir(), "missing.yaml")))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestLoad_Env(t *testing.T) {
	t.Setenv("DOCSCRIPT_LOG_FORMAT", "json")
	t.Setenv("DOCSCRIPT_VERBOSE", "true")

	cfg, err := Load(newTestCommand(t))
	require.NoError(t, err)

	assert.Equal(t, "json", cfg.LogFormat)
	assert.True(t, cfg.Verbose)
}

func TestLoad_Invalid(t *testing.T) {
	_, err := Load(newTestCommand(t, "--log-level=chatty"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")

	_, err = Load(newTestCommand(t, "--log-format=xml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown log format")

	_, err = Load(newTestCommand(t, "--mmap-size=-1"))
	require.Error(t, err)
}

func TestConfig_DBOptions(t *testing.T) {
	cfg := Config{Verbose: true, NoSync: true, MmapSize: 4096}
	opt := cfg.DBOptions()

	assert.True(t, opt.Verbose)
	assert.True(t, opt.NoSync)
	assert.Equal(t, 4096, opt.MmapSize)
	assert.Nil(t, opt.Logf)
}

func TestConfig_ConfigureLogger(t *testing.T) {
	logger := logrus.New()

	(&Config{LogLevel: "debug", LogFormat: "json"}).ConfigureLogger(logger)
	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())
	assert.IsType(t, &logrus.JSONFormatter{}, logger.Formatter)

	(&Config{LogLevel: "warn", LogFormat: "text"}).ConfigureLogger(logger)
	assert.Equal(t, logrus.WarnLevel, logger.GetLevel())
	assert.IsType(t, &logrus.TextFormatter{}, logger.Formatter)
}
