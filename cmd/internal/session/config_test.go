package session_test

import (
	"flag"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gen2brain/pulse/cmd/internal/session"
)

// unsetenv removes key for the duration of the test.
func unsetenv(t *testing.T, key string) {
	t.Setenv(key, "")
	require.NoError(t, os.Unsetenv(key))
}

func chdir(t *testing.T, dir string) {
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

func TestLoadConfigEnvironment(t *testing.T) {
	chdir(t, t.TempDir())

	t.Setenv("PULSE_SERVER", "unix:/run/pulse/native")
	t.Setenv("PULSE_SINK", "alsa_output.pci")
	t.Setenv("PULSE_CLIENT_NAME", "tester")
	unsetenv(t, "PULSE_LOG_LEVEL")
	unsetenv(t, "PULSE_CONTEXT_FLAGS")

	cfg, err := session.LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "unix:/run/pulse/native", cfg.Server)
	assert.Equal(t, "alsa_output.pci", cfg.Sink)
	assert.Equal(t, "tester", cfg.ClientName)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "noautospawn", cfg.ContextFlags)
}

func TestLoadConfigDotEnv(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)

	unsetenv(t, "PULSE_SOURCE")
	unsetenv(t, "PULSE_NATS_URL")
	t.Setenv("PULSE_LOG_LEVEL", "warn")

	env := "PULSE_SOURCE=mic\nPULSE_NATS_URL=nats://relay:4222\nPULSE_LOG_LEVEL=trace\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte(env), 0o600))

	cfg, err := session.LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "mic", cfg.Source)
	assert.Equal(t, "nats://relay:4222", cfg.NatsURL)
	assert.Equal(t, "warn", cfg.LogLevel, "the environment wins over .env")
}

func TestRegisterFlags(t *testing.T) {
	cfg := &session.Config{Server: "tcp:host", LogLevel: "info"}

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	cfg.RegisterFlags(fs)

	require.NoError(t, fs.Parse([]string{"-log-level", "debug", "-context-flags", "nofail"}))
	assert.Equal(t, "tcp:host", cfg.Server)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "nofail", cfg.ContextFlags)
}

func TestSetupLogging(t *testing.T) {
	cfg := &session.Config{LogLevel: "loud"}
	_, err := cfg.SetupLogging("TEST")
	assert.Error(t, err)

	cfg.LogLevel = "off"
	logger, err := cfg.SetupLogging("TEST")
	require.NoError(t, err)
	assert.NotNil(t, logger)
}
