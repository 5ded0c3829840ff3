package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/erilali/duet/internal/logger"
	"github.com/erilali/duet/internal/session"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	req := require.New(t)
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	req.NoError(err)

	req.Equal(":8080", cfg.Addr)
	req.Equal(session.PolicyStrict, cfg.Policy)
	req.Equal(24*time.Hour, cfg.SessionTTL)
	req.True(cfg.NatsEnabled)
	req.Equal("duet.room", cfg.NatsSubjectPrefix)
	req.Equal(500, cfg.MaxMessageLength)
	req.Equal(65536, cfg.MaxFrameBytes)
	req.Equal(256, cfg.SendBuffer)
}

func TestLoad_FromEnvironment(t *testing.T) {
	req := require.New(t)
	t.Setenv("DUET_ADDR", ":9090")
	t.Setenv("RELAY_POLICY", "Broadcast")
	t.Setenv("SESSION_TTL", "90m")
	t.Setenv("NATS_ENABLED", "false")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	req.NoError(err)
	req.Equal(":9090", cfg.Addr)
	req.Equal(session.PolicyBroadcast, cfg.Policy)
	req.Equal(90*time.Minute, cfg.SessionTTL)
	req.False(cfg.NatsEnabled)
}

func TestLoad_DotenvFile(t *testing.T) {
	req := require.New(t)
	path := filepath.Join(t.TempDir(), "test.env")
	req.NoError(os.WriteFile(path, []byte("SESSION_SECRET=from-dotenv\n"), 0o600))
	t.Setenv("SESSION_SECRET", "")
	req.NoError(os.Unsetenv("SESSION_SECRET"))

	cfg, err := Load(path)
	req.NoError(err)
	req.Equal("from-dotenv", cfg.SessionSecret)
}

func TestLoad_RejectsUnknownPolicy(t *testing.T) {
	t.Setenv("RELAY_POLICY", "mesh")
	_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.Error(t, err)
}

func TestLoad_LoggerSettings(t *testing.T) {
	req := require.New(t)
	dir := t.TempDir()
	dotenv := filepath.Join(dir, "missing.env")

	t.Setenv("LOGGER_CONFIG", filepath.Join(dir, "none.json"))
	cfg, err := Load(dotenv)
	req.NoError(err)
	req.Equal(logger.DefaultLogConfig(), cfg.Log)

	path := filepath.Join(dir, "logger_config.json")
	req.NoError(os.WriteFile(path, []byte(`{"level":"debug","log_to_json":true}`), 0o600))
	t.Setenv("LOGGER_CONFIG", path)
	cfg, err = Load(dotenv)
	req.NoError(err)
	req.Equal("debug", cfg.Log.Level)
	req.True(cfg.Log.LogToJSON)
	req.Equal(10, cfg.Log.MaxSize)

	t.Setenv("LOG_LEVEL", "warn")
	cfg, err = Load(dotenv)
	req.NoError(err)
	req.Equal("warn", cfg.Log.Level)
	req.True(cfg.Log.LogToJSON)

	req.NoError(os.WriteFile(path, []byte(`{`), 0o600))
	_, err = Load(dotenv)
	req.Error(err)
}
