package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func setSecret(t *testing.T) {
	t.Helper()
	t.Setenv("PLUGINDIR_SERVER__SESSION_SECRET", "test-secret")
}

func TestLoad_Defaults(t *testing.T) {
	setSecret(t)
	cfg, err := Load("")
	require.NoError(t, err)

	require.Equal(t, 8080, cfg.Server.Port)
	require.Equal(t, "redis", cfg.Cache.Driver)
	require.Equal(t, 10, cfg.Engagement.VoteLimit)
	require.Equal(t, 300*time.Second, cfg.Engagement.VoteWindow)
	require.Equal(t, 24*time.Hour, cfg.Engagement.ViewWindow)
	require.Equal(t, 30*time.Second, cfg.Engagement.CommentCooldown)
	require.InDelta(t, 0.8, cfg.Engagement.DuplicateThreshold, 1e-9)
	require.Equal(t, "0.0.0.0:8080", cfg.Server.Addr())
}

func TestLoad_FileThenEnv(t *testing.T) {
	root := t.TempDir()
	cfgPath := filepath.Join(root, "plugindir.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`
server:
  port: 9090
  mode: "debug"
cache:
  driver: "memory"
  memory_size: 128
engagement:
  vote_limit: 3
  vote_window: "1m"
`), 0o644))

	t.Setenv("PLUGINDIR_ENGAGEMENT__VOTE_LIMIT", "7")
	t.Setenv("PLUGINDIR_LOG__LEVEL", "debug")

	cfg, err := Load(cfgPath)
	require.NoError(t, err)

	require.Equal(t, 9090, cfg.Server.Port)
	require.Equal(t, "debug", cfg.Server.Mode)
	require.Equal(t, "memory", cfg.Cache.Driver)
	require.Equal(t, 128, cfg.Cache.MemorySize)
	require.Equal(t, 7, cfg.Engagement.VoteLimit)
	require.Equal(t, time.Minute, cfg.Engagement.VoteWindow)
	require.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_InvalidCacheDriverFailsStartup(t *testing.T) {
	setSecret(t)
	t.Setenv("PLUGINDIR_CACHE__DRIVER", "memcached")

	_, err := Load("")
	if err == nil || !strings.Contains(err.Error(), "unsupported cache.driver") {
		t.Fatalf("expected unsupported cache driver error, got %v", err)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "failed to load config file")
}

func TestValidate_DuplicateThreshold(t *testing.T) {
	setSecret(t)
	cfg, err := Load("")
	require.NoError(t, err)

	cfg.Engagement.DuplicateThreshold = 1.5
	require.ErrorContains(t, cfg.Validate(), "duplicate_threshold")
}

func TestLoad_DefaultSecretRejectedInRelease(t *testing.T) {
	_, err := Load("")
	require.ErrorContains(t, err, "session_secret must be changed")

	t.Setenv("PLUGINDIR_SERVER__MODE", "debug")
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, DefaultSessionSecret, cfg.Server.SessionSecret)
}
