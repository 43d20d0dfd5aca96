package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNew_Defaults(t *testing.T) {
	t.Setenv("APP_CONFIG_NAME", "does-not-exist")

	cfg, err := New()
	require.NoError(t, err)
	require.Equal(t, EnvDev, cfg.Env)
	require.Equal(t, time.Minute, cfg.PlanChange.BaseDelay)
	require.Equal(t, 6*time.Hour, cfg.PlanChange.MaxDelay)
	require.Equal(t, 15*time.Minute, cfg.PlanChange.OverdueMaxDelay)
	require.Equal(t, 10, cfg.PlanChange.MaxRetries)
	require.Equal(t, []int{3, 6, 9}, cfg.PlanChange.AlertAttempts)
	require.Equal(t, "X-Executor-Secret", cfg.Executor.Header)
	require.Equal(t, 100, cfg.Feed.DefaultLimit)
}

func TestNew_FileAndEnvOverride(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "prod.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`
env: prod
executor:
  secret: from-file
plan_change:
  max_retries: 4
  alert_attempts: [2]
`), 0o600))
	t.Setenv("APP_CONFIG_FILE", file)
	t.Setenv("APP_EXECUTOR_SECRET", "from-env")

	cfg, err := New()
	require.NoError(t, err)
	require.True(t, cfg.IsProd())
	require.Equal(t, "from-env", cfg.Executor.Secret)
	require.Equal(t, 4, cfg.PlanChange.MaxRetries)
	require.Equal(t, []int{2}, cfg.PlanChange.AlertAttempts)
}

func TestNew_MissingExplicitFileFails(t *testing.T) {
	t.Setenv("APP_CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))
	_, err := New()
	require.Error(t, err)
}

func TestValidate_RejectsOverdueCapAboveNormalCap(t *testing.T) {
	cfg := &Config{
		Redis: RedisConfig{LockTTL: time.Second},
		Feed:  FeedConfig{DefaultLimit: 10, MaxLimit: 10},
		PlanChange: PlanChangeConfig{
			BaseDelay:       time.Second,
			MaxDelay:        time.Minute,
			OverdueMaxDelay: time.Hour,
			MaxRetries:      3,
		},
	}
	require.Error(t, cfg.Validate())

	cfg.PlanChange.OverdueMaxDelay = 30 * time.Second
	require.NoError(t, cfg.Validate())
}

func TestFeedConfig_ClampLimit(t *testing.T) {
	fc := FeedConfig{DefaultLimit: 100, MaxLimit: 500}
	require.Equal(t, 100, fc.ClampLimit(0))
	require.Equal(t, 7, fc.ClampLimit(7))
	require.Equal(t, 500, fc.ClampLimit(10_000))
}
