package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	trequire "github.com/stretchr/testify/require"

	"dockergc/internal/recycle"
)

var allVars = []string{
	EnvRecyclingStrategy, EnvExecutionInterval, EnvDaysBeforeDelete, EnvSizeLimit,
	EnvWaitTolerance, EnvImageAllowlist, EnvStateDenylist, EnvDeletionOrder,
	EnvDockerEndpoint, EnvEventRetry, EnvDryRun, EnvLogLevel,
}

// clearEnv 清空所有相关变量，t.Setenv 会在测试结束后恢复原值
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range allVars {
		t.Setenv(key, "")
		trequire.NoError(t, os.Unsetenv(key))
	}
}

func setByDate(t *testing.T) {
	t.Helper()
	t.Setenv(EnvRecyclingStrategy, "bydate")
	t.Setenv(EnvExecutionInterval, "30")
	t.Setenv(EnvWaitTolerance, "2")
	t.Setenv(EnvDaysBeforeDelete, "14")
}

func TestLoad_ByDateDefaults(t *testing.T) {
	clearEnv(t)
	setByDate(t)

	cfg, err := Load("")
	trequire.NoError(t, err)

	assert.Equal(t, recycle.KindByDate, cfg.Strategy)
	assert.Equal(t, 30*time.Minute, cfg.Interval)
	assert.Equal(t, 14, cfg.DaysBeforeDeletion)
	assert.Equal(t, 2, cfg.WaitToleranceDays)
	assert.Equal(t, "exited,dead", cfg.StateDenylist)
	assert.Equal(t, recycle.ByCreation, cfg.Order)
	assert.Equal(t, 5*time.Second, cfg.EventRetry)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.False(t, cfg.DryRun)
}

func TestLoad_ByDiskSpace(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvRecyclingStrategy, "ByDiskSpace")
	t.Setenv(EnvExecutionInterval, "0")
	t.Setenv(EnvWaitTolerance, "0")
	t.Setenv(EnvSizeLimit, "12.5")
	t.Setenv(EnvImageAllowlist, "registry.local/*")
	t.Setenv(EnvDeletionOrder, "ByImageLastTouchDate")
	t.Setenv(EnvEventRetry, "10")
	t.Setenv(EnvDryRun, "true")
	t.Setenv(EnvDockerEndpoint, "unix:///var/run/docker.sock")

	cfg, err := Load("")
	trequire.NoError(t, err)

	assert.Equal(t, recycle.KindByDiskSpace, cfg.Strategy)
	assert.Zero(t, cfg.Interval)
	assert.InDelta(t, 12.5, cfg.SizeLimitGB, 1e-9)
	assert.Equal(t, recycle.ByLastTouch, cfg.Order)
	assert.Equal(t, 10*time.Second, cfg.EventRetry)
	assert.True(t, cfg.DryRun)
	assert.Equal(t, "unix:///var/run/docker.sock", cfg.DockerEndpoint)

	opts := cfg.StrategyOptions()
	assert.Equal(t, "registry.local/*", opts.Allowlist)
	assert.Equal(t, "exited,dead", opts.Denylist)
	assert.InDelta(t, 12.5, opts.SizeLimitGB, 1e-9)
}

func TestLoad_MissingVariables(t *testing.T) {
	clearEnv(t)
	_, err := Load("")
	assert.ErrorIs(t, err, ErrMissingVariable)
	assert.ErrorContains(t, err, EnvRecyclingStrategy)

	t.Setenv(EnvRecyclingStrategy, "ByDate")
	t.Setenv(EnvExecutionInterval, "5")
	t.Setenv(EnvWaitTolerance, "0")
	_, err = Load("")
	assert.ErrorIs(t, err, ErrMissingVariable)
	assert.ErrorContains(t, err, EnvDaysBeforeDelete)
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"未知策略", EnvRecyclingStrategy, "ByLuck"},
		{"间隔不是数字", EnvExecutionInterval, "soon"},
		{"负的保留天数", EnvDaysBeforeDelete, "-1"},
		{"负的等待天数", EnvWaitTolerance, "-3"},
		{"未知排序", EnvDeletionOrder, "ByName"},
		{"重试间隔为零", EnvEventRetry, "0"},
		{"DryRun 不是布尔值", EnvDryRun, "maybe"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			setByDate(t)
			t.Setenv(tt.key, tt.val)

			_, err := Load("")
			assert.ErrorIs(t, err, ErrInvalidValue)
		})
	}
}

func TestLoad_EnvFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), ".env")
	content := "DOCKERGC_RECYCLING_STRATEGY=ByDiskSpace\n" +
		"DOCKERGC_EXECUTION_INTERVAL_IN_MINUTES=60\n" +
		"DOCKERGC_WAIT_FOR_CONTAINERS_IN_BLACKLIST_STATE_IN_DAYS=1\n" +
		"DOCKERGC_SIZE_LIMIT_IN_GIGABYTE=20\n"
	trequire.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	// 进程环境优先于文件
	t.Setenv(EnvSizeLimit, "8")

	cfg, err := Load(path)
	trequire.NoError(t, err)
	assert.Equal(t, recycle.KindByDiskSpace, cfg.Strategy)
	assert.Equal(t, time.Hour, cfg.Interval)
	assert.InDelta(t, 8.0, cfg.SizeLimitGB, 1e-9)
}

func TestLoad_EnvFileMissing(t *testing.T) {
	clearEnv(t)
	_, err := Load(filepath.Join(t.TempDir(), "absent.env"))
	assert.Error(t, err)
}
