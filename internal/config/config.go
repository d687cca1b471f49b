// Package config 从环境变量加载回收器配置，可选地先从 .env 文件导入。
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"dockergc/internal/recycle"
)

const prefix = "DOCKERGC_"

// 环境变量名
const (
	EnvRecyclingStrategy = prefix + "RECYCLING_STRATEGY"
	EnvExecutionInterval = prefix + "EXECUTION_INTERVAL_IN_MINUTES"
	EnvDaysBeforeDelete  = prefix + "DAYS_BEFORE_DELETION"
	EnvSizeLimit         = prefix + "SIZE_LIMIT_IN_GIGABYTE"
	EnvWaitTolerance     = prefix + "WAIT_FOR_CONTAINERS_IN_BLACKLIST_STATE_IN_DAYS"
	EnvImageAllowlist    = prefix + "IMAGE_WHITELIST"
	EnvStateDenylist     = prefix + "CONTAINER_STATE_BLACKLIST"
	EnvDeletionOrder     = prefix + "IMAGE_DELETION_ORDER"
	EnvDockerEndpoint    = prefix + "DOCKER_ENDPOINT"
	EnvEventRetry        = prefix + "EVENT_RETRY_SECONDS"
	EnvDryRun            = prefix + "DRY_RUN"
	EnvLogLevel          = prefix + "LOG_LEVEL"
)

const (
	defaultStateDenylist = "exited,dead"
	defaultEventRetry    = 5 * time.Second
	defaultLogLevel      = "info"
)

var (
	ErrMissingVariable = errors.New("缺少环境变量")
	ErrInvalidValue    = errors.New("环境变量取值无效")
)

// Config 回收器运行所需的全部配置
type Config struct {
	Strategy           recycle.Kind  // 回收策略
	Interval           time.Duration // 两轮回收之间的间隔，<= 0 只执行一轮
	DaysBeforeDeletion int           // ByDate：镜像保留天数
	SizeLimitGB        float64       // ByDiskSpace：磁盘预算（GB）
	WaitToleranceDays  int           // 黑名单状态容器结束后需等待的天数
	ImageAllowlist     string        // 受保护的 repo:tag 模式
	StateDenylist      string        // 可忽略的容器状态模式
	Order              recycle.Order // 候选镜像排序方式
	DockerEndpoint     string        // Docker 守护进程地址，留空使用 DOCKER_HOST 等默认行为
	EventRetry         time.Duration // 事件监听断开后的重连间隔
	DryRun             bool          // 只输出计划，不删除
	LogLevel           string
}

// Load 读取配置。envFile 非空时先把文件中的变量导入进程环境（不覆盖已存在的变量）。
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("加载 %s 失败: %w", envFile, err)
		}
	}

	cfg := &Config{
		ImageAllowlist: os.Getenv(EnvImageAllowlist),
		StateDenylist:  lookup(EnvStateDenylist, defaultStateDenylist),
		DockerEndpoint: os.Getenv(EnvDockerEndpoint),
		EventRetry:     defaultEventRetry,
		LogLevel:       lookup(EnvLogLevel, defaultLogLevel),
	}

	raw, err := require(EnvRecyclingStrategy)
	if err != nil {
		return nil, err
	}
	if cfg.Strategy, err = recycle.ParseKind(raw); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidValue, EnvRecyclingStrategy, err)
	}

	minutes, err := requireInt(EnvExecutionInterval)
	if err != nil {
		return nil, err
	}
	cfg.Interval = time.Duration(minutes) * time.Minute

	if cfg.WaitToleranceDays, err = requireInt(EnvWaitTolerance); err != nil {
		return nil, err
	}

	switch cfg.Strategy {
	case recycle.KindByDate:
		if cfg.DaysBeforeDeletion, err = requireInt(EnvDaysBeforeDelete); err != nil {
			return nil, err
		}
	case recycle.KindByDiskSpace:
		raw, err := require(EnvSizeLimit)
		if err != nil {
			return nil, err
		}
		if cfg.SizeLimitGB, err = strconv.ParseFloat(strings.TrimSpace(raw), 64); err != nil {
			return nil, fmt.Errorf("%w: %s=%q", ErrInvalidValue, EnvSizeLimit, raw)
		}
	}

	if cfg.Order, err = recycle.ParseOrder(os.Getenv(EnvDeletionOrder)); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidValue, EnvDeletionOrder, err)
	}

	if raw := os.Getenv(EnvEventRetry); raw != "" {
		seconds, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil || seconds <= 0 {
			return nil, fmt.Errorf("%w: %s=%q", ErrInvalidValue, EnvEventRetry, raw)
		}
		cfg.EventRetry = time.Duration(seconds) * time.Second
	}

	if raw := os.Getenv(EnvDryRun); raw != "" {
		if cfg.DryRun, err = strconv.ParseBool(strings.TrimSpace(raw)); err != nil {
			return nil, fmt.Errorf("%w: %s=%q", ErrInvalidValue, EnvDryRun, raw)
		}
	}

	return cfg, cfg.Validate()
}

// Validate 检查取值范围
func (c *Config) Validate() error {
	if c.WaitToleranceDays < 0 {
		return fmt.Errorf("%w: %s 不能为负数", ErrInvalidValue, EnvWaitTolerance)
	}
	switch c.Strategy {
	case recycle.KindByDate:
		if c.DaysBeforeDeletion < 0 {
			return fmt.Errorf("%w: %s 不能为负数", ErrInvalidValue, EnvDaysBeforeDelete)
		}
	case recycle.KindByDiskSpace:
		if c.SizeLimitGB < 0 {
			return fmt.Errorf("%w: %s 不能为负数", ErrInvalidValue, EnvSizeLimit)
		}
	}
	return nil
}

// StrategyOptions 转换为策略工厂的参数
func (c *Config) StrategyOptions() recycle.Options {
	return recycle.Options{
		Kind:               c.Strategy,
		Allowlist:          c.ImageAllowlist,
		Denylist:           c.StateDenylist,
		WaitToleranceDays:  c.WaitToleranceDays,
		DaysBeforeDeletion: c.DaysBeforeDeletion,
		SizeLimitGB:        c.SizeLimitGB,
		Order:              c.Order,
	}
}

func lookup(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return v
	}
	return fallback
}

func require(key string) (string, error) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrMissingVariable, key)
	}
	return v, nil
}

func requireInt(key string) (int, error) {
	raw, err := require(key)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("%w: %s=%q", ErrInvalidValue, key, raw)
	}
	return n, nil
}
