package main

import (
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"dockergc/internal/config"
	"dockergc/internal/logging"
)

var (
	envFile  string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "dockergc",
	Short: "Docker 镜像回收器",
	Long: `按镜像年龄或磁盘预算回收 Docker 镜像。

镜像按父子依赖组成森林，子镜像总是先于父镜像删除；
被运行中容器、白名单标签或等待期保护的镜像不会被删除。
所有参数通过 DOCKERGC_* 环境变量配置，可用 --env-file 从文件导入。`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "先从该 .env 文件导入环境变量")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "日志级别 (debug|info|warn|error)，覆盖 DOCKERGC_LOG_LEVEL")
}

// loadConfig 读取配置并应用全局命令行参数
func loadConfig() (*config.Config, *log.Logger, error) {
	cfg, err := config.Load(envFile)
	if err != nil {
		return nil, nil, fmt.Errorf("加载配置失败: %w", err)
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	return cfg, logging.New(nil, cfg.LogLevel), nil
}
