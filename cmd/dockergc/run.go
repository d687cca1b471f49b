package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"dockergc/internal/collector"
	"dockergc/internal/docker"
	"dockergc/internal/matchlist"
	"dockergc/internal/recycle"
	"dockergc/internal/task"
	"dockergc/internal/touch"
)

var (
	runOnce   bool
	runDryRun bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "按配置的间隔持续回收镜像",
	Long: `每轮获取镜像和容器快照，按配置的策略选出镜像并依次删除。

删除前会再次确认镜像上的容器仍处于黑名单状态，然后停止并删除这些容器，
最后删除镜像的每个标签（无标签时删除镜像 ID）。
DOCKERGC_EXECUTION_INTERVAL_IN_MINUTES <= 0 或使用 --once 时只执行一轮。`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().BoolVar(&runOnce, "once", false, "只执行一轮")
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "只输出计划删除的镜像，不做任何修改")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	if runOnce {
		cfg.Interval = 0
	}
	if runDryRun {
		cfg.DryRun = true
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := docker.NewLocalClientFromEnv(cfg.DockerEndpoint)
	if err != nil {
		return err
	}
	defer client.Close()

	// 启动时必须能连上守护进程
	if err := client.Ping(ctx); err != nil {
		return fmt.Errorf("无法连接 Docker 守护进程: %w", err)
	}

	store := touch.NewStore()
	opts := cfg.StrategyOptions()
	opts.Touched = store
	strategy, err := recycle.New(opts)
	if err != nil {
		return fmt.Errorf("创建回收策略失败: %w", err)
	}

	manager := task.NewManager(logger)
	defer manager.Shutdown()
	go watchTasks(ctx, manager, logger)

	denylist := matchlist.New(cfg.StateDenylist)
	if denylist.Empty() {
		logger.Warn("容器状态黑名单为空，所有带容器的镜像都不会被删除")
	}

	collectorOpts := collector.Options{Interval: cfg.Interval, DryRun: cfg.DryRun}
	if cfg.DryRun {
		collectorOpts.Output = os.Stdout
	}
	if cfg.Order == recycle.ByLastTouch && cfg.Interval > 0 {
		listener := touch.NewListener(client, store, logger)
		manager.Supervise(ctx, listener, cfg.EventRetry)
		collectorOpts.Events = listener
	}

	logger.Info("镜像回收器已启动",
		"strategy", strategy.Name(),
		"order", cfg.Order,
		"interval", cfg.Interval,
		"state-denylist", denylist.String(),
		"dry-run", cfg.DryRun)

	c := collector.New(client, strategy, denylist, store, logger, collectorOpts)
	return c.Run(ctx)
}

// watchTasks 记录后台任务的失败和重启，ctx 取消或管理器关闭后返回
func watchTasks(ctx context.Context, manager *task.Manager, logger *log.Logger) {
	events := manager.Subscribe()
	for {
		select {
		case <-ctx.Done():
			manager.Unsubscribe(events)
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			logTaskEvent(manager, logger, event)
		}
	}
}

func logTaskEvent(manager *task.Manager, logger *log.Logger, event task.Event) {
	var status string
	if t := manager.GetTask(event.TaskID); t != nil {
		status = t.Message()
	}
	switch event.Type {
	case task.EventFailed:
		logger.Warn("后台任务失败", "task", event.TaskName, "error", event.Error, "status", status)
	case task.EventRestarting:
		logger.Info("后台任务等待重启", "task", event.TaskName, "status", status)
	}
}
