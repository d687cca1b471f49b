package main

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"dockergc/internal/collector"
	"dockergc/internal/describe"
	"dockergc/internal/docker"
	"dockergc/internal/matchlist"
	"dockergc/internal/recycle"
	"dockergc/internal/ui"
)

var describeInteractive bool

var describeCmd = &cobra.Command{
	Use:   "describe",
	Short: "输出镜像依赖图和本轮会删除的镜像",
	Long: `按当前配置评估一轮回收，输出依赖图但不做任何修改。

每行格式为：
  Image: <短 ID> (<第一个标签>) <天数> days <独占大小> [(<阻塞容器>/<容器总数>)] [<--- <删除顺序>]`,
	RunE: runDescribe,
}

func init() {
	describeCmd.Flags().BoolVarP(&describeInteractive, "interactive", "i", false, "在终端界面中浏览依赖图")
	rootCmd.AddCommand(describeCmd)
}

func runDescribe(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	client, err := docker.NewLocalClientFromEnv(cfg.DockerEndpoint)
	if err != nil {
		return err
	}
	defer client.Close()

	strategy, err := recycle.New(cfg.StrategyOptions())
	if err != nil {
		return fmt.Errorf("创建回收策略失败: %w", err)
	}

	denylist := matchlist.New(cfg.StateDenylist)
	c := collector.New(client, strategy, denylist, nil, logger, collector.Options{DryRun: true})

	if describeInteractive {
		view := ui.NewForestView(c.Evaluate, strategy.CanDelete, denylist)
		p := tea.NewProgram(view, tea.WithAltScreen())
		if _, err := p.Run(); err != nil {
			return fmt.Errorf("启动 TUI 失败: %w", err)
		}
		return nil
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
	defer cancel()

	forest, selected, err := c.Evaluate(ctx)
	if err != nil {
		return err
	}

	d := describe.New(true)
	out := cmd.OutOrStdout()
	fmt.Fprint(out, d.Render(forest, selected, denylist))
	fmt.Fprintln(out, d.Summary(forest, selected))
	return nil
}
