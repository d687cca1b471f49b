// Package collector 执行回收周期：获取运行时快照、构建依赖森林、
// 由策略选出待删除镜像并按顺序删除，按固定间隔重复。
package collector

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"
	"github.com/docker/docker/errdefs"
	"github.com/google/uuid"
	"github.com/samber/lo"

	"dockergc/internal/describe"
	"dockergc/internal/docker/image"
	"dockergc/internal/logging"
	"dockergc/internal/matchlist"
	"dockergc/internal/recycle"
	"dockergc/internal/touch"
	"dockergc/internal/tree"
)

// ErrPostponed 容器状态在删除前发生变化，本轮不删除该镜像
var ErrPostponed = errors.New("容器状态已变化，推迟删除镜像")

// Runtime 回收需要的运行时能力
type Runtime interface {
	ListImages(ctx context.Context) ([]tree.ImageRecord, error)
	ListContainers(ctx context.Context) ([]tree.ContainerSummary, error)
	InspectContainer(ctx context.Context, containerID string) (tree.ContainerRecord, error)
	StopContainer(ctx context.Context, containerID string, timeout int) error
	RemoveContainer(ctx context.Context, containerID string) error
	RemoveImage(ctx context.Context, ref string) (image.RemoveResult, error)
}

// EventStats 使用事件监听器的运行统计，出现在每轮回收日志中
type EventStats interface {
	Touched() int64
	Restarts() int
}

// Options 回收器配置
type Options struct {
	Interval    time.Duration // 两轮之间的间隔，<= 0 表示只执行一轮
	DryRun      bool          // 只输出计划删除的镜像，不做任何修改
	StopTimeout int           // 停止容器时的超时时间（秒），0 使用守护进程默认值
	Output      io.Writer     // DryRun 时依赖图的输出位置，为空时写入日志
	Events      EventStats    // 按最后使用时间排序时的事件监听器，可以为空
}

// Collector 镜像回收器
type Collector struct {
	runtime    Runtime
	strategy   recycle.Strategy
	denylist   *matchlist.Matchlist
	touched    *touch.Store
	descriptor *describe.Descriptor
	logger     *log.Logger
	opts       Options
}

// New 创建回收器。denylist 必须与策略使用的容器状态黑名单一致，删除前会用它再次确认容器状态。
func New(runtime Runtime, strategy recycle.Strategy, denylist *matchlist.Matchlist, touched *touch.Store, logger *log.Logger, opts Options) *Collector {
	if logger == nil {
		logger = logging.Discard()
	}
	if touched == nil {
		touched = touch.NewStore()
	}
	return &Collector{
		runtime:    runtime,
		strategy:   strategy,
		denylist:   denylist,
		touched:    touched,
		descriptor: describe.New(opts.Output != nil),
		logger:     logger,
		opts:       opts,
	}
}

// Snapshot 运行时的一次快照
type Snapshot struct {
	Images     []tree.ImageRecord
	Summaries  []tree.ContainerSummary
	Containers []tree.ContainerRecord
}

// Report 一轮回收的结果
type Report struct {
	CycleID   string
	DiskUsage int64        // 回收前镜像占用的磁盘空间
	Selected  []*tree.Node // 策略选出的镜像（按删除顺序）
	Deleted   int          // 成功删除的镜像数
	Reclaimed int64        // 成功删除的镜像独占空间之和
	Postponed int          // 因容器状态变化推迟的镜像数
	Failed    int          // 删除失败的镜像数
	DryRun    bool
}

// ReclaimedMB 以 MB 为单位的回收空间
func (r *Report) ReclaimedMB() int64 {
	return r.Reclaimed / (1024 * 1024)
}

// TakeSnapshot 获取镜像、容器列表和每个容器的详情。
// 列表之后被删除的容器会被跳过，其他错误中止本次快照。
func (c *Collector) TakeSnapshot(ctx context.Context) (*Snapshot, error) {
	images, err := c.runtime.ListImages(ctx)
	if err != nil {
		return nil, err
	}

	summaries, err := c.runtime.ListContainers(ctx)
	if err != nil {
		return nil, err
	}

	containers := make([]tree.ContainerRecord, 0, len(summaries))
	for _, s := range summaries {
		record, err := c.runtime.InspectContainer(ctx, s.ID)
		if err != nil {
			if errdefs.IsNotFound(err) {
				c.logger.Debug("容器已不存在，跳过", "container", tree.ShortID(s.ID))
				continue
			}
			return nil, err
		}
		containers = append(containers, record)
	}

	return &Snapshot{Images: images, Summaries: summaries, Containers: containers}, nil
}

// Evaluate 获取快照并计算删除顺序，不做任何修改
func (c *Collector) Evaluate(ctx context.Context) ([]*tree.Node, []*tree.Node, error) {
	snapshot, err := c.TakeSnapshot(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("获取 Docker 快照失败: %w", err)
	}

	forest := tree.Build(snapshot.Images, snapshot.Summaries, snapshot.Containers)
	c.forgetRemoved(snapshot.Images)
	return forest, c.strategy.SelectForRecycling(forest), nil
}

// forgetRemoved 清理已不存在的镜像的最后使用时间记录
func (c *Collector) forgetRemoved(images []tree.ImageRecord) {
	present := make(map[string]bool, len(images))
	for _, img := range images {
		present[img.ID] = true
	}
	stale := lo.Filter(c.touched.Keys(), func(id string, _ int) bool {
		return !present[id]
	})
	if n := c.touched.Forget(stale...); n > 0 {
		c.logger.Debug("清理已删除镜像的使用记录", "count", n)
	}
}

// RunOnce 执行一轮回收
func (c *Collector) RunOnce(ctx context.Context) (*Report, error) {
	report := &Report{CycleID: uuid.New().String()[:8], DryRun: c.opts.DryRun}
	logger := c.logger.With("cycle", report.CycleID)

	forest, selected, err := c.Evaluate(ctx)
	if err != nil {
		return report, err
	}
	report.DiskUsage = describe.DiskUsage(forest)
	report.Selected = selected

	fields := []interface{}{
		"strategy", c.strategy.Name(),
		"usage", describe.HumanSize(report.DiskUsage),
		"images", countNodes(forest),
	}
	if c.opts.Events != nil {
		fields = append(fields,
			"events-touched", c.opts.Events.Touched(),
			"listener-restarts", c.opts.Events.Restarts())
	}
	logger.Info("当前镜像磁盘占用", fields...)

	if len(selected) == 0 {
		logger.Info("没有符合条件的镜像")
		return report, nil
	}

	if c.opts.DryRun {
		graph := c.descriptor.Render(forest, selected, c.denylist)
		if c.opts.Output != nil {
			fmt.Fprint(c.opts.Output, graph)
		} else {
			logger.Info("依赖图\n" + graph)
		}
		logger.Info("DryRun 模式，不删除镜像", "selected", len(selected))
		return report, nil
	}

	for _, n := range selected {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if err := c.recycle(ctx, logger, n); err != nil {
			if errors.Is(err, ErrPostponed) {
				report.Postponed++
				logger.Warn("推迟删除镜像", "image", tree.ShortID(n.ID()), "error", err)
			} else {
				report.Failed++
				logger.Error("删除镜像失败", "image", tree.ShortID(n.ID()), "error", err)
			}
			continue
		}
		report.Deleted++
		report.Reclaimed += n.DiskSize()
	}

	logger.Info("回收完成",
		"images-recycled-count", report.Deleted,
		"disk-space-recycled-mb", report.ReclaimedMB(),
		"postponed", report.Postponed,
		"failed", report.Failed)

	return report, nil
}

// recycle 删除一个镜像：先停止并删除仍处于黑名单状态的容器，再删除每个 repo:tag（无标签时删除 ID）
func (c *Collector) recycle(ctx context.Context, logger *log.Logger, n *tree.Node) error {
	shortID := tree.ShortID(n.ID())

	for _, container := range n.Containers {
		current, err := c.runtime.InspectContainer(ctx, container.ID)
		if err != nil {
			if errdefs.IsNotFound(err) {
				continue
			}
			return err
		}
		if !c.denylist.Match(current.Status) {
			return fmt.Errorf("%w: %s (容器 %s 状态为 %s)", ErrPostponed, shortID, tree.ShortID(container.ID), current.Status)
		}

		logger.Info("停止并删除容器", "container", tree.ShortID(container.ID), "image", shortID)
		if err := c.runtime.StopContainer(ctx, container.ID, c.opts.StopTimeout); err != nil {
			return err
		}
		if err := c.runtime.RemoveContainer(ctx, container.ID); err != nil {
			return err
		}
	}

	refs := n.Image.RepoTags
	if len(refs) == 0 {
		refs = []string{n.ID()}
	}
	for _, ref := range refs {
		logger.Info("删除镜像", "image", shortID, "ref", ref)
		result, err := c.runtime.RemoveImage(ctx, ref)
		if err != nil {
			// 删除子镜像时无标签的父镜像会被一并清理
			if errdefs.IsNotFound(err) {
				logger.Debug("镜像已不存在", "image", shortID, "ref", ref)
				continue
			}
			return err
		}
		logger.Debug("镜像引用已删除", "ref", ref, "untagged", len(result.Untagged), "deleted", len(result.Deleted))
	}
	return nil
}

// Run 按间隔循环执行回收，直到 ctx 取消；间隔 <= 0 时只执行一轮并返回该轮的错误
func (c *Collector) Run(ctx context.Context) error {
	for {
		_, err := c.RunOnce(ctx)
		if err != nil && ctx.Err() == nil {
			c.logger.Error("本轮回收失败", "error", err)
		}

		if c.opts.Interval <= 0 {
			return err
		}

		c.logger.Info("等待下一轮回收", "interval", c.opts.Interval)
		timer := time.NewTimer(c.opts.Interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			c.logger.Info("回收器已停止")
			return nil
		case <-timer.C:
		}
	}
}

func countNodes(forest []*tree.Node) int {
	count := 0
	tree.Walk(forest, func(*tree.Node, int) bool {
		count++
		return true
	})
	return count
}
