package docker

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/events"
	"github.com/docker/docker/api/types/filters"
	sdk "github.com/docker/docker/client"

	"dockergc/internal/docker/image"
	"dockergc/internal/tree"
)

// Docker Endpoint 配置说明：
//
// 1. **本地 Docker（默认）**
//    - 不设置 DOCKER_HOST 和 DOCKERGC_DOCKER_ENDPOINT，SDK 使用 unix:///var/run/docker.sock
//
// 2. **远程 Docker（TCP）**
//    - 设置 DOCKERGC_DOCKER_ENDPOINT=tcp://主机:2375，优先级高于 DOCKER_HOST
//    - 启用 TLS 时同时设置 DOCKER_TLS_VERIFY=1 和 DOCKER_CERT_PATH
//
// 验证方法：
//   - 运行 dockergc describe，能打印镜像依赖树即说明连接正常

// ContainerEvent 表示 Docker 容器事件
type ContainerEvent struct {
	Action        string    // 事件类型: create, start, die 等
	ContainerID   string    // 容器 ID
	ContainerName string    // 容器名称
	Image         string    // 事件中的 image 属性（可能是名称也可能是 ID）
	Timestamp     time.Time // 事件时间
}

// watchedActions 需要关注的容器事件，对应镜像被“使用”的时刻
var watchedActions = map[string]bool{
	"create": true,
	"start":  true,
	"die":    true,
}

// Client 抽象了 dockergc 需要的 Docker 能力，方便用假实现测试
type Client interface {
	// Ping 验证 Docker 守护进程是否可用
	Ping(ctx context.Context) error

	// ListImages 获取所有镜像（包括中间层）
	ListImages(ctx context.Context) ([]tree.ImageRecord, error)

	// ListContainers 获取所有容器（包括已停止的）
	ListContainers(ctx context.Context) ([]tree.ContainerSummary, error)

	// InspectContainer 获取容器状态和时间信息
	InspectContainer(ctx context.Context, containerID string) (tree.ContainerRecord, error)

	// StopContainer 停止容器
	// timeout: 等待容器优雅停止的超时时间（秒），0 表示使用守护进程默认值
	StopContainer(ctx context.Context, containerID string, timeout int) error

	// RemoveContainer 删除容器（不强制）
	RemoveContainer(ctx context.Context, containerID string) error

	// RemoveImage 删除镜像引用（repo:tag 或 ID）
	RemoveImage(ctx context.Context, ref string) (image.RemoveResult, error)

	// WatchEvents 监听容器 create/start/die 事件
	// 返回事件通道和错误通道，context 用于控制监听的生命周期
	WatchEvents(ctx context.Context) (<-chan ContainerEvent, <-chan error)

	// Close 关闭客户端连接，释放资源
	Close() error
}

// LocalClient 封装 Docker SDK 客户端实现。
type LocalClient struct {
	cli    *sdk.Client
	images *image.Client
}

// NewLocalClientFromEnv 基于环境变量创建 Docker 客户端，并开启 API 版本协商。
// endpoint 非空时覆盖 DOCKER_HOST。
func NewLocalClientFromEnv(endpoint string) (*LocalClient, error) {
	opts := []sdk.Opt{
		sdk.FromEnv,
		sdk.WithAPIVersionNegotiation(),
	}
	if endpoint != "" {
		opts = append(opts, sdk.WithHost(endpoint))
	}

	cli, err := sdk.NewClientWithOpts(opts...)
	if err != nil {
		return nil, fmt.Errorf("创建 Docker 客户端失败: %w", err)
	}
	return NewLocalClient(cli), nil
}

// NewLocalClient 使用已有的 SDK 客户端
func NewLocalClient(cli *sdk.Client) *LocalClient {
	return &LocalClient{cli: cli, images: image.NewClient(cli)}
}

// Ping 用于验证 Docker 守护进程是否可用。
func (c *LocalClient) Ping(ctx context.Context) error {
	if c == nil || c.cli == nil {
		return fmt.Errorf("Docker 客户端未初始化")
	}
	_, err := c.cli.Ping(ctx)
	return err
}

// ListImages 获取所有镜像
func (c *LocalClient) ListImages(ctx context.Context) ([]tree.ImageRecord, error) {
	if c == nil || c.cli == nil {
		return nil, fmt.Errorf("Docker 客户端未初始化")
	}
	return c.images.List(ctx)
}

// RemoveImage 删除镜像引用
func (c *LocalClient) RemoveImage(ctx context.Context, ref string) (image.RemoveResult, error) {
	if c == nil || c.cli == nil {
		return image.RemoveResult{}, fmt.Errorf("Docker 客户端未初始化")
	}
	return c.images.Remove(ctx, ref)
}

// ListContainers 获取所有容器
func (c *LocalClient) ListContainers(ctx context.Context) ([]tree.ContainerSummary, error) {
	if c == nil || c.cli == nil {
		return nil, fmt.Errorf("Docker 客户端未初始化")
	}

	containers, err := c.cli.ContainerList(ctx, container.ListOptions{All: true})
	if err != nil {
		return nil, fmt.Errorf("获取容器列表失败: %w", err)
	}

	result := make([]tree.ContainerSummary, 0, len(containers))
	for _, item := range containers {
		result = append(result, tree.ContainerSummary{
			ID:      item.ID,
			ImageID: item.ImageID,
		})
	}
	return result, nil
}

// InspectContainer 获取容器状态和时间信息
func (c *LocalClient) InspectContainer(ctx context.Context, containerID string) (tree.ContainerRecord, error) {
	if c == nil || c.cli == nil {
		return tree.ContainerRecord{}, fmt.Errorf("Docker 客户端未初始化")
	}

	resp, err := c.cli.ContainerInspect(ctx, containerID)
	if err != nil {
		return tree.ContainerRecord{}, fmt.Errorf("获取容器详情失败: %w", err)
	}
	if resp.ContainerJSONBase == nil {
		return tree.ContainerRecord{}, fmt.Errorf("容器 %s 的详情为空", containerID)
	}

	record := tree.ContainerRecord{
		ID:      resp.ID,
		ImageID: resp.Image,
		Status:  "unknown",
		Created: parseTimestamp(resp.Created),
	}

	// 提取状态信息
	if resp.State != nil {
		record.Status = string(resp.State.Status)
		record.Started = parseTimestamp(resp.State.StartedAt)
		record.Finished = parseTimestamp(resp.State.FinishedAt)
	}

	return record, nil
}

// parseTimestamp 解析 Docker 返回的 RFC3339 时间；
// 空串、解析失败以及 0001-01-01T00:00:00Z 都返回零值，表示该阶段尚未发生
func parseTimestamp(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil || t.IsZero() {
		return time.Time{}
	}
	return t
}

// StopContainer 停止容器
func (c *LocalClient) StopContainer(ctx context.Context, containerID string, timeout int) error {
	if c == nil || c.cli == nil {
		return fmt.Errorf("Docker 客户端未初始化")
	}

	// 设置超时时间
	var timeoutPtr *int
	if timeout > 0 {
		timeoutPtr = &timeout
	}

	err := c.cli.ContainerStop(ctx, containerID, container.StopOptions{
		Timeout: timeoutPtr,
	})
	if err != nil {
		return fmt.Errorf("停止容器失败: %w", err)
	}

	return nil
}

// RemoveContainer 删除容器
func (c *LocalClient) RemoveContainer(ctx context.Context, containerID string) error {
	if c == nil || c.cli == nil {
		return fmt.Errorf("Docker 客户端未初始化")
	}

	err := c.cli.ContainerRemove(ctx, containerID, container.RemoveOptions{
		Force: false,
	})
	if err != nil {
		return fmt.Errorf("删除容器失败: %w", err)
	}

	return nil
}

// Close 关闭 Docker 客户端连接
func (c *LocalClient) Close() error {
	if c == nil || c.cli == nil {
		return nil
	}
	return c.cli.Close()
}

// WatchEvents 监听 Docker 容器事件
func (c *LocalClient) WatchEvents(ctx context.Context) (<-chan ContainerEvent, <-chan error) {
	eventChan := make(chan ContainerEvent, 10)
	errorChan := make(chan error, 1)

	// 启动 goroutine 监听事件
	go func() {
		defer close(eventChan)
		defer close(errorChan)

		// 检查客户端是否初始化
		if c == nil || c.cli == nil {
			errorChan <- fmt.Errorf("Docker 客户端未初始化")
			return
		}

		// 只关注容器事件
		filterArgs := filters.NewArgs()
		filterArgs.Add("type", string(events.ContainerEventType))
		for action := range watchedActions {
			filterArgs.Add("event", action)
		}

		msgChan, errChan := c.cli.Events(ctx, events.ListOptions{
			Filters: filterArgs,
		})

		for {
			select {
			case <-ctx.Done():
				return
			case err := <-errChan:
				if err != nil {
					errorChan <- fmt.Errorf("监听 Docker 事件失败: %w", err)
				}
				return
			case msg, open := <-msgChan:
				if !open {
					return
				}
				event, ok := toContainerEvent(msg)
				if !ok {
					continue
				}
				select {
				case eventChan <- event:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return eventChan, errorChan
}

// toContainerEvent 过滤并转换 SDK 事件，非关注的事件返回 false
func toContainerEvent(msg events.Message) (ContainerEvent, bool) {
	if msg.Type != events.ContainerEventType {
		return ContainerEvent{}, false
	}

	// exec_die 等带前缀的事件不算
	action := strings.TrimSpace(string(msg.Action))
	if !watchedActions[action] {
		return ContainerEvent{}, false
	}

	timestamp := time.Unix(msg.Time, 0)
	if msg.TimeNano != 0 {
		timestamp = time.Unix(0, msg.TimeNano)
	}

	return ContainerEvent{
		Action:        action,
		ContainerID:   msg.Actor.ID,
		ContainerName: msg.Actor.Attributes["name"],
		Image:         msg.Actor.Attributes["image"],
		Timestamp:     timestamp,
	}, true
}
