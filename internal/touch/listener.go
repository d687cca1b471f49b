package touch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/charmbracelet/log"

	"dockergc/internal/docker"
	"dockergc/internal/logging"
	"dockergc/internal/task"
	"dockergc/internal/tree"
)

// ErrStreamClosed 事件流在没有错误的情况下结束
var ErrStreamClosed = errors.New("Docker 事件流已关闭")

// EventSource 监听器需要的 Docker 能力
type EventSource interface {
	WatchEvents(ctx context.Context) (<-chan docker.ContainerEvent, <-chan error)
	InspectContainer(ctx context.Context, containerID string) (tree.ContainerRecord, error)
}

// Listener 监听容器 create/start/die 事件，把事件时间记为所属镜像的最后使用时间。
// 作为常驻任务运行，事件流断开时返回错误，由任务管理器负责重启。
type Listener struct {
	*task.BaseTask

	source  EventSource
	store   *Store
	logger  *log.Logger
	touched atomic.Int64
}

// NewListener 创建事件监听任务
func NewListener(source EventSource, store *Store, logger *log.Logger) *Listener {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Listener{
		BaseTask: task.NewBaseTask(task.GenerateTaskID(), "镜像使用事件监听"),
		source:   source,
		store:    store,
		logger:   logger,
	}
}

// Touched 返回累计处理的事件数
func (l *Listener) Touched() int64 {
	return l.touched.Load()
}

// Run 消费事件直到 ctx 取消或事件流出错
func (l *Listener) Run(ctx context.Context) error {
	eventChan, errChan := l.source.WatchEvents(ctx)
	l.SetMessage("正在监听容器事件")
	l.logger.Debug("开始监听容器事件", "task", l.ID())

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err, ok := <-errChan:
			if !ok {
				errChan = nil
				continue
			}
			if err != nil {
				return err
			}
		case event, ok := <-eventChan:
			if !ok {
				if errChan != nil {
					if err, ok := <-errChan; ok && err != nil {
						return err
					}
				}
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return ErrStreamClosed
			}
			l.handle(ctx, event)
		}
	}
}

func (l *Listener) handle(ctx context.Context, event docker.ContainerEvent) {
	imageID, err := l.resolveImage(ctx, event)
	if err != nil {
		l.logger.Debug("忽略无法确定镜像的容器事件",
			"action", event.Action, "container", tree.ShortID(event.ContainerID), "error", err)
		return
	}

	if l.store.Touch(imageID, event.Timestamp) {
		l.logger.Debug("更新镜像最后使用时间",
			"image", tree.ShortID(imageID), "action", event.Action, "time", event.Timestamp)
	}
	n := l.touched.Add(1)
	l.SetMessage(fmt.Sprintf("已处理 %d 个事件", n))
}

// resolveImage 优先使用容器详情中的镜像 ID；容器已被删除时退回事件里的 image 属性（仅当它本身就是 ID）
func (l *Listener) resolveImage(ctx context.Context, event docker.ContainerEvent) (string, error) {
	record, err := l.source.InspectContainer(ctx, event.ContainerID)
	if err == nil && record.ImageID != "" {
		return record.ImageID, nil
	}
	if strings.HasPrefix(event.Image, "sha256:") {
		return event.Image, nil
	}
	if err != nil {
		return "", err
	}
	return "", fmt.Errorf("容器 %s 没有镜像信息", event.ContainerID)
}
