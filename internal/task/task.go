package task

import (
	"context"
	"sync"
)

// Status 任务状态
type Status int

const (
	StatusPending Status = iota
	StatusRunning
	StatusRestarting
	StatusCancelled
)

// String 返回状态字符串
func (s Status) String() string {
	switch s {
	case StatusPending:
		return "Pending"
	case StatusRunning:
		return "Running"
	case StatusRestarting:
		return "Restarting"
	case StatusCancelled:
		return "Cancelled"
	default:
		return "Unknown"
	}
}

// Task 任务接口
type Task interface {
	// ID 返回任务唯一标识
	ID() string
	// Name 返回任务名称（用于日志）
	Name() string
	// Status 返回当前状态
	Status() Status
	// Message 返回当前状态消息
	Message() string
	// Run 执行任务，ctx 取消时应尽快返回
	Run(ctx context.Context) error
	// Cancel 取消任务
	Cancel()
}

// BaseTask 任务基础实现，由具体任务嵌入
type BaseTask struct {
	id       string
	name     string
	status   Status
	message  string
	restarts int
	cancelFn context.CancelFunc
	mu       sync.RWMutex
}

// NewBaseTask 创建基础任务
func NewBaseTask(id, name string) *BaseTask {
	return &BaseTask{
		id:     id,
		name:   name,
		status: StatusPending,
	}
}

// ID 返回任务 ID
func (t *BaseTask) ID() string {
	return t.id
}

// Name 返回任务名称
func (t *BaseTask) Name() string {
	return t.name
}

// Status 返回任务状态
func (t *BaseTask) Status() Status {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.status
}

// SetStatus 设置任务状态；已取消的任务不会再被改回其他状态
func (t *BaseTask) SetStatus(status Status) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.status == StatusCancelled {
		return
	}
	t.status = status
}

// Message 返回消息
func (t *BaseTask) Message() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.message
}

// SetMessage 设置消息
func (t *BaseTask) SetMessage(message string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.message = message
}

// Restarts 返回被重启的次数
func (t *BaseTask) Restarts() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.restarts
}

func (t *BaseTask) markRestart() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.restarts++
	if t.status != StatusCancelled {
		t.status = StatusRestarting
	}
}

// SetCancelFunc 设置取消函数
func (t *BaseTask) SetCancelFunc(fn context.CancelFunc) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cancelFn = fn
}

// Cancel 取消任务
func (t *BaseTask) Cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancelFn != nil {
		t.cancelFn()
	}
	t.status = StatusCancelled
}
