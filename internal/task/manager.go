// Package task 管理常驻后台任务：任务返回后按固定间隔无限重启，状态变化以事件形式发送给订阅者。
package task

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"dockergc/internal/logging"
)

// EventType 事件类型
type EventType int

const (
	EventStarted EventType = iota
	EventRestarting
	EventFailed
	EventCancelled
)

// String 返回事件类型名称
func (e EventType) String() string {
	switch e {
	case EventStarted:
		return "started"
	case EventRestarting:
		return "restarting"
	case EventFailed:
		return "failed"
	case EventCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Event 任务事件
type Event struct {
	TaskID   string
	TaskName string
	Type     EventType
	Message  string
	Error    error
	Time     time.Time
}

// controllable 嵌入 BaseTask 的任务可由管理器设置状态和取消函数
type controllable interface {
	SetStatus(Status)
	SetCancelFunc(context.CancelFunc)
	markRestart()
}

// Manager 后台任务管理器
type Manager struct {
	tasks       map[string]Task
	closed      bool
	mu          sync.RWMutex
	eventChan   chan Event
	subscribers []chan Event
	drained     bool
	subMu       sync.RWMutex
	wg          sync.WaitGroup
	dispatched  chan struct{}
	logger      *log.Logger
}

// NewManager 创建任务管理器并启动事件分发
func NewManager(logger *log.Logger) *Manager {
	if logger == nil {
		logger = logging.Discard()
	}
	m := &Manager{
		tasks:       make(map[string]Task),
		eventChan:   make(chan Event, 100),
		subscribers: make([]chan Event, 0),
		dispatched:  make(chan struct{}),
		logger:      logger,
	}
	go m.dispatchEvents()
	return m
}

// dispatchEvents 分发事件到所有订阅者
func (m *Manager) dispatchEvents() {
	defer close(m.dispatched)
	for event := range m.eventChan {
		m.subMu.RLock()
		for _, sub := range m.subscribers {
			select {
			case sub <- event:
			default:
				// 订阅者通道已满，跳过
			}
		}
		m.subMu.RUnlock()
	}

	m.subMu.Lock()
	for _, sub := range m.subscribers {
		close(sub)
	}
	m.subscribers = nil
	m.drained = true
	m.subMu.Unlock()
}

// Supervise 提交常驻任务：任务返回（无论成功或失败）后等待 delay 再次运行，
// 直到 ctx 被取消或任务被 Cancel。返回任务 ID。
func (m *Manager) Supervise(ctx context.Context, task Task, delay time.Duration) string {
	m.mu.Lock()
	m.tasks[task.ID()] = task
	m.mu.Unlock()

	m.wg.Add(1)
	go m.supervise(ctx, task, delay)
	return task.ID()
}

// supervise 无限重启任务，固定间隔
func (m *Manager) supervise(parent context.Context, task Task, delay time.Duration) {
	defer m.wg.Done()
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	ctrl, _ := task.(controllable)
	if ctrl != nil {
		ctrl.SetCancelFunc(cancel)
	}
	// 在设置取消函数之前就被取消的任务不再运行
	if task.Status() == StatusCancelled {
		m.cancelled(task)
		return
	}

	for {
		if ctrl != nil {
			ctrl.SetStatus(StatusRunning)
		}
		m.emit(task, EventStarted, "任务已启动", nil)

		err := task.Run(ctx)
		if ctx.Err() != nil || task.Status() == StatusCancelled {
			m.cancelled(task)
			return
		}

		if err != nil {
			m.logger.Debug("后台任务返回错误", "task", task.Name(), "id", task.ID(), "error", err)
			m.emit(task, EventFailed, err.Error(), err)
		} else {
			m.logger.Debug("后台任务已退出", "task", task.Name(), "id", task.ID())
		}

		if ctrl != nil {
			ctrl.markRestart()
		}
		m.emit(task, EventRestarting, "等待重启", nil)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			m.cancelled(task)
			return
		case <-timer.C:
		}
	}
}

func (m *Manager) cancelled(task Task) {
	if ctrl, ok := task.(controllable); ok {
		ctrl.SetStatus(StatusCancelled)
	}
	m.emit(task, EventCancelled, "任务已取消", nil)
}

// emit 发送事件
func (m *Manager) emit(task Task, typ EventType, message string, err error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return
	}
	select {
	case m.eventChan <- Event{
		TaskID:   task.ID(),
		TaskName: task.Name(),
		Type:     typ,
		Message:  message,
		Error:    err,
		Time:     time.Now(),
	}:
	default:
		// 事件通道已满，跳过
	}
}

// GetTask 获取任务
func (m *Manager) GetTask(taskID string) Task {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tasks[taskID]
}

// Subscribe 订阅事件，Shutdown 后通道被关闭；Shutdown 之后订阅得到已关闭的通道
func (m *Manager) Subscribe() <-chan Event {
	ch := make(chan Event, 50)
	m.subMu.Lock()
	defer m.subMu.Unlock()
	if m.drained {
		close(ch)
		return ch
	}
	m.subscribers = append(m.subscribers, ch)
	return ch
}

// Unsubscribe 取消订阅并关闭通道
func (m *Manager) Unsubscribe(ch <-chan Event) {
	m.subMu.Lock()
	defer m.subMu.Unlock()

	for i, sub := range m.subscribers {
		if sub == ch {
			m.subscribers = append(m.subscribers[:i], m.subscribers[i+1:]...)
			close(sub)
			break
		}
	}
}

// Shutdown 取消所有任务并等待其退出，随后关闭所有订阅通道
func (m *Manager) Shutdown() {
	m.mu.RLock()
	for _, task := range m.tasks {
		task.Cancel()
	}
	m.mu.RUnlock()

	m.wg.Wait()

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	close(m.eventChan)
	m.mu.Unlock()

	<-m.dispatched
}

// GenerateTaskID 生成任务 ID
func GenerateTaskID() string {
	return uuid.New().String()[:8]
}
