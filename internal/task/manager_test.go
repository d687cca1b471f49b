package task

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// funcTask 用函数实现 Run 的测试任务
type funcTask struct {
	*BaseTask
	runs atomic.Int32
	run  func(ctx context.Context, attempt int) error
}

func newFuncTask(name string, run func(ctx context.Context, attempt int) error) *funcTask {
	return &funcTask{BaseTask: NewBaseTask(GenerateTaskID(), name), run: run}
}

func (t *funcTask) Run(ctx context.Context) error {
	attempt := int(t.runs.Add(1))
	return t.run(ctx, attempt)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	require.Eventually(t, cond, 2*time.Second, 5*time.Millisecond)
}

func TestStatus_String(t *testing.T) {
	assert.Equal(t, "Running", StatusRunning.String())
	assert.Equal(t, "Restarting", StatusRestarting.String())
	assert.Equal(t, "Cancelled", StatusCancelled.String())
	assert.Equal(t, "Unknown", Status(99).String())
	assert.Equal(t, "failed", EventFailed.String())
}

func TestBaseTask_CancelIsFinal(t *testing.T) {
	bt := NewBaseTask("id", "name")
	bt.SetStatus(StatusRunning)
	bt.Cancel()
	assert.Equal(t, StatusCancelled, bt.Status())

	bt.SetStatus(StatusRunning)
	assert.Equal(t, StatusCancelled, bt.Status(), "已取消的任务不能恢复")

	bt.markRestart()
	assert.Equal(t, StatusCancelled, bt.Status())
	assert.Equal(t, 1, bt.Restarts())
}

func TestManager_SuperviseRestartsAfterFailure(t *testing.T) {
	m := NewManager(nil)
	defer m.Shutdown()

	events := m.Subscribe()
	task := newFuncTask("listener", func(ctx context.Context, attempt int) error {
		if attempt < 3 {
			return errors.New("connection lost")
		}
		<-ctx.Done()
		return ctx.Err()
	})
	task.SetMessage("正在监听")
	id := m.Supervise(context.Background(), task, 10*time.Millisecond)

	assert.Equal(t, task.ID(), id)
	require.Same(t, task, m.GetTask(id))
	assert.Nil(t, m.GetTask("missing"))
	assert.Equal(t, "正在监听", m.GetTask(id).Message())

	waitFor(t, func() bool { return task.runs.Load() == 3 && task.Status() == StatusRunning })
	assert.Equal(t, 2, task.Restarts())

	failed := 0
	restarting := 0
	waitFor(t, func() bool {
		for {
			select {
			case event := <-events:
				switch event.Type {
				case EventFailed:
					failed++
					assert.EqualError(t, event.Error, "connection lost")
					assert.Equal(t, "listener", event.TaskName)
				case EventRestarting:
					restarting++
				}
			default:
				return failed == 2 && restarting == 2
			}
		}
	})

	task.Cancel()
	waitFor(t, func() bool { return task.Status() == StatusCancelled })
}

func TestManager_SuperviseRestartsAfterCleanExit(t *testing.T) {
	m := NewManager(nil)
	defer m.Shutdown()

	task := newFuncTask("short-lived", func(ctx context.Context, attempt int) error { return nil })
	m.Supervise(context.Background(), task, 5*time.Millisecond)

	waitFor(t, func() bool { return task.runs.Load() >= 3 })
}

func TestManager_SuperviseStopsOnContextCancel(t *testing.T) {
	m := NewManager(nil)
	defer m.Shutdown()

	ctx, cancel := context.WithCancel(context.Background())
	task := newFuncTask("waiting", func(ctx context.Context, attempt int) error {
		return errors.New("always failing")
	})
	m.Supervise(ctx, task, time.Hour)

	waitFor(t, func() bool { return task.Status() == StatusRestarting })
	cancel()
	waitFor(t, func() bool { return task.Status() == StatusCancelled })
	assert.Equal(t, int32(1), task.runs.Load())
}

func TestManager_ShutdownClosesSubscribers(t *testing.T) {
	m := NewManager(nil)
	events := m.Subscribe()

	task := newFuncTask("blocking", func(ctx context.Context, attempt int) error {
		<-ctx.Done()
		return ctx.Err()
	})
	m.Supervise(context.Background(), task, time.Millisecond)
	waitFor(t, func() bool { return task.runs.Load() == 1 })

	m.Shutdown()
	assert.Equal(t, StatusCancelled, task.Status())

	types := make([]EventType, 0)
	for event := range events {
		types = append(types, event.Type)
	}
	assert.Equal(t, []EventType{EventStarted, EventCancelled}, types)

	// 重复调用不应 panic
	m.Shutdown()

	_, ok := <-m.Subscribe()
	assert.False(t, ok, "关闭后订阅应得到已关闭的通道")
}

func TestManager_UnsubscribeClosesChannel(t *testing.T) {
	m := NewManager(nil)
	defer m.Shutdown()

	events := m.Subscribe()
	kept := m.Subscribe()
	m.Unsubscribe(events)

	_, ok := <-events
	assert.False(t, ok)

	task := newFuncTask("blocking", func(ctx context.Context, attempt int) error {
		<-ctx.Done()
		return ctx.Err()
	})
	m.Supervise(context.Background(), task, time.Millisecond)

	select {
	case event := <-kept:
		assert.Equal(t, EventStarted, event.Type)
	case <-time.After(2 * time.Second):
		t.Fatal("未收到启动事件")
	}

	// 重复取消订阅不应 panic
	m.Unsubscribe(events)
}

func TestGenerateTaskID(t *testing.T) {
	a := GenerateTaskID()
	b := GenerateTaskID()
	assert.Len(t, a, 8)
	assert.NotEqual(t, a, b)
}
