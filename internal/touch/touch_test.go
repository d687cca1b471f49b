package touch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dockergc/internal/docker"
	"dockergc/internal/task"
	"dockergc/internal/tree"
)

var base = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func TestStore_TouchOnlyMovesForward(t *testing.T) {
	s := NewStore()

	assert.True(t, s.Touch("img", base))
	assert.False(t, s.Touch("img", base.Add(-time.Hour)))
	assert.False(t, s.Touch("img", base))
	assert.True(t, s.Touch("img", base.Add(time.Hour)))

	got, ok := s.Get("img")
	require.True(t, ok)
	assert.Equal(t, base.Add(time.Hour), got)
}

func TestStore_SetAndForget(t *testing.T) {
	s := NewStore()
	s.Set("a", base)
	s.Set("b", base)
	s.Set("a", base.Add(-time.Hour))

	got, _ := s.Get("a")
	assert.Equal(t, base.Add(-time.Hour), got, "Set 无条件覆盖")
	assert.Equal(t, 2, s.Len())

	assert.Equal(t, 1, s.Forget("a", "missing"))
	_, ok := s.Get("a")
	assert.False(t, ok)
	assert.Equal(t, 1, s.Len())
}

func TestStore_ConcurrentAccess(t *testing.T) {
	s := NewStore()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				s.Touch("img", base.Add(time.Duration(i*100+j)*time.Second))
				s.Get("img")
			}
		}(i)
	}
	wg.Wait()

	got, ok := s.Get("img")
	require.True(t, ok)
	assert.Equal(t, base.Add(799*time.Second), got)
}

// fakeSource 可控的事件源
type fakeSource struct {
	mu         sync.Mutex
	containers map[string]tree.ContainerRecord
	sessions   []func(ctx context.Context, events chan<- docker.ContainerEvent, errs chan<- error)
	watched    int
}

func (f *fakeSource) WatchEvents(ctx context.Context) (<-chan docker.ContainerEvent, <-chan error) {
	f.mu.Lock()
	session := f.sessions[len(f.sessions)-1]
	if f.watched < len(f.sessions) {
		session = f.sessions[f.watched]
	}
	f.watched++
	f.mu.Unlock()

	events := make(chan docker.ContainerEvent)
	errs := make(chan error, 1)
	go func() {
		defer close(events)
		defer close(errs)
		session(ctx, events, errs)
	}()
	return events, errs
}

func (f *fakeSource) InspectContainer(ctx context.Context, id string) (tree.ContainerRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	record, ok := f.containers[id]
	if !ok {
		return tree.ContainerRecord{}, errors.New("no such container")
	}
	return record, nil
}

func (f *fakeSource) watchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.watched
}

func send(events ...docker.ContainerEvent) func(ctx context.Context, out chan<- docker.ContainerEvent, errs chan<- error) {
	return func(ctx context.Context, out chan<- docker.ContainerEvent, errs chan<- error) {
		for _, e := range events {
			select {
			case out <- e:
			case <-ctx.Done():
				return
			}
		}
		errs <- errors.New("connection reset")
	}
}

func block(ctx context.Context, out chan<- docker.ContainerEvent, errs chan<- error) {
	<-ctx.Done()
}

func TestListener_TouchesImages(t *testing.T) {
	source := &fakeSource{
		containers: map[string]tree.ContainerRecord{
			"c1": {ID: "c1", ImageID: "sha256:aaa"},
		},
		sessions: []func(context.Context, chan<- docker.ContainerEvent, chan<- error){
			send(
				docker.ContainerEvent{Action: "create", ContainerID: "c1", Timestamp: base},
				docker.ContainerEvent{Action: "start", ContainerID: "c1", Timestamp: base.Add(time.Minute)},
				// 容器已删除，使用事件中的镜像 ID
				docker.ContainerEvent{Action: "die", ContainerID: "gone", Image: "sha256:bbb", Timestamp: base.Add(2 * time.Minute)},
				// 既查不到容器，image 也只是名称
				docker.ContainerEvent{Action: "die", ContainerID: "gone2", Image: "nginx:latest", Timestamp: base},
			),
		},
	}
	store := NewStore()
	listener := NewListener(source, store, nil)

	err := listener.Run(context.Background())
	assert.EqualError(t, err, "connection reset")

	got, ok := store.Get("sha256:aaa")
	require.True(t, ok)
	assert.Equal(t, base.Add(time.Minute), got)

	got, ok = store.Get("sha256:bbb")
	require.True(t, ok)
	assert.Equal(t, base.Add(2*time.Minute), got)

	assert.Equal(t, 2, store.Len())
	assert.Equal(t, int64(3), listener.Touched())
	assert.Equal(t, "已处理 3 个事件", listener.Message())
}

func TestListener_StreamClosedWithoutError(t *testing.T) {
	source := &fakeSource{
		sessions: []func(context.Context, chan<- docker.ContainerEvent, chan<- error){
			func(ctx context.Context, out chan<- docker.ContainerEvent, errs chan<- error) {},
		},
	}
	listener := NewListener(source, NewStore(), nil)

	err := listener.Run(context.Background())
	assert.ErrorIs(t, err, ErrStreamClosed)
}

func TestListener_StopsOnCancel(t *testing.T) {
	source := &fakeSource{
		sessions: []func(context.Context, chan<- docker.ContainerEvent, chan<- error){block},
	}
	listener := NewListener(source, NewStore(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- listener.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("listener did not stop")
	}
}

func TestListener_RestartedBySupervisor(t *testing.T) {
	source := &fakeSource{
		containers: map[string]tree.ContainerRecord{
			"c1": {ID: "c1", ImageID: "sha256:aaa"},
		},
		sessions: []func(context.Context, chan<- docker.ContainerEvent, chan<- error){
			send(docker.ContainerEvent{Action: "start", ContainerID: "c1", Timestamp: base}),
			send(docker.ContainerEvent{Action: "die", ContainerID: "c1", Timestamp: base.Add(time.Hour)}),
			block,
		},
	}
	store := NewStore()
	listener := NewListener(source, store, nil)

	m := task.NewManager(nil)
	defer m.Shutdown()
	m.Supervise(context.Background(), listener, 5*time.Millisecond)

	require.Eventually(t, func() bool { return source.watchCount() == 3 }, 2*time.Second, 5*time.Millisecond)

	got, ok := store.Get("sha256:aaa")
	require.True(t, ok)
	assert.Equal(t, base.Add(time.Hour), got)
	assert.Equal(t, 2, listener.Restarts())
}
