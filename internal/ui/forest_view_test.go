package ui

import (
	"context"
	"errors"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dockergc/internal/describe"
	"dockergc/internal/matchlist"
	"dockergc/internal/tree"
)

var now = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func sampleForest() ([]*tree.Node, []*tree.Node) {
	leaf := tree.NewNode(tree.ImageRecord{ID: "sha256:cccccccccccccccc", Created: now.Add(-48 * time.Hour), Size: 300})
	mid := tree.NewNode(tree.ImageRecord{ID: "sha256:bbbbbbbbbbbbbbbb", Created: now.Add(-72 * time.Hour), Size: 200, RepoTags: []string{"app:1"}})
	root := tree.NewNode(tree.ImageRecord{ID: "sha256:aaaaaaaaaaaaaaaa", Created: now.Add(-96 * time.Hour), Size: 100, RepoTags: []string{"alpine:3"}})
	root.AddChild(mid.AddChild(leaf))
	return []*tree.Node{root}, []*tree.Node{leaf}
}

func newTestView(evaluate Evaluator) *ForestView {
	return NewForestView(evaluate, func(*tree.Node) bool { return false }, matchlist.New("exited,dead")).
		WithDescriptor(describe.New(false).WithClock(func() time.Time { return now }))
}

func loaded(t *testing.T) *ForestView {
	t.Helper()
	v := newTestView(func(ctx context.Context) ([]*tree.Node, []*tree.Node, error) {
		forest, selected := sampleForest()
		return forest, selected, nil
	})
	cmd := v.Init()
	require.NotNil(t, cmd)
	v.Update(cmd())
	return v
}

func keyMsg(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestForestView_Loads(t *testing.T) {
	v := loaded(t)

	out := v.View()
	assert.Contains(t, out, "镜像依赖图")
	assert.Contains(t, out, "Disk usage by images: 300B, 1 images selected for deletion (100B)")
	assert.Contains(t, out, "Image: aaaaaaaaaaaa (alpine:3) 4 days 100B")
	assert.Contains(t, out, "Image: cccccccccccc (<none>) 2 days 100B <--- 1")
	assert.Equal(t, "sha256:aaaaaaaaaaaaaaaa", v.Selected().ID())
}

func TestForestView_CursorMovement(t *testing.T) {
	v := loaded(t)

	v.Update(keyMsg("j"))
	assert.Equal(t, 1, v.Cursor())
	v.Update(tea.KeyMsg{Type: tea.KeyDown})
	assert.Equal(t, 2, v.Cursor())
	v.Update(keyMsg("j"))
	assert.Equal(t, 2, v.Cursor(), "光标不会越过最后一行")
	assert.Equal(t, "sha256:cccccccccccccccc", v.Selected().ID())

	v.Update(keyMsg("g"))
	assert.Equal(t, 0, v.Cursor())
	v.Update(keyMsg("k"))
	assert.Equal(t, 0, v.Cursor())
	v.Update(keyMsg("G"))
	assert.Equal(t, 2, v.Cursor())
}

func TestForestView_Details(t *testing.T) {
	v := loaded(t)

	v.Update(keyMsg("j"))
	v.Update(keyMsg("d"))
	out := v.View()
	assert.Contains(t, out, "镜像详情")
	assert.Contains(t, out, "app:1")
	assert.Contains(t, out, "受保护")

	v.Update(keyMsg("j"))
	assert.Contains(t, v.View(), "第 1 个")
}

func TestForestView_Error(t *testing.T) {
	v := newTestView(func(ctx context.Context) ([]*tree.Node, []*tree.Node, error) {
		return nil, nil, errors.New("Cannot connect to the Docker daemon")
	})
	v.Update(v.Init()())

	out := v.View()
	assert.Contains(t, out, "读取失败")
	assert.Contains(t, out, "Cannot connect to the Docker daemon")
	assert.Nil(t, v.Selected())
}

func TestForestView_RefreshAndQuit(t *testing.T) {
	calls := 0
	v := newTestView(func(ctx context.Context) ([]*tree.Node, []*tree.Node, error) {
		calls++
		forest, selected := sampleForest()
		return forest, selected, nil
	})
	v.Update(v.Init()())

	_, cmd := v.Update(keyMsg("r"))
	require.NotNil(t, cmd)
	v.Update(cmd())
	assert.Equal(t, 2, calls)

	_, cmd = v.Update(keyMsg("q"))
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestForestView_WindowResize(t *testing.T) {
	v := loaded(t)
	v.Update(tea.WindowSizeMsg{Width: 80, Height: 10})

	assert.Equal(t, 80, v.viewport.Width)
	assert.Equal(t, 4, v.viewport.Height)
}
