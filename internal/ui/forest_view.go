// Package ui 交互式浏览镜像依赖森林和本轮回收计划
package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"dockergc/internal/describe"
	"dockergc/internal/matchlist"
	"dockergc/internal/tree"
	"dockergc/internal/ui/styles"
)

// Evaluator 获取依赖森林和按删除顺序排列的候选镜像
type Evaluator func(ctx context.Context) (forest []*tree.Node, selected []*tree.Node, err error)

// 头部、摘要、提示等占用的行数
const chromeHeight = 6

type forestLoadedMsg struct {
	forest   []*tree.Node
	selected []*tree.Node
}

type forestErrorMsg struct {
	err error
}

// ForestView 依赖图浏览器
type ForestView struct {
	evaluate   Evaluator
	canDelete  func(*tree.Node) bool
	denylist   *matchlist.Matchlist
	descriptor *describe.Descriptor
	timeout    time.Duration

	width  int
	height int

	lines       []describe.Line
	summary     string
	cursor      int
	showDetails bool
	loading     bool
	errorMsg    string

	viewport viewport.Model
	keys     KeyMap
}

// NewForestView 创建浏览器。canDelete 用于详情面板中的删除判断，可以为空。
func NewForestView(evaluate Evaluator, canDelete func(*tree.Node) bool, denylist *matchlist.Matchlist) *ForestView {
	vp := viewport.New(100, 20)
	return &ForestView{
		evaluate:   evaluate,
		canDelete:  canDelete,
		denylist:   denylist,
		descriptor: describe.New(true),
		timeout:    30 * time.Second,
		width:      100,
		height:     20 + chromeHeight,
		viewport:   vp,
		keys:       DefaultKeyMap(),
	}
}

// WithDescriptor 替换描述器（测试中用于固定时钟和关闭样式）
func (v *ForestView) WithDescriptor(d *describe.Descriptor) *ForestView {
	v.descriptor = d
	return v
}

// Init 加载第一份数据
func (v *ForestView) Init() tea.Cmd {
	v.loading = true
	return v.load
}

func (v *ForestView) load() tea.Msg {
	ctx, cancel := context.WithTimeout(context.Background(), v.timeout)
	defer cancel()

	forest, selected, err := v.evaluate(ctx)
	if err != nil {
		return forestErrorMsg{err: err}
	}
	return forestLoadedMsg{forest: forest, selected: selected}
}

// Update 处理消息
func (v *ForestView) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.width = msg.Width
		v.height = msg.Height
		v.resize()
		return v, nil

	case forestLoadedMsg:
		v.loading = false
		v.errorMsg = ""
		v.lines = v.descriptor.Lines(msg.forest, msg.selected, v.denylist)
		v.summary = v.descriptor.Summary(msg.forest, msg.selected)
		if v.cursor >= len(v.lines) {
			v.cursor = max(len(v.lines)-1, 0)
		}
		v.refreshContent()
		return v, nil

	case forestErrorMsg:
		v.loading = false
		v.errorMsg = msg.err.Error()
		return v, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, v.keys.Quit):
			return v, tea.Quit
		case key.Matches(msg, v.keys.Refresh):
			v.loading = true
			v.errorMsg = ""
			return v, v.load
		case key.Matches(msg, v.keys.Details):
			v.showDetails = !v.showDetails
			v.resize()
			return v, nil
		case key.Matches(msg, v.keys.Up):
			v.moveCursor(-1)
			return v, nil
		case key.Matches(msg, v.keys.Down):
			v.moveCursor(1)
			return v, nil
		case key.Matches(msg, v.keys.PageUp):
			v.moveCursor(-v.viewport.Height)
			return v, nil
		case key.Matches(msg, v.keys.PageDown):
			v.moveCursor(v.viewport.Height)
			return v, nil
		case key.Matches(msg, v.keys.Home):
			v.moveCursor(-len(v.lines))
			return v, nil
		case key.Matches(msg, v.keys.End):
			v.moveCursor(len(v.lines))
			return v, nil
		}
	}

	v.viewport, cmd = v.viewport.Update(msg)
	return v, cmd
}

// Cursor 当前光标所在行
func (v *ForestView) Cursor() int {
	return v.cursor
}

// Selected 光标所在的镜像，没有数据时返回 nil
func (v *ForestView) Selected() *tree.Node {
	if v.cursor < 0 || v.cursor >= len(v.lines) {
		return nil
	}
	return v.lines[v.cursor].Node
}

func (v *ForestView) moveCursor(delta int) {
	if len(v.lines) == 0 {
		return
	}
	v.cursor = min(max(v.cursor+delta, 0), len(v.lines)-1)
	v.refreshContent()
}

// refreshContent 重新生成视口内容并保证光标可见
func (v *ForestView) refreshContent() {
	rows := make([]string, len(v.lines))
	for i, l := range v.lines {
		row := v.descriptor.FormatLine(l)
		if i == v.cursor {
			row = styles.CursorStyle.Render("> ") + row
		} else {
			row = "  " + row
		}
		rows[i] = row
	}
	v.viewport.SetContent(strings.Join(rows, "\n"))

	if v.cursor < v.viewport.YOffset {
		v.viewport.SetYOffset(v.cursor)
	} else if v.cursor >= v.viewport.YOffset+v.viewport.Height {
		v.viewport.SetYOffset(v.cursor - v.viewport.Height + 1)
	}
}

func (v *ForestView) resize() {
	h := v.height - chromeHeight
	if v.showDetails {
		h -= detailsHeight
	}
	v.viewport.Width = v.width
	v.viewport.Height = max(h, 3)
	v.refreshContent()
}

// View 渲染视图
func (v *ForestView) View() string {
	var s strings.Builder

	s.WriteString(styles.TitleStyle.Render("镜像依赖图"))
	s.WriteString("\n")

	switch {
	case v.loading && len(v.lines) == 0:
		s.WriteString(styles.StateBoxStyle.Render("正在读取镜像和容器..."))
		s.WriteString("\n")
	case v.errorMsg != "":
		s.WriteString(styles.StateBoxStyle.Render(styles.ErrorStyle.Render("读取失败") + "\n\n" + v.errorMsg))
		s.WriteString("\n")
	case len(v.lines) == 0:
		s.WriteString(styles.StateBoxStyle.Render("没有镜像"))
		s.WriteString("\n")
	default:
		s.WriteString(styles.MutedStyle.Render(v.summary))
		s.WriteString("\n\n")
		s.WriteString(v.viewport.View())
		s.WriteString("\n")
		if v.showDetails {
			s.WriteString(v.renderDetails())
		}
	}

	s.WriteString(v.renderKeyHints())
	return s.String()
}

// 详情面板的行数（含边框）
const detailsHeight = 10

func (v *ForestView) renderDetails() string {
	if v.cursor >= len(v.lines) {
		return ""
	}
	l := v.lines[v.cursor]
	n := l.Node

	tags := "<none>"
	if len(n.Image.RepoTags) > 0 {
		tags = strings.Join(n.Image.RepoTags, ", ")
	}

	var b strings.Builder
	b.WriteString(styles.SubtitleStyle.Render("镜像详情") + "\n")
	row := func(label, value string) {
		b.WriteString(styles.LabelStyle.Render(label) + value + "\n")
	}
	row("ID", tree.ShortID(n.ID()))
	row("标签", tags)
	row("创建时间", n.Image.Created.Format("2006-01-02 15:04"))
	row("独占大小", describe.HumanSize(n.DiskSize()))
	row("容器", fmt.Sprintf("%d（阻塞 %d）", l.Containers, l.Blocking))

	switch {
	case l.Position > 0:
		row("删除顺序", styles.WarningStyle.Render(fmt.Sprintf("第 %d 个", l.Position)))
	case v.canDelete != nil && v.canDelete(n):
		row("删除顺序", styles.SuccessStyle.Render("可删除，本轮未选中"))
	default:
		row("删除顺序", styles.ErrorStyle.Render("受保护"))
	}

	return styles.BoxStyle.Render(strings.TrimRight(b.String(), "\n")) + "\n"
}

func (v *ForestView) renderKeyHints() string {
	hints := make([]string, 0)
	for _, b := range v.keys.ShortHelp() {
		h := b.Help()
		hints = append(hints, styles.KeyStyle.Render(h.Key)+" "+styles.HintStyle.Render(h.Desc))
	}
	if v.loading && len(v.lines) > 0 {
		hints = append(hints, styles.MutedStyle.Render("刷新中..."))
	}
	return strings.Join(hints, "  ")
}
