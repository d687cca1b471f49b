// Package describe 输出镜像依赖森林：磁盘占用统计和带删除顺序标记的树形视图
package describe

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/docker/go-units"
	"github.com/samber/lo"

	"dockergc/internal/matchlist"
	"dockergc/internal/tree"
	"dockergc/internal/ui/styles"
)

const (
	indentWidth     = 2
	highlightMarker = "<---"
)

var (
	imageStyle     = styles.TextStyle
	highlightStyle = styles.HighlightStyle
	blockingStyle  = styles.BlockingStyle
	mutedStyle     = styles.MutedStyle
	headerStyle    = styles.TitleStyle
)

// Line 树形视图中的一行
type Line struct {
	Node       *tree.Node
	Depth      int
	AgeDays    int
	Blocking   int // 状态不在黑名单中的容器数
	Containers int // 容器总数
	Position   int // 在删除顺序中的位置（从 1 开始），0 表示不会被删除
}

// Descriptor 依赖森林描述器
type Descriptor struct {
	now    func() time.Time
	styled bool
}

// New 创建描述器；styled 为 false 时输出纯文本
func New(styled bool) *Descriptor {
	return &Descriptor{now: time.Now, styled: styled}
}

// WithClock 替换时间来源
func (d *Descriptor) WithClock(now func() time.Time) *Descriptor {
	d.now = now
	return d
}

// DiskUsage 返回整个森林占用的磁盘空间（字节）
func DiskUsage(forest []*tree.Node) int64 {
	return tree.DiskUsage(forest)
}

// HumanSize 以 1024 为基数格式化字节数
func HumanSize(bytes int64) string {
	return units.BytesSize(float64(bytes))
}

// Lines 前序展开森林，highlights 给出删除顺序
func (d *Descriptor) Lines(forest []*tree.Node, highlights []*tree.Node, denylist *matchlist.Matchlist) []Line {
	positions := make(map[string]int, len(highlights))
	for i, n := range highlights {
		id := strings.ToLower(n.ID())
		if _, seen := positions[id]; !seen {
			positions[id] = i + 1
		}
	}

	now := d.now()
	lines := make([]Line, 0)
	tree.Walk(forest, func(n *tree.Node, depth int) bool {
		blocking := lo.CountBy(n.Containers, func(c tree.ContainerRecord) bool {
			return !denylist.Match(c.Status)
		})
		lines = append(lines, Line{
			Node:       n,
			Depth:      depth,
			AgeDays:    int(now.Sub(n.Image.Created) / (24 * time.Hour)),
			Blocking:   blocking,
			Containers: len(n.Containers),
			Position:   positions[strings.ToLower(n.ID())],
		})
		return true
	})
	return lines
}

// FormatLine 格式化单行：
//
//	Image: <短 ID> (<第一个 repo:tag>) <天数> days <独占大小> [(<阻塞容器>/<容器总数>)] [<--- <序号>]
func (d *Descriptor) FormatLine(l Line) string {
	var b strings.Builder
	b.WriteString(strings.Repeat(" ", l.Depth*indentWidth))

	text := fmt.Sprintf("Image: %s (%s) %d days %s",
		tree.ShortID(l.Node.ID()), l.Node.FirstRepoTag(), l.AgeDays, HumanSize(l.Node.DiskSize()))
	if l.Position > 0 {
		b.WriteString(d.render(highlightStyle, text))
	} else {
		b.WriteString(d.render(imageStyle, text))
	}

	if l.Containers > 0 {
		counts := fmt.Sprintf("(%d/%d)", l.Blocking, l.Containers)
		if l.Blocking > 0 {
			counts = d.render(blockingStyle, counts)
		} else {
			counts = d.render(mutedStyle, counts)
		}
		b.WriteString(" " + counts)
	}

	if l.Position > 0 {
		b.WriteString(" " + d.render(highlightStyle, fmt.Sprintf("%s %d", highlightMarker, l.Position)))
	}
	return b.String()
}

// Render 输出完整的依赖图
func (d *Descriptor) Render(forest []*tree.Node, highlights []*tree.Node, denylist *matchlist.Matchlist) string {
	var b strings.Builder
	b.WriteString(d.render(headerStyle, "Image dependency graph:"))
	b.WriteString("\n")
	for _, l := range d.Lines(forest, highlights, denylist) {
		b.WriteString(d.FormatLine(l))
		b.WriteString("\n")
	}
	return b.String()
}

// Summary 一行统计：当前占用以及计划删除的数量和大小
func (d *Descriptor) Summary(forest []*tree.Node, selected []*tree.Node) string {
	var reclaimable int64
	for _, n := range selected {
		reclaimable += n.DiskSize()
	}
	return fmt.Sprintf("Disk usage by images: %s, %d images selected for deletion (%s)",
		HumanSize(DiskUsage(forest)), len(selected), HumanSize(reclaimable))
}

func (d *Descriptor) render(style lipgloss.Style, s string) string {
	if !d.styled {
		return s
	}
	return style.Render(s)
}
