// Package styles 定义全局统一的 UI 样式
package styles

import "github.com/charmbracelet/lipgloss"

// 颜色常量
const (
	ColorPrimary   = "220" // 黄色 - 标题
	ColorSecondary = "81"  // 蓝色 - 键名、标签
	ColorSuccess   = "82"  // 绿色 - 可删除
	ColorError     = "196" // 红色 - 错误、阻塞容器
	ColorWarning   = "214" // 橙色 - 计划删除的镜像
	ColorMuted     = "245" // 灰色 - 次要信息、提示
	ColorText      = "252" // 白色 - 正常文本
	ColorBorder    = "240" // 深灰 - 边框
)

// 标题样式
var (
	TitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(ColorPrimary)).
			Bold(true)

	SubtitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(ColorSecondary)).
			Bold(true)
)

// 文本样式
var (
	TextStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(ColorText))

	MutedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(ColorMuted))

	KeyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(ColorSecondary))

	LabelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(ColorSecondary)).
			Width(12)

	HintStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(ColorMuted))
)

// 消息样式
var (
	SuccessStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(ColorSuccess)).
			Bold(true)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(ColorError)).
			Bold(true)

	WarningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(ColorWarning)).
			Bold(true)
)

// ========== 依赖图样式 ==========

var (
	// 计划删除的镜像及其序号
	HighlightStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(ColorWarning)).
			Bold(true)

	// 存在阻塞容器时的 (阻塞/总数)
	BlockingStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(ColorError))

	// 光标所在行
	CursorStyle = lipgloss.NewStyle().
			Reverse(true)
)

// ========== 边框/容器样式 ==========

var (
	BoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color(ColorBorder)).
			Padding(0, 1)

	StateBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color(ColorBorder)).
			Padding(1, 2).
			Width(66)
)
