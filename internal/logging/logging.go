// Package logging 创建全局统一格式的结构化日志
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/log"
)

// ParseLevel 将字符串转换为日志级别，未知值按 info 处理
func ParseLevel(level string) log.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return log.DebugLevel
	case "info", "":
		return log.InfoLevel
	case "warn", "warning":
		return log.WarnLevel
	case "error":
		return log.ErrorLevel
	case "fatal":
		return log.FatalLevel
	default:
		return log.InfoLevel
	}
}

// New 创建写入 w 的日志器；w 为 nil 时写入 stderr
func New(w io.Writer, level string) *log.Logger {
	if w == nil {
		w = os.Stderr
	}
	return log.NewWithOptions(w, log.Options{
		Level:           ParseLevel(level),
		ReportTimestamp: true,
		TimeFormat:      "2006-01-02 15:04:05",
	})
}

// Discard 丢弃所有输出，测试和未注入日志器时使用
func Discard() *log.Logger {
	return log.New(io.Discard)
}
