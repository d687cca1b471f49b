package recycle

import (
	"fmt"
	"strings"
	"time"

	"dockergc/internal/matchlist"
	"dockergc/internal/touch"
)

// Kind 策略类型
type Kind string

const (
	KindByDate      Kind = "ByDate"
	KindByDiskSpace Kind = "ByDiskSpace"
)

// ParseKind 解析策略名称（忽略大小写）
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "bydate":
		return KindByDate, nil
	case "bydiskspace":
		return KindByDiskSpace, nil
	default:
		return "", fmt.Errorf("未知的回收策略: %q", s)
	}
}

// Options 创建策略所需的参数
type Options struct {
	Kind               Kind
	Allowlist          string  // 逗号分隔的镜像名称模式
	Denylist           string  // 逗号分隔的容器状态模式
	WaitToleranceDays  int     // 黑名单状态容器的等待天数
	DaysBeforeDeletion int     // ByDate
	SizeLimitGB        float64 // ByDiskSpace
	Order              Order
	Touched            *touch.Store
	Now                func() time.Time // 为空时使用 time.Now
}

// New 根据 Options 创建策略
func New(opts Options) (Strategy, error) {
	guard, err := NewGuard(matchlist.New(opts.Allowlist), matchlist.New(opts.Denylist), opts.WaitToleranceDays)
	if err != nil {
		return nil, err
	}
	if opts.Now != nil {
		guard.WithClock(opts.Now)
	}

	switch opts.Kind {
	case KindByDate:
		s, err := NewByDate(guard, opts.DaysBeforeDeletion, opts.Order, opts.Touched)
		if err != nil {
			return nil, err
		}
		return s, nil
	case KindByDiskSpace:
		s, err := NewByDiskSpace(guard, opts.SizeLimitGB, opts.Order, opts.Touched)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("未知的回收策略: %q", opts.Kind)
	}
}
