// Package recycle 决定哪些镜像可以删除以及删除顺序。
//
// 所有策略共享同一个保护判断 Guard.CanDelete；具体策略只负责在依赖森林上
// 选择候选并保证子镜像总是先于父镜像出现在结果中。
package recycle

import (
	"errors"
	"time"

	"github.com/samber/lo"

	"dockergc/internal/matchlist"
	"dockergc/internal/tree"
)

const day = 24 * time.Hour

var (
	ErrNegativeThreshold     = errors.New("daysBeforeDeletion 不能为负数")
	ErrNegativeSizeLimit     = errors.New("sizeLimitGB 不能为负数")
	ErrNegativeWaitTolerance = errors.New("waitToleranceDays 不能为负数")
)

// Strategy 回收策略
type Strategy interface {
	// Name 策略名称，用于日志
	Name() string

	// SelectForRecycling 返回按删除顺序排列的镜像节点
	SelectForRecycling(forest []*tree.Node) []*tree.Node

	// CanDelete 单个节点自身是否允许删除（不考虑子孙）
	CanDelete(n *tree.Node) bool
}

// Guard 所有策略共用的保护判断
type Guard struct {
	allowlist     *matchlist.Matchlist // 镜像名称白名单（repo:tag）
	denylist      *matchlist.Matchlist // 可忽略的容器状态（如 exited,dead）
	waitTolerance time.Duration        // 黑名单状态容器结束后需要等待的时间
	now           func() time.Time
}

// NewGuard 创建保护判断；waitToleranceDays 为负数时返回错误
func NewGuard(allowlist, denylist *matchlist.Matchlist, waitToleranceDays int) (*Guard, error) {
	if waitToleranceDays < 0 {
		return nil, ErrNegativeWaitTolerance
	}
	return &Guard{
		allowlist:     allowlist,
		denylist:      denylist,
		waitTolerance: time.Duration(waitToleranceDays) * day,
		now:           time.Now,
	}, nil
}

// WithClock 替换时间来源，返回 g 本身
func (g *Guard) WithClock(now func() time.Time) *Guard {
	g.now = now
	return g
}

// Now 返回当前时间
func (g *Guard) Now() time.Time {
	return g.now()
}

// CanDelete 依次检查：
//  1. 任一 repo:tag 命中白名单 -> 不可删
//  2. 存在状态不在黑名单中的容器 -> 不可删
//  3. 黑名单状态容器中最近的结束时间距今不足等待期 -> 不可删
//
// 结束时间未知的容器不会阻止删除。
func (g *Guard) CanDelete(n *tree.Node) bool {
	if g.allowlist.MatchAny(n.Image.RepoTags) {
		return false
	}

	if len(g.BlockingContainers(n)) > 0 {
		return false
	}

	denylisted := g.DenylistedContainers(n)
	if len(denylisted) > 0 {
		var latest time.Time
		for _, c := range denylisted {
			if c.Finished.After(latest) {
				latest = c.Finished
			}
		}
		if !latest.IsZero() && g.now().Sub(latest) < g.waitTolerance {
			return false
		}
	}

	return true
}

// BlockingContainers 状态不在黑名单中的容器
func (g *Guard) BlockingContainers(n *tree.Node) []tree.ContainerRecord {
	return lo.Filter(n.Containers, func(c tree.ContainerRecord, _ int) bool {
		return !g.denylist.Match(c.Status)
	})
}

// DenylistedContainers 状态命中黑名单的容器
func (g *Guard) DenylistedContainers(n *tree.Node) []tree.ContainerRecord {
	return lo.Filter(n.Containers, func(c tree.ContainerRecord, _ int) bool {
		return g.denylist.Match(c.Status)
	})
}
