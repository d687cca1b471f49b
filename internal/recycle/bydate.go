package recycle

import (
	"time"

	"dockergc/internal/touch"
	"dockergc/internal/tree"
)

// ByDate 删除超过指定天数的镜像，遵循依赖顺序
type ByDate struct {
	*Guard

	daysBeforeDeletion int
	order              Order
	touched            *touch.Store
}

// NewByDate 创建按日期回收的策略；daysBeforeDeletion 为负数时返回错误。
// order 为 ByLastTouch 时使用 touched 中的最后使用时间。
func NewByDate(guard *Guard, daysBeforeDeletion int, order Order, touched *touch.Store) (*ByDate, error) {
	if daysBeforeDeletion < 0 {
		return nil, ErrNegativeThreshold
	}
	if touched == nil {
		touched = touch.NewStore()
	}
	return &ByDate{
		Guard:              guard,
		daysBeforeDeletion: daysBeforeDeletion,
		order:              order,
		touched:            touched,
	}, nil
}

// Name 返回策略名称
func (s *ByDate) Name() string {
	return "ByDate"
}

// SelectForRecycling 后序遍历每棵树：可整体删除的子树先于其祖先加入结果，
// 被阻塞的分支仍会继续检查其中可删除的部分。
func (s *ByDate) SelectForRecycling(forest []*tree.Node) []*tree.Node {
	now := s.Now()
	key := s.order.key(s.touched)
	cutoff := now.Add(-time.Duration(s.daysBeforeDeletion) * day)

	selected := make([]*tree.Node, 0)
	for _, root := range forest {
		if s.evaluate(root, now, cutoff, key, &selected) {
			selected = append(selected, root)
		}
	}
	return selected
}

// evaluate 返回 n 及其整棵子树是否都可删除；可删除的子节点在返回前已追加到 selected
func (s *ByDate) evaluate(n *tree.Node, now, cutoff time.Time, key keyFunc, selected *[]*tree.Node) bool {
	deletable := true

	for _, child := range n.Children() {
		if s.evaluate(child, now, cutoff, key, selected) {
			*selected = append(*selected, child)
		} else {
			deletable = false
		}
	}

	// 不早于截止时间说明还不够旧
	if !key(n, now).Before(cutoff) {
		return false
	}

	if !s.CanDelete(n) {
		return false
	}

	return deletable
}
