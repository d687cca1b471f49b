package recycle

import (
	"math"
	"sort"
	"time"

	"github.com/samber/lo"

	"dockergc/internal/touch"
	"dockergc/internal/tree"
)

const gigabyte = 1 << 30

// ByDiskSpace 从最旧的叶子镜像开始删除，直到磁盘占用低于上限
type ByDiskSpace struct {
	*Guard

	sizeLimitGB float64
	order       Order
	touched     *touch.Store
}

// NewByDiskSpace 创建按磁盘空间回收的策略；sizeLimitGB 为负数时返回错误
func NewByDiskSpace(guard *Guard, sizeLimitGB float64, order Order, touched *touch.Store) (*ByDiskSpace, error) {
	if sizeLimitGB < 0 || math.IsNaN(sizeLimitGB) {
		return nil, ErrNegativeSizeLimit
	}
	if touched == nil {
		touched = touch.NewStore()
	}
	return &ByDiskSpace{
		Guard:       guard,
		sizeLimitGB: sizeLimitGB,
		order:       order,
		touched:     touched,
	}, nil
}

// Name 返回策略名称
func (s *ByDiskSpace) Name() string {
	return "ByDiskSpace"
}

// Budget 返回字节数上限
func (s *ByDiskSpace) Budget() float64 {
	return s.sizeLimitGB * gigabyte
}

type candidate struct {
	node *tree.Node
	key  time.Time
}

// SelectForRecycling 贪心选择：叶子按排序时间升序入队，依次弹出；
// 父镜像只有在所有子镜像都处理完之后才会按排序时间插回队列。
func (s *ByDiskSpace) SelectForRecycling(forest []*tree.Node) []*tree.Node {
	selected := make([]*tree.Node, 0)

	total := float64(tree.DiskUsage(forest))
	budget := s.Budget()
	if total < budget {
		return selected
	}

	now := s.Now()
	key := s.order.key(s.touched)

	leaves := tree.Leaves(forest)
	queue := make([]candidate, 0, len(leaves))
	for _, leaf := range leaves {
		queue = append(queue, candidate{node: leaf, key: key(leaf, now)})
	}
	sort.SliceStable(queue, func(i, j int) bool {
		return queue[i].key.Before(queue[j].key)
	})

	blocked := make(map[*tree.Node]bool)
	analyzed := make(map[*tree.Node]bool)

	for len(queue) > 0 && total >= budget {
		n := queue[0].node
		queue = queue[1:]
		analyzed[n] = true

		if blocked[n] {
			continue
		}

		if !s.CanDelete(n) {
			for _, ancestor := range n.Ancestors() {
				blocked[ancestor] = true
				analyzed[ancestor] = true
			}
			continue
		}

		selected = append(selected, n)
		total -= float64(n.DiskSize())

		parent := n.Parent()
		if parent == nil || !lo.EveryBy(parent.Children(), func(c *tree.Node) bool { return analyzed[c] }) {
			continue
		}
		queue = insertByKey(queue, candidate{node: parent, key: key(parent, now)})
	}

	return selected
}

// insertByKey 插入到第一个排序时间严格更晚的位置之前，相同时间时排在已有元素之后
func insertByKey(queue []candidate, c candidate) []candidate {
	i := sort.Search(len(queue), func(i int) bool {
		return queue[i].key.After(c.key)
	})
	queue = append(queue, candidate{})
	copy(queue[i+1:], queue[i:])
	queue[i] = c
	return queue
}
