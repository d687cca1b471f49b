package recycle

import (
	"fmt"
	"strings"
	"time"

	"dockergc/internal/touch"
	"dockergc/internal/tree"
)

// Order 镜像排序依据
type Order int

const (
	// ByCreation 按镜像创建时间
	ByCreation Order = iota
	// ByLastTouch 按镜像最后被容器使用的时间
	ByLastTouch
)

// String 返回与配置一致的名称
func (o Order) String() string {
	switch o {
	case ByCreation:
		return "ByImageCreationDate"
	case ByLastTouch:
		return "ByImageLastTouchDate"
	default:
		return "Unknown"
	}
}

// ParseOrder 解析配置中的排序名称（忽略大小写），空串视为 ByCreation
func ParseOrder(s string) (Order, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "byimagecreationdate", "creation":
		return ByCreation, nil
	case "byimagelasttouchdate", "lasttouch":
		return ByLastTouch, nil
	default:
		return ByCreation, fmt.Errorf("未知的镜像删除顺序: %q", s)
	}
}

// keyFunc 返回节点用于年龄判断和排序的时间
type keyFunc func(n *tree.Node, now time.Time) time.Time

func (o Order) key(store *touch.Store) keyFunc {
	if o == ByLastTouch {
		return func(n *tree.Node, now time.Time) time.Time {
			return LastTouch(store, n, now)
		}
	}
	return func(n *tree.Node, _ time.Time) time.Time {
		return n.Image.Created
	}
}

// LastTouch 计算镜像最后被使用的时间，并把结果缓存到 store：
//   - store 中已有记录时直接使用
//   - 有容器时取所有容器 created/started/finished 中最晚者，写入缓存
//   - 有子镜像时取子镜像最后使用时间的最大值，写入缓存，子镜像删除后父镜像保持该时间
//   - 从未使用过的叶子镜像记为 now，写入缓存
func LastTouch(store *touch.Store, n *tree.Node, now time.Time) time.Time {
	if store == nil {
		store = touch.NewStore()
	}
	if t, ok := store.Get(n.ID()); ok {
		return t
	}

	if len(n.Containers) > 0 {
		var latest time.Time
		for _, c := range n.Containers {
			if a := c.LastActivity(); a.After(latest) {
				latest = a
			}
		}
		store.Set(n.ID(), latest)
		return latest
	}

	if !n.IsLeaf() {
		var latest time.Time
		for _, child := range n.Children() {
			if t := LastTouch(store, child, now); t.After(latest) {
				latest = t
			}
		}
		store.Set(n.ID(), latest)
		return latest
	}

	store.Set(n.ID(), now)
	return now
}
