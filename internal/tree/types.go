// Package tree 描述镜像依赖森林：镜像、容器记录以及由父子派生关系组成的树。
package tree

import (
	"strings"
	"time"
)

// ImageRecord 镜像快照（不可变）
type ImageRecord struct {
	ID       string    // 镜像 ID（完整，含 sha256: 前缀）
	ParentID string    // 父镜像 ID，基础镜像为空
	Created  time.Time // 创建时间
	Size     int64     // 累计大小（字节），包含所有祖先层
	RepoTags []string  // repository:tag 列表，可能为空
}

// ContainerSummary 容器列表中的一项，只用于把容器挂到镜像上
type ContainerSummary struct {
	ID      string // 容器 ID
	ImageID string // 所属镜像 ID
}

// ContainerRecord 容器 inspect 结果中与回收相关的部分
type ContainerRecord struct {
	ID       string    // 容器 ID
	ImageID  string    // 所属镜像 ID
	Status   string    // 状态: created, running, paused, restarting, exited, dead, removing 等
	Created  time.Time // 创建时间
	Started  time.Time // 启动时间，零值表示从未启动
	Finished time.Time // 结束时间，零值表示尚未结束
}

// LastActivity 返回容器 created/started/finished 中最晚的时间
func (c ContainerRecord) LastActivity() time.Time {
	latest := c.Created
	if c.Started.After(latest) {
		latest = c.Started
	}
	if c.Finished.After(latest) {
		latest = c.Finished
	}
	return latest
}

// ShortID 去掉 sha256: 前缀后截取 12 位
func ShortID(id string) string {
	short := strings.TrimPrefix(id, "sha256:")
	if len(short) > 12 {
		short = short[:12]
	}
	return short
}
