package image

// RemoveResult 删除镜像引用后 Docker 返回的结果
type RemoveResult struct {
	Untagged []string // 被移除的 repo:tag
	Deleted  []string // 被删除的镜像/层 ID
}

// noneTag 旧版本 Docker 对无标签镜像返回的占位标签
const noneTag = "<none>:<none>"
