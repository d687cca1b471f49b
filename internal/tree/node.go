package tree

// Node 依赖森林中的一个节点。
// 子节点由父节点独占持有；parent 只是反向引用，不表示所有权。
type Node struct {
	Image      ImageRecord
	Containers []ContainerRecord

	parent   *Node
	children []*Node
}

// NewNode 创建一个尚未挂载到任何父节点的节点
func NewNode(image ImageRecord, containers ...ContainerRecord) *Node {
	return &Node{
		Image:      image,
		Containers: containers,
		children:   make([]*Node, 0),
	}
}

// AddChild 把 child 挂到当前节点下并设置其父引用，返回当前节点便于链式构造
func (n *Node) AddChild(children ...*Node) *Node {
	for _, child := range children {
		child.parent = n
		n.children = append(n.children, child)
	}
	return n
}

// ID 返回镜像 ID
func (n *Node) ID() string {
	return n.Image.ID
}

// Parent 返回父节点，基础镜像返回 nil
func (n *Node) Parent() *Node {
	return n.parent
}

// Children 返回子节点（按构建顺序）
func (n *Node) Children() []*Node {
	return n.children
}

// IsLeaf 没有子镜像时返回 true
func (n *Node) IsLeaf() bool {
	return len(n.children) == 0
}

// DiskSize 该镜像独占的磁盘大小：自身累计大小减去父镜像累计大小。
// 运行时数据不一致导致差值为负时按 0 计。
func (n *Node) DiskSize() int64 {
	if n.parent == nil {
		return n.Image.Size
	}
	size := n.Image.Size - n.parent.Image.Size
	if size < 0 {
		return 0
	}
	return size
}

// Ancestors 从父节点开始逐级向上返回所有祖先
func (n *Node) Ancestors() []*Node {
	ancestors := make([]*Node, 0)
	for p := n.parent; p != nil; p = p.parent {
		ancestors = append(ancestors, p)
	}
	return ancestors
}

// Leaves 返回以 n 为根的子树中所有叶子节点（深度优先，保持子节点顺序）
func (n *Node) Leaves() []*Node {
	if n.IsLeaf() {
		return []*Node{n}
	}
	leaves := make([]*Node, 0)
	for _, child := range n.children {
		leaves = append(leaves, child.Leaves()...)
	}
	return leaves
}

// TotalDiskSize 子树所有节点 DiskSize 之和
func (n *Node) TotalDiskSize() int64 {
	total := n.DiskSize()
	for _, child := range n.children {
		total += child.TotalDiskSize()
	}
	return total
}

// FirstRepoTag 返回第一个 repo:tag，没有时返回 "<none>"
func (n *Node) FirstRepoTag() string {
	if len(n.Image.RepoTags) == 0 {
		return "<none>"
	}
	return n.Image.RepoTags[0]
}

// Leaves 返回整个森林的叶子节点
func Leaves(forest []*Node) []*Node {
	leaves := make([]*Node, 0)
	for _, root := range forest {
		leaves = append(leaves, root.Leaves()...)
	}
	return leaves
}

// DiskUsage 整个森林的磁盘占用
func DiskUsage(forest []*Node) int64 {
	var total int64
	for _, root := range forest {
		total += root.TotalDiskSize()
	}
	return total
}

// Walk 先序遍历森林，fn 返回 false 时跳过该节点的子树
func Walk(forest []*Node, fn func(n *Node, depth int) bool) {
	var visit func(n *Node, depth int)
	visit = func(n *Node, depth int) {
		if !fn(n, depth) {
			return
		}
		for _, child := range n.children {
			visit(child, depth+1)
		}
	}
	for _, root := range forest {
		visit(root, 0)
	}
}
