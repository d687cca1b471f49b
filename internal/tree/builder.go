package tree

// Build 由镜像、容器列表和容器 inspect 结果构建依赖森林，返回所有基础镜像节点。
//
// 容器按所属镜像 ID 挂到节点上；列表中出现但缺少 inspect 结果的容器会被忽略
// （通常是 inspect 之后被删除）。根节点顺序与 images 中的顺序一致，
// 子节点顺序同样按 images 中出现的先后。
func Build(images []ImageRecord, summaries []ContainerSummary, containers []ContainerRecord) []*Node {
	inspected := make(map[string]ContainerRecord, len(containers))
	for _, c := range containers {
		inspected[c.ID] = c
	}

	byImage := make(map[string][]ContainerRecord)
	for _, s := range summaries {
		record, ok := inspected[s.ID]
		if !ok {
			continue
		}
		byImage[s.ImageID] = append(byImage[s.ImageID], record)
	}

	byParent := make(map[string][]ImageRecord)
	for _, img := range images {
		if img.ParentID != "" {
			byParent[img.ParentID] = append(byParent[img.ParentID], img)
		}
	}

	var build func(img ImageRecord) *Node
	build = func(img ImageRecord) *Node {
		node := NewNode(img, byImage[img.ID]...)
		for _, child := range byParent[img.ID] {
			node.AddChild(build(child))
		}
		return node
	}

	roots := make([]*Node, 0)
	for _, img := range images {
		if img.ParentID == "" {
			roots = append(roots, build(img))
		}
	}
	return roots
}
