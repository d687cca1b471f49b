// Package image 封装镜像列表和删除操作
package image

import (
	"context"
	"fmt"
	"time"

	dockerimage "github.com/docker/docker/api/types/image"
	sdk "github.com/docker/docker/client"

	"dockergc/internal/tree"
)

// Client 镜像操作客户端
type Client struct {
	cli *sdk.Client
}

// NewClient 创建镜像客户端
func NewClient(cli *sdk.Client) *Client {
	return &Client{cli: cli}
}

// List 获取所有镜像（包括中间层镜像），用于构建依赖森林。
// 无标签镜像的 RepoTags 为空。
func (c *Client) List(ctx context.Context) ([]tree.ImageRecord, error) {
	if c == nil || c.cli == nil {
		return nil, fmt.Errorf("Docker 客户端未初始化")
	}

	images, err := c.cli.ImageList(ctx, dockerimage.ListOptions{All: true})
	if err != nil {
		return nil, fmt.Errorf("获取镜像列表失败: %w", err)
	}

	result := make([]tree.ImageRecord, 0, len(images))
	for _, img := range images {
		tags := make([]string, 0, len(img.RepoTags))
		for _, tag := range img.RepoTags {
			if tag == "" || tag == noneTag {
				continue
			}
			tags = append(tags, tag)
		}

		result = append(result, tree.ImageRecord{
			ID:       img.ID,
			ParentID: img.ParentID,
			Created:  time.Unix(img.Created, 0),
			Size:     img.Size,
			RepoTags: tags,
		})
	}

	return result, nil
}

// Remove 删除镜像引用（repo:tag 或镜像 ID）。
// 不强制删除，同时清理不再被引用的无标签父镜像。
func (c *Client) Remove(ctx context.Context, ref string) (RemoveResult, error) {
	if c == nil || c.cli == nil {
		return RemoveResult{}, fmt.Errorf("Docker 客户端未初始化")
	}

	responses, err := c.cli.ImageRemove(ctx, ref, dockerimage.RemoveOptions{
		Force:         false,
		PruneChildren: true,
	})
	if err != nil {
		return RemoveResult{}, fmt.Errorf("删除镜像 %s 失败: %w", ref, err)
	}

	result := RemoveResult{
		Untagged: make([]string, 0),
		Deleted:  make([]string, 0),
	}
	for _, r := range responses {
		if r.Untagged != "" {
			result.Untagged = append(result.Untagged, r.Untagged)
		}
		if r.Deleted != "" {
			result.Deleted = append(result.Deleted, r.Deleted)
		}
	}
	return result, nil
}
