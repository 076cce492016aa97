package store

import (
	"fmt"

	"sudooom.im.conversation/internal/model"
)

const (
	// PreviewKeyPrefix 会话预览缓存 Key 前缀
	PreviewKeyPrefix = "im:preview:"

	// NodeKeyPrefix 联邦节点注册 Key 前缀
	NodeKeyPrefix = "im:node:"
)

// BuildPreviewKey 构建会话预览缓存 Key
// Key: im:preview:{kind}:{userId}
func BuildPreviewKey(kind model.ConversationKind, userId int64) string {
	return fmt.Sprintf("%s%s:%d", PreviewKeyPrefix, kind.Prefix(), userId)
}

// BuildNodeKey 构建节点注册 Key
// Key: im:node:{nodeId}
func BuildNodeKey(nodeId string) string {
	return NodeKeyPrefix + nodeId
}
