package node

import (
	"context"
	"log/slog"

	"sudooom.im.conversation/internal/model"
)

// ConversationDirectory 解析归属节点所需的会话结构查询
type ConversationDirectory interface {
	GetParticipants(ctx context.Context, kind model.ConversationKind, conversationId int64) ([]model.Participant, error)
	GetNodeIds(ctx context.Context, kind model.ConversationKind, conversationId int64) ([]string, error)
}

// Resolver 会话归属节点解析器
//
// 平台归属策略：创建者归属节点优先，其次任一已知的远端副本节点，
// 否则视为本节点权威
type Resolver struct {
	conversations ConversationDirectory
	localNodeId   string
	logger        *slog.Logger
}

// NewResolver 创建归属节点解析器
func NewResolver(conversations ConversationDirectory, localNodeId string) *Resolver {
	return &Resolver{
		conversations: conversations,
		localNodeId:   localNodeId,
		logger:        slog.Default(),
	}
}

// ResolveOwnerNode 解析会话的归属节点
// 单聊按参与者双归属，始终由本节点权威；会话不存在时原样上抛，不做重试
func (r *Resolver) ResolveOwnerNode(ctx context.Context, kind model.ConversationKind, conversationId int64) (string, error) {
	if kind == model.KindDialog {
		return r.localNodeId, nil
	}

	participants, err := r.conversations.GetParticipants(ctx, kind, conversationId)
	if err != nil {
		return "", err
	}

	for _, p := range participants {
		if p.Role == model.RoleCreator && p.NodeId != "" {
			return p.NodeId, nil
		}
	}

	nodeIds, err := r.conversations.GetNodeIds(ctx, kind, conversationId)
	if err != nil {
		return "", err
	}

	// 列表顺序权威：取第一个非本节点的副本
	for _, nodeId := range nodeIds {
		if nodeId != r.localNodeId {
			return nodeId, nil
		}
	}

	return r.localNodeId, nil
}
