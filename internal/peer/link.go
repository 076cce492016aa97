package peer

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/nats-io/nats.go"

	"sudooom.im.conversation/internal/model"
	apperrors "sudooom.im.conversation/pkg/errors"
	"sudooom.im.conversation/pkg/proto"
	"sudooom.im.conversation/pkg/snowflake"
)

// Conn 已建立的对端节点连接句柄
// 只在单次聚合调用内存活，不做缓存
type Conn struct {
	NodeId string
	Inbox  string
}

// NodeRegistry 节点注册表查询
type NodeRegistry interface {
	Lookup(ctx context.Context, nodeId string) (*model.NodeInfo, error)
}

// Link 对端节点链路
// 通过节点注册表定位对端，经 NATS 请求-应答发起跨节点用户描述
type Link struct {
	nc          *nats.Conn
	registry    NodeRegistry
	tokens      *TokenService
	ids         *snowflake.Node
	localNodeId string
	logger      *slog.Logger
}

// NewLink 创建对端节点链路
func NewLink(nc *nats.Conn, registry NodeRegistry, tokens *TokenService, ids *snowflake.Node, localNodeId string) *Link {
	return &Link{
		nc:          nc,
		registry:    registry,
		tokens:      tokens,
		ids:         ids,
		localNodeId: localNodeId,
		logger:      slog.Default(),
	}
}

// GetConnection 获取到指定节点的连接句柄
// 节点未注册或已过期返回 ErrNodeUnknown
func (l *Link) GetConnection(ctx context.Context, nodeId string) (*Conn, error) {
	info, err := l.registry.Lookup(ctx, nodeId)
	if err != nil {
		return nil, err
	}

	return &Conn{NodeId: info.NodeId, Inbox: info.Inbox}, nil
}

// DescribeUsers 向对端节点批量请求用户展示信息
// 受调用方 ctx 的截止时间约束；传输失败与节点未知是不同的错误
func (l *Link) DescribeUsers(ctx context.Context, conn *Conn, userIds []int64, requestingUserId int64) ([]proto.UserDisplay, error) {
	token, err := l.tokens.Sign(l.localNodeId)
	if err != nil {
		return nil, apperrors.ErrServerError.Wrap(err)
	}

	req := &proto.DescribeUsersRequest{
		RequestId:        l.ids.Generate().Int64(),
		FromNodeId:       l.localNodeId,
		Token:            token,
		RequestingUserId: requestingUserId,
		UserIds:          userIds,
	}

	data, err := json.Marshal(req)
	if err != nil {
		return nil, apperrors.ErrServerError.Wrap(err)
	}

	msg, err := l.nc.RequestWithContext(ctx, conn.Inbox, data)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, apperrors.ErrPeerTimeout.Wrap(err)
		}
		if errors.Is(err, nats.ErrNoResponders) {
			return nil, apperrors.ErrNodeUnknown.Wrap(err)
		}
		return nil, apperrors.ErrPeerUnreachable.Wrap(err)
	}

	var resp proto.DescribeUsersResponse
	if err := json.Unmarshal(msg.Data, &resp); err != nil {
		return nil, apperrors.ErrPeerUnreachable.Wrap(err)
	}

	if resp.Code != apperrors.CodeSuccess {
		l.logger.Warn("Peer describe rejected",
			"nodeId", conn.NodeId,
			"code", resp.Code,
			"message", resp.Message)
		return nil, apperrors.NewError(resp.Code, resp.Message)
	}

	return resp.Users, nil
}
