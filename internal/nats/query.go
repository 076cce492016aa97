package nats

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"sudooom.im.conversation/pkg/errors"
	"sudooom.im.conversation/pkg/proto"
)

// QueryHandler 会话查询处理器接口
type QueryHandler interface {
	HandleCachedList(ctx context.Context, req *proto.CachedListRequest) ([]proto.PreviewRecord, error)
	HandleMergedPage(ctx context.Context, req *proto.MergedPageRequest) ([]proto.PreviewRecord, error)
	HandleOwnerNode(ctx context.Context, req *proto.OwnerNodeRequest) (string, error)
}

// queryTimeout 单次查询处理上限
// 需覆盖聚合查询内部的对端扇出窗口
const queryTimeout = 15 * time.Second

// QueryResponder 会话查询应答器（请求-应答）
type QueryResponder struct {
	nc           *nats.Conn
	handler      QueryHandler
	logger       *slog.Logger
	subscription *nats.Subscription
}

// NewQueryResponder 创建查询应答器
func NewQueryResponder(nc *nats.Conn, handler QueryHandler) *QueryResponder {
	return &QueryResponder{
		nc:      nc,
		handler: handler,
		logger:  slog.Default(),
	}
}

// Start 启动应答
func (r *QueryResponder) Start() error {
	sub, err := r.nc.QueueSubscribe(SubjectConversationQuery, QueueGroupConversation, r.handle)
	if err != nil {
		return err
	}
	r.subscription = sub

	r.logger.Info("Query responder started", "subject", SubjectConversationQuery)
	return nil
}

// Stop 停止应答
func (r *QueryResponder) Stop() {
	if r.subscription != nil {
		_ = r.subscription.Unsubscribe()
	}
	r.logger.Info("Query responder stopped")
}

// handle 处理单条查询请求
func (r *QueryResponder) handle(msg *nats.Msg) {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	var query proto.ConversationQuery
	if err := json.Unmarshal(msg.Data, &query); err != nil {
		r.logger.Error("Failed to unmarshal conversation query", "error", err)
		r.reply(msg, &proto.ConversationQueryReply{
			Code:    errors.CodeInvalidParams,
			Message: errors.GetMessage(errors.ErrInvalidParams),
		})
		return
	}

	var previews []proto.PreviewRecord
	var nodeId string
	var err error

	switch {
	case query.CachedList != nil:
		previews, err = r.handler.HandleCachedList(ctx, query.CachedList)
	case query.MergedPage != nil:
		previews, err = r.handler.HandleMergedPage(ctx, query.MergedPage)
	case query.OwnerNode != nil:
		nodeId, err = r.handler.HandleOwnerNode(ctx, query.OwnerNode)
	default:
		r.reply(msg, &proto.ConversationQueryReply{
			Code:    errors.CodeInvalidParams,
			Message: errors.GetMessage(errors.ErrInvalidParams),
		})
		return
	}

	if err != nil {
		r.reply(msg, &proto.ConversationQueryReply{
			Code:    errors.GetCode(err),
			Message: errors.GetMessage(err),
		})
		return
	}

	r.reply(msg, &proto.ConversationQueryReply{Code: 0, Previews: previews, NodeId: nodeId})
}

// reply 序列化并回写应答
func (r *QueryResponder) reply(msg *nats.Msg, reply *proto.ConversationQueryReply) {
	data, err := json.Marshal(reply)
	if err != nil {
		r.logger.Error("Failed to marshal query reply", "error", err)
		return
	}
	if err := msg.Respond(data); err != nil {
		r.logger.Error("Failed to respond to query", "error", err)
	}
}
