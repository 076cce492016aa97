package handler

import (
	"context"
	"log/slog"

	"sudooom.im.conversation/internal/model"
	"sudooom.im.conversation/internal/node"
	"sudooom.im.conversation/internal/service"
	"sudooom.im.conversation/pkg/errors"
	"sudooom.im.conversation/pkg/proto"
)

// ConversationHandler 会话事件与查询处理器
// 事件侧委托缓存门面做修补/重建；查询侧负责线上结构与内部模型的转换
type ConversationHandler struct {
	cache      *service.PreviewCacheService
	aggregator *service.AggregatorService
	resolver   *node.Resolver
	logger     *slog.Logger
}

// NewConversationHandler 创建会话处理器
func NewConversationHandler(cache *service.PreviewCacheService, aggregator *service.AggregatorService, resolver *node.Resolver) *ConversationHandler {
	return &ConversationHandler{
		cache:      cache,
		aggregator: aggregator,
		resolver:   resolver,
		logger:     slog.Default(),
	}
}

// ============== 事件处理 ==============

// HandleNewMessage 处理新消息事件
func (h *ConversationHandler) HandleNewMessage(ctx context.Context, ev *proto.NewMessageEvent) {
	h.cache.OnNewMessage(ctx, ev)
}

// HandleMessagesRemoved 处理消息删除事件
func (h *ConversationHandler) HandleMessagesRemoved(ctx context.Context, ev *proto.MessagesRemovedEvent) {
	h.cache.OnMessagesRemoved(ctx, ev)
}

// HandleMessagesRead 处理消息已读事件
func (h *ConversationHandler) HandleMessagesRead(ctx context.Context, ev *proto.MessagesReadEvent) {
	h.cache.OnMessagesRead(ctx, ev)
}

// HandleMessageEdited 处理消息编辑事件
func (h *ConversationHandler) HandleMessageEdited(ctx context.Context, ev *proto.MessageEditedEvent) {
	h.cache.OnMessageEdited(ctx, ev)
}

// HandleConversationMuted 处理会话静音切换事件
func (h *ConversationHandler) HandleConversationMuted(ctx context.Context, ev *proto.ConversationMutedEvent) {
	h.cache.OnConversationMuted(ctx, ev)
}

// HandleUserProfileEdited 处理用户资料变更事件
func (h *ConversationHandler) HandleUserProfileEdited(ctx context.Context, ev *proto.UserProfileEditedEvent) {
	h.cache.OnUserProfileEdited(ctx, ev)
}

// ============== 查询处理 ==============

// HandleCachedList 读取单一类型的缓存会话列表
func (h *ConversationHandler) HandleCachedList(ctx context.Context, req *proto.CachedListRequest) ([]proto.PreviewRecord, error) {
	if req.UserId <= 0 {
		return nil, errors.ErrInvalidParams
	}
	kind := model.ConversationKind(req.Kind)
	if !kind.Valid() {
		return nil, errors.ErrInvalidKind
	}

	previews, err := h.cache.Get(ctx, req.UserId, kind, -1)
	if err != nil {
		return nil, err
	}
	return toPreviewRecords(previews), nil
}

// HandleMergedPage 读取跨类型合并分页会话列表
func (h *ConversationHandler) HandleMergedPage(ctx context.Context, req *proto.MergedPageRequest) ([]proto.PreviewRecord, error) {
	if req.UserId <= 0 {
		return nil, errors.ErrInvalidParams
	}

	var anchor *model.Anchor
	if req.AnchorConversationId > 0 {
		kind := model.ConversationKind(req.AnchorKind)
		if !kind.Valid() {
			return nil, errors.ErrInvalidKind
		}
		anchor = &model.Anchor{ConversationId: req.AnchorConversationId, Kind: kind}
	}

	previews, err := h.aggregator.GetUserConversationsPage(ctx, req.UserId, anchor)
	if err != nil {
		return nil, err
	}
	return toPreviewRecords(previews), nil
}

// HandleOwnerNode 查询会话归属节点
func (h *ConversationHandler) HandleOwnerNode(ctx context.Context, req *proto.OwnerNodeRequest) (string, error) {
	if req.ConversationId <= 0 {
		return "", errors.ErrInvalidParams
	}
	kind := model.ConversationKind(req.Kind)
	if !kind.Valid() {
		return "", errors.ErrInvalidKind
	}

	return h.resolver.ResolveOwnerNode(ctx, kind, req.ConversationId)
}

// toPreviewRecords 内部模型转下行线上结构
func toPreviewRecords(previews []model.ConversationPreview) []proto.PreviewRecord {
	records := make([]proto.PreviewRecord, 0, len(previews))
	for _, p := range previews {
		records = append(records, proto.PreviewRecord{
			ConversationId:        p.ConversationId,
			Kind:                  int(p.Kind),
			Title:                 p.Title,
			Photo:                 p.Photo,
			PreviewText:           p.PreviewText,
			LastMessageId:         p.LastMessageId,
			LastMessageTime:       p.LastMessageTime,
			LastMessageSenderId:   p.LastMessageSenderId,
			LastMessageSenderName: p.LastMessageSenderName,
			AttachmentKind:        p.AttachmentKind,
			UnreadCount:           p.UnreadCount,
			Read:                  p.Read,
			IsMuted:               p.IsMuted,
			CounterpartUserId:     p.CounterpartUserId,
		})
	}
	return records
}
