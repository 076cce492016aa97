package service

import (
	"context"
	"log/slog"

	"sudooom.im.conversation/internal/model"
	"sudooom.im.conversation/internal/store"
	"sudooom.im.conversation/pkg/proto"
)

// PreviewStore 会话预览缓存
// 条目不加锁，并发读-改-写以最后写入者为准（见 store 实现的说明）
type PreviewStore interface {
	Get(ctx context.Context, key string, limit int64) ([]model.ConversationPreview, bool, error)
	Replace(ctx context.Context, key string, previews []model.ConversationPreview) error
	Delete(ctx context.Context, key string) error
}

// ConversationDirectory 事件修补所需的会话结构查询
type ConversationDirectory interface {
	GetMemberIds(ctx context.Context, kind model.ConversationKind, conversationId int64) ([]int64, error)
	GetLastMessage(ctx context.Context, kind model.ConversationKind, conversationId int64) (*model.MessageRef, error)
	GetDialogPeerIds(ctx context.Context, userId int64) ([]int64, error)
}

// UpdateNotifier 缓存变更提示（可选，供推送层刷新客户端）
type UpdateNotifier interface {
	NotifyPreviewUpdated(userId int64, kind model.ConversationKind)
}

// PreviewCacheService 会话预览缓存门面
//
// 读路径缓存优先，未命中从权威数据源整体重建；
// 事件处理器对命中条目做增量修补，修补无法从事件本身推导时
// 退回整体重建。所有处理器在自身边界内吞掉错误，只记日志——
// 缓存新鲜度是尽力而为，缓存故障不允许变成用户可见错误
type PreviewCacheService struct {
	store         PreviewStore
	source        ConversationSource
	conversations ConversationDirectory
	notifier      UpdateNotifier // 可为 nil
	logger        *slog.Logger
}

// NewPreviewCacheService 创建会话预览缓存门面
func NewPreviewCacheService(
	previewStore PreviewStore,
	source ConversationSource,
	conversations ConversationDirectory,
	notifier UpdateNotifier,
) *PreviewCacheService {
	return &PreviewCacheService{
		store:         previewStore,
		source:        source,
		conversations: conversations,
		notifier:      notifier,
		logger:        slog.Default(),
	}
}

// Get 读取用户单一类型的会话预览列表（缓存优先）
// limit = -1 表示不限制条数；未命中时从权威数据源重建
func (s *PreviewCacheService) Get(ctx context.Context, userId int64, kind model.ConversationKind, limit int64) ([]model.ConversationPreview, error) {
	key := store.BuildPreviewKey(kind, userId)

	previews, found, err := s.store.Get(ctx, key, limit)
	if err != nil {
		return nil, err
	}
	if found {
		return previews, nil
	}

	previews, err = s.Reload(ctx, userId, kind)
	if err != nil {
		return nil, err
	}
	if limit >= 0 && int64(len(previews)) > limit {
		previews = previews[:limit]
	}
	return previews, nil
}

// Reload 从权威数据源整体重建用户单一类型的缓存条目
func (s *PreviewCacheService) Reload(ctx context.Context, userId int64, kind model.ConversationKind) ([]model.ConversationPreview, error) {
	previews, err := s.loadFromSource(ctx, userId, kind)
	if err != nil {
		return nil, err
	}

	key := store.BuildPreviewKey(kind, userId)
	if err := s.store.Replace(ctx, key, previews); err != nil {
		return nil, err
	}

	s.notifyUpdated(userId, kind)
	return previews, nil
}

// loadFromSource 按类型从权威数据源读取完整预览列表
func (s *PreviewCacheService) loadFromSource(ctx context.Context, userId int64, kind model.ConversationKind) ([]model.ConversationPreview, error) {
	switch kind {
	case model.KindDialog:
		return s.source.GetUserDialogsPreview(ctx, userId)
	case model.KindChat:
		return s.source.GetUserChatsPreview(ctx, userId, 0)
	case model.KindChannel:
		return s.source.GetUserChannelsPreview(ctx, userId)
	}
	return nil, nil
}

// ============== 事件处理器 ==============
// 每个处理器由上游投递后自行跑完，错误一律就地记录，绝不上抛

// OnNewMessage 处理新消息事件
// 单聊修补收发双方；群聊/频道解析全量成员后逐个修补。
// 条目缺失（首条可见消息或缓存未命中）时改为整体重建
func (s *PreviewCacheService) OnNewMessage(ctx context.Context, ev *proto.NewMessageEvent) {
	kind := model.ConversationKind(ev.Kind)
	if !kind.Valid() {
		s.logger.Error("NewMessage event with invalid kind", "kind", ev.Kind, "conversationId", ev.ConversationId)
		return
	}

	var members []int64
	if kind == model.KindDialog {
		members = []int64{ev.SenderId, ev.ReceiverId}
	} else {
		var err error
		members, err = s.conversations.GetMemberIds(ctx, kind, ev.ConversationId)
		if err != nil {
			s.logger.Error("Failed to resolve members for new message",
				"conversationId", ev.ConversationId, "kind", ev.Kind, "error", err)
			return
		}
	}

	for _, userId := range members {
		if userId <= 0 {
			continue
		}
		s.patchNewMessage(ctx, userId, kind, ev)
	}
}

// patchNewMessage 对单个用户应用新消息修补（或退回重建）
func (s *PreviewCacheService) patchNewMessage(ctx context.Context, userId int64, kind model.ConversationKind, ev *proto.NewMessageEvent) {
	key := store.BuildPreviewKey(kind, userId)

	previews, found, err := s.store.Get(ctx, key, -1)
	if err != nil {
		s.logger.Error("Cache read failed on new message", "userId", userId, "key", key, "error", err)
		return
	}

	idx := -1
	if found {
		idx = findPreview(previews, ev.ConversationId)
	}
	if !found || idx < 0 {
		if _, err := s.Reload(ctx, userId, kind); err != nil {
			s.logger.Error("Reload failed on new message", "userId", userId, "kind", int(kind), "error", err)
		}
		return
	}

	p := &previews[idx]
	p.LastMessageId = ev.MessageId
	p.LastMessageSenderId = ev.SenderId
	p.LastMessageTime = ev.Timestamp
	p.PreviewText = ev.PreviewText
	p.AttachmentKind = ev.AttachmentKind
	p.Read = false

	if err := s.store.Replace(ctx, key, previews); err != nil {
		s.logger.Error("Cache write failed on new message", "userId", userId, "key", key, "error", err)
		return
	}
	s.notifyUpdated(userId, kind)
}

// OnMessagesRemoved 处理消息删除事件
// 删除可能移动“最后一条消息”指针，且新指针无法从事件推导，
// 因此对每个受影响的 用户/类型 一律整体重建
func (s *PreviewCacheService) OnMessagesRemoved(ctx context.Context, ev *proto.MessagesRemovedEvent) {
	type target struct {
		userId int64
		kind   model.ConversationKind
	}
	type conversation struct {
		conversationId int64
		kind           model.ConversationKind
	}

	seen := make(map[conversation]struct{})
	targets := make(map[target]struct{})

	for _, item := range ev.Items {
		kind := model.ConversationKind(item.Kind)
		if !kind.Valid() {
			continue
		}
		conv := conversation{item.ConversationId, kind}
		if _, ok := seen[conv]; ok {
			continue
		}
		seen[conv] = struct{}{}

		members, err := s.conversations.GetMemberIds(ctx, kind, item.ConversationId)
		if err != nil {
			s.logger.Error("Failed to resolve members for removed messages",
				"conversationId", item.ConversationId, "kind", item.Kind, "error", err)
			continue
		}
		for _, userId := range members {
			targets[target{userId, kind}] = struct{}{}
		}
	}

	for tgt := range targets {
		if _, err := s.Reload(ctx, tgt.userId, tgt.kind); err != nil {
			s.logger.Error("Reload failed after messages removed",
				"userId", tgt.userId, "kind", int(tgt.kind), "error", err)
		}
	}
}

// OnMessagesRead 处理消息已读事件
// 重算会话当前真实的最新消息；仅当成员缓存条目的 lastMessageId
// 与之精确一致时才原地置为已读，否则不动（修补修不好的状态留给重建）
func (s *PreviewCacheService) OnMessagesRead(ctx context.Context, ev *proto.MessagesReadEvent) {
	kind := model.ConversationKind(ev.Kind)
	if !kind.Valid() {
		s.logger.Error("MessagesRead event with invalid kind", "kind", ev.Kind, "conversationId", ev.ConversationId)
		return
	}

	last, err := s.conversations.GetLastMessage(ctx, kind, ev.ConversationId)
	if err != nil {
		s.logger.Error("Failed to recompute last message on read",
			"conversationId", ev.ConversationId, "kind", ev.Kind, "error", err)
		return
	}

	members, err := s.conversations.GetMemberIds(ctx, kind, ev.ConversationId)
	if err != nil {
		s.logger.Error("Failed to resolve members on read",
			"conversationId", ev.ConversationId, "kind", ev.Kind, "error", err)
		return
	}

	for _, userId := range members {
		key := store.BuildPreviewKey(kind, userId)

		previews, found, err := s.store.Get(ctx, key, -1)
		if err != nil {
			s.logger.Error("Cache read failed on messages read", "userId", userId, "key", key, "error", err)
			continue
		}
		if !found {
			if _, err := s.Reload(ctx, userId, kind); err != nil {
				s.logger.Error("Reload failed on messages read", "userId", userId, "kind", int(kind), "error", err)
			}
			continue
		}

		idx := findPreview(previews, ev.ConversationId)
		if idx < 0 || previews[idx].LastMessageId != last.MessageId {
			continue
		}
		if previews[idx].Read {
			continue // 已经是已读，保持幂等
		}

		previews[idx].Read = true
		if err := s.store.Replace(ctx, key, previews); err != nil {
			s.logger.Error("Cache write failed on messages read", "userId", userId, "key", key, "error", err)
			continue
		}
		s.notifyUpdated(userId, kind)
	}
}

// OnMessageEdited 处理消息编辑事件
// 只有编辑命中缓存的“最后一条消息”才影响预览，其余一律忽略；
// 未命中的条目无需重建，下一次读取自然带出编辑后的内容
func (s *PreviewCacheService) OnMessageEdited(ctx context.Context, ev *proto.MessageEditedEvent) {
	kind := model.ConversationKind(ev.Kind)
	if !kind.Valid() {
		s.logger.Error("MessageEdited event with invalid kind", "kind", ev.Kind, "conversationId", ev.ConversationId)
		return
	}

	members, err := s.conversations.GetMemberIds(ctx, kind, ev.ConversationId)
	if err != nil {
		s.logger.Error("Failed to resolve members on edit",
			"conversationId", ev.ConversationId, "kind", ev.Kind, "error", err)
		return
	}

	for _, userId := range members {
		key := store.BuildPreviewKey(kind, userId)

		previews, found, err := s.store.Get(ctx, key, -1)
		if err != nil {
			s.logger.Error("Cache read failed on message edit", "userId", userId, "key", key, "error", err)
			continue
		}
		if !found {
			continue
		}

		idx := findPreview(previews, ev.ConversationId)
		if idx < 0 || previews[idx].LastMessageId != ev.MessageId {
			continue
		}

		previews[idx].PreviewText = ev.PreviewText
		previews[idx].AttachmentKind = ev.AttachmentKind

		if err := s.store.Replace(ctx, key, previews); err != nil {
			s.logger.Error("Cache write failed on message edit", "userId", userId, "key", key, "error", err)
			continue
		}
		s.notifyUpdated(userId, kind)
	}
}

// OnConversationMuted 处理会话静音切换事件
// 条目缺失时先整体重建再切换
func (s *PreviewCacheService) OnConversationMuted(ctx context.Context, ev *proto.ConversationMutedEvent) {
	kind := model.ConversationKind(ev.Kind)
	if !kind.Valid() {
		s.logger.Error("ConversationMuted event with invalid kind", "kind", ev.Kind, "conversationId", ev.ConversationId)
		return
	}

	key := store.BuildPreviewKey(kind, ev.UserId)

	previews, found, err := s.store.Get(ctx, key, -1)
	if err != nil {
		s.logger.Error("Cache read failed on mute toggle", "userId", ev.UserId, "key", key, "error", err)
		return
	}
	if !found {
		previews, err = s.Reload(ctx, ev.UserId, kind)
		if err != nil {
			s.logger.Error("Reload failed on mute toggle", "userId", ev.UserId, "kind", ev.Kind, "error", err)
			return
		}
	}

	idx := findPreview(previews, ev.ConversationId)
	if idx < 0 {
		s.logger.Warn("Mute toggle for unknown conversation",
			"userId", ev.UserId, "conversationId", ev.ConversationId, "kind", ev.Kind)
		return
	}

	previews[idx].IsMuted = !previews[idx].IsMuted

	if err := s.store.Replace(ctx, key, previews); err != nil {
		s.logger.Error("Cache write failed on mute toggle", "userId", ev.UserId, "key", key, "error", err)
		return
	}
	s.notifyUpdated(ev.UserId, kind)
}

// OnUserProfileEdited 处理用户资料变更事件
// 单聊预览冗余了对方的名称/头像，资料变更要扇出修补
// 每个有此人单聊的用户条目；未命中的条目不重建（资料变更不改列表结构）
func (s *PreviewCacheService) OnUserProfileEdited(ctx context.Context, ev *proto.UserProfileEditedEvent) {
	peerIds, err := s.conversations.GetDialogPeerIds(ctx, ev.UserId)
	if err != nil {
		s.logger.Error("Failed to resolve dialog peers on profile edit", "userId", ev.UserId, "error", err)
		return
	}

	for _, peerId := range peerIds {
		key := store.BuildPreviewKey(model.KindDialog, peerId)

		previews, found, err := s.store.Get(ctx, key, -1)
		if err != nil {
			s.logger.Error("Cache read failed on profile edit", "userId", peerId, "key", key, "error", err)
			continue
		}
		if !found {
			continue
		}

		patched := false
		for i := range previews {
			if previews[i].CounterpartUserId == ev.UserId {
				previews[i].Title = ev.Nickname
				previews[i].Photo = ev.Avatar
				patched = true
			}
		}
		if !patched {
			continue
		}

		if err := s.store.Replace(ctx, key, previews); err != nil {
			s.logger.Error("Cache write failed on profile edit", "userId", peerId, "key", key, "error", err)
			continue
		}
		s.notifyUpdated(peerId, model.KindDialog)
	}
}

// notifyUpdated 发出缓存变更提示（通知失败不影响缓存状态）
func (s *PreviewCacheService) notifyUpdated(userId int64, kind model.ConversationKind) {
	if s.notifier != nil {
		s.notifier.NotifyPreviewUpdated(userId, kind)
	}
}

// findPreview 在列表中按会话 ID 定位预览
func findPreview(previews []model.ConversationPreview, conversationId int64) int {
	for i := range previews {
		if previews[i].ConversationId == conversationId {
			return i
		}
	}
	return -1
}
