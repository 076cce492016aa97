package service

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"sudooom.im.conversation/internal/model"
	"sudooom.im.conversation/internal/peer"
	"sudooom.im.conversation/pkg/proto"
)

// ConversationSource 权威数据源（按类型重算用户的完整预览列表）
type ConversationSource interface {
	GetUserDialogsPreview(ctx context.Context, userId int64) ([]model.ConversationPreview, error)
	GetUserChatsPreview(ctx context.Context, userId int64, since int64) ([]model.ConversationPreview, error)
	GetUserChannelsPreview(ctx context.Context, userId int64) ([]model.ConversationPreview, error)
}

// UserDirectory 批量用户查询
type UserDirectory interface {
	FindByIDs(ctx context.Context, ids []int64) ([]model.User, error)
}

// PrivacyFilter 批量用户隐私过滤（对端不可达时的本地降级路径）
type PrivacyFilter interface {
	FilterForUser(requestingUserId int64, users []model.User) []proto.UserDisplay
}

// PeerLink 对端节点链路
type PeerLink interface {
	GetConnection(ctx context.Context, nodeId string) (*peer.Conn, error)
	DescribeUsers(ctx context.Context, conn *peer.Conn, userIds []int64, requestingUserId int64) ([]proto.UserDisplay, error)
}

// AggregatorService 跨节点会话聚合服务
//
// 组装用户在三种会话类型上的合并预览列表：按归属节点分组扇出
// 补齐远端用户的展示信息，合并排序后按锚点裁剪。
// 任一对端节点失败只降低展示丰富度（名称/头像缺失），绝不丢会话
type AggregatorService struct {
	source            ConversationSource
	users             UserDirectory
	peers             PeerLink
	privacy           PrivacyFilter
	localNodeId       string
	fanoutTimeout     time.Duration // 整次聚合共享的扇出预算
	fanoutConcurrency int
	logger            *slog.Logger
}

// NewAggregatorService 创建跨节点会话聚合服务
func NewAggregatorService(
	source ConversationSource,
	users UserDirectory,
	peers PeerLink,
	privacy PrivacyFilter,
	localNodeId string,
	fanoutTimeout time.Duration,
	fanoutConcurrency int,
) *AggregatorService {
	if fanoutTimeout <= 0 {
		fanoutTimeout = 10 * time.Second
	}
	if fanoutConcurrency <= 0 {
		fanoutConcurrency = 4
	}
	return &AggregatorService{
		source:            source,
		users:             users,
		peers:             peers,
		privacy:           privacy,
		localNodeId:       localNodeId,
		fanoutTimeout:     fanoutTimeout,
		fanoutConcurrency: fanoutConcurrency,
		logger:            slog.Default(),
	}
}

// GetUserConversationsPage 获取用户的合并分页会话列表
// anchor 为空返回全量；结果按最后消息时间降序
func (s *AggregatorService) GetUserConversationsPage(ctx context.Context, userId int64, anchor *model.Anchor) ([]model.ConversationPreview, error) {
	dialogs, err := s.source.GetUserDialogsPreview(ctx, userId)
	if err != nil {
		return nil, err
	}
	chats, err := s.source.GetUserChatsPreview(ctx, userId, 0)
	if err != nil {
		return nil, err
	}
	channels, err := s.source.GetUserChannelsPreview(ctx, userId)
	if err != nil {
		return nil, err
	}

	// 待解析的身份：单聊对方 + 群聊最后发送者
	// 频道不解析发送者（平台策略：频道预览匿名）
	idSet := make(map[int64]struct{})
	for _, p := range dialogs {
		if p.CounterpartUserId > 0 {
			idSet[p.CounterpartUserId] = struct{}{}
		}
	}
	for _, p := range chats {
		if p.LastMessageSenderId > 0 {
			idSet[p.LastMessageSenderId] = struct{}{}
		}
	}

	ids := make([]int64, 0, len(idSet))
	for id := range idSet {
		ids = append(ids, id)
	}

	displays := s.resolveDisplays(ctx, userId, ids)

	for i := range dialogs {
		if d, ok := displays[dialogs[i].CounterpartUserId]; ok {
			dialogs[i].Title = d.Nickname
			dialogs[i].Photo = d.Avatar
			if dialogs[i].LastMessageSenderId == dialogs[i].CounterpartUserId {
				dialogs[i].LastMessageSenderName = d.Nickname
			}
		}
	}
	for i := range chats {
		if d, ok := displays[chats[i].LastMessageSenderId]; ok {
			chats[i].LastMessageSenderName = d.Nickname
		}
	}

	merged := make([]model.ConversationPreview, 0, len(dialogs)+len(chats)+len(channels))
	merged = append(merged, dialogs...)
	merged = append(merged, chats...)
	merged = append(merged, channels...)

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].LastMessageTime > merged[j].LastMessageTime
	})

	return trimAfterAnchor(merged, anchor), nil
}

// resolveDisplays 解析一批用户的展示信息
// 本节点归属的用户直接走本地隐私过滤；其余按归属节点分组，
// 在共享截止时间内有界并发扇出，失败组降级为本地（可能过期）记录
func (s *AggregatorService) resolveDisplays(ctx context.Context, requestingUserId int64, ids []int64) map[int64]proto.UserDisplay {
	displays := make(map[int64]proto.UserDisplay)
	if len(ids) == 0 {
		return displays
	}

	users, err := s.users.FindByIDs(ctx, ids)
	if err != nil {
		// 展示信息是尽力而为：查询失败只降低丰富度
		s.logger.Warn("Bulk user lookup failed", "userCount", len(ids), "error", err)
		return displays
	}

	var local []model.User
	groups := make(map[string][]model.User)
	for _, u := range users {
		if u.NodeId == "" || u.NodeId == s.localNodeId {
			local = append(local, u)
		} else {
			groups[u.NodeId] = append(groups[u.NodeId], u)
		}
	}

	for _, d := range s.privacy.FilterForUser(requestingUserId, local) {
		displays[d.UserId] = d
	}

	if len(groups) == 0 {
		return displays
	}

	// 共享截止时间挂在整次扇出上，而不是单个节点组
	fanCtx, cancel := context.WithTimeout(ctx, s.fanoutTimeout)
	defer cancel()

	sem := make(chan struct{}, s.fanoutConcurrency)
	var wg sync.WaitGroup
	var mu sync.Mutex

	for nodeId, group := range groups {
		wg.Add(1)
		go func(nodeId string, group []model.User) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-fanCtx.Done():
				// 预算用尽仍在排队的组按不可达降级
				mu.Lock()
				s.mergeDisplays(displays, s.privacy.FilterForUser(requestingUserId, group))
				mu.Unlock()
				return
			}

			results := s.describeGroup(fanCtx, requestingUserId, nodeId, group)

			mu.Lock()
			s.mergeDisplays(displays, results)
			mu.Unlock()
		}(nodeId, group)
	}

	wg.Wait()
	return displays
}

// describeGroup 解析单个节点组
// 节点未知、传输失败或超时都隔离在组内，降级为本地记录
func (s *AggregatorService) describeGroup(ctx context.Context, requestingUserId int64, nodeId string, group []model.User) []proto.UserDisplay {
	ids := make([]int64, 0, len(group))
	for _, u := range group {
		ids = append(ids, u.Id)
	}

	conn, err := s.peers.GetConnection(ctx, nodeId)
	if err == nil {
		results, derr := s.peers.DescribeUsers(ctx, conn, ids, requestingUserId)
		if derr == nil {
			return results
		}
		err = derr
	}

	s.logger.Warn("Peer node degraded, falling back to local records",
		"nodeId", nodeId,
		"userCount", len(group),
		"error", err)

	return s.privacy.FilterForUser(requestingUserId, group)
}

// mergeDisplays 合并解析结果（调用方持锁）
func (s *AggregatorService) mergeDisplays(dst map[int64]proto.UserDisplay, src []proto.UserDisplay) {
	for _, d := range src {
		dst[d.UserId] = d
	}
}

// trimAfterAnchor 游标语义：返回严格位于锚点之后的元素
// 锚点未命中时返回完整列表——沿用线上行为（锚点过期视为从头重新开始），
// 不要在这里“修正”
func trimAfterAnchor(previews []model.ConversationPreview, anchor *model.Anchor) []model.ConversationPreview {
	if anchor == nil {
		return previews
	}
	for i, p := range previews {
		if p.ConversationId == anchor.ConversationId && p.Kind == anchor.Kind {
			return previews[i+1:]
		}
	}
	return previews
}
