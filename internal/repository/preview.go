package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"sudooom.im.conversation/internal/model"
	apperrors "sudooom.im.conversation/pkg/errors"
)

// PreviewRepository 会话预览仓库（权威数据源）
// 每个方法从数据库重算一个用户单一类型的完整预览列表，
// 缓存重建（reload）与跨节点聚合都以这里的结果为准
type PreviewRepository struct {
	db *pgxpool.Pool
}

// NewPreviewRepository 创建会话预览仓库
func NewPreviewRepository(db *pgxpool.Pool) *PreviewRepository {
	return &PreviewRepository{db: db}
}

// GetUserDialogsPreview 重算用户的单聊预览列表
// 标题/头像取本地已知的对方资料（对方归属远端节点时可能过期，由聚合层刷新）
func (r *PreviewRepository) GetUserDialogsPreview(ctx context.Context, userId int64) ([]model.ConversationPreview, error) {
	query := `
		SELECT d.id,
		       CASE WHEN d.user1_id = $1 THEN d.user2_id ELSE d.user1_id END AS counterpart_id,
		       COALESCE(u.nickname, ''),
		       COALESCE(u.avatar, ''),
		       COALESCE(m.id, 0),
		       COALESCE(m.sender_id, 0),
		       CASE WHEN m.sender_id = u.id THEN COALESCE(u.nickname, '') ELSE '' END,
		       COALESCE(m.preview_text, ''),
		       COALESCE(m.attachment_kind, ''),
		       COALESCE(EXTRACT(EPOCH FROM m.created_at)::bigint, 0),
		       s.unread_count, s.read, s.is_muted
		FROM dialogs d
		JOIN dialog_states s ON s.dialog_id = d.id AND s.user_id = $1
		LEFT JOIN users u ON u.id = CASE WHEN d.user1_id = $1 THEN d.user2_id ELSE d.user1_id END
		LEFT JOIN LATERAL (
			SELECT id, sender_id, preview_text, attachment_kind, created_at
			FROM messages
			WHERE conversation_id = d.id AND kind = 1 AND deleted = 0
			ORDER BY id DESC
			LIMIT 1
		) m ON true
		WHERE d.user1_id = $1 OR d.user2_id = $1
	`

	rows, err := r.db.Query(ctx, query, userId)
	if err != nil {
		return nil, apperrors.ErrDBError.Wrap(err)
	}
	defer rows.Close()

	var previews []model.ConversationPreview
	for rows.Next() {
		p := model.ConversationPreview{Kind: model.KindDialog}
		if err := rows.Scan(
			&p.ConversationId,
			&p.CounterpartUserId,
			&p.Title,
			&p.Photo,
			&p.LastMessageId,
			&p.LastMessageSenderId,
			&p.LastMessageSenderName,
			&p.PreviewText,
			&p.AttachmentKind,
			&p.LastMessageTime,
			&p.UnreadCount,
			&p.Read,
			&p.IsMuted,
		); err != nil {
			continue
		}
		previews = append(previews, p)
	}

	return previews, nil
}

// GetUserChatsPreview 重算用户的群聊预览列表
// since 为秒级时间戳，0 表示不过滤
func (r *PreviewRepository) GetUserChatsPreview(ctx context.Context, userId int64, since int64) ([]model.ConversationPreview, error) {
	query := `
		SELECT c.id, c.title, COALESCE(c.photo, ''),
		       COALESCE(m.id, 0),
		       COALESCE(m.sender_id, 0),
		       COALESCE(su.nickname, ''),
		       COALESCE(m.preview_text, ''),
		       COALESCE(m.attachment_kind, ''),
		       COALESCE(EXTRACT(EPOCH FROM m.created_at)::bigint, 0),
		       cm.unread_count, cm.read, cm.is_muted
		FROM chats c
		JOIN chat_members cm ON cm.chat_id = c.id AND cm.user_id = $1
		LEFT JOIN LATERAL (
			SELECT id, sender_id, preview_text, attachment_kind, created_at
			FROM messages
			WHERE conversation_id = c.id AND kind = 2 AND deleted = 0
			ORDER BY id DESC
			LIMIT 1
		) m ON true
		LEFT JOIN users su ON su.id = m.sender_id
		WHERE $2 = 0 OR COALESCE(EXTRACT(EPOCH FROM m.created_at)::bigint, 0) >= $2
	`

	rows, err := r.db.Query(ctx, query, userId, since)
	if err != nil {
		return nil, apperrors.ErrDBError.Wrap(err)
	}
	defer rows.Close()

	var previews []model.ConversationPreview
	for rows.Next() {
		p := model.ConversationPreview{Kind: model.KindChat}
		if err := rows.Scan(
			&p.ConversationId,
			&p.Title,
			&p.Photo,
			&p.LastMessageId,
			&p.LastMessageSenderId,
			&p.LastMessageSenderName,
			&p.PreviewText,
			&p.AttachmentKind,
			&p.LastMessageTime,
			&p.UnreadCount,
			&p.Read,
			&p.IsMuted,
		); err != nil {
			continue
		}
		previews = append(previews, p)
	}

	return previews, nil
}

// GetUserChannelsPreview 重算用户的频道预览列表
// 平台策略：频道预览不暴露发送者身份
func (r *PreviewRepository) GetUserChannelsPreview(ctx context.Context, userId int64) ([]model.ConversationPreview, error) {
	query := `
		SELECT c.id, c.title, COALESCE(c.photo, ''),
		       COALESCE(m.id, 0),
		       COALESCE(m.preview_text, ''),
		       COALESCE(m.attachment_kind, ''),
		       COALESCE(EXTRACT(EPOCH FROM m.created_at)::bigint, 0),
		       cm.unread_count, cm.read, cm.is_muted
		FROM channels c
		JOIN channel_members cm ON cm.channel_id = c.id AND cm.user_id = $1
		LEFT JOIN LATERAL (
			SELECT id, preview_text, attachment_kind, created_at
			FROM messages
			WHERE conversation_id = c.id AND kind = 3 AND deleted = 0
			ORDER BY id DESC
			LIMIT 1
		) m ON true
	`

	rows, err := r.db.Query(ctx, query, userId)
	if err != nil {
		return nil, apperrors.ErrDBError.Wrap(err)
	}
	defer rows.Close()

	var previews []model.ConversationPreview
	for rows.Next() {
		p := model.ConversationPreview{Kind: model.KindChannel}
		if err := rows.Scan(
			&p.ConversationId,
			&p.Title,
			&p.Photo,
			&p.LastMessageId,
			&p.PreviewText,
			&p.AttachmentKind,
			&p.LastMessageTime,
			&p.UnreadCount,
			&p.Read,
			&p.IsMuted,
		); err != nil {
			continue
		}
		previews = append(previews, p)
	}

	return previews, nil
}
