package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"sudooom.im.conversation/internal/model"
	apperrors "sudooom.im.conversation/pkg/errors"
)

// ConversationRepository 会话结构仓库
// 提供参与者、成员、副本节点与最新消息的权威查询
type ConversationRepository struct {
	db *pgxpool.Pool
}

// NewConversationRepository 创建会话结构仓库
func NewConversationRepository(db *pgxpool.Pool) *ConversationRepository {
	return &ConversationRepository{db: db}
}

// GetParticipants 获取会话参与者（含角色与归属节点）
func (r *ConversationRepository) GetParticipants(ctx context.Context, kind model.ConversationKind, conversationId int64) ([]model.Participant, error) {
	var query string
	switch kind {
	case model.KindDialog:
		query = `
			SELECT u.id, 0, u.node_id
			FROM dialogs d
			JOIN users u ON u.id IN (d.user1_id, d.user2_id)
			WHERE d.id = $1
		`
	case model.KindChat:
		query = `
			SELECT cm.user_id, cm.role, u.node_id
			FROM chat_members cm
			JOIN users u ON u.id = cm.user_id
			WHERE cm.chat_id = $1
		`
	case model.KindChannel:
		query = `
			SELECT cm.user_id, cm.role, u.node_id
			FROM channel_members cm
			JOIN users u ON u.id = cm.user_id
			WHERE cm.channel_id = $1
		`
	default:
		return nil, apperrors.ErrInvalidKind
	}

	rows, err := r.db.Query(ctx, query, conversationId)
	if err != nil {
		return nil, apperrors.ErrDBError.Wrap(err)
	}
	defer rows.Close()

	var participants []model.Participant
	for rows.Next() {
		var p model.Participant
		if err := rows.Scan(&p.UserId, &p.Role, &p.NodeId); err != nil {
			continue
		}
		participants = append(participants, p)
	}

	if len(participants) == 0 {
		return nil, apperrors.ErrConversationNotFound
	}

	return participants, nil
}

// GetNodeIds 获取会话已知的副本节点列表（仅群聊/频道，列表顺序权威）
func (r *ConversationRepository) GetNodeIds(ctx context.Context, kind model.ConversationKind, conversationId int64) ([]string, error) {
	var query string
	switch kind {
	case model.KindChat:
		query = `SELECT COALESCE(nodes_id, '{}') FROM chats WHERE id = $1`
	case model.KindChannel:
		query = `SELECT COALESCE(nodes_id, '{}') FROM channels WHERE id = $1`
	default:
		return nil, apperrors.ErrInvalidKind
	}

	var nodeIds []string
	err := r.db.QueryRow(ctx, query, conversationId).Scan(&nodeIds)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrConversationNotFound
		}
		return nil, apperrors.ErrDBError.Wrap(err)
	}

	return nodeIds, nil
}

// GetMemberIds 获取会话全部成员 ID
func (r *ConversationRepository) GetMemberIds(ctx context.Context, kind model.ConversationKind, conversationId int64) ([]int64, error) {
	var query string
	switch kind {
	case model.KindDialog:
		query = `SELECT user1_id, user2_id FROM dialogs WHERE id = $1`
		var u1, u2 int64
		err := r.db.QueryRow(ctx, query, conversationId).Scan(&u1, &u2)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, apperrors.ErrConversationNotFound
			}
			return nil, apperrors.ErrDBError.Wrap(err)
		}
		return []int64{u1, u2}, nil
	case model.KindChat:
		query = `SELECT user_id FROM chat_members WHERE chat_id = $1`
	case model.KindChannel:
		query = `SELECT user_id FROM channel_members WHERE channel_id = $1`
	default:
		return nil, apperrors.ErrInvalidKind
	}

	rows, err := r.db.Query(ctx, query, conversationId)
	if err != nil {
		return nil, apperrors.ErrDBError.Wrap(err)
	}
	defer rows.Close()

	var members []int64
	for rows.Next() {
		var userId int64
		if err := rows.Scan(&userId); err != nil {
			continue
		}
		members = append(members, userId)
	}

	return members, nil
}

// GetLastMessage 获取会话当前真实的最新消息
// 没有任何存活消息时返回 ErrConversationNotFound
func (r *ConversationRepository) GetLastMessage(ctx context.Context, kind model.ConversationKind, conversationId int64) (*model.MessageRef, error) {
	query := `
		SELECT id, sender_id, COALESCE(preview_text, ''), COALESCE(attachment_kind, ''),
		       EXTRACT(EPOCH FROM created_at)::bigint
		FROM messages
		WHERE conversation_id = $1 AND kind = $2 AND deleted = 0
		ORDER BY id DESC
		LIMIT 1
	`

	var ref model.MessageRef
	err := r.db.QueryRow(ctx, query, conversationId, int(kind)).Scan(
		&ref.MessageId,
		&ref.SenderId,
		&ref.PreviewText,
		&ref.AttachmentKind,
		&ref.Timestamp,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrConversationNotFound
		}
		return nil, apperrors.ErrDBError.Wrap(err)
	}

	return &ref, nil
}

// GetDialogPeerIds 获取与指定用户存在单聊的全部对方用户 ID
// 用于用户资料变更后的扇出修补
func (r *ConversationRepository) GetDialogPeerIds(ctx context.Context, userId int64) ([]int64, error) {
	query := `
		SELECT CASE WHEN user1_id = $1 THEN user2_id ELSE user1_id END
		FROM dialogs
		WHERE user1_id = $1 OR user2_id = $1
	`

	rows, err := r.db.Query(ctx, query, userId)
	if err != nil {
		return nil, apperrors.ErrDBError.Wrap(err)
	}
	defer rows.Close()

	var peers []int64
	for rows.Next() {
		var peerId int64
		if err := rows.Scan(&peerId); err != nil {
			continue
		}
		peers = append(peers, peerId)
	}

	return peers, nil
}
