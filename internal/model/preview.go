package model

// ConversationKind 会话类型
type ConversationKind int

const (
	KindDialog  ConversationKind = 1 // 单聊
	KindChat    ConversationKind = 2 // 群聊
	KindChannel ConversationKind = 3 // 频道（广播）
)

// Prefix 返回会话类型的缓存 Key 前缀
func (k ConversationKind) Prefix() string {
	switch k {
	case KindDialog:
		return "dialog"
	case KindChat:
		return "chat"
	case KindChannel:
		return "channel"
	}
	return "unknown"
}

// Valid 检查会话类型是否合法
func (k ConversationKind) Valid() bool {
	return k == KindDialog || k == KindChat || k == KindChannel
}

// ConversationPreview 会话预览（会话列表中的一行，按用户冗余存储）
// 缓存中的副本是派生数据，随时可以丢弃并从数据库重建
type ConversationPreview struct {
	ConversationId        int64            `json:"conversation_id"`
	Kind                  ConversationKind `json:"kind"`
	Title                 string           `json:"title"`
	Photo                 string           `json:"photo"`
	PreviewText           string           `json:"preview_text"`
	LastMessageId         int64            `json:"last_message_id"`
	LastMessageTime       int64            `json:"last_message_time"` // 秒级时间戳
	LastMessageSenderId   int64            `json:"last_message_sender_id"`
	LastMessageSenderName string           `json:"last_message_sender_name"`
	AttachmentKind        string           `json:"attachment_kind,omitempty"`
	UnreadCount           int              `json:"unread_count"`
	Read                  bool             `json:"read"`
	IsMuted               bool             `json:"is_muted"`
	CounterpartUserId     int64            `json:"counterpart_user_id,omitempty"` // 仅单聊
}

// Anchor 分页锚点（游标语义：返回严格位于锚点之后的元素）
type Anchor struct {
	ConversationId int64            `json:"conversation_id"`
	Kind           ConversationKind `json:"kind"`
}
