package proto

// ============== 会话变更事件（其他服务 -> Conversation） ==============

// ConversationEvent 会话变更事件封装
// 每条消息只携带一个非空载荷
type ConversationEvent struct {
	NewMessage        *NewMessageEvent        `json:"NewMessage,omitempty"`
	MessagesRemoved   *MessagesRemovedEvent   `json:"MessagesRemoved,omitempty"`
	MessagesRead      *MessagesReadEvent      `json:"MessagesRead,omitempty"`
	MessageEdited     *MessageEditedEvent     `json:"MessageEdited,omitempty"`
	ConversationMuted *ConversationMutedEvent `json:"ConversationMuted,omitempty"`
	UserProfileEdited *UserProfileEditedEvent `json:"UserProfileEdited,omitempty"`
}

// NewMessageEvent 新消息事件
// 单聊时 ReceiverId 为对方用户；群聊/频道时成员列表由服务端自行解析
type NewMessageEvent struct {
	ConversationId int64  `json:"ConversationId"`
	Kind           int    `json:"Kind"`
	MessageId      int64  `json:"MessageId"`
	SenderId       int64  `json:"SenderId"`
	ReceiverId     int64  `json:"ReceiverId,omitempty"`
	PreviewText    string `json:"PreviewText"`
	AttachmentKind string `json:"AttachmentKind,omitempty"`
	Timestamp      int64  `json:"Timestamp"`
}

// RemovedMessage 单条被删除的消息
type RemovedMessage struct {
	ConversationId int64 `json:"ConversationId"`
	Kind           int   `json:"Kind"`
	MessageId      int64 `json:"MessageId"`
}

// MessagesRemovedEvent 消息删除事件（可跨多个会话）
type MessagesRemovedEvent struct {
	Items []RemovedMessage `json:"Items"`
}

// MessagesReadEvent 消息已读事件
type MessagesReadEvent struct {
	ConversationId int64   `json:"ConversationId"`
	Kind           int     `json:"Kind"`
	ReaderId       int64   `json:"ReaderId"`
	MessageIds     []int64 `json:"MessageIds"`
}

// MessageEditedEvent 消息编辑事件
type MessageEditedEvent struct {
	ConversationId int64  `json:"ConversationId"`
	Kind           int    `json:"Kind"`
	MessageId      int64  `json:"MessageId"`
	PreviewText    string `json:"PreviewText"`
	AttachmentKind string `json:"AttachmentKind,omitempty"`
}

// ConversationMutedEvent 会话静音切换事件
type ConversationMutedEvent struct {
	UserId         int64 `json:"UserId"`
	ConversationId int64 `json:"ConversationId"`
	Kind           int   `json:"Kind"`
}

// UserProfileEditedEvent 用户资料变更事件
type UserProfileEditedEvent struct {
	UserId   int64  `json:"UserId"`
	Nickname string `json:"Nickname"`
	Avatar   string `json:"Avatar"`
}

// ============== 查询（请求-应答） ==============

// ConversationQuery 查询请求封装
type ConversationQuery struct {
	CachedList *CachedListRequest `json:"CachedList,omitempty"`
	MergedPage *MergedPageRequest `json:"MergedPage,omitempty"`
	OwnerNode  *OwnerNodeRequest  `json:"OwnerNode,omitempty"`
}

// CachedListRequest 读取单一类型的缓存会话列表
type CachedListRequest struct {
	UserId int64 `json:"UserId"`
	Kind   int   `json:"Kind"`
}

// MergedPageRequest 读取跨类型合并分页列表
type MergedPageRequest struct {
	UserId               int64 `json:"UserId"`
	AnchorConversationId int64 `json:"AnchorConversationId,omitempty"`
	AnchorKind           int   `json:"AnchorKind,omitempty"`
}

// OwnerNodeRequest 查询会话归属节点（供路由层决定投递目标）
type OwnerNodeRequest struct {
	ConversationId int64 `json:"ConversationId"`
	Kind           int   `json:"Kind"`
}

// PreviewRecord 会话预览（下行）
type PreviewRecord struct {
	ConversationId        int64  `json:"ConversationId"`
	Kind                  int    `json:"Kind"`
	Title                 string `json:"Title"`
	Photo                 string `json:"Photo"`
	PreviewText           string `json:"PreviewText"`
	LastMessageId         int64  `json:"LastMessageId"`
	LastMessageTime       int64  `json:"LastMessageTime"`
	LastMessageSenderId   int64  `json:"LastMessageSenderId"`
	LastMessageSenderName string `json:"LastMessageSenderName"`
	AttachmentKind        string `json:"AttachmentKind,omitempty"`
	UnreadCount           int    `json:"UnreadCount"`
	Read                  bool   `json:"Read"`
	IsMuted               bool   `json:"IsMuted"`
	CounterpartUserId     int64  `json:"CounterpartUserId,omitempty"`
}

// ConversationQueryReply 查询应答
type ConversationQueryReply struct {
	Code     int             `json:"Code"`
	Message  string          `json:"Message,omitempty"`
	Previews []PreviewRecord `json:"Previews,omitempty"`
	NodeId   string          `json:"NodeId,omitempty"` // 仅 OwnerNode 查询
}

// ============== 跨节点用户描述（节点 -> 节点） ==============

// UserDisplay 用户展示信息（经过隐私过滤）
type UserDisplay struct {
	UserId   int64  `json:"UserId"`
	Nickname string `json:"Nickname"`
	Avatar   string `json:"Avatar"`
}

// DescribeUsersRequest 跨节点批量用户描述请求
type DescribeUsersRequest struct {
	RequestId        int64   `json:"RequestId"`
	FromNodeId       string  `json:"FromNodeId"`
	Token            string  `json:"Token"` // 节点 JWT 令牌
	RequestingUserId int64   `json:"RequestingUserId"`
	UserIds          []int64 `json:"UserIds"`
}

// DescribeUsersResponse 跨节点批量用户描述应答
type DescribeUsersResponse struct {
	Code    int           `json:"Code"`
	Message string        `json:"Message,omitempty"`
	Users   []UserDisplay `json:"Users,omitempty"`
}

// ============== 缓存更新通知（Conversation -> 推送层） ==============

// PreviewUpdated 会话列表变更提示（仅作刷新提示，不携带数据）
type PreviewUpdated struct {
	UserId    int64 `json:"UserId"`
	Kind      int   `json:"Kind"`
	Timestamp int64 `json:"Timestamp"`
}
