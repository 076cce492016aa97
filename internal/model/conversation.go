package model

// 参与者角色
const (
	RoleMember  = 0
	RoleAdmin   = 1
	RoleCreator = 2
)

// Participant 会话参与者
type Participant struct {
	UserId int64  `json:"userId"`
	Role   int    `json:"role"`
	NodeId string `json:"nodeId"` // 参与者归属节点
}

// MessageRef 消息引用（已读重算时用于定位真实的最新消息）
type MessageRef struct {
	MessageId      int64  `json:"messageId"`
	SenderId       int64  `json:"senderId"`
	PreviewText    string `json:"previewText"`
	AttachmentKind string `json:"attachmentKind,omitempty"`
	Timestamp      int64  `json:"timestamp"` // 秒级时间戳
}
