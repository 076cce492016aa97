package nats

// NATS Subject 常量定义
const (
	// SubjectConversationEvent 会话变更事件（其他服务 -> Conversation）
	SubjectConversationEvent = "im.conversation.event"

	// SubjectConversationQuery 会话查询（请求-应答）
	SubjectConversationQuery = "im.conversation.query"

	// SubjectPreviewUpdated 会话列表变更提示（Conversation -> 推送层）
	SubjectPreviewUpdated = "im.conversation.updated"

	// SubjectNodeDescribePrefix 跨节点用户描述 Subject 前缀
	// 完整格式: im.node.{node_id}.users.describe
	SubjectNodeDescribePrefix = "im.node."
	SubjectNodeDescribeSuffix = ".users.describe"

	// QueueGroupConversation Conversation 服务队列组名称
	QueueGroupConversation = "conversation-group"
)

// BuildNodeDescribeSubject 构建节点用户描述 Subject
func BuildNodeDescribeSubject(nodeID string) string {
	return SubjectNodeDescribePrefix + nodeID + SubjectNodeDescribeSuffix
}
