package nats

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"sudooom.im.conversation/internal/model"
	"sudooom.im.conversation/pkg/proto"
)

// UpdatePublisher 会话列表变更提示发布器
// 提示仅供推送层触发客户端刷新，不携带数据，发布失败只记日志
type UpdatePublisher struct {
	nc     *nats.Conn
	logger *slog.Logger
}

// NewUpdatePublisher 创建变更提示发布器
func NewUpdatePublisher(nc *nats.Conn) *UpdatePublisher {
	return &UpdatePublisher{
		nc:     nc,
		logger: slog.Default(),
	}
}

// NotifyPreviewUpdated 发布单个用户单一类型的列表变更提示
func (p *UpdatePublisher) NotifyPreviewUpdated(userId int64, kind model.ConversationKind) {
	hint := &proto.PreviewUpdated{
		UserId:    userId,
		Kind:      int(kind),
		Timestamp: time.Now().UnixMilli(),
	}

	data, err := json.Marshal(hint)
	if err != nil {
		p.logger.Error("Failed to marshal preview updated hint", "error", err)
		return
	}

	if err := p.nc.Publish(SubjectPreviewUpdated, data); err != nil {
		p.logger.Error("Failed to publish preview updated hint", "userId", userId, "kind", int(kind), "error", err)
		return
	}

	p.logger.Debug("Published preview updated hint", "userId", userId, "kind", int(kind))
}
