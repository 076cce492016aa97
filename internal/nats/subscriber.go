package nats

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/nats-io/nats.go"
	"sudooom.im.conversation/pkg/proto"
)

// EventHandler 会话变更事件处理器接口
type EventHandler interface {
	HandleNewMessage(ctx context.Context, ev *proto.NewMessageEvent)
	HandleMessagesRemoved(ctx context.Context, ev *proto.MessagesRemovedEvent)
	HandleMessagesRead(ctx context.Context, ev *proto.MessagesReadEvent)
	HandleMessageEdited(ctx context.Context, ev *proto.MessageEditedEvent)
	HandleConversationMuted(ctx context.Context, ev *proto.ConversationMutedEvent)
	HandleUserProfileEdited(ctx context.Context, ev *proto.UserProfileEditedEvent)
}

// SubscriberConfig Worker Pool 配置
type SubscriberConfig struct {
	WorkerCount int // Worker 数量
	BufferSize  int // 消息缓冲区大小
}

// EventSubscriber 会话变更事件订阅器
// 队列组消费，固定数量 worker 并发处理；缓冲区满时丢弃并告警
type EventSubscriber struct {
	nc           *nats.Conn
	handler      EventHandler
	logger       *slog.Logger
	subscription *nats.Subscription
	config       SubscriberConfig
	msgChan      chan *nats.Msg
	wg           sync.WaitGroup
	cancelFunc   context.CancelFunc
}

// NewEventSubscriber 创建事件订阅器
func NewEventSubscriber(nc *nats.Conn, handler EventHandler, config SubscriberConfig) *EventSubscriber {
	// 设置默认值
	if config.WorkerCount <= 0 {
		config.WorkerCount = 16
	}
	if config.BufferSize <= 0 {
		config.BufferSize = 4096
	}

	return &EventSubscriber{
		nc:      nc,
		handler: handler,
		logger:  slog.Default(),
		config:  config,
	}
}

// Start 启动订阅
func (s *EventSubscriber) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancelFunc = cancel
	s.msgChan = make(chan *nats.Msg, s.config.BufferSize)

	for i := 0; i < s.config.WorkerCount; i++ {
		s.wg.Add(1)
		go s.worker(ctx, i)
	}

	sub, err := s.nc.QueueSubscribe(SubjectConversationEvent, QueueGroupConversation, func(msg *nats.Msg) {
		select {
		case s.msgChan <- msg:
		default:
			s.logger.Warn("Event buffer full, dropping message", "subject", msg.Subject)
		}
	})
	if err != nil {
		cancel()
		return err
	}
	s.subscription = sub

	s.logger.Info("Event subscriber started",
		"subject", SubjectConversationEvent,
		"queueGroup", QueueGroupConversation,
		"workers", s.config.WorkerCount,
		"bufferSize", s.config.BufferSize)
	return nil
}

// Stop 停止订阅并等待在途事件处理完毕
// 先退订再关通道，避免回调向已关闭的通道投递
func (s *EventSubscriber) Stop() {
	if s.subscription != nil {
		if err := s.subscription.Unsubscribe(); err != nil {
			s.logger.Error("Failed to unsubscribe", "error", err)
		}
	}
	if s.cancelFunc != nil {
		s.cancelFunc()
	}
	s.wg.Wait()
	if s.msgChan != nil {
		close(s.msgChan)
	}
	s.logger.Info("Event subscriber stopped")
}

// worker 事件处理循环
func (s *EventSubscriber) worker(ctx context.Context, id int) {
	defer s.wg.Done()

	for {
		select {
		case msg, ok := <-s.msgChan:
			if !ok {
				return
			}
			s.dispatch(ctx, msg)
		case <-ctx.Done():
			return
		}
	}
}

// dispatch 解析事件封装并分发到对应处理器
// 每条消息只认第一个非空载荷
func (s *EventSubscriber) dispatch(ctx context.Context, msg *nats.Msg) {
	var event proto.ConversationEvent
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		s.logger.Error("Failed to unmarshal conversation event", "error", err)
		return
	}

	switch {
	case event.NewMessage != nil:
		s.handler.HandleNewMessage(ctx, event.NewMessage)
	case event.MessagesRemoved != nil:
		s.handler.HandleMessagesRemoved(ctx, event.MessagesRemoved)
	case event.MessagesRead != nil:
		s.handler.HandleMessagesRead(ctx, event.MessagesRead)
	case event.MessageEdited != nil:
		s.handler.HandleMessageEdited(ctx, event.MessageEdited)
	case event.ConversationMuted != nil:
		s.handler.HandleConversationMuted(ctx, event.ConversationMuted)
	case event.UserProfileEdited != nil:
		s.handler.HandleUserProfileEdited(ctx, event.UserProfileEdited)
	default:
		s.logger.Warn("Conversation event with empty payload", "subject", msg.Subject)
	}
}
