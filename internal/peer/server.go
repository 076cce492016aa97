package peer

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"sudooom.im.conversation/internal/model"
	imnats "sudooom.im.conversation/internal/nats"
	apperrors "sudooom.im.conversation/pkg/errors"
	"sudooom.im.conversation/pkg/proto"
)

// describeTimeout 单次 describe 请求的本地处理预算
const describeTimeout = 5 * time.Second

// UserDirectory 批量用户查询
type UserDirectory interface {
	FindByIDs(ctx context.Context, ids []int64) ([]model.User, error)
}

// PrivacyFilter 批量用户隐私过滤
type PrivacyFilter interface {
	FilterForUser(requestingUserId int64, users []model.User) []proto.UserDisplay
}

// Server 对端描述服务
// 订阅本节点的 describe Subject，为联邦内其他节点提供
// 本节点归属用户的展示信息（经隐私过滤）
type Server struct {
	nc           *nats.Conn
	users        UserDirectory
	privacy      PrivacyFilter
	tokens       *TokenService
	localNodeId  string
	subscription *nats.Subscription
	logger       *slog.Logger
}

// NewServer 创建对端描述服务
func NewServer(nc *nats.Conn, users UserDirectory, privacy PrivacyFilter, tokens *TokenService, localNodeId string) *Server {
	return &Server{
		nc:          nc,
		users:       users,
		privacy:     privacy,
		tokens:      tokens,
		localNodeId: localNodeId,
		logger:      slog.Default(),
	}
}

// Start 启动订阅
func (s *Server) Start() error {
	subject := imnats.BuildNodeDescribeSubject(s.localNodeId)

	sub, err := s.nc.Subscribe(subject, s.handleDescribe)
	if err != nil {
		return err
	}

	s.subscription = sub
	s.logger.Info("Peer describe server started", "subject", subject)
	return nil
}

// Stop 停止订阅
func (s *Server) Stop() {
	if s.subscription != nil {
		if err := s.subscription.Unsubscribe(); err != nil {
			s.logger.Error("Failed to unsubscribe describe server", "error", err)
		}
	}
}

// handleDescribe 处理单个 describe 请求
func (s *Server) handleDescribe(msg *nats.Msg) {
	var req proto.DescribeUsersRequest
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		s.logger.Error("Failed to unmarshal describe request", "error", err)
		s.respond(msg, &proto.DescribeUsersResponse{
			Code:    apperrors.CodeInvalidParams,
			Message: apperrors.ErrInvalidParams.Message,
		})
		return
	}

	if _, err := s.tokens.Verify(req.Token); err != nil {
		s.logger.Warn("Describe request with invalid token",
			"fromNodeId", req.FromNodeId,
			"requestId", req.RequestId)
		s.respond(msg, &proto.DescribeUsersResponse{
			Code:    apperrors.CodeTokenInvalid,
			Message: apperrors.ErrTokenInvalid.Message,
		})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), describeTimeout)
	defer cancel()

	users, err := s.users.FindByIDs(ctx, req.UserIds)
	if err != nil {
		s.logger.Error("Failed to load users for describe",
			"fromNodeId", req.FromNodeId,
			"requestId", req.RequestId,
			"error", err)
		s.respond(msg, &proto.DescribeUsersResponse{
			Code:    apperrors.GetCode(err),
			Message: apperrors.GetMessage(err),
		})
		return
	}

	s.respond(msg, &proto.DescribeUsersResponse{
		Code:  apperrors.CodeSuccess,
		Users: s.privacy.FilterForUser(req.RequestingUserId, users),
	})

	s.logger.Debug("Describe request served",
		"fromNodeId", req.FromNodeId,
		"requestId", req.RequestId,
		"userCount", len(req.UserIds))
}

// respond 回复请求方
func (s *Server) respond(msg *nats.Msg, resp *proto.DescribeUsersResponse) {
	data, err := json.Marshal(resp)
	if err != nil {
		s.logger.Error("Failed to marshal describe response", "error", err)
		return
	}
	if err := msg.Respond(data); err != nil {
		s.logger.Error("Failed to respond to describe request", "error", err)
	}
}
