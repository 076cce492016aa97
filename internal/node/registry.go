package node

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"sudooom.im.conversation/internal/model"
	"sudooom.im.conversation/internal/store"
	apperrors "sudooom.im.conversation/pkg/errors"
)

// Registry 联邦节点注册表（基于 Redis）
// 每个节点启动时注册自身并周期性续期，TTL 过期即视为下线
type Registry struct {
	redisClient *redis.Client
	localNodeId string
	inbox       string
	ttl         time.Duration
	logger      *slog.Logger
}

// NewRegistry 创建节点注册表
// inbox 为本节点 describe 请求的 NATS Subject
func NewRegistry(redisClient *redis.Client, localNodeId, inbox string, ttl time.Duration) *Registry {
	return &Registry{
		redisClient: redisClient,
		localNodeId: localNodeId,
		inbox:       inbox,
		ttl:         ttl,
		logger:      slog.Default(),
	}
}

// Register 注册本节点
func (r *Registry) Register(ctx context.Context) error {
	info := &model.NodeInfo{
		NodeId:       r.localNodeId,
		Inbox:        r.inbox,
		RegisteredAt: time.Now(),
	}

	data, err := json.Marshal(info)
	if err != nil {
		return err
	}

	key := store.BuildNodeKey(r.localNodeId)
	if err := r.redisClient.Set(ctx, key, data, r.ttl).Err(); err != nil {
		return apperrors.ErrCacheError.Wrap(err)
	}

	r.logger.Info("Node registered", "nodeId", r.localNodeId, "inbox", r.inbox, "ttl", r.ttl)
	return nil
}

// Unregister 注销本节点
func (r *Registry) Unregister(ctx context.Context) error {
	return r.redisClient.Del(ctx, store.BuildNodeKey(r.localNodeId)).Err()
}

// Lookup 查询节点注册信息
// 未注册或已过期返回 ErrNodeUnknown
func (r *Registry) Lookup(ctx context.Context, nodeId string) (*model.NodeInfo, error) {
	data, err := r.redisClient.Get(ctx, store.BuildNodeKey(nodeId)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, apperrors.ErrNodeUnknown
		}
		return nil, apperrors.ErrCacheError.Wrap(err)
	}

	var info model.NodeInfo
	if err := json.Unmarshal([]byte(data), &info); err != nil {
		return nil, apperrors.ErrNodeUnknown.Wrap(err)
	}

	return &info, nil
}

// Heartbeat 周期性续期本节点注册，直到 ctx 取消
func (r *Registry) Heartbeat(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.Register(ctx); err != nil {
				r.logger.Warn("Node heartbeat failed", "nodeId", r.localNodeId, "error", err)
			}
		}
	}
}
