package store

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"sudooom.im.conversation/internal/model"
	apperrors "sudooom.im.conversation/pkg/errors"
)

// RedisPreviewStore 会话预览缓存（基于 Redis List，每个 Key 一个有序列表）
//
// 条目不加锁：并发的读-改-写会以最后写入者为准，另一方的修补被静默覆盖。
// 这是有意的取舍——缓存是派生数据，任何丢失的修补都会在下一次
// reload（缓存未命中或强制重建）时收敛回权威状态，最坏情况是短暂过期。
type RedisPreviewStore struct {
	redisClient *redis.Client
	logger      *slog.Logger
}

// NewRedisPreviewStore 创建会话预览缓存
func NewRedisPreviewStore(redisClient *redis.Client) *RedisPreviewStore {
	return &RedisPreviewStore{
		redisClient: redisClient,
		logger:      slog.Default(),
	}
}

// Get 读取缓存的预览列表
// limit = -1 表示不限制条数；Key 不存在时 found 为 false（未命中不是错误）
func (s *RedisPreviewStore) Get(ctx context.Context, key string, limit int64) ([]model.ConversationPreview, bool, error) {
	stop := limit - 1
	if limit < 0 {
		stop = -1
	}

	rows, err := s.redisClient.LRange(ctx, key, 0, stop).Result()
	if err != nil {
		return nil, false, apperrors.ErrCacheError.Wrap(err)
	}

	if len(rows) == 0 {
		return nil, false, nil
	}

	previews := make([]model.ConversationPreview, 0, len(rows))
	for _, row := range rows {
		var p model.ConversationPreview
		if err := json.Unmarshal([]byte(row), &p); err != nil {
			// 单行损坏按整体未命中处理，交由上层 reload 重建
			s.logger.Warn("Corrupted preview row, treating as cache miss", "key", key, "error", err)
			return nil, false, nil
		}
		previews = append(previews, p)
	}

	return previews, true, nil
}

// Replace 整体覆盖缓存的预览列表
func (s *RedisPreviewStore) Replace(ctx context.Context, key string, previews []model.ConversationPreview) error {
	rows := make([]interface{}, 0, len(previews))
	for _, p := range previews {
		data, err := json.Marshal(p)
		if err != nil {
			return apperrors.ErrCacheError.Wrap(err)
		}
		rows = append(rows, data)
	}

	pipe := s.redisClient.Pipeline()
	pipe.Del(ctx, key)
	if len(rows) > 0 {
		pipe.RPush(ctx, key, rows...)
	}
	_, err := pipe.Exec(ctx)

	if err != nil {
		return apperrors.ErrCacheError.Wrap(err)
	}
	return nil
}

// Delete 删除缓存条目
func (s *RedisPreviewStore) Delete(ctx context.Context, key string) error {
	if err := s.redisClient.Del(ctx, key).Err(); err != nil {
		return apperrors.ErrCacheError.Wrap(err)
	}
	return nil
}
