package store

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"sudooom.im.conversation/internal/model"
)

// 注意：这些测试需要一个运行中的 Redis 实例
// 如果没有 Redis，测试将被跳过

func getTestRedisClient(t *testing.T) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   15, // 使用测试专用数据库
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("跳过测试：无法连接 Redis: %v", err)
	}

	// 清理测试数据库
	client.FlushDB(ctx)

	return client
}

func samplePreviews() []model.ConversationPreview {
	return []model.ConversationPreview{
		{
			ConversationId:  42,
			Kind:            model.KindDialog,
			Title:           "alice",
			PreviewText:     "hello",
			LastMessageId:   3001,
			LastMessageTime: 1000,
			UnreadCount:     2,
		},
		{
			ConversationId:  7,
			Kind:            model.KindDialog,
			Title:           "bob",
			PreviewText:     "bye",
			LastMessageId:   2001,
			LastMessageTime: 900,
			Read:            true,
		},
	}
}

func TestRedisPreviewStore_GetMiss(t *testing.T) {
	client := getTestRedisClient(t)
	defer client.Close()

	s := NewRedisPreviewStore(client)
	ctx := context.Background()

	_, found, err := s.Get(ctx, BuildPreviewKey(model.KindDialog, 1001), -1)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if found {
		t.Error("Expected cache miss for empty key")
	}
}

func TestRedisPreviewStore_ReplaceAndGet(t *testing.T) {
	client := getTestRedisClient(t)
	defer client.Close()

	s := NewRedisPreviewStore(client)
	ctx := context.Background()
	key := BuildPreviewKey(model.KindDialog, 1001)

	if err := s.Replace(ctx, key, samplePreviews()); err != nil {
		t.Fatalf("Replace failed: %v", err)
	}

	previews, found, err := s.Get(ctx, key, -1)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !found {
		t.Fatal("Expected cache hit after Replace")
	}
	if len(previews) != 2 {
		t.Fatalf("Expected 2 previews, got %d", len(previews))
	}
	if previews[0].ConversationId != 42 || previews[1].ConversationId != 7 {
		t.Error("Expected list order to be preserved")
	}
	if previews[0].PreviewText != "hello" || previews[0].UnreadCount != 2 {
		t.Error("Expected preview fields to round-trip")
	}
}

func TestRedisPreviewStore_GetLimit(t *testing.T) {
	client := getTestRedisClient(t)
	defer client.Close()

	s := NewRedisPreviewStore(client)
	ctx := context.Background()
	key := BuildPreviewKey(model.KindChat, 1001)

	if err := s.Replace(ctx, key, samplePreviews()); err != nil {
		t.Fatalf("Replace failed: %v", err)
	}

	previews, found, err := s.Get(ctx, key, 1)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !found || len(previews) != 1 {
		t.Fatalf("Expected exactly 1 preview, got %d (found=%v)", len(previews), found)
	}
}

func TestRedisPreviewStore_ReplaceOverwrites(t *testing.T) {
	client := getTestRedisClient(t)
	defer client.Close()

	s := NewRedisPreviewStore(client)
	ctx := context.Background()
	key := BuildPreviewKey(model.KindChannel, 1001)

	if err := s.Replace(ctx, key, samplePreviews()); err != nil {
		t.Fatalf("Replace failed: %v", err)
	}
	if err := s.Replace(ctx, key, samplePreviews()[:1]); err != nil {
		t.Fatalf("Second Replace failed: %v", err)
	}

	previews, _, err := s.Get(ctx, key, -1)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if len(previews) != 1 {
		t.Errorf("Expected wholesale overwrite to leave 1 preview, got %d", len(previews))
	}
}

func TestRedisPreviewStore_Delete(t *testing.T) {
	client := getTestRedisClient(t)
	defer client.Close()

	s := NewRedisPreviewStore(client)
	ctx := context.Background()
	key := BuildPreviewKey(model.KindDialog, 1001)

	if err := s.Replace(ctx, key, samplePreviews()); err != nil {
		t.Fatalf("Replace failed: %v", err)
	}
	if err := s.Delete(ctx, key); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	_, found, err := s.Get(ctx, key, -1)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if found {
		t.Error("Expected cache miss after Delete")
	}
}
