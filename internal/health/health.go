package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
)

const checkTimeout = 2 * time.Second

// Status 健康状态
// NodeId 帮助运维在多节点部署中定位实例
type Status struct {
	NodeId   string `json:"node_id"`
	NATS     string `json:"nats"`
	Redis    string `json:"redis"`
	Database string `json:"database"`
}

// Healthy 三个后端依赖是否全部可用
func (s *Status) Healthy() bool {
	return s.NATS == "connected" && s.Redis == "connected" && s.Database == "connected"
}

// Checker 健康检查器
type Checker struct {
	nodeId      string
	nc          *nats.Conn
	redisClient *redis.Client
	db          *pgxpool.Pool
}

// NewChecker 创建健康检查器
func NewChecker(nodeId string, nc *nats.Conn, redisClient *redis.Client, db *pgxpool.Pool) *Checker {
	return &Checker{
		nodeId:      nodeId,
		nc:          nc,
		redisClient: redisClient,
		db:          db,
	}
}

// Check 执行健康检查
func (h *Checker) Check(ctx context.Context) *Status {
	status := &Status{NodeId: h.nodeId}

	// 检查 NATS
	if h.nc.IsConnected() {
		status.NATS = "connected"
	} else {
		status.NATS = "disconnected"
	}

	// 检查 Redis
	status.Redis = checkPing(ctx, func(c context.Context) error {
		return h.redisClient.Ping(c).Err()
	})

	// 检查 PostgreSQL
	status.Database = checkPing(ctx, h.db.Ping)

	return status
}

// IsHealthy 检查是否健康
func (h *Checker) IsHealthy(ctx context.Context) bool {
	return h.Check(ctx).Healthy()
}

// ServeHTTP HTTP 健康检查端点
func (h *Checker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	status := h.Check(r.Context())

	w.Header().Set("Content-Type", "application/json")
	if !status.Healthy() {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}
	json.NewEncoder(w).Encode(status)
}

// checkPing 在统一超时内探测单个依赖
func checkPing(ctx context.Context, ping func(context.Context) error) string {
	pingCtx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	if err := ping(pingCtx); err != nil {
		return "disconnected"
	}
	return "connected"
}
