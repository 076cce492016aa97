package main

import (
	"context"
	"fmt"
	"hash/fnv"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"sudooom.im.conversation/internal/config"
	"sudooom.im.conversation/internal/handler"
	"sudooom.im.conversation/internal/health"
	imNats "sudooom.im.conversation/internal/nats"
	"sudooom.im.conversation/internal/node"
	"sudooom.im.conversation/internal/peer"
	"sudooom.im.conversation/internal/privacy"
	"sudooom.im.conversation/internal/repository"
	"sudooom.im.conversation/internal/service"
	"sudooom.im.conversation/internal/store"
	"sudooom.im.conversation/pkg/snowflake"
)

func main() {
	// 加载配置
	cfg, err := config.Load("configs/config.yaml")
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	// 初始化日志
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.App.LogLevel),
	}))
	slog.SetDefault(logger)

	// 创建上下文
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 连接 NATS
	natsClient, err := imNats.NewClient(cfg.NATS)
	if err != nil {
		logger.Error("Failed to connect to NATS", "error", err)
		os.Exit(1)
	}
	defer natsClient.Close()
	logger.Info("Connected to NATS", "url", cfg.NATS.URL)

	// 连接 Redis
	redisClient := connectRedis(cfg.Redis)
	defer redisClient.Close()
	logger.Info("Connected to Redis", "host", cfg.Redis.Host)

	// 连接数据库
	db, err := connectDatabase(ctx, cfg.Database)
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	logger.Info("Connected to PostgreSQL", "host", cfg.Database.Host)

	nodeId := cfg.App.NodeId

	// 仓储层
	userRepo := repository.NewUserRepository(db)
	previewRepo := repository.NewPreviewRepository(db)
	convRepo := repository.NewConversationRepository(db)

	// 联邦基础设施：节点注册、令牌、对端链路
	registry := node.NewRegistry(redisClient, nodeId, imNats.BuildNodeDescribeSubject(nodeId), cfg.Federation.NodeTTL)
	if err := registry.Register(ctx); err != nil {
		logger.Error("Failed to register node", "nodeId", nodeId, "error", err)
		os.Exit(1)
	}
	go registry.Heartbeat(ctx, cfg.Federation.HeartbeatInterval)
	logger.Info("Node registered", "nodeId", nodeId, "ttl", cfg.Federation.NodeTTL)

	tokens := peer.NewTokenService(cfg.Federation.TokenSecret, cfg.Federation.TokenTTL)
	ids := snowflake.NewNode(snowflakeNodeId(nodeId))
	privacyFilter := privacy.NewFilter()
	link := peer.NewLink(natsClient.Conn(), registry, tokens, ids, nodeId)

	// 为兄弟节点提供本节点用户的描述服务
	peerServer := peer.NewServer(natsClient.Conn(), userRepo, privacyFilter, tokens, nodeId)
	if err := peerServer.Start(); err != nil {
		logger.Error("Failed to start peer describe server", "error", err)
		os.Exit(1)
	}

	// 业务服务
	previewStore := store.NewRedisPreviewStore(redisClient)
	notifier := imNats.NewUpdatePublisher(natsClient.Conn())
	cacheService := service.NewPreviewCacheService(previewStore, previewRepo, convRepo, notifier)
	aggregator := service.NewAggregatorService(
		previewRepo,
		userRepo,
		link,
		privacyFilter,
		nodeId,
		cfg.Federation.FanoutTimeout,
		cfg.Federation.FanoutConcurrency,
	)
	resolver := node.NewResolver(convRepo, nodeId)

	// 事件与查询入口
	convHandler := handler.NewConversationHandler(cacheService, aggregator, resolver)

	subscriber := imNats.NewEventSubscriber(natsClient.Conn(), convHandler, imNats.SubscriberConfig{})
	if err := subscriber.Start(); err != nil {
		logger.Error("Failed to start event subscriber", "error", err)
		os.Exit(1)
	}

	responder := imNats.NewQueryResponder(natsClient.Conn(), convHandler)
	if err := responder.Start(); err != nil {
		logger.Error("Failed to start query responder", "error", err)
		os.Exit(1)
	}

	// 启动健康检查 HTTP 服务
	healthChecker := health.NewChecker(nodeId, natsClient.Conn(), redisClient, db)
	go startHealthServer(healthChecker, logger)

	logger.Info("Conversation service started", "name", cfg.App.Name, "nodeId", nodeId)

	// 优雅退出
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down...")
	responder.Stop()
	subscriber.Stop()
	peerServer.Stop()

	unregCtx, unregCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer unregCancel()
	if err := registry.Unregister(unregCtx); err != nil {
		logger.Warn("Failed to unregister node", "nodeId", nodeId, "error", err)
	}

	cancel()
	logger.Info("Conversation service stopped")
}

// startHealthServer 启动健康检查 HTTP 服务
func startHealthServer(healthChecker *health.Checker, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/health", healthChecker)
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		if healthChecker.IsHealthy(r.Context()) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("OK"))
		} else {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("Not Ready"))
		}
	})

	server := &http.Server{
		Addr:    ":8082",
		Handler: mux,
	}

	logger.Info("Health check server started", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Health check server failed", "error", err)
	}
}

// parseLogLevel 解析日志级别，无法识别时回退 info
func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// snowflakeNodeId 由节点标识稳定派生雪花生成器编号
func snowflakeNodeId(nodeId string) int64 {
	h := fnv.New32a()
	h.Write([]byte(nodeId))
	return int64(h.Sum32() & 0x3FF)
}

// connectRedis 连接 Redis
func connectRedis(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
}

// connectDatabase 连接 PostgreSQL
func connectDatabase(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	dsn := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		cfg.User,
		cfg.Password,
		cfg.Host,
		cfg.Port,
		cfg.Name,
	)

	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}

	poolConfig.MaxConns = int32(cfg.MaxOpenConns)
	poolConfig.MinConns = int32(cfg.MaxIdleConns)
	poolConfig.MaxConnLifetime = cfg.ConnMaxLifetime
	poolConfig.MaxConnIdleTime = 10 * time.Minute

	return pgxpool.NewWithConfig(ctx, poolConfig)
}
