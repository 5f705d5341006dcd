package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "realtime_chat_service/cmd/chat_service/docs" // 引入 Swagger 文档
	"realtime_chat_service/internal/api/handlers"
	apirouter "realtime_chat_service/internal/api/router"
	"realtime_chat_service/internal/chat/app"
	"realtime_chat_service/internal/chat/domain"
	"realtime_chat_service/internal/chat/presence"
	"realtime_chat_service/internal/chat/registry"
	"realtime_chat_service/internal/chat/repository"
	"realtime_chat_service/internal/chat/router"
	"realtime_chat_service/pkg/config"
	"realtime_chat_service/pkg/database"
	"realtime_chat_service/pkg/logger"
	"realtime_chat_service/pkg/pprof"
	"realtime_chat_service/pkg/token"

	"github.com/go-redis/redis/v8"
	"github.com/gofiber/fiber/v2"
	fiber_log "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/jackc/pgx/v4/pgxpool"
	"go.uber.org/zap"
)

func main() {
	logger.Log = logger.Initialize(config.EnvConfig.ChatService, config.EnvConfig.ChatServiceLogPath)
	defer logger.Log.Sync()
	cfg := config.LoadConfig[config.Chat](config.EnvConfig.ChatService, config.EnvConfig.ChatServiceYAMLPath)
	token.SetSecret(cfg.Auth.JWTSecret)
	pprof.Start()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 1. 建立 store (thread / message / user)
	var pool *pgxpool.Pool
	if cfg.Store.Driver == "postgres" || cfg.Store.Users == "postgres" {
		pool = openPostgres(cfg.PostgreSQL)
		defer pool.Close()
	}
	threadRepo, closeThreads := openThreadRepository(ctx, cfg, pool)
	defer closeThreads()
	userRepo := openUserRepository(cfg)
	seedUsers(ctx, userRepo, cfg.SeedUsers)

	// 2. 建立 Redis 連線 (relay, presence mirror)
	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient = openRedis(cfg.Redis)
		defer redisClient.Close()
	}

	// 3. registry + presence
	var mirror presence.Mirror
	if redisClient != nil {
		mirror = repository.NewPresenceRepository(
			database.NewRedisRepository[domain.Presence](redisClient), cfg.Redis.PresenceTTL)
	}
	var broadcaster *app.PresenceBroadcaster
	tracker := presence.NewTracker(func(ctx context.Context, change domain.StatusChange) {
		broadcaster.Notify(ctx, change)
	}, mirror)
	reg := registry.New(registry.WithListener(tracker))

	local := app.NewLocalDeliverer(reg)
	var deliverer app.Deliverer = local
	if redisClient != nil && cfg.Redis.Relay {
		relay := app.NewRedisRelay(repository.NewRedisPubSub(redisClient), local)
		if err := relay.Start(ctx); err != nil {
			logger.Log.Fatal("start redis relay failed", zap.Error(err))
		}
		deliverer = relay
	}
	broadcaster = app.NewPresenceBroadcaster(threadRepo, deliverer)
	go tracker.Run(ctx)

	// 4. message event stream
	events := openEventPublisher(cfg.Events)
	defer events.Close()

	// 5. 初始化 UseCases
	messageUC := app.NewMessageUseCase(threadRepo, userRepo, deliverer, events, cfg.Chat.MaxMessageLength)
	threadUC := app.NewThreadUseCase(threadRepo, userRepo, cfg.Chat.PageSize)

	// 6. 啟動 Fiber
	r := fiber.New(fiber.Config{DisableStartupMessage: true})
	file, err := os.OpenFile(fmt.Sprintf("%s/access.log", config.EnvConfig.ChatServiceLogPath), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0666)
	if err != nil {
		log.Fatalf("Failed to open log file: %v", err)
	}
	defer file.Close()
	r.Use(fiber_log.New(fiber_log.Config{
		Output: file, // 将日志输出到文件
	}))

	apirouter.RegisterRoutes(r, handlers.NewChatHandler(threadUC, messageUC, tracker), reg)
	router.RegisterRoutes(ctx, r, app.NewChatWebsocketHandler(reg, messageUC, app.WebsocketOptions{
		IdleTimeout:   cfg.Websocket.IdleTimeout,
		PingInterval:  cfg.Websocket.PingInterval,
		WriteWait:     cfg.Websocket.WriteWait,
		MaxFrameSize:  cfg.Websocket.MaxFrameSize,
		SendQueueSize: cfg.Websocket.SendQueueSize,
		RatePerSecond: cfg.Websocket.RatePerSecond,
		RateBurst:     cfg.Websocket.RateBurst,
	}))

	go func() {
		<-ctx.Done()
		logger.Log.Info("shutting down chat service")
		reg.CloseAll()
		messageUC.Wait()
		if err := r.ShutdownWithTimeout(10 * time.Second); err != nil {
			logger.Log.Error("fiber shutdown failed", zap.Error(err))
		}
	}()

	port := ":" + cfg.Port
	logger.Log.Info("Chat Service listening", zap.String("port", port), zap.String("store", cfg.Store.Driver))
	if err := r.Listen(port); err != nil {
		logger.Log.Fatal("Failed to start Fiber", zap.Error(err))
	}
}

func openPostgres(c config.DatabaseConfig) *pgxpool.Pool {
	dsn := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable", c.User, c.Password, c.Host, c.Port, c.Database)
	pool, err := database.NewDatabaseConnection(database.Connection{
		ConnectStr:    dsn,
		MaxConns:      c.MaxConns,
		RetryCount:    c.RetryCount,
		RetryInterval: time.Duration(c.RetryInterval),
	})
	if err != nil || pool == nil {
		logger.Log.Fatal("Unable to connect to postgreSQL database after retries",
			zap.String("host", c.Host), zap.Error(err))
	}
	return pool
}

func openThreadRepository(ctx context.Context, cfg config.Chat, pool *pgxpool.Pool) (repository.ThreadRepository, func()) {
	switch cfg.Store.Driver {
	case "postgres":
		if err := repository.MigrateThreadSchema(ctx, pool); err != nil {
			logger.Log.Fatal("thread schema migration failed", zap.Error(err))
		}
		return repository.NewPostgresThreadRepository(pool), func() {}
	case "mongo":
		c := cfg.MongoSQL
		uri := fmt.Sprintf("mongodb://%s:%s@%s:%d", c.User, c.Password, c.Host, c.Port)
		mongo, err := database.NewMongoDB(ctx, database.Connection{
			ConnectStr:    uri,
			MaxConns:      c.MaxConns,
			RetryCount:    c.RetryCount,
			RetryInterval: time.Duration(c.RetryInterval),
		}, c.Database)
		if err != nil {
			logger.Log.Fatal("Unable to connect to mongoDB database after retries",
				zap.String("host", c.Host), zap.Error(err))
		}
		if err := repository.EnsureThreadIndexes(ctx, mongo.Database); err != nil {
			logger.Log.Fatal("mongo index creation failed", zap.Error(err))
		}
		return repository.NewMongoThreadRepository(mongo.Database), func() {
			_ = mongo.Close(context.Background())
		}
	default:
		logger.Log.Warn("using in-memory thread store, history is lost on restart")
		return repository.NewMemoryThreadRepository(), func() {}
	}
}

func openUserRepository(cfg config.Chat) repository.UserRepository {
	if cfg.Store.Users != "postgres" {
		return repository.NewMemoryUserRepository()
	}
	c := cfg.PostgreSQL
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=disable",
		c.Host, c.User, c.Password, c.Database, c.Port)
	db, err := database.NewPGConnection(database.Connection{
		ConnectStr:    dsn,
		MaxConns:      c.MaxConns,
		RetryCount:    c.RetryCount,
		RetryInterval: time.Duration(c.RetryInterval),
	})
	if err != nil {
		logger.Log.Fatal("Unable to open user directory", zap.Error(err))
	}
	users := repository.NewUserRepository(db)
	if err := users.AutoMigrate(); err != nil {
		logger.Log.Fatal("user table migration failed", zap.Error(err))
	}
	return users
}

func seedUsers(ctx context.Context, users repository.UserRepository, seed []config.SeedUser) {
	for _, s := range seed {
		u := &domain.User{ID: s.ID, Username: s.Username, DisplayName: s.DisplayName, IsBot: s.IsBot}
		if err := users.Save(ctx, u); err != nil {
			logger.Log.Warn("seed user failed", zap.String("userID", s.ID), zap.Error(err))
		}
	}
}

func openRedis(c config.RedisConfig) *redis.Client {
	conn := database.RedisConnection{
		Address:       c.Address,
		Password:      c.Password,
		DB:            c.RedisDB,
		RetryCount:    c.RetryCount,
		RetryInterval: time.Duration(c.RetryInterval),
	}
	if c.UseSentinel {
		conn.MasterName, conn.SentinelAddrs = config.GetRedisSetting()
	}
	client, err := database.NewRedisClient(conn)
	if err != nil {
		logger.Log.Fatal("connect redis failed", zap.Error(err))
	}
	return client
}

func openEventPublisher(c config.EventsConfig) repository.EventPublisher {
	switch c.Driver {
	case "kafka":
		writer, err := database.NewKafkaWriterWithRetry(database.KafkaConnection{
			Brokers:       c.Brokers,
			Topic:         c.Topic,
			RetryCount:    c.RetryCount,
			RetryInterval: time.Duration(c.RetryInterval),
		})
		if err != nil {
			logger.Log.Fatal("kafka writer failed", zap.Error(err))
		}
		return repository.NewKafkaEventPublisher(writer)
	case "rabbitmq":
		conn, err := database.ConnectRabbitMQWithRetry(database.Connection{
			ConnectStr:    c.AMQPURL,
			RetryCount:    c.RetryCount,
			RetryInterval: time.Duration(c.RetryInterval),
		})
		if err != nil {
			logger.Log.Fatal("rabbitMQ connect failed", zap.Error(err))
		}
		ch, err := database.GetRabbitMQChannelWithRetry(conn, c.RetryCount, time.Duration(c.RetryInterval))
		if err != nil {
			logger.Log.Fatal("rabbitMQ channel failed", zap.Error(err))
		}
		rabbit, err := database.NewRabbitRepository(ch)
		if err != nil {
			logger.Log.Fatal("rabbitMQ confirm mode failed", zap.Error(err))
		}
		pub, err := repository.NewRabbitEventPublisher(rabbit, c.Exchange, c.RoutingKey)
		if err != nil {
			logger.Log.Fatal("rabbitMQ publisher failed", zap.Error(err))
		}
		return pub
	default:
		return repository.NewNopEventPublisher()
	}
}
