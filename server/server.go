package server

import (
	"context"
	"strings"
	"time"

	"LiveDesk/config"
	"LiveDesk/directory"
	"LiveDesk/feed"
	"LiveDesk/handlers"
	"LiveDesk/kafka"
	"LiveDesk/limiter"
	custommiddleware "LiveDesk/middleware"
	"LiveDesk/models"
	"LiveDesk/notify"
	deskredis "LiveDesk/redis"
	"LiveDesk/services"
	"LiveDesk/store"
	"LiveDesk/stream"

	"github.com/IBM/sarama"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

type Server struct {
	Echo           *echo.Echo
	DB             *gorm.DB
	Config         *config.Config
	Redis          *deskredis.RedisClient
	Bus            *feed.Bus
	Feed           *feed.RedisFeed
	Directory      *directory.Directory
	Streams        *stream.Manager
	Dispatcher     *notify.Dispatcher
	Hub            *handlers.ConsoleHub
	Consumer       *kafka.Consumer
	AuthHandler    *handlers.AuthHandler
	DeskHandler    *handlers.DeskHandler
	ConsoleHandler *handlers.ConsoleWebSocketHandler
}

func NewServer() *Server {
	// 加载配置
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	db, err := gorm.Open(postgres.Open(cfg.Database.DSN), &gorm.Config{})
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	if err := models.AutoMigrateAll(db); err != nil {
		log.Fatal("Failed to auto-migrate database:", err)
	}

	redisClient, err := deskredis.NewRedisClient(&cfg.Redis)
	if err != nil {
		log.Fatal("Failed to connect to redis:", err)
	}

	// 变更事件：本地总线 + Redis 跨实例桥接
	bus := feed.NewBus()
	redisFeed := feed.NewRedisFeed(redisClient.Client, bus, cfg.Redis.FeedChannel)

	sessionStore := store.NewSessionStore(db)
	messageStore := store.NewMessageStore(db)

	dir := directory.New(sessionStore, redisFeed)
	streams := stream.NewManager(messageStore, sessionStore, redisFeed)

	hub := handlers.NewConsoleHub(redisClient, streams)
	dispatcher := notify.NewDispatcher(hub)
	dispatcher.SetPreviewLength(cfg.Notify.PreviewLength)
	dispatcher.SetToastTimeout(time.Duration(cfg.Notify.ToastTimeout) * time.Second)

	// 初始化 Echo
	e := echo.New()
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     []string{"http://localhost:5173"},
		AllowMethods:     []string{echo.GET, echo.POST, echo.PUT, echo.DELETE, echo.PATCH},
		AllowHeaders:     []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
		AllowCredentials: true,
		ExposeHeaders:    []string{echo.HeaderContentLength},
		MaxAge:           86400,
	}))

	authService := services.NewAuthService(db, &cfg.Auth)
	authHandler := handlers.NewAuthHandler(authService)

	// Kafka：客户入口事件消费 + 生命周期审计
	var auditProducer *kafka.Producer
	var consumer *kafka.Consumer
	if len(cfg.Kafka.Brokers) > 0 {
		var saramaCfg *sarama.Config
		var err error
		if strings.HasPrefix(cfg.Kafka.Mechanism, "SCRAM") {
			saramaCfg, err = kafka.NewSaramaConfigWithSCRAM(&cfg.Kafka, cfg.Kafka.Mechanism)
		} else {
			saramaCfg, err = kafka.NewSaramaConfig(&cfg.Kafka)
		}
		if err != nil {
			log.Fatal("Failed to build kafka config:", err)
		}
		auditProducer, err = kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.AuditTopic, saramaCfg)
		if err != nil {
			log.Fatal("Failed to create kafka producer:", err)
		}
		ingest := kafka.NewIngestHandler(sessionStore, messageStore, redisFeed,
			cfg.Kafka.SessionTopic, cfg.Kafka.MessageTopic)
		consumer, err = kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.GroupID,
			[]string{cfg.Kafka.SessionTopic, cfg.Kafka.MessageTopic}, saramaCfg, ingest)
		if err != nil {
			log.Fatal("Failed to create kafka consumer:", err)
		}
	}

	deskHandler := handlers.NewDeskHandler(dir, streams, auditProducer)
	consoleHandler := handlers.NewConsoleWebSocketHandler(hub)

	s := &Server{
		Echo:           e,
		DB:             db,
		Config:         &cfg,
		Redis:          redisClient,
		Bus:            bus,
		Feed:           redisFeed,
		Directory:      dir,
		Streams:        streams,
		Dispatcher:     dispatcher,
		Hub:            hub,
		Consumer:       consumer,
		AuthHandler:    authHandler,
		DeskHandler:    deskHandler,
		ConsoleHandler: consoleHandler,
	}

	// --- 设置路由 ---
	authMiddleware := custommiddleware.AuthMiddleware(authService)
	adminMiddleware := custommiddleware.AdminAuthMiddleware()
	sendLimiter := custommiddleware.NewRateLimitMiddleware(
		limiter.NewManager(redisClient.Client, &limiter.FixedWindowStrategy{}),
		custommiddleware.RateLimitConfig{
			Limit:  30,
			Window: 10 * time.Second,
			KeyFunc: func(c echo.Context) string {
				// 按坐席限流，未认证时退回IP
				if agent, ok := c.Get("agent").(*models.Agent); ok {
					return "agent:" + agent.Username
				}
				return ""
			},
		})
	s.SetupRoutes(authMiddleware, adminMiddleware, sendLimiter)
	return s
}

// RunBackground 启动所有后台循环：变更订阅、目录、消息流、提醒、控制台、Kafka消费
func (s *Server) RunBackground(ctx context.Context) {
	s.Feed.Start(ctx)
	go s.Directory.Run(ctx, s.Bus)
	go s.Streams.Run(ctx, s.Bus)
	go s.Dispatcher.Run(ctx, s.Bus)
	go s.Hub.Run(ctx, s.Bus)
	if s.Consumer != nil {
		go func() {
			if err := s.Consumer.Start(ctx); err != nil {
				log.Error("Kafka consumer stopped:", err)
			}
		}()
	}
}

func (s *Server) Start(addr string) {
	log.Fatal(s.Echo.Start(addr))
}
