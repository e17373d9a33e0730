package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	httpHandler "anonchat/internal/handler/http"
	wsHandler "anonchat/internal/handler/websocket"
	"anonchat/internal/hub"
	"anonchat/internal/infra/setup"
	redisstate "anonchat/internal/infra/state/redis"
	"anonchat/internal/middleware"
	"anonchat/internal/service"
)

// Config holds everything loaded from the environment.
type Config struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	KeyPrefix     string
	ServerPort    string
	LogLevel      string
	AppEnv        string
	CorsOrigin    string
	InviteBaseURL string

	RoomTTL           time.Duration
	OwnerTTL          time.Duration
	HistoryTTL        time.Duration
	HistoryLimit      int64
	DeleteMarkerTTL   time.Duration
	MessageRateLimit  int
	MessageRateWindow time.Duration
	HTTPRateLimitMax  int
	HTTPRateWindow    time.Duration
}

// LoadConfig reads configuration from the environment, preferring a .env
// file when present. Retention and rate-limit knobs have production
// defaults; only REDIS_ADDR is required.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		KeyPrefix:     os.Getenv("REDIS_KEY_PREFIX"),
		ServerPort:    os.Getenv("SERVER_PORT"),
		LogLevel:      os.Getenv("LOG_LEVEL"),
		AppEnv:        os.Getenv("APP_ENV"),
		CorsOrigin:    os.Getenv("CORS_ALLOWED_ORIGIN"),
		InviteBaseURL: os.Getenv("INVITE_BASE_URL"),

		RoomTTL:           time.Hour,
		OwnerTTL:          time.Hour,
		HistoryTTL:        time.Hour,
		HistoryLimit:      1000,
		DeleteMarkerTTL:   3 * time.Second,
		MessageRateLimit:  5,
		MessageRateWindow: 10 * time.Second,
		HTTPRateLimitMax:  100,
		HTTPRateWindow:    1 * time.Second,
	}

	cfg.RedisDB, _ = strconv.Atoi(os.Getenv("REDIS_DB"))

	if cfg.ServerPort == "" {
		cfg.ServerPort = "8080"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.AppEnv == "" {
		cfg.AppEnv = "development"
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "ac:"
	}
	if cfg.CorsOrigin == "" {
		cfg.CorsOrigin = "http://localhost:3000"
	}
	if cfg.InviteBaseURL == "" {
		cfg.InviteBaseURL = cfg.CorsOrigin
	}
	if cfg.RedisAddr == "" {
		return nil, fmt.Errorf("environment variable REDIS_ADDR must be set")
	}

	if n, err := strconv.Atoi(os.Getenv("MESSAGE_RATE_LIMIT")); err == nil && n > 0 {
		cfg.MessageRateLimit = n
	}
	if n, err := strconv.Atoi(os.Getenv("HTTP_RATE_LIMIT")); err == nil && n > 0 {
		cfg.HTTPRateLimitMax = n
	}

	if _, err := logrus.ParseLevel(cfg.LogLevel); err != nil {
		logrus.Warnf("Invalid LOG_LEVEL '%s', using default 'info'", cfg.LogLevel)
		cfg.LogLevel = "info"
	}

	return cfg, nil
}

// App wires the whole service together.
type App struct {
	Config      *Config
	Log         *logrus.Logger
	RedisClient *redis.Client
	Hub         *hub.Hub
	HttpServer  *http.Server
}

// NewApp builds and wires every component: config, logger, Redis client,
// repositories, services, hub, handlers and the HTTP server.
func NewApp() (*App, error) {
	cfg, err := LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return nil, err
	}

	log := logrus.New()
	if cfg.AppEnv == "production" {
		log.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	logLevel, _ := logrus.ParseLevel(cfg.LogLevel)
	log.SetLevel(logLevel)
	log.SetOutput(os.Stdout)
	logrus.SetFormatter(log.Formatter)
	logrus.SetLevel(logLevel)
	log.Info("Configuration loaded")

	redisClient, err := setup.InitRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		return nil, fmt.Errorf("failed to init Redis: %w", err)
	}

	stateRepo := redisstate.NewRedisStateRepository(redisClient, cfg.KeyPrefix)

	filterService := service.NewFilterService()
	roomService := service.NewRoomService(stateRepo, cfg.RoomTTL, cfg.OwnerTTL)
	chatService := service.NewChatService(stateRepo, roomService, filterService, service.ChatConfig{
		HistoryLimit:      cfg.HistoryLimit,
		HistoryTTL:        cfg.HistoryTTL,
		DeleteMarkerTTL:   cfg.DeleteMarkerTTL,
		MessageRateLimit:  cfg.MessageRateLimit,
		MessageRateWindow: cfg.MessageRateWindow,
	})
	log.Info("Services initialized")

	hubInstance := hub.NewHub(chatService)

	roomHandler := httpHandler.NewRoomHandler(roomService, chatService, hubInstance, cfg.InviteBaseURL)
	historyHandler := httpHandler.NewHistoryHandler(chatService, hubInstance)
	websocketHandler := wsHandler.NewWebSocketHandler(hubInstance, cfg.CorsOrigin)
	log.Info("Handlers initialized")

	if cfg.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware(cfg.CorsOrigin))
	router.Use(middleware.RateLimit(redisClient, cfg.HTTPRateLimitMax, cfg.HTTPRateWindow))

	api := router.Group("/api")
	{
		roomRoutes := api.Group("/room")
		{
			roomRoutes.POST("/create", roomHandler.CreateRoom)
			roomRoutes.GET("/:roomId/info", roomHandler.RoomInfo)
			roomRoutes.POST("/:roomId/claim", roomHandler.ClaimRoom)
			roomRoutes.DELETE("/:roomId", roomHandler.DeleteRoom)
		}
		api.GET("/history/:roomId", historyHandler.GetHistory)
		api.DELETE("/history/:roomId", historyHandler.DeleteHistory)
	}
	router.GET("/ws/:roomId", websocketHandler.HandleConnection)
	router.GET("/ping", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"message": "pong"}) })
	log.Info("Router setup complete")

	httpServer := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return &App{
		Config:      cfg,
		Log:         log,
		RedisClient: redisClient,
		Hub:         hubInstance,
		HttpServer:  httpServer,
	}, nil
}

// Start launches the hub loop and the HTTP server.
func (a *App) Start() {
	go a.Hub.Run()
	a.Log.Info("Hub routine started")

	go func() {
		a.Log.Infof("HTTP server listening on %s", a.HttpServer.Addr)
		if err := a.HttpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Log.Fatalf("Failed to start HTTP server: %v", err)
		}
	}()
}

// Shutdown stops the HTTP server, the hub and the Redis client in order.
func (a *App) Shutdown() {
	a.Log.Info("Shutting down application...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.HttpServer.Shutdown(ctx); err != nil {
		a.Log.WithError(err).Error("HTTP server shutdown failed")
	}

	a.Hub.Close()

	if err := a.RedisClient.Close(); err != nil {
		a.Log.WithError(err).Error("Redis client close failed")
	}
	a.Log.Info("Shutdown complete")
}

// corsMiddleware allows the configured frontend origin.
func corsMiddleware(allowedOrigin string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", allowedOrigin)
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Owner-Token, X-Requested-With")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
