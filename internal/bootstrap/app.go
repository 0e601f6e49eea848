// Package bootstrap loads configuration, assembles every component, and owns
// the ordered startup and shutdown of the process.
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
	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	httpHandler "vls-chat/internal/handler/http"
	wsHandler "vls-chat/internal/handler/websocket"
	"vls-chat/internal/hub"
	"vls-chat/internal/infra/setup"
	redisstate "vls-chat/internal/infra/state/redis"
	"vls-chat/internal/logsink"
	"vls-chat/internal/middleware"
	"vls-chat/internal/service"
	"vls-chat/internal/tasks"
	"vls-chat/internal/worker"
)

// Config holds everything loaded from the environment.
type Config struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	JWTSecret     string
	ServerPort    string
	LogLevel      string
	AppEnv        string
	KeyPrefix     string

	HistoryMax       int
	AdminsFile       string
	LogDir           string
	LogFlushInterval time.Duration
	HoldTTL          time.Duration
	TokenExpiry      time.Duration
	RateLimitMax     int
	RateLimitWindow  time.Duration
}

// LoadConfig reads configuration from the environment, with a .env file as an
// optional source for development.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		JWTSecret:     os.Getenv("JWT_SECRET"),
		ServerPort:    os.Getenv("SERVER_PORT"),
		LogLevel:      os.Getenv("LOG_LEVEL"),
		AppEnv:        os.Getenv("APP_ENV"),
		KeyPrefix:     os.Getenv("REDIS_KEY_PREFIX"),
		AdminsFile:    os.Getenv("ADMINS_FILE"),
		LogDir:        os.Getenv("LOG_DIR"),

		LogFlushInterval: 10 * time.Second,
		HoldTTL:          60 * time.Second,
		TokenExpiry:      6 * time.Hour,
		RateLimitMax:     30,
		RateLimitWindow:  time.Minute,
	}

	cfg.RedisDB, _ = strconv.Atoi(os.Getenv("REDIS_DB"))
	cfg.HistoryMax, _ = strconv.Atoi(os.Getenv("HISTORY_MAX"))

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
		cfg.KeyPrefix = "chat:"
	}
	if cfg.HistoryMax <= 0 {
		cfg.HistoryMax = 500
	}
	if cfg.AdminsFile == "" {
		cfg.AdminsFile = "admins.json"
	}
	if cfg.LogDir == "" {
		cfg.LogDir = "logs"
	}
	if cfg.RedisAddr == "" {
		return nil, fmt.Errorf("environment variable REDIS_ADDR must be set")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("environment variable JWT_SECRET must be set")
	}

	if _, err := logrus.ParseLevel(cfg.LogLevel); err != nil {
		logrus.Warnf("Invalid LOG_LEVEL '%s', using default 'info'", cfg.LogLevel)
		cfg.LogLevel = "info"
	}

	return cfg, nil
}

// App holds the assembled components for startup and shutdown.
type App struct {
	Config      *Config
	Log         *logrus.Logger
	RedisClient *redis.Client
	AsynqClient *asynq.Client
	AsynqServer *worker.WorkerServer
	Hub         *hub.Hub
	Sink        *logsink.Sink
	HttpServer  *http.Server

	// Fatal surfaces unrecoverable faults so main can run the ordered
	// shutdown and exit nonzero.
	Fatal chan error

	redisClientOpt asynq.RedisClientOpt
	scheduler      *asynq.Scheduler
}

// NewApp creates and wires every component.
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
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, ForceColors: true})
	}
	logLevel, _ := logrus.ParseLevel(cfg.LogLevel)
	log.SetLevel(logLevel)
	log.SetOutput(os.Stdout)
	// The package-level logger is used throughout; keep it consistent with
	// the configured one.
	logrus.SetFormatter(log.Formatter)
	logrus.SetLevel(logLevel)
	log.Info("Configuration loaded successfully")

	log.Info("Initializing infrastructure...")
	redisClient, err := setup.InitRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		return nil, fmt.Errorf("failed to init Redis: %w", err)
	}
	log.Info("Redis client initialized")

	redisClientOpt := asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}
	asynqClient := asynq.NewClient(redisClientOpt)
	log.Info("Asynq client initialized")

	sink, err := logsink.New(cfg.LogDir)
	if err != nil {
		return nil, fmt.Errorf("failed to init log sink: %w", err)
	}
	log.Info("Log sink initialized")

	log.Info("Initializing repositories...")
	store := redisstate.NewStore(redisClient, cfg.KeyPrefix, cfg.HistoryMax)
	log.Info("Repositories initialized")

	log.Info("Initializing services...")
	authService, err := service.NewAuthService(cfg.JWTSecret, cfg.TokenExpiry, cfg.AdminsFile)
	if err != nil {
		return nil, fmt.Errorf("failed to create AuthService: %w", err)
	}
	joinService := service.NewJoinService(store, authService, cfg.HoldTTL)
	chatService := service.NewChatService(store, sink)
	log.Info("Services initialized")

	log.Info("Initializing hub...")
	hubInstance := hub.NewHub(chatService)
	log.Info("Hub initialized")

	log.Info("Initializing handlers...")
	joinHandler := httpHandler.NewJoinHandler(joinService)
	rosterHandler := httpHandler.NewRosterHandler(store)
	auditHandler := httpHandler.NewAuditHandler(store)
	chatWSHandler := wsHandler.NewHandler(hubInstance, authService, chatService, store)
	log.Info("Handlers initialized")

	log.Info("Initializing worker server...")
	workerServer := worker.NewWorkerServer(redisClientOpt, sink, log)
	log.Info("Worker server initialized")

	log.Info("Setting up Gin router...")
	if cfg.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggerMiddleware(log))
	router.Use(func(c *gin.Context) {
		allowedOrigin := os.Getenv("CORS_ALLOWED_ORIGIN")
		if allowedOrigin == "" {
			allowedOrigin = "http://localhost:3000"
		}
		c.Writer.Header().Set("Access-Control-Allow-Origin", allowedOrigin)
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	})

	api := router.Group("/chat/api")
	{
		api.POST("/join",
			middleware.RateLimit(store, cfg.RateLimitMax, cfg.RateLimitWindow),
			joinHandler.Join)

		// The whole reporting surface is admin-only; occupancy and member
		// activity are not public data.
		reporting := api.Group("").Use(middleware.Auth(authService), middleware.RequireAdmin())
		{
			reporting.GET("/rooms", rosterHandler.Rooms)
			reporting.GET("/rooms/:room/users", rosterHandler.Users)
			reporting.GET("/admin/audit", auditHandler.Audit)
			reporting.GET("/admin/rooms", rosterHandler.Rooms)
			reporting.GET("/admin/rooms/:room/users", rosterHandler.Users)
		}
	}
	router.GET("/chat/ws", chatWSHandler.HandleConnection)
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true, "ts": time.Now().UnixMilli()})
	})
	log.Info("Router setup complete")

	httpServer := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: router,
	}

	app := &App{
		Config:         cfg,
		Log:            log,
		RedisClient:    redisClient,
		AsynqClient:    asynqClient,
		AsynqServer:    workerServer,
		Hub:            hubInstance,
		Sink:           sink,
		HttpServer:     httpServer,
		Fatal:          make(chan error, 1),
		redisClientOpt: redisClientOpt,
	}
	log.Info("Application assembled successfully")

	return app, nil
}

// Start launches the hub, worker, scheduler, and HTTP server goroutines.
func (a *App) Start() {
	a.Log.Info("Starting application background routines...")
	go a.Hub.Run()
	a.Log.Info("Hub routine started")

	go a.AsynqServer.Start()
	a.Log.Info("Asynq worker server routine started")

	a.registerPeriodicTasks()

	a.serveHTTP()
}

// serveHTTP runs the listener in its own goroutine. A listen failure is an
// unrecoverable fault: it is reported on Fatal rather than exiting here, so
// the caller can still run the ordered shutdown.
func (a *App) serveHTTP() {
	go func() {
		a.Log.Infof("HTTP server starting to listen on %s", a.HttpServer.Addr)
		if err := a.HttpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Log.Errorf("HTTP server failed: %v", err)
			select {
			case a.Fatal <- err:
			default:
			}
			return
		}
		a.Log.Info("HTTP server stopped listening.")
	}()
}

func (a *App) registerPeriodicTasks() {
	a.scheduler = asynq.NewScheduler(a.redisClientOpt, &asynq.SchedulerOpts{})

	schedule := fmt.Sprintf("@every %s", a.Config.LogFlushInterval)
	entryID, err := a.scheduler.Register(schedule, tasks.NewLogFlushTask(), asynq.Queue("default"))
	if err != nil {
		a.Log.Errorf("Could not register periodic log flush task: %v", err)
	} else {
		a.Log.Infof("Periodic log flush task registered with schedule '%s' (EntryID: %s)", schedule, entryID)
	}

	go func() {
		a.Log.Info("Asynq scheduler starting...")
		if err := a.scheduler.Run(); err != nil {
			if !errors.Is(err, asynq.ErrServerClosed) {
				a.Log.Errorf("Asynq scheduler Run() failed: %v", err)
			} else {
				a.Log.Info("Asynq scheduler stopped.")
			}
		}
	}()
}

// Shutdown stops components in dependency order: stop accepting HTTP work,
// stop scheduling, drain sessions, stop the worker, flush the sink, then
// close the clients.
func (a *App) Shutdown() {
	a.Log.Info("Shutting down application...")

	a.Log.Info("Shutting down HTTP server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.HttpServer.Shutdown(ctx); err != nil {
		a.Log.Errorf("Error shutting down HTTP server: %v", err)
	} else {
		a.Log.Info("HTTP server shut down gracefully.")
	}

	if a.scheduler != nil {
		a.scheduler.Shutdown()
		a.Log.Info("Asynq scheduler shut down.")
	}

	if a.Hub != nil {
		a.Hub.Shutdown()
	}

	if a.AsynqServer != nil {
		a.AsynqServer.Shutdown()
	}

	if a.Sink != nil {
		a.Sink.Close()
		a.Log.Info("Log sink flushed and closed.")
	}

	if a.AsynqClient != nil {
		if err := a.AsynqClient.Close(); err != nil {
			a.Log.Errorf("Error closing Asynq client: %v", err)
		} else {
			a.Log.Info("Asynq client closed.")
		}
	}

	if a.RedisClient != nil {
		if err := a.RedisClient.Close(); err != nil {
			a.Log.Errorf("Error closing Redis connection: %v", err)
		} else {
			a.Log.Info("Redis connection closed.")
		}
	}

	a.Log.Info("Application shutdown complete.")
}

// LoggerMiddleware records one structured log line per HTTP request.
func LoggerMiddleware(log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()
		c.Next()
		latency := time.Since(startTime)
		statusCode := c.Writer.Status()
		path := c.Request.URL.Path
		if c.Request.URL.RawQuery != "" {
			path = path + "?" + c.Request.URL.RawQuery
		}
		errorMessage := c.Errors.ByType(gin.ErrorTypePrivate).String()

		entry := log.WithFields(logrus.Fields{
			"status_code": statusCode,
			"latency_ms":  latency.Milliseconds(),
			"client_ip":   c.ClientIP(),
			"method":      c.Request.Method,
			"path":        path,
		})

		if errorMessage != "" {
			entry.Error(errorMessage)
		} else if statusCode >= 500 {
			entry.Error("Server error")
		} else if statusCode >= 400 {
			entry.Warn("Client error")
		} else {
			entry.Info("Request handled")
		}
	}
}
