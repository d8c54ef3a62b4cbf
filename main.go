package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	flag "github.com/spf13/pflag"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"golang.org/x/time/rate"

	"emi-service/internal/auth"
	"emi-service/internal/config"
	"emi-service/internal/db"
	"emi-service/internal/handlers"
	"emi-service/internal/logger"
	"emi-service/internal/middleware"
	"emi-service/internal/observability"
	"emi-service/internal/rabbitmq"
	"emi-service/internal/repositories"
	"emi-service/internal/services"
	"emi-service/internal/sweeper"
	"emi-service/internal/telemetry"
	"emi-service/internal/wallet"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	envFile := flag.String("env-file", ".env", "dotenv file loaded before reading the environment")
	flag.Parse()

	cfg, err := config.Load(*configPath, *envFile)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	logger.Init(cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.InitTracing(ctx, cfg.Service, cfg.Tracing.OTLPEndpoint)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to init tracing")
	}

	database, err := db.Connect(ctx, cfg.Database.DSN, cfg.Database.MaxOpenConns)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to db")
	}
	defer database.Close()

	var nonces auth.NonceStore = auth.NewMemoryNonceStore()
	if cfg.Auth.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Auth.RedisAddr})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Fatal().Err(err).Str("addr", cfg.Auth.RedisAddr).Msg("failed to connect to redis")
		}
		nonces = auth.NewRedisNonceStore(rdb)
	}

	publisher := rabbitmq.NewPublisher(cfg.AMQP.URL, cfg.AMQP.Exchange)
	defer publisher.Close()
	log.Info().
		Str("mode", rabbitmq.PublisherMode(publisher)).
		Str("reason", rabbitmq.PublisherNoopReason(publisher)).
		Msg("event publisher ready")
	observability.SetPublisher(publisher)
	audit := telemetry.NewAuditEmitter(publisher, cfg.AMQP.AuditRoutingKey, cfg.Service, cfg.Env)

	chatRepo := repositories.NewChatRepo(database)
	messageRepo := repositories.NewMessageRepo(database)
	postRepo := repositories.NewPostRepo(database)
	userRepo := repositories.NewUserRepo(database)

	tokens := auth.NewJWTManager(cfg.Auth.JWTSecret, time.Duration(cfg.Auth.AccessTokenTTLMinutes)*time.Minute)
	authService := services.NewAuthService(userRepo, wallet.DefaultRegistry(), tokens, nonces,
		time.Duration(cfg.Auth.MessageTTLMinutes)*time.Minute, audit)
	chatService := services.NewChatService(chatRepo, userRepo, audit)
	messageService := services.NewMessageService(chatRepo, messageRepo)
	postService := services.NewPostService(chatRepo, postRepo, audit)
	userService := services.NewUserService(userRepo)

	authHandler := handlers.NewAuthHandler(authService)
	userHandler := handlers.NewUserHandler(userService)
	chatHandler := handlers.NewChatHandler(chatService, messageService)
	postHandler := handlers.NewPostHandler(postService)

	sweep, err := sweeper.New(messageRepo, cfg.Sweeper.Cron)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to configure expiry sweeper")
	}
	sweep.Start(ctx)

	limiter := middleware.NewRateLimiter(rate.Limit(cfg.RateLimit.RPS), cfg.RateLimit.Burst, 10*time.Minute)
	go limiter.Run(30 * time.Second)
	defer limiter.Stop()

	if cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	if err := router.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		log.Fatal().Err(err).Strs("trusted_proxies", cfg.TrustedProxies).Msg("invalid trusted proxies")
	}
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(cfg.Service))
	router.Use(observability.HTTPMetricsMiddleware())
	router.Use(middleware.RequestID())

	router.GET("/healthz", handlers.Health(database))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	handlers.RegisterDebugRoutes(router, audit, cfg.DebugRoutes)

	api := router.Group("/api", limiter.Middleware())
	api.POST("/auth/generate-message", authHandler.GenerateMessage)
	api.POST("/auth/login", authHandler.Login)

	protected := api.Group("", middleware.AuthMiddleware(tokens))
	protected.POST("/auth/logout", authHandler.Logout)
	protected.GET("/auth/me", authHandler.Me)

	protected.GET("/users/search", userHandler.Search)
	protected.PUT("/users/profile", userHandler.UpdateProfile)
	protected.GET("/users/:user_id", userHandler.Get)

	protected.GET("/chats", chatHandler.ListChats)
	protected.POST("/chats", chatHandler.CreateChat)
	protected.GET("/chats/search", chatHandler.SearchChats)
	protected.GET("/chats/:chat_id", chatHandler.GetChat)
	protected.GET("/chats/:chat_id/messages", chatHandler.GetChatMessages)
	protected.POST("/chats/:chat_id/messages", chatHandler.PostChatMessage)
	protected.POST("/chats/:chat_id/subscribe", chatHandler.Subscribe)
	protected.PATCH("/chats/:chat_id/settings", chatHandler.UpdateSettings)
	protected.PATCH("/chats/:chat_id/pin", chatHandler.TogglePin)

	protected.POST("/posts/:id", postHandler.CreatePost)
	protected.GET("/posts/:id", postHandler.ListPosts)
	protected.POST("/posts/:id/reactions", postHandler.ToggleReaction)
	protected.DELETE("/posts/:id", postHandler.DeletePost)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Info().Str("addr", srv.Addr).Str("env", cfg.Env).Msg("emi-service listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("tracing shutdown")
	}
}
