package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/mbeoliero/kit/log"
	"workhub/internal/config"
	"workhub/internal/gateway"
	"workhub/internal/handler"
	"workhub/internal/repository"
	"workhub/internal/router"
	"workhub/internal/service"
	"workhub/pkg/constant"
)

func main() {
	ctx := context.TODO()

	// Load configuration
	cfg, err := config.Load("config/config.yaml")
	if err != nil {
		log.CtxError(ctx, "failed to load config: %v", err)
		panic(err)
	}

	log.CtxInfo(ctx, "config loaded: mode=%s", cfg.Server.Mode)

	// Initialize Redis key prefix
	constant.InitRedisKeyPrefix(cfg.Redis.KeyPrefix)
	log.CtxInfo(ctx, "redis key prefix: %s", constant.GetRedisKeyPrefix())

	// Initialize repositories
	repos, err := repository.NewRepositories(cfg)
	if err != nil {
		log.CtxError(ctx, "failed to initialize repositories: %v", err)
		panic(err)
	}
	defer repos.Close()

	// Check database connection
	if err := repos.CheckConnection(ctx); err != nil {
		log.CtxError(ctx, "database connection check failed: %v", err)
		panic(err)
	}
	log.CtxInfo(ctx, "database connection established")

	// Initialize services
	authService := service.NewAuthService(repos.User, cfg, repos.Redis)
	userService := service.NewUserService(repos.User)
	convService := service.NewConversationService(repos)
	msgService := service.NewMessageService(repos)
	readService := service.NewReadService(repos)

	// Initialize WebSocket server and wire it into the publishing services
	wsServer := gateway.NewWsServer(cfg, repos.Redis, authService)
	msgService.SetPusher(wsServer)
	readService.SetPusher(wsServer)

	// Start WebSocket server
	wsServer.Run(ctx)
	log.CtxInfo(ctx, "websocket server started")

	// Initialize handlers
	handlers := &router.Handlers{
		Auth:         handler.NewAuthHandler(authService),
		User:         handler.NewUserHandler(userService, wsServer),
		Message:      handler.NewMessageHandler(msgService),
		Conversation: handler.NewConversationHandler(convService, readService),
	}

	// Create Hertz server
	h := server.Default(
		server.WithHostPorts(fmt.Sprintf(":%d", cfg.Server.HTTPPort)),
	)

	// Setup routes
	router.SetupRouter(h, handlers, wsServer, authService)

	// Standalone WebSocket listener for clients that cannot reach the HTTP
	// port, only started when a separate port is configured
	var wsHTTPServer *http.Server
	if cfg.Server.WSPort != 0 && cfg.Server.WSPort != cfg.Server.HTTPPort {
		mux := http.NewServeMux()
		mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
			wsServer.HandleConnection(r.Context(), w, r)
		})
		wsHTTPServer = &http.Server{
			Addr:    fmt.Sprintf(":%d", cfg.Server.WSPort),
			Handler: mux,
		}
		go func() {
			log.CtxInfo(ctx, "websocket listener starting on port %d", cfg.Server.WSPort)
			if err := wsHTTPServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.CtxError(ctx, "websocket listener error: %v", err)
			}
		}()
	}

	log.CtxInfo(ctx, "server starting on port %d", cfg.Server.HTTPPort)

	// Start server in goroutine
	go func() {
		h.Spin()
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.CtxInfo(ctx, "shutting down server...")

	// Graceful shutdown
	if wsHTTPServer != nil {
		if err := wsHTTPServer.Shutdown(ctx); err != nil {
			log.CtxError(ctx, "websocket listener shutdown error: %v", err)
		}
	}
	if err := h.Shutdown(ctx); err != nil {
		log.CtxError(ctx, "server shutdown error: %v", err)
	}

	log.CtxInfo(ctx, "server stopped")
}
