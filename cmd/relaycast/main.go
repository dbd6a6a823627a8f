package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"relaycast/internal/core/services"
	httphandlers "relaycast/internal/handlers/http"
	"relaycast/internal/infrastructure/middleware"
	"relaycast/internal/infrastructure/monitoring"
	repositories "relaycast/internal/infrastructure/repositories"
	"relaycast/internal/infrastructure/repositories/memory"
	signalgw "relaycast/internal/infrastructure/signal"
	"relaycast/pkg/config"
	"relaycast/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const version = "1.0.0"

func main() {
	configPaths := []string{
		"configs/config.yaml",
		"./configs/config.yaml",
		"/etc/relaycast/config.yaml",
		"config.yaml",
	}

	var cfg *config.Config
	var err error

	for _, path := range configPaths {
		cfg, err = config.Load(path)
		if err == nil {
			break
		}
	}
	if err != nil {
		cfg = config.DefaultConfig()
	}

	zapLogger := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLogger.Sync()
	log := zapLogger.Sugar()

	repoFactory, err := repositories.NewFactory(cfg, log)
	if err != nil {
		log.Fatalw("failed to initialize room directory backend", "error", err)
	}
	defer repoFactory.Close()

	tokenStore := memory.NewTokenStore(cfg.Vip.TokenTTL)

	directoryService := services.NewDirectoryService(repoFactory.RoomRepository(), cfg.Vip.CodeLength, cfg.Vip.CodeAttempts, log)
	sessionService := services.NewSessionService(log)
	admissionService := services.NewAdmissionService(directoryService, sessionService, tokenStore, log)
	treeService := services.NewTreeService(cfg.Relay.MaxTier, cfg.Relay.RootCapacity, cfg.Relay.DefaultCapacity, log)
	authService := services.NewAuthService(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)

	var collector *monitoring.Collector
	if cfg.Monitoring.MetricsEnabled {
		collector = monitoring.NewCollector()
	}

	wsServer := signalgw.NewServer(directoryService, sessionService, admissionService, treeService, collector, cfg, log)

	roomHandler := httphandlers.NewRoomHandler(directoryService, authService)
	vipHandler := httphandlers.NewVipHandler(directoryService, tokenStore)
	healthHandler := httphandlers.NewHealthHandler(directoryService, version)

	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.NewHTTPRateLimitMiddleware(cfg))

	roomHandler.SetupRoutes(router)
	vipHandler.SetupRoutes(router)
	healthHandler.SetupRoutes(router)

	router.GET("/ws", gin.WrapF(wsServer.HandleWebSocket))

	if cfg.Monitoring.MetricsEnabled {
		router.GET("/metrics", gin.WrapH(promhttp.Handler()))
		log.Info("prometheus metrics enabled")
	}

	// Read/WriteTimeout would tear down long-lived websocket connections, so
	// only the header read is bounded here. The gateway enforces its own
	// ping/pong and write deadlines.
	srv := &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           router,
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Infow("starting relaycast server", "address", cfg.Server.Address, "directory_backend", cfg.Directory.Backend)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		log.Fatalw("server failed", "error", err)
	case sig := <-sigChan:
		log.Infow("received shutdown signal", "signal", sig)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorw("error during server shutdown", "error", err)
		if closeErr := srv.Close(); closeErr != nil {
			log.Errorw("error force closing server", "error", closeErr)
		}
	} else {
		log.Info("server shutdown gracefully")
	}

	if err := repoFactory.Close(); err != nil {
		log.Errorw("error closing directory backend", "error", err)
	}

	log.Info("relaycast server stopped")
}
