package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"churn-predictor/internal/app"
	"churn-predictor/internal/config"
	"churn-predictor/internal/handler"
	"churn-predictor/internal/middleware"
	"churn-predictor/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "", "path to config file (default $CHURN_CONFIG or configs/config.yml)")
	flag.Parse()

	path := *configPath
	if path == "" {
		path = os.Getenv("CHURN_CONFIG")
	}
	if path == "" {
		path = "configs/config.yml"
	}

	// Load configuration
	cfg, err := config.LoadConfig(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger, err := app.NewLogger(cfg.Log.Format)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	logger.Info("Starting Churn Prediction Service...", zap.String("config", path))

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ModelTimeout())
	components, err := app.Build(ctx, cfg, true, logger)
	cancel()
	if err != nil {
		logger.Fatal("Failed to initialize", zap.Error(err))
	}
	defer components.Close()

	var auth *service.AuthService
	if cfg.AdminEnabled() {
		auth = service.NewAuthService(cfg.Admin.Username, cfg.Admin.PasswordHash, cfg.Admin.JWTSecret, cfg.TokenTTL(), logger)
		logger.Info("Admin endpoints enabled", zap.String("username", cfg.Admin.Username))
	} else {
		logger.Info("Admin endpoints disabled")
	}

	// Initialize HTTP handler
	h := handler.NewHandler(components.Predictor, components.Repo, auth, logger)

	// Setup Gin router
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestLogger(logger), middleware.CORS())

	h.RegisterRoutes(router)

	serverAddr := fmt.Sprintf(":%s", cfg.Server.Port)
	srv := &http.Server{
		Addr:    serverAddr,
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	modelName := "unknown"
	if m, ok := components.Classifier.GetModelInfo()["model"].(string); ok {
		modelName = m
	}

	logger.Info("Churn Prediction Service is running",
		zap.String("address", serverAddr),
		zap.String("model", modelName),
		zap.Int("features", len(components.Predictor.Features())))

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}
