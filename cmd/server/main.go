package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/anonto42/devforum/backend/internal/router"
	"github.com/anonto42/devforum/backend/internal/services"
	"github.com/anonto42/devforum/backend/pkg/config"
	"github.com/anonto42/devforum/backend/pkg/logging"
	"github.com/anonto42/devforum/backend/validators"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger, err := logging.New(cfg.Env)
	if err != nil {
		panic(err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := config.OpenStore(ctx, cfg, logger)
	if err != nil {
		logger.Sugar().Fatalf("failed to open %s store: %s", cfg.StoreBackend, err.Error())
	}
	defer store.Close()

	if store.Bridge != nil {
		go func() {
			if err := store.Bridge.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Sugar().Errorf("redis change bridge stopped: %s", err.Error())
			}
		}()
	}

	authn, err := config.NewAuthenticator(ctx, cfg, store)
	if err != nil {
		logger.Sugar().Fatalf("failed to initialize authentication: %s", err.Error())
	}

	userService := services.NewUserService(store.Users, authn, logger)
	postService := services.NewPostService(store.Posts, store.Comments, store.Users, logger,
		services.WithDefaultFeedLimit(cfg.FeedDefaultLimit))
	authService := services.NewAuthService(authn, store.Users, logger)

	e := echo.New()
	e.HideBanner = true
	e.Validator = validators.NewValidator()

	config.SetupMiddleware(e, cfg, logger)
	router.SetupRoutes(e, router.Services{
		Auth:        authService,
		Posts:       postService,
		Users:       userService,
		SearchDelay: cfg.SearchDebounce,
	}, logger)

	go func() {
		logger.Info("Server started", zap.String("port", cfg.Port), zap.String("store", cfg.StoreBackend))
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Sugar().Errorf("failed to run http server: %s", err.Error())
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("Server shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Sugar().Errorf("failed to shut down http server: %s", err.Error())
		os.Exit(1)
	}
}
