package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/harentsoaR/bloodbank-api/internal/broadcast"
	"github.com/harentsoaR/bloodbank-api/internal/collections"
	"github.com/harentsoaR/bloodbank-api/internal/config"
	"github.com/harentsoaR/bloodbank-api/internal/handlers"
	"github.com/harentsoaR/bloodbank-api/internal/logger"
	"github.com/harentsoaR/bloodbank-api/internal/services"
	"github.com/harentsoaR/bloodbank-api/internal/storage"
	"github.com/harentsoaR/bloodbank-api/internal/utils"
)

func main() {
	cfg, envFile := config.Load()

	log, err := logger.New(cfg.LogLevel, cfg.LogFormat, "bloodbank-api")
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if !envFile {
		log.Info("no .env file found, relying on environment variables")
	}
	if err := run(cfg, log); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg config.Config, log *zap.Logger) error {
	if cfg.Production() {
		gin.SetMode(gin.ReleaseMode)
		if os.Getenv("JWT_SECRET") == "" {
			return errors.New("JWT_SECRET must be set in production")
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Storage ---
	kv, closeKV, err := openStorage(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeKV()

	store := collections.New(kv)
	if cfg.SeedReset {
		if cfg.Production() {
			return errors.New("SEED_RESET is refused in production")
		}
		if err := store.Reset(ctx); err != nil {
			return fmt.Errorf("reset collections: %w", err)
		}
		log.Warn("all collections cleared", zap.Strings("keys", collections.Keys))
	}
	if cfg.Seed {
		written, err := store.Seed(ctx)
		if err != nil {
			return fmt.Errorf("seed collections: %w", err)
		}
		log.Info("sample data checked", zap.Strings("seeded", written))
	}

	// --- Services ---
	bus := broadcast.New(kv, log.Named("sync"))
	otp := services.NewOTPManager(services.OTPConfig{
		TTL:            cfg.OTP.TTL,
		MaxAttempts:    cfg.OTP.MaxAttempts,
		ResendInterval: cfg.OTP.ResendInterval,
		ResendBurst:    cfg.OTP.ResendBurst,
	})
	notifier := services.NewNotificationService(cfg.OTP.WebhookURL, log.Named("notify"))
	svc := services.New(store, bus, otp, notifier, services.Options{
		DebugCodes: !cfg.Production(),
		Logger:     log,
	})
	tokens := utils.NewTokenIssuer(cfg.JWTSecret, cfg.TokenTTL)

	// --- HTTP ---
	h := handlers.NewHandler(svc, tokens, bus, log.Named("http"))
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handlers.NewRouter(h, cfg.CORSOrigins),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return bus.Run(gctx)
	})
	g.Go(func() error {
		log.Info("starting server",
			zap.String("port", cfg.Port),
			zap.String("env", cfg.Env),
			zap.String("storage", cfg.StorageDriver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		log.Info("shutting down server")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func openStorage(ctx context.Context, cfg config.Config, log *zap.Logger) (storage.KV, func(), error) {
	switch cfg.StorageDriver {
	case config.DriverMemory:
		log.Warn("using in-memory storage; data is lost on restart")
		return storage.NewMemory(), func() {}, nil

	case config.DriverRedis:
		dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		client, err := storage.NewRedisClient(dialCtx, storage.RedisConfig{URL: cfg.RedisURL})
		if err != nil {
			return nil, nil, fmt.Errorf("connect redis: %w", err)
		}
		log.Info("connected to redis")
		return storage.NewRedis(client), func() { _ = client.Close() }, nil

	case config.DriverMongo:
		dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		client, db, err := storage.ConnectMongo(dialCtx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, nil, fmt.Errorf("connect mongo: %w", err)
		}
		log.Info("connected to mongodb", zap.String("database", cfg.MongoDatabase))
		closeFn := func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = client.Disconnect(ctx)
		}
		return storage.NewMongo(db), closeFn, nil
	}
	return nil, nil, fmt.Errorf("unknown STORAGE_DRIVER %q", cfg.StorageDriver)
}
