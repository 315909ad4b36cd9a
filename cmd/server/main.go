package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"maildash/backend/internal/auth"
	"maildash/backend/internal/config"
	"maildash/backend/internal/health"
	"maildash/backend/internal/logger"
	"maildash/backend/internal/monitoring"
	"maildash/backend/internal/ratelimit"
	"maildash/backend/internal/service"
	"maildash/backend/internal/storage"
	"maildash/backend/internal/storage/gormstore"
	"maildash/backend/internal/storage/memory"
	redisclient "maildash/backend/internal/storage/redis"
	httptransport "maildash/backend/internal/transport/http"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	if !cfg.Log.Development {
		gin.SetMode(gin.ReleaseMode)
	}

	log, err := logger.New(logger.Config{
		Level:       cfg.Log.Level,
		Development: cfg.Log.Development,
		MaxSize:     100,
		MaxBackups:  3,
		MaxAge:      28,
		Compress:    true,
	})
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer log.Sync()

	log.Info("starting maildash server",
		zap.String("log_level", cfg.Log.Level),
		zap.Bool("development", cfg.Log.Development),
		zap.String("mail_domain", cfg.Mail.Domain),
	)

	// 初始化存储层
	var store storage.Store
	if cfg.Database.Type != "" && cfg.Database.DSN != "" {
		store, err = gormstore.NewStore(
			cfg.Database.Type,
			cfg.Database.DSN,
			cfg.Database.MaxOpenConns,
			cfg.Database.MaxIdleConns,
			cfg.Database.ConnMaxLifetime,
		)
		if err != nil {
			panic(fmt.Sprintf("failed to initialize database storage: %v", err))
		}
		log.Info("using database storage", zap.String("type", cfg.Database.Type))
	} else {
		store = memory.NewStore()
		log.Info("using memory storage (development mode)")
	}
	defer store.Close()

	// Redis 可选，仅用于分享页限流计数
	var redis *redisclient.Client
	if cfg.Redis.Address != "" {
		redis, err = redisclient.New(&cfg.Redis, log)
		if err != nil {
			log.Warn("redis unavailable, falling back to in-process rate limiting", zap.Error(err))
			redis = nil
		}
	}
	if redis != nil {
		defer redis.Close()
	}

	var shareLimiter ratelimit.Limiter
	if cfg.RateLimit.Enabled {
		if redis != nil {
			shareLimiter = ratelimit.NewRedisLimiter(redis, cfg.RateLimit.Limit, cfg.RateLimit.Window, log)
			log.Info("share rate limiting enabled (redis)",
				zap.Int("limit", cfg.RateLimit.Limit),
				zap.Duration("window", cfg.RateLimit.Window),
			)
		} else {
			shareLimiter = ratelimit.NewLocalLimiter(cfg.RateLimit.Limit, cfg.RateLimit.Window)
			log.Info("share rate limiting enabled (local)",
				zap.Int("limit", cfg.RateLimit.Limit),
				zap.Duration("window", cfg.RateLimit.Window),
			)
		}
	}

	// 监控与健康检查
	metrics := monitoring.NewMetrics()
	healthChecker := health.NewChecker(store, redis, log)

	// 服务层
	authService := auth.NewService(store, &cfg.JWT)
	settingsService := service.NewSettingsService(store, cfg, log)
	configService := service.NewEmailConfigService(store, settingsService, cfg, log)
	shareService := service.NewShareService(store, settingsService, metrics, log)
	batchService := service.NewBatchService(store, store, settingsService, cfg, metrics, log)
	userService := service.NewUserService(store, log)

	router := httptransport.NewRouter(httptransport.RouterDependencies{
		Config:          cfg,
		AuthService:     authService,
		ConfigService:   configService,
		ShareService:    shareService,
		BatchService:    batchService,
		SettingsService: settingsService,
		UserService:     userService,
		Store:           store,
		Metrics:         metrics,
		Health:          healthChecker,
		ShareLimiter:    shareLimiter,
		Logger:          log,
	})

	httpAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	httpServer := &http.Server{
		Addr:              httpAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// 信号处理
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		log.Info("starting HTTP server", zap.String("address", httpAddr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server error", zap.Error(err))
			return err
		}
		return nil
	})

	// 收到退出信号后优雅关闭
	group.Go(func() error {
		<-groupCtx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		log.Info("shutting down HTTP server")
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		log.Error("server exited with error", zap.Error(err))
	}
	log.Info("server stopped")
}
