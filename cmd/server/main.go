package main

import (
	"context"
	"log"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	apiHandler "github.com/fastygo/taskboard/api/handler"
	"github.com/fastygo/taskboard/domain"
	"github.com/fastygo/taskboard/internal/app"
	"github.com/fastygo/taskboard/internal/cache"
	"github.com/fastygo/taskboard/internal/config"
	"github.com/fastygo/taskboard/internal/infrastructure/buffer"
	"github.com/fastygo/taskboard/internal/infrastructure/monitor"
	redisInfra "github.com/fastygo/taskboard/internal/infrastructure/redis"
	"github.com/fastygo/taskboard/internal/middleware"
	"github.com/fastygo/taskboard/internal/realtime"
	"github.com/fastygo/taskboard/internal/router"
	"github.com/fastygo/taskboard/internal/services"
	"github.com/fastygo/taskboard/internal/services/lifecycle"
	"github.com/fastygo/taskboard/pkg/httpcontext"
	"github.com/fastygo/taskboard/pkg/logger"
	"github.com/fastygo/taskboard/pkg/retry"
	redisRepo "github.com/fastygo/taskboard/repository/redis"
	achievementUC "github.com/fastygo/taskboard/usecase/achievement"
	authUC "github.com/fastygo/taskboard/usecase/auth"
	cleanupUC "github.com/fastygo/taskboard/usecase/cleanup"
	collabUC "github.com/fastygo/taskboard/usecase/collab"
	finalizeUC "github.com/fastygo/taskboard/usecase/finalize"
	friendUC "github.com/fastygo/taskboard/usecase/friend"
	notifyUC "github.com/fastygo/taskboard/usecase/notify"
	profileUC "github.com/fastygo/taskboard/usecase/profile"
	sessionUC "github.com/fastygo/taskboard/usecase/session"
	taskUC "github.com/fastygo/taskboard/usecase/task"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	zapLogger, err := logger.New(logger.Config{
		Level:    cfg.Logger.Level,
		Encoding: cfg.Logger.Encoding,
	})
	if err != nil {
		log.Fatalf("logger error: %v", err)
	}
	defer zapLogger.Sync()

	appCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	manager := lifecycle.New(cfg.Context.ShutdownTimeout, zapLogger)
	manager.Listen(cancel)

	if err := app.Migrate(cfg, zapLogger); err != nil {
		zapLogger.Fatal("migrations failed", zap.Error(err))
	}

	stores, err := app.OpenStores(appCtx, cfg, zapLogger)
	if err != nil {
		zapLogger.Fatal("document store unavailable", zap.Error(err))
	}
	manager.Register("store", func(ctx context.Context) error {
		return stores.Close()
	})

	redisClient, err := redisInfra.NewClient(cfg.Redis)
	if err != nil {
		zapLogger.Fatal("redis connection failed", zap.Error(err))
	}
	manager.Register("redis", func(ctx context.Context) error {
		return redisClient.Close()
	})

	bufferStore, err := buffer.Open(cfg.Buffer.Path, "buffer", cfg.Buffer.MaxSize)
	if err != nil {
		zapLogger.Fatal("failed to open buffer store", zap.Error(err))
	}
	manager.Register("buffer", func(ctx context.Context) error {
		return bufferStore.Close()
	})

	checks := append([]monitor.Check{}, stores.Checks...)
	checks = append(checks, monitor.Check{Name: "redis", Ping: func(ctx context.Context) error {
		return redisClient.Ping(ctx).Err()
	}})
	mon := monitor.New(checks, bufferStore, 10*time.Second, zapLogger)

	// Task writes publish committed changes; with the feed enabled they also
	// reach listeners on other instances.
	hub := realtime.NewHub(zapLogger)
	var publisher realtime.Publisher = hub
	if cfg.Feed.Enabled {
		feed := redisInfra.NewFeed(redisClient, hub, cfg.Feed.ChannelPrefix, zapLogger)
		publisher = feed
		feedCtx, stopFeed := context.WithCancel(appCtx)
		go func() {
			if err := feed.Run(feedCtx); err != nil {
				zapLogger.Error("task feed stopped", zap.Error(err))
			}
		}()
		manager.Register("feed", func(ctx context.Context) error {
			stopFeed()
			return nil
		})
	}
	taskRepo := realtime.NewTaskRepository(stores.Tasks, publisher, zapLogger)
	sessionRepo := redisRepo.NewSessionRepository(redisClient, cfg.Session.TTL)

	notifyUseCase := notifyUC.New(stores.Notifications, zapLogger)
	achievementUseCase := achievementUC.New(stores.Users, stores.Ledger, notifyUseCase, zapLogger)

	bufferProcessor := services.NewBufferProcessor(
		bufferStore,
		mon,
		stores.Users,
		taskRepo,
		achievementUseCase,
		zapLogger,
		services.ProcessorConfig{
			Interval:   cfg.Buffer.SyncInterval,
			BatchSize:  50,
			MaxRetries: cfg.Buffer.MaxRetry,
			Retention:  time.Duration(cfg.Buffer.RetentionHours) * time.Hour,
		},
	)
	mon.OnReconnect(bufferProcessor.DrainNow)
	mon.Start()
	manager.Register("monitor", func(ctx context.Context) error {
		mon.Stop()
		return nil
	})
	bufferProcessor.Start()
	manager.Register("buffer_processor", func(ctx context.Context) error {
		bufferProcessor.Stop(ctx)
		return nil
	})

	bufferBridge := services.NewBufferBridge(bufferProcessor)
	boards := sessionUC.NewManager(manager, zapLogger)
	manager.Register("sessions", boards.CloseAll)

	taskUseCase := taskUC.New(taskRepo, bufferBridge, hub, cache.New[string, []domain.Task](cfg.Cache.TaskTTL), zapLogger)
	friendUseCase := friendUC.New(stores.Users, stores.Requests, stores.Notifications, notifyUseCase, taskUseCase, zapLogger)
	cleanupUseCase := cleanupUC.New(stores.Users, taskRepo, stores.Requests, stores.Notifications, taskUseCase, zapLogger)
	collabUseCase := collabUC.New(taskRepo, stores.Users, notifyUseCase, zapLogger)
	finalizeUseCase := finalizeUC.New(taskRepo, achievementUseCase, notifyUseCase, bufferBridge, boards, zapLogger,
		finalizeUC.WithRetryPolicy(retry.Policy{
			Attempts:     cfg.Retry.Attempts,
			BaseDelay:    cfg.Retry.BaseDelay,
			Multiplier:   2,
			MaxDelay:     cfg.Retry.MaxDelay,
			JitterFactor: 0.1,
			RetryIf:      retry.IsConcurrency,
		}))
	profileUseCase := profileUC.New(stores.Users, bufferBridge, zapLogger)
	authUseCase := authUC.New(stores.Users, sessionRepo, boards, taskUseCase, friendUseCase, cleanupUseCase,
		authUC.Options{
			Secret:         cfg.JWT.Secret,
			Issuer:         cfg.JWT.Issuer,
			CleanupOnLogin: cfg.Cleanup.OnLogin,
		}, zapLogger)

	if cfg.Cleanup.Enabled {
		scheduler, err := services.NewCleanupScheduler(cleanupUseCase, boards, cfg.Cleanup.Schedule, zapLogger)
		if err != nil {
			zapLogger.Fatal("invalid cleanup schedule", zap.String("schedule", cfg.Cleanup.Schedule), zap.Error(err))
		}
		scheduler.Start()
		manager.Register("cleanup_scheduler", func(ctx context.Context) error {
			scheduler.Stop(ctx)
			return nil
		})
	}

	ctxAdapter := httpcontext.NewAdapter(cfg.Context.RequestTimeout)

	handlers := router.Handlers{
		Auth:         apiHandler.NewAuthHandler(authUseCase, ctxAdapter, zapLogger, cfg.Session.TTL),
		Profile:      apiHandler.NewProfileHandler(profileUseCase, ctxAdapter, zapLogger),
		Task:         apiHandler.NewTaskHandler(taskUseCase, finalizeUseCase, friendUseCase, ctxAdapter, zapLogger),
		Collab:       apiHandler.NewCollabHandler(collabUseCase, ctxAdapter, zapLogger),
		Friend:       apiHandler.NewFriendHandler(friendUseCase, ctxAdapter, zapLogger),
		Notification: apiHandler.NewNotificationHandler(notifyUseCase, ctxAdapter, zapLogger),
		Achievement:  apiHandler.NewAchievementHandler(achievementUseCase, ctxAdapter, zapLogger),
		Cleanup:      apiHandler.NewCleanupHandler(cleanupUseCase, ctxAdapter, zapLogger),
		Health:       apiHandler.NewHealthHandler(mon, ctxAdapter, zapLogger),
	}

	authMiddleware := middleware.JWTAuth(cfg.JWT.Secret, zapLogger)
	r := router.New(handlers, authMiddleware)

	server := &fasthttp.Server{
		Handler:      r.Handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
		Concurrency:  cfg.HTTP.MaxConn,
		Name:         cfg.AppName,
	}

	go func() {
		zapLogger.Info("server started",
			zap.String("address", cfg.Address()),
			zap.String("store", stores.Driver))
		if err := server.ListenAndServe(cfg.Address()); err != nil {
			zapLogger.Fatal("server crashed", zap.Error(err))
		}
	}()

	manager.Register("http_server", func(ctx context.Context) error {
		return server.ShutdownWithContext(ctx)
	})

	<-appCtx.Done()

	if err := manager.Shutdown(context.Background()); err != nil {
		zapLogger.Error("graceful shutdown error", zap.Error(err))
	}
}
