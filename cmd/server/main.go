package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"autoexit/internal/api"
	"autoexit/internal/api/middleware"
	"autoexit/internal/bot"
	"autoexit/internal/cache"
	"autoexit/internal/config"
	"autoexit/internal/exchange"
	"autoexit/internal/repository"
	"autoexit/internal/service"
	"autoexit/internal/websocket"
	"autoexit/pkg/retry"
	"autoexit/pkg/utils"

	"github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	// Загрузка конфигурации
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := utils.InitGlobalLogger(utils.LogConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	defer logger.Sync()

	if err := run(cfg, logger.Logger); err != nil {
		logger.Fatal("Server failed", zap.Error(err))
	}
	logger.Info("Server exited")
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Инициализация базы данных
	db, err := initDatabase(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	if err := repository.EnsureSchema(ctx, db); err != nil {
		return fmt.Errorf("failed to prepare schema: %w", err)
	}
	logger.Info("Connected to database", zap.String("dsn", cfg.Database.DSNWithoutPassword()))

	// Инициализация репозиториев
	settingsRepo := repository.NewSettingsRepository(db)
	activityRepo := repository.NewActivityRepository(db)
	statusRepo := repository.NewTrailingStatusRepository(db)

	// Журнал действий пишет в БД асинхронно
	activityService := service.NewActivityService(activityRepo, cfg.Monitor.ActivityBuffer, cfg.Monitor.ActivityKeep, logger)
	settingsService := service.NewSettingsService(settingsRepo, activityService)

	// Брокер или mock позиции
	brokerOpts, err := brokerOptions(cfg)
	if err != nil {
		return err
	}
	adapters := exchange.NewAdapters(brokerOpts, logger)
	defer adapters.Close()

	monitor := bot.NewMonitor(bot.MonitorConfig{
		Positions:          adapters.Positions,
		Settings:           settingsService,
		Liquidator:         adapters.Liquidator,
		Audit:              activityService,
		Logger:             logger,
		LogSize:            cfg.Monitor.LogSize,
		TickTimeout:        cfg.Monitor.TickTimeout,
		LiquidationTimeout: cfg.Monitor.LiquidationTimeout,
	})

	hub := websocket.NewHub(websocket.HubConfig{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Snapshot:       monitor.Snapshot,
		Logger:         logger,
	})

	monitorCfg := service.MonitorServiceConfig{
		Monitor:     monitor,
		StatusRepo:  statusRepo,
		Status:      activityService,
		Broadcaster: hub,
		Logger:      logger,
	}
	if cfg.Redis.Enabled {
		rdb, err := connectRedis(ctx, cache.ClientConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			// зеркало не обязательно для работы мониторинга
			logger.Warn("Redis unavailable, snapshot mirror disabled", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
		} else {
			defer rdb.Close()
			monitorCfg.Mirror = cache.NewSnapshotMirror(rdb, cfg.Redis.Key, cfg.Redis.Channel, cfg.Redis.TTL)
			logger.Info("Snapshot mirror enabled", zap.String("addr", cfg.Redis.Addr), zap.String("key", cfg.Redis.Key))
		}
	}
	monitorService := service.NewMonitorService(monitorCfg)
	monitor.Publisher().Subscribe(monitorService.Persist)

	positionsService := service.NewPositionsService(adapters.Positions, adapters.Liquidator, adapters.Mock, activityService, logger)

	var limiter *middleware.IPRateLimiter
	if cfg.Security.RateLimitRPS > 0 {
		limiter = middleware.NewIPRateLimiter(cfg.Security.RateLimitRPS, cfg.Security.RateLimitBurst)
	}
	schedulerAuth := middleware.NewSchedulerAuth(cfg.Security.SchedulerSecret, logger)
	if cfg.Security.JWTSecret == "" {
		logger.Warn("JWT_SECRET is not set, API is served without authorization")
	}

	// Настройка HTTP роутера
	handler := api.SetupRoutes(&api.Dependencies{
		MonitorService:   monitorService,
		SettingsService:  settingsService,
		ActivityService:  activityService,
		PositionsService: positionsService,
		Hub:              hub,
		SchedulerAuth:    schedulerAuth,
		RateLimiter:      limiter,
		JWTSecret:        cfg.Security.JWTSecret,
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		Logger:           logger,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return activityService.Run(gctx)
	})

	g.Go(func() error {
		hub.Run()
		return nil
	})

	g.Go(func() error {
		logger.Info("Starting server",
			zap.String("addr", server.Addr),
			utils.Broker(adapters.Name),
			zap.Bool("scheduler_secret", schedulerAuth.Enabled()),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if cfg.Monitor.ResumeOnBoot {
		resumed, err := monitorService.Resume(ctx)
		if err != nil {
			logger.Warn("Failed to resume monitoring", zap.Error(err))
		} else if resumed {
			logger.Info("Monitoring resumed")
		}
	}

	// Graceful shutdown
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		// Сначала останавливаем тики, чтобы не начать ликвидацию во время остановки
		if err := monitor.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Monitor did not stop in time", zap.Error(err))
		}
		hub.Stop()
		monitor.Publisher().Close()

		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// Классы ошибок Postgres, при которых повтор подключения бесполезен
const (
	pqClassInvalidAuthorization pq.ErrorClass = "28"
	pqClassInvalidCatalogName   pq.ErrorClass = "3D"
)

// initDatabase открывает пул соединений и ждёт готовности БД
func initDatabase(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Настройка пула соединений
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(5 * time.Minute)

	policy := retry.NetworkConfig()
	policy.OnRetry = func(attempt int, err error, delay time.Duration) {
		logger.Warn("Database not ready, retrying",
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
	}

	if err := pingDatabase(ctx, db.PingContext, policy); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// pingDatabase ждёт готовности БД. Ошибки авторизации и отсутствие базы
// не исправятся повтором, поэтому прерывают ожидание сразу.
func pingDatabase(ctx context.Context, ping func(context.Context) error, policy retry.Config) error {
	return retry.Do(ctx, func() error {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return permanentPingError(ping(pingCtx))
	}, policy)
}

func permanentPingError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code.Class() {
		case pqClassInvalidAuthorization, pqClassInvalidCatalogName:
			return retry.Permanent(err)
		}
	}
	return err
}

// connectRedis подключается к Redis с короткими повторами
func connectRedis(ctx context.Context, cfg cache.ClientConfig) (*redis.Client, error) {
	var rdb *redis.Client
	err := retry.Do(ctx, func() error {
		var err error
		rdb, err = cache.NewClient(ctx, cfg)
		return err
	}, retry.DefaultConfig())
	return rdb, err
}

// brokerOptions выбирает режим работы с позициями
func brokerOptions(cfg *config.Config) (exchange.Options, error) {
	if cfg.UseMockBroker() {
		return exchange.Options{Mock: true, MockFile: cfg.Broker.MockFile}, nil
	}

	token, err := cfg.BrokerAccessToken()
	if err != nil {
		return exchange.Options{}, err
	}
	if token == "" {
		return exchange.Options{}, errors.New("broker access token is empty")
	}

	return exchange.Options{
		FivePaisa: exchange.FivePaisaConfig{
			BaseURL:       cfg.Broker.BaseURL,
			AppKey:        cfg.Broker.AppKey,
			ClientCode:    cfg.Broker.ClientCode,
			AccessToken:   token,
			PositionsRate: cfg.Broker.PositionsRate,
			OrdersRate:    cfg.Broker.OrdersRate,
		},
	}, nil
}
