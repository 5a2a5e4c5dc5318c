package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"bladi-assistant/internal/config"
	mysqlClient "bladi-assistant/internal/platform/mysql"
	rabbitmqClient "bladi-assistant/internal/platform/rabbitmq"
	redisClient "bladi-assistant/internal/platform/redis"
	"bladi-assistant/internal/repository"
	"bladi-assistant/internal/worker"
)

type App struct {
	Config          *config.Config
	Logger          *slog.Logger
	MySQL           *gorm.DB
	Redis           *redis.Client
	MQConn          *amqp.Connection
	AnalyticsWorker *worker.AnalyticsWorker

	StartedAt time.Time
}

func New(ctx context.Context) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config failed: %w", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel()})).
		With("app", cfg.App.Name, "env", cfg.App.Env)
	slog.SetDefault(logger)

	app := &App{Config: cfg, Logger: logger}

	mysqlDB, err := mysqlClient.New(ctx, cfg.MySQLDSN())
	if err != nil {
		return app.abort(err)
	}
	app.MySQL = mysqlDB
	if err := mysqlClient.Migrate(mysqlDB); err != nil {
		return app.abort(err)
	}

	app.Redis, err = redisClient.New(ctx, cfg.Redis)
	if err != nil {
		return app.abort(err)
	}

	app.MQConn, err = rabbitmqClient.New(ctx, cfg.RabbitMQ.URL, cfg.RabbitMQ.AnalyticsQueue)
	if err != nil {
		return app.abort(err)
	}

	analyticsRepo := repository.NewAnalyticsRepository(mysqlDB)
	analyticsWorker := worker.NewAnalyticsWorker(app.MQConn, analyticsRepo, cfg.RabbitMQ.AnalyticsQueue, logger)
	if err := analyticsWorker.Start(ctx); err != nil {
		return app.abort(fmt.Errorf("start analytics worker failed: %w", err))
	}
	app.AnalyticsWorker = analyticsWorker

	if !cfg.Chatbot.Enabled || cfg.Chatbot.APIKey == "" {
		logger.Warn("generative replies are off, every turn will use the fallback text",
			"enabled", cfg.Chatbot.Enabled,
			"api_key_set", cfg.Chatbot.APIKey != "",
		)
	}

	app.StartedAt = time.Now()
	return app, nil
}

// abort releases whatever New opened before failing with err.
func (a *App) abort(err error) (*App, error) {
	if closeErr := a.Close(); closeErr != nil {
		a.Logger.Warn("release partial bootstrap failed", "error", closeErr)
	}
	return nil, err
}

func (a *App) Close() error {
	var closeErr error
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			closeErr = err
		}
	}
	if a.AnalyticsWorker != nil {
		a.AnalyticsWorker.Close()
	}
	if a.MQConn != nil {
		if err := a.MQConn.Close(); err != nil {
			closeErr = err
		}
	}
	if a.MySQL != nil {
		sqlDB, err := a.MySQL.DB()
		if err == nil {
			if err := sqlDB.Close(); err != nil {
				closeErr = err
			}
		}
	}
	return closeErr
}
