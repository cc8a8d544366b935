package app

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/plastinin/docconverter/internal/adapter/cache"
	"github.com/plastinin/docconverter/internal/adapter/engine"
	"github.com/plastinin/docconverter/internal/adapter/events"
	"github.com/plastinin/docconverter/internal/adapter/llm"
	"github.com/plastinin/docconverter/internal/adapter/repository"
	"github.com/plastinin/docconverter/internal/adapter/storage"
	"github.com/plastinin/docconverter/internal/config"
	"github.com/plastinin/docconverter/internal/output"
	"github.com/plastinin/docconverter/internal/usecase"
	"github.com/plastinin/docconverter/migrations"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const sinkTimeout = 5 * time.Second

// Runtime очередь конвертации со всеми подключёнными интеграциями.
// Общая часть API и воркера.
type Runtime struct {
	Orchestrator *usecase.Orchestrator
	History      usecase.HistoryRepository
	Statuses     usecase.StatusStore

	// Проверки доступности подключённых зависимостей
	Checks map[string]func(ctx context.Context) error

	logger  *zap.Logger
	closers []func()
}

// NewRuntime собирает очередь по конфигурации. Необязательные
// интеграции подключаются только если включены.
func NewRuntime(ctx context.Context, cfg *config.Config, log *zap.Logger) (_ *Runtime, err error) {
	rt := &Runtime{
		Checks: make(map[string]func(ctx context.Context) error),
		logger: log,
	}
	defer func() {
		if err != nil {
			rt.Close(context.Background())
		}
	}()

	// AI-модель для страниц без текстового слоя
	var (
		ocr       engine.PageRecognizer
		installer usecase.ModelInstaller
	)
	if cfg.Ollama.Enabled {
		ollamaClient := llm.NewOllamaClient(cfg.Ollama, log.Named("ollama"))
		ocr = ollamaClient
		installer = ollamaClient
		rt.Checks["ollama"] = ollamaClient.CheckHealth
		log.Info("OCR model enabled",
			zap.String("host", cfg.Ollama.Host),
			zap.String("model", cfg.Ollama.Model),
		)
	}

	exporter, err := rt.newExporter(ctx, cfg)
	if err != nil {
		return nil, err
	}

	bus := usecase.NewEventBus(log.Named("events"))
	conversion := usecase.NewConversionUseCase(
		engine.NewFitzEngine(cfg.Engine, ocr, log.Named("engine")),
		usecase.NewEnvironment(installer, log),
		output.NewResolver(cfg.Output.RootDir, log),
		output.NewArchiver(log),
		exporter,
		bus,
		log,
	)
	rt.Orchestrator = usecase.NewOrchestrator(conversion, bus, log.Named("queue"))

	if cfg.Database.Enabled {
		pool, err := repository.NewPostgresPool(ctx, cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		rt.onClose(pool.Close)
		rt.Checks["postgres"] = pool.Ping
		log.Info("Connected to PostgreSQL")

		if cfg.Database.AutoMigrate {
			if err := repository.Migrate(ctx, pool, migrations.FS, log.Named("migrations")); err != nil {
				return nil, err
			}
		}
		rt.attachHistory(pool)
	}

	if cfg.Redis.Enabled {
		client, err := cache.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		rt.onClose(func() { client.Close() })
		rt.Checks["redis"] = func(ctx context.Context) error { return client.Ping(ctx).Err() }
		log.Info("Connected to Redis", zap.String("addr", cfg.Redis.Addr()))

		rt.attachStatusCache(client, cfg.Redis.StatusTTL)
	}

	if cfg.Kafka.Enabled {
		publisher, err := events.NewKafkaPublisher(cfg.Kafka)
		if err != nil {
			return nil, err
		}
		rt.onClose(func() { publisher.Close() })
		log.Info("Connected to Kafka",
			zap.Strings("brokers", cfg.Kafka.Brokers),
			zap.String("topic", cfg.Kafka.Topic),
		)

		rt.attach(usecase.NewAsyncHandler("kafka", nil, publisher.Handle, sinkTimeout, log))
	}

	return rt, nil
}

func (rt *Runtime) newExporter(ctx context.Context, cfg *config.Config) (usecase.Exporter, error) {
	switch cfg.Output.ExportBackend {
	case config.ExportS3:
		exporter, err := storage.NewS3Exporter(ctx, cfg.S3, rt.logger.Named("s3"))
		if err != nil {
			return nil, fmt.Errorf("failed to connect to S3: %w", err)
		}
		rt.logger.Info("Connected to S3",
			zap.String("endpoint", cfg.S3.Endpoint),
			zap.String("bucket", cfg.S3.Bucket),
		)
		return exporter, nil
	case config.ExportLocal:
		return storage.NewLocalExporter(cfg.Output.DownloadsDir, rt.logger), nil
	}
	// Результат остаётся на месте
	return nil, nil
}

func (rt *Runtime) attachHistory(pool *pgxpool.Pool) {
	history := repository.NewHistoryRepository(pool)
	rt.History = history
	rt.attach(usecase.NewHistoryRecorder(history, sinkTimeout, rt.logger))
}

func (rt *Runtime) attachStatusCache(client *redis.Client, ttl time.Duration) {
	statuses := cache.NewStatusCache(client, ttl)
	rt.Statuses = statuses
	rt.attach(usecase.NewAsyncHandler("status_cache", nil, statuses.Handle, sinkTimeout, rt.logger))
}

// attach подписывает внешний получатель на события очереди
func (rt *Runtime) attach(handler *usecase.AsyncHandler) {
	unsubscribe := rt.Orchestrator.Subscribe(handler.Handle)
	rt.onClose(func() {
		unsubscribe()
		handler.Close()
	})
}

func (rt *Runtime) onClose(f func()) {
	rt.closers = append(rt.closers, f)
}

// Close останавливает фоновые запуски и освобождает ресурсы в обратном порядке
func (rt *Runtime) Close(ctx context.Context) {
	if rt.Orchestrator != nil {
		if err := rt.Orchestrator.Shutdown(ctx); err != nil {
			rt.logger.Error("Failed to stop conversions", zap.Error(err))
		}
	}
	for i := len(rt.closers) - 1; i >= 0; i-- {
		rt.closers[i]()
	}
	rt.closers = nil
}
