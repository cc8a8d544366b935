package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/plastinin/docconverter/internal/adapter/queue"
	"github.com/plastinin/docconverter/internal/app"
	"github.com/plastinin/docconverter/internal/config"
	"github.com/plastinin/docconverter/internal/usecase"
	"github.com/plastinin/docconverter/pkg/logger"
	"go.uber.org/zap"
)

func main() {
	// Загружаем конфигурацию
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load config: " + err.Error())
	}

	// Инициализируем логгер
	log := logger.Must(cfg.Log.Level, cfg.Log.Format)
	defer log.Sync()

	log.Info("Starting docconverter worker",
		zap.String("queue", cfg.Queue.Name),
		zap.Int("concurrency", cfg.Queue.Concurrency),
		zap.Bool("ocr", cfg.Ollama.Enabled),
	)

	// Контекст для инициализации
	ctx := context.Background()

	// Очередь конвертации без HTTP: задачи приходят из asynq
	rt, err := app.NewRuntime(ctx, cfg, log)
	if err != nil {
		log.Fatal("Failed to initialize runtime", zap.Error(err))
	}

	// Инициализируем use cases
	taskUC := usecase.NewTaskUseCase(rt.Orchestrator, rt.History, rt.Statuses, nil, log)

	// Инициализируем consumer
	consumer := queue.NewTaskConsumer(cfg.Redis, cfg.Queue, taskUC, log)

	// Запускаем consumer в горутине
	go func() {
		if err := consumer.Start(); err != nil {
			log.Fatal("Failed to start consumer", zap.Error(err))
		}
	}()

	log.Info("Worker started, waiting for tasks...")

	// Ожидаем сигнал завершения
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down worker...")

	// Останавливаем consumer, затем прерываем конвертации
	consumer.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	rt.Close(shutdownCtx)

	log.Info("Worker stopped")
}
