package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/plastinin/docconverter/internal/adapter/http/handler"
	"github.com/plastinin/docconverter/internal/adapter/queue"
	"github.com/plastinin/docconverter/internal/app"
	"github.com/plastinin/docconverter/internal/config"
	"github.com/plastinin/docconverter/internal/usecase"
	"github.com/plastinin/docconverter/pkg/logger"
	"go.uber.org/zap"

	apphttp "github.com/plastinin/docconverter/internal/adapter/http"
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

	log.Info("Starting docconverter API",
		zap.String("host", cfg.Server.Host),
		zap.Int("port", cfg.Server.Port),
		zap.String("output_root", cfg.Output.RootDir),
		zap.String("export", cfg.Output.ExportBackend),
	)

	// Контекст с отменой для graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Очередь конвертации и интеграции
	rt, err := app.NewRuntime(ctx, cfg, log)
	if err != nil {
		log.Fatal("Failed to initialize runtime", zap.Error(err))
	}

	// Удалённая очередь воркера
	var taskQueue usecase.TaskQueue
	if cfg.Redis.Enabled {
		producer := queue.NewTaskProducer(cfg.Redis, cfg.Queue)
		defer producer.Close()
		taskQueue = producer
		log.Info("Remote queue enabled", zap.String("queue", cfg.Queue.Name))
	}

	// Инициализируем use cases
	taskUC := usecase.NewTaskUseCase(rt.Orchestrator, rt.History, rt.Statuses, taskQueue, log)

	// Инициализируем handlers
	checks := make(map[string]handler.HealthChecker, len(rt.Checks))
	for name, check := range rt.Checks {
		checks[name] = check
	}
	taskHandler := handler.NewTaskHandler(taskUC, log)
	queueHandler := handler.NewQueueHandler(rt.Orchestrator, log)
	eventsHandler := handler.NewEventsHandler(rt.Orchestrator, log)
	healthHandler := handler.NewHealthHandler(checks)

	// Создаём роутер
	router := apphttp.NewRouter(taskHandler, queueHandler, eventsHandler, healthHandler, log.Named("http"))

	// Создаём HTTP сервер
	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}

	// Запускаем сервер в горутине
	go func() {
		log.Info("HTTP server starting",
			zap.String("addr", cfg.Server.Addr()),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// Ожидаем сигнал завершения
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	// Закрываем потоки событий
	cancel()

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	// Прерываем конвертации и закрываем интеграции
	rt.Close(shutdownCtx)

	log.Info("Server stopped")
}
