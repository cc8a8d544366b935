package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/plastinin/docconverter/internal/config"
	"github.com/plastinin/docconverter/internal/domain"
	"github.com/plastinin/docconverter/internal/usecase"
	"go.uber.org/zap"
)

// SubmissionProcessor выполняет задачи, пришедшие из очереди
type SubmissionProcessor interface {
	ProcessSubmission(ctx context.Context, sub usecase.Submission) (domain.TaskSnapshot, error)
	Forget(id uuid.UUID)
}

// TaskConsumer обрабатывает задачи из очереди
type TaskConsumer struct {
	server    *asynq.Server
	mux       *asynq.ServeMux
	processor SubmissionProcessor
	logger    *zap.Logger
}

// NewTaskConsumer создаёт новый экземпляр TaskConsumer
func NewTaskConsumer(
	redis config.RedisConfig,
	cfg config.QueueConfig,
	processor SubmissionProcessor,
	logger *zap.Logger,
) *TaskConsumer {
	server := asynq.NewServer(
		redisOpt(redis),
		asynq.Config{
			Concurrency: cfg.Concurrency,
			Queues: map[string]int{
				cfg.Name: 10,
			},
			Logger: newAsynqLogger(logger),
		},
	)

	consumer := &TaskConsumer{
		server:    server,
		mux:       asynq.NewServeMux(),
		processor: processor,
		logger:    logger,
	}

	// Регистрируем обработчики
	consumer.mux.HandleFunc(TypeConversion, consumer.handleConversion)

	return consumer
}

// Start запускает обработку задач
func (c *TaskConsumer) Start() error {
	c.logger.Info("Starting task consumer")
	return c.server.Start(c.mux)
}

// Stop останавливает обработку задач
func (c *TaskConsumer) Stop() {
	c.logger.Info("Stopping task consumer")
	c.server.Stop()
	c.server.Shutdown()
}

// handleConversion обрабатывает задачу конвертации документа
func (c *TaskConsumer) handleConversion(ctx context.Context, t *asynq.Task) error {
	var sub usecase.Submission
	if err := json.Unmarshal(t.Payload(), &sub); err != nil {
		c.logger.Error("Failed to unmarshal payload",
			zap.Error(err),
			zap.ByteString("payload", t.Payload()),
		)
		// Повтор не поможет
		return fmt.Errorf("failed to unmarshal payload: %v: %w", err, asynq.SkipRetry)
	}
	if sub.JobID == uuid.Nil {
		return fmt.Errorf("missing job id: %w", asynq.SkipRetry)
	}

	log := c.logger.With(zap.String("task_id", sub.JobID.String()))
	log.Info("Processing conversion task", zap.String("type", sub.Input.Type))

	snapshot, err := c.processor.ProcessSubmission(ctx, sub)
	if err == nil || lastAttempt(ctx) {
		c.processor.Forget(sub.JobID)
	}
	if err != nil {
		log.Error("Failed to process task",
			zap.String("status", string(snapshot.Status)),
			zap.Error(err),
		)
		return err
	}

	return nil
}

// lastAttempt сообщает, что asynq больше не будет повторять задачу
func lastAttempt(ctx context.Context) bool {
	retried, ok := asynq.GetRetryCount(ctx)
	if !ok {
		return true
	}
	maxRetry, ok := asynq.GetMaxRetry(ctx)
	if !ok {
		return true
	}
	return retried >= maxRetry
}

// asynqLogger адаптер логгера для asynq
type asynqLogger struct {
	logger *zap.Logger
}

func newAsynqLogger(logger *zap.Logger) *asynqLogger {
	return &asynqLogger{logger: logger.Named("asynq")}
}

func (l *asynqLogger) Debug(args ...interface{}) {
	l.logger.Debug(fmt.Sprint(args...))
}

func (l *asynqLogger) Info(args ...interface{}) {
	l.logger.Info(fmt.Sprint(args...))
}

func (l *asynqLogger) Warn(args ...interface{}) {
	l.logger.Warn(fmt.Sprint(args...))
}

func (l *asynqLogger) Error(args ...interface{}) {
	l.logger.Error(fmt.Sprint(args...))
}

func (l *asynqLogger) Fatal(args ...interface{}) {
	l.logger.Fatal(fmt.Sprint(args...))
}
