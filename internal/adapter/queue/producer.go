package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/plastinin/docconverter/internal/config"
	"github.com/plastinin/docconverter/internal/usecase"
)

// Типы задач
const (
	TypeConversion = "document:conversion"
)

// TaskProducer отправляет задачи на конвертацию воркеру
type TaskProducer struct {
	client *asynq.Client
	cfg    config.QueueConfig
}

// NewTaskProducer создаёт новый экземпляр TaskProducer
func NewTaskProducer(redis config.RedisConfig, cfg config.QueueConfig) *TaskProducer {
	client := asynq.NewClient(redisOpt(redis))

	return &TaskProducer{
		client: client,
		cfg:    cfg,
	}
}

// Enqueue добавляет задачу в очередь
func (p *TaskProducer) Enqueue(ctx context.Context, submission usecase.Submission) error {
	task, err := newConversionTask(submission, p.cfg)
	if err != nil {
		return err
	}

	_, err = p.client.EnqueueContext(ctx, task)
	if err != nil {
		return fmt.Errorf("failed to enqueue task: %w", err)
	}

	return nil
}

// Close закрывает соединение
func (p *TaskProducer) Close() error {
	return p.client.Close()
}

func newConversionTask(submission usecase.Submission, cfg config.QueueConfig) (*asynq.Task, error) {
	payload, err := json.Marshal(submission)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	// TaskID совпадает с идентификатором задачи, повторная отправка отклоняется asynq
	return asynq.NewTask(TypeConversion, payload,
		asynq.TaskID(submission.JobID.String()),
		asynq.MaxRetry(cfg.MaxRetries),
		asynq.Queue(cfg.Name),
		asynq.Timeout(cfg.Timeout),
	), nil
}

func redisOpt(cfg config.RedisConfig) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	}
}

var _ usecase.TaskQueue = (*TaskProducer)(nil)
