package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/plastinin/docconverter/internal/config"
	"github.com/plastinin/docconverter/internal/domain"
	"github.com/plastinin/docconverter/internal/usecase"
	"github.com/redis/go-redis/v9"
)

const statusKeyPrefix = "task:status:"

// StatusCache последние состояния задач в Redis.
// Воркер пишет, API читает задачи, отправленные в удалённую очередь.
type StatusCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisClient создаёт клиент Redis и проверяет соединение
func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr(),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     10,
		MinIdleConns: 2,
		PoolTimeout:  5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return client, nil
}

// NewStatusCache создаёт новый экземпляр StatusCache
func NewStatusCache(client *redis.Client, ttl time.Duration) *StatusCache {
	return &StatusCache{client: client, ttl: ttl}
}

// Set сохраняет состояние задачи
func (c *StatusCache) Set(ctx context.Context, snapshot domain.TaskSnapshot) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	return c.client.Set(ctx, statusKey(snapshot.ID), data, c.ttl).Err()
}

// Get возвращает последнее состояние задачи
func (c *StatusCache) Get(ctx context.Context, id uuid.UUID) (*domain.TaskSnapshot, error) {
	data, err := c.client.Get(ctx, statusKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to get cached status: %w", err)
	}
	return decodeSnapshot(data)
}

// Handle EventSink для AsyncHandler
func (c *StatusCache) Handle(ctx context.Context, event usecase.TaskEvent) error {
	switch event.Type {
	case usecase.EventTaskAdded, usecase.EventTaskStatus, usecase.EventTaskProgress:
		return c.Set(ctx, event.Task)
	}
	return nil
}

func statusKey(id uuid.UUID) string {
	return statusKeyPrefix + id.String()
}

// decodeSnapshot восстанавливает снимок вместе с параметрами формата
func decodeSnapshot(data []byte) (*domain.TaskSnapshot, error) {
	var raw struct {
		domain.TaskSnapshot
		Options json.RawMessage `json:"options"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode cached status: %w", err)
	}

	snapshot := raw.TaskSnapshot
	opts, err := domain.DecodeOptions(snapshot.Type, raw.Options)
	if err != nil {
		return nil, err
	}
	snapshot.Options = opts

	return &snapshot, nil
}

var _ usecase.StatusStore = (*StatusCache)(nil)
