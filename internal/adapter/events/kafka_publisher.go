package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/IBM/sarama"
	"github.com/plastinin/docconverter/internal/config"
	"github.com/plastinin/docconverter/internal/usecase"
)

// KafkaPublisher публикует события очереди в топик Kafka.
// Ключ сообщения идентификатор задачи, порядок событий одной задачи сохраняется.
type KafkaPublisher struct {
	producer sarama.SyncProducer
	topic    string
}

// NewKafkaPublisher создаёт новый экземпляр KafkaPublisher
func NewKafkaPublisher(cfg config.KafkaConfig) (*KafkaPublisher, error) {
	saramaConfig := sarama.NewConfig()
	saramaConfig.Producer.RequiredAcks = sarama.WaitForAll
	saramaConfig.Producer.Retry.Max = 5
	saramaConfig.Producer.Return.Successes = true
	saramaConfig.Producer.Partitioner = sarama.NewHashPartitioner

	producer, err := sarama.NewSyncProducer(cfg.Brokers, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}

	return newKafkaPublisher(producer, cfg.Topic), nil
}

func newKafkaPublisher(producer sarama.SyncProducer, topic string) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, topic: topic}
}

// Handle EventSink для AsyncHandler
func (p *KafkaPublisher) Handle(ctx context.Context, event usecase.TaskEvent) error {
	msg, err := p.message(event)
	if err != nil {
		return err
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	if _, _, err := p.producer.SendMessage(msg); err != nil {
		return fmt.Errorf("failed to send kafka message: %w", err)
	}
	return nil
}

func (p *KafkaPublisher) message(event usecase.TaskEvent) (*sarama.ProducerMessage, error) {
	var key string
	if event.Type != usecase.EventQueueCleared {
		key = event.Task.ID.String()
	}

	data, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Value: sarama.ByteEncoder(data),
		Headers: []sarama.RecordHeader{
			{Key: []byte("event_type"), Value: []byte(event.Type)},
		},
	}
	if key != "" {
		msg.Key = sarama.StringEncoder(key)
	}
	return msg, nil
}

// Close закрывает продюсер
func (p *KafkaPublisher) Close() error {
	return p.producer.Close()
}
