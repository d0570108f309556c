package bus

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/IBM/sarama"
	"go.uber.org/zap"
	"wallet-ledger.backend/internal/config"
	"wallet-ledger.backend/internal/domain/entities"
	"wallet-ledger.backend/pkg/logger"
)

// Publisher delivers post-commit notifications to downstream consumers.
// Delivery is at-least-once and happens only after the database commit,
// so consumers may see a notification twice but never for a rolled-back
// group.
type Publisher interface {
	PublishGroupEvent(ctx context.Context, event *entities.GroupEvent) error
	PublishAlert(ctx context.Context, alert *entities.Alert) error
	Close() error
}

// KafkaPublisher implements Publisher on a sarama sync producer
type KafkaPublisher struct {
	producer   sarama.SyncProducer
	eventTopic string
	alertTopic string
}

// NewKafkaPublisher connects a sync producer to the configured brokers
func NewKafkaPublisher(cfg *config.BusConfig) (*KafkaPublisher, error) {
	kafkaConfig := sarama.NewConfig()
	kafkaConfig.Producer.RequiredAcks = sarama.WaitForAll
	kafkaConfig.Producer.Retry.Max = 3
	kafkaConfig.Producer.Return.Successes = true

	producer, err := sarama.NewSyncProducer(cfg.Brokers, kafkaConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}

	return &KafkaPublisher{
		producer:   producer,
		eventTopic: cfg.EventTopic,
		alertTopic: cfg.AlertTopic,
	}, nil
}

// PublishGroupEvent emits a committed group change, keyed by group id so
// one group's events stay ordered within a partition.
func (p *KafkaPublisher) PublishGroupEvent(ctx context.Context, event *entities.GroupEvent) error {
	raw, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msg := &sarama.ProducerMessage{
		Topic: p.eventTopic,
		Key:   sarama.StringEncoder(event.GroupID.String()),
		Value: sarama.ByteEncoder(raw),
	}
	if _, _, err := p.producer.SendMessage(msg); err != nil {
		logger.Error(ctx, "failed to publish group event",
			zap.String("groupId", event.GroupID.String()),
			zap.Error(err))
		return err
	}
	return nil
}

// PublishAlert emits an operator alert
func (p *KafkaPublisher) PublishAlert(ctx context.Context, alert *entities.Alert) error {
	raw, err := json.Marshal(alert)
	if err != nil {
		return err
	}

	msg := &sarama.ProducerMessage{
		Topic: p.alertTopic,
		Key:   sarama.StringEncoder(string(alert.Reason)),
		Value: sarama.ByteEncoder(raw),
	}
	if _, _, err := p.producer.SendMessage(msg); err != nil {
		logger.Error(ctx, "failed to publish alert",
			zap.String("reason", string(alert.Reason)),
			zap.Error(err))
		return err
	}
	return nil
}

// Close shuts down the underlying producer
func (p *KafkaPublisher) Close() error {
	return p.producer.Close()
}
