// Package audit publishes key lifecycle events to Kafka.
package audit

import (
	"context"
	"encoding/json"

	"github.com/segmentio/kafka-go"

	"github.com/turtacn/clusterkeys/internal/config"
	"github.com/turtacn/clusterkeys/internal/domain/models"
	"github.com/turtacn/clusterkeys/internal/domain/service"
	"github.com/turtacn/clusterkeys/pkg/errors"
	"github.com/turtacn/clusterkeys/pkg/logger"
)

// SignatureHeader carries the HMAC of the message value when signing is configured.
const SignatureHeader = "x-event-signature"

// messageWriter is the subset of *kafka.Writer the producer needs.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaProducer is a Kafka-backed implementation of service.KeyEventPublisher.
type KafkaProducer struct {
	writer        messageWriter
	signingSecret string
	logger        logger.Logger
}

var _ service.KeyEventPublisher = (*KafkaProducer)(nil)

// NewKafkaProducer creates a new KafkaProducer.
func NewKafkaProducer(cfg config.KafkaConfig, log logger.Logger) *KafkaProducer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		BatchTimeout: cfg.BatchTimeout,
	}
	return newKafkaProducer(writer, cfg.SigningSecret, log)
}

func newKafkaProducer(w messageWriter, signingSecret string, log logger.Logger) *KafkaProducer {
	return &KafkaProducer{
		writer:        w,
		signingSecret: signingSecret,
		logger:        log.WithComponent("KafkaProducer"),
	}
}

// Publish sends an event keyed by purpose so one purpose's events stay ordered
// within a partition.
func (p *KafkaProducer) Publish(ctx context.Context, event *models.KeyEvent) error {
	if event == nil {
		return errors.InvalidArgument("key event is nil")
	}
	value, err := json.Marshal(event)
	if err != nil {
		p.logger.Error(ctx, "failed to marshal key event", err)
		return errors.Wrap(err, errors.CodeInternal, "marshal key event")
	}

	msg := kafka.Message{
		Key:   []byte(event.Purpose),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
		},
	}
	if p.signingSecret != "" {
		msg.Headers = append(msg.Headers, kafka.Header{Key: SignatureHeader, Value: []byte(SignPayload(value, p.signingSecret))})
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error(ctx, "failed to write message to Kafka", err,
			logger.String("event_type", string(event.EventType)),
			logger.String("event_id", event.EventID.String()),
		)
		return errors.Wrap(err, errors.CodeStoreUnavailable, "publish key event")
	}
	return nil
}

// Close closes the underlying Kafka writer.
func (p *KafkaProducer) Close() error {
	return p.writer.Close()
}
