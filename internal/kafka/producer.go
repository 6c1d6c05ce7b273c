package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"train-station/internal/logger"
)

// Producer writes JSON messages to any topic; the topic is chosen per message.
type Producer struct {
	Writer *kafka.Writer
	Logger *logger.Logger
}

func NewProducer(brokers []string, log *logger.Logger) *Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 10 * time.Millisecond,
	}
	return &Producer{Writer: writer, Logger: log}
}

// Publish marshals v and writes it to topic under key.
func (p *Producer) Publish(ctx context.Context, topic, key string, v interface{}) error {
	msgBytes, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s message: %w", topic, err)
	}

	p.Logger.LogKafka("PUBLISH", topic, string(msgBytes))

	return p.Writer.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: msgBytes,
	})
}

func (p *Producer) Close() error {
	return p.Writer.Close()
}
