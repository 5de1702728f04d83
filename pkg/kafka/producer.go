// Package kafka publishes JSON records to a single topic with
// segmentio/kafka-go.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/docpipe/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/docpipe/pkg/logger"
	"github.com/segmentio/kafka-go"
)

const writeTimeout = 10 * time.Second

// Producer writes keyed JSON records synchronously. Records with the same
// key land on the same partition, so they are read back in order.
type Producer struct {
	writer *kafka.Writer
	logger *slog.Logger
}

// NewProducer creates a Producer for cfg.Topic. No connection is made until
// the first Publish.
func NewProducer(cfg config.EventsConfig) *Producer {
	return &Producer{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(cfg.Brokers...),
			Topic:                  cfg.Topic,
			Balancer:               &kafka.Hash{},
			BatchSize:              1,
			WriteTimeout:           writeTimeout,
			MaxAttempts:            3,
			RequiredAcks:           kafka.RequireAll,
			AllowAutoTopicCreation: true,
		},
		logger: logger.WithComponent("kafka-producer").With("topic", cfg.Topic),
	}
}

// Publish encodes value as JSON and writes it under key.
func (p *Producer) Publish(ctx context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encoding record %s: %w", key, err)
	}
	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: data,
		Time:  time.Now(),
	})
	if err != nil {
		return fmt.Errorf("writing record %s: %w", key, err)
	}
	p.logger.Debug("record published", "key", key, "bytes", len(data))
	return nil
}

func (p *Producer) Close() error {
	return p.writer.Close()
}

// Ping succeeds when at least one of brokers accepts a connection.
func Ping(ctx context.Context, brokers []string) error {
	if len(brokers) == 0 {
		return errors.New("no kafka brokers configured")
	}
	var errs []error
	for _, broker := range brokers {
		conn, err := kafka.DialContext(ctx, "tcp", broker)
		if err == nil {
			return conn.Close()
		}
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
