package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"qiyana_splitledger/pkg/utils"

	"github.com/segmentio/kafka-go"
)

// Kafka writes events as JSON to one topic, keyed by reference so that all
// events of one settlement or netting pass land on the same partition.
type Kafka struct {
	writer *kafka.Writer
}

func NewKafka(brokers []string, topic string) *Kafka {
	return &Kafka{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
			MaxAttempts:  3,
			BatchSize:    100,
			BatchTimeout: 10 * time.Millisecond,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			Compression:  kafka.Snappy,
			ErrorLogger: kafka.LoggerFunc(func(msg string, args ...interface{}) {
				utils.Logger.Errorf("kafka: "+msg, args...)
			}),
		},
	}
}

func (k *Kafka) Publish(ctx context.Context, events ...Event) error {
	msgs, err := Messages(events...)
	if err != nil {
		return err
	}
	if len(msgs) == 0 {
		return nil
	}
	if err := k.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish %d ledger events: %w", len(msgs), err)
	}
	return nil
}

func (k *Kafka) Close() error {
	return k.writer.Close()
}

// Messages encodes events for the writer.
func Messages(events ...Event) ([]kafka.Message, error) {
	msgs := make([]kafka.Message, 0, len(events))
	for _, e := range events {
		data, err := json.Marshal(e)
		if err != nil {
			return nil, fmt.Errorf("marshal %s event: %w", e.Type, err)
		}
		key := e.Reference
		if key == "" {
			key = e.ID.String()
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(key),
			Value: data,
			Time:  e.CreatedAt,
			Headers: []kafka.Header{
				{Key: "event_type", Value: []byte(e.Type)},
			},
		})
	}
	return msgs, nil
}
