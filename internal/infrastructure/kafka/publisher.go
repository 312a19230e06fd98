package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/liamhowell4/budget-master-sub001/internal/domain/evaluation"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher writes evaluation events to one topic, keyed by user id so a
// user's events stay ordered within a partition.
type Publisher struct {
	writer messageWriter
}

func NewPublisher(brokers []string, topic string) *Publisher {
	return &Publisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			BatchTimeout: 50 * time.Millisecond,
			RequiredAcks: kafka.RequireOne,
		},
	}
}

func (p *Publisher) Publish(ctx context.Context, events ...evaluation.Event) error {
	msgs, err := buildMessages(events)
	if err != nil {
		return err
	}
	if len(msgs) == 0 {
		return nil
	}
	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("failed to publish %d events: %w", len(msgs), err)
	}
	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

func buildMessages(events []evaluation.Event) ([]kafka.Message, error) {
	msgs := make([]kafka.Message, 0, len(events))
	for _, e := range events {
		data, err := json.Marshal(e)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s event: %w", e.Type, err)
		}
		msgs = append(msgs, kafka.Message{
			Key:     []byte(e.UserID),
			Value:   data,
			Time:    e.OccurredAt,
			Headers: []kafka.Header{{Key: "event-type", Value: []byte(e.Type)}},
		})
	}
	return msgs, nil
}
