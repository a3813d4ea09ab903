package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/hamed0406/uptimeprobe/internal/domain"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher fans check results out to a Kafka topic, keyed by site ID so one
// site's results stay ordered within a partition.
type Publisher struct {
	writer  messageWriter
	topic   string
	timeout time.Duration
}

func NewPublisher(brokers []string, topic string) *Publisher {
	return &Publisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
		},
		topic:   topic,
		timeout: 5 * time.Second,
	}
}

func (p *Publisher) Topic() string { return p.topic }

// Observe publishes r. It satisfies the scheduler's result observer.
func (p *Publisher) Observe(ctx context.Context, r domain.CheckResult) error {
	payload, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}
	if err := p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(r.SiteID),
		Value: payload,
		Time:  r.Timestamp,
	}); err != nil {
		return fmt.Errorf("publish result to %s: %w", p.topic, err)
	}
	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}
