package cluster

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/mqy/minichat/model"
)

const kafkaWriteTimeout = 3 * time.Second

// Publisher writes submitted messages to kafka. The server timestamp is assigned
// when the storage consumes them.
type Publisher struct {
	kafkaWriter IKafkaWriter
	limit       int
}

func NewPublisher(kafkaWriter IKafkaWriter, limit int) *Publisher {
	return &Publisher{kafkaWriter: kafkaWriter, limit: limit}
}

// Submit implements `ws.Submitter`.
func (p *Publisher) Submit(ctx context.Context, msg *model.Message) error {
	v := msg.Clone()
	v.CreatedAt = nil
	value, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("error marshal message: %s, err: %v", v.ID, err)
	}
	if len(value) > p.limit {
		return fmt.Errorf("storage: msg exceeds max limit: %d bytes", p.limit)
	}

	km := kafka.Message{
		Key:   []byte(v.ID),
		Value: value,
	}

	ctx2, cancel := context.WithTimeout(ctx, kafkaWriteTimeout)
	defer cancel()
	if err := p.kafkaWriter.WriteMessages(ctx2, km); err != nil {
		return fmt.Errorf("error write to kafka: %w", err)
	}
	submittedMessages.Inc()
	return nil
}

func (p *Publisher) Close() error {
	return p.kafkaWriter.Close()
}
