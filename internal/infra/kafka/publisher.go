package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"corrode-course/internal/domain"
	"github.com/segmentio/kafka-go"
)

// DefaultTopic receives one message per recorded submission.
const DefaultTopic = "course.submissions"

// MessageWriter is the subset of *kafka.Writer the publisher needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher ships submission events keyed by participant id, so one learner's
// events stay ordered within a partition.
type Publisher struct {
	writer MessageWriter
}

func NewPublisher(brokers []string, topic string) *Publisher {
	if topic == "" {
		topic = DefaultTopic
	}
	return NewPublisherWithWriter(&kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 50 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
	})
}

func NewPublisherWithWriter(writer MessageWriter) *Publisher {
	return &Publisher{writer: writer}
}

func (p *Publisher) PublishSubmission(ctx context.Context, event domain.SubmissionEvent) error {
	msg, err := submissionMessage(event)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write submission event: %w", err)
	}
	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

func submissionMessage(event domain.SubmissionEvent) (kafka.Message, error) {
	value, err := json.Marshal(event)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("marshal submission event: %w", err)
	}
	return kafka.Message{
		Key:   []byte(event.ParticipantID),
		Value: value,
		Time:  event.SubmittedAt,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte("submission.recorded")},
		},
	}, nil
}
