package events

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/segmentio/kafka-go"
)

const HeaderMessageID = "message_id"

var ErrEmptyMessageID = errors.New("message id is required")

// Message is one event for the bus. Attributes travel as Kafka headers so
// consumers can filter without decoding the payload.
type Message struct {
	ID         string
	Key        string
	Payload    []byte
	Attributes map[string]string
}

type Publisher interface {
	Publish(ctx context.Context, msg Message) (string, error)
	Close() error
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type KafkaPublisher struct {
	writer messageWriter
}

func NewKafkaPublisher(topic string, brokers ...string) *KafkaPublisher {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return &KafkaPublisher{writer: w}
}

// Publish writes msg and returns its id. Delivery is at-least-once, so the id
// stays the same when an event is published again.
func (p *KafkaPublisher) Publish(ctx context.Context, msg Message) (string, error) {
	if msg.ID == "" {
		return "", ErrEmptyMessageID
	}
	key := msg.Key
	if key == "" {
		key = msg.ID
	}

	headers := []kafka.Header{{Key: HeaderMessageID, Value: []byte(msg.ID)}}
	names := make([]string, 0, len(msg.Attributes))
	for name := range msg.Attributes {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		headers = append(headers, kafka.Header{Key: name, Value: []byte(msg.Attributes[name])})
	}

	err := p.writer.WriteMessages(ctx, kafka.Message{
		Key:     []byte(key),
		Value:   msg.Payload,
		Headers: headers,
		Time:    time.Now().UTC(),
	})
	if err != nil {
		return "", fmt.Errorf("publish message %s: %w", msg.ID, err)
	}
	return msg.ID, nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// HeaderValue returns the value of the named header or "".
func HeaderValue(m kafka.Message, name string) string {
	for _, h := range m.Headers {
		if h.Key == name {
			return string(h.Value)
		}
	}
	return ""
}
