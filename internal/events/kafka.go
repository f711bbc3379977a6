package events

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
)

// Kafka writes events to one topic, keyed by post id so a post's events
// stay ordered within a partition.
type Kafka struct {
	w *kafka.Writer
}

func NewKafka(brokers []string, topic string, log *logrus.Logger) *Kafka {
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 50 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
		Async:        true,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				log.WithError(err).WithField("messages", len(messages)).Warn("kafka: publish failed")
			}
		},
	}
	return &Kafka{w: w}
}

func (k *Kafka) Publish(ctx context.Context, e Event) error {
	value, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return k.w.WriteMessages(ctx, kafka.Message{
		Key:   []byte(strconv.FormatInt(e.PostID, 10)),
		Value: value,
		Time:  e.At,
	})
}

func (k *Kafka) Close() error { return k.w.Close() }
