package security

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hirewire/auth-service/internal/infrastructure/kafka"
)

// KafkaSink publishes events to the security topic. Delivery is
// fire-and-forget: the send runs on its own goroutine with a few retries and
// a failure only reaches the log, never the request that produced the event.
type KafkaSink struct {
	producer kafka.KafkaProducer
	topic    string
}

func NewKafkaSink(producer kafka.KafkaProducer, topic string) *KafkaSink {
	return &KafkaSink{producer: producer, topic: topic}
}

func (s *KafkaSink) Emit(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	eventBytes, err := json.Marshal(event)
	if err != nil {
		slog.Error("failed to marshal security event", "kind", event.Kind, "error", err)
		return
	}

	go func() {
		retries := 3
		for i := 0; i < retries; i++ {
			if err := s.producer.Send(context.Background(), s.topic, string(event.Kind), eventBytes); err == nil {
				return
			}
			time.Sleep(time.Second * time.Duration(i+1))
		}
		slog.Error("failed to send security event after retries",
			"kind", event.Kind,
			"identity", event.Identity)
	}()
}
