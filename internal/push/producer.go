package push

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
)

// Producer publishes push payloads to the push topic. Its main consumer
// is the test-notification path in avtochatd.
type Producer struct {
	sync  sarama.SyncProducer
	topic string
}

func NewProducer(brokers []string, topic string) (*Producer, error) {
	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_5_0_0
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Return.Successes = true
	sync, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, err
	}
	return &Producer{sync: sync, topic: topic}, nil
}

// Publish serializes and sends one payload.
func (p *Producer) Publish(key string, payload Payload) error {
	if payload.Timestamp == 0 {
		payload.Timestamp = time.Now().UnixMilli()
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal push payload: %w", err)
	}
	_, _, err = p.sync.SendMessage(&sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.ByteEncoder(raw),
	})
	return err
}

// PublishTest sends a synthetic notification, used to verify the
// broker-to-inbox path end to end.
func (p *Producer) PublishTest() error {
	return p.Publish("test", Payload{
		Title: "Тестово известие",
		Body:  "Това е тестово известие от avtochatd.",
		Type:  "system",
	})
}

func (p *Producer) Close() error {
	if p.sync == nil {
		return nil
	}
	return p.sync.Close()
}
