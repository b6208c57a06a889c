package push

import (
	"context"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"github.com/avtopazar/avtochat/internal/bus"
	"github.com/avtopazar/avtochat/internal/inbox"
)

// EventReceived is published on the bus after a notification lands in
// the inbox.
const EventReceived = "inbox.received"

// Consumer reads push payloads from the push topic via a Kafka consumer
// group and adds them to the inbox. Malformed payloads are logged and
// skipped; they are still marked consumed so the group does not stall.
type Consumer struct {
	group  sarama.ConsumerGroup
	topic  string
	inbox  *inbox.Inbox
	bus    *bus.Bus
	logger *zap.Logger
}

func NewConsumer(brokers []string, groupID, topic string, in *inbox.Inbox, b *bus.Bus, logger *zap.Logger) (*Consumer, error) {
	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_5_0_0
	cfg.Consumer.Offsets.Initial = sarama.OffsetNewest
	g, err := sarama.NewConsumerGroup(brokers, groupID, cfg)
	if err != nil {
		return nil, err
	}
	return &Consumer{group: g, topic: topic, inbox: in, bus: b, logger: logger}, nil
}

// Run consumes until ctx is cancelled. Consume returns on rebalance, so
// it loops.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		if err := c.group.Consume(ctx, []string{c.topic}, groupHandler{consumer: c}); err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

func (c *Consumer) Close() error {
	return c.group.Close()
}

func (c *Consumer) handle(raw []byte) {
	n, err := Decode(raw)
	if err != nil {
		c.logger.Warn("skipping malformed push payload", zap.Error(err))
		return
	}
	added := c.inbox.Add(n)
	c.bus.Publish(bus.Event{
		Kind:    EventReceived,
		At:      time.Now(),
		Payload: added,
	})
}

type groupHandler struct {
	consumer *Consumer
}

func (h groupHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (h groupHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (h groupHandler) ConsumeClaim(sess sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for message := range claim.Messages() {
		h.consumer.handle(message.Value)
		sess.MarkMessage(message, "")
	}
	return nil
}
