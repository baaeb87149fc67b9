package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	ce "github.com/cloudevents/sdk-go/v2"
	"github.com/dmehra2102/prod-golang-projects/telecare/internal/config"
	"github.com/dmehra2102/prod-golang-projects/telecare/pkg/metrics"
	"go.uber.org/zap"
)

const contentType = "application/cloudevents+json"

// NewSaramaConfig returns the client settings shared by producer and consumer.
func NewSaramaConfig(cfg config.KafkaConfig) *sarama.Config {
	sc := sarama.NewConfig()
	sc.ClientID = cfg.ClientID

	sc.Producer.RequiredAcks = sarama.WaitForAll
	sc.Producer.Return.Successes = true
	sc.Producer.Retry.Max = 5
	sc.Producer.Retry.Backoff = 250 * time.Millisecond

	sc.Consumer.Offsets.Initial = sarama.OffsetOldest
	sc.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}
	return sc
}

// Kafka publishes envelopes to a single topic, keyed by subject so events of
// one aggregate stay ordered.
type Kafka struct {
	producer sarama.SyncProducer
	topic    string
	metrics  *metrics.Collector
	log      *zap.Logger
}

func NewKafka(cfg config.KafkaConfig, m *metrics.Collector, log *zap.Logger) (*Kafka, error) {
	producer, err := sarama.NewSyncProducer(cfg.Brokers, NewSaramaConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("creating kafka producer: %w", err)
	}
	return NewKafkaWithProducer(producer, cfg.Topic, m, log), nil
}

func NewKafkaWithProducer(p sarama.SyncProducer, topic string, m *metrics.Collector, log *zap.Logger) *Kafka {
	return &Kafka{producer: p, topic: topic, metrics: m, log: log.Named("events")}
}

func (k *Kafka) Publish(_ context.Context, e Event) (err error) {
	defer func() {
		if k.metrics != nil {
			result := "ok"
			if err != nil {
				result = "error"
			}
			k.metrics.EventsPublished.WithLabelValues(e.Type, result).Inc()
		}
	}()

	env, err := Envelope(e, time.Now())
	if err != nil {
		return err
	}
	value, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encoding envelope: %w", err)
	}

	partition, offset, err := k.producer.SendMessage(&sarama.ProducerMessage{
		Topic: k.topic,
		Key:   sarama.StringEncoder(e.Subject),
		Value: sarama.ByteEncoder(value),
		Headers: []sarama.RecordHeader{
			{Key: []byte("content-type"), Value: []byte(contentType)},
		},
	})
	if err != nil {
		return fmt.Errorf("publishing %s: %w", e.Type, err)
	}
	k.log.Debug("event published",
		zap.String("type", env.Type()),
		zap.String("subject", e.Subject),
		zap.Int32("partition", partition),
		zap.Int64("offset", offset),
	)
	return nil
}

func (k *Kafka) Close() error {
	return k.producer.Close()
}

// Consumer feeds envelopes from the topic to a Handler as part of a
// consumer group.
type Consumer struct {
	group   sarama.ConsumerGroup
	topic   string
	handler Handler
	log     *zap.Logger
}

func NewConsumer(cfg config.KafkaConfig, h Handler, log *zap.Logger) (*Consumer, error) {
	group, err := sarama.NewConsumerGroup(cfg.Brokers, cfg.ConsumerGroup, NewSaramaConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("creating consumer group: %w", err)
	}
	return &Consumer{group: group, topic: cfg.Topic, handler: h, log: log.Named("consumer")}, nil
}

// Run consumes until ctx is cancelled. Consume returns on every rebalance,
// so it is called in a loop.
func (c *Consumer) Run(ctx context.Context) error {
	go func() {
		for err := range c.group.Errors() {
			c.log.Error("consumer group error", zap.Error(err))
		}
	}()

	for {
		if err := c.group.Consume(ctx, []string{c.topic}, c); err != nil {
			if errors.Is(err, sarama.ErrClosedConsumerGroup) {
				return nil
			}
			c.log.Error("consume failed", zap.Error(err))
			select {
			case <-ctx.Done():
			case <-time.After(time.Second):
			}
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

func (c *Consumer) Close() error {
	return c.group.Close()
}

func (c *Consumer) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (c *Consumer) Cleanup(sarama.ConsumerGroupSession) error { return nil }

// ConsumeClaim marks every message after handling it, including failures, so
// one bad message cannot stall the partition.
func (c *Consumer) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case msg, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			c.handleMessage(session.Context(), msg)
			session.MarkMessage(msg, "")
		case <-session.Context().Done():
			return nil
		}
	}
}

func (c *Consumer) handleMessage(ctx context.Context, msg *sarama.ConsumerMessage) {
	if msg == nil {
		return
	}
	log := c.log.With(
		zap.String("topic", msg.Topic),
		zap.Int32("partition", msg.Partition),
		zap.Int64("offset", msg.Offset),
	)

	env := ce.NewEvent()
	if err := json.Unmarshal(msg.Value, &env); err != nil {
		log.Error("dropping undecodable message", zap.Error(err))
		return
	}
	if err := c.handler.Handle(ctx, env); err != nil {
		log.Error("event handler failed", zap.String("type", env.Type()), zap.Error(err))
	}
}
