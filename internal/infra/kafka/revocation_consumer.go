package kafka

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"github.com/Mohhit1230/Chat-App/internal/core/domain"
	"github.com/Mohhit1230/Chat-App/internal/infra/config"
	"github.com/Mohhit1230/Chat-App/internal/infra/logger"
)

// RevocationApplier stores a revocation under an already-derived store key.
type RevocationApplier interface {
	PutKey(ctx context.Context, key string, ttl time.Duration) error
}

// RevocationConsumerOptions controls origin filtering and lag monitoring.
type RevocationConsumerOptions struct {
	Origin      string
	MaxEventLag time.Duration
}

// RevocationConsumer applies revocations announced by peer instances to the local store.
type RevocationConsumer struct {
	store       RevocationApplier
	logger      *zap.Logger
	origin      string
	maxEventLag time.Duration
	now         func() time.Time
}

// NewRevocationConsumer constructs a consumer that keeps the local store in step with peers.
func NewRevocationConsumer(store RevocationApplier, log *zap.Logger, opts RevocationConsumerOptions) *RevocationConsumer {
	if log == nil {
		log = zap.NewNop()
	}
	consumer := &RevocationConsumer{
		store:       store,
		logger:      log,
		origin:      opts.Origin,
		maxEventLag: opts.MaxEventLag,
	}
	consumer.now = func() time.Time { return time.Now().UTC() }
	return consumer
}

// WithClock overrides the consumer clock for deterministic testing.
func (c *RevocationConsumer) WithClock(clock func() time.Time) *RevocationConsumer {
	if clock != nil {
		c.now = clock
	}
	return c
}

// HandleMessage decodes a Kafka message prior to processing.
func (c *RevocationConsumer) HandleMessage(ctx context.Context, msg *sarama.ConsumerMessage) error {
	if msg == nil {
		return fmt.Errorf("message is nil")
	}

	event, err := decodeTokenRevoked(msg.Value)
	if err != nil {
		return err
	}
	return c.HandleEvent(ctx, event)
}

// HandleEvent stores the revocation for the rest of the token lifetime. Events
// emitted by this instance and already-expired tokens are skipped.
func (c *RevocationConsumer) HandleEvent(ctx context.Context, event domain.TokenRevokedEvent) error {
	if c.store == nil || event.Key == "" {
		return nil
	}
	if c.origin != "" && event.Origin == c.origin {
		return nil
	}

	now := c.now()
	ttl := event.TTL(now)
	if ttl <= 0 {
		c.logger.Debug("skip expired revocation", zap.String("event_id", event.EventID))
		return nil
	}

	if !event.RevokedAt.IsZero() && c.maxEventLag > 0 {
		if lag := now.Sub(event.RevokedAt); lag > c.maxEventLag {
			c.logger.Warn("token revocation event lag exceeds threshold",
				zap.Duration("lag", lag),
				zap.Duration("threshold", c.maxEventLag),
				zap.String("event_id", event.EventID),
			)
		}
	}

	if err := c.store.PutKey(ctx, event.Key, ttl); err != nil {
		return fmt.Errorf("apply peer revocation: %w", err)
	}

	c.logger.Debug("applied peer revocation",
		zap.String("event_id", event.EventID),
		zap.String("key", logger.MaskToken(event.Key)),
		zap.Duration("ttl", ttl),
	)
	return nil
}

// Setup implements sarama.ConsumerGroupHandler.
func (c *RevocationConsumer) Setup(sarama.ConsumerGroupSession) error { return nil }

// Cleanup implements sarama.ConsumerGroupHandler.
func (c *RevocationConsumer) Cleanup(sarama.ConsumerGroupSession) error { return nil }

// ConsumeClaim implements sarama.ConsumerGroupHandler. Undecodable messages are
// logged and committed so a poison message cannot stall the partition.
func (c *RevocationConsumer) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case msg, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			if err := c.HandleMessage(session.Context(), msg); err != nil {
				c.logger.Warn("token revoked message rejected",
					zap.String("topic", msg.Topic),
					zap.Int32("partition", msg.Partition),
					zap.Int64("offset", msg.Offset),
					zap.Error(err),
				)
			}
			session.MarkMessage(msg, "")
		case <-session.Context().Done():
			return nil
		}
	}
}

// ConsumerGroup runs a RevocationConsumer against the revocation topic.
type ConsumerGroup struct {
	group   sarama.ConsumerGroup
	handler sarama.ConsumerGroupHandler
	topic   string
	logger  *zap.Logger
}

// NewConsumerGroup joins groupID on the configured brokers. Every instance needs
// every revocation, so callers pass a group ID unique to the instance.
func NewConsumerGroup(cfg config.KafkaSettings, groupID, clientID string, handler sarama.ConsumerGroupHandler, log *zap.Logger) (*ConsumerGroup, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers are not configured")
	}
	if groupID == "" {
		return nil, fmt.Errorf("kafka consumer group id is required")
	}
	if log == nil {
		log = zap.NewNop()
	}

	saramaConfig := newSaramaConfig(clientID)
	saramaConfig.Consumer.Offsets.Initial = sarama.OffsetNewest
	saramaConfig.Consumer.Return.Errors = true

	group, err := sarama.NewConsumerGroup(cfg.Brokers, groupID, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("create kafka consumer group: %w", err)
	}

	return &ConsumerGroup{
		group:   group,
		handler: handler,
		topic:   topicName(cfg.TopicPrefix, TokenRevokedEventType),
		logger:  log,
	}, nil
}

// Run consumes until ctx is cancelled, rejoining the group after rebalances.
func (g *ConsumerGroup) Run(ctx context.Context) error {
	go func() {
		for err := range g.group.Errors() {
			g.logger.Warn("Kafka consumer error", zap.Error(err))
		}
	}()

	for {
		if err := g.group.Consume(ctx, []string{g.topic}, g.handler); err != nil {
			if errors.Is(err, sarama.ErrClosedConsumerGroup) {
				return nil
			}
			g.logger.Warn("Kafka consume session ended", zap.Error(err))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
			}
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

// Close leaves the consumer group.
func (g *ConsumerGroup) Close() error {
	if err := g.group.Close(); err != nil {
		return fmt.Errorf("close kafka consumer group: %w", err)
	}
	return nil
}

var _ sarama.ConsumerGroupHandler = (*RevocationConsumer)(nil)
