package eventpublisher

import (
	"context"
	"errors"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iho/bankledger/internal/domain"
)

type fakeChannel struct {
	declared  []string
	published []amqp.Publishing
	keys      []string
	failNext  error
	closed    bool
}

func (c *fakeChannel) ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error {
	c.declared = append(c.declared, name+":"+kind)
	return nil
}

func (c *fakeChannel) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	if c.failNext != nil {
		err := c.failNext
		c.failNext = nil
		return err
	}
	c.keys = append(c.keys, key)
	c.published = append(c.published, msg)
	return nil
}

func (c *fakeChannel) Close() error {
	c.closed = true
	return nil
}

type fakeConnection struct {
	ch *fakeChannel
}

func (c *fakeConnection) Channel() (amqpChannel, error) { return c.ch, nil }
func (c *fakeConnection) Close() error                  { return nil }

type fakeBroker struct {
	dials    int
	channels []*fakeChannel
	down     bool
}

func (b *fakeBroker) dial(string) (amqpConnection, error) {
	b.dials++
	if b.down {
		return nil, errors.New("connection refused")
	}
	ch := &fakeChannel{}
	b.channels = append(b.channels, ch)
	return &fakeConnection{ch: ch}, nil
}

func testEvent() *domain.OutboxEvent {
	return &domain.OutboxEvent{
		ID:            "evt-1",
		AggregateID:   "tr-1",
		AggregateType: domain.AggregateTypeTransfer,
		EventType:     domain.EventTypeTransferApproved,
		Payload:       map[string]any{"transfer_id": "tr-1"},
		CreatedAt:     time.Now(),
	}
}

func TestAMQPPublisher_PublishesWithRoutingKey(t *testing.T) {
	broker := &fakeBroker{}
	pub := newAMQPPublisher(AMQPConfig{Exchange: "bankledger.events", Logger: zerolog.Nop()}, broker.dial)

	require.NoError(t, pub.Publish(context.Background(), testEvent()))
	require.NoError(t, pub.Publish(context.Background(), testEvent()))

	assert.Equal(t, 1, broker.dials, "connection is reused")
	ch := broker.channels[0]
	assert.Equal(t, []string{"bankledger.events:topic"}, ch.declared)
	assert.Equal(t, []string{domain.EventTypeTransferApproved, domain.EventTypeTransferApproved}, ch.keys)

	msg := ch.published[0]
	assert.Equal(t, "evt-1", msg.MessageId)
	assert.Equal(t, amqp.Persistent, msg.DeliveryMode)
	assert.Equal(t, "tr-1", msg.Headers["aggregate_id"])
	assert.JSONEq(t, `{"transfer_id":"tr-1"}`, string(msg.Body))
}

func TestAMQPPublisher_ReconnectsAfterPublishFailure(t *testing.T) {
	broker := &fakeBroker{}
	pub := newAMQPPublisher(AMQPConfig{Exchange: "x", Logger: zerolog.Nop()}, broker.dial)

	require.NoError(t, pub.Publish(context.Background(), testEvent()))
	broker.channels[0].failNext = errors.New("channel closed")

	assert.Error(t, pub.Publish(context.Background(), testEvent()))
	assert.True(t, broker.channels[0].closed)

	require.NoError(t, pub.Publish(context.Background(), testEvent()))
	assert.Equal(t, 2, broker.dials)
}

func TestAMQPPublisher_BreakerOpensWhenBrokerIsDown(t *testing.T) {
	broker := &fakeBroker{down: true}
	pub := newAMQPPublisher(AMQPConfig{
		Exchange:    "x",
		Logger:      zerolog.Nop(),
		MaxFailures: 2,
		OpenTimeout: time.Minute,
		ConnectWait: 30 * time.Millisecond,
	}, broker.dial)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for i := 0; i < 2; i++ {
		err := pub.Publish(ctx, testEvent())
		require.Error(t, err)
		assert.False(t, errors.Is(err, ErrUnavailable))
	}
	assert.Equal(t, gobreaker.StateOpen, pub.State())

	dials := broker.dials
	err := pub.Publish(ctx, testEvent())
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, dials, broker.dials, "open breaker must not dial")
}
