package eventpublisher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	"github.com/iho/bankledger/internal/domain"
)

type amqpChannel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

type amqpConnection interface {
	Channel() (amqpChannel, error)
	Close() error
}

type dialFunc func(url string) (amqpConnection, error)

type realConnection struct {
	*amqp.Connection
}

func (c realConnection) Channel() (amqpChannel, error) {
	return c.Connection.Channel()
}

func dialAMQP(url string) (amqpConnection, error) {
	conn, err := amqp.DialConfig(url, amqp.Config{Dial: amqp.DefaultDial(10 * time.Second)})
	if err != nil {
		return nil, err
	}
	return realConnection{conn}, nil
}

// AMQPConfig configures AMQPPublisher.
type AMQPConfig struct {
	URL      string
	Exchange string
	Logger   zerolog.Logger
	// MaxFailures consecutive publish failures open the breaker.
	MaxFailures uint32
	// OpenTimeout is how long the breaker stays open before probing.
	OpenTimeout time.Duration
	// ConnectWait bounds the reconnect backoff of a single publish.
	ConnectWait time.Duration
}

// AMQPPublisher publishes outbox events to a durable topic exchange, routed
// by event type. A circuit breaker stops hammering a broker that is down.
type AMQPPublisher struct {
	cfg     AMQPConfig
	dial    dialFunc
	breaker *gobreaker.CircuitBreaker
	logger  zerolog.Logger

	mu   sync.Mutex
	conn amqpConnection
	ch   amqpChannel
}

// NewAMQPPublisher creates a publisher. The connection is opened lazily on
// the first publish.
func NewAMQPPublisher(cfg AMQPConfig) *AMQPPublisher {
	return newAMQPPublisher(cfg, dialAMQP)
}

func newAMQPPublisher(cfg AMQPConfig, dial dialFunc) *AMQPPublisher {
	if cfg.MaxFailures == 0 {
		cfg.MaxFailures = 5
	}
	if cfg.OpenTimeout == 0 {
		cfg.OpenTimeout = 30 * time.Second
	}
	if cfg.ConnectWait == 0 {
		cfg.ConnectWait = 2 * time.Second
	}
	logger := cfg.Logger.With().Str("component", "amqp_publisher").Str("exchange", cfg.Exchange).Logger()

	p := &AMQPPublisher{cfg: cfg, dial: dial, logger: logger}
	p.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "amqp-publisher",
		Timeout: cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.MaxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn().Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state changed")
		},
	})
	return p
}

// Publish sends event to the exchange with the event type as routing key.
func (p *AMQPPublisher) Publish(ctx context.Context, event *domain.OutboxEvent) error {
	body, err := json.Marshal(event.Payload)
	if err != nil {
		return err
	}

	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    event.ID,
		Type:         event.EventType,
		Timestamp:    event.CreatedAt,
		Headers: amqp.Table{
			"aggregate_type": event.AggregateType,
			"aggregate_id":   event.AggregateID,
		},
		Body: body,
	}

	_, err = p.breaker.Execute(func() (interface{}, error) {
		return nil, p.publish(ctx, event.EventType, msg)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return err
}

func (p *AMQPPublisher) publish(ctx context.Context, routingKey string, msg amqp.Publishing) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	ch, err := p.channel(ctx)
	if err != nil {
		return err
	}

	if err := ch.PublishWithContext(ctx, p.cfg.Exchange, routingKey, false, false, msg); err != nil {
		// Drop the channel so the next attempt reconnects.
		p.resetLocked()
		return fmt.Errorf("publish %s: %w", routingKey, err)
	}
	return nil
}

// channel returns the open channel, connecting with backoff if needed.
// Caller holds p.mu.
func (p *AMQPPublisher) channel(ctx context.Context) (amqpChannel, error) {
	if p.ch != nil {
		return p.ch, nil
	}

	connect := func() error {
		conn, err := p.dial(p.cfg.URL)
		if err != nil {
			return err
		}
		ch, err := conn.Channel()
		if err != nil {
			conn.Close()
			return err
		}
		if err := ch.ExchangeDeclare(p.cfg.Exchange, "topic", true, false, false, false, nil); err != nil {
			ch.Close()
			conn.Close()
			return err
		}
		p.conn, p.ch = conn, ch
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 50 * time.Millisecond
	b.MaxElapsedTime = p.cfg.ConnectWait
	notify := func(err error, wait time.Duration) {
		p.logger.Warn().Err(err).Dur("retry_in", wait).Msg("amqp connect failed")
	}
	if err := backoff.RetryNotify(connect, backoff.WithContext(b, ctx), notify); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}
	p.logger.Info().Msg("amqp connected")
	return p.ch, nil
}

func (p *AMQPPublisher) resetLocked() {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
	p.ch, p.conn = nil, nil
}

// State reports the circuit breaker state.
func (p *AMQPPublisher) State() gobreaker.State {
	return p.breaker.State()
}

// Close closes the broker connection.
func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.resetLocked()
	return nil
}
