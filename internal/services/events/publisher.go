package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/phambaophuc/upcycle-vision/internal/config"
	"github.com/phambaophuc/upcycle-vision/internal/models"
	"github.com/streadway/amqp"
	"go.uber.org/zap"
)

// Publisher sends analysis events to a topic exchange.
type Publisher struct {
	conn       *amqp.Connection
	channel    *amqp.Channel
	exchange   string
	routingKey string
	logger     *zap.Logger
	mu         sync.Mutex
}

func NewPublisher(cfg config.RabbitMQConfig, logger *zap.Logger) (*Publisher, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	err = channel.ExchangeDeclare(
		cfg.Exchange, // name
		"topic",      // type
		true,         // durable
		false,        // auto-deleted
		false,        // internal
		false,        // no-wait
		nil,          // arguments
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	return &Publisher{
		conn:       conn,
		channel:    channel,
		exchange:   cfg.Exchange,
		routingKey: cfg.RoutingKey,
		logger:     logger,
	}, nil
}

// Publish does not wait for broker confirms. ctx is only checked before the
// write since the amqp client has no context support.
func (p *Publisher) Publish(ctx context.Context, event models.AnalysisEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg, err := NewMessage(event)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	err = p.channel.Publish(
		p.exchange,   // exchange
		p.routingKey, // routing key
		false,        // mandatory
		false,        // immediate
		msg,
	)
	if err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	p.logger.Debug("Analysis event published", zap.String("event_id", event.ID))
	return nil
}

// NewMessage encodes an event as a persistent JSON message.
func NewMessage(event models.AnalysisEvent) (amqp.Publishing, error) {
	body, err := json.Marshal(event)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("failed to marshal event: %w", err)
	}

	return amqp.Publishing{
		ContentType:  "application/json",
		MessageId:    event.ID,
		Type:         "analysis." + event.Status,
		Body:         body,
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
	}, nil
}

// HealthCheck checks if RabbitMQ is available
func (p *Publisher) HealthCheck() string {
	if p.conn == nil || p.conn.IsClosed() {
		return models.HealthUnhealthy + ": connection closed"
	}

	if p.channel == nil {
		return models.HealthUnhealthy + ": channel not available"
	}

	return models.HealthHealthy
}

func (p *Publisher) Close() error {
	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
