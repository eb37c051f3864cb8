package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/frahmantamala/acuhire/internal/core/events"
	amqp "github.com/rabbitmq/amqp091-go"
)

const DefaultQueue = "audit.events"

// BrokerChannel is the slice of *amqp.Channel the forwarder and consumer use.
type BrokerChannel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Qos(prefetchCount, prefetchSize int, global bool) error
	ConsumeWithContext(ctx context.Context, queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
	Close() error
}

// Forwarder copies audit events from the in-process bus to a durable
// RabbitMQ queue for downstream consumers. It owns ch.
type Forwarder struct {
	ch     BrokerChannel
	queue  string
	logger *slog.Logger
	// amqp channels are not safe for concurrent publishes
	mu sync.Mutex
}

func NewForwarder(ch BrokerChannel, queue string, logger *slog.Logger) (*Forwarder, error) {
	if queue == "" {
		queue = DefaultQueue
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("declare queue %s: %w", queue, err)
	}
	return &Forwarder{ch: ch, queue: queue, logger: logger}, nil
}

// Subscribe registers the forwarder on the bus.
func (f *Forwarder) Subscribe(bus *events.EventBus) {
	bus.Subscribe(events.EventTypeAuditRecorded, f.Handle)
}

func (f *Forwarder) Handle(ctx context.Context, event events.Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	f.mu.Lock()
	defer f.mu.Unlock()
	err = f.ch.PublishWithContext(ctx, "", f.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    event.EventID(),
		Timestamp:    event.OccurredAt().UTC(),
		Type:         event.EventType(),
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish audit event %s: %w", event.EventID(), err)
	}
	return nil
}

func (f *Forwarder) Close() error {
	return f.ch.Close()
}

// Consume delivers queued audit events to handle until ctx is done. A
// delivery is acked when handle succeeds and requeued once otherwise.
// Undecodable bodies are dropped without requeue.
func Consume(ctx context.Context, ch BrokerChannel, queue string, logger *slog.Logger, handle func(context.Context, events.AuditRecordedEvent) error) error {
	if queue == "" {
		queue = DefaultQueue
	}
	defer ch.Close()

	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue %s: %w", queue, err)
	}
	if err := ch.Qos(16, 0, false); err != nil {
		return fmt.Errorf("set qos: %w", err)
	}
	deliveries, err := ch.ConsumeWithContext(ctx, queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", queue, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("delivery channel for %s closed", queue)
			}
			var evt events.AuditRecordedEvent
			if err := json.Unmarshal(d.Body, &evt); err != nil {
				logger.Error("dropping undecodable audit event", "message_id", d.MessageId, "error", err)
				_ = d.Nack(false, false)
				continue
			}
			if err := handle(ctx, evt); err != nil {
				logger.Warn("audit event handler failed", "event_id", evt.ID, "redelivered", d.Redelivered, "error", err)
				_ = d.Nack(false, !d.Redelivered)
				continue
			}
			_ = d.Ack(false)
		}
	}
}
