package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Publisher sends AuthEvents to RabbitMQ from a single background
// goroutine. Publish never blocks a request: when the buffer is full or
// the broker is down, events are dropped and logged.
type Publisher struct {
	url    string
	log    *zap.Logger
	events chan AuthEvent

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

// NewPublisher creates a publisher with room for buffer pending events.
func NewPublisher(url string, buffer int, log *zap.Logger) *Publisher {
	if buffer <= 0 {
		buffer = 256
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Publisher{url: url, log: log, events: make(chan AuthEvent, buffer)}
}

// Publish enqueues ev for delivery.
func (p *Publisher) Publish(_ context.Context, ev AuthEvent) error {
	select {
	case p.events <- ev:
		return nil
	default:
		p.log.Warn("auth event dropped: buffer full", zap.String("type", ev.Type))
		return fmt.Errorf("publish %s: buffer full", ev.Type)
	}
}

// Run drains the buffer until ctx is cancelled, then closes the broker
// connection.
func (p *Publisher) Run(ctx context.Context) {
	defer p.close()
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-p.events:
			if err := p.send(ctx, ev); err != nil {
				p.log.Warn("auth event not published", zap.String("type", ev.Type), zap.Error(err))
				p.reset()
			}
		}
	}
}

func (p *Publisher) send(ctx context.Context, ev AuthEvent) error {
	ch, err := p.channel()
	if err != nil {
		return err
	}
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent, // store on disk
		Timestamp:    time.Now().UTC(),
		Type:         ev.Type,
		Body:         body,
	}
	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	// default exchange, routing key = queue name
	if err := ch.PublishWithContext(pctx, "", QueueName, false, false, pub); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

// channel returns an open channel, dialing and declaring the queue on
// first use or after a failure.
func (p *Publisher) channel() (*amqp.Channel, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch != nil && !p.ch.IsClosed() {
		return p.ch, nil
	}
	conn, err := amqp.DialConfig(p.url, amqp.Config{
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
		Dial:      amqp.DefaultDial(3 * time.Second),
	})
	if err != nil {
		return nil, fmt.Errorf("dial broker: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("channel open: %w", err)
	}
	// Durable so messages survive broker restarts.
	if _, err := ch.QueueDeclare(QueueName, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("queue declare: %w", err)
	}
	p.conn, p.ch = conn, ch
	return ch, nil
}

func (p *Publisher) reset() {
	p.close()
}

func (p *Publisher) close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch != nil {
		_ = p.ch.Close()
		p.ch = nil
	}
	if p.conn != nil {
		_ = p.conn.Close()
		p.conn = nil
	}
}
