package queue

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

const dialTimeout = 2 * time.Second

// Publisher sends audit events to AuditQueueName. Each call dials its own
// connection so a broker outage never leaves a stale channel behind.
type Publisher struct {
	url string
	log zerolog.Logger
}

// NewPublisher returns a Publisher for the broker at url.
func NewPublisher(url string, log zerolog.Logger) *Publisher {
	return &Publisher{url: url, log: log.With().Str("component", "audit-publisher").Logger()}
}

// Publish delivers ev as a persistent JSON message. Errors are logged and
// returned; callers treat them as non-fatal.
func (p *Publisher) Publish(ctx context.Context, ev AuditEvent) error {
	conn, err := amqp.DialConfig(p.url, amqp.Config{Dial: amqp.DefaultDial(dialTimeout)})
	if err != nil {
		p.log.Warn().Err(err).Str("event", ev.Type).Msg("dial failed")
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		p.log.Warn().Err(err).Msg("channel open failed")
		return err
	}
	defer func() { _ = ch.Close() }()

	if _, err := declareAuditQueue(ch); err != nil {
		p.log.Warn().Err(err).Msg("queue declare failed")
		return err
	}

	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    ev.ID,
		Type:         ev.Type,
		Timestamp:    ev.At,
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", AuditQueueName, false, false, pub); err != nil {
		p.log.Warn().Err(err).Str("event", ev.Type).Msg("publish failed")
		return err
	}
	return nil
}

func declareAuditQueue(ch *amqp.Channel) (amqp.Queue, error) {
	return ch.QueueDeclare(AuditQueueName, true, false, false, false, nil)
}

// NopPublisher drops events. Used when auditing is disabled.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, AuditEvent) error { return nil }
