package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jgivc/transmissionbot/internal/entity"
	"github.com/rabbitmq/amqp091-go"
)

const (
	DefaultExchange = "transmissionbot"
	source          = "transmissionbot"
)

type Meta struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	Source     string    `json:"source"`
	OccurredAt time.Time `json:"occurred_at"`
}

type Envelope struct {
	Meta Meta `json:"meta"`
	Data any  `json:"data"`
}

// NewEnvelope wraps data into an envelope with a fresh message id.
func NewEnvelope(eventType string, occurredAt time.Time, data any) Envelope {
	return Envelope{
		Meta: Meta{
			ID:         uuid.NewString(),
			Type:       eventType,
			Source:     source,
			OccurredAt: occurredAt.UTC(),
		},
		Data: data,
	}
}

// Publisher publishes bot events into a topic exchange.
type Publisher struct {
	conn     *amqp091.Connection
	exchange string
	log      *slog.Logger
}

func NewPublisher(url, exchange string, log *slog.Logger) (*Publisher, error) {
	if exchange == "" {
		exchange = DefaultExchange
	}

	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("cannot connect to broker: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()

		return nil, fmt.Errorf("cannot open channel: %w", err)
	}
	defer ch.Close()

	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		conn.Close()

		return nil, fmt.Errorf("cannot declare exchange %s: %w", exchange, err)
	}

	return &Publisher{
		conn:     conn,
		exchange: exchange,
		log:      log.With(slog.String("item", "EventPublisher")),
	}, nil
}

func (p *Publisher) PublishTorrentFinished(ctx context.Context, event *entity.TorrentFinishedEvent) error {
	return p.Publish(ctx, entity.EventTorrentFinished, NewEnvelope(entity.EventTorrentFinished, event.FinishedAt, event))
}

func (p *Publisher) Publish(ctx context.Context, key string, msg Envelope) error {
	ch, err := p.conn.Channel()
	if err != nil {
		return fmt.Errorf("cannot open channel: %w", err)
	}
	defer ch.Close()

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("cannot marshal event: %w", err)
	}

	err = ch.PublishWithContext(ctx, p.exchange, key, false, false, amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		MessageId:    msg.Meta.ID,
		Timestamp:    msg.Meta.OccurredAt,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("cannot publish %s: %w", key, err)
	}

	p.log.Info("Published", slog.String("key", key), slog.String("message_id", msg.Meta.ID))

	return nil
}

func (p *Publisher) Close() error {
	return p.conn.Close()
}
