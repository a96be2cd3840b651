package infrastructure

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"revenda_bot/internal/interfaces"
)

// EventMeta identifies one published event.
type EventMeta struct {
	ID         string    `json:"id"`
	Key        string    `json:"key"`
	Source     string    `json:"source"`
	OccurredAt time.Time `json:"occurred_at"`
}

// EventEnvelope is the body of every message on the exchange.
type EventEnvelope struct {
	Meta EventMeta `json:"meta"`
	Data any       `json:"data"`
}

func newEnvelope(key string, data any) EventEnvelope {
	return EventEnvelope{
		Meta: EventMeta{ID: uuid.NewString(), Key: key, Source: "revenda-bot", OccurredAt: time.Now().UTC()},
		Data: data,
	}
}

type rmqPublisher struct {
	conn     *amqp091.Connection
	exchange string
	log      zerolog.Logger
}

// NewEventPublisher connects to RabbitMQ and declares a durable topic exchange.
func NewEventPublisher(url, exchange string, log zerolog.Logger) (interfaces.EventPublisher, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}
	defer ch.Close()
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, err
	}
	return &rmqPublisher{
		conn:     conn,
		exchange: exchange,
		log:      log.With().Str("component", "events").Logger(),
	}, nil
}

func (r *rmqPublisher) Publish(ctx context.Context, key string, data any) error {
	ch, err := r.conn.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	env := newEnvelope(key, data)
	body, err := json.Marshal(env)
	if err != nil {
		return err
	}
	err = ch.PublishWithContext(ctx, r.exchange, key, false, false, amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		MessageId:    env.Meta.ID,
		Timestamp:    env.Meta.OccurredAt,
		Body:         body,
	})
	if err == nil {
		r.log.Debug().Str("key", key).Str("exchange", r.exchange).Msg("published")
	}
	return err
}

func (r *rmqPublisher) Close() error {
	return r.conn.Close()
}

// FallbackPublisher drops events when no broker is configured.
type FallbackPublisher struct {
	log zerolog.Logger
}

func NewFallbackPublisher(log zerolog.Logger) interfaces.EventPublisher {
	return &FallbackPublisher{log: log.With().Str("component", "events").Logger()}
}

func (p *FallbackPublisher) Publish(_ context.Context, key string, _ any) error {
	p.log.Debug().Str("key", key).Msg("no broker configured, event skipped")
	return nil
}

func (p *FallbackPublisher) Close() error { return nil }
