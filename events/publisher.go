package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"liblend/model"
)

const (
	exchangeName = "library.events"
	exchangeType = "topic"

	EventTypeReservationFulfilled = "reservation.fulfilled"
	EventTypeLoanOverdue          = "loan.overdue"
)

// Event is the JSON envelope every notification rides in.
type Event struct {
	EventID   string         `json:"event_id"`
	EventType string         `json:"event_type"`
	Timestamp string         `json:"timestamp"`
	Payload   map[string]any `json:"payload"`
}

// Publisher fans notifications out over a RabbitMQ topic exchange.
type Publisher struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	log     *slog.Logger
}

func NewPublisher(url string, log *slog.Logger) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if err := channel.ExchangeDeclare(
		exchangeName,
		exchangeType,
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	log.Info("connected to RabbitMQ", "exchange", exchangeName)
	return &Publisher{conn: conn, channel: channel, log: log}, nil
}

// ReservationFulfilled tells the holder their copy is waiting. They still
// have to borrow it; the event grants no hold on the copy.
func (p *Publisher) ReservationFulfilled(ctx context.Context, res model.Reservation) error {
	return p.publish(ctx, EventTypeReservationFulfilled, map[string]any{
		"reservation_id": res.ID,
		"user_id":        res.UserID,
		"book_id":        res.BookID,
	})
}

func (p *Publisher) LoanOverdue(ctx context.Context, loan model.Loan, overdueDays int64, accruedFine float64) error {
	return p.publish(ctx, EventTypeLoanOverdue, map[string]any{
		"loan_id":      loan.ID,
		"user_id":      loan.UserID,
		"book_id":      loan.BookID,
		"due_date":     loan.DueDate.Format(time.RFC3339),
		"overdue_days": overdueDays,
		"accrued_fine": accruedFine,
	})
}

func (p *Publisher) publish(ctx context.Context, routingKey string, payload map[string]any) error {
	event := Event{
		EventID:   uuid.New().String(),
		EventType: routingKey,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   payload,
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	err = p.channel.PublishWithContext(
		ctx,
		exchangeName,
		routingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
			MessageId:    event.EventID,
			Body:         body,
			Headers: amqp.Table{
				"event_type": event.EventType,
			},
		},
	)
	if err != nil {
		p.log.Warn("event publish failed", "event_type", routingKey, "err", err)
		return err
	}

	p.log.Info("event published", "event_id", event.EventID, "event_type", routingKey)
	return nil
}

func (p *Publisher) IsHealthy() bool {
	return p.conn != nil && !p.conn.IsClosed()
}

func (p *Publisher) Close() error {
	if p.channel != nil {
		_ = p.channel.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

// Nop is used when no broker is configured; notifications drop silently.
type Nop struct{}

func (Nop) ReservationFulfilled(context.Context, model.Reservation) error { return nil }
func (Nop) LoanOverdue(context.Context, model.Loan, int64, float64) error { return nil }
