package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/ticketprozw/ticketpro-backend/internal/provider/email"
)

// StartNotificationConsumer connects to RabbitMQ, declares the
// order.completed queue (durable), and consumes it, sending the order
// confirmation and one ticket delivery email per ticket. It runs a
// reconnect loop with exponential backoff and never returns under
// normal operation; failed messages are rejected without requeue so a
// poison message cannot spin the consumer.
func StartNotificationConsumer(mailer *email.Client) error {
	backoff := time.Second
	for {
		conn, err := amqp.Dial(BrokerURL())
		if err != nil {
			log.Printf("order-consumer: failed to dial broker: %v; retrying in %s", err, backoff)
			time.Sleep(backoff)
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second // reset after successful connect

		if err := consumeLoop(conn, mailer); err != nil {
			log.Printf("order-consumer: consume loop ended: %v; reconnecting", err)
			time.Sleep(2 * time.Second)
			continue
		}
	}
}

func consumeLoop(conn *amqp.Connection, mailer *email.Client) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		log.Printf("order-consumer: set QoS failed: %v", err)
	}

	if _, err := ch.QueueDeclare(orderCompletedQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}

	msgs, err := ch.Consume(orderCompletedQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for d := range msgs {
		if err := handleMessage(d.Body, mailer); err != nil {
			log.Printf("order-consumer: handle message failed: %v", err)
			_ = d.Nack(false, false) // reject, do not requeue to avoid tight loops
			continue
		}
		_ = d.Ack(false)
	}
	return errors.New("deliveries channel closed")
}

func handleMessage(body []byte, mailer *email.Client) error {
	var ev OrderCompletedEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := mailer.Send(ctx, email.Message{
		To:       ev.Email,
		Subject:  fmt.Sprintf("Order %s confirmed", ev.Reference),
		Template: email.TemplateOrderConfirmation,
		Data: map[string]interface{}{
			"full_name":   ev.FullName,
			"reference":   ev.Reference,
			"event_name":  ev.EventName,
			"venue":       ev.Venue,
			"starts_at":   ev.StartsAt,
			"total_cents": ev.TotalCents,
			"currency":    ev.Currency,
			"tickets":     len(ev.Tickets),
		},
	}); err != nil {
		return fmt.Errorf("confirmation mail: %w", err)
	}

	for i, t := range ev.Tickets {
		if err := mailer.Send(ctx, email.Message{
			To:       ev.Email,
			Subject:  fmt.Sprintf("Your ticket %d/%d for %s", i+1, len(ev.Tickets), ev.EventName),
			Template: email.TemplateTicketDelivery,
			Data: map[string]interface{}{
				"full_name":   ev.FullName,
				"event_name":  ev.EventName,
				"venue":       ev.Venue,
				"starts_at":   ev.StartsAt,
				"ticket_type": t.TicketTypeName,
				"credential":  t.Credential,
			},
		}); err != nil {
			return fmt.Errorf("ticket mail %d: %w", i+1, err)
		}
	}
	return nil
}
