package events

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/rabbitmq/amqp091-go"
)

// Routing keys on the direct exchange. Each key gets its own durable queue.
const (
	RouteImportCompleted = "import.completed"
	RouteCycleFinalized  = "cycle.finalized"
)

// Client publishes household billing events over AMQP. All publishers in
// the codebase accept a nil *Client and degrade to local-only operation.
type Client struct {
	conn         *amqp091.Connection
	channel      *amqp091.Channel
	exchangeName string
}

func NewClient(url, exchangeName string) (*Client, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial AMQP: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	client := &Client{
		conn:         conn,
		channel:      channel,
		exchangeName: exchangeName,
	}

	if err := client.setup(); err != nil {
		client.Close()
		return nil, fmt.Errorf("setup exchange and queues: %w", err)
	}

	return client, nil
}

func (c *Client) setup() error {
	err := c.channel.ExchangeDeclare(
		c.exchangeName, // name
		"direct",       // type
		true,           // durable
		false,          // auto-deleted
		false,          // internal
		false,          // no-wait
		nil,            // arguments
	)
	if err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	for _, route := range []string{RouteImportCompleted, RouteCycleFinalized} {
		_, err = c.channel.QueueDeclare(
			route, // name
			true,  // durable
			false, // delete when unused
			false, // exclusive
			false, // no-wait
			nil,   // arguments
		)
		if err != nil {
			return fmt.Errorf("declare queue %s: %w", route, err)
		}

		err = c.channel.QueueBind(
			route,          // queue name
			route,          // routing key (same as queue name for direct exchange)
			c.exchangeName, // exchange
			false,
			nil,
		)
		if err != nil {
			return fmt.Errorf("bind queue %s: %w", route, err)
		}
	}

	return nil
}

// PublishImportCompleted publishes an import.completed event.
func (c *Client) PublishImportCompleted(ctx context.Context, msg *ImportCompletedMessage) error {
	body, err := msg.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	if err := c.publish(ctx, RouteImportCompleted, body); err != nil {
		return err
	}

	slog.InfoContext(ctx, "Published import completed event",
		"cycle_id", msg.CycleID,
		"source", msg.Source,
		"added", msg.Added,
		"skipped", msg.Skipped,
		"errors", msg.Errors)

	return nil
}

// PublishCycleFinalized publishes a cycle.finalized event.
func (c *Client) PublishCycleFinalized(ctx context.Context, msg *CycleFinalizedMessage) error {
	body, err := msg.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	if err := c.publish(ctx, RouteCycleFinalized, body); err != nil {
		return err
	}

	slog.InfoContext(ctx, "Published cycle finalized event",
		"cycle_id", msg.CycleID,
		"month_key", msg.MonthKey)

	return nil
}

func (c *Client) publish(ctx context.Context, routingKey string, body []byte) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err := c.channel.PublishWithContext(
		ctx,
		c.exchangeName, // exchange
		routingKey,     // routing key
		false,          // mandatory
		false,          // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent, // make message persistent
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish %s: %w", routingKey, err)
	}

	return nil
}

// ConsumeImportCompleted consumes import.completed events until ctx is done.
func (c *Client) ConsumeImportCompleted(ctx context.Context, handler func(*ImportCompletedMessage) error) error {
	return c.consume(ctx, RouteImportCompleted, func(body []byte) error {
		msg, err := ImportCompletedMessageFromJSON(body)
		if err != nil {
			return fmt.Errorf("unmarshal: %w", err)
		}
		return handler(msg)
	})
}

// ConsumeCycleFinalized consumes cycle.finalized events until ctx is done.
func (c *Client) ConsumeCycleFinalized(ctx context.Context, handler func(*CycleFinalizedMessage) error) error {
	return c.consume(ctx, RouteCycleFinalized, func(body []byte) error {
		msg, err := CycleFinalizedMessageFromJSON(body)
		if err != nil {
			return fmt.Errorf("unmarshal: %w", err)
		}
		return handler(msg)
	})
}

func (c *Client) consume(ctx context.Context, queue string, handle func([]byte) error) error {
	msgs, err := c.channel.Consume(
		queue, // queue
		"",    // consumer
		false, // auto-ack (we want manual ack)
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,   // args
	)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	slog.InfoContext(ctx, "Started consuming events", "queue", queue)

	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "Stopping event consumption", "queue", queue, "reason", ctx.Err())
			return ctx.Err()
		case delivery, ok := <-msgs:
			if !ok {
				return fmt.Errorf("message channel closed")
			}

			if err := handle(delivery.Body); err != nil {
				slog.ErrorContext(ctx, "Failed to handle event",
					"queue", queue, "error", err)
				delivery.Nack(false, false) // reject and don't requeue
				continue
			}

			delivery.Ack(false)
		}
	}
}

func (c *Client) Close() error {
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
