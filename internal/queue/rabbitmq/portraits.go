package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// PortraitJob is the queue payload: only the NPC id plus the attempt
// counter. The pipeline's idempotence makes redelivery safe.
type PortraitJob struct {
	NpcID   string `json:"npc_id"`
	Attempt int    `json:"attempt"`
}

// MaxAttempts bounds durable retries; Backoffs holds the delay applied
// before each requeued attempt.
const MaxAttempts = 3

var Backoffs = []time.Duration{15 * time.Second, 60 * time.Second, 120 * time.Second}

// BackoffFor returns the delay to apply after the given (1-based) failed
// attempt.
func BackoffFor(attempt int) time.Duration {
	idx := attempt - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(Backoffs) {
		idx = len(Backoffs) - 1
	}
	return Backoffs[idx]
}

// DeclareTopology sets up the three portrait queues: the main work queue
// dead-letters rejected messages to the DLQ, and the retry queue holds
// delayed messages whose per-message TTL dead-letters them back onto the
// main queue. Publisher and worker both declare so either can start first.
func DeclareTopology(ch *amqp.Channel, queue string) error {
	mainQ := queue
	retryQ := queue + ".retry"
	dlqQ := queue + ".dlq"

	if _, err := ch.QueueDeclare(dlqQ, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare %s: %w", dlqQ, err)
	}

	if _, err := ch.QueueDeclare(retryQ, true, false, false, false, amqp.Table{
		"x-dead-letter-exchange":    "",
		"x-dead-letter-routing-key": mainQ,
	}); err != nil {
		return fmt.Errorf("declare %s: %w", retryQ, err)
	}

	if _, err := ch.QueueDeclare(mainQ, true, false, false, false, amqp.Table{
		"x-dead-letter-exchange":    "",
		"x-dead-letter-routing-key": dlqQ,
	}); err != nil {
		return fmt.Errorf("declare %s: %w", mainQ, err)
	}
	return nil
}

type Publisher struct {
	conn  *amqp.Connection
	ch    *amqp.Channel
	queue string
}

func NewPublisher(url, queue string) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	if err := DeclareTopology(ch, queue); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}
	return &Publisher{conn: conn, ch: ch, queue: queue}, nil
}

func (p *Publisher) Close() error {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

// EnqueuePortraitJob publishes a first-attempt job onto the main queue.
func (p *Publisher) EnqueuePortraitJob(ctx context.Context, npcID string) error {
	return p.publish(ctx, p.queue, PortraitJob{NpcID: npcID, Attempt: 1}, 0)
}

// RequeueWithDelay publishes the next attempt onto the retry queue with a
// per-message TTL; expiry routes it back to the main queue.
func (p *Publisher) RequeueWithDelay(ctx context.Context, job PortraitJob, delay time.Duration) error {
	return p.publish(ctx, p.queue+".retry", job, delay)
}

func (p *Publisher) publish(ctx context.Context, routingKey string, job PortraitJob, delay time.Duration) error {
	body, err := json.Marshal(job)
	if err != nil {
		return err
	}

	cctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
		Timestamp:    time.Now(),
	}
	if delay > 0 {
		pub.Expiration = fmt.Sprintf("%d", delay.Milliseconds())
	}

	return p.ch.PublishWithContext(cctx, "", routingKey, false, false, pub)
}
