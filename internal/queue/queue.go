package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Vatsal2401/Auto-Reels-Render/internal/models"
	"github.com/go-redis/redis/v8"
)

// Queue names. Intake receives every render request; the worker's strategy
// router dispatches each job onto one of the per-strategy queues, which are
// drained by independently sized worker pools.
const (
	QueueRenderRequests = "queue:render_requests"
	QueueLocalEncode    = "queue:render_local"
	QueueRemoteRender   = "queue:render_remote"
)

type Queue struct {
	client *redis.Client
}

// Envelope wraps a render job for queue transport. Attempts counts
// deliveries so the worker can bound retries before finalizing a failure.
type Envelope struct {
	Job       models.RenderJob      `json:"job"`
	Strategy  models.RenderStrategy `json:"strategy,omitempty"`
	Attempts  int                   `json:"attempts"`
	CreatedAt time.Time             `json:"created_at"`
}

func New(redisURL string) (*Queue, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Queue{client: client}, nil
}

func (q *Queue) Close() error {
	return q.client.Close()
}

func (q *Queue) Enqueue(ctx context.Context, queueName string, env *Envelope) error {
	if env.CreatedAt.IsZero() {
		env.CreatedAt = time.Now()
	}

	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to marshal job envelope: %w", err)
	}

	return q.client.RPush(ctx, queueName, data).Err()
}

// Dequeue pops the next envelope from the named queue, blocking up to
// timeout. The job payload is validated at this boundary so downstream code
// never probes half-formed fields.
func (q *Queue) Dequeue(ctx context.Context, queueName string, timeout time.Duration) (*Envelope, error) {
	result, err := q.client.BLPop(ctx, timeout, queueName).Result()
	if err == redis.Nil {
		return nil, nil // No job available
	}
	if err != nil {
		return nil, fmt.Errorf("failed to dequeue: %w", err)
	}

	if len(result) != 2 {
		return nil, fmt.Errorf("unexpected redis response")
	}

	var env Envelope
	if err := json.Unmarshal([]byte(result[1]), &env); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job envelope: %w", err)
	}

	if err := env.Job.Validate(); err != nil {
		return nil, fmt.Errorf("invalid job payload: %w", err)
	}

	return &env, nil
}

func (q *Queue) GetQueueLength(ctx context.Context, queueName string) (int64, error) {
	return q.client.LLen(ctx, queueName).Result()
}

// EnqueueRenderRequest places a fresh render job on the intake queue.
func (q *Queue) EnqueueRenderRequest(ctx context.Context, job models.RenderJob) error {
	return q.Enqueue(ctx, QueueRenderRequests, &Envelope{Job: job})
}

// EnqueueForStrategy places a routed job on its strategy queue.
func (q *Queue) EnqueueForStrategy(ctx context.Context, env *Envelope) error {
	switch env.Strategy {
	case models.StrategyRemoteRender:
		return q.Enqueue(ctx, QueueRemoteRender, env)
	case models.StrategyLocalEncode:
		return q.Enqueue(ctx, QueueLocalEncode, env)
	default:
		return fmt.Errorf("unknown render strategy %q", env.Strategy)
	}
}
