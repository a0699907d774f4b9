// Package queue carries ingest jobs over Redis with asynq.
package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/ai-teammate/mytube/moments/internal/ingest"
)

const (
	// TypeProcessMoment is scheduled each time a raw moment upload lands.
	TypeProcessMoment = "moment:process"
	// QueueName is the asynq queue the worker consumes.
	QueueName = "moments"
	// DefaultMaxRetry bounds redelivery of failed jobs.
	DefaultMaxRetry = 3
)

// Enqueuer is satisfied by *asynq.Client.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// NewProcessTask serializes job into a task payload.
func NewProcessTask(job ingest.Job) (*asynq.Task, error) {
	data, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return asynq.NewTask(TypeProcessMoment, data), nil
}

// Enqueue schedules an ingest job. A negative maxRetry selects DefaultMaxRetry.
func Enqueue(ctx context.Context, c Enqueuer, job ingest.Job, maxRetry int, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	job, err := job.Normalize()
	if err != nil {
		return nil, err
	}
	task, err := NewProcessTask(job)
	if err != nil {
		return nil, err
	}
	if maxRetry < 0 {
		maxRetry = DefaultMaxRetry
	}
	opts = append([]asynq.Option{asynq.MaxRetry(maxRetry), asynq.Queue(QueueName)}, opts...)
	info, err := c.EnqueueContext(ctx, task, opts...)
	if err != nil {
		return nil, fmt.Errorf("enqueue process task: %w", err)
	}
	return info, nil
}

// Producer submits jobs with a fixed retry budget.
type Producer struct {
	c        Enqueuer
	maxRetry int
}

// NewProducer returns a Producer backed by c, typically an *asynq.Client.
func NewProducer(c Enqueuer, maxRetry int) *Producer {
	return &Producer{c: c, maxRetry: maxRetry}
}

// Submit enqueues job. Invalid jobs return an error wrapping ingest.ErrRejected.
func (p *Producer) Submit(ctx context.Context, job ingest.Job) error {
	_, err := Enqueue(ctx, p.c, job, p.maxRetry)
	return err
}
