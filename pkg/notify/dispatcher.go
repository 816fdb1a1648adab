package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/pkg/jobs"
)

const jobType = "timetable.published"

// Outcome reports whether a notification was finally delivered.
type Outcome func(msg Message, delivered bool)

// Dispatcher delivers messages in the background so callers never wait on the notifier.
type Dispatcher struct {
	queue    *jobs.Queue
	notifier Notifier
	logger   *zap.Logger
	outcome  Outcome
	timeout  time.Duration
}

// DispatcherConfig tunes the background queue.
type DispatcherConfig struct {
	Workers    int
	Retries    int
	RetryDelay time.Duration
	Timeout    time.Duration
	Logger     *zap.Logger
	Outcome    Outcome
}

// NewDispatcher wires a notifier behind a job queue.
func NewDispatcher(notifier Notifier, cfg DispatcherConfig) *Dispatcher {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	d := &Dispatcher{notifier: notifier, logger: cfg.Logger, outcome: cfg.Outcome, timeout: cfg.Timeout}
	d.queue = jobs.NewQueue("notifications", d.handle, jobs.QueueConfig{
		Workers:    cfg.Workers,
		MaxRetries: cfg.Retries,
		RetryDelay: cfg.RetryDelay,
		Logger:     cfg.Logger,
		OnDrop: func(job jobs.Job, err error) {
			if msg, ok := job.Payload.(Message); ok {
				d.report(msg, false)
			}
		},
	})
	return d
}

// Start launches the workers.
func (d *Dispatcher) Start(ctx context.Context) { d.queue.Start(ctx) }

// Stop waits for the workers to exit.
func (d *Dispatcher) Stop() { d.queue.Stop() }

// Notify queues msg and returns immediately. The error only covers queueing.
func (d *Dispatcher) Notify(ctx context.Context, msg Message) error {
	job := jobs.Job{ID: uuid.NewString(), Type: jobType, Payload: msg}
	if err := d.queue.TryEnqueue(job); err != nil {
		d.report(msg, false)
		return fmt.Errorf("queue notification for %s: %w", msg.ClassName, err)
	}
	return nil
}

func (d *Dispatcher) handle(ctx context.Context, job jobs.Job) error {
	msg, ok := job.Payload.(Message)
	if !ok {
		d.logger.Error("unexpected notification payload", zap.String("job_id", job.ID))
		return nil
	}
	sendCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	if err := d.notifier.Notify(sendCtx, msg); err != nil {
		return err
	}
	d.report(msg, true)
	return nil
}

func (d *Dispatcher) report(msg Message, delivered bool) {
	if d.outcome != nil {
		d.outcome(msg, delivered)
	}
}
