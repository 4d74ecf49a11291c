// ABOUTME: Bounded worker pool for background conversation processing
// ABOUTME: Explicit queue handoff makes backpressure and shutdown draining visible

package gateway

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/charlabot/charla/internal/webhook"
)

// Job is one unit of post-acknowledgment work: a canonical inbound message
// and whether a reply is owed.
type Job struct {
	Message *webhook.Message
	Respond bool
}

// Pool runs jobs on a fixed set of workers fed by a bounded queue. Enqueue
// never blocks: when the queue is full the job is dropped and the provider's
// retry redelivers it later.
type Pool struct {
	jobs    chan Job
	process func(context.Context, Job)
	timeout time.Duration
	wg      sync.WaitGroup
	once    sync.Once
	logger  *slog.Logger
}

// NewPool creates a pool of the given size. jobTimeout bounds each job so a
// stuck collaborator call cannot pin a worker slot forever.
func NewPool(workers, queueSize int, jobTimeout time.Duration, process func(context.Context, Job), logger *slog.Logger) *Pool {
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = 1
	}
	if jobTimeout <= 0 {
		jobTimeout = 2 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}

	p := &Pool{
		jobs:    make(chan Job, queueSize),
		process: process,
		timeout: jobTimeout,
		logger:  logger.With("component", "workers"),
	}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	return p
}

// Enqueue hands a job to the pool. Returns false when the queue is full or
// the pool is draining.
func (p *Pool) Enqueue(job Job) (queued bool) {
	defer func() {
		// send on closed channel during shutdown
		if recover() != nil {
			queued = false
		}
	}()

	select {
	case p.jobs <- job:
		return true
	default:
		p.logger.Warn("work queue full, dropping job",
			"provider_message_id", job.Message.ProviderID)
		return false
	}
}

func (p *Pool) worker() {
	defer p.wg.Done()

	for job := range p.jobs {
		p.runJob(job)
	}
}

// runJob executes one job with its own timeout. A panic is contained here
// so a single bad message cannot take the worker down.
func (p *Pool) runJob(job Job) {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("job panicked",
				"provider_message_id", job.Message.ProviderID,
				"panic", r)
		}
	}()

	p.process(ctx, job)
}

// Drain stops accepting jobs and waits for in-flight work, up to the
// context deadline.
func (p *Pool) Drain(ctx context.Context) error {
	p.once.Do(func() { close(p.jobs) })

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
