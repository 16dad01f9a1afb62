// Package worker implements the coordinator's bounded worker pool
// (spec.md §5), grounded on Sumukhak22-GopherPay/internal/worker/pool.go
// and baharkarakas-insider-backend/internal/worker/pool.go's
// channel-of-jobs-plus-N-goroutines shape.
package worker

import (
	"context"
	"log/slog"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Task is one unit of work submitted to the pool: the asynchronous
// application step (§4.4), including those of batch intents.
type Task func(ctx context.Context)

var queueDepth = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "coordinator_worker_pool_queue_depth",
	Help: "Number of tasks currently buffered in the worker pool",
})

// job pairs a Task with the context captured at submission time, so
// the correlation id and deadline of the originating request survive
// into the worker goroutine (§9: "thread the context through call
// sites, including into worker tasks at submission time").
type job struct {
	ctx  context.Context
	task Task
}

type Pool struct {
	jobs   chan job
	logger *slog.Logger
	wg     sync.WaitGroup
}

func NewPool(bufferSize int, logger *slog.Logger) *Pool {
	return &Pool{
		jobs:   make(chan job, bufferSize),
		logger: logger,
	}
}

func (p *Pool) Start(workerCount int) {
	for i := 0; i < workerCount; i++ {
		p.wg.Add(1)
		go p.run()
	}
}

func (p *Pool) run() {
	defer p.wg.Done()
	for j := range p.jobs {
		queueDepth.Dec()
		func() {
			defer func() {
				if r := recover(); r != nil {
					p.logger.Error("worker task panicked", "recover", r)
				}
			}()
			j.task(j.ctx)
		}()
	}
}

// Submit enqueues task, blocking the caller's goroutine if the pool's
// buffer is full — never a held database transaction, per §5's
// discipline that callers must not hold one open while waiting for a
// pool slot.
func (p *Pool) Submit(ctx context.Context, task Task) {
	queueDepth.Inc()
	p.jobs <- job{ctx: ctx, task: task}
}

// Shutdown closes the job channel and waits for in-flight tasks to
// drain, mirroring Sumukhak22-GopherPay/cmd/server/main.go's graceful
// shutdown sequence.
func (p *Pool) Shutdown() {
	close(p.jobs)
	p.wg.Wait()
}
