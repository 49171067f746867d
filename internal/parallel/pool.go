// Package parallel runs independent units of work, such as ledger
// scripts, on a bounded set of goroutines.
package parallel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"
)

// ErrPoolShutdown is returned when trying to submit tasks to a shutdown pool.
var ErrPoolShutdown = errors.New("worker pool has been shutdown")

// WorkerPool manages a fixed set of goroutines fed from a buffered task
// queue. Submit blocks while the queue is full.
type WorkerPool struct {
	maxWorkers   int
	taskChan     chan func()
	workerWg     sync.WaitGroup
	shutdownChan chan struct{}
	once         sync.Once
	logger       *slog.Logger
}

// NewWorkerPool creates a new worker pool with the specified number of workers.
// If maxWorkers is 0 or negative, it defaults to the number of CPU cores.
func NewWorkerPool(maxWorkers int, logger *slog.Logger) *WorkerPool {
	if maxWorkers <= 0 {
		maxWorkers = runtime.NumCPU()
	}
	if logger == nil {
		logger = slog.Default()
	}

	pool := &WorkerPool{
		maxWorkers:   maxWorkers,
		taskChan:     make(chan func(), maxWorkers*2),
		shutdownChan: make(chan struct{}),
		logger:       logger,
	}
	for i := 0; i < maxWorkers; i++ {
		pool.workerWg.Add(1)
		go pool.worker(i)
	}
	return pool
}

// Workers returns the number of worker goroutines.
func (wp *WorkerPool) Workers() int {
	return wp.maxWorkers
}

func (wp *WorkerPool) worker(id int) {
	defer wp.workerWg.Done()

	for {
		select {
		case task := <-wp.taskChan:
			wp.run(id, task)
		case <-wp.shutdownChan:
			// Tasks already accepted still run.
			for {
				select {
				case task := <-wp.taskChan:
					wp.run(id, task)
				default:
					return
				}
			}
		}
	}
}

func (wp *WorkerPool) run(id int, task func()) {
	if task == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			wp.logger.Error("task panicked", "worker", id, "panic", r)
		}
	}()
	task()
}

// Submit queues a task. It blocks until there is room in the queue, the
// context is done, or the pool shuts down.
func (wp *WorkerPool) Submit(ctx context.Context, task func()) error {
	select {
	case <-wp.shutdownChan:
		return ErrPoolShutdown
	default:
	}
	select {
	case wp.taskChan <- task:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-wp.shutdownChan:
		return ErrPoolShutdown
	}
}

// Shutdown stops accepting tasks and waits for every accepted task to
// finish.
func (wp *WorkerPool) Shutdown() {
	wp.once.Do(func() {
		close(wp.shutdownChan)
		wp.workerWg.Wait()
	})
}

// Job is one named unit of work.
type Job[T any] struct {
	Name string
	Run  func(ctx context.Context) (T, error)
}

// Outcome is the result of one Job.
type Outcome[T any] struct {
	Name    string
	Value   T
	Err     error
	Elapsed time.Duration
}

// RunAll runs every job on the pool and returns their outcomes in job
// order. A job that could not be submitted carries the submit error, and
// a job that panics carries the panic as its error.
func RunAll[T any](ctx context.Context, pool *WorkerPool, jobs []Job[T]) []Outcome[T] {
	out := make([]Outcome[T], len(jobs))
	var wg sync.WaitGroup
	for i, job := range jobs {
		out[i].Name = job.Name
		wg.Add(1)
		err := pool.Submit(ctx, func() {
			start := time.Now()
			defer func() {
				if r := recover(); r != nil {
					out[i].Err = fmt.Errorf("job %s panicked: %v", job.Name, r)
				}
				wg.Done()
			}()
			if err := ctx.Err(); err != nil {
				out[i].Err = err
				return
			}
			out[i].Value, out[i].Err = job.Run(ctx)
			out[i].Elapsed = time.Since(start)
		})
		if err != nil {
			wg.Done()
			out[i].Err = err
		}
	}
	wg.Wait()
	return out
}
