package worker

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultTaskTimeout bounds a single task when the pool is created without one
const DefaultTaskTimeout = 2 * time.Minute

// PoolMetrics provides metrics about the worker pool's performance
type PoolMetrics struct {
	TotalTasks         int64
	CompletedTasks     int64
	FailedTasks        int64
	PeakWorkers        int64
	AverageExecutionMs int64
	TotalExecutionMs   int64
}

// Task represents a unit of work to be executed
type Task func(ctx context.Context) error

// Pool manages a pool of workers for executing tasks concurrently
type Pool struct {
	maxWorkers  int
	taskTimeout time.Duration
	tasks       chan Task
	wg          sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc
	stopping    int32

	mu            sync.Mutex
	metrics       PoolMetrics
	activeWorkers int64
}

// NewPool creates a new worker pool bound to ctx. A zero taskTimeout uses DefaultTaskTimeout.
func NewPool(ctx context.Context, maxWorkers int, taskTimeout time.Duration) *Pool {
	if maxWorkers <= 0 {
		maxWorkers = 1
	}
	if taskTimeout <= 0 {
		taskTimeout = DefaultTaskTimeout
	}
	poolCtx, cancel := context.WithCancel(ctx)
	return &Pool{
		maxWorkers:  maxWorkers,
		taskTimeout: taskTimeout,
		tasks:       make(chan Task, maxWorkers*2),
		ctx:         poolCtx,
		cancel:      cancel,
	}
}

// Start starts the worker pool
func (p *Pool) Start() {
	for i := 0; i < p.maxWorkers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
}

// Stop cancels pending work and waits for the workers to exit
func (p *Pool) Stop() {
	if !atomic.CompareAndSwapInt32(&p.stopping, 0, 1) {
		return
	}
	p.cancel()
	p.wg.Wait()
}

// Metrics returns a snapshot of the pool metrics
func (p *Pool) Metrics() PoolMetrics {
	p.mu.Lock()
	defer p.mu.Unlock()
	m := p.metrics
	if done := m.CompletedTasks + m.FailedTasks; done > 0 {
		m.AverageExecutionMs = m.TotalExecutionMs / done
	}
	return m
}

func (p *Pool) worker() {
	defer p.wg.Done()

	active := atomic.AddInt64(&p.activeWorkers, 1)
	defer atomic.AddInt64(&p.activeWorkers, -1)

	p.mu.Lock()
	if active > p.metrics.PeakWorkers {
		p.metrics.PeakWorkers = active
	}
	p.mu.Unlock()

	for {
		select {
		case <-p.ctx.Done():
			// Drain so callers waiting on queued tasks are released; tasks see a cancelled context.
			for {
				select {
				case task := <-p.tasks:
					_ = task(p.ctx)
				default:
					return
				}
			}
		case task := <-p.tasks:
			start := time.Now()
			taskCtx, cancel := context.WithTimeout(p.ctx, p.taskTimeout)
			err := task(taskCtx)
			cancel()

			p.mu.Lock()
			p.metrics.TotalExecutionMs += time.Since(start).Milliseconds()
			if err != nil {
				p.metrics.FailedTasks++
			} else {
				p.metrics.CompletedTasks++
			}
			p.mu.Unlock()
		}
	}
}

// ExecuteTasks runs tasks on the pool and blocks until all of them finished or the pool stopped.
// It returns the number of tasks that returned an error.
func (p *Pool) ExecuteTasks(tasks []Task) int {
	var (
		wg     sync.WaitGroup
		failed int64
	)

	p.mu.Lock()
	p.metrics.TotalTasks += int64(len(tasks))
	p.mu.Unlock()

	for _, t := range tasks {
		task := t
		wg.Add(1)
		wrapped := func(ctx context.Context) error {
			defer wg.Done()
			err := task(ctx)
			if err != nil {
				atomic.AddInt64(&failed, 1)
			}
			return err
		}

		select {
		case p.tasks <- wrapped:
		case <-p.ctx.Done():
			wg.Done()
			atomic.AddInt64(&failed, 1)
		}
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-p.ctx.Done():
	}
	return int(atomic.LoadInt64(&failed))
}

// Run is a convenience wrapper that starts a pool, executes tasks and stops it
func Run(ctx context.Context, maxWorkers int, taskTimeout time.Duration, tasks []Task) (int, PoolMetrics) {
	p := NewPool(ctx, maxWorkers, taskTimeout)
	p.Start()
	failed := p.ExecuteTasks(tasks)
	p.Stop()
	return failed, p.Metrics()
}
