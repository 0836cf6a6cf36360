package worker

import (
	"context"
	"sync"
)

// Job is a unit of work run by the pool
type Job interface {
	Execute(ctx context.Context) Result
}

// Result is the outcome of a job
type Result interface {
	GetError() error
}

type task struct {
	seq int
	job Job
}

type outcome struct {
	seq    int
	result Result
}

// Pool runs jobs on a fixed number of goroutines and returns results in submission order
type Pool struct {
	workers int
	queue   chan task
	results chan outcome
	done    chan struct{}
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc

	queueOnce   sync.Once
	resultsOnce sync.Once
	startOnce   sync.Once

	mu        sync.Mutex
	submitted int
	collected map[int]Result
}

// NewPool creates a pool bound to ctx with the given number of workers
func NewPool(ctx context.Context, workers int) *Pool {
	if workers <= 0 {
		workers = 1
	}

	ctx, cancel := context.WithCancel(ctx)

	return &Pool{
		workers:   workers,
		queue:     make(chan task, workers*2),
		results:   make(chan outcome, workers*2),
		done:      make(chan struct{}),
		ctx:       ctx,
		cancel:    cancel,
		collected: make(map[int]Result),
	}
}

// Workers returns the pool size
func (p *Pool) Workers() int {
	return p.workers
}

// Start launches the workers and the result collector
func (p *Pool) Start() {
	p.startOnce.Do(func() {
		for i := 0; i < p.workers; i++ {
			p.wg.Add(1)
			go p.worker()
		}
		go p.collect()
	})
}

func (p *Pool) worker() {
	defer p.wg.Done()

	for {
		select {
		case <-p.ctx.Done():
			return
		case t, ok := <-p.queue:
			if !ok {
				return
			}
			p.results <- outcome{seq: t.seq, result: t.job.Execute(p.ctx)}
		}
	}
}

func (p *Pool) collect() {
	defer close(p.done)
	for o := range p.results {
		p.mu.Lock()
		p.collected[o.seq] = o.result
		p.mu.Unlock()
	}
}

// Submit queues a job; it reports false once the pool is shut down
func (p *Pool) Submit(job Job) bool {
	if p.ctx.Err() != nil {
		return false
	}

	p.mu.Lock()
	seq := p.submitted
	p.submitted++
	p.mu.Unlock()

	select {
	case <-p.ctx.Done():
		return false
	case p.queue <- task{seq: seq, job: job}:
		return true
	}
}

// Wait closes the queue, waits for the workers and returns results in submission order.
// Jobs dropped by a shutdown leave no entry.
func (p *Pool) Wait() []Result {
	p.Start()
	p.queueOnce.Do(func() { close(p.queue) })
	p.finish()

	p.mu.Lock()
	defer p.mu.Unlock()

	results := make([]Result, 0, len(p.collected))
	for seq := 0; seq < p.submitted; seq++ {
		if r, ok := p.collected[seq]; ok {
			results = append(results, r)
		}
	}
	return results
}

// Shutdown cancels running jobs and stops the workers
func (p *Pool) Shutdown() {
	p.Start()
	p.cancel()
	p.finish()
}

func (p *Pool) finish() {
	p.wg.Wait()
	p.resultsOnce.Do(func() { close(p.results) })
	<-p.done
}

// Run executes jobs with bounded concurrency and returns their results in input order
func Run(ctx context.Context, workers int, jobs []Job) []Result {
	if len(jobs) == 0 {
		return nil
	}

	pool := NewPool(ctx, workers)
	pool.Start()
	for _, job := range jobs {
		if !pool.Submit(job) {
			break
		}
	}
	return pool.Wait()
}
