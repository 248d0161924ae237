package training

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/specialistvlad/tensorgrid/internal/ctxlog"
	"github.com/specialistvlad/tensorgrid/internal/model"
	"github.com/specialistvlad/tensorgrid/internal/progress"
	"golang.org/x/sync/semaphore"
)

// ErrPoolClosed is returned by Submit after Shutdown.
var ErrPoolClosed = errors.New("training pool is shut down")

// Runner executes one run. *Orchestrator is the production implementation.
type Runner interface {
	Run(ctx context.Context, runID string, job model.TrainingJob, emit progress.Emitter) (*Outcome, error)
}

// Result is delivered once per submitted run.
type Result struct {
	Outcome *Outcome
	Err     error
}

// PoolOptions configures a Pool.
type PoolOptions struct {
	Workers int
	Sink    progress.Sink
	Stream  progress.StreamOptions
}

// Pool runs jobs in the background with bounded concurrency. Each run gets
// its own goroutine, progress stream and model lock.
type Pool struct {
	runner Runner
	locks  *Locks
	sink   progress.Sink
	stream progress.StreamOptions
	sem    *semaphore.Weighted

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// NewPool creates a pool whose runs inherit ctx's logger and are cancelled
// by Shutdown.
func NewPool(ctx context.Context, runner Runner, locks *Locks, opts PoolOptions) *Pool {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if locks == nil {
		locks = NewLocks()
	}
	if opts.Sink == nil {
		opts.Sink = progress.LogSink{}
	}
	ctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	return &Pool{
		runner: runner,
		locks:  locks,
		sink:   opts.Sink,
		stream: opts.Stream,
		sem:    semaphore.NewWeighted(int64(opts.Workers)),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Submit locks the job's model and starts the run. The returned channel
// receives exactly one Result and is then closed.
func (p *Pool) Submit(job model.TrainingJob) (string, <-chan Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return "", nil, ErrPoolClosed
	}

	runID := uuid.NewString()
	if err := p.locks.TryLock(job.ModelName, runID); err != nil {
		return "", nil, err
	}

	results := make(chan Result, 1)
	p.wg.Add(1)
	go p.execute(runID, job, results)
	return runID, results, nil
}

func (p *Pool) execute(runID string, job model.TrainingJob, results chan<- Result) {
	defer p.wg.Done()
	defer close(results)
	defer p.locks.Unlock(job.ModelName, runID)

	logger := ctxlog.FromContext(p.ctx).With("run_id", runID, "model", job.ModelName)
	if err := p.sem.Acquire(p.ctx, 1); err != nil {
		logger.Warn("Pool: Run cancelled before it started.", "error", err)
		results <- Result{Outcome: &Outcome{RunID: runID, ModelName: job.ModelName, State: StateFailed}, Err: err}
		return
	}
	defer p.sem.Release(1)

	stream := progress.NewStream(p.ctx, p.sink, p.stream)
	out, err := p.runner.Run(p.ctx, runID, job, stream)
	stream.Close()
	logger.Debug("Pool: Run completed.", "delivered", stream.Delivered(), "dropped", stream.Dropped())
	results <- Result{Outcome: out, Err: err}
}

// Shutdown stops accepting runs, cancels the running ones and waits for
// them to return or for ctx to expire.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	p.cancel()

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

// Wait blocks until every submitted run has returned.
func (p *Pool) Wait() { p.wg.Wait() }
