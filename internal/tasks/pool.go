package tasks

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/goose/internal/models"
	"github.com/desertthunder/goose/internal/shared"
	"golang.org/x/time/rate"
)

// Fetcher resolves one acquisition request.
type Fetcher interface {
	Fetch(ctx context.Context, input string) ([]models.Track, error)
}

// Result is the single reply to a submitted request.
type Result struct {
	CorrelationID string
	Tracks        []models.Track
	Err           error
}

type job struct {
	id    string
	input string
	ctx   context.Context
	reply chan Result
}

// PoolOpts configures a [Pool].
type PoolOpts struct {
	Workers   int                   // Worker goroutines (default: 2)
	RateLimit float64               // Job starts per second (default: 5)
	Timeout   time.Duration         // Per-request deadline (default: 2m)
	QueueSize int                   // Pending requests before Submit blocks (default: 64)
	Progress  chan<- ProgressUpdate // Optional progress sink
}

// PoolOptsFromConfig maps the [acquire] config section onto pool options.
func PoolOptsFromConfig(c shared.AcquireConfig) PoolOpts {
	return PoolOpts{Workers: c.Workers, RateLimit: c.RateLimit, Timeout: c.RequestTimeout()}
}

// Pool runs acquisition requests on supervised workers.
//
// Every request gets a correlation id and exactly one reply. A worker that panics or exits
// is replaced, and the request it held fails with [shared.ErrWorkerLost].
type Pool struct {
	fetcher  Fetcher
	limiter  *rate.Limiter
	timeout  time.Duration
	progress chan<- ProgressUpdate
	logger   *log.Logger

	jobs chan *job
	done chan struct{}
	wg   sync.WaitGroup

	mu     sync.RWMutex
	closed bool

	restarts atomic.Int64
}

// NewPool starts the workers.
func NewPool(f Fetcher, opts PoolOpts, logger *log.Logger) *Pool {
	if opts.Workers <= 0 {
		opts.Workers = 2
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 5.0
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 2 * time.Minute
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 64
	}

	p := &Pool{
		fetcher:  f,
		limiter:  rate.NewLimiter(rate.Limit(opts.RateLimit), 1),
		timeout:  opts.Timeout,
		progress: opts.Progress,
		logger:   shared.WithLogger(logger, "module", "pool"),
		jobs:     make(chan *job, opts.QueueSize),
		done:     make(chan struct{}),
	}

	for i := 0; i < opts.Workers; i++ {
		p.wg.Add(1)
		go p.supervise(i)
	}
	p.logger.Debug("pool started", "workers", opts.Workers, "rate", opts.RateLimit)
	return p
}

// sendProgress sends a progress update through the channel without blocking.
func (p *Pool) sendProgress(update ProgressUpdate) {
	if p.progress == nil {
		return
	}
	select {
	case p.progress <- update:
	default:
	}
}

// Submit queues input and waits for its result.
func (p *Pool) Submit(ctx context.Context, input string) ([]models.Track, error) {
	r := p.SubmitResult(ctx, input)
	return r.Tracks, r.Err
}

// SubmitResult is [Pool.Submit] with the correlation id kept.
func (p *Pool) SubmitResult(ctx context.Context, input string) Result {
	j := &job{
		id:    shared.NewCorrelationID(),
		input: input,
		ctx:   ctx,
		reply: make(chan Result, 1),
	}

	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return Result{CorrelationID: j.id, Err: shared.ErrPoolClosed}
	}
	p.logger.Debug("queued", "id", j.id, "input", input)
	p.sendProgress(queuedUpdate(j.id, input))
	select {
	case p.jobs <- j:
	case <-ctx.Done():
		p.mu.RUnlock()
		return Result{CorrelationID: j.id, Err: ctx.Err()}
	}
	p.mu.RUnlock()

	select {
	case r := <-j.reply:
		return r
	case <-ctx.Done():
		return Result{CorrelationID: j.id, Err: ctx.Err()}
	}
}

// supervise keeps one worker slot alive until the pool closes.
//
// Each worker runs on its own goroutine so that runtime.Goexit inside a fetch
// cannot take the supervisor down with it.
func (p *Pool) supervise(slot int) {
	defer p.wg.Done()
	for {
		lost := make(chan bool, 1)
		go p.work(slot, lost)
		if !<-lost {
			return
		}
		p.restarts.Add(1)
		p.logger.Warn("restarting worker", "slot", slot)
		p.sendProgress(restartedUpdate(slot))
	}
}

// work serves jobs until the pool closes, then reports false on lost. A worker that dies
// instead fails the job it held and reports true.
func (p *Pool) work(slot int, lost chan<- bool) {
	var current *job
	finished := false
	defer func() {
		if finished {
			lost <- false
			return
		}
		r := recover()
		p.logger.Error("worker lost", "slot", slot, "panic", r)
		if current != nil {
			err := fmt.Errorf("%w: %s", shared.ErrWorkerLost, current.id)
			current.reply <- Result{CorrelationID: current.id, Err: err}
			p.sendProgress(failedUpdate(current.id, slot, err))
		}
		lost <- true
	}()

	for {
		select {
		case <-p.done:
			finished = true
			return
		case j := <-p.jobs:
			select {
			case <-p.done:
				j.reply <- Result{CorrelationID: j.id, Err: shared.ErrPoolClosed}
				continue
			default:
			}
			current = j
			p.run(slot, j)
			current = nil
		}
	}
}

func (p *Pool) run(slot int, j *job) {
	logger := p.logger.With("id", j.id, "slot", slot)

	if err := j.ctx.Err(); err != nil {
		logger.Debug("request abandoned before start")
		j.reply <- Result{CorrelationID: j.id, Err: err}
		return
	}
	if err := p.limiter.Wait(j.ctx); err != nil {
		j.reply <- Result{CorrelationID: j.id, Err: err}
		return
	}

	p.sendProgress(startedUpdate(j.id, slot, j.input))
	ctx, cancel := context.WithTimeout(j.ctx, p.timeout)
	defer cancel()

	start := time.Now()
	tracks, err := p.fetcher.Fetch(ctx, j.input)
	if err != nil {
		logger.Warn("request failed", "error", err, "elapsed", time.Since(start))
		p.sendProgress(failedUpdate(j.id, slot, err))
	} else {
		logger.Info("request completed", "tracks", len(tracks), "elapsed", time.Since(start))
		p.sendProgress(completedUpdate(j.id, slot, len(tracks)))
	}
	j.reply <- Result{CorrelationID: j.id, Tracks: tracks, Err: err}
}

// Restarts reports how many workers were replaced.
func (p *Pool) Restarts() int64 {
	return p.restarts.Load()
}

// Close stops the workers after their current request and fails everything still queued
// with [shared.ErrPoolClosed].
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.done)
	p.mu.Unlock()

	p.wg.Wait()

	failed := 0
	for {
		select {
		case j := <-p.jobs:
			j.reply <- Result{CorrelationID: j.id, Err: shared.ErrPoolClosed}
			failed++
		default:
			p.logger.Debug("pool closed", "failed", failed)
			return
		}
	}
}
