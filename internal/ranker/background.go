package ranker

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/danieldreier/vocab-drill/internal/models"
	"github.com/danieldreier/vocab-drill/internal/scorer"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Request is the message sent to the background scorer. Progresses must be a
// snapshot the caller no longer mutates.
type Request struct {
	Progresses []models.ProgressRecord
	Mode       models.Mode
	Now        time.Time
}

// Response carries the scored words sorted by weight, highest first.
type Response struct {
	Weights []scorer.WeightResult
	Err     error
}

type job struct {
	ctx   context.Context
	req   Request
	reply chan Response
}

// BackgroundScorer scores large batches off the caller's goroutine. It
// receives jobs over a channel and never touches storage.
type BackgroundScorer struct {
	jobs     chan job
	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	workers  int
	logger   *zap.Logger
}

func newBackgroundScorer(workers int, logger *zap.Logger) *BackgroundScorer {
	if workers < 1 {
		workers = 1
	}
	return &BackgroundScorer{
		jobs:    make(chan job),
		done:    make(chan struct{}),
		workers: workers,
		logger:  logger,
	}
}

func (b *BackgroundScorer) start() {
	b.wg.Add(1)
	go b.run()
}

func (b *BackgroundScorer) run() {
	defer b.wg.Done()
	for {
		select {
		case <-b.done:
			return
		case j := <-b.jobs:
			weights, err := scoreParallel(j.ctx, j.req, b.workers)
			// reply is buffered, an abandoned caller never blocks the worker
			j.reply <- Response{Weights: weights, Err: err}
		}
	}
}

// Submit hands a request to the worker. The returned channel receives
// exactly one Response. Submit gives up when ctx is done or the scorer has
// been stopped.
func (b *BackgroundScorer) Submit(ctx context.Context, req Request) (<-chan Response, error) {
	reply := make(chan Response, 1)
	select {
	case b.jobs <- job{ctx: ctx, req: req, reply: reply}:
		return reply, nil
	case <-b.done:
		return nil, ErrScorerStopped
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (b *BackgroundScorer) stop() {
	b.stopOnce.Do(func() {
		close(b.done)
	})
	b.wg.Wait()
}

// scoreParallel fans the batch out over at most workers goroutines, then
// sorts exactly like the inline path.
func scoreParallel(ctx context.Context, req Request, workers int) ([]scorer.WeightResult, error) {
	n := len(req.Progresses)
	results := make([]scorer.WeightResult, n)
	if n == 0 {
		return results, nil
	}

	chunk := (n + workers - 1) / workers
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for start := 0; start < n; start += chunk {
		end := min(start+chunk, n)
		g.Go(func() error {
			for i := start; i < end; i++ {
				if err := gctx.Err(); err != nil {
					return err
				}
				results[i] = scorer.Score(req.Progresses[i], req.Mode, req.Now)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sortWeights(results)
	return results, nil
}

// Pool owns the lazily started background scorer. Acquire and Shutdown may
// be called from any goroutine; Shutdown is idempotent and a later Acquire
// starts a fresh scorer.
type Pool struct {
	mu      sync.Mutex
	workers int
	logger  *zap.Logger
	scorer  *BackgroundScorer
}

// NewPool creates a pool whose scorer fans out over workers goroutines.
// A non-positive count uses runtime.NumCPU().
func NewPool(workers int, logger *zap.Logger) *Pool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pool{workers: workers, logger: logger}
}

// Acquire returns the running scorer, starting one if needed.
func (p *Pool) Acquire() *BackgroundScorer {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.scorer == nil {
		p.scorer = newBackgroundScorer(p.workers, p.logger)
		p.scorer.start()
		p.logger.Debug("Background scorer started", zap.Int("workers", p.workers))
	}
	return p.scorer
}

// Shutdown stops the scorer, waiting for an in-flight job to finish.
func (p *Pool) Shutdown() {
	p.mu.Lock()
	s := p.scorer
	p.scorer = nil
	p.mu.Unlock()

	if s == nil {
		return
	}
	s.stop()
	p.logger.Debug("Background scorer stopped")
}

var defaultPool = NewPool(0, nil)

// DefaultPool returns the process-wide pool.
func DefaultPool() *Pool { return defaultPool }

// Shutdown stops the process-wide background scorer.
func Shutdown() { defaultPool.Shutdown() }
