// Package orchestrator fans a single broadcast request out to every active
// partner, races their responses under a global deadline, and returns on
// the first business success, cancelling any siblings still in flight.
package orchestrator

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// Pool sizing, fixed by the specification: 10 long-lived workers at rest,
// growing on demand to 50 under load, backed by a 100-deep work queue.
const (
	initialPoolSize = 10
	maxPoolSize     = 50
	queueCapacity   = 100
)

// pool is a bounded worker pool with a caller-runs saturation policy: a
// core of initialPoolSize long-lived goroutines drain a bounded channel
// queue; when the queue backs up, the pool grows workers on demand up to
// maxPoolSize, or up to the size passed to newPool when one is given (admission to grow is itself bounded by a
// golang.org/x/sync/semaphore.Weighted permit per worker, so growth never
// overshoots the ceiling under concurrent submitters); once the queue is
// full and the worker ceiling is reached, submit runs fn on the calling
// goroutine instead of blocking Broadcast's fan-out on a free slot --
// the same backpressure policy java.util.concurrent.ThreadPoolExecutor's
// CallerRunsPolicy applies, which is the closest idiomatic analogue to
// this system's "never drop, slow the producer down instead" requirement.
type pool struct {
	queue chan func()
	sem   *semaphore.Weighted
}

func newPool(size int) *pool {
	max := maxPoolSize
	initial := initialPoolSize
	if size > 0 {
		max = size
		if initial > max {
			initial = max
		}
	}

	p := &pool{
		queue: make(chan func(), queueCapacity),
		sem:   semaphore.NewWeighted(int64(max)),
	}
	for i := 0; i < initial; i++ {
		// Unbounded context: reserving a core worker's permit never
		// blocks, since max >= initial by construction above.
		_ = p.sem.Acquire(context.Background(), 1)
		p.spawnWorker()
	}
	return p
}

// spawnWorker starts a goroutine that drains queue until close closes it;
// while the queue is empty the worker parks on the channel read.
func (p *pool) spawnWorker() {
	go func() {
		for fn := range p.queue {
			fn()
		}
	}()
}

// submit hands fn to a pool worker. It first tries the queue without
// blocking; if the queue is full it tries to grow the pool by one worker
// (bounded by the pool's worker ceiling) and retries; if the pool is already at its
// worker ceiling and the queue is still full, fn runs synchronously on
// the calling goroutine. If ctx is already cancelled, submit returns
// without running fn at all.
func (p *pool) submit(ctx context.Context, fn func()) {
	select {
	case <-ctx.Done():
		return
	default:
	}

	select {
	case p.queue <- fn:
		return
	default:
	}

	if p.sem.TryAcquire(1) {
		p.spawnWorker()
		select {
		case p.queue <- fn:
			return
		default:
		}
	}

	fn()
}

// close terminates every worker goroutine by closing queue. Callers must
// not submit after calling close. Intended for tests that assert no
// goroutines leak past a pool's lifetime; production use relies on process
// exit to reclaim workers instead.
func (p *pool) close() {
	close(p.queue)
}
