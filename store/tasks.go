package store

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/seonyeopkim/asyncaction/internal/fifo"
)

const numPriorities = int(PriorityUserInitiated) + 1

// taskGroup tracks in-flight async tasks and dispatches posted to the loop,
// so Settle can wait for a quiet store.
//
// When bounded, tasks over the limit queue by priority. A released slot goes
// to the oldest waiter of the highest non-empty priority.
type taskGroup struct {
	mu      sync.Mutex
	pending int
	idle    chan struct{} // closed while pending == 0

	sem     *semaphore.Weighted // nil when unbounded
	waiters [numPriorities]*fifo.Queue[*waiter]
	waiting int // live waiters; while > 0 every slot is held
}

type waiter struct {
	ready     chan struct{}
	granted   bool
	abandoned bool
}

func newTaskGroup(maxConcurrent int64) *taskGroup {
	g := &taskGroup{idle: make(chan struct{})}
	close(g.idle)
	if maxConcurrent > 0 {
		g.sem = semaphore.NewWeighted(maxConcurrent)
		for i := range g.waiters {
			g.waiters[i] = fifo.New[*waiter]()
		}
	}
	return g
}

func (g *taskGroup) add() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.pending == 0 {
		g.idle = make(chan struct{})
	}
	g.pending++
}

func (g *taskGroup) done() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.pending--
	if g.pending == 0 {
		close(g.idle)
	}
}

// inFlight returns the number of pending tasks and posted dispatches.
func (g *taskGroup) inFlight() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.pending
}

// queued returns the number of tasks waiting for a slot.
func (g *taskGroup) queued() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.waiting
}

// wait blocks until nothing is pending or ctx is done.
func (g *taskGroup) wait(ctx context.Context) error {
	g.mu.Lock()
	idle := g.idle
	g.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// acquire takes a concurrency slot when the group is bounded, queueing
// behind earlier waiters of the same or higher priority.
func (g *taskGroup) acquire(ctx context.Context, p Priority) error {
	if g.sem == nil {
		return nil
	}
	if !p.Valid() {
		p = PriorityDefault
	}

	g.mu.Lock()
	if g.waiting == 0 && g.sem.TryAcquire(1) {
		g.mu.Unlock()
		return nil
	}
	w := &waiter{ready: make(chan struct{})}
	g.waiters[p].Push(w)
	g.waiting++
	g.mu.Unlock()

	select {
	case <-w.ready:
		return nil
	case <-ctx.Done():
	}

	g.mu.Lock()
	if w.granted {
		// The slot arrived together with the cancellation; pass it on.
		g.mu.Unlock()
		g.release()
		return ctx.Err()
	}
	w.abandoned = true
	g.waiting--
	g.mu.Unlock()
	return ctx.Err()
}

// release hands the slot to the next waiter, or back to the semaphore.
func (g *taskGroup) release() {
	if g.sem == nil {
		return
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if w, ok := g.nextWaiterLocked(); ok {
		w.granted = true
		g.waiting--
		close(w.ready)
		return
	}
	g.sem.Release(1)
}

func (g *taskGroup) nextWaiterLocked() (*waiter, bool) {
	for p := numPriorities - 1; p >= 0; p-- {
		for {
			w, ok := g.waiters[p].TryPop()
			if !ok {
				break
			}
			if !w.abandoned {
				return w, true
			}
		}
	}
	return nil, false
}
