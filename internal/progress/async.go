package progress

import "sync"

type update struct {
	done, total int
}

// Async delivers progress to a target callback on its own goroutine, so a slow
// observer never stalls extraction. Updates are queued without bound and
// delivered in the order they were reported.
type Async struct {
	target Callback

	mu      sync.Mutex
	cond    *sync.Cond
	queue   []update
	closed  bool
	drained chan struct{}
}

// NewAsync starts the delivery goroutine. Close must be called to stop it.
func NewAsync(target Callback) *Async {
	a := &Async{
		target:  OrNoOp(target),
		drained: make(chan struct{}),
	}
	a.cond = sync.NewCond(&a.mu)
	go a.run()
	return a
}

// OnProgress enqueues an update and returns immediately. Updates reported
// after Close are dropped.
func (a *Async) OnProgress(done, total int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return
	}
	a.queue = append(a.queue, update{done, total})
	a.cond.Signal()
}

// Close stops accepting updates and waits until every queued update has been
// delivered. It is safe to call more than once.
func (a *Async) Close() {
	a.mu.Lock()
	a.closed = true
	a.cond.Broadcast()
	a.mu.Unlock()
	<-a.drained
}

func (a *Async) run() {
	defer close(a.drained)
	for {
		a.mu.Lock()
		for len(a.queue) == 0 && !a.closed {
			a.cond.Wait()
		}
		if len(a.queue) == 0 {
			a.mu.Unlock()
			return
		}
		batch := a.queue
		a.queue = nil
		a.mu.Unlock()

		for _, u := range batch {
			a.target.OnProgress(u.done, u.total)
		}
	}
}
