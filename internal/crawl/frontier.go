package crawl

import "sync"

// urlState tracks the lifecycle of one discovered URL. Transitions run
// Queued -> InFlight -> Done, or straight to Rejected when the budget is
// already spent. A URL moves through the chain at most once.
type urlState uint8

const (
	stateQueued urlState = iota + 1
	stateInFlight
	stateDone
	stateRejected
)

// frontier owns the queue, the visited set, and the in-flight count behind
// a single mutex, so membership checks and state transitions are one atomic
// operation. A URL is in at most one of {queued, in-flight, done} at any
// instant.
type frontier struct {
	mu       sync.Mutex
	cond     *sync.Cond
	states   map[string]urlState
	queue    []string
	inFlight int
	budget   int
	admitted int
	closed   bool
}

func newFrontier(budget int) *frontier {
	f := &frontier{
		states: make(map[string]urlState),
		budget: budget,
	}
	f.cond = sync.NewCond(&f.mu)
	return f
}

// Admit transitions an unseen URL to Queued, or to Rejected when the page
// budget is exhausted. Returns true only when the URL was queued.
func (f *frontier) Admit(url string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return false
	}
	if _, seen := f.states[url]; seen {
		return false
	}
	if f.admitted >= f.budget {
		f.states[url] = stateRejected
		return false
	}
	f.states[url] = stateQueued
	f.admitted++
	f.queue = append(f.queue, url)
	f.cond.Signal()
	return true
}

// Next dequeues one URL and marks it InFlight. When the queue is empty but
// peers are still in flight it blocks, since those peers may discover more
// work. Returns false once the frontier has drained or been closed.
func (f *frontier) Next() (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for {
		if f.closed {
			return "", false
		}
		if len(f.queue) > 0 {
			url := f.queue[0]
			f.queue = f.queue[1:]
			f.states[url] = stateInFlight
			f.inFlight++
			return url, true
		}
		if f.inFlight == 0 {
			// Drained. Wake the remaining waiters so they observe it too.
			f.cond.Broadcast()
			return "", false
		}
		f.cond.Wait()
	}
}

// Finish marks a URL Done and wakes waiters: the worker may have admitted
// new URLs, and if it did not, peers need to re-check the drain condition.
func (f *frontier) Finish(url string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.states[url] = stateDone
	f.inFlight--
	f.cond.Broadcast()
}

// Close aborts the frontier; blocked and future Next calls return false.
func (f *frontier) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	f.cond.Broadcast()
}

func (f *frontier) QueueLen() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queue)
}

func (f *frontier) Admitted() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.admitted
}
