package indicators

// Pool bounds concurrent indicator computation so CPU-bound numeric work
// does not starve the rest of the process. Callers must invoke the returned
// wait function before reading anything fn wrote; nothing observes a
// partially computed result.
type Pool struct {
	sem chan struct{}
}

// DefaultPoolSize is the number of concurrent indicator workers.
const DefaultPoolSize = 4

// NewPool creates a pool with the given number of worker slots.
func NewPool(size int) *Pool {
	if size <= 0 {
		size = DefaultPoolSize
	}
	return &Pool{sem: make(chan struct{}, size)}
}

// Go schedules fn on its own goroutine once a worker slot frees up and
// returns a function that blocks until fn has finished.
func (p *Pool) Go(fn func()) (wait func()) {
	done := make(chan struct{})
	go func() {
		p.sem <- struct{}{}
		defer func() { <-p.sem }()
		fn()
		close(done)
	}()
	return func() { <-done }
}

// Do runs fn inside a worker slot and waits for it.
func (p *Pool) Do(fn func()) {
	p.Go(fn)()
}
