package alarm

import "sync"

// loop is the control goroutine. Jobs run one at a time in arrival order.
// A job must never call do itself.
type loop struct {
	jobs      chan func()
	done      chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once
}

func newLoop() *loop {
	l := &loop{
		jobs:    make(chan func()),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go l.run()
	return l
}

func (l *loop) run() {
	defer close(l.stopped)
	for {
		select {
		case job := <-l.jobs:
			job()
		case <-l.done:
			return
		}
	}
}

// do runs job on the control goroutine and waits for it to finish.
// It returns ErrClosed without running job once the loop is stopped.
func (l *loop) do(job func()) error {
	finished := make(chan struct{})
	wrapped := func() {
		defer close(finished)
		job()
	}

	select {
	case l.jobs <- wrapped:
	case <-l.done:
		return ErrClosed
	}
	<-finished
	return nil
}

// post is do for callers that have nothing to report, such as timer callbacks
func (l *loop) post(job func()) {
	_ = l.do(job)
}

// stop ends the loop after the running job, if any, has finished
func (l *loop) stop() {
	l.closeOnce.Do(func() {
		close(l.done)
	})
	<-l.stopped
}
