package transport

import "sync/atomic"

// eventLoop delivers operation completions to the goroutine driving the
// connection. Network operations run asynchronously; their completion
// handlers execute only inside poll or run, so all state machine
// transitions happen on one logical thread of control.
type eventLoop struct {
	completions chan func()
	pending     atomic.Int32
}

func newEventLoop() *eventLoop {
	return &eventLoop{
		// One outstanding operation per connection; a little slack for
		// completions posted while a handler is still running.
		completions: make(chan func(), 4),
	}
}

// start registers an operation as in flight. Must be paired with exactly
// one post.
func (l *eventLoop) start() {
	l.pending.Add(1)
}

// post delivers an operation's completion handler. Called from the
// operation's goroutine.
func (l *eventLoop) post(fn func()) {
	l.completions <- fn
}

// poll executes every completion that is already available, without
// blocking, and returns how many ran.
func (l *eventLoop) poll() int {
	n := 0
	for {
		select {
		case fn := <-l.completions:
			l.pending.Add(-1)
			fn()
			n++
		default:
			return n
		}
	}
}

// run executes completions, blocking as needed, until no operation
// remains in flight. Returns how many ran.
func (l *eventLoop) run() int {
	n := 0
	for l.pending.Load() > 0 {
		fn := <-l.completions
		l.pending.Add(-1)
		fn()
		n++
	}
	return n
}

// idle reports whether no operation is in flight.
func (l *eventLoop) idle() bool {
	return l.pending.Load() == 0
}
