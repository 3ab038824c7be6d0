package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

var ErrStopped = errors.New("loop stopped")

const mailboxSize = 256

// Timer is a pending callback scheduled with Loop.After
type Timer interface {
	// Prevent the callback from running. No-op if it already ran.
	Stop()
}

// Loop runs every task on a single goroutine. State owned by the loop needs no locking
// as long as it is only touched from tasks.
//
// Blocking work (network calls) must not run on the loop. Run it with Go and Post
// the result back.
type Loop struct {
	ctx       context.Context
	cancel    context.CancelFunc
	afterFunc func(time.Duration) <-chan time.Time

	mailbox chan func()

	backgroundMutex sync.Mutex
	background      sync.WaitGroup
	stopped         bool
}

func New(ctx context.Context, afterFunc func(time.Duration) <-chan time.Time) *Loop {
	ctx, cancel := context.WithCancel(ctx)
	return &Loop{
		ctx:       ctx,
		cancel:    cancel,
		afterFunc: afterFunc,
		mailbox:   make(chan func(), mailboxSize),
	}
}

// Context of the loop, cancelled on Stop
func (l *Loop) Context() context.Context {
	return l.ctx
}

// Process tasks until the loop is stopped or its parent context is cancelled
func (l *Loop) Run() error {
	for {
		select {
		case <-l.ctx.Done():
			return nil
		case task := <-l.mailbox:
			task()
		}
	}
}

// Enqueue a task. Returns false if the loop has stopped, in which case the task is dropped.
func (l *Loop) Post(task func()) bool {
	if l.ctx.Err() != nil {
		return false
	}
	select {
	case <-l.ctx.Done():
		return false
	case l.mailbox <- task:
		return true
	}
}

// Run task on the loop and wait for it to finish.
//
// NOTE: Must not be called from a task, as it would wait for itself
func (l *Loop) Do(ctx context.Context, task func()) error {
	finished := make(chan struct{})
	if !l.Post(func() {
		defer close(finished)
		task()
	}) {
		return ErrStopped
	}

	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-l.ctx.Done():
		select {
		case <-finished:
			return nil
		default:
			return ErrStopped
		}
	}
}

type timer struct {
	stopped  atomic.Bool
	cancel   chan struct{}
	stopOnce sync.Once
}

func (t *timer) Stop() {
	t.stopped.Store(true)
	t.stopOnce.Do(func() {
		close(t.cancel)
	})
}

// Run task on the loop once d has passed, unless the timer or the loop is stopped first
func (l *Loop) After(d time.Duration, task func()) Timer {
	t := &timer{cancel: make(chan struct{})}

	l.spawn(func() {
		select {
		case <-l.ctx.Done():
			return
		case <-t.cancel:
			return
		case <-l.afterFunc(d):
		}

		l.Post(func() {
			// Stop may have been called between expiry and now
			if t.stopped.Load() {
				return
			}
			task()
		})
	})

	return t
}

// Run task on the loop every interval. Periodic tasks are cancelled as a group when the loop stops.
func (l *Loop) Every(interval time.Duration, task func()) {
	if interval <= 0 {
		panic("logic error: non-positive interval")
	}

	l.spawn(func() {
		for {
			select {
			case <-l.ctx.Done():
				return
			case <-l.afterFunc(interval):
			}

			if !l.Post(task) {
				return
			}
		}
	})
}

// Run work off the loop, with a context that is cancelled when the loop stops
func (l *Loop) Go(work func(ctx context.Context)) {
	l.spawn(func() {
		work(l.ctx)
	})
}

// Start a tracked goroutine, unless the loop has stopped
func (l *Loop) spawn(fn func()) bool {
	l.backgroundMutex.Lock()
	defer l.backgroundMutex.Unlock()

	if l.stopped {
		return false
	}

	l.background.Add(1)
	go func() {
		defer l.background.Done()
		fn()
	}()
	return true
}

// Stop the loop, cancel every timer and periodic task, and wait for background work to exit.
// Safe to call more than once.
func (l *Loop) Stop() {
	l.backgroundMutex.Lock()
	l.stopped = true
	l.cancel()
	l.backgroundMutex.Unlock()

	l.background.Wait()
}
