package centrifuge

import (
	"sync"
	"time"

	"github.com/centrifugal/centrifuge-go/internal/taskqueue"
	"github.com/centrifugal/centrifuge-go/internal/timers"
)

// Executor is the minimal "strand" the core binds to: a single serial
// task runner. All Client/Transport/Subscription state mutation and
// every user callback is posted through it, so nothing in the core
// requires its own locking.
type Executor interface {
	// Post schedules fn to run on the executor's single goroutine. Post
	// is safe to call from any goroutine; fn itself must not block.
	Post(fn func())
	// AfterFunc schedules fn to run on the executor after d, and returns
	// a handle to cancel it. Cancelling after the timer already fired is
	// a silent no-op.
	AfterFunc(d time.Duration, fn func()) Canceler
}

// Canceler cancels a scheduled AfterFunc callback.
type Canceler interface {
	Cancel()
}

const executorInitialQueueCapacity = 16

// defaultExecutor is a single goroutine draining an unbounded queue of
// closures, adapted from the teacher's internal/queue ring buffer.
type defaultExecutor struct {
	q *taskqueue.Queue
}

// NewExecutor returns the default Executor: one background goroutine
// running posted closures strictly in order.
func NewExecutor() Executor {
	e := &defaultExecutor{q: taskqueue.New(executorInitialQueueCapacity)}
	go e.run()
	return e
}

func (e *defaultExecutor) run() {
	for e.q.Wait() {
		item, ok := e.q.Remove()
		if !ok {
			continue
		}
		item.Fn()
	}
}

func (e *defaultExecutor) Post(fn func()) {
	e.q.Add(taskqueue.Item{Fn: fn})
}

// timerCanceler cancels a pooled-timer-backed AfterFunc callback.
type timerCanceler struct {
	cancel chan struct{}
	once   sync.Once
}

func (c *timerCanceler) Cancel() {
	c.once.Do(func() { close(c.cancel) })
}

// AfterFunc schedules fn, via a pooled *time.Timer (internal/timers),
// to run through Post after d elapses.
func (e *defaultExecutor) AfterFunc(d time.Duration, fn func()) Canceler {
	timer := timers.AcquireTimer(d)
	c := &timerCanceler{cancel: make(chan struct{})}
	go func() {
		select {
		case <-timer.C:
			timers.ReleaseTimer(timer)
			e.Post(fn)
		case <-c.cancel:
			timers.ReleaseTimer(timer)
		}
	}()
	return c
}
