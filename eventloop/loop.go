// Package eventloop implements the single-threaded task loop views run on.
//
// All view work is serialized on one goroutine. The loop keeps two queues:
// a normal one, and a low-priority one that is only drained when the normal
// queue is empty. The low-priority queue is what the view cache uses to
// defer speculative view construction to idle turns of the loop.
package eventloop

import (
	"sync"

	"github.com/viewfabric/reactview/log"
)

// Task is a unit of work executed on the loop goroutine.
type Task func()

// Loop is a single-goroutine task loop with priority-based deferral.
type Loop struct {
	logger *log.Logger

	mu    sync.Mutex
	tasks []Task
	idle  []Task

	wake     chan struct{}
	stopCh   chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// New creates a Loop and starts its goroutine.
func New(logger *log.Logger) *Loop {
	l := &Loop{
		logger: logger,
		wake:   make(chan struct{}, 1),
		stopCh: make(chan struct{}),
		done:   make(chan struct{}),
	}
	go l.run()
	return l
}

func (l *Loop) run() {
	defer close(l.done)
	for {
		select {
		case <-l.stopCh:
			l.logger.Debugf("eventloop", "loop stopped")
			return
		default:
		}

		t := l.next()
		if t == nil {
			select {
			case <-l.wake:
			case <-l.stopCh:
				l.logger.Debugf("eventloop", "loop stopped while idle")
				return
			}
			continue
		}
		t()
	}
}

// next pops the first normal task, falling back to the low-priority queue
// only when no normal task is pending.
func (l *Loop) next() Task {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.tasks) > 0 {
		t := l.tasks[0]
		l.tasks = l.tasks[1:]
		return t
	}
	if len(l.idle) > 0 {
		t := l.idle[0]
		l.idle = l.idle[1:]
		return t
	}
	return nil
}

// Post queues a task for execution. It reports false if the loop has
// stopped, in which case the task will never run.
func (l *Loop) Post(t Task) bool {
	if l.Stopping() {
		return false
	}
	l.mu.Lock()
	l.tasks = append(l.tasks, t)
	l.mu.Unlock()
	l.wakeup()
	return true
}

// PostIdle queues a task on the low-priority queue. Idle tasks run only
// when no normal task is pending. Callers that depend on loop state must
// re-check it inside the task: conditions can change between scheduling
// and execution.
func (l *Loop) PostIdle(t Task) bool {
	if l.Stopping() {
		return false
	}
	l.mu.Lock()
	l.idle = append(l.idle, t)
	l.mu.Unlock()
	l.wakeup()
	return true
}

func (l *Loop) wakeup() {
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Stopping reports whether Stop has been called.
func (l *Loop) Stopping() bool {
	select {
	case <-l.stopCh:
		return true
	default:
		return false
	}
}

// Stop shuts the loop down and waits for the loop goroutine to exit.
// Queued tasks that have not started are dropped.
func (l *Loop) Stop() {
	l.stopOnce.Do(func() {
		close(l.stopCh)
	})
	<-l.done
}
