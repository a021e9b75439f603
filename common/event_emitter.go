package common

import (
	"context"
	"sync"
)

// Event as emitted by an EventEmitter.
type Event struct {
	Type string
	Data any
}

// eventQueue buffers events for one subscriber channel so that a slow
// receiver never stalls the emitter, while per-channel ordering holds.
type eventQueue struct {
	mu     sync.Mutex
	events []Event
}

type eventHandler struct {
	ctx   context.Context
	ch    chan Event
	queue *eventQueue
}

// EventEmitter is implemented by types host applications can subscribe to.
type EventEmitter interface {
	On(ctx context.Context, events []string, ch chan Event)
	OnAll(ctx context.Context, ch chan Event)
}

// syncFunc functions are passed through the syncCh for synchronously
// handling subscription and emit requests.
type syncFunc func() (done chan struct{})

// BaseEventEmitter emits events to registered handlers.
type BaseEventEmitter struct {
	handlers    map[string][]*eventHandler
	handlersAll []*eventHandler

	queues map[chan Event]*eventQueue

	syncCh chan syncFunc
	ctx    context.Context
}

// NewBaseEventEmitter creates a new instance of a base event emitter.
func NewBaseEventEmitter(ctx context.Context) BaseEventEmitter {
	bem := BaseEventEmitter{
		handlers: make(map[string][]*eventHandler),
		queues:   make(map[chan Event]*eventQueue),
		syncCh:   make(chan syncFunc),
		ctx:      ctx,
	}
	go bem.syncAll(ctx)
	return bem
}

// syncAll receives work requests from BaseEventEmitter methods and processes
// them one at a time for synchronization. It returns when the emitter
// context is done.
func (e *BaseEventEmitter) syncAll(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case fn := <-e.syncCh:
			done := fn()
			done <- struct{}{}
		}
	}
}

// sync is a helper for synchronized access to the BaseEventEmitter.
func (e *BaseEventEmitter) sync(fn func()) {
	done := make(chan struct{})
	select {
	case <-e.ctx.Done():
		return
	case e.syncCh <- func() chan struct{} {
		fn()
		return done
	}:
	}
	<-done
}

func (e *BaseEventEmitter) emit(event string, data any) {
	deliver := func(eh *eventHandler) {
		// The queue mutex is held across the channel send so that
		// concurrent deliveries to the same channel keep their order.
		eh.queue.mu.Lock()
		defer eh.queue.mu.Unlock()

		if len(eh.queue.events) == 0 {
			return
		}
		next := eh.queue.events[0]

		select {
		case eh.ch <- next:
			eh.queue.events = eh.queue.events[1:]
		case <-eh.ctx.Done():
		}
	}
	emitTo := func(handlers []*eventHandler) (updated []*eventHandler) {
		for i := 0; i < len(handlers); {
			handler := handlers[i]
			select {
			case <-handler.ctx.Done():
				handlers = append(handlers[:i], handlers[i+1:]...)
				continue
			default:
				handler.queue.mu.Lock()
				handler.queue.events = append(handler.queue.events, Event{Type: event, Data: data})
				handler.queue.mu.Unlock()

				go deliver(handler)
				i++
			}
		}
		return handlers
	}
	e.sync(func() {
		e.handlers[event] = emitTo(e.handlers[event])
		e.handlersAll = emitTo(e.handlersAll)
	})
}

// On registers a handler channel for the given events. The channel receives
// events until ctx is done.
func (e *BaseEventEmitter) On(ctx context.Context, events []string, ch chan Event) {
	e.sync(func() {
		q, ok := e.queues[ch]
		if !ok {
			q = &eventQueue{}
			e.queues[ch] = q
		}

		for _, event := range events {
			e.handlers[event] = append(e.handlers[event], &eventHandler{ctx: ctx, ch: ch, queue: q})
		}
	})
}

// OnAll registers a handler channel for all events.
func (e *BaseEventEmitter) OnAll(ctx context.Context, ch chan Event) {
	e.sync(func() {
		q, ok := e.queues[ch]
		if !ok {
			q = &eventQueue{}
			e.queues[ch] = q
		}

		e.handlersAll = append(e.handlersAll, &eventHandler{ctx: ctx, ch: ch, queue: q})
	})
}
