package cdp

import (
	"context"
	"sync"

	"github.com/chromedp/cdproto"

	"github.com/viewfabric/reactview/log"
)

// Event is a protocol event received from the engine, with its params
// already unmarshaled into the matching cdproto event type.
type Event struct {
	Name cdproto.MethodType
	Data any
}

type eventWatcher struct {
	ctx    context.Context
	logger *log.Logger

	subsMu sync.RWMutex
	subs   map[cdproto.MethodType]map[chan *Event]struct{}
}

func newEventWatcher(ctx context.Context, logger *log.Logger) *eventWatcher {
	return &eventWatcher{
		ctx:    ctx,
		logger: logger,
		subs:   make(map[cdproto.MethodType]map[chan *Event]struct{}),
	}
}

// subscribe registers a channel for the given events and returns it along
// with a cancel function that unsubscribes it.
func (w *eventWatcher) subscribe(events ...cdproto.MethodType) (<-chan *Event, func()) {
	ch := make(chan *Event, 16)

	w.subsMu.Lock()
	for _, evt := range events {
		if w.subs[evt] == nil {
			w.subs[evt] = make(map[chan *Event]struct{})
		}
		w.subs[evt][ch] = struct{}{}
	}
	w.subsMu.Unlock()

	cancel := func() {
		w.subsMu.Lock()
		for _, evt := range events {
			delete(w.subs[evt], ch)
		}
		w.subsMu.Unlock()
	}
	return ch, cancel
}

func (w *eventWatcher) notify(evt *Event) {
	w.subsMu.RLock()
	defer w.subsMu.RUnlock()

	for ch := range w.subs[evt.Name] {
		select {
		case ch <- evt:
		case <-w.ctx.Done():
			return
		default:
			// A slow subscriber must not stall the receive loop.
			w.logger.Warnf("cdp", "dropping %s event for a slow subscriber", evt.Name)
		}
	}
}
