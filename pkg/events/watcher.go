package events

import (
	"sync"

	"go.uber.org/atomic"
)

// Event is anything a pipeline component reports, e.g. a processed or failed
// image.
type Event interface{}

// Watcher receives emitted events on Ch until it is stopped.
//
// A Watcher from Manager.Watch has a fixed buffer and misses events while it
// is full; Dropped counts them. One from Manager.Follow queues without limit
// and never misses an event.
type Watcher struct {
	Ch chan Event

	stop    func(*Watcher)
	dropped atomic.Int64

	// Follow only
	lossless bool
	mu       sync.Mutex
	backlog  []Event
	wake     chan struct{}
	done     chan struct{}
}

// Stop unregisters the Watcher. Ch is closed once it is no longer written.
func (w *Watcher) Stop() {
	w.stop(w)
}

// Dropped counts events discarded because Ch was full.
func (w *Watcher) Dropped() int64 {
	return w.dropped.Load()
}

// Pending reports how many queued events a following Watcher has not yet
// handed to Ch.
func (w *Watcher) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.backlog)
}

//--------------------------------------------------------------------------------
// private

func (w *Watcher) deliver(event Event) bool {
	if w.lossless {
		w.mu.Lock()
		w.backlog = append(w.backlog, event)
		w.mu.Unlock()

		select {
		case w.wake <- struct{}{}:
		default:
		}
		return true
	}

	select {
	case w.Ch <- event:
		return true
	default:
		w.dropped.Inc()
		return false
	}
}

func (w *Watcher) close() {
	if w.lossless {
		// pump closes Ch on its way out
		close(w.done)
		return
	}
	close(w.Ch)
}

// pump moves the backlog of a following Watcher onto Ch in order.
func (w *Watcher) pump() {
	defer close(w.Ch)

	for {
		w.mu.Lock()
		if len(w.backlog) == 0 {
			w.mu.Unlock()
			select {
			case <-w.wake:
				continue
			case <-w.done:
				return
			}
		}

		event := w.backlog[0]
		w.backlog[0] = nil
		w.backlog = w.backlog[1:]
		w.mu.Unlock()

		select {
		case w.Ch <- event:
		case <-w.done:
			return
		}
	}
}
