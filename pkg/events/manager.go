package events

import (
	"sync"
)

// watcherBuffer is how many events a slow watcher may fall behind by before
// further events are dropped for it.
const watcherBuffer = 16

// Manager fans every emitted Event out to all registered Watchers.
type Manager struct {
	mutex    sync.RWMutex
	watchers map[*Watcher]struct{}
}

// Watch registers a Watcher that drops events while it is behind, e.g. for a
// terminal following progress. Call Stop on it when done.
func (m *Manager) Watch() *Watcher {
	watcher := &Watcher{
		Ch:   make(chan Event, watcherBuffer),
		stop: m.Stop,
	}

	m.add(watcher)
	return watcher
}

// Follow registers a Watcher that receives every event in order, however far
// behind its reader is. Call Stop on it when done.
func (m *Manager) Follow() *Watcher {
	watcher := &Watcher{
		Ch:       make(chan Event),
		stop:     m.Stop,
		lossless: true,
		wake:     make(chan struct{}, 1),
		done:     make(chan struct{}),
	}

	m.add(watcher)
	go watcher.pump()
	return watcher
}

// Emit delivers event to every watcher without blocking. It reports how many
// watchers received or queued it.
func (m *Manager) Emit(event Event) int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	delivered := 0
	for watcher := range m.watchers {
		if watcher.deliver(event) {
			delivered++
		}
	}
	return delivered
}

// Stop unregisters watcher and closes its channel.
func (m *Manager) Stop(watcher *Watcher) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if _, ok := m.watchers[watcher]; !ok {
		return
	}
	delete(m.watchers, watcher)
	watcher.close()
}

// Len reports the number of registered watchers.
func (m *Manager) Len() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.watchers)
}

// Dropped sums the events every registered watcher has missed.
func (m *Manager) Dropped() int64 {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	var total int64
	for watcher := range m.watchers {
		total += watcher.Dropped()
	}
	return total
}

//--------------------------------------------------------------------------------
// private

func (m *Manager) add(watcher *Watcher) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if m.watchers == nil {
		m.watchers = map[*Watcher]struct{}{}
	}
	m.watchers[watcher] = struct{}{}
}
