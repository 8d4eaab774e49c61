package monitoring

import (
	"sync"

	"github.com/mcfalli/TickStockAppV2-sub021/internal/events"
)

// defaultWindowSize bounds the recent-events window. Old entries fall
// off as new ones arrive; the dashboard only ever shows a short tail.
const defaultWindowSize = 200

// EventWindow is a fixed-size ring of the most recent monitoring events.
// The subscriber goroutine is the only writer; dashboard handlers read
// concurrently.
type EventWindow struct {
	mu      sync.RWMutex
	entries []*events.MonitoringEvent
	next    int
	count   int
}

// NewEventWindow creates a window holding up to size events.
func NewEventWindow(size int) *EventWindow {
	if size <= 0 {
		size = defaultWindowSize
	}
	return &EventWindow{
		entries: make([]*events.MonitoringEvent, size),
	}
}

// Add appends an event, evicting the oldest once the window is full.
func (w *EventWindow) Add(event *events.MonitoringEvent) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.entries[w.next] = event
	w.next = (w.next + 1) % len(w.entries)
	if w.count < len(w.entries) {
		w.count++
	}
}

// Recent returns up to limit events, newest first. limit <= 0 returns
// the whole window.
func (w *EventWindow) Recent(limit int) []*events.MonitoringEvent {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if limit <= 0 || limit > w.count {
		limit = w.count
	}

	recent := make([]*events.MonitoringEvent, 0, limit)
	for i := 1; i <= limit; i++ {
		idx := (w.next - i + len(w.entries)) % len(w.entries)
		recent = append(recent, w.entries[idx])
	}
	return recent
}

// Len returns how many events the window currently holds.
func (w *EventWindow) Len() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.count
}

// Capacity returns the window's fixed size.
func (w *EventWindow) Capacity() int {
	return len(w.entries)
}
