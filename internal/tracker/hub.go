package tracker

import "sync"

// Hub holds the latest snapshot and a bounded history for readers outside
// the tick loop goroutine. It is safe for concurrent use.
type Hub struct {
	mu      sync.RWMutex
	latest  Snapshot
	have    bool
	history []Snapshot
	next    int
	full    bool
}

// NewHub creates a hub keeping the last size snapshots.
func NewHub(size int) *Hub {
	if size <= 0 {
		size = 1
	}
	return &Hub{history: make([]Snapshot, size)}
}

// Publish records s as the latest snapshot and appends it to the history.
func (h *Hub) Publish(s Snapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.latest = s
	h.have = true
	h.history[h.next] = s
	h.next = (h.next + 1) % len(h.history)
	if h.next == 0 {
		h.full = true
	}
}

// Latest returns the most recent snapshot, false before the first Publish.
func (h *Hub) Latest() (Snapshot, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.latest, h.have
}

// History returns up to n of the most recent snapshots, oldest first.
func (h *Hub) History(n int) []Snapshot {
	h.mu.RLock()
	defer h.mu.RUnlock()

	count := h.next
	if h.full {
		count = len(h.history)
	}
	if n <= 0 || n > count {
		n = count
	}
	out := make([]Snapshot, n)
	start := (h.next - n + len(h.history)) % len(h.history)
	for i := range out {
		out[i] = h.history[(start+i)%len(h.history)]
	}
	return out
}

// Len returns the number of snapshots held.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.full {
		return len(h.history)
	}
	return h.next
}

// Cap returns the history capacity.
func (h *Hub) Cap() int {
	return len(h.history)
}
