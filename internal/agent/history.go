package agent

import "time"

// HistoryEntry records one processed task.
type HistoryEntry struct {
	TaskType  string    `json:"task_type"`
	StepName  string    `json:"step_name,omitempty"`
	Success   bool      `json:"success"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// History is a fixed-capacity ring buffer of task records. When full,
// the oldest entry is overwritten in O(1).
type History struct {
	entries []HistoryEntry
	head    int
	size    int
}

// NewHistory creates a ring with the given capacity.
func NewHistory(capacity int) *History {
	if capacity <= 0 {
		capacity = 1
	}
	return &History{entries: make([]HistoryEntry, capacity)}
}

// Push appends an entry, evicting the oldest when the ring is full.
func (h *History) Push(e HistoryEntry) {
	h.entries[h.head] = e
	h.head = (h.head + 1) % len(h.entries)
	if h.size < len(h.entries) {
		h.size++
	}
}

// Len returns the number of stored entries.
func (h *History) Len() int { return h.size }

// Cap returns the ring capacity.
func (h *History) Cap() int { return len(h.entries) }

// Entries returns stored entries in insertion order, oldest first.
func (h *History) Entries() []HistoryEntry {
	out := make([]HistoryEntry, 0, h.size)
	start := (h.head - h.size + len(h.entries)) % len(h.entries)
	for i := 0; i < h.size; i++ {
		out = append(out, h.entries[(start+i)%len(h.entries)])
	}
	return out
}
