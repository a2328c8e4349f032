package services

import "sync"

// Export progress stages
const (
	StageStarted   = "started"
	StageProgress  = "progress"
	StageCompleted = "completed"
	StageFailed    = "failed"
)

// ProgressEvent is one update about a running export
type ProgressEvent struct {
	ExportID string  `json:"exportId"`
	Stage    string  `json:"stage"`
	Progress float64 `json:"progress"`
	URI      string  `json:"uri,omitempty"`
	Error    string  `json:"error,omitempty"`
}

// ProgressHub fans export progress out to subscribers. Slow subscribers miss
// intermediate updates rather than stalling the render, but always get the
// completed or failed event.
type ProgressHub struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]chan ProgressEvent
}

func NewProgressHub() *ProgressHub {
	return &ProgressHub{subs: make(map[int]chan ProgressEvent)}
}

// Subscribe returns a channel of events and a func that unsubscribes and
// closes it.
func (h *ProgressHub) Subscribe() (<-chan ProgressEvent, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.nextID
	h.nextID++
	ch := make(chan ProgressEvent, 16)
	h.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
			close(ch)
		})
	}
}

func (h *ProgressHub) Publish(event ProgressEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()

	terminal := event.Stage == StageCompleted || event.Stage == StageFailed
	for _, ch := range h.subs {
		select {
		case ch <- event:
			continue
		default:
		}
		if !terminal {
			continue
		}

		// make room by dropping the oldest queued update
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- event:
		default:
		}
	}
}

func (h *ProgressHub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
