package events

import (
	"context"
	"sync"
	"time"
)

// Type distinguishes progress from completion notifications.
type Type string

const (
	TypeProgress Type = "progress"
	TypeFinished Type = "finished"
)

// Outcome is the terminal result carried by a finished event.
type Outcome string

const (
	OutcomeSuccess   Outcome = "success"
	OutcomeError     Outcome = "error"
	OutcomeCancelled Outcome = "cancelled"
)

// Event is one outward notification about a job.
type Event struct {
	Sequence        uint64    `json:"seq"`
	Timestamp       time.Time `json:"ts"`
	Type            Type      `json:"type"`
	JobID           string    `json:"job_id"`
	Percent         int       `json:"percent"`
	Status          Outcome   `json:"status,omitempty"`
	OutputSizeBytes int64     `json:"output_size_bytes,omitempty"`
	Error           string    `json:"error,omitempty"`
}

// Progress builds a ProgressUpdate event.
func Progress(jobID string, percent int) Event {
	return Event{Type: TypeProgress, JobID: jobID, Percent: percent}
}

// Finished builds a JobFinished event.
func Finished(jobID string, outcome Outcome, outputSize int64, message string) Event {
	evt := Event{Type: TypeFinished, JobID: jobID, Status: outcome}
	switch outcome {
	case OutcomeSuccess:
		evt.Percent = 100
		evt.OutputSizeBytes = outputSize
	case OutcomeError:
		evt.Error = message
	}
	return evt
}

// Sink receives every published event.
type Sink interface {
	Append(Event)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Event)

func (f SinkFunc) Append(evt Event) { f(evt) }

// Hub stores recent events and wakes waiters when new events arrive.
type Hub struct {
	mu       sync.Mutex
	cond     *sync.Cond
	capacity int
	buffer   []Event
	nextSeq  uint64
	sinks    []Sink
}

// NewHub constructs a bounded in-memory event buffer.
func NewHub(capacity int) *Hub {
	if capacity <= 0 {
		capacity = 1024
	}
	h := &Hub{capacity: capacity}
	h.cond = sync.NewCond(&h.mu)
	return h
}

// AddSink wires an additional sink that receives every published event.
func (h *Hub) AddSink(sink Sink) {
	if h == nil || sink == nil {
		return
	}
	h.mu.Lock()
	h.sinks = append(h.sinks, sink)
	h.mu.Unlock()
}

// Publish appends evt and returns it with its sequence number assigned.
// Sinks run synchronously on the caller's goroutine.
func (h *Hub) Publish(evt Event) Event {
	if h == nil {
		return evt
	}
	h.mu.Lock()
	h.nextSeq++
	evt.Sequence = h.nextSeq
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}
	if len(h.buffer) == h.capacity {
		copy(h.buffer, h.buffer[1:])
		h.buffer = h.buffer[:h.capacity-1]
	}
	h.buffer = append(h.buffer, evt)
	sinks := append([]Sink(nil), h.sinks...)
	h.cond.Broadcast()
	h.mu.Unlock()

	for _, sink := range sinks {
		sink.Append(evt)
	}
	return evt
}

// Fetch returns up to limit events with sequence greater than since, plus the
// cursor to pass on the next call. When wait is true, Fetch blocks until at
// least one event is available or the context ends.
func (h *Hub) Fetch(ctx context.Context, since uint64, limit int, wait bool) ([]Event, uint64, error) {
	if h == nil {
		return nil, since, nil
	}
	if limit <= 0 || limit > h.capacity {
		limit = h.capacity
	}

	cancelWait := make(chan struct{})
	if wait && ctx != nil && ctx.Done() != nil {
		go func() {
			select {
			case <-ctx.Done():
				h.mu.Lock()
				h.cond.Broadcast()
				h.mu.Unlock()
			case <-cancelWait:
			}
		}()
	}
	defer close(cancelWait)

	h.mu.Lock()
	defer h.mu.Unlock()

	for {
		events, next := h.snapshotLocked(since, limit)
		if len(events) > 0 || !wait {
			return events, next, contextError(ctx)
		}
		if err := contextError(ctx); err != nil {
			return nil, next, err
		}
		h.cond.Wait()
	}
}

// Tail returns the most recent limit events without blocking.
func (h *Hub) Tail(limit int) ([]Event, uint64) {
	if h == nil {
		return nil, 0
	}
	if limit <= 0 || limit > h.capacity {
		limit = h.capacity
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	start := len(h.buffer) - limit
	if start < 0 {
		start = 0
	}
	out := append([]Event(nil), h.buffer[start:]...)
	return out, h.nextSeq
}

// LastSequence reports the most recently assigned sequence number.
func (h *Hub) LastSequence() uint64 {
	if h == nil {
		return 0
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.nextSeq
}

func (h *Hub) snapshotLocked(since uint64, limit int) ([]Event, uint64) {
	startIdx := -1
	for i, evt := range h.buffer {
		if evt.Sequence > since {
			startIdx = i
			break
		}
	}
	if startIdx < 0 {
		if since > h.nextSeq {
			return nil, h.nextSeq
		}
		return nil, since
	}
	end := startIdx + limit
	if end > len(h.buffer) {
		end = len(h.buffer)
	}
	out := append([]Event(nil), h.buffer[startIdx:end]...)
	return out, out[len(out)-1].Sequence
}

func contextError(ctx context.Context) error {
	if ctx == nil {
		return nil
	}
	return ctx.Err()
}
