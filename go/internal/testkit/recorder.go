package testkit

import (
	"encoding/json"
	"sync"
)

// Recorder is a subscriber that keeps every frame it is handed. A positive
// capacity makes Deliver refuse frames once that many are queued.
type Recorder struct {
	id       string
	capacity int

	mu     sync.Mutex
	frames [][]byte
	closed bool
}

func NewRecorder(id string) *Recorder {
	return &Recorder{id: id}
}

// NewBoundedRecorder refuses frames after capacity have been delivered.
func NewBoundedRecorder(id string, capacity int) *Recorder {
	return &Recorder{id: id, capacity: capacity}
}

func (r *Recorder) ID() string { return r.id }

func (r *Recorder) Deliver(frame []byte) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed || (r.capacity > 0 && len(r.frames) >= r.capacity) {
		return false
	}
	r.frames = append(r.frames, frame)
	return true
}

func (r *Recorder) Close() {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
}

func (r *Recorder) Closed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

// Frames decodes every delivered frame as a generic JSON object.
func (r *Recorder) Frames() []map[string]interface{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]map[string]interface{}, 0, len(r.frames))
	for _, raw := range r.frames {
		var m map[string]interface{}
		if err := json.Unmarshal(raw, &m); err == nil {
			out = append(out, m)
		}
	}
	return out
}

// Types lists the "type" field of each delivered frame in order.
func (r *Recorder) Types() []string {
	var types []string
	for _, f := range r.Frames() {
		t, _ := f["type"].(string)
		types = append(types, t)
	}
	return types
}

// Last returns the most recent frame of the given type, or nil.
func (r *Recorder) Last(frameType string) map[string]interface{} {
	frames := r.Frames()
	for i := len(frames) - 1; i >= 0; i-- {
		if frames[i]["type"] == frameType {
			return frames[i]
		}
	}
	return nil
}

// Reset drops everything recorded so far.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.frames = nil
	r.mu.Unlock()
}
