// Package history keeps a bounded, time-ordered trace of recent sensor
// readings for display. It carries no calibration meaning: nothing here is
// ever consulted to decide pressed state or thresholds.
package history

// DefaultCapacity holds three seconds of samples at 120 Hz.
const DefaultCapacity = 3 * 120

// History is a fixed-capacity FIFO of float64 samples. Push appends at the
// tail and evicts from the head once full. The zero value is not usable; use New.
type History struct {
	data []float64
	pos  int
	full bool
}

// New creates a History holding at most capacity samples. Non-positive
// capacities fall back to DefaultCapacity.
func New(capacity int) *History {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &History{data: make([]float64, capacity)}
}

// Push appends v, dropping the oldest sample when at capacity.
func (h *History) Push(v float64) {
	h.data[h.pos] = v
	h.pos++
	if h.pos == len(h.data) {
		h.pos = 0
		h.full = true
	}
}

// Clear empties the history without releasing its storage.
func (h *History) Clear() {
	h.pos = 0
	h.full = false
}

// Len returns the number of stored samples.
func (h *History) Len() int {
	if h.full {
		return len(h.data)
	}
	return h.pos
}

// Cap returns the maximum number of samples kept.
func (h *History) Cap() int {
	return len(h.data)
}

// Last returns the most recent sample, or false when empty.
func (h *History) Last() (float64, bool) {
	if h.Len() == 0 {
		return 0, false
	}
	idx := (h.pos - 1 + len(h.data)) % len(h.data)
	return h.data[idx], true
}

// Values returns a copy of the samples, oldest first.
func (h *History) Values() []float64 {
	out := make([]float64, h.Len())
	if h.full {
		n := copy(out, h.data[h.pos:])
		copy(out[n:], h.data[:h.pos])
	} else {
		copy(out, h.data[:h.pos])
	}
	return out
}

// Clone returns an independent copy.
func (h *History) Clone() *History {
	c := &History{data: make([]float64, len(h.data)), pos: h.pos, full: h.full}
	copy(c.data, h.data)
	return c
}
