package session

import "math"

// DefaultSampleCapacity is the number of PWM samples kept for plotting.
const DefaultSampleCapacity = 320

// Sample is one op-amp reading.
type Sample struct {
	Duty    int
	Voltage float64
}

// Ring is a fixed-capacity circular buffer of samples. Push overwrites the
// oldest sample once the buffer is full.
type Ring struct {
	buf  []Sample
	next int
	full bool
}

// NewRing creates a ring holding up to capacity samples.
func NewRing(capacity int) *Ring {
	if capacity <= 0 {
		capacity = DefaultSampleCapacity
	}
	return &Ring{buf: make([]Sample, capacity)}
}

func (r *Ring) Push(s Sample) {
	r.buf[r.next] = s
	r.next++
	if r.next == len(r.buf) {
		r.next = 0
		r.full = true
	}
}

func (r *Ring) Len() int {
	if r.full {
		return len(r.buf)
	}
	return r.next
}

func (r *Ring) Cap() int { return len(r.buf) }

// Samples returns the buffered samples, oldest first.
func (r *Ring) Samples() []Sample {
	out := make([]Sample, 0, r.Len())
	if r.full {
		out = append(out, r.buf[r.next:]...)
	}
	return append(out, r.buf[:r.next]...)
}

// Last returns the most recent sample.
func (r *Ring) Last() (Sample, bool) {
	if r.Len() == 0 {
		return Sample{}, false
	}
	i := r.next - 1
	if i < 0 {
		i = len(r.buf) - 1
	}
	return r.buf[i], true
}

func (r *Ring) Reset() {
	r.next = 0
	r.full = false
}

// Stats accumulates count, sum, min and max since the last reset.
type Stats struct {
	Count int
	Sum   float64
	Min   float64
	Max   float64
}

func (s *Stats) Add(v float64) {
	if s.Count == 0 {
		s.Min, s.Max = v, v
	} else {
		s.Min = math.Min(s.Min, v)
		s.Max = math.Max(s.Max, v)
	}
	s.Count++
	s.Sum += v
}

// Avg is zero when no samples were added.
func (s Stats) Avg() float64 {
	if s.Count == 0 {
		return 0
	}
	return s.Sum / float64(s.Count)
}
