package series

import "errors"

// ErrEmpty is returned by aggregate reads on a series with no samples.
var ErrEmpty = errors.New("series: no samples")

// Series is a bounded numeric history for one measured quantity.
// Capacity 0 means the series grows without bound; capacity > 0 means a
// fixed ring where the oldest sample is evicted first once full.
type Series struct {
	name     string
	capacity int
	values   []float64
	head     int // index of the oldest sample once the ring is full
	count    int
}

// New creates a series. A negative capacity is treated as 0 (unbounded).
func New(name string, capacity int) *Series {
	if capacity < 0 {
		capacity = 0
	}
	s := &Series{name: name, capacity: capacity}
	if capacity > 0 {
		s.values = make([]float64, 0, capacity)
	}
	return s
}

func (s *Series) Name() string { return s.name }

// Capacity returns the configured bound, 0 when unbounded.
func (s *Series) Capacity() int { return s.capacity }

func (s *Series) Len() int { return s.count }

// Append adds a sample in O(1) amortized time. In ring mode the oldest
// sample is overwritten once the capacity is reached.
func (s *Series) Append(v float64) {
	if s.capacity > 0 && s.count == s.capacity {
		s.values[s.head] = v
		s.head = (s.head + 1) % s.capacity
		return
	}
	s.values = append(s.values, v)
	s.count++
}

// Last returns the most recent sample.
func (s *Series) Last() (float64, error) {
	if s.count == 0 {
		return 0, ErrEmpty
	}
	idx := s.count - 1
	if s.capacity > 0 {
		idx = (s.head + s.count - 1) % s.capacity
	}
	return s.values[idx], nil
}

// Average returns the arithmetic mean over current contents.
func (s *Series) Average() (float64, error) {
	if s.count == 0 {
		return 0, ErrEmpty
	}
	var sum float64
	for _, v := range s.values {
		sum += v
	}
	return sum / float64(s.count), nil
}

// Max returns the largest sample over current contents.
func (s *Series) Max() (float64, error) {
	if s.count == 0 {
		return 0, ErrEmpty
	}
	max := s.values[0]
	for _, v := range s.values[1:] {
		if v > max {
			max = v
		}
	}
	return max, nil
}

// Values returns a snapshot copy in insertion order, oldest first.
func (s *Series) Values() []float64 {
	out := make([]float64, 0, s.count)
	if s.capacity > 0 && s.count == s.capacity {
		out = append(out, s.values[s.head:]...)
		out = append(out, s.values[:s.head]...)
		return out
	}
	return append(out, s.values...)
}

// Reset discards all samples, keeping name and capacity.
func (s *Series) Reset() {
	s.values = s.values[:0]
	s.head = 0
	s.count = 0
}
