package ui

import (
	"strings"
)

// Sparkline renders a text-based throughput chart using Unicode block
// characters, in the style of asitop's live metrics.
type Sparkline struct {
	samples  []float64 // Ring buffer of samples
	capacity int
	head     int // Next write position in the ring
	count    int // Samples added so far
	max      float64
}

// SparklineChars are the Unicode block characters for rendering sparklines,
// 8 levels of height from lowest to full.
var SparklineChars = []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

// NewSparkline creates a sparkline holding up to capacity samples.
func NewSparkline(capacity int) *Sparkline {
	if capacity <= 0 {
		capacity = 60 // One minute at one sample per second
	}
	return &Sparkline{
		samples:  make([]float64, capacity),
		capacity: capacity,
	}
}

// Add appends a sample, evicting the oldest once the buffer is full.
func (s *Sparkline) Add(value float64) {
	s.samples[s.head] = value
	s.head = (s.head + 1) % s.capacity
	s.count++

	if value > s.max {
		s.max = value
	}

	// The max can only grow above; rescan once per full revolution so the
	// chart recovers after a throughput spike has scrolled out.
	if s.count%s.capacity == 0 {
		s.rescanMax()
	}
}

func (s *Sparkline) rescanMax() {
	s.max = 0
	for _, v := range s.samples {
		if v > s.max {
			s.max = v
		}
	}
	if s.max < 1 {
		s.max = 1
	}
}

// Render returns the most recent samples as a string of block characters,
// oldest on the left. The result is always exactly width characters,
// space-padded on the right until enough samples arrive. A width of 0 or
// less, or wider than the buffer, renders the full buffer.
func (s *Sparkline) Render(width int) string {
	if width <= 0 || width > s.capacity {
		width = s.capacity
	}

	if s.count == 0 {
		return strings.Repeat(string(SparklineChars[0]), width)
	}

	if s.max <= 0 {
		s.rescanMax()
	}

	ordered := s.chronological()
	if len(ordered) > width {
		ordered = ordered[len(ordered)-width:]
	}

	var sb strings.Builder
	sb.Grow(width * 3) // Block characters are 3 bytes in UTF-8

	for _, v := range ordered {
		sb.WriteRune(SparklineChars[s.level(v)])
	}
	for i := len(ordered); i < width; i++ {
		sb.WriteRune(' ')
	}

	return sb.String()
}

// chronological returns the live samples oldest-first.
func (s *Sparkline) chronological() []float64 {
	if s.count < s.capacity {
		return s.samples[:s.count]
	}

	out := make([]float64, 0, s.capacity)
	out = append(out, s.samples[s.head:]...)
	out = append(out, s.samples[:s.head]...)
	return out
}

// level scales a value to an index into SparklineChars.
func (s *Sparkline) level(value float64) int {
	if s.max <= 0 {
		return 0
	}
	idx := int(value / s.max * float64(len(SparklineChars)-1))
	if idx < 0 {
		return 0
	}
	if idx >= len(SparklineChars) {
		return len(SparklineChars) - 1
	}
	return idx
}

// Clear resets the sparkline.
func (s *Sparkline) Clear() {
	for i := range s.samples {
		s.samples[i] = 0
	}
	s.head = 0
	s.count = 0
	s.max = 0
}

// Count returns the number of samples added.
func (s *Sparkline) Count() int {
	return s.count
}

// Max returns the current maximum value.
func (s *Sparkline) Max() float64 {
	return s.max
}
