// Package series maintains the bounded live buffer of telemetry points and
// projects it into renderable chart series. It is presentation state kept
// independent of any rendering technology.
package series

import (
	"sync"
	"time"
)

// DefaultCapacity is the number of points a chart keeps before the oldest is
// shifted out.
const DefaultCapacity = 50

// Mode of the buffer: following the live feed or showing a fetched window.
type Mode int

const (
	Live Mode = iota
	Historical
)

// Point is one chart sample.
type Point struct {
	Time        time.Time
	Temperature float64
	Turbidity   float64
	Mode        string

	// Setpoints recorded with the sample. In historical views the chart
	// draws these rather than the live current setpoint.
	TemperatureSetpoint float64
	TurbiditySetpoint   float64
}

// Series is the renderable projection of the buffer: one label per point and
// per-metric value arrays of matching length.
type Series struct {
	Labels              []string
	Temperature         []float64
	Turbidity           []float64
	TemperatureSetpoint []float64
	TurbiditySetpoint   []float64
}

// Buffer is a bounded FIFO of the most recent points. Appends beyond capacity
// evict the oldest entry in O(1) amortized time.
type Buffer struct {
	mu       sync.Mutex
	capacity int
	points   []Point
	mode     Mode
}

// NewBuffer creates a Live-mode buffer. Non-positive capacity falls back to
// DefaultCapacity.
func NewBuffer(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Buffer{capacity: capacity, mode: Live}
}

// Append adds a live point, evicting the oldest when over capacity. Appends
// are ignored outside Live mode; the historical window owns the buffer then.
func (b *Buffer) Append(p Point) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.mode != Live {
		return
	}
	b.points = append(b.points, p)
	if len(b.points) > b.capacity {
		b.points = b.points[1:]
	}
}

// SetHistorical replaces the buffer wholesale with a fetched window. No
// incremental merge with live data happens.
func (b *Buffer) SetHistorical(points []Point) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.mode = Historical
	b.points = append([]Point(nil), points...)
}

// ResumeLive clears the buffer and resumes live appends.
func (b *Buffer) ResumeLive() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.mode = Live
	b.points = nil
}

// Mode reports the current display mode.
func (b *Buffer) Mode() Mode {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.mode
}

// Len reports the number of buffered points.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.points)
}

// Points returns a copy of the buffered points in arrival order.
func (b *Buffer) Points() []Point {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Point(nil), b.points...)
}

// ToSeries recomputes the renderable projection.
func (b *Buffer) ToSeries() Series {
	b.mu.Lock()
	defer b.mu.Unlock()

	s := Series{
		Labels:              make([]string, len(b.points)),
		Temperature:         make([]float64, len(b.points)),
		Turbidity:           make([]float64, len(b.points)),
		TemperatureSetpoint: make([]float64, len(b.points)),
		TurbiditySetpoint:   make([]float64, len(b.points)),
	}
	for i, p := range b.points {
		s.Labels[i] = p.Time.Format("15:04:05")
		s.Temperature[i] = p.Temperature
		s.Turbidity[i] = p.Turbidity
		s.TemperatureSetpoint[i] = p.TemperatureSetpoint
		s.TurbiditySetpoint[i] = p.TurbiditySetpoint
	}
	return s
}
