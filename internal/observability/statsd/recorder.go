package statsd

import (
	"sync"
	"time"
)

// Point is one metric captured by a Recorder.
type Point struct {
	Kind  string
	Name  string
	Value float64
	Tags  map[string]string
}

// Recorder is an in-memory Sink for tests.
type Recorder struct {
	mu     sync.Mutex
	points []Point
}

var _ Sink = (*Recorder)(nil)

func (r *Recorder) add(kind, name string, value float64, tags map[string]string) {
	cp := make(map[string]string, len(tags))
	for k, v := range tags {
		cp[k] = v
	}
	r.mu.Lock()
	r.points = append(r.points, Point{Kind: kind, Name: name, Value: value, Tags: cp})
	r.mu.Unlock()
}

func (r *Recorder) Count(name string, value int64, tags map[string]string) {
	r.add("c", name, float64(value), tags)
}

func (r *Recorder) Gauge(name string, value float64, tags map[string]string) {
	r.add("g", name, value, tags)
}

func (r *Recorder) Timing(name string, value time.Duration, tags map[string]string) {
	r.add("ms", name, float64(value)/float64(time.Millisecond), tags)
}

// Points returns the captured metrics named name, or all of them when name is empty.
func (r *Recorder) Points(name string) []Point {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Point
	for _, p := range r.points {
		if name == "" || p.Name == name {
			out = append(out, p)
		}
	}
	return out
}
