package metrics

import (
	"sync"
	"time"
)

type key struct {
	name  string
	label string
}

// Recorder keeps every report in memory. Used for diagnostics and tests.
type Recorder struct {
	mu        sync.Mutex
	counts    map[key]int
	durations map[key][]time.Duration
}

func NewRecorder() *Recorder {
	return &Recorder{
		counts:    make(map[key]int),
		durations: make(map[key][]time.Duration),
	}
}

func (r *Recorder) Count(name, label string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counts[key{name, label}]++
}

func (r *Recorder) Observe(name, label string, d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := key{name, label}
	r.durations[k] = append(r.durations[k], d)
}

func (r *Recorder) Counter(name, label string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts[key{name, label}]
}

func (r *Recorder) Observations(name, label string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.durations[key{name, label}])
}

// Tee reports to every sink in order.
type Tee []Sink

func (t Tee) Count(name, label string) {
	for _, s := range t {
		s.Count(name, label)
	}
}

func (t Tee) Observe(name, label string, d time.Duration) {
	for _, s := range t {
		s.Observe(name, label, d)
	}
}
