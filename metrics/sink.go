// Package metrics is the counter/timer sink the bot reports to.
package metrics

import (
	"context"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"sync"
	"time"
)

type Sink interface {
	Count(name, label string)
	Observe(name, label string, d time.Duration)
}

// Time starts a timer and returns the function that records it.
func Time(s Sink, name, label string) func() {
	start := time.Now()
	return func() {
		s.Observe(name, label, time.Since(start))
	}
}

// OtelSink reports counters and durations through an OpenTelemetry meter.
// Instruments are created on first use.
type OtelSink struct {
	meter      metric.Meter
	mu         sync.Mutex
	counters   map[string]metric.Int64Counter
	histograms map[string]metric.Float64Histogram
}

func NewOtelSink(meter metric.Meter) *OtelSink {
	return &OtelSink{
		meter:      meter,
		counters:   make(map[string]metric.Int64Counter),
		histograms: make(map[string]metric.Float64Histogram),
	}
}

// Noop reports into a meter that drops everything.
func Noop() *OtelSink {
	return NewOtelSink(noop.NewMeterProvider().Meter("discord-relay"))
}

func (s *OtelSink) Count(name, label string) {
	s.mu.Lock()
	counter, ok := s.counters[name]
	if !ok {
		var err error
		counter, err = s.meter.Int64Counter(name)
		if err != nil {
			s.mu.Unlock()
			return
		}
		s.counters[name] = counter
	}
	s.mu.Unlock()
	counter.Add(context.Background(), 1, metric.WithAttributes(attribute.String("label", label)))
}

func (s *OtelSink) Observe(name, label string, d time.Duration) {
	s.mu.Lock()
	histogram, ok := s.histograms[name]
	if !ok {
		var err error
		histogram, err = s.meter.Float64Histogram(name, metric.WithUnit("s"))
		if err != nil {
			s.mu.Unlock()
			return
		}
		s.histograms[name] = histogram
	}
	s.mu.Unlock()
	histogram.Record(context.Background(), d.Seconds(), metric.WithAttributes(attribute.String("label", label)))
}
