// Package metrics holds the byte counters shared by the forwarding pumps and
// the periodic throughput reporter.
package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// Counter names as printed by the reporter.
const (
	SentDevice        = "sent_tun"
	ReceivedDevice    = "received_tun"
	SentTransport     = "sent_sock"
	ReceivedTransport = "received_sock"
)

// RateCounter is a monotonically increasing byte counter. Add is safe from any
// number of goroutines; Sample is meant for a single reporter goroutine.
type RateCounter struct {
	name  string
	total atomic.Uint64

	mu         sync.Mutex
	lastValue  uint64
	lastSample time.Time
}

// NewRateCounter returns a counter whose first sample interval starts at now.
func NewRateCounter(name string, now time.Time) *RateCounter {
	return &RateCounter{name: name, lastSample: now}
}

// Name returns the counter name.
func (c *RateCounter) Name() string { return c.name }

// Add increases the running total by n bytes.
func (c *RateCounter) Add(n int) {
	if n > 0 {
		c.total.Add(uint64(n))
	}
}

// Total returns the running total.
func (c *RateCounter) Total() uint64 { return c.total.Load() }

// Sample returns the average rate in bytes per second since the previous
// sample and starts a new interval at now. A non-positive elapsed time is
// treated as one second.
func (c *RateCounter) Sample(now time.Time) float64 {
	value := c.total.Load()

	c.mu.Lock()
	defer c.mu.Unlock()

	elapsed := now.Sub(c.lastSample).Seconds()
	if elapsed <= 0 {
		elapsed = 1
	}
	rate := float64(value-c.lastValue) / elapsed
	c.lastValue = value
	c.lastSample = now
	return rate
}

// Metrics owns the four tunnel counters.
type Metrics struct {
	SentDevice        *RateCounter
	ReceivedDevice    *RateCounter
	SentTransport     *RateCounter
	ReceivedTransport *RateCounter
}

// New creates the counter set with all sample intervals starting now.
func New() *Metrics {
	now := time.Now()
	return &Metrics{
		SentDevice:        NewRateCounter(SentDevice, now),
		ReceivedDevice:    NewRateCounter(ReceivedDevice, now),
		SentTransport:     NewRateCounter(SentTransport, now),
		ReceivedTransport: NewRateCounter(ReceivedTransport, now),
	}
}

// Counters returns the counters in reporting order.
func (m *Metrics) Counters() []*RateCounter {
	return []*RateCounter{m.SentDevice, m.ReceivedDevice, m.SentTransport, m.ReceivedTransport}
}

// Totals returns the running totals keyed by counter name.
func (m *Metrics) Totals() map[string]uint64 {
	out := make(map[string]uint64, 4)
	for _, c := range m.Counters() {
		out[c.Name()] = c.Total()
	}
	return out
}
