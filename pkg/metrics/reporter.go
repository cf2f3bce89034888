package metrics

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/irctrakz/udptun/pkg/logging"
)

// Reporter periodically logs the throughput of every counter.
type Reporter struct {
	metrics  *Metrics
	interval time.Duration
	format   string
}

// NewReporter creates a reporter. A non-positive interval defaults to one
// second; format is "text" (default) or "json".
func NewReporter(m *Metrics, interval time.Duration, format string) *Reporter {
	if interval <= 0 {
		interval = time.Second
	}
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = "text"
	}
	return &Reporter{metrics: m, interval: interval, format: format}
}

// Run samples and logs on every tick. It never returns.
func (r *Reporter) Run() {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for now := range ticker.C {
		r.emit(now)
	}
}

// emit logs one report at warn so that only error and fatal levels hide it.
func (r *Reporter) emit(now time.Time) {
	logging.Warnf("%s", r.Report(now))
}

type snapshot struct {
	Timestamp string             `json:"ts"`
	Rates     map[string]float64 `json:"rates"`
	Totals    map[string]uint64  `json:"totals"`
}

// Report samples every counter at now and renders one line.
func (r *Reporter) Report(now time.Time) string {
	counters := r.metrics.Counters()

	if r.format == "json" {
		snap := snapshot{
			Timestamp: now.UTC().Format(time.RFC3339),
			Rates:     make(map[string]float64, len(counters)),
			Totals:    make(map[string]uint64, len(counters)),
		}
		for _, c := range counters {
			snap.Totals[c.Name()] = c.Total()
			snap.Rates[c.Name()] = c.Sample(now)
		}
		b, _ := json.Marshal(snap)
		return "metrics: " + string(b)
	}

	parts := make([]string, 0, len(counters))
	for _, c := range counters {
		parts = append(parts, FormatRate(c.Name(), c.Sample(now)))
	}
	return strings.Join(parts, ", ")
}

// FormatRate renders "<name>: <rate> B/s".
func FormatRate(name string, rate float64) string {
	return fmt.Sprintf("%s: %.0f B/s", name, rate)
}
