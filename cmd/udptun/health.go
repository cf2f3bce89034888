package main

import (
	"encoding/json"
	"net/http"
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v4/process"
	"github.com/sirupsen/logrus"

	"github.com/irctrakz/udptun/pkg/forward"
	"github.com/irctrakz/udptun/pkg/logging"
)

type peerSnapshot struct {
	Role  string `json:"role"`
	Bound bool   `json:"bound"`
	Addr  string `json:"addr,omitempty"`
}

type healthSnapshot struct {
	Timestamp string            `json:"ts"`
	Peer      peerSnapshot      `json:"peer"`
	Total     map[string]uint64 `json:"total"`
	RT        map[string]uint64 `json:"rt"`
	Proc      map[string]uint64 `json:"proc"`
	Srv       map[string]uint64 `json:"srv_limits"`
}

func newHealthMux(e *forward.Engine) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(snapshotEngine(e, time.Now()))
	})
	return mux
}

func snapshotEngine(e *forward.Engine, now time.Time) healthSnapshot {
	s := e.Session()
	peer := peerSnapshot{Role: s.Role().String()}
	if ep, ok := s.Peer(); ok {
		peer.Bound = true
		peer.Addr = ep.String()
	}

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	return healthSnapshot{
		Timestamp: now.UTC().Format(time.RFC3339),
		Peer:      peer,
		Total:     e.Metrics().Totals(),
		RT: map[string]uint64{
			"heap_alloc": ms.HeapAlloc,
			"heap_inuse": ms.HeapInuse,
			"sys":        ms.Sys,
			"num_gc":     uint64(ms.NumGC),
			"goroutines": uint64(runtime.NumGoroutine()),
		},
		Proc: processStats(),
		Srv:  serverLimits(),
	}
}

// processStats reports OS-level usage of this process; fields the platform
// cannot provide are omitted.
func processStats() map[string]uint64 {
	out := map[string]uint64{}
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return out
	}
	if mi, err := p.MemoryInfo(); err == nil {
		out["rss"] = mi.RSS
		out["vms"] = mi.VMS
	}
	if n, err := p.NumThreads(); err == nil {
		out["threads"] = uint64(n)
	}
	if n, err := p.NumFDs(); err == nil {
		out["fds"] = uint64(n)
	}
	return out
}

// serveHealth runs the diagnostics endpoint until the process exits.
func serveHealth(addr string, e *forward.Engine) {
	logging.Infof("health endpoint listening on %s", addr)
	srv := &http.Server{
		Addr:              addr,
		Handler:           newHealthMux(e),
		ReadHeaderTimeout: 5 * time.Second,
	}
	if err := srv.ListenAndServe(); err != nil {
		logging.WithFields(logrus.Fields{"addr": addr}).Warnf("health endpoint stopped: %v", err)
	}
}
