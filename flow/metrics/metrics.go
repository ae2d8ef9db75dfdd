// Package metrics exposes a process-wide Prometheus text-format endpoint
// for the flow transport: connection and request admission counters, frame
// throughput, and dispatch outcomes. It is grounded on the teacher's own
// internal/metrics.go hand-rolled exposition style (an enable switch plus a
// single /metrics handler) rather than pulling in a metrics client library,
// since the teacher repo demonstrates exactly this pattern already.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"
)

type telemetry struct {
	enabled bool
	mu      sync.RWMutex

	connectionsAccepted uint64
	connectionsRejected map[string]uint64 // reason -> count
	connectionsActive   int64
	requestsDispatched  map[string]uint64 // wltoken -> count
	requestsNotFound    uint64
	framesRead          uint64
	framesWritten       uint64
	bytesRead           uint64
	bytesWritten        uint64
	handshakeFailures   uint64
}

var (
	mu sync.RWMutex
	m  = telemetry{}
)

// Enable turns on metric collection. Safe to call more than once.
func Enable() {
	mu.Lock()
	defer mu.Unlock()
	if m.enabled {
		return
	}
	m.connectionsRejected = make(map[string]uint64)
	m.requestsDispatched = make(map[string]uint64)
	m.enabled = true
}

// StartServer runs a /metrics HTTP server on addr until ctx is done.
func StartServer(ctx context.Context, addr string) error {
	if strings.TrimSpace(addr) == "" {
		return errors.New("flow/metrics: empty listen address")
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/metrics", handler)
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	err := srv.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("flow/metrics: serve: %w", err)
	}
	return nil
}

func ConnectionAccepted() {
	mu.RLock()
	if !m.enabled {
		mu.RUnlock()
		return
	}
	m.mu.Lock()
	mu.RUnlock()
	defer m.mu.Unlock()
	m.connectionsAccepted++
	m.connectionsActive++
}

func ConnectionClosed() {
	mu.RLock()
	if !m.enabled {
		mu.RUnlock()
		return
	}
	m.mu.Lock()
	mu.RUnlock()
	defer m.mu.Unlock()
	m.connectionsActive--
}

func ConnectionRejected(reason string) {
	mu.RLock()
	if !m.enabled {
		mu.RUnlock()
		return
	}
	m.mu.Lock()
	mu.RUnlock()
	defer m.mu.Unlock()
	m.connectionsRejected[reason]++
}

func HandshakeFailed() {
	mu.RLock()
	if !m.enabled {
		mu.RUnlock()
		return
	}
	m.mu.Lock()
	mu.RUnlock()
	defer m.mu.Unlock()
	m.handshakeFailures++
}

func RequestDispatched(wltoken string) {
	mu.RLock()
	if !m.enabled {
		mu.RUnlock()
		return
	}
	m.mu.Lock()
	mu.RUnlock()
	defer m.mu.Unlock()
	m.requestsDispatched[wltoken]++
}

func RequestNotFound() {
	mu.RLock()
	if !m.enabled {
		mu.RUnlock()
		return
	}
	m.mu.Lock()
	mu.RUnlock()
	defer m.mu.Unlock()
	m.requestsNotFound++
}

func FrameRead(bytes int) {
	mu.RLock()
	if !m.enabled {
		mu.RUnlock()
		return
	}
	m.mu.Lock()
	mu.RUnlock()
	defer m.mu.Unlock()
	m.framesRead++
	m.bytesRead += uint64(bytes)
}

func FrameWritten(bytes int) {
	mu.RLock()
	if !m.enabled {
		mu.RUnlock()
		return
	}
	m.mu.Lock()
	mu.RUnlock()
	defer m.mu.Unlock()
	m.framesWritten++
	m.bytesWritten += uint64(bytes)
}

func handler(w http.ResponseWriter, _ *http.Request) {
	mu.RLock()
	enabled := m.enabled
	mu.RUnlock()
	if !enabled {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("# metrics disabled\n"))
		return
	}
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")

	m.mu.RLock()
	defer m.mu.RUnlock()

	fmt.Fprintf(w, "flow_connections_accepted_total %d\n", m.connectionsAccepted)
	fmt.Fprintf(w, "flow_connections_active %d\n", m.connectionsActive)
	writeCounterVec(w, "flow_connections_rejected_total", m.connectionsRejected)
	fmt.Fprintf(w, "flow_handshake_failures_total %d\n", m.handshakeFailures)
	writeCounterVec(w, "flow_requests_dispatched_total", m.requestsDispatched)
	fmt.Fprintf(w, "flow_requests_not_found_total %d\n", m.requestsNotFound)
	fmt.Fprintf(w, "flow_frames_read_total %d\n", m.framesRead)
	fmt.Fprintf(w, "flow_frames_written_total %d\n", m.framesWritten)
	fmt.Fprintf(w, "flow_bytes_read_total %d\n", m.bytesRead)
	fmt.Fprintf(w, "flow_bytes_written_total %d\n", m.bytesWritten)
}

func writeCounterVec(w http.ResponseWriter, name string, data map[string]uint64) {
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "%s{label=%q} %d\n", name, k, data[k])
	}
}
