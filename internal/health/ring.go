// Package health tracks analyzer service liveness with a bounded history
// ring. Probes run on a schedule and opportunistically before analysis
// cycles; results are advisory and never gate a cycle.
package health

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/pitchsense/pitchsense-engine/internal/analyzer"
)

// Prober is the probe call, normally analyzer.Client.Health.
type Prober interface {
	Health(ctx context.Context) (*analyzer.HealthResponse, error)
}

// ProbeResult is one probe outcome.
type ProbeResult struct {
	Timestamp time.Time `json:"timestamp"`
	Success   bool      `json:"success"`
	Error     string    `json:"error,omitempty"`
}

// Status summarizes the probe history.
type Status struct {
	State       string        `json:"state"`
	LastProbe   time.Time     `json:"last_probe,omitempty"`
	History     []ProbeResult `json:"history"`
	Consecutive int           `json:"consecutive_failures"`
}

const (
	StateUnknown = "unknown"
	StateUp      = "up"
	StateDown    = "down"
)

const (
	historySize  = 10
	probeTimeout = 5 * time.Second
)

// Ring probes one upstream and keeps the last few results.
type Ring struct {
	prober Prober

	mu          sync.Mutex
	history     []ProbeResult
	consecutive int
	probing     bool
}

// NewRing creates a ring over the given prober.
func NewRing(p Prober) *Ring {
	return &Ring{prober: p}
}

// Probe runs one synchronous probe and records the result.
func (r *Ring) Probe(ctx context.Context) ProbeResult {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	res := ProbeResult{Timestamp: time.Now()}
	if _, err := r.prober.Health(ctx); err != nil {
		res.Error = err.Error()
	} else {
		res.Success = true
	}
	r.record(res)
	return res
}

// ProbeAsync runs a probe in the background. At most one probe is in flight
// at a time; extra requests are coalesced.
func (r *Ring) ProbeAsync() {
	r.mu.Lock()
	if r.probing {
		r.mu.Unlock()
		return
	}
	r.probing = true
	r.mu.Unlock()

	go func() {
		defer func() {
			r.mu.Lock()
			r.probing = false
			r.mu.Unlock()
		}()
		res := r.Probe(context.Background())
		if !res.Success {
			log.Warn().Str("error", res.Error).Msg("analyzer health probe failed")
		}
	}()
}

func (r *Ring) record(res ProbeResult) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.history = append(r.history, res)
	if len(r.history) > historySize {
		r.history = r.history[1:]
	}
	if res.Success {
		r.consecutive = 0
	} else {
		r.consecutive++
	}
}

// Status returns a copy of the current probe state.
func (r *Ring) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()

	st := Status{State: StateUnknown, Consecutive: r.consecutive}
	if n := len(r.history); n > 0 {
		last := r.history[n-1]
		st.LastProbe = last.Timestamp
		if last.Success {
			st.State = StateUp
		} else {
			st.State = StateDown
		}
		st.History = append([]ProbeResult(nil), r.history...)
	}
	return st
}

// Run probes on the given interval until the context is cancelled.
func (r *Ring) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Probe(ctx)
		}
	}
}
