// Package orchestrator drives one analysis cycle: it asks the signal router
// for a plan, calls the remote analyzers along an ordered fallback cascade,
// rejects stale responses, and hands the surviving raw results to the
// merger. The only state it keeps between cycles is the request sequence
// counter and the cancel handle for the in-flight request.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/pitchsense/pitchsense-engine/internal/analyzer"
	"github.com/pitchsense/pitchsense-engine/internal/merge"
	"github.com/pitchsense/pitchsense-engine/internal/metrics"
	"github.com/pitchsense/pitchsense-engine/internal/roster"
	"github.com/pitchsense/pitchsense-engine/internal/router"
)

// ErrSuperseded is returned when a newer analysis request was issued while
// this one was in flight. The stale result is discarded, never applied.
var ErrSuperseded = errors.New("analysis superseded by a newer request")

// tacticalFallbackReason tags the analyzers that were skipped because the
// cycle degraded to the tactical-only path.
const tacticalFallbackReason = "skipped due to tactical fallback"

// TerminalError is the single recoverable-vs-fatal boundary: it is produced
// only after every fallback strategy has been exhausted. No recommendation
// accompanies it.
type TerminalError struct {
	Kind analyzer.Kind
	Err  error
}

func (e *TerminalError) Error() string {
	return fmt.Sprintf("analysis failed after all fallbacks (%s): %v", e.Kind, e.Err)
}

func (e *TerminalError) Unwrap() error { return e.Err }

// HealthProber is probed opportunistically before a cycle; failures are
// logged and never block the analysis attempt.
type HealthProber interface {
	ProbeAsync()
}

// Request is the per-cycle context assembled by the caller.
type Request struct {
	ContextNote  string
	TeamMode     roster.TeamMode
	FocusRole    roster.Role
	Telemetry    analyzer.TelemetrySummary
	MatchContext analyzer.MatchContext
	Baseline     *analyzer.PlayerBaseline
	Players      []roster.Player
	Signals      router.Signals
}

// Orchestrator issues analyzer calls for analysis cycles.
type Orchestrator struct {
	client *analyzer.Client
	health HealthProber

	seq atomic.Uint64

	mu             sync.Mutex
	cancelInFlight context.CancelFunc
}

// Option configures the orchestrator.
type Option func(*Orchestrator)

// WithHealthProber attaches an opportunistic liveness prober.
func WithHealthProber(h HealthProber) Option {
	return func(o *Orchestrator) { o.health = h }
}

// New creates an orchestrator over the given analyzer client.
func New(client *analyzer.Client, opts ...Option) *Orchestrator {
	o := &Orchestrator{client: client}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// outcome tags a strategy result for the cascade loop.
type outcome int

const (
	outcomeOK outcome = iota
	outcomeRetryable
	outcomeFatal
)

// strategy is one step of the fallback cascade.
type strategy struct {
	name string
	run  func(ctx context.Context, req *analyzer.AnalysisRequest) (*merge.RawResults, error)
}

// RunAnalysis executes one full analysis cycle and returns the merged
// recommendation. Invoking it again cancels any previous in-flight cycle;
// only the result matching the latest sequence number is ever returned.
func (o *Orchestrator) RunAnalysis(ctx context.Context, mode router.Mode, req Request) (*merge.Recommendation, error) {
	cctx, seq := o.begin(ctx)
	defer o.finish(seq)

	if o.health != nil {
		o.health.ProbeAsync()
	}

	decision := router.Route(req.Signals, mode)
	requestID := uuid.NewString()
	wire := &analyzer.AnalysisRequest{
		RequestID:    requestID,
		Context:      req.ContextNote,
		TeamMode:     req.TeamMode,
		FocusRole:    req.FocusRole,
		Telemetry:    req.Telemetry,
		MatchContext: req.MatchContext,
		Baseline:     req.Baseline,
		Players:      req.Players,
		Router:       &decision,
	}

	log.Debug().
		Str("request_id", requestID).
		Str("mode", string(mode)).
		Str("intent", string(decision.Intent)).
		Msg("analysis cycle dispatched")

	raw, err := o.runCascade(cctx, mode, decision, wire)
	if err != nil {
		// A failure on a superseded cycle is reported as supersession, not
		// as an analyzer fault: a newer cycle owns the outcome now.
		if o.seq.Load() != seq {
			metrics.StaleDiscards.Inc()
			log.Debug().Str("request_id", requestID).Msg("superseded analysis cycle abandoned")
			return nil, ErrSuperseded
		}
		metrics.AnalysisCycles.WithLabelValues(string(mode), "error").Inc()
		return nil, err
	}
	raw.RequestID = requestID
	raw.Decision = decision

	// Apply the result only if no newer request has been issued since.
	if o.seq.Load() != seq {
		metrics.StaleDiscards.Inc()
		log.Debug().Str("request_id", requestID).Msg("stale analysis result discarded")
		return nil, ErrSuperseded
	}

	rec, err := merge.Merge(*raw, roster.New(req.Players), req.TeamMode)
	if err != nil {
		metrics.AnalysisCycles.WithLabelValues(string(mode), "error").Inc()
		return nil, &TerminalError{Kind: analyzer.KindEmpty, Err: err}
	}
	rec.GeneratedAt = time.Now()

	result := "ok"
	if rec.Partial {
		result = "partial"
	}
	metrics.AnalysisCycles.WithLabelValues(string(mode), result).Inc()
	return rec, nil
}

// begin cancels the previous in-flight cycle and registers a new one,
// returning its context and sequence number.
func (o *Orchestrator) begin(ctx context.Context) (context.Context, uint64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.cancelInFlight != nil {
		o.cancelInFlight()
	}
	seq := o.seq.Add(1)
	cctx, cancel := context.WithCancel(ctx)
	o.cancelInFlight = cancel
	return cctx, seq
}

// finish releases the cancel handle if this cycle is still the latest.
func (o *Orchestrator) finish(seq uint64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.seq.Load() == seq && o.cancelInFlight != nil {
		o.cancelInFlight()
		o.cancelInFlight = nil
	}
}

// Cancel aborts the in-flight cycle, if any. Used when the operator
// switches the active player.
func (o *Orchestrator) Cancel() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.cancelInFlight != nil {
		o.cancelInFlight()
		o.cancelInFlight = nil
	}
}

// runCascade walks the ordered strategy list until one succeeds. Retryable
// failures move to the next strategy; a fatal failure or an exhausted list
// yields a terminal error and the remaining RUNNING analyzers flip to ERROR.
func (o *Orchestrator) runCascade(ctx context.Context, mode router.Mode, decision router.Decision, wire *analyzer.AnalysisRequest) (*merge.RawResults, error) {
	strategies := o.strategiesFor(mode, decision)

	var lastErr error
	for _, s := range strategies {
		// A cancelled cycle stops here instead of burning the remaining
		// strategies against a dead context.
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		raw, err := s.run(ctx, wire)
		metrics.FallbackAttempts.WithLabelValues(s.name).Inc()
		out := classify(err)
		switch out {
		case outcomeOK:
			return raw, nil
		case outcomeRetryable:
			lastErr = err
			log.Warn().Err(err).Str("strategy", s.name).Msg("analysis strategy failed, falling back")
		case outcomeFatal:
			log.Error().Err(err).Str("strategy", s.name).Msg("analysis strategy failed terminally")
			return nil, &TerminalError{Kind: analyzer.KindOf(err), Err: err}
		}
	}
	if lastErr == nil {
		lastErr = errors.New("no analysis strategy available")
	}
	return nil, &TerminalError{Kind: analyzer.KindOf(lastErr), Err: lastErr}
}

func classify(err error) outcome {
	if err == nil {
		return outcomeOK
	}
	if analyzer.IsRetryable(err) {
		return outcomeRetryable
	}
	return outcomeFatal
}

// strategiesFor builds the ordered fallback cascade for the mode. Full mode
// has a single path; auto mode cascades from the routed multi-agent
// endpoint through the unmodified combined endpoint down to the
// tactical-only degraded path.
func (o *Orchestrator) strategiesFor(mode router.Mode, decision router.Decision) []strategy {
	if mode == router.ModeFull {
		return []strategy{
			{name: "full-analysis", run: func(ctx context.Context, wire *analyzer.AnalysisRequest) (*merge.RawResults, error) {
				return o.callCombined(ctx, wire, decision, o.client.FullAnalysis)
			}},
		}
	}
	return []strategy{
		{name: "orchestrate", run: func(ctx context.Context, wire *analyzer.AnalysisRequest) (*merge.RawResults, error) {
			return o.callCombined(ctx, wire, decision, o.client.Orchestrate)
		}},
		{name: "full-analysis", run: func(ctx context.Context, wire *analyzer.AnalysisRequest) (*merge.RawResults, error) {
			return o.callCombined(ctx, wire, decision, o.client.FullAnalysis)
		}},
		{name: "tactical-only", run: o.callTacticalOnly},
	}
}

type combinedCall func(context.Context, *analyzer.AnalysisRequest) (*analyzer.CombinedResponse, error)

// callCombined runs one combined endpoint and derives per-analyzer run
// statuses from its payload. An empty payload is classified empty-output so
// the cascade continues.
func (o *Orchestrator) callCombined(ctx context.Context, wire *analyzer.AnalysisRequest, decision router.Decision, call combinedCall) (*merge.RawResults, error) {
	start := time.Now()
	resp, err := call(ctx, wire)
	metrics.AnalyzerLatency.WithLabelValues("combined").Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}
	if !resp.HasUsableOutput() {
		return nil, &analyzer.Error{Kind: analyzer.KindEmpty, Err: errors.New("combined response carried no usable fields")}
	}

	// The primary may have answered without executing the tactical agent;
	// re-attempt the tactical-only call before finalizing so the cycle
	// never closes without a tactical signal.
	var standalone *analyzer.TacticalResponse
	if !resp.TacticalExecuted() {
		standalone, err = o.client.Tactical(ctx, narrowRequest(wire))
		if err != nil {
			log.Warn().Err(err).Msg("tactical re-attempt failed; continuing with combined payload")
			standalone = nil
		}
	}

	raw := &merge.RawResults{
		Combined: resp,
		Tactical: standalone,
		Partial:  resp.Partial,
		Runs:     runsFromCombined(decision, resp, standalone),
	}
	return raw, nil
}

// callTacticalOnly is the degraded last-resort path: only the tactical
// analyzer runs, the other two are skipped.
func (o *Orchestrator) callTacticalOnly(ctx context.Context, wire *analyzer.AnalysisRequest) (*merge.RawResults, error) {
	start := time.Now()
	resp, err := o.client.Tactical(ctx, narrowRequest(wire))
	metrics.AnalyzerLatency.WithLabelValues("tactical").Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}
	if !resp.Usable() {
		return nil, &analyzer.Error{Kind: analyzer.KindEmpty, Err: errors.New("tactical response carried no action")}
	}

	return &merge.RawResults{
		Tactical: resp,
		Partial:  true,
		Runs: map[router.Analyzer]merge.AgentRun{
			router.AnalyzerFatigue:  {Analyzer: router.AnalyzerFatigue, Status: merge.StatusSkipped, Reason: tacticalFallbackReason},
			router.AnalyzerRisk:     {Analyzer: router.AnalyzerRisk, Status: merge.StatusSkipped, Reason: tacticalFallbackReason},
			router.AnalyzerTactical: {Analyzer: router.AnalyzerTactical, Status: merge.StatusSuccess},
		},
	}, nil
}

func narrowRequest(wire *analyzer.AnalysisRequest) *analyzer.TacticalRequest {
	return &analyzer.TacticalRequest{
		RequestID:    wire.RequestID,
		TeamMode:     wire.TeamMode,
		FocusRole:    wire.FocusRole,
		Telemetry:    wire.Telemetry,
		MatchContext: wire.MatchContext,
		Players:      wire.Players,
	}
}

// runsFromCombined resolves each analyzer's lifecycle status from the
// combined payload. Analyzers the router excluded stay SKIPPED; selected
// analyzers whose slot came back empty are ERROR.
func runsFromCombined(decision router.Decision, resp *analyzer.CombinedResponse, standalone *analyzer.TacticalResponse) map[router.Analyzer]merge.AgentRun {
	runs := make(map[router.Analyzer]merge.AgentRun, 3)

	statusFor := func(a router.Analyzer, present bool) merge.AgentRun {
		if !decision.Includes(a) {
			return merge.AgentRun{Analyzer: a, Status: merge.StatusSkipped, Reason: "not selected by router"}
		}
		if present {
			return merge.AgentRun{Analyzer: a, Status: merge.StatusSuccess}
		}
		return merge.AgentRun{Analyzer: a, Status: merge.StatusError, Reason: "analyzer returned no output"}
	}

	runs[router.AnalyzerFatigue] = statusFor(router.AnalyzerFatigue, resp.Fatigue != nil)
	runs[router.AnalyzerRisk] = statusFor(router.AnalyzerRisk, resp.Risk != nil)
	tacticalPresent := resp.TacticalExecuted() || standalone.Usable()
	runs[router.AnalyzerTactical] = statusFor(router.AnalyzerTactical, tacticalPresent)

	return runs
}
