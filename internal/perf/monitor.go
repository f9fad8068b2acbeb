// Package perf implements the instrumentation clock for repository
// operations: lightweight start/stop timers keyed by operation name that
// record wall-clock duration, heap delta, and contextual metadata.
//
// All monitor operations are fire-and-forget. They never return errors and
// never panic out of the calling operation: sink failures are swallowed
// (with a recover guard) and an End without a matching Start is a silent
// no-op. Slow samples above the configured threshold are handed to the
// registered sinks for later inspection; samples above the critical
// threshold are additionally surfaced immediately through the zerolog
// diagnostic channel, throttled by a token bucket so a pathological query
// storm cannot flood the log.
//
// Known limitation: starting the same operation name twice overwrites the
// prior start (last-start-wins). Operations are not nested under the same
// name in practice, so this is accepted rather than worked around.
package perf

import (
	"runtime"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

var (
	// opDuration records operation duration in seconds by operation name.
	// Buckets skew low: the interesting signal is the 100ms..2s band where
	// dashboard queries go bad.
	opDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "booking_op_duration_seconds",
			Help:    "Duration of booking repository operations in seconds.",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"op"},
	)

	// opSlow counts operations that exceeded the slow threshold.
	opSlow = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "booking_slow_ops_total",
			Help: "Total number of booking operations above the slow threshold.",
		},
		[]string{"op"},
	)
)

func init() {
	prometheus.MustRegister(opDuration, opSlow)
}

// Sample is one recorded timing outlier. Sinks receive it after End
// determines the operation exceeded the slow threshold.
type Sample struct {
	Operation string
	Duration  time.Duration
	MemDelta  int64
	Context   map[string]string
	At        time.Time
}

// Sink receives slow-operation samples. Implementations must tolerate
// concurrent calls and should be fast; failures must stay internal (log,
// drop) because the monitor ignores them by contract.
type Sink interface {
	Record(Sample)
}

// LogSink writes samples to a zerolog logger. It is the default sink.
type LogSink struct {
	Logger zerolog.Logger
}

// Record logs the sample at warn level with its metadata flattened into
// the event.
func (s LogSink) Record(sample Sample) {
	ev := s.Logger.Warn().
		Str("op", sample.Operation).
		Float64("duration_seconds", sample.Duration.Seconds()).
		Int64("mem_delta_bytes", sample.MemDelta).
		Time("at", sample.At)
	for k, v := range sample.Context {
		ev = ev.Str("ctx_"+k, v)
	}
	ev.Msg("slow operation")
}

// OpStats aggregates all ended invocations of one operation name.
type OpStats struct {
	Count    uint64        `json:"count"`
	Total    time.Duration `json:"total"`
	Max      time.Duration `json:"max"`
	Slow     uint64        `json:"slow"`
	MemDelta int64         `json:"mem_delta"`
}

// MonitorStats aggregates every ended operation since construction or the
// last Reset.
type MonitorStats struct {
	TotalOps      uint64             `json:"total_queries"`
	TotalTime     time.Duration      `json:"total_time"`
	TotalMemDelta int64              `json:"total_memory"`
	SlowOps       uint64             `json:"slow_queries"`
	PerOp         map[string]OpStats `json:"per_query_breakdown"`
}

// started captures the state recorded by Start.
type started struct {
	at      time.Time
	alloc   uint64
	context map[string]string
}

// Monitor is the instrumentation clock. Construct with NewMonitor and
// inject it; like the cache, there is no package-level instance.
type Monitor struct {
	slowThreshold     time.Duration
	criticalThreshold time.Duration
	sinks             []Sink
	logger            zerolog.Logger
	limiter           *rate.Limiter

	mu     sync.Mutex
	active map[string]started
	perOp  map[string]*OpStats

	// now is a clock seam for tests.
	now func() time.Time
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithThresholds overrides the slow (sample persisted) and critical
// (immediately logged) duration thresholds.
func WithThresholds(slow, critical time.Duration) Option {
	return func(m *Monitor) {
		m.slowThreshold = slow
		m.criticalThreshold = critical
	}
}

// WithSinks registers the sinks that receive slow samples, replacing the
// default log sink.
func WithSinks(sinks ...Sink) Option {
	return func(m *Monitor) { m.sinks = sinks }
}

// WithLogger sets the logger used for the immediate diagnostic channel.
func WithLogger(l zerolog.Logger) Option {
	return func(m *Monitor) { m.logger = l }
}

// WithLogLimit throttles the immediate diagnostic channel to rps events
// per second with the given burst.
func WithLogLimit(rps float64, burst int) Option {
	return func(m *Monitor) { m.limiter = rate.NewLimiter(rate.Limit(rps), burst) }
}

// NewMonitor constructs a monitor with 500ms/1s thresholds, a zerolog
// sink, and a 1 event/s (burst 5) cap on immediate diagnostics.
func NewMonitor(opts ...Option) *Monitor {
	m := &Monitor{
		slowThreshold:     500 * time.Millisecond,
		criticalThreshold: time.Second,
		logger:            zerolog.Nop(),
		limiter:           rate.NewLimiter(1, 5),
		active:            make(map[string]started),
		perOp:             make(map[string]*OpStats),
		now:               time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	if len(m.sinks) == 0 {
		m.sinks = []Sink{LogSink{Logger: m.logger}}
	}
	return m
}

// Start records the wall-clock instant and current heap allocation for
// name. Context travels with any slow sample produced by the matching End.
// Starting the same name twice overwrites the prior start.
func (m *Monitor) Start(name string, context map[string]string) {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	m.mu.Lock()
	m.active[name] = started{at: m.now(), alloc: ms.Alloc, context: context}
	m.mu.Unlock()
}

// End computes duration and heap delta since the matching Start, folds the
// result into the aggregates, and dispatches slow samples. If no Start is
// pending for name, End silently does nothing.
func (m *Monitor) End(name string, extra map[string]string) {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	endedAt := m.now()

	m.mu.Lock()
	st, ok := m.active[name]
	if !ok {
		m.mu.Unlock()
		return
	}
	delete(m.active, name)

	duration := endedAt.Sub(st.at)
	memDelta := int64(ms.Alloc) - int64(st.alloc)
	slow := duration >= m.slowThreshold

	op := m.perOp[name]
	if op == nil {
		op = &OpStats{}
		m.perOp[name] = op
	}
	op.Count++
	op.Total += duration
	op.MemDelta += memDelta
	if duration > op.Max {
		op.Max = duration
	}
	if slow {
		op.Slow++
	}
	m.mu.Unlock()

	opDuration.WithLabelValues(name).Observe(duration.Seconds())

	if !slow {
		return
	}
	opSlow.WithLabelValues(name).Inc()

	sample := Sample{
		Operation: name,
		Duration:  duration,
		MemDelta:  memDelta,
		Context:   mergeContext(st.context, extra),
		At:        endedAt,
	}
	for _, sink := range m.sinks {
		record(sink, sample)
	}
	if duration >= m.criticalThreshold && m.limiter.Allow() {
		m.logger.Warn().
			Str("op", name).
			Dur("duration", duration).
			Int64("mem_delta_bytes", memDelta).
			Msg("critical slow operation")
	}
}

// record shields the monitor from sink panics; instrumentation must never
// abort the calling operation.
func record(sink Sink, sample Sample) {
	defer func() { _ = recover() }()
	sink.Record(sample)
}

// Stats returns a snapshot of the aggregates since construction or the
// last Reset.
func (m *Monitor) Stats() MonitorStats {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := MonitorStats{PerOp: make(map[string]OpStats, len(m.perOp))}
	for name, op := range m.perOp {
		out.PerOp[name] = *op
		out.TotalOps += op.Count
		out.TotalTime += op.Total
		out.TotalMemDelta += op.MemDelta
		out.SlowOps += op.Slow
	}
	return out
}

// Reset discards all aggregates and pending starts.
func (m *Monitor) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.active = make(map[string]started)
	m.perOp = make(map[string]*OpStats)
}

func mergeContext(base, extra map[string]string) map[string]string {
	if len(base) == 0 && len(extra) == 0 {
		return nil
	}
	out := make(map[string]string, len(base)+len(extra))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}
