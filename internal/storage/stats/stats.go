// Package stats maintains running latency statistics for engine operations.
// Each operation keeps a streaming aggregate with DDSketch percentiles so
// snapshots are cheap regardless of how many calls have been observed.
package stats

import (
	"math"
	"sort"
	"sync"
	"time"

	"github.com/DataDog/sketches-go/ddsketch"
)

// DefaultAccuracy is the DDSketch relative accuracy used for latency
// percentiles.
const DefaultAccuracy = 0.01

// OpResult is a point-in-time summary of one operation's latencies.
// Durations are reported in milliseconds.
type OpResult struct {
	Op    string  `json:"op"`
	Count int64   `json:"count"`
	AvgMs float64 `json:"avgMs"`
	MinMs float64 `json:"minMs"`
	MaxMs float64 `json:"maxMs"`
	P50Ms float64 `json:"p50Ms"`
	P90Ms float64 `json:"p90Ms"`
	P95Ms float64 `json:"p95Ms"`
	P99Ms float64 `json:"p99Ms"`
}

// opAggregate maintains running statistics for a single operation.
type opAggregate struct {
	count  int64
	sum    float64
	min    float64
	max    float64
	sketch *ddsketch.DDSketch
}

func newOpAggregate(accuracy float64) *opAggregate {
	agg := &opAggregate{
		min: math.MaxFloat64,
		max: -math.MaxFloat64,
	}
	sketch, err := ddsketch.NewDefaultDDSketch(accuracy)
	if err == nil {
		agg.sketch = sketch
	}
	return agg
}

func (a *opAggregate) add(ms float64) {
	a.count++
	a.sum += ms
	if ms < a.min {
		a.min = ms
	}
	if ms > a.max {
		a.max = ms
	}
	if a.sketch != nil {
		a.sketch.Add(ms)
	}
}

func (a *opAggregate) result(op string) OpResult {
	r := OpResult{Op: op, Count: a.count}
	if a.count > 0 {
		r.AvgMs = a.sum / float64(a.count)
		r.MinMs = a.min
		r.MaxMs = a.max
	}
	if a.sketch != nil && a.count > 0 {
		r.P50Ms, _ = a.sketch.GetValueAtQuantile(0.50)
		r.P90Ms, _ = a.sketch.GetValueAtQuantile(0.90)
		r.P95Ms, _ = a.sketch.GetValueAtQuantile(0.95)
		r.P99Ms, _ = a.sketch.GetValueAtQuantile(0.99)
	}
	return r
}

// Recorder collects per-operation latency aggregates. The zero value is not
// usable; construct with NewRecorder.
type Recorder struct {
	mu       sync.Mutex
	accuracy float64
	ops      map[string]*opAggregate
}

// NewRecorder creates a Recorder with the default sketch accuracy.
func NewRecorder() *Recorder {
	return NewRecorderWithAccuracy(DefaultAccuracy)
}

// NewRecorderWithAccuracy creates a Recorder with a custom sketch accuracy.
func NewRecorderWithAccuracy(accuracy float64) *Recorder {
	return &Recorder{
		accuracy: accuracy,
		ops:      make(map[string]*opAggregate),
	}
}

// Record adds one observed duration for the named operation.
func (r *Recorder) Record(op string, d time.Duration) {
	ms := float64(d) / float64(time.Millisecond)

	r.mu.Lock()
	defer r.mu.Unlock()

	agg, ok := r.ops[op]
	if !ok {
		agg = newOpAggregate(r.accuracy)
		r.ops[op] = agg
	}
	agg.add(ms)
}

// Observe wraps Record for deferred call sites:
//
//	defer r.Observe("put")()
func (r *Recorder) Observe(op string) func() {
	start := time.Now()
	return func() {
		r.Record(op, time.Since(start))
	}
}

// Count returns the number of observations for one operation.
func (r *Recorder) Count(op string) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if agg, ok := r.ops[op]; ok {
		return agg.count
	}
	return 0
}

// Snapshot returns summaries for every observed operation, sorted by name.
func (r *Recorder) Snapshot() []OpResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	results := make([]OpResult, 0, len(r.ops))
	for op, agg := range r.ops {
		results = append(results, agg.result(op))
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Op < results[j].Op })
	return results
}

// Reset discards all aggregates.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops = make(map[string]*opAggregate)
}
