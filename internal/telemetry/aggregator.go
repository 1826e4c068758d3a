package telemetry

import (
	"math"
	"sort"
	"sync"
	"time"
)

// RetentionWindow bounds how long raw records are kept. Entries older than
// this are purged opportunistically on every write.
const RetentionWindow = 24 * time.Hour

const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

type CompletedRecord struct {
	At        time.Time
	Type      string
	Result    string
	Direction string
	Provider  string
	Duration  time.Duration
}

type TransitionRecord struct {
	At        time.Time
	Type      string
	From      string
	To        string
	Direction string
	Duration  time.Duration
}

type BatchRecord struct {
	At    time.Time
	Count int
}

type TypeMetrics struct {
	Total         int     `json:"total"`
	Success       int     `json:"success"`
	Failure       int     `json:"failure"`
	AvgDurationMs float64 `json:"avg_duration_ms"`
	SuccessRate   float64 `json:"success_rate"`
}

type TransitionStats struct {
	Count int     `json:"count"`
	AvgMs float64 `json:"avg_ms"`
	P95Ms float64 `json:"p95_ms"`
	P99Ms float64 `json:"p99_ms"`
}

type WindowStats struct {
	MessagesProcessed int     `json:"messages_processed"`
	AvgDurationMs     float64 `json:"avg_duration_ms"`
	Errors            int     `json:"errors"`
}

type ActivitySummary struct {
	Last5Minutes WindowStats `json:"last_5_minutes"`
	LastHour     WindowStats `json:"last_hour"`
}

// Aggregator is the process-wide in-memory delivery metrics store. It is an
// explicitly constructed instance passed by handle to the workers, so tests
// and multi-tenant processes can each hold their own.
//
// All three series share one mutex: writers, readers and the purge always see
// a consistent view.
type Aggregator struct {
	mu          sync.Mutex
	completed   []CompletedRecord
	transitions []TransitionRecord
	batches     []BatchRecord

	retention time.Duration
	now       func() time.Time
	metrics   *Metrics
}

func NewAggregator(metrics *Metrics) *Aggregator {
	return &Aggregator{
		retention: RetentionWindow,
		now:       time.Now,
		metrics:   metrics,
	}
}

func (a *Aggregator) RecordCompleted(msgType, result, direction, provider string, duration time.Duration) {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.now()
	a.completed = append(a.completed, CompletedRecord{
		At:        now,
		Type:      msgType,
		Result:    result,
		Direction: direction,
		Provider:  provider,
		Duration:  duration,
	})
	a.purgeLocked(now)

	if a.metrics != nil {
		a.metrics.DeliveriesTotal.WithLabelValues(msgType, result, provider).Inc()
		a.metrics.DeliveryDuration.WithLabelValues(msgType).Observe(duration.Seconds())
	}
}

func (a *Aggregator) RecordTransition(msgType, from, to, direction string, duration time.Duration) {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.now()
	a.transitions = append(a.transitions, TransitionRecord{
		At:        now,
		Type:      msgType,
		From:      from,
		To:        to,
		Direction: direction,
		Duration:  duration,
	})
	a.purgeLocked(now)

	if a.metrics != nil {
		a.metrics.TransitionsTotal.WithLabelValues(from, to).Inc()
	}
}

func (a *Aggregator) RecordBatchEnqueued(count int) {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.now()
	a.batches = append(a.batches, BatchRecord{At: now, Count: count})
	a.purgeLocked(now)

	if a.metrics != nil {
		a.metrics.BatchEnqueuedTotal.Add(float64(count))
	}
}

// SuccessRate returns successful/total over the completed series as a
// percentage, 0 when the series is empty.
func (a *Aggregator) SuccessRate() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()

	if len(a.completed) == 0 {
		return 0
	}

	success := 0
	for _, r := range a.completed {
		if r.Result == ResultSuccess {
			success++
		}
	}

	return float64(success) / float64(len(a.completed)) * 100
}

func (a *Aggregator) AverageDuration() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()

	if len(a.completed) == 0 {
		return 0
	}

	var total time.Duration
	for _, r := range a.completed {
		total += r.Duration
	}

	return float64(total.Milliseconds()) / float64(len(a.completed))
}

func (a *Aggregator) MetricsByType(msgType string) TypeMetrics {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := TypeMetrics{}
	var total time.Duration

	for _, r := range a.completed {
		if r.Type != msgType {
			continue
		}

		out.Total++
		total += r.Duration
		if r.Result == ResultSuccess {
			out.Success++
		} else {
			out.Failure++
		}
	}

	if out.Total > 0 {
		out.AvgDurationMs = float64(total.Milliseconds()) / float64(out.Total)
		out.SuccessRate = float64(out.Success) / float64(out.Total) * 100
	}

	return out
}

// TransitionMetrics computes count, mean and sorted-index percentiles over
// durations of the matching from->to transitions. Zeros when nothing matches.
func (a *Aggregator) TransitionMetrics(from, to string) TransitionStats {
	a.mu.Lock()
	defer a.mu.Unlock()

	var durations []float64
	for _, r := range a.transitions {
		if r.From == from && r.To == to {
			durations = append(durations, float64(r.Duration.Milliseconds()))
		}
	}

	if len(durations) == 0 {
		return TransitionStats{}
	}

	sort.Float64s(durations)

	sum := 0.0
	for _, d := range durations {
		sum += d
	}

	return TransitionStats{
		Count: len(durations),
		AvgMs: sum / float64(len(durations)),
		P95Ms: percentile(durations, 0.95),
		P99Ms: percentile(durations, 0.99),
	}
}

func (a *Aggregator) RecentActivity() ActivitySummary {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.now()

	return ActivitySummary{
		Last5Minutes: a.windowLocked(now.Add(-5 * time.Minute)),
		LastHour:     a.windowLocked(now.Add(-time.Hour)),
	}
}

func (a *Aggregator) windowLocked(since time.Time) WindowStats {
	stats := WindowStats{}
	var total time.Duration

	for _, r := range a.completed {
		if r.At.Before(since) {
			continue
		}

		stats.MessagesProcessed++
		total += r.Duration
		if r.Result != ResultSuccess {
			stats.Errors++
		}
	}

	if stats.MessagesProcessed > 0 {
		stats.AvgDurationMs = float64(total.Milliseconds()) / float64(stats.MessagesProcessed)
	}

	return stats
}

// percentile indexes the sorted slice at ceil(count*p), 1-based.
func percentile(sorted []float64, p float64) float64 {
	idx := int(math.Ceil(float64(len(sorted)) * p))
	if idx < 1 {
		idx = 1
	}
	if idx > len(sorted) {
		idx = len(sorted)
	}
	return sorted[idx-1]
}

func (a *Aggregator) purgeLocked(now time.Time) {
	cutoff := now.Add(-a.retention)

	a.completed = purgeCompleted(a.completed, cutoff)
	a.transitions = purgeTransitions(a.transitions, cutoff)
	a.batches = purgeBatches(a.batches, cutoff)
}

func purgeCompleted(in []CompletedRecord, cutoff time.Time) []CompletedRecord {
	i := 0
	for i < len(in) && in[i].At.Before(cutoff) {
		i++
	}
	return in[i:]
}

func purgeTransitions(in []TransitionRecord, cutoff time.Time) []TransitionRecord {
	i := 0
	for i < len(in) && in[i].At.Before(cutoff) {
		i++
	}
	return in[i:]
}

func purgeBatches(in []BatchRecord, cutoff time.Time) []BatchRecord {
	i := 0
	for i < len(in) && in[i].At.Before(cutoff) {
		i++
	}
	return in[i:]
}
