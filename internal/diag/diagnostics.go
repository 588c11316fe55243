// Package diag holds run-wide counters useful for diagnosing a cleanroom
// run without affecting its pass/fail verdict. Grounded on the teacher's
// otelcli.Diagnostics struct: a per-run bag of counters, returned as
// orchestrator.RunResult.Diagnostics and never consulted by the
// validators. No command or report prints it.
package diag

import "sync/atomic"

// Diagnostics is the run-wide counter bag. Safe for concurrent use; every
// field is updated with atomic operations because the orchestrator's
// worker pool and the span collector both write to it concurrently.
type Diagnostics struct {
	nonJSONLinesTolerated int64
	spansDroppedBackpressure int64
	cacheHits                int64
	cacheMisses              int64
	infraRetries             int64
	scenariosSkipped         int64
	scenariosErrored         int64
	scenariosTimedOut        int64
}

// IncNonJSONLine records a stdout line ignored because it did not parse as
// a span envelope.
func (d *Diagnostics) IncNonJSONLine() { atomic.AddInt64(&d.nonJSONLinesTolerated, 1) }

// IncDropped records a span dropped due to collector backpressure.
func (d *Diagnostics) IncDropped() { atomic.AddInt64(&d.spansDroppedBackpressure, 1) }

// IncCacheHit records a scenario skipped because its hash matched the cache.
func (d *Diagnostics) IncCacheHit() { atomic.AddInt64(&d.cacheHits, 1) }

// IncCacheMiss records a scenario executed because its hash changed (or was absent).
func (d *Diagnostics) IncCacheMiss() { atomic.AddInt64(&d.cacheMisses, 1) }

// IncRetry records one infrastructure-failure retry attempt.
func (d *Diagnostics) IncRetry() { atomic.AddInt64(&d.infraRetries, 1) }

// IncSkipped records a scenario skipped by the change-aware cache.
func (d *Diagnostics) IncSkipped() { atomic.AddInt64(&d.scenariosSkipped, 1) }

// IncErrored records a scenario that failed with an infrastructure error.
func (d *Diagnostics) IncErrored() { atomic.AddInt64(&d.scenariosErrored, 1) }

// IncTimedOut records a scenario that exceeded its deadline.
func (d *Diagnostics) IncTimedOut() { atomic.AddInt64(&d.scenariosTimedOut, 1) }

// Snapshot is a point-in-time, non-atomic copy of Diagnostics with JSON
// tags; it is carried on orchestrator.RunResult.
type Snapshot struct {
	NonJSONLinesTolerated    int64 `json:"non_json_lines_tolerated"`
	SpansDroppedBackpressure int64 `json:"spans_dropped_backpressure"`
	CacheHits                int64 `json:"cache_hits"`
	CacheMisses              int64 `json:"cache_misses"`
	InfraRetries             int64 `json:"infra_retries"`
	ScenariosSkipped         int64 `json:"scenarios_skipped"`
	ScenariosErrored         int64 `json:"scenarios_errored"`
	ScenariosTimedOut        int64 `json:"scenarios_timed_out"`
}

// Snapshot takes an atomic point-in-time copy for reporting.
func (d *Diagnostics) Snapshot() Snapshot {
	return Snapshot{
		NonJSONLinesTolerated:    atomic.LoadInt64(&d.nonJSONLinesTolerated),
		SpansDroppedBackpressure: atomic.LoadInt64(&d.spansDroppedBackpressure),
		CacheHits:                atomic.LoadInt64(&d.cacheHits),
		CacheMisses:              atomic.LoadInt64(&d.cacheMisses),
		InfraRetries:             atomic.LoadInt64(&d.infraRetries),
		ScenariosSkipped:         atomic.LoadInt64(&d.scenariosSkipped),
		ScenariosErrored:         atomic.LoadInt64(&d.scenariosErrored),
		ScenariosTimedOut:        atomic.LoadInt64(&d.scenariosTimedOut),
	}
}
