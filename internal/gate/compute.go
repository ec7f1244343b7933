// Package gate derives the status of every pipeline stage from local evidence
// and an advisory baseline.
//
// [Compute] is the pure projection: it never fails and never mutates its
// inputs. [Gate] wraps it with injected evidence and baseline sources and
// substitutes safe defaults when either source fails.
//
// Key types:
//   - [Gate] - Resolves the current state from injected sources
//   - [Holder] - Last-write-wins container for the latest resolved state
//   - [Metrics] - Prometheus instrumentation for resolutions
package gate

import (
	"stagegate/internal/stage"
)

// Fallback returns the baseline used when no authoritative status is known:
// Ideation completed, every other stage locked.
func Fallback() stage.State {
	st := make(stage.State, len(stage.All()))
	for _, s := range stage.All() {
		st[s] = stage.StatusLocked
	}
	st[stage.Ideation] = stage.StatusCompleted
	return st
}

// Compute projects evidence over a baseline.
//
// Stages missing from baseline, or holding an unrecognized status, start from
// [Fallback]. Ideation is always completed. Walking the pipeline in order,
// evidence for a stage forces it to completed and promotes a locked successor
// to available. Evidence only ever moves a status forward.
//
// The result is total over [stage.All]. Compute is idempotent:
// Compute(e, Compute(e, b)) equals Compute(e, b).
func Compute(evidence stage.Evidence, baseline stage.State) stage.State {
	st := normalize(baseline)

	for _, s := range stage.All() {
		if !evidence.Has(s) {
			continue
		}
		advance(st, s, stage.StatusCompleted)
		if next, ok := s.Successor(); ok {
			advance(st, next, stage.StatusAvailable)
		}
	}

	return st
}

// normalize copies baseline into a total state, failing closed on anything
// it does not recognize.
func normalize(baseline stage.State) stage.State {
	st := Fallback()
	for _, s := range stage.All() {
		if v, ok := baseline[s]; ok && v.IsValid() {
			st[s] = v
		}
	}
	st[stage.Ideation] = stage.StatusCompleted
	return st
}

// advance raises the status of s to at least to.
func advance(st stage.State, s stage.Stage, to stage.Status) {
	if st[s].Rank() < to.Rank() {
		st[s] = to
	}
}
