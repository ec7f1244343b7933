package gate

import (
	"context"

	"go.uber.org/zap"

	"stagegate/internal/stage"
)

// EvidenceSource is the interface for reading local stage evidence.
//
// Evidence returns the presence flag of every stage it knows about.
// The evidence package provides file, SQLite and in-memory implementations.
type EvidenceSource interface {
	Evidence(ctx context.Context) (stage.Evidence, error)
}

// BaselineSource is the interface for fetching the advisory remote status.
//
// Baseline may return a partial state. The baseline package provides the HTTP
// implementation.
type BaselineSource interface {
	Baseline(ctx context.Context) (stage.State, error)
}

// Gate resolves the current pipeline state from injected sources.
//
// Gate never fails: an evidence read error is treated as no evidence, and a
// baseline error is replaced with [Fallback]. Use [New] to create an instance.
// A Gate is safe for concurrent use as long as its sources are.
type Gate struct {
	evidence EvidenceSource
	baseline BaselineSource
	logger   *zap.Logger
	metrics  *Metrics
}

// Option configures a [Gate].
type Option func(*Gate)

// WithLogger sets the logger used to report degraded inputs.
func WithLogger(l *zap.Logger) Option {
	return func(g *Gate) {
		if l != nil {
			g.logger = l
		}
	}
}

// WithMetrics enables prometheus instrumentation.
func WithMetrics(m *Metrics) Option {
	return func(g *Gate) {
		g.metrics = m
	}
}

// New creates a [Gate]. A nil baseline source always yields [Fallback].
func New(evidence EvidenceSource, baseline BaselineSource, opts ...Option) *Gate {
	g := &Gate{
		evidence: evidence,
		baseline: baseline,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Resolve reads evidence, fetches the baseline and returns [Compute] of both.
func (g *Gate) Resolve(ctx context.Context) stage.State {
	ev := g.readEvidence(ctx)
	base := g.fetchBaseline(ctx)

	st := Compute(ev, base)

	if v := st.Violations(); len(v) > 0 {
		g.logger.Warn("baseline inconsistent with pipeline order",
			zap.Stringers("stages", v))
	}

	g.logger.Debug("resolved pipeline state",
		zap.Stringers("evidence", ev.Stages()),
		zap.Any("state", st))

	if g.metrics != nil {
		g.metrics.observe(st)
	}
	return st
}

func (g *Gate) readEvidence(ctx context.Context) stage.Evidence {
	if g.evidence == nil {
		return nil
	}
	ev, err := g.evidence.Evidence(ctx)
	if err != nil {
		g.logger.Warn("evidence unavailable, treating as absent", zap.Error(err))
		if g.metrics != nil {
			g.metrics.EvidenceFailures.Inc()
		}
		return nil
	}
	return ev
}

func (g *Gate) fetchBaseline(ctx context.Context) stage.State {
	if g.baseline == nil {
		return Fallback()
	}
	base, err := g.baseline.Baseline(ctx)
	if err != nil {
		g.logger.Warn("baseline fetch failed, using fallback", zap.Error(err))
		if g.metrics != nil {
			g.metrics.BaselineFallbacks.Inc()
		}
		return Fallback()
	}
	return base
}
