package gate

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"stagegate/internal/stage"
)

// MockEvidence is a mock evidence source for testing.
type MockEvidence struct {
	Flags stage.Evidence
	Err   error
	Calls int
}

func (m *MockEvidence) Evidence(ctx context.Context) (stage.Evidence, error) {
	m.Calls++
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Flags, nil
}

// MockBaseline is a mock baseline source for testing.
type MockBaseline struct {
	State stage.State
	Err   error
	Calls int
}

func (m *MockBaseline) Baseline(ctx context.Context) (stage.State, error) {
	m.Calls++
	if m.Err != nil {
		return nil, m.Err
	}
	return m.State, nil
}

func TestGate_Resolve(t *testing.T) {
	tests := []struct {
		name     string
		evidence *MockEvidence
		baseline *MockBaseline
		want     stage.State
	}{
		{
			name:     "evidence over baseline",
			evidence: &MockEvidence{Flags: stage.Evidence{stage.ViabilityAssessment: true}},
			baseline: &MockBaseline{State: stage.State{stage.Ideation: stage.StatusCompleted}},
			want: stateOf(map[stage.Stage]stage.Status{
				stage.Ideation:            stage.StatusCompleted,
				stage.ViabilityAssessment: stage.StatusCompleted,
				stage.SWOT:                stage.StatusAvailable,
			}),
		},
		{
			name:     "evidence failure is treated as absent",
			evidence: &MockEvidence{Err: errors.New("disk gone")},
			baseline: &MockBaseline{State: stage.State{stage.ViabilityAssessment: stage.StatusAvailable}},
			want: stateOf(map[stage.Stage]stage.Status{
				stage.Ideation:            stage.StatusCompleted,
				stage.ViabilityAssessment: stage.StatusAvailable,
			}),
		},
		{
			name:     "baseline failure uses fallback",
			evidence: &MockEvidence{Flags: stage.Evidence{stage.ViabilityAssessment: true, stage.SWOT: true}},
			baseline: &MockBaseline{Err: errors.New("connection refused")},
			want: stateOf(map[stage.Stage]stage.Status{
				stage.Ideation:            stage.StatusCompleted,
				stage.ViabilityAssessment: stage.StatusCompleted,
				stage.SWOT:                stage.StatusCompleted,
				stage.BMC:                 stage.StatusAvailable,
			}),
		},
		{
			name:     "both sources failing yields fallback",
			evidence: &MockEvidence{Err: errors.New("boom")},
			baseline: &MockBaseline{Err: errors.New("boom")},
			want:     Fallback(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := New(tt.evidence, tt.baseline)

			got := g.Resolve(context.Background())

			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Resolve() mismatch (-want +got):\n%s", diff)
			}
			assert.Equal(t, 1, tt.evidence.Calls)
			assert.Equal(t, 1, tt.baseline.Calls)
		})
	}
}

func TestGate_Resolve_NilSources(t *testing.T) {
	g := New(nil, nil)
	got := g.Resolve(context.Background())
	assert.True(t, Fallback().Equal(got))
}

func TestGate_Resolve_LogsDegradedInputs(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	g := New(
		&MockEvidence{Err: errors.New("store locked")},
		&MockBaseline{Err: errors.New("timeout")},
		WithLogger(zap.New(core)),
	)

	g.Resolve(context.Background())

	assert.Equal(t, 1, logs.FilterMessage("evidence unavailable, treating as absent").Len())
	assert.Equal(t, 1, logs.FilterMessage("baseline fetch failed, using fallback").Len())
}

func TestGate_Resolve_LogsInconsistentBaseline(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	g := New(
		&MockEvidence{},
		&MockBaseline{State: stage.State{stage.BMC: stage.StatusCompleted}},
		WithLogger(zap.New(core)),
	)

	got := g.Resolve(context.Background())

	// Advisory baseline is kept as-is, only reported.
	assert.Equal(t, stage.StatusCompleted, got[stage.BMC])
	require.Equal(t, 1, logs.FilterMessage("baseline inconsistent with pipeline order").Len())
}

func TestGate_Resolve_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	g := New(
		&MockEvidence{Flags: stage.Evidence{stage.ViabilityAssessment: true}},
		&MockBaseline{Err: errors.New("unreachable")},
		WithMetrics(m),
	)

	g.Resolve(context.Background())
	g.Resolve(context.Background())

	assert.Equal(t, float64(2), testutil.ToFloat64(m.Resolutions))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.BaselineFallbacks))
	assert.Equal(t, float64(0), testutil.ToFloat64(m.EvidenceFailures))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.StageStatus.WithLabelValues("viability_assessment")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.StageStatus.WithLabelValues("swot")))
	assert.Equal(t, float64(0), testutil.ToFloat64(m.StageStatus.WithLabelValues("bmc")))
}

func TestHolder_ReplaceAndLoad(t *testing.T) {
	h := NewHolder()

	st, v := h.Load()
	assert.Equal(t, uint64(0), v)
	assert.True(t, Fallback().Equal(st))

	next := Compute(stage.Evidence{stage.ViabilityAssessment: true}, nil)
	v, changed := h.Replace(next)
	assert.Equal(t, uint64(1), v)
	assert.True(t, changed)

	v, changed = h.Replace(next)
	assert.Equal(t, uint64(2), v)
	assert.False(t, changed)

	// Loaded copies are independent of the holder.
	st, _ = h.Load()
	st[stage.SWOT] = stage.StatusCompleted
	again, _ := h.Load()
	assert.Equal(t, stage.StatusAvailable, again[stage.SWOT])
}

func TestHolder_ConcurrentReplace(t *testing.T) {
	h := NewHolder()
	g := New(&MockEvidence{Flags: stage.Evidence{stage.SWOT: true}}, nil)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			// Each goroutine needs its own gate; the mocks are not synchronized.
			local := New(&MockEvidence{Flags: stage.Evidence{stage.SWOT: true}}, nil)
			h.Replace(local.Resolve(context.Background()))
		}()
	}
	wg.Wait()

	st, v := h.Load()
	assert.Equal(t, uint64(50), v)
	assert.True(t, g.Resolve(context.Background()).Equal(st))
}
