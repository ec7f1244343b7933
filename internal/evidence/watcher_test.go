package evidence

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"
)

// changeRecorder collects ChangeFunc invocations.
type changeRecorder struct {
	mu    sync.Mutex
	calls [][]string
}

func (r *changeRecorder) record(_ context.Context, keys []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, keys)
}

func (r *changeRecorder) snapshot() [][]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([][]string, len(r.calls))
	copy(out, r.calls)
	return out
}

func TestWatcher_SignalsChanges(t *testing.T) {
	defer goleak.VerifyNone(t)

	store := NewFileStore(filepath.Join(t.TempDir(), "evidence"), nil)
	rec := &changeRecorder{}

	w, err := NewWatcher(store, rec.record,
		WithDebounce(50*time.Millisecond),
		WithWatchLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)
	defer w.Stop()

	require.NoError(t, w.Start(context.Background()))

	ctx := context.Background()
	require.NoError(t, store.Put(ctx, "swot", []byte(`{"s": 1}`)))
	require.NoError(t, store.Put(ctx, "bmc", []byte(`{"b": 1}`)))

	require.Eventually(t, func() bool {
		for _, call := range rec.snapshot() {
			if contains(call, "swot") || contains(call, "bmc") {
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)

	var seen []string
	for _, call := range rec.snapshot() {
		seen = append(seen, call...)
		for _, k := range call {
			assert.NotContains(t, k, ".tmp", "temporary files are not keys")
		}
	}
	assert.Subset(t, seen, []string{"swot", "bmc"})
}

func TestWatcher_SignalsDeletes(t *testing.T) {
	defer goleak.VerifyNone(t)

	store := NewFileStore(filepath.Join(t.TempDir(), "evidence"), nil)
	ctx := context.Background()
	require.NoError(t, store.Put(ctx, "swot", []byte(`{"s": 1}`)))

	rec := &changeRecorder{}
	w, err := NewWatcher(store, rec.record, WithDebounce(20*time.Millisecond))
	require.NoError(t, err)
	defer w.Stop()
	require.NoError(t, w.Start(ctx))

	require.NoError(t, store.Delete(ctx, "swot"))

	require.Eventually(t, func() bool {
		for _, call := range rec.snapshot() {
			if contains(call, "swot") {
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)
}

func TestWatcher_RecoversFromRemovedDir(t *testing.T) {
	defer goleak.VerifyNone(t)

	dir := filepath.Join(t.TempDir(), "evidence")
	store := NewFileStore(dir, nil)
	ctx := context.Background()
	require.NoError(t, store.Put(ctx, "swot", []byte(`{"s": 1}`)))

	rec := &changeRecorder{}
	w, err := NewWatcher(store, rec.record,
		WithDebounce(20*time.Millisecond),
		WithWatchLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)
	defer w.Stop()
	require.NoError(t, w.Start(ctx))

	require.NoError(t, os.RemoveAll(dir))

	require.Eventually(t, func() bool {
		for _, call := range rec.snapshot() {
			if contains(call, "pitch_deck") {
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond, "removing the dir signals every key")
	require.DirExists(t, dir)

	require.NoError(t, store.Put(ctx, "bmc", []byte(`{"b": 1}`)))

	require.Eventually(t, func() bool {
		calls := rec.snapshot()
		return len(calls) > 0 && contains(calls[len(calls)-1], "bmc")
	}, 2*time.Second, 10*time.Millisecond, "writes after recreation are still seen")
}

func TestWatcher_StopsOnContextCancel(t *testing.T) {
	defer goleak.VerifyNone(t)

	store := NewFileStore(filepath.Join(t.TempDir(), "evidence"), nil)
	w, err := NewWatcher(store, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, w.Start(ctx))
	require.NoError(t, w.Start(ctx), "second start is a no-op")

	cancel()
	w.Stop()
}

func TestWatcher_StopWithoutStart(t *testing.T) {
	defer goleak.VerifyNone(t)

	w, err := NewWatcher(NewFileStore(t.TempDir(), nil), nil)
	require.NoError(t, err)
	w.Stop()
}

func contains(keys []string, want string) bool {
	for _, k := range keys {
		if k == want {
			return true
		}
	}
	return false
}
