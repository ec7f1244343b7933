package cli

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap/zaptest"

	"stagegate/internal/config"
	"stagegate/internal/evidence"
	"stagegate/internal/gate"
	"stagegate/internal/output"
	"stagegate/internal/stage"
)

// syncBuffer is a bytes.Buffer safe for the watch command's concurrent writes.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func (b *syncBuffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]byte(nil), b.buf.Bytes()...)
}

func (b *syncBuffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf.Reset()
}

// FailingBaseline is a baseline source whose fetch always fails.
type FailingBaseline struct{}

func (FailingBaseline) Baseline(ctx context.Context) (stage.State, error) {
	return nil, errors.New("backend unreachable")
}

// FailingStore is an evidence store whose every operation fails.
type FailingStore struct{}

func (FailingStore) Evidence(ctx context.Context) (stage.Evidence, error) {
	return nil, errors.New("store offline")
}

func (FailingStore) Get(ctx context.Context, key string) ([]byte, error) {
	return nil, errors.New("store offline")
}

func (FailingStore) Put(ctx context.Context, key string, data []byte) error {
	return errors.New("store offline")
}

func (FailingStore) Delete(ctx context.Context, key string) error {
	return errors.New("store offline")
}

// newTestApp builds an App around store and base that prints into the
// returned buffer.
func newTestApp(t *testing.T, store evidence.Store, base gate.BaselineSource) (*App, *syncBuffer) {
	t.Helper()

	logger := zaptest.NewLogger(t)
	registry := prometheus.NewRegistry()
	buf := &syncBuffer{}

	return &App{
		Config:   config.DefaultConfig(),
		Gate:     gate.New(store, base, gate.WithLogger(logger), gate.WithMetrics(gate.NewMetrics(registry))),
		Store:    store,
		Printer:  output.NewPrinterWithWriter(buf),
		Logger:   logger,
		Registry: registry,
	}, buf
}

// execute runs the root command with args, sending cobra's own output to buf.
func execute(app *App, buf *syncBuffer, args ...string) error {
	rootCmd := NewRootCommand(app)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	return rootCmd.Execute()
}

// putEvidence stores a non-empty document for each stage.
func putEvidence(t *testing.T, store evidence.Store, stages ...stage.Stage) {
	t.Helper()
	keys := evidence.DefaultKeys()
	for _, s := range stages {
		if err := store.Put(context.Background(), keys.Key(s), []byte(`{"done":true}`)); err != nil {
			t.Fatalf("failed to store evidence for %s: %v", s, err)
		}
	}
}
