package baseline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"stagegate/internal/stage"
)

// SnapshotEnv overrides the configured snapshot path when set.
const SnapshotEnv = "STAGEGATE_SNAPSHOT_PATH"

// ResolveSnapshotPath determines the snapshot file location.
//
// Resolution order:
//  1. STAGEGATE_SNAPSHOT_PATH environment variable (used as-is if set)
//  2. Explicit path parameter
//
// An empty result means no snapshot is configured.
func ResolveSnapshotPath(path string) string {
	if envPath := os.Getenv(SnapshotEnv); envPath != "" {
		return envPath
	}
	return path
}

// Snapshot is a baseline source backed by a status file on disk, for use
// when the backend is not reachable at all.
//
// The file is a YAML (or JSON) mapping from stage name to status, the same
// document `stagegate status -o yaml` prints. It is re-read on every call.
type Snapshot struct {
	path string
}

// NewSnapshot creates a [Snapshot] reading path.
func NewSnapshot(path string) *Snapshot {
	return &Snapshot{path: path}
}

// Path returns the snapshot file path.
func (s *Snapshot) Path() string {
	return s.path
}

// Baseline reads and parses the snapshot file.
func (s *Snapshot) Baseline(ctx context.Context) (stage.State, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}

	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBody, err)
	}

	st := make(stage.State, len(doc))
	for k, v := range doc {
		s, err := stage.Parse(k)
		if err != nil {
			continue
		}
		switch val := v.(type) {
		case bool:
			if val {
				st[s] = stage.StatusCompleted
			} else {
				st[s] = stage.StatusLocked
			}
		case string:
			st[s] = stage.ParseStatus(val)
		default:
			st[s] = stage.StatusLocked
		}
	}
	return st, nil
}

// WriteSnapshot writes st to path as YAML, atomically (write to temp, then
// rename). The written state is total over all stages.
func WriteSnapshot(path string, st stage.State) error {
	doc := make(map[string]string, len(stage.All()))
	for _, e := range st.Ordered() {
		doc[string(e.Stage)] = string(e.Status)
	}

	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create snapshot dir: %w", err)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	return nil
}
