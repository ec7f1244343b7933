package gate

import (
	"sync"

	"stagegate/internal/stage"
)

// Holder keeps the most recently resolved state.
//
// Every [Holder.Replace] overwrites the previous value wholesale and bumps the
// version, so concurrent recomputations settle on whichever wrote last.
type Holder struct {
	mu      sync.RWMutex
	state   stage.State
	version uint64
}

// NewHolder creates a [Holder] seeded with [Fallback].
func NewHolder() *Holder {
	return &Holder{state: Fallback()}
}

// Replace stores a copy of st and returns the new version together with
// whether the stored state differs from the previous one.
func (h *Holder) Replace(st stage.State) (version uint64, changed bool) {
	cp := st.Clone()

	h.mu.Lock()
	defer h.mu.Unlock()

	changed = !h.state.Equal(cp)
	h.state = cp
	h.version++
	return h.version, changed
}

// Load returns a copy of the current state and its version.
func (h *Holder) Load() (stage.State, uint64) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.state.Clone(), h.version
}
