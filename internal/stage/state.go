package stage

// State maps every stage to its status.
//
// A State produced by the gate is total: every stage in [All] has an entry.
// States read from a remote baseline may be partial.
type State map[Stage]Status

// Evidence holds the per-stage presence flags read from a local store.
// A missing entry means no evidence.
type Evidence map[Stage]bool

// Has reports whether evidence exists for s. A nil Evidence has none.
func (e Evidence) Has(s Stage) bool {
	return e[s]
}

// Stages returns the evidenced stages in pipeline order.
func (e Evidence) Stages() []Stage {
	var out []Stage
	for _, s := range order {
		if e[s] {
			out = append(out, s)
		}
	}
	return out
}

// Clone returns an independent copy of st.
func (st State) Clone() State {
	out := make(State, len(st))
	for k, v := range st {
		out[k] = v
	}
	return out
}

// Equal reports whether st and other hold the same statuses for every stage.
func (st State) Equal(other State) bool {
	if len(st) != len(other) {
		return false
	}
	for k, v := range st {
		if ov, ok := other[k]; !ok || ov != v {
			return false
		}
	}
	return true
}

// Violations returns the stages whose status breaks the chain rule: a stage
// may only be available or completed when its predecessor is completed, and
// Ideation must be completed.
func (st State) Violations() []Stage {
	var out []Stage
	for _, s := range order {
		cur := st[s]
		pred, ok := s.Predecessor()
		if !ok {
			if cur != StatusCompleted {
				out = append(out, s)
			}
			continue
		}
		if cur.Rank() > 0 && st[pred] != StatusCompleted {
			out = append(out, s)
		}
	}
	return out
}

// Next returns the first available stage in pipeline order. The second
// result is false when no stage is available.
func (st State) Next() (Stage, bool) {
	for _, s := range order {
		if st[s] == StatusAvailable {
			return s, true
		}
	}
	return "", false
}

// Completed reports whether every stage is completed.
func (st State) Completed() bool {
	for _, s := range order {
		if st[s] != StatusCompleted {
			return false
		}
	}
	return true
}

// Ordered returns the entries of st in pipeline order. Stages missing from
// st are reported as locked.
func (st State) Ordered() []Entry {
	out := make([]Entry, len(order))
	for i, s := range order {
		v, ok := st[s]
		if !ok || !v.IsValid() {
			v = StatusLocked
		}
		out[i] = Entry{Stage: s, Status: v}
	}
	return out
}

// Entry is one stage/status pair of a [State].
type Entry struct {
	Stage  Stage  `json:"stage" yaml:"stage"`
	Status Status `json:"status" yaml:"status"`
}
