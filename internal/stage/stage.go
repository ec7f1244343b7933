// Package stage defines the business-planning pipeline and its status model.
//
// The pipeline is a fixed, linearly dependent sequence of stages. Each stage
// depends on its predecessor being completed before it can be worked on:
//
//	ideation → viability_assessment → swot → bmc → brand_identity →
//	marketing_strategy → pitch_deck
//
// Key types:
//   - [Stage] - One step in the pipeline
//   - [Status] - locked, available or completed
//   - [State] - Total mapping from every stage to its status
//   - [Evidence] - Per-stage presence flags read from a local store
package stage

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownStage is returned by [Parse] when a name does not match any stage.
var ErrUnknownStage = errors.New("unknown stage")

// Stage identifies one step in the business-planning pipeline.
type Stage string

// Pipeline stages, in dependency order.
const (
	Ideation            Stage = "ideation"
	ViabilityAssessment Stage = "viability_assessment"
	SWOT                Stage = "swot"
	BMC                 Stage = "bmc"
	BrandIdentity       Stage = "brand_identity"
	MarketingStrategy   Stage = "marketing_strategy"
	PitchDeck           Stage = "pitch_deck"
)

// order is the fixed pipeline order. Index i depends on index i-1.
var order = []Stage{
	Ideation,
	ViabilityAssessment,
	SWOT,
	BMC,
	BrandIdentity,
	MarketingStrategy,
	PitchDeck,
}

var titles = map[Stage]string{
	Ideation:            "Ideation",
	ViabilityAssessment: "Viability Assessment",
	SWOT:                "SWOT Analysis",
	BMC:                 "Business Model Canvas",
	BrandIdentity:       "Brand Identity",
	MarketingStrategy:   "Marketing Strategy",
	PitchDeck:           "Pitch Deck",
}

// aliases maps the dashboard's camelCase keys onto canonical stage names.
var aliases = map[string]Stage{
	"viabilityassessment": ViabilityAssessment,
	"viability":           ViabilityAssessment,
	"swotanalysis":        SWOT,
	"businessmodelcanvas": BMC,
	"brandidentity":       BrandIdentity,
	"marketingstrategy":   MarketingStrategy,
	"pitchdeck":           PitchDeck,
}

// All returns the pipeline stages in dependency order.
// The returned slice is a copy and may be modified by the caller.
func All() []Stage {
	out := make([]Stage, len(order))
	copy(out, order)
	return out
}

// Parse resolves a stage name. Canonical names, camelCase dashboard keys and
// hyphenated forms are accepted, case-insensitively.
func Parse(name string) (Stage, error) {
	norm := strings.ToLower(strings.TrimSpace(name))
	norm = strings.ReplaceAll(norm, "-", "_")

	s := Stage(norm)
	if s.IsValid() {
		return s, nil
	}
	if s, ok := aliases[strings.ReplaceAll(norm, "_", "")]; ok {
		return s, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownStage, name)
}

// IsValid reports whether s is one of the pipeline stages.
func (s Stage) IsValid() bool {
	return s.Index() >= 0
}

// Index returns the position of s in the pipeline, or -1 if s is unknown.
func (s Stage) Index() int {
	for i, o := range order {
		if o == s {
			return i
		}
	}
	return -1
}

// Predecessor returns the stage s depends on. The second result is false
// for Ideation and for unknown stages.
func (s Stage) Predecessor() (Stage, bool) {
	i := s.Index()
	if i <= 0 {
		return "", false
	}
	return order[i-1], true
}

// Successor returns the stage that depends on s. The second result is false
// for the last stage and for unknown stages.
func (s Stage) Successor() (Stage, bool) {
	i := s.Index()
	if i < 0 || i+1 >= len(order) {
		return "", false
	}
	return order[i+1], true
}

// Title returns the human-readable stage name.
func (s Stage) Title() string {
	if t, ok := titles[s]; ok {
		return t
	}
	return string(s)
}

func (s Stage) String() string {
	return string(s)
}

// Status is the derived gate status of a single stage.
type Status string

const (
	// StatusLocked means the predecessor stage has not been completed.
	StatusLocked Status = "locked"

	// StatusAvailable means the stage can be worked on but has no output yet.
	StatusAvailable Status = "available"

	// StatusCompleted means output exists for the stage.
	StatusCompleted Status = "completed"
)

// IsValid reports whether s is a recognized status value.
func (s Status) IsValid() bool {
	switch s {
	case StatusLocked, StatusAvailable, StatusCompleted:
		return true
	}
	return false
}

// Rank orders statuses along the only direction evidence may move them:
// locked (0) < available (1) < completed (2). Unknown values rank as locked.
func (s Status) Rank() int {
	switch s {
	case StatusAvailable:
		return 1
	case StatusCompleted:
		return 2
	default:
		return 0
	}
}

// ParseStatus converts a raw value into a [Status]. Anything unrecognized
// becomes [StatusLocked].
func ParseStatus(raw string) Status {
	s := Status(strings.ToLower(strings.TrimSpace(raw)))
	if !s.IsValid() {
		return StatusLocked
	}
	return s
}

func (s Status) String() string {
	return string(s)
}
