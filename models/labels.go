package models

import (
	"fmt"
)

// LabelCapability declares how a model treats class labels during a forward
// pass. The capability is fixed at construction and drives the dispatch the
// training step performs when deciding which label tensor, if any, to pass.
type LabelCapability int

const (
	LabelNone      LabelCapability = iota // model ignores labels entirely
	LabelRequired                         // caller must supply ground-truth labels
	LabelGenerated                        // model conditions on labels sampled by the caller
)

// String returns a human-readable capability name.
func (lc LabelCapability) String() string {
	switch lc {
	case LabelNone:
		return "none"
	case LabelRequired:
		return "required"
	case LabelGenerated:
		return "generated"
	default:
		return fmt.Sprintf("Unknown(%d)", lc)
	}
}

// ParseLabelCapability converts a configuration string into a
// LabelCapability.
func ParseLabelCapability(s string) (LabelCapability, error) {
	switch s {
	case "none":
		return LabelNone, nil
	case "required":
		return LabelRequired, nil
	case "generated":
		return LabelGenerated, nil
	default:
		return LabelNone, fmt.Errorf("unknown label capability %q", s)
	}
}
