package core

import (
	"errors"
	"fmt"
	"strings"
)

const (
	PlacementTop    Placement = "top"
	PlacementBottom Placement = "bottom"
	PlacementLeft   Placement = "left"
	PlacementRight  Placement = "right"
	PlacementCenter Placement = "center"

	FallbackSkip       FallbackBehavior = "skip"
	FallbackAbort      FallbackBehavior = "abort"
	FallbackShowCenter FallbackBehavior = "show-center"

	// DefaultHighlightPadding is the spotlight padding used when a step sets none.
	DefaultHighlightPadding = 8.0
)

type (
	Placement        string
	FallbackBehavior string

	// Tour is a static, ordered walkthrough definition.
	Tour struct {
		ID               string     `json:"id"`
		Name             string     `json:"name"`
		Description      string     `json:"description"`
		Steps            []TourStep `json:"steps"`
		EstimatedMinutes int        `json:"estimatedMinutes"`
		Module           string     `json:"module"`
	}

	// TourStep is one stop in a tour, bound to a page target and a content id.
	TourStep struct {
		ID               string           `json:"id"`
		Target           string           `json:"target"`
		Placement        Placement        `json:"placement"`
		ContentID        string           `json:"contentId"`
		WaitForEvent     string           `json:"waitForEvent,omitempty"`
		Fallback         FallbackBehavior `json:"fallbackBehavior"`
		HighlightPadding float64          `json:"highlightPadding,omitempty"`
		AllowInteraction bool             `json:"allowInteraction,omitempty"`
	}

	// StepContent is the resolved explanatory text shown in a step tooltip.
	StepContent struct {
		Title string `json:"title"`
		Short string `json:"short"`
		Body  string `json:"body,omitempty"`
	}
)

var (
	ErrEmptyTourID      = errors.New("empty tour id")
	ErrEmptyTourName    = errors.New("empty tour name")
	ErrNoSteps          = errors.New("tour has no steps")
	ErrEmptyStepID      = errors.New("empty step id")
	ErrEmptyTarget      = errors.New("empty step target")
	ErrDuplicateStepID  = errors.New("duplicate step id")
	ErrInvalidPlacement = errors.New("invalid placement")
	ErrInvalidFallback  = errors.New("invalid fallback behavior")
	ErrNegativePadding  = errors.New("negative highlight padding")
)

// IsValid reports whether p is one of the known placements.
func (p Placement) IsValid() bool {
	switch p {
	case PlacementTop, PlacementBottom, PlacementLeft, PlacementRight, PlacementCenter:
		return true
	default:
		return false
	}
}

// IsValid reports whether f is one of the known fallback behaviors.
func (f FallbackBehavior) IsValid() bool {
	switch f {
	case FallbackSkip, FallbackAbort, FallbackShowCenter:
		return true
	default:
		return false
	}
}

// Padding returns the spotlight padding for the step.
func (s TourStep) Padding() float64 {
	if s.HighlightPadding > 0 {
		return s.HighlightPadding
	}
	return DefaultHighlightPadding
}

// WithDefaults fills placement and fallback when they were left empty.
func (s TourStep) WithDefaults() TourStep {
	if s.Placement == "" {
		s.Placement = PlacementBottom
	}
	if s.Fallback == "" {
		s.Fallback = FallbackShowCenter
	}
	return s
}

func (s TourStep) Validate() error {
	if strings.TrimSpace(s.ID) == "" {
		return ErrEmptyStepID
	}
	if strings.TrimSpace(s.Target) == "" && s.Placement != PlacementCenter {
		return fmt.Errorf("step %s: %w", s.ID, ErrEmptyTarget)
	}
	if !s.Placement.IsValid() {
		return fmt.Errorf("step %s: %w: %q", s.ID, ErrInvalidPlacement, s.Placement)
	}
	if !s.Fallback.IsValid() {
		return fmt.Errorf("step %s: %w: %q", s.ID, ErrInvalidFallback, s.Fallback)
	}
	if s.HighlightPadding < 0 {
		return fmt.Errorf("step %s: %w", s.ID, ErrNegativePadding)
	}
	return nil
}

func (t Tour) Validate() error {
	if strings.TrimSpace(t.ID) == "" {
		return ErrEmptyTourID
	}
	if strings.TrimSpace(t.Name) == "" {
		return fmt.Errorf("tour %s: %w", t.ID, ErrEmptyTourName)
	}
	if len(t.Steps) == 0 {
		return fmt.Errorf("tour %s: %w", t.ID, ErrNoSteps)
	}
	seen := make(map[string]struct{}, len(t.Steps))
	for _, s := range t.Steps {
		if err := s.Validate(); err != nil {
			return fmt.Errorf("tour %s: %w", t.ID, err)
		}
		if _, ok := seen[s.ID]; ok {
			return fmt.Errorf("tour %s: %w: %s", t.ID, ErrDuplicateStepID, s.ID)
		}
		seen[s.ID] = struct{}{}
	}
	return nil
}

// StepIndex returns the position of the step with the given id, or -1.
func (t Tour) StepIndex(stepID string) int {
	for i, s := range t.Steps {
		if s.ID == stepID {
			return i
		}
	}
	return -1
}
