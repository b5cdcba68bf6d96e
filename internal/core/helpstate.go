package core

import (
	"slices"
	"time"
)

// ActiveTour is the resumption pointer for a tour in progress.
type ActiveTour struct {
	TourID    string    `json:"tourId"`
	StepIndex int       `json:"stepIndex"`
	StartedAt time.Time `json:"startedAt"`
}

// UserHelpState is the durable per-user record of help and tour progress.
// The id collections behave as sets and only ever grow.
type UserHelpState struct {
	CompletedTours []string    `json:"completedTours"`
	Dismissed      []string    `json:"dismissed"`
	CompletedPaths []string    `json:"completedPaths"`
	ReadArticles   []string    `json:"readArticles"`
	ActiveTour     *ActiveTour `json:"activeTour,omitempty"`
}

// NewUserHelpState returns an empty state with non-nil collections.
func NewUserHelpState() UserHelpState {
	return UserHelpState{
		CompletedTours: []string{},
		Dismissed:      []string{},
		CompletedPaths: []string{},
		ReadArticles:   []string{},
	}
}

// Normalize removes duplicates and empty ids and replaces nil collections.
// It is applied to anything read back from storage.
func (s UserHelpState) Normalize() UserHelpState {
	s.CompletedTours = dedupe(s.CompletedTours)
	s.Dismissed = dedupe(s.Dismissed)
	s.CompletedPaths = dedupe(s.CompletedPaths)
	s.ReadArticles = dedupe(s.ReadArticles)
	if s.ActiveTour != nil && s.ActiveTour.TourID == "" {
		s.ActiveTour = nil
	}
	return s
}

// Clone returns a deep copy so callers cannot mutate machine-owned state.
func (s UserHelpState) Clone() UserHelpState {
	out := UserHelpState{
		CompletedTours: slices.Clone(s.CompletedTours),
		Dismissed:      slices.Clone(s.Dismissed),
		CompletedPaths: slices.Clone(s.CompletedPaths),
		ReadArticles:   slices.Clone(s.ReadArticles),
	}
	if s.ActiveTour != nil {
		at := *s.ActiveTour
		out.ActiveTour = &at
	}
	return out.Normalize()
}

// CompleteTour records a completion; it returns false if already recorded.
func (s *UserHelpState) CompleteTour(id string) bool {
	return addUnique(&s.CompletedTours, id)
}

// DismissTour records an opt-out; it returns false if already recorded.
func (s *UserHelpState) DismissTour(id string) bool {
	return addUnique(&s.Dismissed, id)
}

func (s *UserHelpState) CompletePath(id string) bool {
	return addUnique(&s.CompletedPaths, id)
}

func (s *UserHelpState) MarkArticleRead(id string) bool {
	return addUnique(&s.ReadArticles, id)
}

func (s UserHelpState) IsCompleted(id string) bool {
	return slices.Contains(s.CompletedTours, id)
}

func (s UserHelpState) IsDismissed(id string) bool {
	return slices.Contains(s.Dismissed, id)
}

func addUnique(set *[]string, id string) bool {
	if id == "" || slices.Contains(*set, id) {
		return false
	}
	*set = append(*set, id)
	return true
}

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
