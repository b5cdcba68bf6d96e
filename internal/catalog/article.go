package catalog

import (
	"errors"
	"fmt"
)

// Article is a metric explainer.
type Article struct {
	ID             string   `yaml:"id" json:"id"`
	Title          string   `yaml:"title" json:"title"`
	Short          string   `yaml:"short" json:"short"`
	Body           string   `yaml:"body" json:"body,omitempty"`
	Formula        string   `yaml:"formula" json:"formula,omitempty"`
	Benchmarks     []string `yaml:"benchmarks" json:"benchmarks,omitempty"`
	Related        []string `yaml:"related" json:"related,omitempty"`
	Interpretation []Rule   `yaml:"interpretation" json:"interpretation,omitempty"`
}

// Op is a comparison applied to a metric value.
type Op string

const (
	OpGTE     Op = "gte"
	OpLTE     Op = "lte"
	OpBetween Op = "between"
)

var ErrInvalidRule = errors.New("invalid interpretation rule")

// Rule labels a metric value. Between is inclusive on both ends.
type Rule struct {
	Op    Op      `yaml:"op" json:"op"`
	Value float64 `yaml:"value" json:"value,omitempty"`
	Min   float64 `yaml:"min" json:"min,omitempty"`
	Max   float64 `yaml:"max" json:"max,omitempty"`
	Label string  `yaml:"label" json:"label"`
	Tone  string  `yaml:"tone" json:"tone,omitempty"`
}

func (r Rule) Matches(v float64) bool {
	switch r.Op {
	case OpGTE:
		return v >= r.Value
	case OpLTE:
		return v <= r.Value
	case OpBetween:
		return v >= r.Min && v <= r.Max
	default:
		return false
	}
}

func (r Rule) validate() error {
	switch r.Op {
	case OpGTE, OpLTE:
	case OpBetween:
		if r.Min > r.Max {
			return fmt.Errorf("%w: min %v > max %v", ErrInvalidRule, r.Min, r.Max)
		}
	default:
		return fmt.Errorf("%w: unknown op %q", ErrInvalidRule, r.Op)
	}
	if r.Label == "" {
		return fmt.Errorf("%w: label is required", ErrInvalidRule)
	}
	return nil
}

func (a Article) validateRules() error {
	for _, r := range a.Interpretation {
		if err := r.validate(); err != nil {
			return err
		}
	}
	return nil
}

// Interpret returns the first rule matching v.
func (a Article) Interpret(v float64) (Rule, bool) {
	for _, r := range a.Interpretation {
		if r.Matches(v) {
			return r, true
		}
	}
	return Rule{}, false
}
