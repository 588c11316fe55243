// Package validate implements the cleanroom Validation Orchestrator and its
// eight constituent validators (spec.md section 4.8): Shape, Count,
// Status, Hermeticity, Span, Graph, Order, Window, run in that fixed order
// against a normalized span set and an expectation document.
package validate

import (
	"fmt"

	"github.com/seanchatmangpt/cleanroom/internal/config"
	"github.com/seanchatmangpt/cleanroom/internal/spans"
)

// Failure is a single validator failure: which dimension, why, and where.
type Failure struct {
	Dimension string `json:"dimension"`
	Reason    string `json:"reason"`
	Locator   string `json:"locator"`
}

// Result is what a single validator returns.
type Result struct {
	Pass     bool      `json:"pass"`
	Failures []Failure `json:"failures,omitempty"`
}

func pass() Result { return Result{Pass: true} }

func fail(dim, reason, locator string) Result {
	return Result{Pass: false, Failures: []Failure{{Dimension: dim, Reason: reason, Locator: locator}}}
}

// Validator is the common interface every dimension implements.
type Validator interface {
	Name() string
	Validate(spans []spans.SpanData, expect config.Expectations) Result
}

// orderedValidators is the fixed diagnosis order from spec.md section 4.8.
func orderedValidators() []Validator {
	return []Validator{
		shapeValidator{},
		countValidator{},
		statusValidator{},
		hermeticityValidator{},
		spanValidator{},
		graphValidator{},
		orderValidator{},
		windowValidator{},
	}
}

// ValidateShape runs only the Shape dimension against an expectation
// document, with no span set — used by the `lint` command, which checks
// expectation well-formedness without executing anything.
func ValidateShape(expect config.Expectations) Result {
	return shapeValidator{}.Validate(nil, expect)
}

// DimensionOrder returns the fixed diagnosis dimension names in order, for
// callers (e.g. internal/report) that need to walk a Report.ByDimension map
// deterministically.
func DimensionOrder() []string {
	vs := orderedValidators()
	names := make([]string, 0, len(vs))
	for _, v := range vs {
		names = append(names, v.Name())
	}
	return names
}

// Report is the Orchestrator's full output for one scenario: the first
// failing dimension, plus every dimension's result for diagnostics.
type Report struct {
	Scenario   string            `json:"scenario"`
	Pass       bool              `json:"pass"`
	FirstFail  *Failure          `json:"first_failure,omitempty"`
	ByDimension map[string]Result `json:"by_dimension"`
}

// Orchestrator runs the eight validators in fixed order.
type Orchestrator struct {
	Strict bool
}

// Run validates spanSet against expect, for the named scenario.
//
// Composition rule (spec.md section 4.8): each validator returns pass or
// fail(reason, locator). The first failing dimension is reported
// prominently; in Strict mode, the first failure aborts further
// validation — later validators are skipped entirely (not merely
// unreported), since the non-strict mode's purpose is purely diagnostic
// completeness, not independent pass/fail accumulation.
func (o Orchestrator) Run(scenario string, spanSet []spans.SpanData, expect config.Expectations) Report {
	report := Report{
		Scenario:    scenario,
		Pass:        true,
		ByDimension: map[string]Result{},
	}

	for _, v := range orderedValidators() {
		result := v.Validate(spanSet, expect)
		report.ByDimension[v.Name()] = result
		if !result.Pass {
			report.Pass = false
			if report.FirstFail == nil && len(result.Failures) > 0 {
				f := result.Failures[0]
				report.FirstFail = &f
			}
			if o.Strict {
				break
			}
		}
	}
	return report
}

func globMatch(pattern, name string) bool {
	ok, err := matchGlob(pattern, name)
	if err != nil {
		return false
	}
	return ok
}

// matchGlob implements `*`, `?`, and `[set]` glob matching (no `**`, no
// `/`-awareness — span names are flat strings, not paths), used by the
// Status validator's by_name patterns and the Span validator's name match.
func matchGlob(pattern, name string) (bool, error) {
	return globMatchRec([]rune(pattern), []rune(name))
}

func globMatchRec(pattern, name []rune) (bool, error) {
	for len(pattern) > 0 {
		switch pattern[0] {
		case '*':
			// Try every possible split; leftmost-longest handled by caller
			// ranking matches, not by greedy vs. lazy star semantics here.
			if len(pattern) == 1 {
				return true, nil
			}
			for i := 0; i <= len(name); i++ {
				if ok, err := globMatchRec(pattern[1:], name[i:]); err == nil && ok {
					return true, nil
				}
			}
			return false, nil
		case '?':
			if len(name) == 0 {
				return false, nil
			}
			pattern = pattern[1:]
			name = name[1:]
		case '[':
			end := -1
			for i := 1; i < len(pattern); i++ {
				if pattern[i] == ']' {
					end = i
					break
				}
			}
			if end == -1 {
				return false, fmt.Errorf("unterminated [ in glob pattern")
			}
			if len(name) == 0 {
				return false, nil
			}
			set := pattern[1:end]
			matched := false
			for _, c := range set {
				if c == name[0] {
					matched = true
					break
				}
			}
			if !matched {
				return false, nil
			}
			pattern = pattern[end+1:]
			name = name[1:]
		default:
			if len(name) == 0 || pattern[0] != name[0] {
				return false, nil
			}
			pattern = pattern[1:]
			name = name[1:]
		}
	}
	return len(name) == 0, nil
}

// specificity is used to rank glob patterns for "leftmost-longest match
// wins": a pattern with fewer wildcard characters and greater literal
// length is considered more specific.
func specificity(pattern string) int {
	score := 0
	for _, c := range pattern {
		switch c {
		case '*', '?':
			score--
		default:
			score++
		}
	}
	return score
}
