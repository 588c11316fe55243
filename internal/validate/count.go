package validate

import (
	"fmt"

	"github.com/seanchatmangpt/cleanroom/internal/config"
	"github.com/seanchatmangpt/cleanroom/internal/spans"
)

// countValidator checks total and per-name span cardinality bounds
// (spec.md section 4.8, dimension 2). Contradictory bounds are already
// rejected as schema_error at parse time (internal/config.validateCounts);
// this validator only evaluates satisfiable bounds against the observed
// counts.
type countValidator struct{}

func (countValidator) Name() string { return "count" }

func (countValidator) Validate(spanSet []spans.SpanData, expect config.Expectations) Result {
	if expect.Counts == nil {
		return pass()
	}

	byName := map[string]int{}
	for _, s := range spanSet {
		byName[s.Name]++
	}

	if expect.Counts.Total != nil {
		if r := checkBound(*expect.Counts.Total, len(spanSet), "expect.counts.total"); !r.Pass {
			return r
		}
	}
	for name, bound := range expect.Counts.ByName {
		if r := checkBound(bound, byName[name], fmt.Sprintf("expect.counts.by_name[%s]", name)); !r.Pass {
			return r
		}
	}
	return pass()
}

func checkBound(b config.CountBound, actual int, locator string) Result {
	if b.Eq != nil && actual != *b.Eq {
		return fail("count", fmt.Sprintf("%s: expected exactly %d, got %d", locator, *b.Eq, actual), locator)
	}
	if b.Gte != nil && actual < *b.Gte {
		return fail("count", fmt.Sprintf("%s: expected >= %d, got %d", locator, *b.Gte, actual), locator)
	}
	if b.Lte != nil && actual > *b.Lte {
		return fail("count", fmt.Sprintf("%s: expected <= %d, got %d", locator, *b.Lte, actual), locator)
	}
	return pass()
}
