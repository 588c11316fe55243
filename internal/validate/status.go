package validate

import (
	"fmt"
	"strings"

	"github.com/seanchatmangpt/cleanroom/internal/config"
	"github.com/seanchatmangpt/cleanroom/internal/spans"
)

// statusValidator enforces status.all uniformly and status.by_name via
// glob patterns, leftmost-longest match wins (spec.md section 4.8,
// dimension 3).
type statusValidator struct{}

func (statusValidator) Name() string { return "status" }

func (statusValidator) Validate(spanSet []spans.SpanData, expect config.Expectations) Result {
	if expect.Status == nil {
		return pass()
	}

	for _, s := range spanSet {
		want := resolveExpectedStatus(expect.Status, s.Name)
		if want == "" {
			continue
		}
		if !strings.EqualFold(string(s.Status), want) {
			return fail("status", fmt.Sprintf("span %q (%s): expected status %s, got %s", s.Name, s.SpanIDHex(), want, s.Status), s.Name)
		}
	}
	return pass()
}

// resolveExpectedStatus picks the expected status for a span name: the
// most specific matching by_name glob wins; all is the fallback.
func resolveExpectedStatus(se *config.StatusExpect, name string) string {
	bestPattern := ""
	bestSpecificity := -1 << 31
	for pattern := range se.ByName {
		if globMatch(pattern, name) {
			if s := specificity(pattern); s > bestSpecificity {
				bestSpecificity = s
				bestPattern = pattern
			}
		}
	}
	if bestPattern != "" {
		return se.ByName[bestPattern]
	}
	return se.All
}
