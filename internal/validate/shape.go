package validate

import (
	"fmt"

	"github.com/seanchatmangpt/cleanroom/internal/config"
	"github.com/seanchatmangpt/cleanroom/internal/spans"
)

// shapeValidator checks that the expectation document itself is
// well-formed before any span is inspected, so a malformed expectation
// produces a clear schema complaint instead of a confusing downstream
// failure (spec.md section 4.8, dimension 1).
//
// Most shape rules are already enforced by internal/config.Parse at parse
// time (contradictory count bounds, unknown keys); this validator adds
// checks on the expectation document alone — in particular, that named
// nodes referenced by Graph/Order/Window expectations are coherent. It
// never looks at the span set.
type shapeValidator struct{}

func (shapeValidator) Name() string { return "shape" }

func (shapeValidator) Validate(_ []spans.SpanData, expect config.Expectations) Result {
	if expect.Graph != nil {
		for _, e := range expect.Graph.MustInclude {
			if e[0] == "" || e[1] == "" {
				return fail("shape", "expect.graph.must_include entries require both parent and child names", "expect.graph.must_include")
			}
		}
		for _, e := range expect.Graph.MustNotCross {
			if e[0] == "" || e[1] == "" {
				return fail("shape", "expect.graph.must_not_cross entries require both parent and child names", "expect.graph.must_not_cross")
			}
		}
	}
	if expect.Order != nil {
		for _, e := range expect.Order.MustPrecede {
			if e[0] == "" || e[1] == "" {
				return fail("shape", "expect.order.must_precede entries require both names", "expect.order.must_precede")
			}
		}
		for _, e := range expect.Order.MustFollow {
			if e[0] == "" || e[1] == "" {
				return fail("shape", "expect.order.must_follow entries require both names", "expect.order.must_follow")
			}
		}
	}
	for i, w := range expect.Window {
		if w.Outer == "" {
			return fail("shape", fmt.Sprintf("expect.window[%d].outer is required", i), fmt.Sprintf("expect.window[%d]", i))
		}
		if len(w.Contains) == 0 {
			return fail("shape", fmt.Sprintf("expect.window[%d].contains must list at least one span name", i), fmt.Sprintf("expect.window[%d]", i))
		}
	}
	for i, se := range expect.Span {
		if se.Name == "" {
			return fail("shape", fmt.Sprintf("expect.span[%d].name is required", i), fmt.Sprintf("expect.span[%d]", i))
		}
		if se.DurationMs.Min != nil && se.DurationMs.Max != nil && *se.DurationMs.Min > *se.DurationMs.Max {
			return fail("shape", fmt.Sprintf("expect.span[%d].duration_ms: min > max", i), fmt.Sprintf("expect.span[%d].duration_ms", i))
		}
	}
	return pass()
}
