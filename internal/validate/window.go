package validate

import (
	"fmt"

	"github.com/seanchatmangpt/cleanroom/internal/config"
	"github.com/seanchatmangpt/cleanroom/internal/spans"
)

// windowValidator checks that each outer span's [start, end] closed
// interval contains every listed contained span's [start, end] (spec.md
// section 4.8, dimension 8). Missing timestamps (a zero start or end, e.g.
// a span that never ended) fail with a specific reason rather than
// silently passing.
type windowValidator struct{}

func (windowValidator) Name() string { return "window" }

func (windowValidator) Validate(spanSet []spans.SpanData, expect config.Expectations) Result {
	byName := map[string][]spans.SpanData{}
	for _, s := range spanSet {
		byName[s.Name] = append(byName[s.Name], s)
	}

	for _, w := range expect.Window {
		outers := byName[w.Outer]
		if len(outers) == 0 {
			return fail("window", fmt.Sprintf("no outer span named %q found", w.Outer), w.Outer)
		}
		for _, outer := range outers {
			if outer.StartTimeUnixNano == 0 || outer.EndTimeUnixNano == 0 {
				return fail("window", fmt.Sprintf("outer span %q (%s) is missing start/end timestamps", outer.Name, outer.SpanIDHex()), w.Outer)
			}
			for _, childName := range w.Contains {
				children := byName[childName]
				if len(children) == 0 {
					return fail("window", fmt.Sprintf("no contained span named %q found", childName), childName)
				}
				for _, child := range children {
					if child.StartTimeUnixNano == 0 || child.EndTimeUnixNano == 0 {
						return fail("window", fmt.Sprintf("contained span %q (%s) is missing start/end timestamps", child.Name, child.SpanIDHex()), childName)
					}
					if !(outer.StartTimeUnixNano <= child.StartTimeUnixNano && child.EndTimeUnixNano <= outer.EndTimeUnixNano) {
						return fail("window", fmt.Sprintf("outer %q [%d,%d] does not contain %q [%d,%d]",
							outer.Name, outer.StartTimeUnixNano, outer.EndTimeUnixNano,
							child.Name, child.StartTimeUnixNano, child.EndTimeUnixNano), fmt.Sprintf("%s⊇%s", w.Outer, childName))
					}
				}
			}
		}
	}
	return pass()
}
