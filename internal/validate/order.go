package validate

import (
	"fmt"

	"github.com/seanchatmangpt/cleanroom/internal/config"
	"github.com/seanchatmangpt/cleanroom/internal/spans"
)

// orderValidator checks must_precede/must_follow pairs: every occurrence
// of A's end precedes every occurrence of B's start under strict `<`,
// unless strict=false allows ties (spec.md section 4.8, dimension 7).
type orderValidator struct{}

func (orderValidator) Name() string { return "order" }

func (orderValidator) Validate(spanSet []spans.SpanData, expect config.Expectations) Result {
	if expect.Order == nil {
		return pass()
	}
	oe := expect.Order
	strict := true
	if oe.Strict != nil {
		strict = *oe.Strict
	}

	byName := map[string][]spans.SpanData{}
	for _, s := range spanSet {
		byName[s.Name] = append(byName[s.Name], s)
	}

	checkPrecedes := func(a, b string) Result {
		for _, sa := range byName[a] {
			for _, sb := range byName[b] {
				ok := sa.EndTimeUnixNano < sb.StartTimeUnixNano
				if !ok && !strict && sa.EndTimeUnixNano == sb.StartTimeUnixNano {
					ok = true
				}
				if !ok {
					return fail("order", fmt.Sprintf("%q (end=%d) does not precede %q (start=%d)", a, sa.EndTimeUnixNano, b, sb.StartTimeUnixNano), fmt.Sprintf("%s->%s", a, b))
				}
			}
		}
		return pass()
	}

	for _, pair := range oe.MustPrecede {
		if r := checkPrecedes(pair[0], pair[1]); !r.Pass {
			return r
		}
	}
	for _, pair := range oe.MustFollow {
		// must_follow(A, B) means A follows B, i.e. B precedes A.
		if r := checkPrecedes(pair[1], pair[0]); !r.Pass {
			return r
		}
	}
	return pass()
}
