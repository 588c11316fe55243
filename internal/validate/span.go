package validate

import (
	"fmt"

	"github.com/seanchatmangpt/cleanroom/internal/config"
	"github.com/seanchatmangpt/cleanroom/internal/spans"
)

// spanValidator implements per-span expectations: name match (exact or
// glob), optional parent name, kind, attrs.all/attrs.any, events.any,
// duration_ms range. When multiple spans match by name, every match must
// satisfy the expectation unless first_match is set (spec.md section
// 4.8, dimension 5).
type spanValidator struct{}

func (spanValidator) Name() string { return "span" }

func (spanValidator) Validate(spanSet []spans.SpanData, expect config.Expectations) Result {
	byID := indexSpans(spanSet)

	for _, se := range expect.Span {
		matches := matchSpansByName(spanSet, se.Name)
		if len(matches) == 0 {
			return fail("span", fmt.Sprintf("no span matched name %q", se.Name), se.Name)
		}
		if se.FirstMatch {
			matches = matches[:1]
		}
		for _, s := range matches {
			if r := checkSpanExpect(s, se, byID); !r.Pass {
				return r
			}
		}
	}
	return pass()
}

func matchSpansByName(spanSet []spans.SpanData, name string) []spans.SpanData {
	var out []spans.SpanData
	for _, s := range spanSet {
		if s.Name == name || globMatch(name, s.Name) {
			out = append(out, s)
		}
	}
	return out
}

func indexSpans(spanSet []spans.SpanData) map[string]spans.SpanData {
	idx := make(map[string]spans.SpanData, len(spanSet))
	for _, s := range spanSet {
		idx[s.SpanIDHex()] = s
	}
	return idx
}

func checkSpanExpect(s spans.SpanData, se config.SpanExpect, byID map[string]spans.SpanData) Result {
	if se.Parent != "" {
		parent, ok := byID[s.ParentSpanIDHex()]
		if !ok || (parent.Name != se.Parent && !globMatch(se.Parent, parent.Name)) {
			return fail("span", fmt.Sprintf("span %q (%s): expected parent %q", s.Name, s.SpanIDHex(), se.Parent), s.Name)
		}
	}
	if se.Kind != "" && string(s.Kind) != se.Kind {
		return fail("span", fmt.Sprintf("span %q (%s): expected kind %q, got %q", s.Name, s.SpanIDHex(), se.Kind, s.Kind), s.Name)
	}
	for key, want := range se.Attrs.All {
		got, ok := stringAttr(s.Attributes, key)
		if !ok || got != want {
			return fail("span", fmt.Sprintf("span %q (%s): attrs.all[%s] = %q, want %q", s.Name, s.SpanIDHex(), key, got, want), s.Name)
		}
	}
	if len(se.Attrs.Any) > 0 {
		satisfied := false
		for key, want := range se.Attrs.Any {
			if got, ok := stringAttr(s.Attributes, key); ok && got == want {
				satisfied = true
				break
			}
		}
		if !satisfied {
			return fail("span", fmt.Sprintf("span %q (%s): none of attrs.any were satisfied", s.Name, s.SpanIDHex()), s.Name)
		}
	}
	if len(se.Events.Any) > 0 {
		satisfied := false
		for _, ev := range s.Events {
			for _, want := range se.Events.Any {
				if ev.Name == want {
					satisfied = true
					break
				}
			}
		}
		if !satisfied {
			return fail("span", fmt.Sprintf("span %q (%s): no event matched events.any %v", s.Name, s.SpanIDHex(), se.Events.Any), s.Name)
		}
	}
	if se.DurationMs.Min != nil || se.DurationMs.Max != nil {
		durMs := float64(s.DurationNanos()) / 1e6
		if se.DurationMs.Min != nil && durMs < *se.DurationMs.Min {
			return fail("span", fmt.Sprintf("span %q (%s): duration %.3fms < min %.3fms", s.Name, s.SpanIDHex(), durMs, *se.DurationMs.Min), s.Name)
		}
		if se.DurationMs.Max != nil && durMs > *se.DurationMs.Max {
			return fail("span", fmt.Sprintf("span %q (%s): duration %.3fms > max %.3fms", s.Name, s.SpanIDHex(), durMs, *se.DurationMs.Max), s.Name)
		}
	}
	return pass()
}
