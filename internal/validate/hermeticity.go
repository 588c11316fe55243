package validate

import (
	"fmt"

	"github.com/seanchatmangpt/cleanroom/internal/config"
	"github.com/seanchatmangpt/cleanroom/internal/spans"
)

// hermeticityValidator enforces no_external_services, resource_attrs
// must-match, and span_attrs forbid-keys (spec.md section 4.8, dimension
// 4).
type hermeticityValidator struct{}

func (hermeticityValidator) Name() string { return "hermeticity" }

func (hermeticityValidator) Validate(spanSet []spans.SpanData, expect config.Expectations) Result {
	if expect.Hermeticity == nil {
		return pass()
	}
	h := expect.Hermeticity

	allowed := map[string]bool{}
	for _, a := range h.AllowedAddresses {
		allowed[a] = true
	}

	for _, s := range spanSet {
		if h.NoExternalServices && s.Kind == spans.KindClient {
			addr, ok := stringAttr(s.Attributes, "net.peer.name")
			if !ok {
				addr, ok = stringAttr(s.Attributes, "server.address")
			}
			if ok && addr != "" && !allowed[addr] {
				return fail("hermeticity", fmt.Sprintf("span %q: external client address %q is not in allowed_addresses", s.Name, addr), s.Name)
			}
		}

		for key, want := range h.ResourceAttrs.MustMatch {
			got, ok := stringAttr(s.ResourceAttributes, key)
			if !ok || got != want {
				return fail("hermeticity", fmt.Sprintf("span %q: resource_attributes[%s] = %q, want %q", s.Name, key, got, want), s.Name)
			}
		}

		for _, key := range h.SpanAttrs.ForbidKeys {
			if _, ok := s.Attributes[key]; ok {
				return fail("hermeticity", fmt.Sprintf("span %q: forbidden attribute key %q is present", s.Name, key), s.Name)
			}
		}
	}
	return pass()
}

func stringAttr(m map[string]interface{}, key string) (string, bool) {
	v, ok := m[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}
