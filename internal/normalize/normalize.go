// Package normalize implements the cleanroom Span Normalizer (spec.md
// section 4.7): it takes an unordered span list and produces a canonical,
// byte-stable JSON representation plus a SHA-256 digest over it.
//
// Go's encoding/json does not guarantee that map key order in its output
// is independent of anything but lexicographic sort (it always sorts map
// keys), which gets attributes and resource_attributes for free; but
// events and the span list itself need an explicit sort before encoding,
// so this package drives the ordering by hand rather than leaning on
// encoding/json's default behavior for those two cases.
package normalize

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"

	"github.com/seanchatmangpt/cleanroom/internal/spans"
)

// canonicalEvent is the canonical JSON shape for one span event.
type canonicalEvent struct {
	Name         string                 `json:"name"`
	TimeUnixNano uint64                 `json:"time_unix_nano,omitempty"`
	Attributes   map[string]interface{} `json:"attributes"`
}

// canonicalSpan is the canonical JSON shape for one span.
type canonicalSpan struct {
	TraceID            string                 `json:"trace_id"`
	SpanID             string                 `json:"span_id"`
	ParentSpanID       string                 `json:"parent_span_id,omitempty"`
	Name               string                 `json:"name"`
	Kind               string                 `json:"kind"`
	StartTimeUnixNano  uint64                 `json:"start_time_unix_nano,omitempty"`
	EndTimeUnixNano    uint64                 `json:"end_time_unix_nano,omitempty"`
	Status             string                 `json:"status"`
	Attributes         map[string]interface{} `json:"attributes"`
	Events             []canonicalEvent       `json:"events"`
	ResourceAttributes map[string]interface{} `json:"resource_attributes"`
}

// Normalized holds both the canonical JSON (always including timestamps,
// for the human-facing report) and the digest, which is computed over a
// clock-stable variant when freezeClock is set.
type Normalized struct {
	CanonicalJSON []byte
	Digest        string
	Spans         []spans.SpanData
}

// Normalize implements the five-step procedure from spec.md section 4.7.
func Normalize(in []spans.SpanData, freezeClock bool) Normalized {
	sorted := make([]spans.SpanData, len(in))
	copy(sorted, in)

	// Step 1: sort spans by (trace_id_hex, span_id_hex).
	sort.Slice(sorted, func(i, j int) bool {
		ti, tj := sorted[i].TraceIDHex(), sorted[j].TraceIDHex()
		if ti != tj {
			return ti < tj
		}
		return sorted[i].SpanIDHex() < sorted[j].SpanIDHex()
	})

	canonical := make([]canonicalSpan, 0, len(sorted))
	digestCanonical := make([]canonicalSpan, 0, len(sorted))

	for _, s := range sorted {
		events := make([]spans.Event, len(s.Events))
		copy(events, s.Events)
		// Step 2 (events): sort by (time_unix_nano, name).
		sort.Slice(events, func(i, j int) bool {
			if events[i].TimeUnixNano != events[j].TimeUnixNano {
				return events[i].TimeUnixNano < events[j].TimeUnixNano
			}
			return events[i].Name < events[j].Name
		})

		cEvents := make([]canonicalEvent, 0, len(events))
		dEvents := make([]canonicalEvent, 0, len(events))
		for _, e := range events {
			cEvents = append(cEvents, canonicalEvent{Name: e.Name, TimeUnixNano: e.TimeUnixNano, Attributes: e.Attributes})
			t := e.TimeUnixNano
			if freezeClock {
				t = 0
			}
			dEvents = append(dEvents, canonicalEvent{Name: e.Name, TimeUnixNano: t, Attributes: e.Attributes})
		}

		full := canonicalSpan{
			TraceID:            s.TraceIDHex(),
			SpanID:             s.SpanIDHex(),
			ParentSpanID:       s.ParentSpanIDHex(),
			Name:               s.Name,
			Kind:               string(s.Kind),
			StartTimeUnixNano:  s.StartTimeUnixNano,
			EndTimeUnixNano:    s.EndTimeUnixNano,
			Status:             string(s.Status),
			Attributes:         s.Attributes,
			Events:             cEvents,
			ResourceAttributes: s.ResourceAttributes,
		}
		canonical = append(canonical, full)

		// Step 3: strip volatile fields from the digest input when the
		// clock is frozen, but keep them in the exported report (full).
		digestSpan := full
		digestSpan.Events = dEvents
		if freezeClock {
			digestSpan.StartTimeUnixNano = 0
			digestSpan.EndTimeUnixNano = 0
		}
		digestCanonical = append(digestCanonical, digestSpan)
	}

	// Step 4: serialize with canonical JSON (sorted keys via
	// encoding/json's map handling, no extraneous whitespace, no trailing
	// newline).
	reportJSON := mustCanonicalMarshal(canonical)
	digestInput := mustCanonicalMarshal(digestCanonical)

	// Step 5: SHA-256 over the digest-input byte string.
	sum := sha256.Sum256(digestInput)

	return Normalized{
		CanonicalJSON: reportJSON,
		Digest:        hex.EncodeToString(sum[:]),
		Spans:         sorted,
	}
}

// mustCanonicalMarshal serializes v with sorted object keys (encoding/json
// already sorts map[string]interface{} keys; struct field order is fixed
// by declaration order above, which mirrors the documented field order),
// UTF-8, and no trailing newline.
func mustCanonicalMarshal(v interface{}) []byte {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		// Encoding a slice of plain structs/maps cannot fail; if it ever
		// does, it means a span carries a value encoding/json cannot
		// represent, which is a defect in the span source, not something
		// normalize() can recover from.
		panic("normalize: failed to encode canonical span set: " + err.Error())
	}
	out := buf.Bytes()
	// json.Encoder.Encode always appends a trailing newline; strip it to
	// match the "no trailing newline" requirement.
	if len(out) > 0 && out[len(out)-1] == '\n' {
		out = out[:len(out)-1]
	}
	return out
}
