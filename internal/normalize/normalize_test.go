package normalize

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/seanchatmangpt/cleanroom/internal/spans"
)

func span(trace, id, parent string, start, end uint64, events []spans.Event) spans.SpanData {
	sd := spans.SpanData{
		Name:               "op",
		Kind:               spans.KindInternal,
		Status:             spans.StatusOK,
		StartTimeUnixNano:  start,
		EndTimeUnixNano:    end,
		Attributes:         map[string]interface{}{"b": 1, "a": 2},
		Events:             events,
		ResourceAttributes: map[string]interface{}{"service.name": "svc"},
	}
	sd.TraceID = mustHex(trace)
	sd.SpanID = mustHex(id)
	if parent != "" {
		sd.ParentSpanID = mustHex(parent)
	}
	return sd
}

func mustHex(s string) []byte {
	b := make([]byte, len(s)/2)
	for i := 0; i < len(b); i++ {
		var v byte
		for j := 0; j < 2; j++ {
			c := s[i*2+j]
			v <<= 4
			switch {
			case c >= '0' && c <= '9':
				v |= c - '0'
			case c >= 'a' && c <= 'f':
				v |= c - 'a' + 10
			}
		}
		b[i] = v
	}
	return b
}

func TestNormalize_OrderIndependent(t *testing.T) {
	a := span("aaaa000000000000000000000000aaaa", "1111111111111111", "", 100, 200, nil)
	b := span("bbbb000000000000000000000000bbbb", "2222222222222222", "", 100, 200, nil)

	n1 := Normalize([]spans.SpanData{a, b}, false)
	n2 := Normalize([]spans.SpanData{b, a}, false)

	require.Equal(t, n1.Digest, n2.Digest)
	require.Equal(t, string(n1.CanonicalJSON), string(n2.CanonicalJSON))
}

func TestNormalize_EventsSortedByTimeThenName(t *testing.T) {
	events := []spans.Event{
		{Name: "z", TimeUnixNano: 5},
		{Name: "a", TimeUnixNano: 5},
		{Name: "b", TimeUnixNano: 1},
	}
	a := span("aaaa000000000000000000000000aaaa", "1111111111111111", "", 100, 200, events)
	n := Normalize([]spans.SpanData{a}, false)
	require.Contains(t, string(n.CanonicalJSON), `"events":[{"name":"b","time_unix_nano":1`)
}

func TestNormalize_FreezeClockStripsTimestampsFromDigestOnly(t *testing.T) {
	a1 := span("aaaa000000000000000000000000aaaa", "1111111111111111", "", 100, 200, nil)
	a2 := span("aaaa000000000000000000000000aaaa", "1111111111111111", "", 999, 1999, nil)

	n1 := Normalize([]spans.SpanData{a1}, true)
	n2 := Normalize([]spans.SpanData{a2}, true)
	require.Equal(t, n1.Digest, n2.Digest, "freeze_clock should make digest independent of timestamps")

	// But the canonical JSON (report) still carries the real timestamps.
	require.Contains(t, string(n1.CanonicalJSON), `"start_time_unix_nano":100`)
	require.Contains(t, string(n2.CanonicalJSON), `"start_time_unix_nano":999`)
}

func TestNormalize_WithoutFreezeClockDigestDiffersOnTimestamps(t *testing.T) {
	a1 := span("aaaa000000000000000000000000aaaa", "1111111111111111", "", 100, 200, nil)
	a2 := span("aaaa000000000000000000000000aaaa", "1111111111111111", "", 999, 1999, nil)

	n1 := Normalize([]spans.SpanData{a1}, false)
	n2 := Normalize([]spans.SpanData{a2}, false)
	require.NotEqual(t, n1.Digest, n2.Digest)
}

func TestNormalize_AttributesSortedByKey(t *testing.T) {
	a := span("aaaa000000000000000000000000aaaa", "1111111111111111", "", 100, 200, nil)
	n := Normalize([]spans.SpanData{a}, false)
	require.Contains(t, string(n.CanonicalJSON), `"attributes":{"a":2,"b":1}`)
}
