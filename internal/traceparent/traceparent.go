// Package traceparent implements W3C traceparent generation, parsing, and
// encoding, adapted from the teacher's w3c/traceparent package (the
// standalone, import-free copy of the logic that also appeared duplicated
// inside otelcli/ and otlpclient/ in the source repo).
//
// cleanroom uses this to mint a root traceparent per scenario invocation
// and inject it into the container as CLNRM_TRACEPARENT, so the Span
// Collector can attribute spans it observes back to the scenario that
// produced them (spec.md section 4.6).
package traceparent

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"regexp"
	"strconv"
)

var traceparentRe = regexp.MustCompile("^([[:xdigit:]]{2})-([[:xdigit:]]{32})-([[:xdigit:]]{16})-([[:xdigit:]]{2})")

var emptyTraceID = []byte{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0}
var emptySpanID = []byte{0, 0, 0, 0, 0, 0, 0, 0}

// Traceparent represents a parsed or generated W3C traceparent.
type Traceparent struct {
	Version     int
	TraceID     []byte
	SpanID      []byte
	Sampled     bool
	Initialized bool
}

// New generates a fresh, sampled root traceparent with random trace and
// span ids, used as the scenario-correlation root context.
func New() Traceparent {
	return Traceparent{
		Version:     0,
		TraceID:     randBytes(16),
		SpanID:      randBytes(8),
		Sampled:     true,
		Initialized: true,
	}
}

func randBytes(n int) []byte {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		panic("failed to generate random bytes for traceparent: " + err.Error())
	}
	return buf
}

// Encode returns tp as a W3C-formatted traceparent string.
func (tp Traceparent) Encode() string {
	sampling := 0
	if tp.Sampled {
		sampling = 1
	}
	traceID := tp.TraceID
	spanID := tp.SpanID
	if traceID == nil {
		traceID = emptyTraceID
	}
	if spanID == nil {
		spanID = emptySpanID
	}
	return fmt.Sprintf("%02x-%s-%s-%02x", tp.Version, hex.EncodeToString(traceID), hex.EncodeToString(spanID), sampling)
}

// TraceIDHex returns the lowercase hex trace id, for scenario correlation
// lookups.
func (tp Traceparent) TraceIDHex() string { return hex.EncodeToString(tp.TraceID) }

// Parse decodes a W3C traceparent header string.
func Parse(s string) (Traceparent, error) {
	matches := traceparentRe.FindStringSubmatch(s)
	if matches == nil {
		return Traceparent{}, fmt.Errorf("traceparent %q does not match the w3c format", s)
	}

	version, err := strconv.ParseInt(matches[1], 16, 64)
	if err != nil {
		return Traceparent{}, fmt.Errorf("error parsing traceparent version: %w", err)
	}

	traceID, err := hex.DecodeString(matches[2])
	if err != nil {
		return Traceparent{}, fmt.Errorf("error parsing traceparent trace id: %w", err)
	}

	spanID, err := hex.DecodeString(matches[3])
	if err != nil {
		return Traceparent{}, fmt.Errorf("error parsing traceparent span id: %w", err)
	}

	sampling, err := strconv.ParseInt(matches[4], 16, 64)
	if err != nil {
		return Traceparent{}, fmt.Errorf("error parsing traceparent sampling flags: %w", err)
	}

	return Traceparent{
		Version:     int(version),
		TraceID:     traceID,
		SpanID:      spanID,
		Sampled:     sampling&1 == 1,
		Initialized: true,
	}, nil
}

// EnvKey is the environment variable cleanroom injects into every scenario
// container so the service-under-test can propagate the correlation
// context, and so the collector can attribute spans back to a scenario.
const EnvKey = "CLNRM_TRACEPARENT"
