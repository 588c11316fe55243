// Package spans defines the cleanroom SpanData model and the Span
// Collector that ingests raw span batches from a scenario's artifacts.
//
// SpanData itself is a plain struct, not the OTLP protobuf Span the
// teacher's otlpclient/protobuf_span.go worked with directly — the core
// never speaks the OTLP wire protocol (spec.md section 4.6), so the only
// place tracepb.Span appears in this module is the boundary translation
// inside the otel_collector plugin (internal/plugins). The kind/status
// string<->enum mapping below is grounded on that file's
// SpanKindIntToString/SpanKindStringToInt/SpanStatusStringToInt pattern.
package spans

import (
	"encoding/hex"
)

// Kind is the OpenTelemetry span kind.
type Kind string

const (
	KindInternal Kind = "internal"
	KindClient   Kind = "client"
	KindServer   Kind = "server"
	KindProducer Kind = "producer"
	KindConsumer Kind = "consumer"
)

// Status is the OpenTelemetry span status code.
type Status string

const (
	StatusUnset Status = "unset"
	StatusOK    Status = "ok"
	StatusError Status = "error"
)

// Event is a single span event.
type Event struct {
	Name          string                 `json:"name"`
	TimeUnixNano  uint64                 `json:"time_unix_nano"`
	Attributes    map[string]interface{} `json:"attributes"`
}

// SpanData is the cleanroom span model, per spec.md section 3.
type SpanData struct {
	TraceID             []byte                 `json:"-"`
	SpanID               []byte                 `json:"-"`
	ParentSpanID         []byte                 `json:"-"`
	Name                 string                 `json:"name"`
	Kind                 Kind                   `json:"kind"`
	StartTimeUnixNano    uint64                 `json:"start_time_unix_nano"`
	EndTimeUnixNano      uint64                 `json:"end_time_unix_nano"`
	Status               Status                 `json:"status"`
	Attributes           map[string]interface{} `json:"attributes"`
	Events               []Event                `json:"events"`
	ResourceAttributes   map[string]interface{} `json:"resource_attributes"`

	// Scenario is populated by the Collector's attribution step (spec.md
	// section 4.6); it is not part of the wire representation, and not
	// part of the digest input — only of report partitioning.
	Scenario string `json:"-"`
}

// TraceIDHex returns the lowercase hex trace id.
func (s SpanData) TraceIDHex() string { return hex.EncodeToString(s.TraceID) }

// SpanIDHex returns the lowercase hex span id.
func (s SpanData) SpanIDHex() string { return hex.EncodeToString(s.SpanID) }

// ParentSpanIDHex returns the lowercase hex parent span id, or "" if the
// span is a root span.
func (s SpanData) ParentSpanIDHex() string {
	if len(s.ParentSpanID) == 0 {
		return ""
	}
	return hex.EncodeToString(s.ParentSpanID)
}

// DurationNanos returns End - Start. Invariant (spec.md section 3): End >= Start.
func (s SpanData) DurationNanos() int64 {
	return int64(s.EndTimeUnixNano) - int64(s.StartTimeUnixNano)
}

// KindFromString maps a wire/string span kind to the typed Kind,
// defaulting to internal for anything unrecognized.
func KindFromString(s string) Kind {
	switch s {
	case "client":
		return KindClient
	case "server":
		return KindServer
	case "producer":
		return KindProducer
	case "consumer":
		return KindConsumer
	default:
		return KindInternal
	}
}

// StatusFromString maps a wire/string status to the typed Status.
func StatusFromString(s string) Status {
	switch s {
	case "ok", "OK":
		return StatusOK
	case "error", "ERROR":
		return StatusError
	default:
		return StatusUnset
	}
}

// RunScenarioName is the synthetic scenario name used to attribute spans
// the Collector could not correlate to any known scenario (spec.md
// section 4.6).
const RunScenarioName = "<run>"
