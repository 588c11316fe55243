// otel_collector.go adapts the teacher's otlpserver package (a gRPC/OTLP
// trace receiver built on coltracepb.TraceServiceServer) into a service
// plugin: starting it via StartService launches an embedded OTLP/gRPC
// listener other services can export spans to, and Drain exports what it
// received as JSONL, normalized to the cleanroom stdout-JSON span
// envelope shape so internal/spans.Collector can ingest it without this
// package — or anything else in the core orchestration path — speaking
// the OTLP wire protocol directly (spec.md section 4.6).
package plugins

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net"
	"sync"

	"google.golang.org/grpc"

	coltracepb "go.opentelemetry.io/proto/otlp/collector/trace/v1"
	commonpb "go.opentelemetry.io/proto/otlp/common/v1"
	tracepb "go.opentelemetry.io/proto/otlp/trace/v1"

	"github.com/seanchatmangpt/cleanroom/internal/backend"
	"github.com/seanchatmangpt/cleanroom/internal/clnrmerr"
	"github.com/seanchatmangpt/cleanroom/internal/config"
)

// OTelCollectorPlugin is the "kind = otel_collector" plugin.
type OTelCollectorPlugin struct {
	mu        sync.Mutex
	instances map[string]*collectorInstance
}

// NewOTelCollectorPlugin returns an empty collector plugin.
func NewOTelCollectorPlugin() *OTelCollectorPlugin {
	return &OTelCollectorPlugin{instances: map[string]*collectorInstance{}}
}

func (OTelCollectorPlugin) Kind() string { return "otel_collector" }

func (p *OTelCollectorPlugin) Backend() backend.Backend { return p }

// collectorInstance is one running embedded OTLP/gRPC receiver, grounded
// on the teacher's otlpserver.GrpcServer/Server: a grpc.Server registered
// as coltracepb.TraceServiceServer, whose Export method is invoked by
// whatever service-under-test the scenario configured to send its spans
// here.
type collectorInstance struct {
	coltracepb.UnimplementedTraceServiceServer

	mu       sync.Mutex
	server   *grpc.Server
	listener net.Listener
	envelopes []spanEnvelope
}

// spanEnvelope mirrors internal/spans' stdout-JSON wire shape exactly, so
// Drain's output can be fed straight into spans.Collector.IngestStdoutJSON.
type spanEnvelope struct {
	TraceID            string                 `json:"trace_id"`
	SpanID             string                 `json:"span_id"`
	ParentSpanID       string                 `json:"parent_span_id"`
	Name               string                 `json:"name"`
	Kind               string                 `json:"kind"`
	StartTimeUnixNano  uint64                 `json:"start_time_unix_nano"`
	EndTimeUnixNano    uint64                 `json:"end_time_unix_nano"`
	Status             string                 `json:"status"`
	Attributes         map[string]interface{} `json:"attributes"`
	Events             []spanEnvelopeEvent    `json:"events"`
	ResourceAttributes map[string]interface{} `json:"resource_attributes"`
}

type spanEnvelopeEvent struct {
	Name         string                 `json:"name"`
	TimeUnixNano uint64                 `json:"time_unix_nano"`
	Attributes   map[string]interface{} `json:"attributes"`
}

// Export implements coltracepb.TraceServiceServer, directly adapted from
// otlpserver.GrpcServer.Export: instead of invoking a CLI callback, it
// appends a normalized envelope per span to the instance's buffer.
func (ci *collectorInstance) Export(_ context.Context, req *coltracepb.ExportTraceServiceRequest) (*coltracepb.ExportTraceServiceResponse, error) {
	ci.mu.Lock()
	defer ci.mu.Unlock()

	for _, rs := range req.GetResourceSpans() {
		resourceAttrs := protoAttrsToMap(rs.GetResource().GetAttributes())
		for _, ss := range rs.GetScopeSpans() {
			for _, span := range ss.GetSpans() {
				ci.envelopes = append(ci.envelopes, spanToEnvelope(span, resourceAttrs))
			}
		}
	}
	return &coltracepb.ExportTraceServiceResponse{}, nil
}

func spanToEnvelope(span *tracepb.Span, resourceAttrs map[string]interface{}) spanEnvelope {
	events := make([]spanEnvelopeEvent, 0, len(span.GetEvents()))
	for _, e := range span.GetEvents() {
		events = append(events, spanEnvelopeEvent{
			Name:         e.GetName(),
			TimeUnixNano: e.GetTimeUnixNano(),
			Attributes:   protoAttrsToMap(e.GetAttributes()),
		})
	}
	return spanEnvelope{
		TraceID:            hex.EncodeToString(span.GetTraceId()),
		SpanID:             hex.EncodeToString(span.GetSpanId()),
		ParentSpanID:       hex.EncodeToString(span.GetParentSpanId()),
		Name:               span.GetName(),
		Kind:               kindToString(span.GetKind()),
		StartTimeUnixNano:  span.GetStartTimeUnixNano(),
		EndTimeUnixNano:    span.GetEndTimeUnixNano(),
		Status:             statusToString(span.GetStatus()),
		Attributes:         protoAttrsToMap(span.GetAttributes()),
		Events:             events,
		ResourceAttributes: resourceAttrs,
	}
}

// kindToString mirrors otlpserver.NewCliEventFromSpan's switch exactly.
func kindToString(k tracepb.Span_SpanKind) string {
	switch k {
	case tracepb.Span_SPAN_KIND_CLIENT:
		return "client"
	case tracepb.Span_SPAN_KIND_SERVER:
		return "server"
	case tracepb.Span_SPAN_KIND_PRODUCER:
		return "producer"
	case tracepb.Span_SPAN_KIND_CONSUMER:
		return "consumer"
	case tracepb.Span_SPAN_KIND_INTERNAL:
		return "internal"
	default:
		return "internal"
	}
}

func statusToString(s *tracepb.Status) string {
	if s == nil {
		return "unset"
	}
	switch s.GetCode() {
	case tracepb.Status_STATUS_CODE_OK:
		return "ok"
	case tracepb.Status_STATUS_CODE_ERROR:
		return "error"
	default:
		return "unset"
	}
}

func protoAttrsToMap(attrs []*commonpb.KeyValue) map[string]interface{} {
	out := make(map[string]interface{}, len(attrs))
	for _, a := range attrs {
		out[a.GetKey()] = anyValueToGo(a.GetValue())
	}
	return out
}

// anyValueToGo converts an OTLP AnyValue to a plain Go value, matching
// the subset of types spec.md's span attribute model allows.
func anyValueToGo(v *commonpb.AnyValue) interface{} {
	if v == nil {
		return nil
	}
	switch val := v.GetValue().(type) {
	case *commonpb.AnyValue_StringValue:
		return val.StringValue
	case *commonpb.AnyValue_BoolValue:
		return val.BoolValue
	case *commonpb.AnyValue_IntValue:
		return val.IntValue
	case *commonpb.AnyValue_DoubleValue:
		return val.DoubleValue
	case *commonpb.AnyValue_ArrayValue:
		arr := make([]interface{}, 0, len(val.ArrayValue.GetValues()))
		for _, e := range val.ArrayValue.GetValues() {
			arr = append(arr, anyValueToGo(e))
		}
		return arr
	default:
		return v.String()
	}
}

// StartService launches a fresh embedded OTLP/gRPC receiver for the given
// service spec (kind=otel_collector). The address the orchestrator
// injects as OTEL_EXPORTER_OTLP_ENDPOINT into sibling services' env is
// returned in the handle.
func (p *OTelCollectorPlugin) StartService(_ context.Context, spec config.ServiceSpec, _ map[string]string) (backend.ServiceHandle, error) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return backend.ServiceHandle{}, clnrmerr.Wrap(clnrmerr.KindContainer, err, "starting embedded otel_collector listener")
	}

	ci := &collectorInstance{server: grpc.NewServer(), listener: lis}
	coltracepb.RegisterTraceServiceServer(ci.server, ci)

	go func() {
		_ = ci.server.Serve(lis)
	}()

	p.mu.Lock()
	p.instances[spec.ID] = ci
	p.mu.Unlock()

	return backend.ServiceHandle{ID: spec.ID, Address: lis.Addr().String()}, nil
}

func (p *OTelCollectorPlugin) StopService(_ context.Context, handle backend.ServiceHandle) error {
	p.mu.Lock()
	ci, ok := p.instances[handle.ID]
	delete(p.instances, handle.ID)
	p.mu.Unlock()
	if !ok {
		return nil
	}
	ci.server.GracefulStop()
	return nil
}

func (p *OTelCollectorPlugin) HealthCheck(_ context.Context, handle backend.ServiceHandle) error {
	p.mu.Lock()
	_, ok := p.instances[handle.ID]
	p.mu.Unlock()
	if !ok {
		return clnrmerr.New(clnrmerr.KindContainer, fmt.Sprintf("otel_collector %q is not running", handle.ID))
	}
	return nil
}

// RunCmd is unsupported: the collector is a sidecar receiver, not an
// exec target.
func (p *OTelCollectorPlugin) RunCmd(_ context.Context, handle backend.ServiceHandle, _ string) (backend.ExecResult, error) {
	return backend.ExecResult{}, clnrmerr.New(clnrmerr.KindExecution, fmt.Sprintf("otel_collector %q does not support run_cmd", handle.ID))
}

func (p *OTelCollectorPlugin) MountVolume(_ context.Context, _ backend.ServiceHandle, _ config.Volume) error {
	return nil
}

// Drain returns every span envelope an instance has received since the
// last Drain, JSON-encoded one per line — the exact shape
// spans.Collector.IngestStdoutJSON expects, so the core never decodes
// OTLP protobuf itself.
func (p *OTelCollectorPlugin) Drain(handle backend.ServiceHandle) ([]byte, error) {
	p.mu.Lock()
	ci, ok := p.instances[handle.ID]
	p.mu.Unlock()
	if !ok {
		return nil, clnrmerr.New(clnrmerr.KindContainer, fmt.Sprintf("otel_collector %q is not running", handle.ID))
	}

	ci.mu.Lock()
	pending := ci.envelopes
	ci.envelopes = nil
	ci.mu.Unlock()

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, e := range pending {
		if err := enc.Encode(e); err != nil {
			return nil, clnrmerr.Wrap(clnrmerr.KindIO, err, "encoding drained span envelope")
		}
	}
	return buf.Bytes(), nil
}
