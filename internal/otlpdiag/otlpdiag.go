// Package otlpdiag implements the `self-test` diagnostic command: it
// emits one synthetic span to the configured OTLP endpoint and reports
// whether the round trip succeeded. It is a deliberate side door, never
// called from the validated run path — the orchestrator core never emits
// OTEL data of its own (spec.md section 6, "self-test" Non-goal). Its
// gRPC/HTTP client wiring is adapted directly from the teacher's
// otelcli.SendSpan/grpcOptions/httpOptions (otelcli/plumbing.go), trimmed
// to the single-span self-test use case.
package otlpdiag

import (
	"context"
	"crypto/rand"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	commonpb "go.opentelemetry.io/proto/otlp/common/v1"
	resourcepb "go.opentelemetry.io/proto/otlp/resource/v1"
	tracepb "go.opentelemetry.io/proto/otlp/trace/v1"
	"google.golang.org/grpc/credentials"

	"github.com/seanchatmangpt/cleanroom/internal/clnrmerr"
	"github.com/seanchatmangpt/cleanroom/internal/config"
)

// Result reports the outcome of a self-test span emission.
type Result struct {
	Endpoint string
	Protocol string
	TraceID  string
	SpanID   string
	Err      error
}

// Run connects to cfg's OTLP endpoint, sends one span named
// "clnrm.self_test", and disconnects. It never consults or mutates any
// cleanroom cache or report state.
func Run(ctx context.Context, cfg config.OtelConfig, serviceName string) Result {
	endpointURL, err := parseEndpoint(cfg)
	if err != nil {
		return Result{Err: err}
	}

	traceID := randomID(16)
	spanID := randomID(8)
	now := time.Now()

	span := &tracepb.Span{
		TraceId:           traceID,
		SpanId:            spanID,
		Name:              "clnrm.self_test",
		Kind:              tracepb.Span_SPAN_KIND_INTERNAL,
		StartTimeUnixNano: uint64(now.UnixNano()),
		EndTimeUnixNano:   uint64(now.Add(time.Millisecond).UnixNano()),
		Status:            &tracepb.Status{Code: tracepb.Status_STATUS_CODE_OK},
	}

	rsps := []*tracepb.ResourceSpans{
		{
			Resource: &resourcepb.Resource{Attributes: resourceAttributes(ctx, serviceName)},
			ScopeSpans: []*tracepb.ScopeSpans{{
				Scope: &commonpb.InstrumentationScope{Name: "clnrm"},
				Spans: []*tracepb.Span{span},
			}},
		},
	}

	client := newClient(endpointURL, cfg)

	if err := client.Start(ctx); err != nil {
		return Result{Endpoint: endpointURL.String(), Err: err}
	}
	defer client.Stop(ctx)

	if err := client.UploadTraces(ctx, rsps); err != nil {
		return Result{Endpoint: endpointURL.String(), Err: err}
	}

	return Result{
		Endpoint: endpointURL.String(),
		Protocol: cfg.Protocol,
		TraceID:  fmt.Sprintf("%x", traceID),
		SpanID:   fmt.Sprintf("%x", spanID),
	}
}

func randomID(n int) []byte {
	b := make([]byte, n)
	_, _ = rand.Read(b)
	return b
}

// newClient picks the gRPC or HTTP/protobuf OTLP exporter client per
// cfg.Protocol/the endpoint scheme, mirroring otelcli.SendSpan's own
// branch (protocol wins, endpoint scheme breaks ties).
func newClient(endpointURL *url.URL, cfg config.OtelConfig) otlptrace.Client {
	switch cfg.Protocol {
	case "grpc":
		return otlptracegrpc.NewClient(grpcOptions(endpointURL, cfg)...)
	case "http", "http/protobuf":
		return otlptracehttp.NewClient(httpOptions(endpointURL, cfg)...)
	}
	if endpointURL.Scheme == "http" || endpointURL.Scheme == "https" {
		return otlptracehttp.NewClient(httpOptions(endpointURL, cfg)...)
	}
	return otlptracegrpc.NewClient(grpcOptions(endpointURL, cfg)...)
}

// grpcOptions mirrors otelcli.grpcOptions, trimmed of TLS-material-file
// loading (self-test has no --tls-* flags of its own).
func grpcOptions(endpointURL *url.URL, cfg config.OtelConfig) []otlptracegrpc.Option {
	host := endpointURL.Hostname()
	if endpointURL.Port() != "" {
		host += ":" + endpointURL.Port()
	}
	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(host)}

	if isLoopback(endpointURL) && endpointURL.Scheme != "https" {
		opts = append(opts, otlptracegrpc.WithInsecure())
	} else {
		opts = append(opts, otlptracegrpc.WithTLSCredentials(credentials.NewTLS(nil)))
	}
	if len(cfg.Headers) > 0 {
		opts = append(opts, otlptracegrpc.WithHeaders(cfg.Headers))
	}
	return opts
}

func httpOptions(endpointURL *url.URL, cfg config.OtelConfig) []otlptracehttp.Option {
	hostPort := endpointURL.Host
	if endpointURL.Port() == "" {
		if endpointURL.Scheme == "https" {
			hostPort += ":443"
		} else {
			hostPort += ":80"
		}
	}

	opts := []otlptracehttp.Option{
		otlptracehttp.WithEndpoint(hostPort),
		otlptracehttp.WithURLPath(endpointURL.Path),
	}
	if isLoopback(endpointURL) && endpointURL.Scheme != "https" {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	if len(cfg.Headers) > 0 {
		opts = append(opts, otlptracehttp.WithHeaders(cfg.Headers))
	}
	return opts
}

// parseEndpoint mirrors otelcli.parseEndpoint's bare-host-vs-URI handling.
func parseEndpoint(cfg config.OtelConfig) (*url.URL, error) {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		return nil, clnrmerr.New(clnrmerr.KindConfig, "otel.endpoint is required for self-test")
	}

	parts := strings.SplitN(endpoint, "://", 2)
	if len(parts) == 1 {
		u, err := url.Parse("grpc://" + endpoint)
		if err != nil {
			return nil, clnrmerr.Wrap(clnrmerr.KindConfig, err, "parsing bare host:port endpoint")
		}
		return u, nil
	}

	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, clnrmerr.Wrap(clnrmerr.KindConfig, err, "parsing otel.endpoint")
	}
	if strings.HasPrefix(u.Scheme, "http") && !strings.HasSuffix(u.Path, "/v1/traces") {
		u.Path = strings.TrimSuffix(u.Path, "/") + "/v1/traces"
	}
	return u, nil
}

func isLoopback(u *url.URL) bool {
	h := u.Hostname()
	return h == "localhost" || h == "127.0.0.1" || h == "::1"
}

// resourceAttributes mirrors otelcli.resourceAttributes: use the OTel SDK
// resource detector to build the service.name + environment-derived
// resource, converted to OTLP protobuf KeyValues.
func resourceAttributes(ctx context.Context, serviceName string) []*commonpb.KeyValue {
	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String(serviceName)),
		resource.WithFromEnv(),
	)
	if err != nil {
		return []*commonpb.KeyValue{
			{Key: string(semconv.ServiceNameKey), Value: &commonpb.AnyValue{Value: &commonpb.AnyValue_StringValue{StringValue: serviceName}}},
		}
	}

	attrs := make([]*commonpb.KeyValue, 0, res.Len())
	for _, attr := range res.Attributes() {
		av := new(commonpb.AnyValue)
		switch attr.Value.Type() {
		case attribute.BOOL:
			av.Value = &commonpb.AnyValue_BoolValue{BoolValue: attr.Value.AsBool()}
		case attribute.INT64:
			av.Value = &commonpb.AnyValue_IntValue{IntValue: attr.Value.AsInt64()}
		case attribute.FLOAT64:
			av.Value = &commonpb.AnyValue_DoubleValue{DoubleValue: attr.Value.AsFloat64()}
		default:
			av.Value = &commonpb.AnyValue_StringValue{StringValue: attr.Value.AsString()}
		}
		attrs = append(attrs, &commonpb.KeyValue{Key: string(attr.Key), Value: av})
	}
	return attrs
}
