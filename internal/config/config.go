// Package config implements the cleanroom Config Parser: it decodes
// rendered flat TOML into a typed TestConfig, enforcing the flat-schema
// grammar (unknown top-level tables are silently dropped for forward
// compatibility; unknown keys inside a known table are schema errors) and
// running the structural validations named in spec.md section 4.3.
//
// The two-pass decode (loose top-level walk, then strict per-table decode)
// is the idiomatic way to express "flat-with-forward-compat" shape rules
// against go-toml/v2, which otherwise only offers an all-or-nothing
// DisallowUnknownFields.
package config

import (
	"bytes"
	"fmt"
	"time"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/seanchatmangpt/cleanroom/internal/clnrmerr"
)

func bytesReader(b []byte) *bytes.Reader { return bytes.NewReader(b) }

// Meta is the required [meta] table.
type Meta struct {
	Name        string `toml:"name"`
	Version     string `toml:"version"`
	Description string `toml:"description"`
}

// OtelConfig is the required [otel] table.
type OtelConfig struct {
	Exporter     string            `toml:"exporter"`
	Endpoint     string            `toml:"endpoint"`
	Protocol     string            `toml:"protocol"`
	SampleRatio  float64           `toml:"sample_ratio"`
	Resources    map[string]string `toml:"resources"`
	Headers      map[string]string `toml:"headers"`
	Propagators  []string          `toml:"propagators"`
}

// Volume is a single mount entry on a ServiceSpec.
type Volume struct {
	Host      string `toml:"host"`
	Container string `toml:"container"`
	ReadOnly  bool   `toml:"read_only"`
}

// Limits caps a service's container resources.
type Limits struct {
	CPUMillicores int `toml:"cpu_millicores"`
	MemoryMB      int `toml:"memory_mb"`
}

// ServiceSpec is one [service.<id>] table.
type ServiceSpec struct {
	ID          string            `toml:"-"`
	Kind        string            `toml:"kind"`
	Image       string            `toml:"image"`
	Args        []string          `toml:"args"`
	Env         map[string]string `toml:"env"`
	Volumes     []Volume          `toml:"volumes"`
	WaitForSpan string            `toml:"wait_for_span"`
	Ports       []string          `toml:"ports"`
	Limits      *Limits           `toml:"limits"`
}

// ScenarioSpec is one [[scenario]] entry.
type ScenarioSpec struct {
	Name          string   `toml:"name"`
	ServiceRef    string   `toml:"service_ref"`
	Command       string   `toml:"command"`
	Artifacts     []string `toml:"artifacts"`
	ExpectSuccess bool     `toml:"expect_success"`
}

// SpanAttrs is the nested [expect.span.attrs] table.
type SpanAttrs struct {
	All map[string]string `toml:"all"`
	Any map[string]string `toml:"any"`
}

// SpanEvents is the nested [expect.span.events] table.
type SpanEvents struct {
	Any []string `toml:"any"`
}

// DurationRange is the nested [expect.span.duration_ms] table.
type DurationRange struct {
	Min *float64 `toml:"min"`
	Max *float64 `toml:"max"`
}

// SpanExpect is one [[expect.span]] entry.
type SpanExpect struct {
	Name       string        `toml:"name"`
	Parent     string        `toml:"parent"`
	Kind       string        `toml:"kind"`
	Attrs      SpanAttrs     `toml:"attrs"`
	Events     SpanEvents    `toml:"events"`
	DurationMs DurationRange `toml:"duration_ms"`
	FirstMatch bool          `toml:"first_match"`
}

// GraphExpect is the [expect.graph] table.
type GraphExpect struct {
	MustInclude  [][2]string `toml:"must_include"`
	MustNotCross [][2]string `toml:"must_not_cross"`
	Acyclic      bool        `toml:"acyclic"`
}

// CountBound is a closed-interval bound used by [expect.counts].
type CountBound struct {
	Eq  *int `toml:"eq"`
	Gte *int `toml:"gte"`
	Lte *int `toml:"lte"`
}

// CountsExpect is the [expect.counts] table.
type CountsExpect struct {
	Total   *CountBound           `toml:"total"`
	ByName  map[string]CountBound `toml:"by_name"`
}

// OrderExpect is the [expect.order] table.
type OrderExpect struct {
	MustPrecede [][2]string `toml:"must_precede"`
	MustFollow  [][2]string `toml:"must_follow"`
	Strict      *bool       `toml:"strict"`
}

// StatusExpect is the [expect.status] table.
type StatusExpect struct {
	All    string            `toml:"all"`
	ByName map[string]string `toml:"by_name"`
}

// ResourceAttrsExpect is the nested [expect.hermeticity.resource_attrs] table.
type ResourceAttrsExpect struct {
	MustMatch map[string]string `toml:"must_match"`
}

// SpanAttrsForbidExpect is the nested [expect.hermeticity.span_attrs] table.
type SpanAttrsForbidExpect struct {
	ForbidKeys []string `toml:"forbid_keys"`
}

// HermeticityExpect is the [expect.hermeticity] table.
type HermeticityExpect struct {
	NoExternalServices bool                  `toml:"no_external_services"`
	AllowedAddresses   []string              `toml:"allowed_addresses"`
	ResourceAttrs      ResourceAttrsExpect   `toml:"resource_attrs"`
	SpanAttrs          SpanAttrsForbidExpect `toml:"span_attrs"`
}

// WindowExpect is one [[expect.window]] entry.
type WindowExpect struct {
	Outer    string   `toml:"outer"`
	Contains []string `toml:"contains"`
}

// Expectations bundles all eight optional expectation dimensions.
type Expectations struct {
	Span        []SpanExpect       `toml:"span"`
	Graph       *GraphExpect       `toml:"graph"`
	Counts      *CountsExpect      `toml:"counts"`
	Order       *OrderExpect       `toml:"order"`
	Status      *StatusExpect      `toml:"status"`
	Hermeticity *HermeticityExpect `toml:"hermeticity"`
	Window      []WindowExpect     `toml:"window"`
}

// Determinism is the [determinism] table.
type Determinism struct {
	Seed        uint64 `toml:"seed"`
	FreezeClock string `toml:"freeze_clock"`
}

// ReportConfig is the [report] table.
type ReportConfig struct {
	JSON   string `toml:"json"`
	JUnit  string `toml:"junit"`
	Digest string `toml:"digest"`
}

// TestConfig is the fully parsed representation of one template, per
// spec.md section 3.
type TestConfig struct {
	Meta         Meta
	Otel         OtelConfig
	Services     map[string]ServiceSpec
	Scenarios    []ScenarioSpec
	Expectations Expectations
	Determinism  Determinism
	Report       ReportConfig
}

// knownTopLevelKeys is the set of tables the flat grammar recognizes.
// Anything else at the top level is silently dropped (forward compat).
var knownTopLevelKeys = map[string]bool{
	"meta": true, "otel": true, "service": true, "scenario": true,
	"expect": true, "determinism": true, "report": true, "vars": true,
}

// Parse decodes rendered flat TOML into a TestConfig, enforcing the
// flatness rule and the structural validations from spec.md section 4.3.
func Parse(renderedTOML string) (*TestConfig, error) {
	var loose map[string]any
	if err := toml.Unmarshal([]byte(renderedTOML), &loose); err != nil {
		return nil, clnrmerr.Wrap(clnrmerr.KindParse, err, "malformed TOML")
	}

	cfg := &TestConfig{
		Services: map[string]ServiceSpec{},
	}

	if raw, ok := loose["meta"]; ok {
		if err := decodeStrict(raw, &cfg.Meta, "meta"); err != nil {
			return nil, err
		}
	}
	if cfg.Meta.Name == "" {
		return nil, clnrmerr.New(clnrmerr.KindConfig, "meta.name is required")
	}

	if raw, ok := loose["otel"]; ok {
		if err := decodeStrict(raw, &cfg.Otel, "otel"); err != nil {
			return nil, err
		}
	}
	if cfg.Otel.Exporter == "" {
		return nil, clnrmerr.New(clnrmerr.KindConfig, "otel.exporter is required")
	}
	switch cfg.Otel.Exporter {
	case "stdout", "otlp_http", "otlp_grpc":
	default:
		return nil, clnrmerr.New(clnrmerr.KindConfig, fmt.Sprintf("otel.exporter %q is not one of stdout, otlp_http, otlp_grpc", cfg.Otel.Exporter))
	}
	if cfg.Otel.SampleRatio < 0 || cfg.Otel.SampleRatio > 1 {
		return nil, clnrmerr.New(clnrmerr.KindConfig, fmt.Sprintf("otel.sample_ratio %v is out of [0,1]", cfg.Otel.SampleRatio))
	}

	if raw, ok := loose["service"]; ok {
		services, err := decodeServices(raw)
		if err != nil {
			return nil, err
		}
		cfg.Services = services
	}
	if len(cfg.Services) == 0 {
		return nil, clnrmerr.New(clnrmerr.KindConfig, "at least one [service.<id>] table is required")
	}

	if raw, ok := loose["scenario"]; ok {
		scenarios, err := decodeScenarios(raw)
		if err != nil {
			return nil, err
		}
		cfg.Scenarios = scenarios
	}
	if len(cfg.Scenarios) == 0 {
		return nil, clnrmerr.New(clnrmerr.KindConfig, "at least one [[scenario]] is required")
	}

	seenNames := map[string]bool{}
	for _, s := range cfg.Scenarios {
		if seenNames[s.Name] {
			return nil, clnrmerr.New(clnrmerr.KindConfig, fmt.Sprintf("duplicate scenario name %q", s.Name))
		}
		seenNames[s.Name] = true
		if _, ok := cfg.Services[s.ServiceRef]; !ok {
			return nil, clnrmerr.New(clnrmerr.KindConfig, fmt.Sprintf("scenario %q references undefined service %q", s.Name, s.ServiceRef))
		}
	}

	if raw, ok := loose["expect"]; ok {
		if err := decodeExpectations(raw, &cfg.Expectations); err != nil {
			return nil, err
		}
	}
	if err := validateCounts(cfg.Expectations.Counts); err != nil {
		return nil, err
	}

	if raw, ok := loose["determinism"]; ok {
		if err := decodeStrict(raw, &cfg.Determinism, "determinism"); err != nil {
			return nil, err
		}
	}
	if cfg.Determinism.FreezeClock != "" {
		if _, err := time.Parse(time.RFC3339, cfg.Determinism.FreezeClock); err != nil {
			return nil, clnrmerr.Wrap(clnrmerr.KindConfig, err, "determinism.freeze_clock is not valid RFC3339")
		}
	}

	if raw, ok := loose["report"]; ok {
		if err := decodeStrict(raw, &cfg.Report, "report"); err != nil {
			return nil, err
		}
	}

	// [vars] is authoring-only: validated to parse, but its content must
	// never reach TestConfig. It is intentionally not assigned anywhere.
	if raw, ok := loose["vars"]; ok {
		var discard map[string]any
		if err := decodeStrict(raw, &discard, "vars"); err != nil {
			return nil, err
		}
	}

	// Any key in loose not in knownTopLevelKeys is a forward-compat table
	// and is silently ignored by construction: nothing above reads it.

	return cfg, nil
}

// decodeStrict re-marshals a decoded-as-any value back to TOML and decodes
// it strictly into dst, rejecting keys dst's struct does not declare. This
// is how the parser enforces "nested unknown keys are errors" without
// requiring go-toml/v2's DisallowUnknownFields to apply to the whole
// document (which would also reject top-level forward-compat tables).
func decodeStrict(raw any, dst any, tableName string) error {
	b, err := toml.Marshal(raw)
	if err != nil {
		return clnrmerr.Wrap(clnrmerr.KindParse, err, fmt.Sprintf("re-encoding [%s]", tableName))
	}
	dec := toml.NewDecoder(bytesReader(b))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return clnrmerr.Wrap(clnrmerr.KindConfig, err, fmt.Sprintf("unexpected key in [%s]", tableName))
	}
	return nil
}

func decodeServices(raw any) (map[string]ServiceSpec, error) {
	m, ok := raw.(map[string]any)
	if !ok {
		return nil, clnrmerr.New(clnrmerr.KindConfig, "[service] must be a table of service ids")
	}
	out := make(map[string]ServiceSpec, len(m))
	for id, v := range m {
		var spec ServiceSpec
		if err := decodeStrict(v, &spec, fmt.Sprintf("service.%s", id)); err != nil {
			return nil, err
		}
		spec.ID = id
		out[id] = spec
	}
	return out, nil
}

func decodeScenarios(raw any) ([]ScenarioSpec, error) {
	arr, ok := raw.([]any)
	if !ok {
		return nil, clnrmerr.New(clnrmerr.KindConfig, "[[scenario]] must be an array of tables")
	}
	out := make([]ScenarioSpec, 0, len(arr))
	for i, v := range arr {
		var s ScenarioSpec
		if err := decodeStrict(v, &s, fmt.Sprintf("scenario[%d]", i)); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func decodeExpectations(raw any, dst *Expectations) error {
	m, ok := raw.(map[string]any)
	if !ok {
		return clnrmerr.New(clnrmerr.KindConfig, "[expect] must be a table")
	}
	if v, ok := m["span"]; ok {
		arr, ok := v.([]any)
		if !ok {
			return clnrmerr.New(clnrmerr.KindConfig, "expect.span must be an array of tables")
		}
		for i, item := range arr {
			var se SpanExpect
			if err := decodeStrict(item, &se, fmt.Sprintf("expect.span[%d]", i)); err != nil {
				return err
			}
			dst.Span = append(dst.Span, se)
		}
	}
	if v, ok := m["graph"]; ok {
		var g GraphExpect
		if err := decodeStrict(v, &g, "expect.graph"); err != nil {
			return err
		}
		dst.Graph = &g
	}
	if v, ok := m["counts"]; ok {
		var c CountsExpect
		if err := decodeStrict(v, &c, "expect.counts"); err != nil {
			return err
		}
		dst.Counts = &c
	}
	if v, ok := m["order"]; ok {
		var o OrderExpect
		if err := decodeStrict(v, &o, "expect.order"); err != nil {
			return err
		}
		dst.Order = &o
	}
	if v, ok := m["status"]; ok {
		var s StatusExpect
		if err := decodeStrict(v, &s, "expect.status"); err != nil {
			return err
		}
		dst.Status = &s
	}
	if v, ok := m["hermeticity"]; ok {
		var h HermeticityExpect
		if err := decodeStrict(v, &h, "expect.hermeticity"); err != nil {
			return err
		}
		dst.Hermeticity = &h
	}
	if v, ok := m["window"]; ok {
		arr, ok := v.([]any)
		if !ok {
			return clnrmerr.New(clnrmerr.KindConfig, "expect.window must be an array of tables")
		}
		for i, item := range arr {
			var we WindowExpect
			if err := decodeStrict(item, &we, fmt.Sprintf("expect.window[%d]", i)); err != nil {
				return err
			}
			dst.Window = append(dst.Window, we)
		}
	}
	return nil
}

// validateCounts rejects contradictory count bounds at parse time, per
// spec.md section 4.8's Count validator contract ("contradictory bounds
// are schema_error").
func validateCounts(c *CountsExpect) error {
	if c == nil {
		return nil
	}
	check := func(b CountBound, where string) error {
		if b.Eq != nil && (b.Gte != nil || b.Lte != nil) {
			return clnrmerr.New(clnrmerr.KindConfig, fmt.Sprintf("%s: eq cannot be combined with gte/lte", where))
		}
		if b.Gte != nil && b.Lte != nil && *b.Gte > *b.Lte {
			return clnrmerr.New(clnrmerr.KindConfig, fmt.Sprintf("%s: gte=%d > lte=%d", where, *b.Gte, *b.Lte))
		}
		return nil
	}
	if c.Total != nil {
		if err := check(*c.Total, "expect.counts.total"); err != nil {
			return err
		}
	}
	for name, b := range c.ByName {
		if err := check(b, fmt.Sprintf("expect.counts.by_name[%s]", name)); err != nil {
			return err
		}
	}
	return nil
}
