package spans

import (
	"bufio"
	"encoding/hex"
	"encoding/json"
	"io"
	"strings"
	"sync"

	"github.com/seanchatmangpt/cleanroom/internal/diag"
	"github.com/seanchatmangpt/cleanroom/internal/traceparent"
)

// DefaultBackpressureBytes is the default bound from spec.md section 5:
// once the buffered, not-yet-consumed span set exceeds this many bytes
// (approximated here as a count proportional to average span size), the
// Collector drops the oldest non-completed spans.
const DefaultBackpressureBytes = 100 * 1024 * 1024

// approxSpanBytes is a rough per-span accounting unit used to convert the
// byte-oriented backpressure bound into a span count without having to
// re-serialize every buffered span on every insert.
const approxSpanBytes = 512

// envelope is the wire shape accepted in stdout JSON mode: either a single
// span or a batch under "spans".
type envelope struct {
	TraceID            string                 `json:"trace_id"`
	SpanID             string                 `json:"span_id"`
	ParentSpanID       string                 `json:"parent_span_id"`
	Name               string                 `json:"name"`
	Kind               string                 `json:"kind"`
	StartTimeUnixNano  uint64                 `json:"start_time_unix_nano"`
	EndTimeUnixNano    uint64                 `json:"end_time_unix_nano"`
	Status             string                 `json:"status"`
	Attributes         map[string]interface{} `json:"attributes"`
	Events             []envelopeEvent        `json:"events"`
	ResourceAttributes map[string]interface{} `json:"resource_attributes"`
	Spans              []envelope             `json:"spans"`
}

type envelopeEvent struct {
	Name         string                 `json:"name"`
	TimeUnixNano uint64                 `json:"time_unix_nano"`
	Attributes   map[string]interface{} `json:"attributes"`
}

func (e envelope) toSpanData() (SpanData, error) {
	traceID, err := hex.DecodeString(e.TraceID)
	if err != nil {
		return SpanData{}, err
	}
	spanID, err := hex.DecodeString(e.SpanID)
	if err != nil {
		return SpanData{}, err
	}
	var parentID []byte
	if e.ParentSpanID != "" {
		parentID, err = hex.DecodeString(e.ParentSpanID)
		if err != nil {
			return SpanData{}, err
		}
	}
	events := make([]Event, 0, len(e.Events))
	for _, ev := range e.Events {
		events = append(events, Event{Name: ev.Name, TimeUnixNano: ev.TimeUnixNano, Attributes: ev.Attributes})
	}
	return SpanData{
		TraceID:            traceID,
		SpanID:             spanID,
		ParentSpanID:       parentID,
		Name:               e.Name,
		Kind:               KindFromString(e.Kind),
		StartTimeUnixNano:  e.StartTimeUnixNano,
		EndTimeUnixNano:    e.EndTimeUnixNano,
		Status:             StatusFromString(e.Status),
		Attributes:         e.Attributes,
		Events:             events,
		ResourceAttributes: e.ResourceAttributes,
	}, nil
}

// Collector accumulates spans observed during a run, attributing each to
// the scenario whose root traceparent its trace id matches, and enforces
// the backpressure bound from spec.md section 5. Ownership: the Collector
// owns the accumulated SpanData until it is handed to the Normalizer
// (spec.md section 3), at which point Drain transfers that ownership.
type Collector struct {
	mu             sync.Mutex
	spans          []SpanData
	maxBytes       int64
	approxBytes    int64
	scenarioByTrace map[string]string
	diagnostics    *diag.Diagnostics
}

// NewCollector returns a Collector bounded at maxBytes (0 means use
// DefaultBackpressureBytes).
func NewCollector(maxBytes int64, d *diag.Diagnostics) *Collector {
	if maxBytes <= 0 {
		maxBytes = DefaultBackpressureBytes
	}
	return &Collector{
		maxBytes:        maxBytes,
		scenarioByTrace: map[string]string{},
		diagnostics:     d,
	}
}

// RegisterScenarioRoot records that tp is the root traceparent for a given
// scenario, so spans whose trace id matches it are attributed to that
// scenario (spec.md section 4.6).
func (c *Collector) RegisterScenarioRoot(scenario string, tp traceparent.Traceparent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.scenarioByTrace[tp.TraceIDHex()] = scenario
}

// IngestStdoutJSON reads line-oriented JSON span envelopes from r,
// tolerating interleaved non-JSON lines (spec.md section 4.6): each such
// line increments the diagnostics counter instead of failing the
// collection.
func (c *Collector) IngestStdoutJSON(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var env envelope
		if err := json.Unmarshal([]byte(line), &env); err != nil {
			if c.diagnostics != nil {
				c.diagnostics.IncNonJSONLine()
			}
			continue
		}
		if len(env.Spans) > 0 {
			for _, inner := range env.Spans {
				c.ingestEnvelope(inner)
			}
			continue
		}
		c.ingestEnvelope(env)
	}
	return scanner.Err()
}

func (c *Collector) ingestEnvelope(env envelope) {
	sd, err := env.toSpanData()
	if err != nil {
		if c.diagnostics != nil {
			c.diagnostics.IncNonJSONLine()
		}
		return
	}
	c.Add(sd)
}

// Add appends a single already-decoded span, attributing it to a scenario
// by trace id and applying the backpressure policy.
func (c *Collector) Add(sd SpanData) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if scenario, ok := c.scenarioByTrace[sd.TraceIDHex()]; ok {
		sd.Scenario = scenario
	} else {
		sd.Scenario = RunScenarioName
	}

	c.spans = append(c.spans, sd)
	c.approxBytes += approxSpanBytes

	for c.approxBytes > c.maxBytes && len(c.spans) > 0 {
		// drop oldest non-completed span (end == 0 means not yet ended);
		// fall back to the oldest span overall if all are completed.
		idx := 0
		for i, s := range c.spans {
			if s.EndTimeUnixNano == 0 {
				idx = i
				break
			}
		}
		c.spans = append(c.spans[:idx], c.spans[idx+1:]...)
		c.approxBytes -= approxSpanBytes
		if c.diagnostics != nil {
			c.diagnostics.IncDropped()
		}
	}
}

// Drain returns and clears the accumulated spans, transferring ownership
// to the caller (the Normalizer).
func (c *Collector) Drain() []SpanData {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.spans
	c.spans = nil
	c.approxBytes = 0
	return out
}

// ForScenario returns a copy of the spans currently attributed to the
// given scenario name, without draining the collector. Used by
// wait_for_span polling.
func (c *Collector) ForScenario(scenario string) []SpanData {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]SpanData, 0)
	for _, s := range c.spans {
		if s.Scenario == scenario {
			out = append(out, s)
		}
	}
	return out
}
