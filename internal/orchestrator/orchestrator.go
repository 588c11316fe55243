// Package orchestrator implements the cleanroom Scenario Orchestrator
// (spec.md section 4.4): it computes per-scenario change-aware hashes,
// partitions remaining scenarios across a worker pool, drives each one
// through a fresh service handle via the backend/plugin registry,
// collects spans tagged by scenario, and, once every scenario is done,
// invokes the Validation Orchestrator separately on each validated
// scenario's own span set; no validation pass runs over the spans of all
// scenarios together.
package orchestrator

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"github.com/sirupsen/logrus"

	"github.com/seanchatmangpt/cleanroom/internal/backend"
	"github.com/seanchatmangpt/cleanroom/internal/cache"
	"github.com/seanchatmangpt/cleanroom/internal/clnrmerr"
	"github.com/seanchatmangpt/cleanroom/internal/config"
	"github.com/seanchatmangpt/cleanroom/internal/diag"
	"github.com/seanchatmangpt/cleanroom/internal/normalize"
	"github.com/seanchatmangpt/cleanroom/internal/plugins"
	"github.com/seanchatmangpt/cleanroom/internal/spans"
	"github.com/seanchatmangpt/cleanroom/internal/traceparent"
	"github.com/seanchatmangpt/cleanroom/internal/validate"
)

// DefaultScenarioTimeout is the per-scenario deadline from spec.md
// section 5 (default 5 minutes, configurable).
const DefaultScenarioTimeout = 5 * time.Minute

// DefaultDrainWindow is the bounded window workers get to wind down after
// a parent cancellation before containers are stopped forcibly.
const DefaultDrainWindow = 10 * time.Second

// ScenarioOutcome is what one scenario produced: either skipped (cache
// hit), timed out, failed to execute, or ran and was validated.
type ScenarioOutcome struct {
	Name        string
	Index       int
	Skipped     bool
	TimedOut    bool
	Err         error
	Report      *validate.Report
	SpanDigest  string
	SpanJSON    []byte
	Duration    time.Duration
}

// RunResult is the Orchestrator's top-level output: every scenario's
// outcome, reassembled in declaration order, plus run-wide diagnostics.
type RunResult struct {
	RunID       string
	Outcomes    []ScenarioOutcome
	Diagnostics diag.Snapshot
}

// Options configures one orchestrator run.
type Options struct {
	Workers         int
	Strict          bool
	ScenarioTimeout time.Duration
	DrainWindow     time.Duration
}

func (o Options) withDefaults() Options {
	if o.Workers <= 0 {
		o.Workers = runtime.NumCPU()
	}
	if o.ScenarioTimeout <= 0 {
		o.ScenarioTimeout = DefaultScenarioTimeout
	}
	if o.DrainWindow <= 0 {
		o.DrainWindow = DefaultDrainWindow
	}
	return o
}

// Orchestrator drives a single TestConfig's scenarios to completion.
type Orchestrator struct {
	Cache    *cache.Cache
	Registry *plugins.Registry
	Opts     Options
}

// New builds an Orchestrator.
func New(c *cache.Cache, registry *plugins.Registry, opts Options) *Orchestrator {
	return &Orchestrator{Cache: c, Registry: registry, Opts: opts.withDefaults()}
}

// ScenarioHash computes the section 4.4 scenario_hash: sha256 over the
// compact encoding/json serialization (struct fields in declaration
// order, map keys sorted, no indentation) of the
// scenario, its referenced service, and the otel block — the TOML
// section is re-expressed as JSON here because canonical JSON is what
// internal/normalize already gives cleanroom a deterministic encoder
// for; the hash is over the *logical* section content, not literal TOML
// bytes, so renaming a key's surrounding whitespace never changes it.
func ScenarioHash(cfg *config.TestConfig, scenario config.ScenarioSpec) (string, error) {
	svc, ok := cfg.Services[scenario.ServiceRef]
	if !ok {
		return "", clnrmerr.New(clnrmerr.KindConfig, "scenario references unknown service").WithScenario(scenario.Name)
	}
	payload := struct {
		Scenario config.ScenarioSpec `json:"scenario"`
		Service  config.ServiceSpec  `json:"service"`
		Otel     config.OtelConfig   `json:"otel"`
	}{scenario, svc, cfg.Otel}

	var buf []byte
	enc := json.NewEncoder(sliceWriter{&buf})
	enc.SetEscapeHTML(false)
	if err := enc.Encode(payload); err != nil {
		return "", clnrmerr.Wrap(clnrmerr.KindIO, err, "hashing scenario section").WithScenario(scenario.Name)
	}
	sum := sha256.Sum256(buf)
	return hex.EncodeToString(sum[:]), nil
}

type sliceWriter struct{ buf *[]byte }

func (w sliceWriter) Write(p []byte) (int, error) {
	*w.buf = append(*w.buf, p...)
	return len(p), nil
}

// Run executes every scenario in cfg, honoring the cache, worker pool,
// retry, and cancellation rules of spec.md sections 4.4 and 5.
func (o *Orchestrator) Run(ctx context.Context, cfg *config.TestConfig) (RunResult, error) {
	runID := uuid.New().String()
	diagnostics := &diag.Diagnostics{}
	collector := spans.NewCollector(spans.DefaultBackpressureBytes, diagnostics)

	// OTLP mode routes every service's spans to a single embedded
	// otel_collector instance shared across the whole run (spec.md
	// section 4.6); stdout mode needs no such sidecar, since each
	// service emits its spans on its own stdout instead.
	var otel otelSink
	if cfg.Otel.Exporter != "stdout" {
		sink, err := startOTelSink(ctx, o.Registry)
		if err != nil {
			return RunResult{RunID: runID, Diagnostics: diagnostics.Snapshot()}, err
		}
		otel = sink
		defer otel.stop(context.Background())
	}

	type job struct {
		index    int
		scenario config.ScenarioSpec
		hash     string
	}

	jobs := make([]job, 0, len(cfg.Scenarios))
	outcomes := make([]ScenarioOutcome, len(cfg.Scenarios))

	for i, sc := range cfg.Scenarios {
		hash, err := ScenarioHash(cfg, sc)
		if err != nil {
			outcomes[i] = ScenarioOutcome{Name: sc.Name, Index: i, Err: err}
			diagnostics.IncErrored()
			continue
		}
		if o.Cache != nil && !o.Cache.HasChanged(sc.Name, hash) {
			outcomes[i] = ScenarioOutcome{Name: sc.Name, Index: i, Skipped: true}
			diagnostics.IncCacheHit()
			diagnostics.IncSkipped()
			continue
		}
		if o.Cache != nil {
			diagnostics.IncCacheMiss()
		}
		jobs = append(jobs, job{index: i, scenario: sc, hash: hash})
	}

	jobCh := make(chan job)
	var wg sync.WaitGroup

	runJob := func(j job) {
		scenarioCtx, cancel := context.WithTimeout(ctx, o.Opts.ScenarioTimeout)
		defer cancel()

		tp := traceparent.New()
		collector.RegisterScenarioRoot(j.scenario.Name, tp)

		spanSet, cmdDuration, err := o.runOneScenario(scenarioCtx, cfg, j.scenario, tp, collector, otel, diagnostics)

		outcome := ScenarioOutcome{Name: j.scenario.Name, Index: j.index, Duration: cmdDuration}
		switch {
		case scenarioCtx.Err() == context.DeadlineExceeded:
			// Timed-out scenarios' partial spans are excluded from
			// validation entirely (resolved Open Question, spec.md
			// section 9): they can never produce a false pass.
			outcome.TimedOut = true
			outcome.Err = clnrmerr.New(clnrmerr.KindTimeout, "scenario deadline exceeded").WithScenario(j.scenario.Name)
			diagnostics.IncTimedOut()
		case err != nil:
			outcome.Err = err
			diagnostics.IncErrored()
		default:
			if o.Cache != nil {
				o.Cache.Update(j.scenario.Name, j.hash)
			}
			_ = spanSet
		}
		outcomes[j.index] = outcome
	}

	for w := 0; w < o.Opts.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobCh {
				runJob(j)
			}
		}()
	}

	// Workers consume scenarios in declaration order (spec.md section
	// 4.4); the channel preserves submission order, and the wait group
	// below bounds the drain window on cancellation.
	go func() {
		defer close(jobCh)
		for _, j := range jobs {
			select {
			case jobCh <- j:
			case <-ctx.Done():
				return
			}
		}
	}()

	drainDone := make(chan struct{})
	go func() {
		wg.Wait()
		close(drainDone)
	}()

	select {
	case <-drainDone:
	case <-ctx.Done():
		select {
		case <-drainDone:
		case <-time.After(o.Opts.DrainWindow):
			logrus.Warn("orchestrator: drain window exceeded after cancellation, proceeding with partial results")
		}
	}

	validator := validate.Orchestrator{Strict: o.Opts.Strict}
	freeze := cfg.Determinism.FreezeClock != ""
	for i, sc := range cfg.Scenarios {
		if outcomes[i].Skipped || outcomes[i].TimedOut || outcomes[i].Err != nil {
			continue
		}
		scenarioSpans := collector.ForScenario(sc.Name)
		n := normalize.Normalize(scenarioSpans, freeze)
		report := validator.Run(sc.Name, n.Spans, cfg.Expectations)
		outcomes[i].Report = &report
		outcomes[i].SpanDigest = n.Digest
		outcomes[i].SpanJSON = n.CanonicalJSON
	}

	sort.Slice(outcomes, func(i, j int) bool { return outcomes[i].Index < outcomes[j].Index })

	if o.Cache != nil {
		if err := o.Cache.Save(); err != nil {
			return RunResult{RunID: runID, Outcomes: outcomes, Diagnostics: diagnostics.Snapshot()}, err
		}
	}

	return RunResult{RunID: runID, Outcomes: outcomes, Diagnostics: diagnostics.Snapshot()}, nil
}

// runOneScenario obtains a fresh service handle, runs the scenario
// command, tears the handle down unconditionally, and retries
// infrastructure failures (not validation failures) with the documented
// 100/400/1600ms exponential backoff.
func (o *Orchestrator) runOneScenario(ctx context.Context, cfg *config.TestConfig, sc config.ScenarioSpec, tp traceparent.Traceparent, collector *spans.Collector, otel otelSink, diagnostics *diag.Diagnostics) ([]spans.SpanData, time.Duration, error) {
	svc := cfg.Services[sc.ServiceRef]
	kind := svc.Kind
	if kind == "" {
		kind = "generic_container"
	}
	plugin, err := o.Registry.Get(kind)
	if err != nil {
		return nil, 0, clnrmerr.Wrap(clnrmerr.KindConfig, err, "resolving service plugin").WithScenario(sc.Name)
	}
	be := plugin.Backend()

	env := map[string]string{traceparent.EnvKey: tp.Encode()}
	for k, v := range svc.Env {
		env[k] = v
	}
	if cfg.Determinism.Seed != 0 {
		env["CLNRM_SEED"] = itoa(cfg.Determinism.Seed)
	}
	if cfg.Determinism.FreezeClock != "" {
		env["FREEZE_CLOCK"] = cfg.Determinism.FreezeClock
	}
	if otel.endpoint != "" {
		env["OTEL_EXPORTER_OTLP_ENDPOINT"] = otel.endpoint
	}

	var handle backend.ServiceHandle
	// 100ms, 400ms, 1600ms: the delay quadruples after each failed start.
	delay := 100 * time.Millisecond
	backoff := retry.WithMaxRetries(3, retry.BackoffFunc(func() (time.Duration, bool) {
		d := delay
		delay *= 4
		return d, false
	}))
	attempt := 0
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		if attempt > 0 {
			diagnostics.IncRetry()
		}
		attempt++
		h, startErr := be.StartService(ctx, svc, env)
		if startErr != nil {
			return retry.RetryableError(clnrmerr.Wrap(clnrmerr.KindContainer, startErr, "starting service").WithScenario(sc.Name))
		}
		handle = h
		return nil
	})
	if err != nil {
		return nil, 0, clnrmerr.Wrap(clnrmerr.KindExecution, err, "service failed to start after retries").WithScenario(sc.Name)
	}

	// RAII guarantee (spec.md section 3): the handle is torn down on
	// every exit path, including a panic unwinding through this call.
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), o.Opts.DrainWindow)
		defer cancel()
		if stopErr := be.StopService(stopCtx, handle); stopErr != nil {
			logrus.WithError(stopErr).WithField("scenario", sc.Name).Warn("orchestrator: error stopping service")
		}
	}()

	res, err := be.RunCmd(ctx, handle, sc.Command)
	if err != nil {
		return nil, 0, clnrmerr.Wrap(clnrmerr.KindExecution, err, "running scenario command").WithScenario(sc.Name)
	}

	// Feed whatever spans this run produced into the collector before
	// checking exit code or wait_for_span. A non-zero exit still goes on to
	// validation when expect_success is false; when it is true, the
	// scenario ends below as an execution error and its spans are not
	// validated.
	if otel.drainer != nil {
		if drained, drainErr := otel.drainer.Drain(otel.handle); drainErr != nil {
			logrus.WithError(drainErr).WithField("scenario", sc.Name).Warn("orchestrator: error draining otel_collector")
		} else if len(drained) > 0 {
			if ingestErr := collector.IngestStdoutJSON(bytes.NewReader(drained)); ingestErr != nil {
				logrus.WithError(ingestErr).WithField("scenario", sc.Name).Warn("orchestrator: error ingesting drained spans")
			}
		}
	} else if res.Stdout != "" {
		if ingestErr := collector.IngestStdoutJSON(strings.NewReader(res.Stdout)); ingestErr != nil {
			logrus.WithError(ingestErr).WithField("scenario", sc.Name).Warn("orchestrator: error ingesting stdout spans")
		}
	}

	if sc.ExpectSuccess && res.ExitCode != 0 {
		return nil, res.Duration, clnrmerr.New(clnrmerr.KindExecution, "scenario command exited non-zero").WithScenario(sc.Name)
	}

	if svc.WaitForSpan != "" {
		if err := waitForSpan(ctx, collector, sc.Name, svc.WaitForSpan); err != nil {
			return nil, res.Duration, err
		}
	}

	return collector.ForScenario(sc.Name), res.Duration, nil
}

// otelSink is the shared embedded OTLP/gRPC receiver every service in an
// otlp_grpc/otlp_http run exports to (spec.md section 4.6). The zero value
// means stdout-JSON mode: nothing to drain, nothing to inject.
type otelSink struct {
	endpoint string
	handle   backend.ServiceHandle
	drainer  plugins.Drainer
}

func (s otelSink) stop(ctx context.Context) {
	if s.drainer == nil {
		return
	}
	if p, ok := s.drainer.(interface {
		StopService(context.Context, backend.ServiceHandle) error
	}); ok {
		_ = p.StopService(ctx, s.handle)
	}
}

// startOTelSink starts the registry's otel_collector plugin once for the
// whole run, so every scenario's service can be pointed at the same
// OTEL_EXPORTER_OTLP_ENDPOINT.
func startOTelSink(ctx context.Context, registry *plugins.Registry) (otelSink, error) {
	p, err := registry.Get("otel_collector")
	if err != nil {
		return otelSink{}, clnrmerr.Wrap(clnrmerr.KindConfig, err, "resolving otel_collector plugin for non-stdout exporter")
	}
	drainer, ok := p.(plugins.Drainer)
	if !ok {
		return otelSink{}, clnrmerr.New(clnrmerr.KindConfig, "otel_collector plugin does not support draining")
	}
	handle, err := p.Backend().StartService(ctx, config.ServiceSpec{ID: "clnrm-collector"}, nil)
	if err != nil {
		return otelSink{}, clnrmerr.Wrap(clnrmerr.KindContainer, err, "starting shared otel_collector sink")
	}
	return otelSink{endpoint: handle.Address, handle: handle, drainer: drainer}, nil
}

// waitForSpan polls the collector, scoped per-service (resolved Open
// Question choice (b), spec.md section 4.9), until a span with the
// expected name is attributed to this scenario or ctx is done.
func waitForSpan(ctx context.Context, collector *spans.Collector, scenario, spanName string) error {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		for _, s := range collector.ForScenario(scenario) {
			if s.Name == spanName {
				return nil
			}
		}
		select {
		case <-ctx.Done():
			return clnrmerr.New(clnrmerr.KindTimeout, "timed out waiting for span "+spanName).WithScenario(scenario)
		case <-ticker.C:
		}
	}
}

func itoa(u uint64) string {
	if u == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for u > 0 {
		i--
		buf[i] = byte('0' + u%10)
		u /= 10
	}
	return string(buf[i:])
}
