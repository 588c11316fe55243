package orchestrator

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/seanchatmangpt/cleanroom/internal/backend"
	"github.com/seanchatmangpt/cleanroom/internal/cache"
	"github.com/seanchatmangpt/cleanroom/internal/config"
	"github.com/seanchatmangpt/cleanroom/internal/plugins"
)

// newTestRegistry avoids importing an unexported field setter by building
// the registry through the exported constructor directly.
func newTestRegistry(mock backend.Backend) (*plugins.Registry, error) {
	return plugins.NewRegistry(testGenericContainerPlugin{mock}, plugins.NewOTelCollectorPlugin())
}

type testGenericContainerPlugin struct{ b backend.Backend }

func (testGenericContainerPlugin) Kind() string                 { return "generic_container" }
func (p testGenericContainerPlugin) Backend() backend.Backend   { return p.b }

func TestOrchestrator_RunScenarioAEndToEndWithMockBackend(t *testing.T) {
	reg, _ := newTestRegistry(backend.NewMockBackend(nil))

	cfg := &config.TestConfig{
		Meta: config.Meta{Name: "scenario-a-suite"},
		Otel: config.OtelConfig{Exporter: "stdout"},
		Services: map[string]config.ServiceSpec{
			"svc": {ID: "svc", Kind: "generic_container", Image: "alpine"},
		},
		Scenarios: []config.ScenarioSpec{
			{Name: "scenario-a", ServiceRef: "svc", Command: "true", ExpectSuccess: true},
		},
	}

	c := cache.Load(filepath.Join(t.TempDir(), "cache.json"))
	o := New(c, reg, Options{Workers: 2})

	result, err := o.Run(context.Background(), cfg)
	require.NoError(t, err)
	require.Len(t, result.Outcomes, 1)
	require.Equal(t, "scenario-a", result.Outcomes[0].Name)
	require.False(t, result.Outcomes[0].Skipped)
	require.Nil(t, result.Outcomes[0].Err)
	require.NotNil(t, result.Outcomes[0].Report)
	require.True(t, result.Outcomes[0].Report.Pass)
}

func TestOrchestrator_SkipsUnchangedScenarioOnSecondRun(t *testing.T) {
	reg, _ := newTestRegistry(backend.NewMockBackend(nil))
	cfg := &config.TestConfig{
		Meta: config.Meta{Name: "suite"},
		Otel: config.OtelConfig{Exporter: "stdout"},
		Services: map[string]config.ServiceSpec{
			"svc": {ID: "svc", Kind: "generic_container", Image: "alpine"},
		},
		Scenarios: []config.ScenarioSpec{
			{Name: "scenario-a", ServiceRef: "svc", Command: "true"},
		},
	}

	path := filepath.Join(t.TempDir(), "cache.json")
	c := cache.Load(path)
	o := New(c, reg, Options{Workers: 1})

	_, err := o.Run(context.Background(), cfg)
	require.NoError(t, err)
	require.NoError(t, c.Save())

	reloaded := cache.Load(path)
	o2 := New(reloaded, reg, Options{Workers: 1})
	result, err := o2.Run(context.Background(), cfg)
	require.NoError(t, err)
	require.True(t, result.Outcomes[0].Skipped)
}

func TestOrchestrator_OTLPExporterStartsAndDrainsSharedCollector(t *testing.T) {
	reg, _ := newTestRegistry(backend.NewMockBackend(nil))

	cfg := &config.TestConfig{
		Meta: config.Meta{Name: "otlp-suite"},
		Otel: config.OtelConfig{Exporter: "otlp_grpc"},
		Services: map[string]config.ServiceSpec{
			"svc": {ID: "svc", Kind: "generic_container", Image: "alpine"},
		},
		Scenarios: []config.ScenarioSpec{
			{Name: "scenario-a", ServiceRef: "svc", Command: "true", ExpectSuccess: true},
		},
	}

	c := cache.Load(filepath.Join(t.TempDir(), "cache.json"))
	o := New(c, reg, Options{Workers: 1})

	result, err := o.Run(context.Background(), cfg)
	require.NoError(t, err)
	require.Len(t, result.Outcomes, 1)
	require.NoError(t, result.Outcomes[0].Err)
	require.NotNil(t, result.Outcomes[0].Report)
}

func TestOrchestrator_ExecutionFailureDoesNotBlockOtherScenarios(t *testing.T) {
	reg, _ := newTestRegistry(backend.NewMockBackend(func(handle backend.ServiceHandle, command string) (backend.ExecResult, error) {
		if handle.ID == "svc-bad" {
			return backend.ExecResult{ExitCode: 1}, nil
		}
		return backend.ExecResult{ExitCode: 0}, nil
	}))

	cfg := &config.TestConfig{
		Meta: config.Meta{Name: "suite"},
		Otel: config.OtelConfig{Exporter: "stdout"},
		Services: map[string]config.ServiceSpec{
			"svc-good": {ID: "svc-good", Kind: "generic_container", Image: "alpine"},
			"svc-bad":  {ID: "svc-bad", Kind: "generic_container", Image: "alpine"},
		},
		Scenarios: []config.ScenarioSpec{
			{Name: "scenario-bad", ServiceRef: "svc-bad", Command: "false", ExpectSuccess: true},
			{Name: "scenario-good", ServiceRef: "svc-good", Command: "true", ExpectSuccess: true},
		},
	}

	c := cache.Load(filepath.Join(t.TempDir(), "cache.json"))
	o := New(c, reg, Options{Workers: 2})

	result, err := o.Run(context.Background(), cfg)
	require.NoError(t, err)
	require.Len(t, result.Outcomes, 2)
	require.Error(t, result.Outcomes[0].Err)
	require.NoError(t, result.Outcomes[1].Err)
}
