package plugins

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/seanchatmangpt/cleanroom/internal/backend"
	"github.com/seanchatmangpt/cleanroom/internal/config"
)

func TestRegistry_UnknownKindIsConfigError(t *testing.T) {
	r, err := NewRegistry(GenericContainerPlugin{})
	require.NoError(t, err)

	_, err = r.Get("does_not_exist")
	require.Error(t, err)
}

func TestRegistry_DuplicateKindRejected(t *testing.T) {
	_, err := NewRegistry(GenericContainerPlugin{}, GenericContainerPlugin{})
	require.Error(t, err)
}

func TestRegistry_ResolvesKnownKind(t *testing.T) {
	mock := backend.NewMockBackend(nil)
	r, err := NewRegistry(GenericContainerPlugin{backend: mock}, NewOTelCollectorPlugin())
	require.NoError(t, err)

	p, err := r.Get("generic_container")
	require.NoError(t, err)
	require.Equal(t, "generic_container", p.Kind())

	p, err = r.Get("otel_collector")
	require.NoError(t, err)
	require.Equal(t, "otel_collector", p.Kind())
}

func TestOTelCollectorPlugin_StartStopLifecycle(t *testing.T) {
	p := NewOTelCollectorPlugin()
	ctx := context.Background()

	handle, err := p.StartService(ctx, config.ServiceSpec{ID: "collector-1"}, nil)
	require.NoError(t, err)
	require.NotEmpty(t, handle.Address)
	require.NoError(t, p.HealthCheck(ctx, handle))

	drained, err := p.Drain(handle)
	require.NoError(t, err)
	require.Empty(t, drained, "no spans exported yet")

	require.NoError(t, p.StopService(ctx, handle))
	require.Error(t, p.HealthCheck(ctx, handle))
}

func TestOTelCollectorPlugin_RunCmdUnsupported(t *testing.T) {
	p := NewOTelCollectorPlugin()
	ctx := context.Background()
	handle, err := p.StartService(ctx, config.ServiceSpec{ID: "collector-1"}, nil)
	require.NoError(t, err)

	_, err = p.RunCmd(ctx, handle, "echo hi")
	require.Error(t, err)
}
