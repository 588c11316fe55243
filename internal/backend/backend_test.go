package backend

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/seanchatmangpt/cleanroom/internal/config"
)

func TestMockBackend_StartStopLifecycle(t *testing.T) {
	b := NewMockBackend(nil)
	ctx := context.Background()

	handle, err := b.StartService(ctx, config.ServiceSpec{ID: "svc-a", Image: "alpine"}, nil)
	require.NoError(t, err)
	require.NoError(t, b.HealthCheck(ctx, handle))

	require.NoError(t, b.StopService(ctx, handle))
	require.True(t, b.WasStopped("svc-a"))
	require.Error(t, b.HealthCheck(ctx, handle))
}

func TestMockBackend_RunCmdUsesScriptedExec(t *testing.T) {
	b := NewMockBackend(func(handle ServiceHandle, command string) (ExecResult, error) {
		return ExecResult{ExitCode: 7, Stdout: "scripted:" + command}, nil
	})
	ctx := context.Background()
	handle, _ := b.StartService(ctx, config.ServiceSpec{ID: "svc-a"}, nil)

	res, err := b.RunCmd(ctx, handle, "echo hi")
	require.NoError(t, err)
	require.Equal(t, 7, res.ExitCode)
	require.Equal(t, "scripted:echo hi", res.Stdout)
}
