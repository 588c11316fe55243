// Package backend defines the cleanroom execution backend abstraction: a
// synchronous capability set {RunCmd, StartService, StopService,
// HealthCheck, MountVolume} that the orchestrator drives, and two
// implementations — ContainerBackend (testcontainers-go, real hermetic
// execution) and MockBackend (an in-memory test double).
package backend

import (
	"context"
	"time"

	"github.com/seanchatmangpt/cleanroom/internal/config"
)

// ExecResult is the outcome of RunCmd.
type ExecResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
	Duration time.Duration
}

// ServiceHandle identifies a running service instance to later StopService
// or HealthCheck calls.
type ServiceHandle struct {
	ID      string
	Address string
}

// Backend is the synchronous capability set the orchestrator depends on.
// Every method is cancellation-responsive via ctx (spec.md section 5:
// "every interaction with the container runtime ... is a potential
// blocking point; workers MUST treat them as cancellation-responsive").
type Backend interface {
	StartService(ctx context.Context, spec config.ServiceSpec, env map[string]string) (ServiceHandle, error)
	StopService(ctx context.Context, handle ServiceHandle) error
	RunCmd(ctx context.Context, handle ServiceHandle, command string) (ExecResult, error)
	HealthCheck(ctx context.Context, handle ServiceHandle) error
	MountVolume(ctx context.Context, handle ServiceHandle, vol config.Volume) error
}
