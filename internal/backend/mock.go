package backend

import (
	"context"
	"fmt"
	"sync"

	"github.com/seanchatmangpt/cleanroom/internal/config"
)

// MockBackend is an in-memory Backend test double: it never touches a
// real container runtime, and lets tests script RunCmd output per
// service id. Used by the orchestrator integration test to drive a
// scenario end-to-end without docker.
type MockBackend struct {
	mu       sync.Mutex
	started  map[string]config.ServiceSpec
	stopped  map[string]bool
	execFunc func(handle ServiceHandle, command string) (ExecResult, error)
	healthy  map[string]bool
}

// NewMockBackend returns a MockBackend. execFunc may be nil, in which
// case RunCmd always returns a zero ExecResult.
func NewMockBackend(execFunc func(handle ServiceHandle, command string) (ExecResult, error)) *MockBackend {
	return &MockBackend{
		started:  map[string]config.ServiceSpec{},
		stopped:  map[string]bool{},
		execFunc: execFunc,
		healthy:  map[string]bool{},
	}
}

func (m *MockBackend) StartService(_ context.Context, spec config.ServiceSpec, _ map[string]string) (ServiceHandle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.started[spec.ID] = spec
	m.healthy[spec.ID] = true
	return ServiceHandle{ID: spec.ID, Address: fmt.Sprintf("mock://%s", spec.ID)}, nil
}

func (m *MockBackend) StopService(_ context.Context, handle ServiceHandle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopped[handle.ID] = true
	m.healthy[handle.ID] = false
	return nil
}

func (m *MockBackend) RunCmd(_ context.Context, handle ServiceHandle, command string) (ExecResult, error) {
	if m.execFunc != nil {
		return m.execFunc(handle, command)
	}
	return ExecResult{ExitCode: 0}, nil
}

func (m *MockBackend) HealthCheck(_ context.Context, handle ServiceHandle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.healthy[handle.ID] {
		return fmt.Errorf("service %q is not healthy", handle.ID)
	}
	return nil
}

func (m *MockBackend) MountVolume(_ context.Context, _ ServiceHandle, _ config.Volume) error {
	return nil
}

// WasStopped reports whether StopService was called for the given id —
// used by tests asserting teardown guarantees.
func (m *MockBackend) WasStopped(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopped[id]
}
