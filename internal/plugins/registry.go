// Package plugins implements the cleanroom service plugin registry
// (spec.md section 4.5): a fixed set of service "kinds", each providing
// the Backend capability set, looked up by the kind string declared in a
// service's [service.<id>] table. The registry is immutable after
// startup (spec.md section 5).
package plugins

import (
	"fmt"

	"github.com/seanchatmangpt/cleanroom/internal/backend"
	"github.com/seanchatmangpt/cleanroom/internal/clnrmerr"
)

// Plugin associates a kind string with the Backend implementation that
// serves it.
type Plugin interface {
	Kind() string
	Backend() backend.Backend
}

// Drainer is implemented by plugins that accumulate span envelopes out of
// band instead of emitting them on a service's own stdout (otel_collector
// is the only one today). The orchestrator calls Drain after each
// command completes and feeds the result into the same
// spans.Collector.IngestStdoutJSON path used for stdout-JSON services.
type Drainer interface {
	Drain(handle backend.ServiceHandle) ([]byte, error)
}

// Registry is a kind -> Plugin lookup table, built once at startup and
// never mutated afterward.
type Registry struct {
	plugins map[string]Plugin
}

// NewRegistry builds a registry from the given plugins. Duplicate kinds
// are a programming error (caught here rather than silently shadowing).
func NewRegistry(ps ...Plugin) (*Registry, error) {
	r := &Registry{plugins: map[string]Plugin{}}
	for _, p := range ps {
		if _, exists := r.plugins[p.Kind()]; exists {
			return nil, fmt.Errorf("plugin kind %q registered more than once", p.Kind())
		}
		r.plugins[p.Kind()] = p
	}
	return r, nil
}

// Get resolves kind to its Plugin. An unrecognized kind is a config_error
// (spec.md section 4.5), not a panic or a silently-ignored no-op — every
// service declaration must name a kind the registry actually serves.
func (r *Registry) Get(kind string) (Plugin, error) {
	p, ok := r.plugins[kind]
	if !ok {
		return nil, clnrmerr.New(clnrmerr.KindConfig, fmt.Sprintf("unknown service kind %q", kind))
	}
	return p, nil
}

// Default builds the registry cleanroom ships out of the box:
// generic_container (any OCI image run via the container backend) and
// otel_collector (the embedded OTLP/gRPC receiver sidecar).
func Default(containerBackend backend.Backend) (*Registry, error) {
	return NewRegistry(
		GenericContainerPlugin{backend: containerBackend},
		NewOTelCollectorPlugin(),
	)
}
