package plugins

import "github.com/seanchatmangpt/cleanroom/internal/backend"

// GenericContainerPlugin is the "kind = generic_container" plugin: it runs
// any OCI image the scenario names, delegating directly to the shared
// container backend. It is the default kind when a [service.<id>] table
// does not specify one the registry would otherwise reject.
type GenericContainerPlugin struct {
	backend backend.Backend
}

func (GenericContainerPlugin) Kind() string { return "generic_container" }

func (p GenericContainerPlugin) Backend() backend.Backend { return p.backend }
