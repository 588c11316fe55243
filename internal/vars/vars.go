// Package vars implements the cleanroom Variable Resolver: it merges
// user-supplied variables, the ambient process environment, and built-in
// defaults into a single flat map, following a fixed precedence chain.
//
// The merge loop is grounded on the teacher's Config.LoadEnv (otelcli's
// reflect-driven env-tag walk) but rewritten as a literal table, since the
// Resolver's key set is small, closed, and does not live on a struct with
// `env:` tags the way otel-cli's Config does.
package vars

import "sort"

// Key identifies one of the standard variables.
type Key string

const (
	KeySvc         Key = "svc"
	KeyEnv         Key = "env"
	KeyEndpoint    Key = "endpoint"
	KeyExporter    Key = "exporter"
	KeyImage       Key = "image"
	KeyFreezeClock Key = "freeze_clock"
	KeyToken       Key = "token"
)

// envMap is the fixed Key -> environment variable name mapping from
// spec.md section 4.1.
var envMap = map[Key]string{
	KeySvc:         "SERVICE_NAME",
	KeyEnv:         "ENV",
	KeyEndpoint:    "OTEL_ENDPOINT",
	KeyExporter:    "OTEL_TRACES_EXPORTER",
	KeyImage:       "CLNRM_IMAGE",
	KeyFreezeClock: "FREEZE_CLOCK",
	KeyToken:       "OTEL_TOKEN",
}

// defaults holds the built-in literal defaults from spec.md section 6.
var defaults = map[Key]string{
	KeySvc:         "clnrm",
	KeyEnv:         "ci",
	KeyEndpoint:    "http://localhost:4318",
	KeyExporter:    "otlp",
	KeyImage:       "ghcr.io/seanchatmangpt/cleanroom-runtime:latest",
	KeyFreezeClock: "2025-01-01T00:00:00Z",
	KeyToken:       "",
}

// standardKeys is the closed set of keys every resolved map is guaranteed
// to contain.
var standardKeys = []Key{KeySvc, KeyEnv, KeyEndpoint, KeyExporter, KeyImage, KeyFreezeClock, KeyToken}

// Vars is the flat, immutable map produced by Resolve.
type Vars map[string]string

// Resolve merges userVars, the process environment (read via getenv), and
// the built-in defaults, following the precedence chain: user-supplied,
// then environment, then default. Resolution is total: every standard key
// is guaranteed present in the result, and any additional user-declared
// key not in the standard set passes through unchanged.
//
// Resolve is pure with respect to its inputs: calling it twice with the
// same userVars and getenv yields an identical map (idempotence, tested in
// scenario F of spec.md section 8).
func Resolve(userVars map[string]string, getenv func(string) string) Vars {
	out := make(Vars, len(userVars)+len(standardKeys))

	for _, k := range standardKeys {
		if v, ok := userVars[string(k)]; ok {
			out[string(k)] = v
			continue
		}
		if envName, ok := envMap[k]; ok {
			if v := getenv(envName); v != "" {
				out[string(k)] = v
				continue
			}
		}
		out[string(k)] = defaults[k]
	}

	// pass through any user-declared key outside the standard set
	for k, v := range userVars {
		if _, known := out[k]; !known {
			out[k] = v
		}
	}

	return out
}

// RenderContext returns the rendering context for the Template Renderer:
// every resolved key at the top level, plus the same map again nested
// under "vars" for authoring-time tooling (spec.md section 4.1).
func (v Vars) RenderContext() map[string]interface{} {
	ctx := make(map[string]interface{}, len(v)+1)
	nested := make(map[string]interface{}, len(v))
	for k, val := range v {
		ctx[k] = val
		nested[k] = val
	}
	ctx["vars"] = nested
	return ctx
}

// Keys returns the variable names in sorted order, for deterministic
// logging/debugging output.
func (v Vars) Keys() []string {
	keys := make([]string, 0, len(v))
	for k := range v {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
