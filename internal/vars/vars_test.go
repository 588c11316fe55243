package vars

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func fakeEnv(m map[string]string) func(string) string {
	return func(name string) string { return m[name] }
}

// TestResolve_PrecedenceOverride covers scenario F from spec.md section 8:
// a user-supplied svc must win over an environment variable that would
// otherwise satisfy the same key.
func TestResolve_PrecedenceOverride(t *testing.T) {
	userVars := map[string]string{"svc": "myapp"}
	env := fakeEnv(map[string]string{"SERVICE_NAME": "shouldlose"})

	resolved := Resolve(userVars, env)

	require.Equal(t, "myapp", resolved["svc"])
}

func TestResolve_EnvironmentFallback(t *testing.T) {
	env := fakeEnv(map[string]string{"SERVICE_NAME": "fromenv"})

	resolved := Resolve(nil, env)

	require.Equal(t, "fromenv", resolved["svc"])
}

func TestResolve_DefaultFallback(t *testing.T) {
	resolved := Resolve(nil, fakeEnv(nil))

	require.Equal(t, "clnrm", resolved["svc"])
	require.Equal(t, "ci", resolved["env"])
	require.Equal(t, "http://localhost:4318", resolved["endpoint"])
	require.Equal(t, "", resolved["token"])
}

func TestResolve_UserDeclaredKeyPassesThrough(t *testing.T) {
	resolved := Resolve(map[string]string{"region": "us-east-1"}, fakeEnv(nil))

	require.Equal(t, "us-east-1", resolved["region"])
}

func TestResolve_Idempotent(t *testing.T) {
	userVars := map[string]string{"svc": "myapp"}
	env := fakeEnv(map[string]string{"ENV": "staging"})

	first := Resolve(userVars, env)
	second := Resolve(userVars, env)

	require.Equal(t, first, second)
}

func TestVars_RenderContext(t *testing.T) {
	resolved := Resolve(map[string]string{"svc": "myapp"}, fakeEnv(nil))
	ctx := resolved.RenderContext()

	require.Equal(t, "myapp", ctx["svc"])
	nested, ok := ctx["vars"].(map[string]interface{})
	require.True(t, ok)
	require.Equal(t, "myapp", nested["svc"])
}
