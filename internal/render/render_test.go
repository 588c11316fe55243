package render

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/seanchatmangpt/cleanroom/internal/vars"
)

func TestIsTemplate(t *testing.T) {
	require.True(t, IsTemplate("{{ svc }}"))
	require.True(t, IsTemplate("{% if true %}x{% endif %}"))
	require.True(t, IsTemplate("{# comment #}"))
	require.False(t, IsTemplate(`[meta]
name = "plain"
`))
}

func TestRender_SubstitutesResolvedVariables(t *testing.T) {
	r := New()
	resolved := vars.Resolve(map[string]string{"svc": "myapp"}, func(string) string { return "" })

	out, err := r.Render(`[meta]
name = "{{ svc }}"
`, resolved)

	require.NoError(t, err)
	require.Contains(t, out, `name = "myapp"`)
}

func TestRender_StrictUndefinedFails(t *testing.T) {
	r := New()
	resolved := vars.Resolve(nil, func(string) string { return "" })

	_, err := r.Render(`name = "{{ totally_undeclared_identifier }}"`, resolved)

	require.Error(t, err)
}

func TestRender_Sha256Function(t *testing.T) {
	r := New()
	resolved := vars.Resolve(nil, func(string) string { return "" })

	out, err := r.Render(`digest = "{{ sha256("hello") }}"`, resolved)

	require.NoError(t, err)
	require.True(t, strings.Contains(out, "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824"[:10]))
}

func TestRender_NowRFC3339UsesFrozenClockWhenSet(t *testing.T) {
	r := New()
	resolved := vars.Resolve(map[string]string{"freeze_clock": "2030-06-15T12:00:00Z"}, func(string) string { return "" })

	out, err := r.Render(`stamp = "{{ now_rfc3339() }}"`, resolved)

	require.NoError(t, err)
	require.Contains(t, out, `stamp = "2030-06-15T12:00:00Z"`)
}

func TestRender_NowRFC3339FallsBackToWallClockWhenUnset(t *testing.T) {
	r := New()
	resolved := vars.Resolve(map[string]string{"freeze_clock": ""}, func(string) string { return "" })

	out, err := r.Render(`stamp = "{{ now_rfc3339() }}"`, resolved)

	require.NoError(t, err)
	require.NotContains(t, out, "2025-01-01T00:00:00Z")
}

func TestRender_NowRFC3339StableAcrossRendersWhenFrozen(t *testing.T) {
	r := New()
	resolved := vars.Resolve(map[string]string{"freeze_clock": "2030-06-15T12:00:00Z"}, func(string) string { return "" })

	first, err := r.Render(`stamp = "{{ now_rfc3339() }}"`, resolved)
	require.NoError(t, err)
	time.Sleep(2 * time.Millisecond)
	second, err := r.Render(`stamp = "{{ now_rfc3339() }}"`, resolved)
	require.NoError(t, err)

	require.Equal(t, first, second)
}
