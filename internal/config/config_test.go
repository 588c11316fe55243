package config

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/seanchatmangpt/cleanroom/internal/clnrmerr"
)

const minimalDoc = `
[meta]
name = "trivial"
version = "1"
description = "d"

[otel]
exporter = "stdout"
sample_ratio = 1.0
resources = {}

[service.app]
image = "busybox"
args = ["echo", "hello"]

[[scenario]]
name = "s1"
service_ref = "app"
command = "echo hello"
`

func TestParse_Minimal(t *testing.T) {
	cfg, err := Parse(minimalDoc)

	require.NoError(t, err)
	require.Equal(t, "trivial", cfg.Meta.Name)
	require.Len(t, cfg.Scenarios, 1)
	require.Contains(t, cfg.Services, "app")
}

func TestParse_UnknownTopLevelTableIgnored(t *testing.T) {
	withExtra := minimalDoc + "\n[totally_unknown_table]\nfoo = \"bar\"\n"

	cfg, err := Parse(withExtra)

	require.NoError(t, err)
	require.Equal(t, "trivial", cfg.Meta.Name)
}

func TestParse_UnknownNestedKeyIsSchemaError(t *testing.T) {
	withBadKey := `
[meta]
name = "trivial"

[otel]
exporter = "stdout"

[service.app]
image = "busybox"
nonsense_key = "x"

[[scenario]]
name = "s1"
service_ref = "app"
command = "echo hello"
`

	_, err := Parse(withBadKey)

	require.Error(t, err)
	kind, ok := clnrmerr.KindOf(err)
	require.True(t, ok)
	require.Equal(t, clnrmerr.KindConfig, kind)
}

func TestParse_UndefinedServiceRefIsError(t *testing.T) {
	doc := `
[meta]
name = "x"
[otel]
exporter = "stdout"
sample_ratio = 1.0
[service.app]
image = "busybox"
[[scenario]]
name = "s1"
service_ref = "doesnotexist"
command = "true"
`
	_, err := Parse(doc)

	require.Error(t, err)
}

func TestParse_VarsTableIgnored(t *testing.T) {
	withVars := minimalDoc + "\n[vars]\nfoo = \"bar\"\n"
	withoutVars := minimalDoc

	cfgWith, err := Parse(withVars)
	require.NoError(t, err)

	cfgWithout, err := Parse(withoutVars)
	require.NoError(t, err)

	require.Equal(t, cfgWithout, cfgWith)
}

func TestParse_SampleRatioOutOfRangeIsError(t *testing.T) {
	doc := `
[meta]
name = "x"
[otel]
exporter = "stdout"
sample_ratio = 1.5
[service.app]
image = "busybox"
[[scenario]]
name = "s1"
service_ref = "app"
command = "true"
`
	_, err := Parse(doc)
	require.Error(t, err)
}

func TestParse_ContradictoryCountBoundsIsSchemaError(t *testing.T) {
	doc := minimalDoc + `
[expect.counts.total]
eq = 3
gte = 5
`
	_, err := Parse(doc)
	require.Error(t, err)
}

func TestParse_DuplicateScenarioNameIsError(t *testing.T) {
	doc := minimalDoc + `
[[scenario]]
name = "s1"
service_ref = "app"
command = "echo again"
`
	_, err := Parse(doc)
	require.Error(t, err)
}
