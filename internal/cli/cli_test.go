package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/seanchatmangpt/cleanroom/internal/clnrmerr"
	"github.com/seanchatmangpt/cleanroom/internal/orchestrator"
)

const fixtureDoc = `
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

func writeFixture(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "suite.toml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestRenderAndParse_PlainDocRoundTrips(t *testing.T) {
	path := writeFixture(t, fixtureDoc)

	cfg, rendered, err := renderAndParse(path, nil)
	require.NoError(t, err)
	require.Equal(t, "trivial", cfg.Meta.Name)
	require.Contains(t, rendered, "trivial")
}

func TestRenderAndParse_MissingFileIsIOError(t *testing.T) {
	_, _, err := renderAndParse(filepath.Join(t.TempDir(), "nope.toml"), nil)
	require.Error(t, err)
	kind, ok := clnrmerr.KindOf(err)
	require.True(t, ok)
	require.Equal(t, clnrmerr.KindIO, kind)
}

func withRuntime(ctx context.Context, rt *Runtime) context.Context {
	return context.WithValue(ctx, runtimeKey(), rt)
}

func TestDryRunCmd_ValidDocPrintsCounts(t *testing.T) {
	path := writeFixture(t, fixtureDoc)

	cmd := newDryRunCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{path})
	cmd.SetContext(withRuntime(context.Background(), &Runtime{}))

	require.NoError(t, cmd.Execute())
	require.Equal(t, 0, exitCodeFromLastRun)
	require.Contains(t, out.String(), "trivial: 1 service(s), 1 scenario(s), valid")
}

func TestLintCmd_EmptyExpectationsPass(t *testing.T) {
	path := writeFixture(t, fixtureDoc)

	cmd := newLintCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{path})
	cmd.SetContext(withRuntime(context.Background(), &Runtime{}))

	require.NoError(t, cmd.Execute())
	require.Equal(t, 0, exitCodeFromLastRun)
	require.Contains(t, out.String(), "shape OK")
}

func TestLintCmd_MalformedGraphEdgeFails(t *testing.T) {
	doc := fixtureDoc + "\n[expect.graph]\nmust_include = [[\"a\", \"\"]]\n"
	path := writeFixture(t, doc)

	cmd := newLintCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{path})
	cmd.SetContext(withRuntime(context.Background(), &Runtime{}))

	err := cmd.Execute()
	require.Error(t, err)
	kind, ok := clnrmerr.KindOf(err)
	require.True(t, ok)
	require.Equal(t, clnrmerr.KindValidation, kind)
}

func TestFmtCmd_RejectsTemplateSyntax(t *testing.T) {
	path := writeFixture(t, `name = "{{ svc }}"`)

	cmd := newFmtCmd()
	cmd.SetArgs([]string{path})
	cmd.SetContext(withRuntime(context.Background(), &Runtime{}))

	err := cmd.Execute()
	require.Error(t, err)
	kind, ok := clnrmerr.KindOf(err)
	require.True(t, ok)
	require.Equal(t, clnrmerr.KindConfig, kind)
}

func TestFmtCmd_IdempotentOnPlainDoc(t *testing.T) {
	path := writeFixture(t, fixtureDoc)

	cmd := newFmtCmd()
	cmd.SetArgs([]string{path})
	cmd.SetContext(withRuntime(context.Background(), &Runtime{}))
	require.NoError(t, cmd.Execute())

	first, err := os.ReadFile(path)
	require.NoError(t, err)

	cmd2 := newFmtCmd()
	cmd2.SetArgs([]string{path})
	cmd2.SetContext(withRuntime(context.Background(), &Runtime{}))
	require.NoError(t, cmd2.Execute())

	second, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, string(first), string(second))
}

func TestGraphCmd_NoGraphTablePrintsPlaceholder(t *testing.T) {
	path := writeFixture(t, fixtureDoc)

	cmd := newGraphCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{path})
	cmd.SetContext(withRuntime(context.Background(), &Runtime{}))

	require.NoError(t, cmd.Execute())
	require.Contains(t, out.String(), "no expect.graph table")
}

func TestOverallResultErr_NilOnAllPass(t *testing.T) {
	require.NoError(t, overallResultErr(orchestrator.RunResult{}))
}
