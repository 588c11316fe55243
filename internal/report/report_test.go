package report

import (
	"encoding/xml"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/seanchatmangpt/cleanroom/internal/orchestrator"
	"github.com/seanchatmangpt/cleanroom/internal/validate"
)

func TestBuildJSON_PassAndFailAggregate(t *testing.T) {
	result := orchestrator.RunResult{
		Outcomes: []orchestrator.ScenarioOutcome{
			{Name: "ok", Report: &validate.Report{Pass: true}, SpanDigest: "abc123"},
			{
				Name: "bad",
				Report: &validate.Report{
					Pass:      false,
					FirstFail: &validate.Failure{Dimension: "count", Reason: "too few spans", Locator: "scenario=bad"},
				},
			},
		},
	}

	jr := BuildJSON(result)
	require.False(t, jr.Pass)
	require.Len(t, jr.Scenarios, 2)
	require.True(t, jr.Scenarios[0].Pass)
	require.Equal(t, "abc123", jr.Scenarios[0].SpanDigest)
	require.False(t, jr.Scenarios[1].Pass)
	require.Contains(t, jr.Scenarios[1].FirstFail, "count")
}

func TestWriteJSON_EncodesScenarioName(t *testing.T) {
	result := orchestrator.RunResult{
		Outcomes: []orchestrator.ScenarioOutcome{
			{Name: "ok", Report: &validate.Report{Pass: true}},
		},
	}
	b, err := WriteJSON(result)
	require.NoError(t, err)
	require.Contains(t, string(b), `"name": "ok"`)
}

func TestWriteJUnit_MarksFailuresAndSkips(t *testing.T) {
	result := orchestrator.RunResult{
		Outcomes: []orchestrator.ScenarioOutcome{
			{Name: "skipped-one", Skipped: true},
			{Name: "passed-one", Report: &validate.Report{Pass: true}},
			{
				Name: "failed-one",
				Report: &validate.Report{
					Pass:      false,
					FirstFail: &validate.Failure{Dimension: "status", Reason: "unexpected error status", Locator: "span=foo"},
					ByDimension: map[string]validate.Result{
						"status": {Pass: false, Failures: []validate.Failure{
							{Dimension: "status", Reason: "unexpected error status", Locator: "span=foo"},
						}},
					},
				},
			},
		},
	}

	b, err := WriteJUnit("cleanroom", result)
	require.NoError(t, err)

	var suite junitTestSuite
	require.NoError(t, xml.Unmarshal(b, &suite))
	require.Equal(t, 3, suite.Tests)
	require.Equal(t, 1, suite.Failures)
	require.NotNil(t, suite.TestCases[0].Skipped)
	require.Nil(t, suite.TestCases[1].Failure)
	require.NotNil(t, suite.TestCases[2].Failure)
	require.Contains(t, suite.TestCases[2].Failure.Body, "unexpected error status")
}

func TestWriteDigest_SkipsEntriesWithoutDigest(t *testing.T) {
	result := orchestrator.RunResult{
		Outcomes: []orchestrator.ScenarioOutcome{
			{Name: "skipped-one", Skipped: true},
			{Name: "has-digest", SpanDigest: "deadbeef"},
		},
	}
	out := string(WriteDigest(result))
	require.True(t, strings.Contains(out, "deadbeef has-digest"))
	require.False(t, strings.Contains(out, "skipped-one"))
}
