// Package report renders orchestrator run results as a pterm summary table
// for the terminal (grounded on the teacher's otelcli.renderTui
// pterm.DefaultTable usage), a JSON report, a hand-encoded JUnit XML
// document (the one ambient stdlib exception — see DESIGN.md), and a
// digest listing. Each report holds one entry per scenario, serialized in
// declaration order, matching the Orchestrator's own reassembly rule.
package report

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"fmt"

	"github.com/pterm/pterm"

	"github.com/seanchatmangpt/cleanroom/internal/clnrmerr"
	"github.com/seanchatmangpt/cleanroom/internal/orchestrator"
	"github.com/seanchatmangpt/cleanroom/internal/validate"
)

// JSONReport is the [report].json output shape.
type JSONReport struct {
	RunID     string               `json:"run_id"`
	Pass      bool                 `json:"pass"`
	Scenarios []jsonScenarioResult `json:"scenarios"`
}

type jsonScenarioResult struct {
	Name       string  `json:"name"`
	Pass       bool    `json:"pass"`
	Skipped    bool    `json:"skipped"`
	TimedOut   bool    `json:"timed_out"`
	Error      string  `json:"error,omitempty"`
	SpanDigest string  `json:"span_digest,omitempty"`
	FirstFail  string  `json:"first_failure,omitempty"`
	DurationMS float64 `json:"duration_ms"`
}

// BuildJSON converts a RunResult into the serializable JSONReport,
// preserving the Orchestrator's declaration-order reassembly.
func BuildJSON(result orchestrator.RunResult) JSONReport {
	jr := JSONReport{RunID: result.RunID, Pass: true}
	for _, o := range result.Outcomes {
		sr := jsonScenarioResult{
			Name:       o.Name,
			Skipped:    o.Skipped,
			TimedOut:   o.TimedOut,
			SpanDigest: o.SpanDigest,
			DurationMS: float64(o.Duration.Microseconds()) / 1000,
		}
		switch {
		case o.Err != nil:
			sr.Pass = false
			sr.Error = o.Err.Error()
			jr.Pass = false
		case o.Report != nil:
			sr.Pass = o.Report.Pass
			if o.Report.FirstFail != nil {
				sr.FirstFail = fmt.Sprintf("%s: %s (%s)", o.Report.FirstFail.Dimension, o.Report.FirstFail.Reason, o.Report.FirstFail.Locator)
			}
			if !o.Report.Pass {
				jr.Pass = false
			}
		default:
			sr.Pass = true
		}
		jr.Scenarios = append(jr.Scenarios, sr)
	}
	return jr
}

// WriteJSON encodes the report as indented JSON.
func WriteJSON(result orchestrator.RunResult) ([]byte, error) {
	b, err := json.MarshalIndent(BuildJSON(result), "", "  ")
	if err != nil {
		return nil, clnrmerr.Wrap(clnrmerr.KindIO, err, "encoding JSON report")
	}
	return b, nil
}

// junitTestSuite / junitTestCase mirror the JUnit XML schema cleanroom
// consumers expect (spec.md section 6); encoding/xml is used directly
// because the pack's only JUnit library (joshdk/go-junit) only reads
// JUnit XML, it does not write it.
type junitTestSuite struct {
	XMLName   xml.Name        `xml:"testsuite"`
	Name      string          `xml:"name,attr"`
	Tests     int             `xml:"tests,attr"`
	Failures  int             `xml:"failures,attr"`
	TestCases []junitTestCase `xml:"testcase"`
}

type junitTestCase struct {
	Name    string        `xml:"name,attr"`
	Failure *junitFailure `xml:"failure,omitempty"`
	Skipped *struct{}     `xml:"skipped,omitempty"`
}

type junitFailure struct {
	Message string `xml:"message,attr"`
	Body    string `xml:",chardata"`
}

// WriteJUnit encodes the report as JUnit XML.
func WriteJUnit(suiteName string, result orchestrator.RunResult) ([]byte, error) {
	suite := junitTestSuite{Name: suiteName, Tests: len(result.Outcomes)}

	for _, o := range result.Outcomes {
		tc := junitTestCase{Name: o.Name}
		switch {
		case o.Skipped:
			tc.Skipped = &struct{}{}
		case o.Err != nil:
			tc.Failure = &junitFailure{Message: o.Err.Error()}
			suite.Failures++
		case o.Report != nil && !o.Report.Pass:
			msg := "validation failed"
			if o.Report.FirstFail != nil {
				msg = fmt.Sprintf("%s: %s", o.Report.FirstFail.Dimension, o.Report.FirstFail.Reason)
			}
			tc.Failure = &junitFailure{Message: msg, Body: failureBody(o.Report)}
			suite.Failures++
		}
		suite.TestCases = append(suite.TestCases, tc)
	}

	b, err := xml.MarshalIndent(suite, "", "  ")
	if err != nil {
		return nil, clnrmerr.Wrap(clnrmerr.KindIO, err, "encoding JUnit report")
	}
	return append([]byte(xml.Header), b...), nil
}

// failureBody lists every failing dimension's reason and locator, not just
// the first, so the JUnit consumer sees the full validation picture.
func failureBody(r *validate.Report) string {
	var buf bytes.Buffer
	for _, dim := range validate.DimensionOrder() {
		res, ok := r.ByDimension[dim]
		if !ok || res.Pass {
			continue
		}
		for _, f := range res.Failures {
			fmt.Fprintf(&buf, "%s: %s (%s)\n", f.Dimension, f.Reason, f.Locator)
		}
	}
	return buf.String()
}

// WriteDigest writes the [report].digest output: one "sha256 scenario"
// line per non-skipped, non-errored scenario, in declaration order.
func WriteDigest(result orchestrator.RunResult) []byte {
	var out []byte
	for _, o := range result.Outcomes {
		if o.SpanDigest == "" {
			continue
		}
		out = append(out, []byte(fmt.Sprintf("%s %s\n", o.SpanDigest, o.Name))...)
	}
	return out
}

// PrintSummaryTable prints a pterm table summarizing the run to the
// terminal, grounded on the teacher's
// pterm.DefaultTable.WithHasHeader().WithData(td).Srender() pattern in
// otelcli/server_tui.go.
func PrintSummaryTable(result orchestrator.RunResult) error {
	rows := [][]string{{"scenario", "status", "digest"}}
	for _, o := range result.Outcomes {
		status := "pass"
		switch {
		case o.Skipped:
			status = "skipped"
		case o.TimedOut:
			status = "timeout"
		case o.Err != nil:
			status = "error: " + o.Err.Error()
		case o.Report != nil && !o.Report.Pass:
			status = "fail"
		}
		rows = append(rows, []string{o.Name, status, o.SpanDigest})
	}
	pterm.Println(pterm.DefaultTable.WithHasHeader().WithData(rows).Srender())
	return nil
}
