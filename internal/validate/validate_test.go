package validate

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/seanchatmangpt/cleanroom/internal/config"
	"github.com/seanchatmangpt/cleanroom/internal/spans"
)

func mkSpan(id, parent, name string, kind spans.Kind, status spans.Status, start, end uint64) spans.SpanData {
	s := spans.SpanData{
		SpanID:            []byte(id),
		Name:              name,
		Kind:              kind,
		Status:            status,
		StartTimeUnixNano: start,
		EndTimeUnixNano:   end,
		Attributes:        map[string]interface{}{},
	}
	if parent != "" {
		s.ParentSpanID = []byte(parent)
	}
	return s
}

func ptrInt(i int) *int          { return &i }
func ptrF(f float64) *float64    { return &f }
func ptrBool(b bool) *bool       { return &b }

func TestCount_EqBound(t *testing.T) {
	set := []spans.SpanData{
		mkSpan("1", "", "request", spans.KindServer, spans.StatusOK, 0, 10),
		mkSpan("2", "", "request", spans.KindServer, spans.StatusOK, 0, 10),
	}
	expect := config.Expectations{Counts: &config.CountsExpect{
		ByName: map[string]config.CountBound{"request": {Eq: ptrInt(2)}},
	}}
	r := countValidator{}.Validate(set, expect)
	require.True(t, r.Pass)

	expect.Counts.ByName["request"] = config.CountBound{Eq: ptrInt(3)}
	r = countValidator{}.Validate(set, expect)
	require.False(t, r.Pass)
}

func TestStatus_ByNameGlobLeftmostLongest(t *testing.T) {
	set := []spans.SpanData{
		mkSpan("1", "", "db.query.select", spans.KindClient, spans.StatusError, 0, 10),
	}
	expect := config.Expectations{Status: &config.StatusExpect{
		All: "ok",
		ByName: map[string]string{
			"db.*":           "ok",
			"db.query.*":     "error",
		},
	}}
	r := statusValidator{}.Validate(set, expect)
	require.True(t, r.Pass, "more specific pattern db.query.* should win over db.*")
}

func TestHermeticity_ForbidsExternalClient(t *testing.T) {
	s := mkSpan("1", "", "http.call", spans.KindClient, spans.StatusOK, 0, 10)
	s.Attributes["net.peer.name"] = "evil.example.com"
	expect := config.Expectations{Hermeticity: &config.HermeticityExpect{
		NoExternalServices: true,
		AllowedAddresses:   []string{"localhost"},
	}}
	r := hermeticityValidator{}.Validate([]spans.SpanData{s}, expect)
	require.False(t, r.Pass)
}

func TestSpan_AttrsAllAndDurationRange(t *testing.T) {
	s := mkSpan("1", "", "work", spans.KindInternal, spans.StatusOK, 0, 50_000_000)
	s.Attributes["key"] = "value"
	expect := config.Expectations{Span: []config.SpanExpect{
		{
			Name:       "work",
			Attrs:      config.SpanAttrs{All: map[string]string{"key": "value"}},
			DurationMs: config.DurationRange{Min: ptrF(10), Max: ptrF(100)},
		},
	}}
	r := spanValidator{}.Validate([]spans.SpanData{s}, expect)
	require.True(t, r.Pass)
}

func TestGraph_MustIncludeAndAcyclic(t *testing.T) {
	root := mkSpan("1", "", "root", spans.KindServer, spans.StatusOK, 0, 100)
	child := mkSpan("2", "1", "child", spans.KindInternal, spans.StatusOK, 10, 90)
	expect := config.Expectations{Graph: &config.GraphExpect{
		MustInclude: [][2]string{{"root", "child"}},
		Acyclic:     true,
	}}
	r := graphValidator{}.Validate([]spans.SpanData{root, child}, expect)
	require.True(t, r.Pass)
}

func TestGraph_MustNotCrossFails(t *testing.T) {
	root := mkSpan("1", "", "root", spans.KindServer, spans.StatusOK, 0, 100)
	child := mkSpan("2", "1", "forbidden-child", spans.KindInternal, spans.StatusOK, 10, 90)
	expect := config.Expectations{Graph: &config.GraphExpect{
		MustNotCross: [][2]string{{"root", "forbidden-child"}},
	}}
	r := graphValidator{}.Validate([]spans.SpanData{root, child}, expect)
	require.False(t, r.Pass)
}

func TestOrder_MustPrecedeStrictTieFails(t *testing.T) {
	a := mkSpan("1", "", "a", spans.KindInternal, spans.StatusOK, 0, 100)
	b := mkSpan("2", "", "b", spans.KindInternal, spans.StatusOK, 100, 200)
	expect := config.Expectations{Order: &config.OrderExpect{MustPrecede: [][2]string{{"a", "b"}}}}
	r := orderValidator{}.Validate([]spans.SpanData{a, b}, expect)
	require.False(t, r.Pass, "tie at boundary should fail under strict <")

	expect.Order.Strict = ptrBool(false)
	r = orderValidator{}.Validate([]spans.SpanData{a, b}, expect)
	require.True(t, r.Pass)
}

func TestWindow_ClosedContainment(t *testing.T) {
	outer := mkSpan("1", "", "request", spans.KindServer, spans.StatusOK, 1, 100)
	inner := mkSpan("2", "1", "db.query", spans.KindClient, spans.StatusOK, 10, 90)
	expect := config.Expectations{Window: []config.WindowExpect{
		{Outer: "request", Contains: []string{"db.query"}},
	}}
	r := windowValidator{}.Validate([]spans.SpanData{outer, inner}, expect)
	require.True(t, r.Pass)

	outOfBounds := mkSpan("3", "1", "db.query", spans.KindClient, spans.StatusOK, 10, 200)
	r = windowValidator{}.Validate([]spans.SpanData{outer, outOfBounds}, expect)
	require.False(t, r.Pass)
}

func TestOrchestrator_RunFixedOrderAndFirstFailure(t *testing.T) {
	set := []spans.SpanData{
		mkSpan("1", "", "request", spans.KindServer, spans.StatusError, 0, 100),
	}
	expect := config.Expectations{
		Status: &config.StatusExpect{All: "ok"},
		Counts: &config.CountsExpect{Total: &config.CountBound{Eq: ptrInt(5)}},
	}
	o := Orchestrator{Strict: false}
	report := o.Run("scenario-x", set, expect)
	require.False(t, report.Pass)
	require.NotNil(t, report.FirstFail)
	// count runs before status in the fixed order, so count's failure wins.
	require.Equal(t, "count", report.FirstFail.Dimension)
	require.Contains(t, report.ByDimension, "status")
}

func TestOrchestrator_StrictModeStopsAtFirstFailure(t *testing.T) {
	set := []spans.SpanData{
		mkSpan("1", "", "request", spans.KindServer, spans.StatusError, 0, 100),
	}
	expect := config.Expectations{
		Counts: &config.CountsExpect{Total: &config.CountBound{Eq: ptrInt(5)}},
		Status: &config.StatusExpect{All: "ok"},
	}
	o := Orchestrator{Strict: true}
	report := o.Run("scenario-x", set, expect)
	require.False(t, report.Pass)
	_, statusRan := report.ByDimension["status"]
	require.False(t, statusRan, "strict mode should abort before reaching status")
}
