package validate

import (
	"fmt"

	"github.com/seanchatmangpt/cleanroom/internal/config"
	"github.com/seanchatmangpt/cleanroom/internal/spans"
)

// spanGraph is the arena-plus-index structure recommended in spec.md
// section 9: one slice of spans, a map from span id to its index, and a
// precomputed children adjacency list, so validators never chase pointers
// or re-scan the full set for each edge they check.
type spanGraph struct {
	arena    []spans.SpanData
	byID     map[string]int
	children map[int][]int
}

func buildGraph(spanSet []spans.SpanData) spanGraph {
	g := spanGraph{
		arena:    spanSet,
		byID:     make(map[string]int, len(spanSet)),
		children: make(map[int][]int, len(spanSet)),
	}
	for i, s := range spanSet {
		g.byID[s.SpanIDHex()] = i
	}
	for i, s := range spanSet {
		if parentIdx, ok := g.byID[s.ParentSpanIDHex()]; ok && s.ParentSpanIDHex() != "" {
			g.children[parentIdx] = append(g.children[parentIdx], i)
		}
	}
	return g
}

// edgesByName returns every (parentIdx, childIdx) pair where the parent
// span's name is parentName and the child span's name is childName.
func (g spanGraph) edgesByName(parentName, childName string) [][2]int {
	var out [][2]int
	for pIdx, kids := range g.children {
		if g.arena[pIdx].Name != parentName {
			continue
		}
		for _, cIdx := range kids {
			if g.arena[cIdx].Name == childName {
				out = append(out, [2]int{pIdx, cIdx})
			}
		}
	}
	return out
}

// graphValidator checks must_include edges, forbidden must_not_cross
// edges, and acyclicity (spec.md section 4.8, dimension 6).
type graphValidator struct{}

func (graphValidator) Name() string { return "graph" }

func (graphValidator) Validate(spanSet []spans.SpanData, expect config.Expectations) Result {
	if expect.Graph == nil {
		return pass()
	}
	g := buildGraph(spanSet)
	ge := expect.Graph

	for _, edge := range ge.MustInclude {
		if len(g.edgesByName(edge[0], edge[1])) == 0 {
			return fail("graph", fmt.Sprintf("no edge %s -> %s found", edge[0], edge[1]), fmt.Sprintf("%s->%s", edge[0], edge[1]))
		}
	}
	for _, edge := range ge.MustNotCross {
		if es := g.edgesByName(edge[0], edge[1]); len(es) > 0 {
			return fail("graph", fmt.Sprintf("forbidden edge %s -> %s is present", edge[0], edge[1]), fmt.Sprintf("%s->%s", edge[0], edge[1]))
		}
	}
	if ge.Acyclic {
		if cyc, ok := g.findCycle(); ok {
			return fail("graph", fmt.Sprintf("cycle detected involving span %q", g.arena[cyc].Name), g.arena[cyc].Name)
		}
	}
	return pass()
}

// findCycle does a standard three-color DFS over the children adjacency,
// returning the index of a span discovered to be its own ancestor.
func (g spanGraph) findCycle() (int, bool) {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make([]int, len(g.arena))
	var dfs func(i int) (int, bool)
	dfs = func(i int) (int, bool) {
		color[i] = gray
		for _, c := range g.children[i] {
			if color[c] == gray {
				return c, true
			}
			if color[c] == white {
				if found, ok := dfs(c); ok {
					return found, true
				}
			}
		}
		color[i] = black
		return 0, false
	}
	for i := range g.arena {
		if color[i] == white {
			if found, ok := dfs(i); ok {
				return found, true
			}
		}
	}
	return 0, false
}
