package cli

import (
	"os"

	"github.com/seanchatmangpt/cleanroom/internal/backend"
	"github.com/seanchatmangpt/cleanroom/internal/cache"
	"github.com/seanchatmangpt/cleanroom/internal/clnrmerr"
	"github.com/seanchatmangpt/cleanroom/internal/config"
	"github.com/seanchatmangpt/cleanroom/internal/orchestrator"
	"github.com/seanchatmangpt/cleanroom/internal/plugins"
	"github.com/seanchatmangpt/cleanroom/internal/render"
	"github.com/seanchatmangpt/cleanroom/internal/vars"
)

// renderAndParse runs the first three core steps — resolve, render,
// parse — common to every command that needs a TestConfig.
func renderAndParse(path string, userVars map[string]string) (*config.TestConfig, string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, "", clnrmerr.Wrap(clnrmerr.KindIO, err, "reading template file").WithFile(path)
	}

	resolved := vars.Resolve(userVars, os.Getenv)

	text := string(raw)
	rendered := text
	if render.IsTemplate(text) {
		r := render.New()
		rendered, err = r.Render(text, resolved)
		if err != nil {
			return nil, "", clnrmerr.Wrap(clnrmerr.KindRender, err, "rendering template").WithFile(path)
		}
	}

	cfg, err := config.Parse(rendered)
	if err != nil {
		return nil, "", err
	}
	return cfg, rendered, nil
}

// buildOrchestrator wires the default ContainerBackend-backed registry and
// the on-disk cache, honoring --no-cache/--force.
func buildOrchestrator(rt *Runtime) (*orchestrator.Orchestrator, *backend.ContainerBackend, error) {
	cb := backend.NewContainerBackend("clnrm")
	reg, err := plugins.Default(cb)
	if err != nil {
		return nil, nil, err
	}

	var c *cache.Cache
	if !rt.NoCache {
		path, err := cache.DefaultPath()
		if err != nil {
			return nil, nil, clnrmerr.Wrap(clnrmerr.KindIO, err, "resolving cache path")
		}
		c = cache.Load(path)
		if rt.Force {
			c.Clear()
		}
	}

	o := orchestrator.New(c, reg, orchestrator.Options{
		Workers: rt.Workers,
		Strict:  rt.Strict,
	})
	return o, cb, nil
}

// exitCodeFor maps a top-level error to the spec.md section 6 exit codes.
func exitCodeFor(err error) int {
	return clnrmerr.ExitCode(err)
}

// overallResultErr returns a representative error for a RunResult so the
// caller can compute an exit code: the first execution error if any, else
// a synthetic validation_error if any scenario failed its report, else nil.
func overallResultErr(result orchestrator.RunResult) error {
	for _, o := range result.Outcomes {
		if o.Err != nil {
			return o.Err
		}
	}
	for _, o := range result.Outcomes {
		if o.Report != nil && !o.Report.Pass {
			return clnrmerr.New(clnrmerr.KindValidation, "one or more scenarios failed validation")
		}
	}
	return nil
}
