// Package render implements the cleanroom Template Renderer: a Jinja/Tera
// family engine (pongo2) that turns a template file plus a resolved
// variable context into flat TOML text.
//
// Detection of template-vs-plain-TOML lives in IsTemplate. The
// env()/now_rfc3339()/sha256()/toml_encode() helpers are registered on each
// Renderer's own pongo2 TemplateSet by New (now_rfc3339 is rebound per
// Render call); the package-level init() only turns autoescaping off.
package render

import (
	_ "embed"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/flosch/pongo2/v6"
	"github.com/pkg/errors"

	"github.com/seanchatmangpt/cleanroom/internal/clnrmerr"
	"github.com/seanchatmangpt/cleanroom/internal/vars"
)

//go:embed macros.tpl
var macroLibrary string

// freezeClockKey is the resolved vars key nowRFC3339Func checks for a
// frozen clock value before falling back to wall time.
const freezeClockKey = string(vars.KeyFreezeClock)

// nowRFC3339Func returns the now_rfc3339() implementation for one Render
// call: the frozen clock if resolved[freezeClockKey] is a non-empty,
// valid RFC3339 timestamp (spec.md section 4.2), otherwise wall time.
func nowRFC3339Func(resolved vars.Vars) func() string {
	return func() string {
		if fc, ok := resolved[freezeClockKey]; ok && fc != "" {
			if t, err := time.Parse(time.RFC3339, fc); err == nil {
				return t.UTC().Format(time.RFC3339)
			}
		}
		return time.Now().UTC().Format(time.RFC3339)
	}
}

func init() {
	pongo2.SetAutoescape(false)
}

// IsTemplate classifies text as a template per spec.md section 6: the
// presence of any of "{{", "{%", or "{#" marks it as a template; anything
// else is treated as plain TOML.
func IsTemplate(text string) bool {
	return strings.Contains(text, "{{") || strings.Contains(text, "{%") || strings.Contains(text, "{#")
}

// Renderer renders cleanroom templates. It is safe for concurrent use once
// constructed; pongo2 template sets are read-only after Render has been
// primed.
type Renderer struct {
	set *pongo2.TemplateSet
}

// New returns a Renderer configured with strict-undefined semantics: any
// identifier not present in the rendering context is a hard render_error,
// never silent empty-string substitution (spec.md section 9's design
// note on render_error vs strict undefined).
func New(includeDirs ...string) *Renderer {
	loader := pongo2.MustNewLocalFileSystemLoader("")
	set := pongo2.NewSet("cleanroom", loader)
	for _, dir := range includeDirs {
		_ = dir // includeDirs is not used: {% include %} paths are resolved
		// by the loader above alone.
	}
	registerFunctions(set)
	return &Renderer{set: set}
}

// Render renders templateText against the resolved variables, returning
// the flat TOML output. No partial output is ever returned on failure.
func (r *Renderer) Render(templateText string, resolved vars.Vars) (string, error) {
	full := macroLibrary + "\n" + templateText

	tpl, err := r.set.FromString(full)
	if err != nil {
		return "", clnrmerr.Wrap(clnrmerr.KindRender, err, "failed to parse template")
	}

	ctx := pongo2.Context(resolved.RenderContext())
	// now_rfc3339 is bound per-Render, not at set-construction time, since
	// it depends on this call's resolved freeze_clock value: a context
	// entry shadows the set-global registered in registerFunctions.
	ctx["now_rfc3339"] = nowRFC3339Func(resolved)

	out, err := tpl.Execute(ctx)
	if err != nil {
		return "", clnrmerr.Wrap(clnrmerr.KindRender, unresolvedToRenderError(err), "failed to render template")
	}

	return out, nil
}

// unresolvedToRenderError normalizes pongo2's error text for an undefined
// identifier so callers see a consistent render_error regardless of which
// pongo2 internal path produced it.
func unresolvedToRenderError(err error) error {
	if strings.Contains(err.Error(), "is not defined") || strings.Contains(err.Error(), "could not resolve") {
		return errors.Wrap(err, "unresolved strict variable reference")
	}
	return err
}

// registerFunctions installs the four custom functions from spec.md
// section 4.2 into the given template set's global context.
func registerFunctions(set *pongo2.TemplateSet) {
	set.Globals["env"] = func(name string) string {
		return os.Getenv(name)
	}

	// now_rfc3339 here is only the fallback used when a template is
	// executed without going through Render (none are today); Render
	// always overrides it per-call via nowRFC3339Func.
	set.Globals["now_rfc3339"] = func() string {
		return time.Now().UTC().Format(time.RFC3339)
	}

	set.Globals["sha256"] = func(s string) string {
		sum := sha256.Sum256([]byte(s))
		return hex.EncodeToString(sum[:])
	}

	set.Globals["toml_encode"] = func(value interface{}) string {
		return tomlEncode(value)
	}
}

// tomlEncode renders a Go value (string, bool, number, []string,
// map[string]string) as a TOML literal, following the encoding rules a
// template author needs to embed values produced by the other helpers.
func tomlEncode(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return `""`
	case string:
		return strconv.Quote(v)
	case bool:
		return strconv.FormatBool(v)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case []string:
		parts := make([]string, len(v))
		for i, s := range v {
			parts[i] = strconv.Quote(s)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case []interface{}:
		parts := make([]string, len(v))
		for i, s := range v {
			parts[i] = tomlEncode(s)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case map[string]string:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, fmt.Sprintf("%s = %s", strconv.Quote(k), strconv.Quote(v[k])))
		}
		return "{ " + strings.Join(parts, ", ") + " }"
	default:
		return strconv.Quote(fmt.Sprintf("%v", v))
	}
}
