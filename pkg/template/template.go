// Package template implements the two rendering operations the system
// performs on version strings: substituting a single version into a
// generic template, and rendering a build's image-name/image-tag template
// against the full base+feature scope.
package template

import (
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/Masterminds/sprig/v3"

	"github.com/imagestack/imagestack/pkg/errors"
	"github.com/imagestack/imagestack/pkg/lock"
	"github.com/imagestack/imagestack/pkg/version"
)

func newEngine(name string) *template.Template {
	return template.New(name).Option("missingkey=error").Funcs(sprig.TxtFuncMap())
}

func versionScope(v string) map[string]interface{} {
	return map[string]interface{}{
		"version":  v,
		"versions": version.Split(v),
	}
}

// Render substitutes a single version into tmpl. The scope exposes the
// whole version string as "version" and its token sequence as "versions".
// Rendering fails hard on any placeholder the scope doesn't define.
func Render(tmpl string, v string) (string, error) {
	t, err := newEngine("render").Parse(tmpl)
	if err != nil {
		return "", errors.Config(fmt.Sprintf("parsing template %q: %s", tmpl, err))
	}
	var out strings.Builder
	if err := t.Execute(&out, versionScope(v)); err != nil {
		return "", errors.Config(fmt.Sprintf("rendering template %q for version %q: %s", tmpl, v, err))
	}
	return out.String(), nil
}

// RenderAll applies Render to every entry in versions, returning a map
// keyed by the original (abstract) version string.
func RenderAll(tmpl string, versions []string) (map[string]string, error) {
	out := make(map[string]string, len(versions))
	for _, v := range versions {
		rendered, err := Render(tmpl, v)
		if err != nil {
			return nil, err
		}
		out[v] = rendered
	}
	return out, nil
}

// RenderName renders a build name or tag template against the full scope:
// each component bound to {version, versions}, a "base" binding of
// {name, v:{version, versions}}, and a non-deterministic "date" binding of
// the form YY-MM-DD taken from the wall clock. Date insertion means this
// call is not deterministic across days; date-stamped tags are part of
// the output contract.
func RenderName(tmpl string, base lock.SingleVersioned, features []lock.SingleVersioned) (string, error) {
	scope := make(map[string]interface{}, len(features)+2)
	for _, f := range features {
		scope[f.Name] = versionScope(f.Version)
	}
	scope[base.Name] = versionScope(base.Version)
	scope["base"] = map[string]interface{}{
		"name": base.Name,
		"v":    versionScope(base.Version),
	}
	scope["date"] = time.Now().Format("06-01-02")

	t, err := newEngine("render-name").Parse(tmpl)
	if err != nil {
		return "", errors.Config(fmt.Sprintf("parsing template %q: %s", tmpl, err))
	}
	var out strings.Builder
	if err := t.Execute(&out, scope); err != nil {
		return "", errors.Config(fmt.Sprintf("rendering template %q for base %q: %s", tmpl, base.Name, err))
	}
	return out.String(), nil
}
