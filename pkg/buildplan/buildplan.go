// Package buildplan implements the multi-stage build-plan synthesizer:
// turning a resolved lock into an ordered sequence of build-file
// directives, with correctly threaded stage names, cross-stage COPY
// directives, and build/actual layer semantics.
package buildplan

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/imagestack/imagestack/pkg/errors"
	"github.com/imagestack/imagestack/pkg/lock"
)

// Plan is a synthesized build file: its ordered directive lines, plus the
// deduplicated set of local build-context dependency paths it references.
type Plan struct {
	Lines        []string
	Dependencies []string
}

var unsafeStageChars = regexp.MustCompile(`[^a-z0-9_.-]+`)

// sanitize derives a Docker-legal stage name from arbitrary text. Used to
// name the base stage when no tag is set, replacing the source's literal
// "temp" fallback (which collides whenever two untagged bases appear in
// the same aggregated build file) with a name stable per (name, version).
func sanitize(s string) string {
	return unsafeStageChars.ReplaceAllString(strings.ToLower(s), "-")
}

func baseStageName(base lock.BaseConfig) string {
	if base.Tag != "" {
		return base.Tag
	}
	return sanitize(fmt.Sprintf("%s-%s", base.Name, base.Version))
}

// copyTable accumulates the COPY --from=<step> directives contributed by
// each step of one feature's installation, keyed by the step that
// produced them.
type copyTable map[string]map[string]string

// lines renders the table in the canonical order spec.md's open question
// requires: sorted by step name, then by source path, so stage output is
// byte-reproducible regardless of map iteration order.
func (t copyTable) lines() []string {
	stepNames := make([]string, 0, len(t))
	for name := range t {
		stepNames = append(stepNames, name)
	}
	sort.Strings(stepNames)

	var out []string
	for _, step := range stepNames {
		paths := make([]string, 0, len(t[step]))
		for src := range t[step] {
			paths = append(paths, src)
		}
		sort.Strings(paths)
		for _, src := range paths {
			out = append(out, fmt.Sprintf("COPY --from=%s %s %s", step, src, t[step][src]))
		}
	}
	return out
}

// synth accumulates output across one or more builds.
type synth struct {
	lines        []string
	dependencies map[string]struct{}
	seen         map[string]bool // nil disables stage-name dedup (single-target mode)
}

func newSynth(seen map[string]bool) *synth {
	return &synth{dependencies: make(map[string]struct{}), seen: seen}
}

// emit appends lines for stageName unless aggregated-mode dedup has
// already seen it.
func (s *synth) emit(stageName string, newLines []string) {
	if s.seen != nil {
		if s.seen[stageName] {
			return
		}
		s.seen[stageName] = true
	}
	s.lines = append(s.lines, newLines...)
}

func (s *synth) addDependency(path string) {
	if path != "" {
		s.dependencies[path] = struct{}{}
	}
}

func (s *synth) sortedDependencies() []string {
	out := make([]string, 0, len(s.dependencies))
	for d := range s.dependencies {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}

// build synthesizes every stage for one SingleBuild, threading the
// base -> feature-chain -> tag stage sequence.
func (s *synth) build(l *lock.Lock, b lock.SingleBuild) error {
	base, ok := l.Base(b.Base)
	if !ok {
		return errors.Synthesis(fmt.Sprintf("base %q-%q is missing from the lock", b.Base.Name, b.Base.Version))
	}

	stageName := baseStageName(*base)
	s.emit(stageName, []string{
		fmt.Sprintf("FROM %s%s as %s", base.Registry, base.Identifier, stageName),
	})
	prevLayer := stageName

	for _, featureRef := range b.Features {
		feature, ok := l.Feature(featureRef)
		if !ok {
			return errors.Synthesis(fmt.Sprintf("feature %q-%q is missing from the lock", featureRef.Name, featureRef.Version))
		}
		next, err := s.feature(base.PackageManager, *feature, prevLayer)
		if err != nil {
			return err
		}
		prevLayer = next
	}

	s.emit(b.Target, []string{fmt.Sprintf("FROM %s as %s", prevLayer, b.Target)})
	return nil
}

// feature emits the installation layer chain for one feature and returns
// the name of its final merge stage.
func (s *synth) feature(packageManager string, feature lock.InstallationConfig, prevLayer string) (string, error) {
	finalLayerName := strings.ToLower(fmt.Sprintf("%s-%s-%s-final", prevLayer, feature.Name, feature.Version))

	copies := make(copyTable)
	buildPrev := prevLayer
	ephemeralPrev := prevLayer

	for i, step := range feature.Steps {
		stepName := fmt.Sprintf("%s-build-%d", finalLayerName, i)

		var src string
		if step.LayerType == lock.LayerActual {
			src = buildPrev
			buildPrev = stepName
		} else {
			src = ephemeralPrev
			ephemeralPrev = stepName
		}

		stepLines := []string{fmt.Sprintf("FROM %s as %s", src, stepName)}
		stepLines = append(stepLines, copies.lines()...)

		installLines, deps, err := installationLines(packageManager, step.Installation)
		if err != nil {
			return "", err
		}
		stepLines = append(stepLines, installLines...)
		for _, d := range deps {
			s.addDependency(d)
		}

		s.emit(stepName, stepLines)
		copies[stepName] = step.Copy
	}

	finalLines := []string{fmt.Sprintf("FROM %s as %s", buildPrev, finalLayerName)}
	finalLines = append(finalLines, copies.lines()...)
	s.emit(finalLayerName, finalLines)

	return finalLayerName, nil
}

// installationLines renders one step's installation recipe into Dockerfile
// body lines, plus any local build-context dependencies it contributes.
func installationLines(packageManager string, installation lock.Installation) ([]string, []string, error) {
	switch installation.Method {
	case "docker":
		return installation.Docker.Commands, installation.Docker.Dependencies, nil
	case "rpm":
		method, ok := installation.Rpm[packageManager]
		if !ok {
			return nil, nil, errors.Synthesis(fmt.Sprintf("no installation instructions for package manager %q", packageManager))
		}
		if len(method.Script) == 0 {
			return nil, nil, nil
		}
		return []string{"RUN " + strings.Join(method.Script, " && \\\n")}, nil, nil
	default:
		return nil, nil, errors.Synthesis(fmt.Sprintf("unknown installation method %q", installation.Method))
	}
}

// SynthesizeBuild runs single-target mode: stages for exactly one build,
// with no cross-build stage-name deduplication.
func SynthesizeBuild(l *lock.Lock, build lock.SingleBuild) (*Plan, error) {
	s := newSynth(nil)
	if err := s.build(l, build); err != nil {
		return nil, err
	}
	return &Plan{Lines: s.lines, Dependencies: s.sortedDependencies()}, nil
}

// SynthesizeAll runs aggregated mode: stages for every build in the lock,
// deduplicating any stage name already emitted by an earlier build.
func SynthesizeAll(l *lock.Lock) (*Plan, error) {
	s := newSynth(make(map[string]bool))
	for _, build := range l.Builds {
		if err := s.build(l, build); err != nil {
			return nil, err
		}
	}
	return &Plan{Lines: s.lines, Dependencies: s.sortedDependencies()}, nil
}
