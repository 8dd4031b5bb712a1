// Package lockbuilder implements the lock-build expansion engine:
// resolving declared bases and features into pinned BaseConfig /
// InstallationConfig entities, then expanding every declared build into
// the Cartesian product of its base and feature-group choices.
package lockbuilder

import (
	"context"
	"fmt"
	"strings"

	"github.com/imagestack/imagestack/pkg/config"
	"github.com/imagestack/imagestack/pkg/console"
	"github.com/imagestack/imagestack/pkg/errors"
	"github.com/imagestack/imagestack/pkg/lock"
	"github.com/imagestack/imagestack/pkg/registryclient"
	"github.com/imagestack/imagestack/pkg/resolver"
	"github.com/imagestack/imagestack/pkg/template"
)

// namedActualVersions maps a declared name to its abstract -> concrete
// version table, merged across every definition that shares the name.
type namedActualVersions map[string]map[string]string

// Build resolves cfg into a canonical Lock: concrete base and feature
// versions, digest-pinned identifiers, and the full build expansion.
func Build(ctx context.Context, cfg *config.Config, res *resolver.Resolver, registry resolver.RegistryClient) (*lock.Lock, error) {
	actual, err := actualVersions(ctx, cfg, res)
	if err != nil {
		return nil, err
	}

	bases, err := baseConfigs(ctx, cfg, actual, registry)
	if err != nil {
		return nil, err
	}

	features, err := featureConfigs(cfg, actual)
	if err != nil {
		return nil, err
	}

	builds, err := individualBuilds(cfg, bases, features)
	if err != nil {
		return nil, err
	}

	l := &lock.Lock{
		Registry: cfg.Registry,
		Builds:   builds,
	}
	for _, b := range bases {
		l.Bases = append(l.Bases, b)
	}
	for _, f := range features {
		l.Features = append(l.Features, f)
	}
	l.Sort()
	return l, nil
}

func actualVersions(ctx context.Context, cfg *config.Config, res *resolver.Resolver) (namedActualVersions, error) {
	versions := make(namedActualVersions)
	for _, base := range cfg.Bases {
		resolved, err := res.ActualVersions(ctx, base.VersionedDefinition)
		if err != nil {
			return nil, err
		}
		merge(versions, base.Name, resolved)
	}
	for _, feature := range cfg.Features {
		resolved, err := res.ActualVersions(ctx, feature.VersionedDefinition)
		if err != nil {
			return nil, err
		}
		merge(versions, feature.Name, resolved)
	}
	return versions, nil
}

func merge(versions namedActualVersions, name string, resolved map[string]string) {
	existing, ok := versions[name]
	if !ok {
		versions[name] = resolved
		return
	}
	for k, v := range resolved {
		existing[k] = v
	}
}

func baseConfigs(ctx context.Context, cfg *config.Config, actual namedActualVersions, registry resolver.RegistryClient) (map[lock.SingleVersioned]lock.BaseConfig, error) {
	bases := make(map[lock.SingleVersioned]lock.BaseConfig)
	for _, base := range cfg.Bases {
		for _, abstractVersion := range base.Versions {
			concreteVersion, err := lookupActual(actual, base.Name, abstractVersion)
			if err != nil {
				return nil, err
			}

			var tag string
			if base.VersionTag != "" {
				tag, err = template.Render(base.VersionTag, concreteVersion)
				if err != nil {
					return nil, err
				}
			}

			image, err := template.Render(base.Image, concreteVersion)
			if err != nil {
				return nil, err
			}

			identifier, err := resolveIdentifier(ctx, registry, image)
			if err != nil {
				return nil, err
			}

			key := lock.SingleVersioned{Name: base.Name, Version: abstractVersion}
			bases[key] = lock.BaseConfig{
				Name:           base.Name,
				Version:        concreteVersion,
				Registry:       registryclient.Registry(image),
				Identifier:     identifier,
				PackageManager: base.PackageManager,
				Tag:            tag,
			}
		}
	}
	return bases, nil
}

func resolveIdentifier(ctx context.Context, registry resolver.RegistryClient, image string) (lock.ImageIdentifier, error) {
	digest, err := registry.Digest(ctx, image)
	if err == nil {
		return lock.DigestIdentifier(digest), nil
	}
	if tag := registryclient.Tag(image); tag != "" {
		console.Warn("No digest was found for %q, using tag %q instead.", image, tag)
		return lock.TagIdentifier(tag), nil
	}
	return lock.ImageIdentifier{}, errors.NewRegistryLookupError(image, false, err)
}

func featureConfigs(cfg *config.Config, actual namedActualVersions) (map[lock.SingleVersioned]lock.InstallationConfig, error) {
	features := make(map[lock.SingleVersioned]lock.InstallationConfig)
	for _, feature := range cfg.Features {
		for _, abstractVersion := range feature.Versions {
			concreteVersion, err := lookupActual(actual, feature.Name, abstractVersion)
			if err != nil {
				return nil, err
			}

			var tag string
			if feature.VersionTag != "" {
				tag, err = template.Render(feature.VersionTag, concreteVersion)
				if err != nil {
					return nil, err
				}
			}

			steps, err := populateSteps(feature.Steps, concreteVersion)
			if err != nil {
				return nil, err
			}

			key := lock.SingleVersioned{Name: feature.Name, Version: abstractVersion}
			features[key] = lock.InstallationConfig{
				Name:    feature.Name,
				Version: concreteVersion,
				Steps:   steps,
				Tag:     tag,
			}
		}
	}
	return features, nil
}

func populateSteps(steps []lock.Layer, version string) ([]lock.Layer, error) {
	populated := make([]lock.Layer, len(steps))
	for i, step := range steps {
		p := lock.Layer{LayerType: step.LayerType, Copy: step.Copy}
		p.Installation.Method = step.Installation.Method
		switch step.Installation.Method {
		case "docker":
			commands, err := renderAll(step.Installation.Docker.Commands, version)
			if err != nil {
				return nil, err
			}
			dependencies, err := renderAll(step.Installation.Docker.Dependencies, version)
			if err != nil {
				return nil, err
			}
			p.Installation.Docker = &lock.DockerInstallation{Commands: commands, Dependencies: dependencies}
		case "rpm":
			rendered := make(map[string]lock.RpmScript, len(step.Installation.Rpm))
			for key, method := range step.Installation.Rpm {
				script, err := renderAll(method.Script, version)
				if err != nil {
					return nil, err
				}
				rendered[key] = lock.RpmScript{Script: script}
			}
			p.Installation.Rpm = rendered
		}
		populated[i] = p
	}
	return populated, nil
}

func renderAll(templates []string, version string) ([]string, error) {
	out := make([]string, len(templates))
	for i, t := range templates {
		rendered, err := template.Render(t, version)
		if err != nil {
			return nil, err
		}
		out[i] = rendered
	}
	return out, nil
}

func lookupActual(actual namedActualVersions, name, abstractVersion string) (string, error) {
	byName, ok := actual[name]
	if !ok {
		return "", errors.Resolution(fmt.Sprintf("no resolved versions found for %q", name))
	}
	concrete, ok := byName[abstractVersion]
	if !ok {
		return "", errors.Resolution(fmt.Sprintf("version %q not resolved for %q", abstractVersion, name))
	}
	return concrete, nil
}

// individualBuilds expands every declared build into the Cartesian
// product of its base and feature-group choices.
func individualBuilds(cfg *config.Config, bases map[lock.SingleVersioned]lock.BaseConfig, features map[lock.SingleVersioned]lock.InstallationConfig) ([]lock.SingleBuild, error) {
	var builds []lock.SingleBuild
	for _, build := range cfg.Builds {
		baseVersioneds := expandDefinitions(cfg, build.Bases, true)

		featureTuples := cartesianFeatureGroups(cfg, build.FeatureGroups)

		for _, base := range baseVersioneds {
			baseConfig, ok := bases[base]
			if !ok {
				return nil, errors.Synthesis(fmt.Sprintf("unable to find base %q version %q", base.Name, base.Version))
			}
			for _, featureTuple := range featureTuples {
				featureConfigsForTuple := make([]lock.InstallationConfig, len(featureTuple))
				for i, f := range featureTuple {
					fc, ok := features[f]
					if !ok {
						return nil, errors.Synthesis(fmt.Sprintf("unable to find feature %q version %q", f.Name, f.Version))
					}
					featureConfigsForTuple[i] = fc
				}

				single, err := buildSingle(build, baseConfig, featureConfigsForTuple)
				if err != nil {
					return nil, err
				}
				builds = append(builds, single)
			}
		}
	}
	return builds, nil
}

func expandDefinitions(cfg *config.Config, defs []config.BuildDefinition, isBase bool) []lock.SingleVersioned {
	var out []lock.SingleVersioned
	for _, def := range defs {
		for _, v := range def.ExpandVersions(cfg, isBase) {
			out = append(out, lock.SingleVersioned{Name: def.Name, Version: v})
		}
	}
	return out
}

// cartesianFeatureGroups expands each feature group into a flat version
// list, then takes the Cartesian product across groups.
func cartesianFeatureGroups(cfg *config.Config, groups [][]config.BuildDefinition) [][]lock.SingleVersioned {
	var perGroup [][]lock.SingleVersioned
	for _, group := range groups {
		perGroup = append(perGroup, expandDefinitions(cfg, group, false))
	}
	return cartesianProduct(perGroup)
}

func cartesianProduct(groups [][]lock.SingleVersioned) [][]lock.SingleVersioned {
	result := [][]lock.SingleVersioned{{}}
	for _, group := range groups {
		var next [][]lock.SingleVersioned
		for _, partial := range result {
			for _, item := range group {
				combo := make([]lock.SingleVersioned, len(partial)+1)
				copy(combo, partial)
				combo[len(partial)] = item
				next = append(next, combo)
			}
		}
		result = next
	}
	return result
}

func buildSingle(build config.Build, base lock.BaseConfig, features []lock.InstallationConfig) (lock.SingleBuild, error) {
	baseVersioned := base.SingleVersioned()
	featureVersioneds := make([]lock.SingleVersioned, len(features))
	for i, f := range features {
		featureVersioneds[i] = f.SingleVersioned()
	}

	imageName, err := template.RenderName(build.ImageName, baseVersioned, featureVersioneds)
	if err != nil {
		return lock.SingleBuild{}, err
	}
	imageTag, err := template.RenderName(build.ImageTag, baseVersioned, featureVersioneds)
	if err != nil {
		return lock.SingleBuild{}, err
	}

	var tags []string
	if base.Tag != "" {
		tags = append(tags, base.Tag)
	}
	for _, f := range features {
		if f.Tag != "" {
			tags = append(tags, f.Tag)
		}
	}

	return lock.SingleBuild{
		Base:      baseVersioned,
		Features:  featureVersioneds,
		Target:    strings.Join(tags, "-"),
		ImageName: imageName,
		ImageTag:  imageTag,
	}, nil
}
