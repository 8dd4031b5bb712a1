// Package config implements the raw, human-authored configuration model:
// bases, features, and the build matrix to expand. Field naming on the
// wire is kebab-case; unknown top-level keys are rejected.
package config

import (
	"fmt"

	"gopkg.in/yaml.v2"

	"github.com/imagestack/imagestack/pkg/errors"
	"github.com/imagestack/imagestack/pkg/lock"
)

// Config is the top-level document: registry, bases, features, builds.
type Config struct {
	Registry string             `yaml:"registry"`
	Bases    []BaseDefinition   `yaml:"base,omitempty"`
	Features []FeatureDefinition `yaml:"feature,omitempty"`
	Builds   []Build            `yaml:"build,omitempty"`
}

// Versioned names an entity and the abstract versions declared for it.
type Versioned struct {
	Name     string   `yaml:"name"`
	Versions []string `yaml:"versions"`
}

// VersionedDefinition is the shared shape of a base or feature
// declaration: its versions, an optional tag template, and an optional
// fetch-version method used to resolve abstract versions to concrete ones.
type VersionedDefinition struct {
	Versioned    `yaml:",inline"`
	VersionTag   string        `yaml:"version-tag,omitempty"`
	FetchVersion *FetchVersion `yaml:"fetch-version,omitempty"`
}

// BaseDefinition declares one base image family.
type BaseDefinition struct {
	VersionedDefinition `yaml:",inline"`
	Image               string `yaml:"image"`
	PackageManager      string `yaml:"package-manager"`
}

// FeatureDefinition declares one feature's installation recipe.
type FeatureDefinition struct {
	VersionedDefinition `yaml:",inline"`
	Steps               []lock.Layer `yaml:"step,omitempty"`
}

// FetchVersion is the tagged union of ways to discover a concrete version
// for an abstract one: running a command inside a registry image, or
// looking up a tag/branch on a source host.
type FetchVersion struct {
	Type   string                `yaml:"type"`
	Docker *DockerFetchVersion   `yaml:"-"`
	Github *GithubFetchVersion   `yaml:"-"`
}

type DockerFetchVersion struct {
	Image   string   `yaml:"image"`
	Command []string `yaml:"command"`
}

// VersionFrom selects whether a source-host fetch walks tags or branches.
type VersionFrom string

const (
	VersionFromTag    VersionFrom = "tag"
	VersionFromBranch VersionFrom = "branch"
)

type GithubFetchVersion struct {
	Org         string      `yaml:"org"`
	Project     string      `yaml:"project"`
	VersionFrom VersionFrom `yaml:"version-from,omitempty"`
}

// UnmarshalYAML dispatches on the "type" discriminator the way the
// teacher's RunItem union does it: decode once into a generic map, then
// re-decode the typed fields it needs.
func (f *FetchVersion) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var raw map[string]interface{}
	if err := unmarshal(&raw); err != nil {
		return err
	}
	kind, _ := raw["type"].(string)
	data, err := yaml.Marshal(raw)
	if err != nil {
		return err
	}
	switch kind {
	case "docker":
		var d DockerFetchVersion
		if err := yaml.Unmarshal(data, &d); err != nil {
			return err
		}
		f.Type = "docker"
		f.Docker = &d
	case "github":
		var g GithubFetchVersion
		if g.VersionFrom == "" {
			g.VersionFrom = VersionFromTag
		}
		if err := yaml.Unmarshal(data, &g); err != nil {
			return err
		}
		if g.VersionFrom == "" {
			g.VersionFrom = VersionFromTag
		}
		f.Type = "github"
		f.Github = &g
	default:
		return errors.Config(fmt.Sprintf("unknown fetch-version type %q", kind))
	}
	return nil
}

func (f FetchVersion) MarshalYAML() (interface{}, error) {
	switch f.Type {
	case "docker":
		return struct {
			Type  string `yaml:"type"`
			Image string `yaml:"image"`
			Command []string `yaml:"command"`
		}{"docker", f.Docker.Image, f.Docker.Command}, nil
	case "github":
		return struct {
			Type        string      `yaml:"type"`
			Org         string      `yaml:"org"`
			Project     string      `yaml:"project"`
			VersionFrom VersionFrom `yaml:"version-from,omitempty"`
		}{"github", f.Github.Org, f.Github.Project, f.Github.VersionFrom}, nil
	default:
		return nil, errors.Config("fetch-version has no type set")
	}
}

// BuildDefinition is either a bare name (expanded to all declared versions
// of that name) or an inline name+versions override.
type BuildDefinition struct {
	Name     string
	Versions []string
	inline   bool
}

func (b BuildDefinition) Inline() bool { return b.inline }

func (b *BuildDefinition) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var nameOrVersioned interface{}
	if err := unmarshal(&nameOrVersioned); err != nil {
		return err
	}
	switch v := nameOrVersioned.(type) {
	case string:
		b.Name = v
		b.inline = false
	case map[interface{}]interface{}:
		data, err := yaml.Marshal(v)
		if err != nil {
			return err
		}
		var versioned Versioned
		if err := yaml.Unmarshal(data, &versioned); err != nil {
			return err
		}
		b.Name = versioned.Name
		b.Versions = versioned.Versions
		b.inline = true
	default:
		return errors.Config(fmt.Sprintf("unexpected type %T for build entry", v))
	}
	return nil
}

func (b BuildDefinition) MarshalYAML() (interface{}, error) {
	if !b.inline {
		return b.Name, nil
	}
	return Versioned{Name: b.Name, Versions: b.Versions}, nil
}

// Build is one requested Cartesian expansion: a base set, ordered feature
// groups, and the templates used to name the resulting images.
type Build struct {
	Bases        []BuildDefinition   `yaml:"bases"`
	FeatureGroups [][]BuildDefinition `yaml:"features"`
	ImageName    string              `yaml:"image-name"`
	ImageTag     string              `yaml:"image-tag"`
}

// Load parses a configuration document, rejecting unknown top-level keys.
func Load(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.UnmarshalStrict(data, &cfg); err != nil {
		return nil, errors.Config(fmt.Sprintf("parsing configuration: %s", err))
	}
	return &cfg, nil
}

// BaseVersions returns the declared abstract versions for a base name.
func (c *Config) BaseVersions(name string) []string {
	var versions []string
	for _, b := range c.Bases {
		if b.Name == name {
			versions = append(versions, b.Versions...)
		}
	}
	return versions
}

// FeatureVersions returns the declared abstract versions for a feature name.
func (c *Config) FeatureVersions(name string) []string {
	var versions []string
	for _, f := range c.Features {
		if f.Name == name {
			versions = append(versions, f.Versions...)
		}
	}
	return versions
}

// ExpandVersions resolves a BuildDefinition to its concrete version list:
// its own inline versions if set, else the declared versions for its name.
func (bd BuildDefinition) ExpandVersions(c *Config, isBase bool) []string {
	if bd.inline {
		return bd.Versions
	}
	if isBase {
		return c.BaseVersions(bd.Name)
	}
	return c.FeatureVersions(bd.Name)
}
