// Package lock implements the resolved lock model: the pinned bases,
// installation configs, and expanded single builds that a lock-build
// produces, plus its canonical serialization.
package lock

import (
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v2"
)

// SingleVersioned is the fundamental (name, version) identity used across
// the system. Ordering is lexicographic on "{name}-{version}".
type SingleVersioned struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

func (v SingleVersioned) String() string {
	return fmt.Sprintf("%s-%s", v.Name, v.Version)
}

func sortKey(name, version string) string {
	return name + "-" + version
}

// ImageIdentifier pins a base image either by content digest (preferred)
// or by tag (fallback when a digest lookup fails).
type ImageIdentifier struct {
	Type   string `yaml:"type"`
	Tag    string `yaml:"tag,omitempty"`
	Digest string `yaml:"digest,omitempty"`
}

func TagIdentifier(tag string) ImageIdentifier {
	return ImageIdentifier{Type: "tag", Tag: tag}
}

func DigestIdentifier(digest string) ImageIdentifier {
	return ImageIdentifier{Type: "digest", Digest: digest}
}

func (i ImageIdentifier) String() string {
	if i.Type == "digest" {
		return "@" + i.Digest
	}
	return ":" + i.Tag
}

// BaseConfig is a fully resolved base: a concrete version, its registry,
// its pinned identifier, and the package manager used to key RPM-style
// feature installs against it.
type BaseConfig struct {
	Name           string          `yaml:"name"`
	Version        string          `yaml:"version"`
	Registry       string          `yaml:"registry"`
	Identifier     ImageIdentifier `yaml:"identifier"`
	PackageManager string          `yaml:"package-manager"`
	Tag            string          `yaml:"tag,omitempty"`
}

func (b BaseConfig) SingleVersioned() SingleVersioned {
	return SingleVersioned{Name: b.Name, Version: b.Version}
}

// LayerType distinguishes ephemeral build-only layers from layers that
// participate in the main linear dependency chain.
type LayerType string

const (
	LayerBuild  LayerType = "build"
	LayerActual LayerType = "actual"
)

// Installation is the tagged union of installation methods a step may
// carry: a literal docker recipe, or an RPM-style package-manager-keyed
// script map. The wire format flattens this into the owning Layer, tagged
// by a "method" discriminator, the same shape the teacher's RunItem union
// uses for its own string-or-map flattening.
type Installation struct {
	Method string
	Docker *DockerInstallation
	Rpm    map[string]RpmScript
}

type DockerInstallation struct {
	Commands     []string `yaml:"commands"`
	Dependencies []string `yaml:"dependencies,omitempty"`
}

type RpmScript struct {
	Script []string `yaml:"script"`
}

// Layer is one installation step: its layer kind, installation recipe,
// and the cross-stage copy map it contributes to later stages.
type Layer struct {
	LayerType    LayerType
	Installation Installation
	Copy         map[string]string
}

type layerWire struct {
	Type         LayerType            `yaml:"type,omitempty"`
	Method       string               `yaml:"method"`
	Commands     []string             `yaml:"commands,omitempty"`
	Dependencies []string             `yaml:"dependencies,omitempty"`
	Rpm          map[string]RpmScript `yaml:"rpm,omitempty"`
	Copy         map[string]string    `yaml:"copy,omitempty"`
}

func (l Layer) MarshalYAML() (interface{}, error) {
	w := layerWire{Type: l.LayerType, Method: l.Installation.Method, Copy: l.Copy}
	if w.Type == "" {
		w.Type = LayerActual
	}
	switch l.Installation.Method {
	case "docker":
		w.Commands = l.Installation.Docker.Commands
		w.Dependencies = l.Installation.Docker.Dependencies
	case "rpm":
		w.Rpm = l.Installation.Rpm
	}
	return w, nil
}

func (l *Layer) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var w layerWire
	if err := unmarshal(&w); err != nil {
		return err
	}
	l.LayerType = w.Type
	if l.LayerType == "" {
		l.LayerType = LayerActual
	}
	l.Copy = w.Copy
	l.Installation.Method = w.Method
	switch w.Method {
	case "docker":
		l.Installation.Docker = &DockerInstallation{Commands: w.Commands, Dependencies: w.Dependencies}
	case "rpm":
		l.Installation.Rpm = w.Rpm
	default:
		return fmt.Errorf("unknown installation method %q", w.Method)
	}
	return nil
}

// InstallationConfig is a fully resolved feature: all step templates
// already populated against the concrete version.
type InstallationConfig struct {
	Name    string  `yaml:"name"`
	Version string  `yaml:"version"`
	Steps   []Layer `yaml:"step,omitempty"`
	Tag     string  `yaml:"tag,omitempty"`
}

func (f InstallationConfig) SingleVersioned() SingleVersioned {
	return SingleVersioned{Name: f.Name, Version: f.Version}
}

// SingleBuild is one expanded build target: a base, an ordered feature
// list, the derived stage-tag target, and the rendered image name/tag.
type SingleBuild struct {
	Base      SingleVersioned   `yaml:"base"`
	Features  []SingleVersioned `yaml:"features,omitempty"`
	Target    string            `yaml:"target"`
	ImageName string            `yaml:"image-name"`
	ImageTag  string            `yaml:"image-tag"`
}

func (b SingleBuild) String() string {
	names := make([]string, len(b.Features))
	for i, f := range b.Features {
		names[i] = f.String()
	}
	return strings.TrimSpace(b.Base.String() + " " + strings.Join(names, " "))
}

// Lock is the canonical, resolved lock artifact.
type Lock struct {
	Registry string                `yaml:"registry"`
	Bases    []BaseConfig          `yaml:"base,omitempty"`
	Features []InstallationConfig  `yaml:"feature,omitempty"`
	Builds   []SingleBuild         `yaml:"build,omitempty"`
}

// Base looks up a locked base by its (name, concrete version) identity.
func (l *Lock) Base(target SingleVersioned) (*BaseConfig, bool) {
	for i := range l.Bases {
		if l.Bases[i].Name == target.Name && l.Bases[i].Version == target.Version {
			return &l.Bases[i], true
		}
	}
	return nil, false
}

// Feature looks up a locked feature by its (name, concrete version) identity.
func (l *Lock) Feature(target SingleVersioned) (*InstallationConfig, bool) {
	for i := range l.Features {
		if l.Features[i].Name == target.Name && l.Features[i].Version == target.Version {
			return &l.Features[i], true
		}
	}
	return nil, false
}

// PackageManagerFor returns the package manager declared for a base, so
// that feature RPM installs can be keyed against it.
func (l *Lock) PackageManagerFor(target SingleVersioned) (string, bool) {
	base, ok := l.Base(target)
	if !ok {
		return "", false
	}
	return base.PackageManager, true
}

// Sort puts bases and features into canonical "{name}-{version}" order, the
// serialization order spec.md requires for reproducible locks.
func (l *Lock) Sort() {
	sort.Slice(l.Bases, func(i, j int) bool {
		return sortKey(l.Bases[i].Name, l.Bases[i].Version) < sortKey(l.Bases[j].Name, l.Bases[j].Version)
	})
	sort.Slice(l.Features, func(i, j int) bool {
		return sortKey(l.Features[i].Name, l.Features[i].Version) < sortKey(l.Features[j].Name, l.Features[j].Version)
	})
}

// Marshal serializes the lock in canonical, sorted form.
func (l *Lock) Marshal() ([]byte, error) {
	l.Sort()
	return yaml.Marshal(l)
}

// Unmarshal parses a canonical lock document.
func Unmarshal(data []byte) (*Lock, error) {
	var l Lock
	if err := yaml.UnmarshalStrict(data, &l); err != nil {
		return nil, fmt.Errorf("parsing lock: %w", err)
	}
	return &l, nil
}

// TargetsSidecar renders the plain-text sidecar of build targets, one per
// line, in build-declaration order.
func (l *Lock) TargetsSidecar() string {
	targets := make([]string, len(l.Builds))
	for i, b := range l.Builds {
		targets[i] = b.Target
	}
	return strings.Join(targets, "\n")
}
