package config

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v2"
)

func TestLoadParsesBasesFeaturesAndBuilds(t *testing.T) {
	t.Parallel()

	doc := []byte(`
registry: registry.example.com
base:
  - name: python
    versions: ["3.10", "3.11"]
    image: "python:{{.version}}"
    package-manager: apt
feature:
  - name: torch
    versions: ["2.1"]
    step:
      - method: docker
        commands: ["pip install torch"]
build:
  - bases: [python]
    features:
      - [torch]
    image-name: "my/{{.base.name}}"
    image-tag: "{{.base.v.version}}"
`)

	cfg, err := Load(doc)
	require.NoError(t, err)
	require.Equal(t, "registry.example.com", cfg.Registry)
	require.Len(t, cfg.Bases, 1)
	require.Equal(t, []string{"3.10", "3.11"}, cfg.Bases[0].Versions)
	require.Len(t, cfg.Features, 1)
	require.Len(t, cfg.Builds, 1)
	require.Equal(t, "python", cfg.Builds[0].Bases[0].Name)
	require.False(t, cfg.Builds[0].Bases[0].Inline())
}

func TestLoadRejectsUnknownTopLevelKeys(t *testing.T) {
	t.Parallel()

	_, err := Load([]byte("registry: r\nbogus: true\n"))
	require.Error(t, err)
}

func TestFetchVersionDockerRoundTrips(t *testing.T) {
	t.Parallel()

	doc := []byte(`
type: docker
image: "python:{{.version}}"
command: ["python", "--version"]
`)
	var f FetchVersion
	require.NoError(t, yaml.Unmarshal(doc, &f))
	require.Equal(t, "docker", f.Type)
	require.Equal(t, "python:{{.version}}", f.Docker.Image)

	out, err := yaml.Marshal(f)
	require.NoError(t, err)

	var roundTripped FetchVersion
	require.NoError(t, yaml.Unmarshal(out, &roundTripped))
	require.Equal(t, f.Docker.Image, roundTripped.Docker.Image)
}

func TestFetchVersionGithubDefaultsVersionFromToTag(t *testing.T) {
	t.Parallel()

	var f FetchVersion
	require.NoError(t, yaml.Unmarshal([]byte("type: github\norg: acme\nproject: widget\n"), &f))
	require.Equal(t, VersionFromTag, f.Github.VersionFrom)
}

func TestFetchVersionUnmarshalRejectsUnknownType(t *testing.T) {
	t.Parallel()

	var f FetchVersion
	err := yaml.Unmarshal([]byte("type: carrier-pigeon\n"), &f)
	require.Error(t, err)
}

func TestBuildDefinitionBareNameVsInline(t *testing.T) {
	t.Parallel()

	var bare BuildDefinition
	require.NoError(t, yaml.Unmarshal([]byte(`python`), &bare))
	require.Equal(t, "python", bare.Name)
	require.False(t, bare.Inline())

	var inline BuildDefinition
	require.NoError(t, yaml.Unmarshal([]byte("name: python\nversions: [\"3.12\"]\n"), &inline))
	require.Equal(t, "python", inline.Name)
	require.Equal(t, []string{"3.12"}, inline.Versions)
	require.True(t, inline.Inline())
}

func TestBuildDefinitionExpandVersions(t *testing.T) {
	t.Parallel()

	cfg := &Config{Bases: []BaseDefinition{
		{VersionedDefinition: VersionedDefinition{Versioned: Versioned{Name: "python", Versions: []string{"3.10", "3.11"}}}},
	}}

	var bare BuildDefinition
	require.NoError(t, yaml.Unmarshal([]byte(`python`), &bare))
	require.Equal(t, []string{"3.10", "3.11"}, bare.ExpandVersions(cfg, true))

	var inline BuildDefinition
	require.NoError(t, yaml.Unmarshal([]byte("name: python\nversions: [\"3.12\"]\n"), &inline))
	require.Equal(t, []string{"3.12"}, inline.ExpandVersions(cfg, true))
}
