package lockbuilder

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imagestack/imagestack/pkg/config"
	"github.com/imagestack/imagestack/pkg/resolver"
)

type fakeRegistry struct {
	digests map[string]string
}

func (f *fakeRegistry) Pull(ctx context.Context, image string) error { return nil }

func (f *fakeRegistry) Digest(ctx context.Context, image string) (string, error) {
	if d, ok := f.digests[image]; ok {
		return d, nil
	}
	return "", assertErr{image}
}

func (f *fakeRegistry) RunCommand(ctx context.Context, image string, command []string) ([]string, error) {
	return []string{"resolved"}, nil
}

func (f *fakeRegistry) BuildImage(ctx context.Context, tag string, buildContext io.Reader) error {
	return nil
}

type assertErr struct{ image string }

func (e assertErr) Error() string { return "no digest for " + e.image }

// TestCartesianExpansion mirrors scenario S3: bases=[b{versions:[1,2]}],
// feature_groups=[[f{versions:[x]}],[g{versions:[y,z]}]] -> 4 builds.
func TestCartesianExpansion(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{
		Registry: "r",
		Bases: []config.BaseDefinition{
			{VersionedDefinition: config.VersionedDefinition{Versioned: config.Versioned{Name: "b", Versions: []string{"1", "2"}}}, Image: "b:{{.version}}", PackageManager: "pm"},
		},
		Features: []config.FeatureDefinition{
			{VersionedDefinition: config.VersionedDefinition{Versioned: config.Versioned{Name: "f", Versions: []string{"x"}}}},
			{VersionedDefinition: config.VersionedDefinition{Versioned: config.Versioned{Name: "g", Versions: []string{"y", "z"}}}},
		},
		Builds: []config.Build{
			{
				Bases: []config.BuildDefinition{namedDef("b")},
				FeatureGroups: [][]config.BuildDefinition{
					{namedDef("f")},
					{namedDef("g")},
				},
				ImageName: "n",
				ImageTag:  "t",
			},
		},
	}

	registry := &fakeRegistry{digests: map[string]string{}}
	res := resolver.New(registry, nil)

	l, err := Build(context.Background(), cfg, res, registry)
	require.NoError(t, err)
	assert.Len(t, l.Builds, 4)
}

func namedDef(name string) config.BuildDefinition {
	var bd config.BuildDefinition
	_ = bd.UnmarshalYAML(func(v interface{}) error {
		*(v.(*interface{})) = name
		return nil
	})
	return bd
}
