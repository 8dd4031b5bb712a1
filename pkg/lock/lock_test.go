package lock

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func sampleLock() *Lock {
	return &Lock{
		Registry: "registry.example.com",
		Bases: []BaseConfig{
			{Name: "python", Version: "3.11.9", Registry: "registry.example.com/python", Identifier: DigestIdentifier("sha256:abc"), PackageManager: "apt", Tag: "3.11"},
		},
		Features: []InstallationConfig{
			{
				Name:    "torch",
				Version: "2.1.0",
				Steps: []Layer{
					{
						LayerType:    LayerBuild,
						Installation: Installation{Method: "docker", Docker: &DockerInstallation{Commands: []string{"pip install torch"}}},
						Copy:         map[string]string{"/out": "/in"},
					},
					{
						LayerType:    LayerActual,
						Installation: Installation{Method: "rpm", Rpm: map[string]RpmScript{"apt": {Script: []string{"apt-get install -y libtorch"}}}},
					},
				},
			},
		},
		Builds: []SingleBuild{
			{
				Base:      SingleVersioned{Name: "python", Version: "3.11.9"},
				Features:  []SingleVersioned{{Name: "torch", Version: "2.1.0"}},
				Target:    "torch-final",
				ImageName: "my/image",
				ImageTag:  "3.11.9-2.1.0",
			},
		},
	}
}

// TestMarshalUnmarshalRoundTrips covers property 7: serializing and
// reparsing a lock yields an equivalent lock.
func TestMarshalUnmarshalRoundTrips(t *testing.T) {
	t.Parallel()

	l := sampleLock()
	data, err := l.Marshal()
	require.NoError(t, err)

	parsed, err := Unmarshal(data)
	require.NoError(t, err)
	require.Equal(t, l, parsed)
}

func TestMarshalIsIdempotentAcrossRepeatedCalls(t *testing.T) {
	t.Parallel()

	l := sampleLock()
	first, err := l.Marshal()
	require.NoError(t, err)
	second, err := l.Marshal()
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestSortOrdersBasesAndFeaturesCanonically(t *testing.T) {
	t.Parallel()

	l := &Lock{
		Bases: []BaseConfig{
			{Name: "python", Version: "3.9"},
			{Name: "python", Version: "3.11"},
			{Name: "node", Version: "20"},
		},
	}
	l.Sort()
	require.Equal(t, "node", l.Bases[0].Name)
	require.Equal(t, "python", l.Bases[1].Name)
	require.Equal(t, "3.11", l.Bases[1].Version)
}

func TestLayerUnmarshalRejectsUnknownMethod(t *testing.T) {
	t.Parallel()

	var l Layer
	err := l.UnmarshalYAML(func(v interface{}) error {
		*(v.(*layerWire)) = layerWire{Method: "rsync"}
		return nil
	})
	require.Error(t, err)
}

func TestTargetsSidecarJoinsInDeclarationOrder(t *testing.T) {
	t.Parallel()

	l := &Lock{Builds: []SingleBuild{{Target: "a"}, {Target: "b"}}}
	require.Equal(t, "a\nb", l.TargetsSidecar())
}
