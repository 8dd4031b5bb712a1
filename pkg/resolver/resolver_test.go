package resolver

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/imagestack/imagestack/pkg/config"
)

type fakeRegistry struct {
	commandOutput map[string][]string
}

func (f *fakeRegistry) Pull(ctx context.Context, image string) error { return nil }

func (f *fakeRegistry) Digest(ctx context.Context, image string) (string, error) {
	return "sha256:deadbeef", nil
}

func (f *fakeRegistry) RunCommand(ctx context.Context, image string, command []string) ([]string, error) {
	return f.commandOutput[image], nil
}

func (f *fakeRegistry) BuildImage(ctx context.Context, tag string, buildContext io.Reader) error {
	return nil
}

type fakeSourceHost struct {
	tagPages    map[int][]string
	branchPages map[int][]string
}

func (f *fakeSourceHost) ListTags(ctx context.Context, org, project string, page int) ([]string, error) {
	return f.tagPages[page], nil
}

func (f *fakeSourceHost) ListBranches(ctx context.Context, org, project string, page int) ([]string, error) {
	return f.branchPages[page], nil
}

func (f *fakeSourceHost) BranchPageCount(ctx context.Context, org, project string) (int, error) {
	return len(f.branchPages), nil
}

func TestActualVersionsIdentityWhenNoFetchVersion(t *testing.T) {
	t.Parallel()

	r := New(&fakeRegistry{}, &fakeSourceHost{})
	def := config.VersionedDefinition{Versioned: config.Versioned{Name: "n", Versions: []string{"3.11", "3.10"}}}

	actual, err := r.ActualVersions(context.Background(), def)
	require.NoError(t, err)
	require.Equal(t, map[string]string{"3.11": "3.11", "3.10": "3.10"}, actual)
}

func TestActualVersionsDockerFetchRunsCommand(t *testing.T) {
	t.Parallel()

	registry := &fakeRegistry{commandOutput: map[string][]string{
		"python:3.11": {"ignored", "3.11.9"},
	}}
	r := New(registry, &fakeSourceHost{})

	def := config.VersionedDefinition{
		Versioned: config.Versioned{Name: "python", Versions: []string{"3.11"}},
		FetchVersion: &config.FetchVersion{
			Type: "docker",
			Docker: &config.DockerFetchVersion{
				Image:   "python:{{.version}}",
				Command: []string{"python", "--version"},
			},
		},
	}

	actual, err := r.ActualVersions(context.Background(), def)
	require.NoError(t, err)
	require.Equal(t, "3.11.9", actual["3.11"])
}

// TestFindOnSourceHostTagLookup mirrors scenario S2 through the resolver's
// source-host path: a literal pattern must resolve to the matching tag.
func TestFindOnSourceHostTagLookup(t *testing.T) {
	t.Parallel()

	source := &fakeSourceHost{tagPages: map[int][]string{
		1: {"3.11.0", "3.10.4", "3.9.2"},
	}}
	r := New(&fakeRegistry{}, source)

	def := config.VersionedDefinition{
		Versioned: config.Versioned{Name: "python", Versions: []string{"3.10.*"}},
		FetchVersion: &config.FetchVersion{
			Type: "github",
			Github: &config.GithubFetchVersion{
				Org:         "python",
				Project:     "cpython",
				VersionFrom: config.VersionFromTag,
			},
		},
	}

	actual, err := r.ActualVersions(context.Background(), def)
	require.NoError(t, err)
	require.Equal(t, "3.10.4", actual["3.10.*"])
}

// TestFindOnSourceHostBranchLookupReverses mirrors scenario S6: branches
// come back oldest-first and the resolver must see them newest-first.
func TestFindOnSourceHostBranchLookupReverses(t *testing.T) {
	t.Parallel()

	source := &fakeSourceHost{branchPages: map[int][]string{
		1: {"v1", "v2", "v3"},
	}}
	r := New(&fakeRegistry{}, source)

	def := config.VersionedDefinition{
		Versioned: config.Versioned{Name: "repo", Versions: []string{"*"}},
		FetchVersion: &config.FetchVersion{
			Type: "github",
			Github: &config.GithubFetchVersion{
				Org:         "acme",
				Project:     "repo",
				VersionFrom: config.VersionFromBranch,
			},
		},
	}

	actual, err := r.ActualVersions(context.Background(), def)
	require.NoError(t, err)
	require.Equal(t, "v3", actual["*"])
}
