package registryclient

import (
	"archive/tar"
	"compress/gzip"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegistry(t *testing.T) {
	t.Parallel()

	require.Equal(t, "python", Registry("python:3.11"))
	require.Equal(t, "python", Registry("python@sha256:deadbeef"))
	require.Equal(t, "python", Registry("python"))
}

func TestTag(t *testing.T) {
	t.Parallel()

	require.Equal(t, "3.11", Tag("python:3.11"))
	require.Equal(t, "", Tag("python"))
}

func TestBuildContextArchiveContainsDockerfileAndDependencies(t *testing.T) {
	t.Parallel()

	ctx := BuildContext{
		Dockerfile: "FROM scratch\n",
		Dependencies: map[string][]byte{
			"requirements.txt": []byte("numpy\n"),
		},
	}

	archive, err := ctx.Archive()
	require.NoError(t, err)

	gz, err := gzip.NewReader(archive)
	require.NoError(t, err)
	tr := tar.NewReader(gz)

	contents := make(map[string]string)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		body, err := io.ReadAll(tr)
		require.NoError(t, err)
		contents[hdr.Name] = string(body)
	}

	require.Equal(t, "FROM scratch\n", contents["Dockerfile"])
	require.Equal(t, "numpy\n", contents["requirements.txt"])
}
