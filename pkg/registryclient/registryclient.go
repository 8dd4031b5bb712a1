// Package registryclient implements the registry/container-daemon
// external collaborator (resolver.RegistryClient): pulling images,
// resolving content digests, running a one-shot command inside an
// ephemeral container, and building an image from an in-memory context.
//
// Grounded in the teacher's pkg/docker container lifecycle (create,
// start, exec, stop, remove, always torn down) and pkg/registry's digest
// lookup, adapted to the two libraries those packages themselves wrap:
// github.com/docker/docker for the daemon, github.com/google/go-containerregistry
// for registry-side digest resolution without needing a local pull.
package registryclient

import (
	"archive/tar"
	"bufio"
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	dockerimage "github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/google/go-containerregistry/pkg/name"
	"github.com/google/go-containerregistry/pkg/v1/remote"

	"github.com/imagestack/imagestack/pkg/console"
	"github.com/imagestack/imagestack/pkg/errors"
)

// Client adapts a local Docker daemon connection plus the go-containerregistry
// remote transport into the resolver's RegistryClient interface.
type Client struct {
	docker *client.Client
}

// New connects to the Docker daemon using the standard environment
// configuration (DOCKER_HOST, DOCKER_CERT_PATH, etc).
func New() (*Client, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, errors.Transport(fmt.Sprintf("connecting to docker daemon: %s", err))
	}
	return &Client{docker: cli}, nil
}

// FromDockerClient wraps an already-constructed docker client, the way
// test harnesses substitute a fake transport.
func FromDockerClient(cli *client.Client) *Client {
	return &Client{docker: cli}
}

// Registry returns the registry/path portion of an "image:tag" or
// "image@digest" reference.
func Registry(image string) string {
	if i := strings.Index(image, "@"); i >= 0 {
		image = image[:i]
	}
	if i := strings.LastIndex(image, ":"); i > strings.LastIndex(image, "/") {
		return image[:i]
	}
	return image
}

// Tag returns the tag portion of an "image:tag" reference, or "" if the
// reference carries no tag.
func Tag(image string) string {
	if i := strings.Index(image, "@"); i >= 0 {
		image = image[:i]
	}
	if i := strings.LastIndex(image, ":"); i > strings.LastIndex(image, "/") {
		return image[i+1:]
	}
	return ""
}

// Pull pulls image, draining the daemon's progress stream to completion.
func (c *Client) Pull(ctx context.Context, image string) error {
	rc, err := c.docker.ImagePull(ctx, image, dockerimage.PullOptions{})
	if err != nil {
		return errors.Transport(fmt.Sprintf("pulling %q: %s", image, err))
	}
	defer rc.Close()
	if _, err := io.Copy(io.Discard, rc); err != nil {
		return errors.Transport(fmt.Sprintf("pulling %q: %s", image, err))
	}
	return nil
}

// Digest resolves image's content digest directly against the registry,
// without requiring a local pull.
func (c *Client) Digest(ctx context.Context, image string) (string, error) {
	ref, err := name.ParseReference(image)
	if err != nil {
		return "", errors.NewRegistryLookupError(image, Tag(image) != "", err)
	}
	desc, err := remote.Get(ref, remote.WithContext(ctx))
	if err != nil {
		return "", errors.NewRegistryLookupError(image, Tag(image) != "", err)
	}
	return desc.Digest.String(), nil
}

// RunCommand pulls image, creates a disposable container from it, execs
// command, and returns its captured output lines. The container is always
// stopped and removed, on both the success and failure paths.
func (c *Client) RunCommand(ctx context.Context, image string, command []string) ([]string, error) {
	console.Debug("Running command %v in image %q", command, image)
	if err := c.Pull(ctx, image); err != nil {
		return nil, err
	}

	created, err := c.docker.ContainerCreate(ctx, &container.Config{
		Image: image,
		Tty:   true,
	}, nil, nil, nil, "")
	if err != nil {
		return nil, errors.Transport(fmt.Sprintf("creating container for %q: %s", image, err))
	}
	id := created.ID
	defer func() {
		if err := c.docker.ContainerStop(ctx, id, container.StopOptions{}); err != nil {
			console.Warn("stopping container %s: %s", id, err)
		}
		if err := c.docker.ContainerRemove(ctx, id, container.RemoveOptions{}); err != nil {
			console.Warn("removing container %s: %s", id, err)
		}
	}()

	if err := c.docker.ContainerStart(ctx, id, container.StartOptions{}); err != nil {
		return nil, errors.Transport(fmt.Sprintf("starting container for %q: %s", image, err))
	}

	execCreated, err := c.docker.ContainerExecCreate(ctx, id, container.ExecOptions{
		Cmd:          command,
		Tty:          true,
		AttachStdout: true,
		AttachStderr: true,
	})
	if err != nil {
		return nil, errors.Transport(fmt.Sprintf("creating exec for %q: %s", image, err))
	}

	attached, err := c.docker.ContainerExecAttach(ctx, execCreated.ID, container.ExecAttachOptions{Tty: true})
	if err != nil {
		return nil, errors.Transport(fmt.Sprintf("attaching exec for %q: %s", image, err))
	}
	defer attached.Close()

	var lines []string
	scanner := bufio.NewScanner(attached.Reader)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Transport(fmt.Sprintf("reading exec output for %q: %s", image, err))
	}

	console.Debug("exec output for %q: %v", image, lines)
	return lines, nil
}

// BuildContext is an in-memory build context: a Dockerfile body plus the
// local dependency paths the daemon should also receive.
type BuildContext struct {
	Dockerfile   string
	Dependencies map[string][]byte
}

// Archive packages the build context as a gzipped tar stream, the way
// BuildImage's caller hands it to the daemon.
func (b BuildContext) Archive() (io.Reader, error) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)

	if err := writeTarFile(tw, "Dockerfile", []byte(b.Dockerfile)); err != nil {
		return nil, err
	}
	for path, contents := range b.Dependencies {
		if err := writeTarFile(tw, path, contents); err != nil {
			return nil, err
		}
	}

	if err := tw.Close(); err != nil {
		return nil, errors.Transport(fmt.Sprintf("closing build context tar: %s", err))
	}
	if err := gz.Close(); err != nil {
		return nil, errors.Transport(fmt.Sprintf("closing build context gzip: %s", err))
	}
	return &buf, nil
}

func writeTarFile(tw *tar.Writer, name string, contents []byte) error {
	hdr := &tar.Header{Name: name, Mode: 0o644, Size: int64(len(contents))}
	if err := tw.WriteHeader(hdr); err != nil {
		return errors.Transport(fmt.Sprintf("writing tar header for %q: %s", name, err))
	}
	if _, err := tw.Write(contents); err != nil {
		return errors.Transport(fmt.Sprintf("writing tar contents for %q: %s", name, err))
	}
	return nil
}

func dockerBuildOptions(tag string) types.ImageBuildOptions {
	return types.ImageBuildOptions{
		Tags:       []string{tag},
		Dockerfile: "Dockerfile",
		Remove:     true,
	}
}

// BuildImage builds tag from a gzipped tar build context, draining the
// daemon's build progress stream to completion.
func (c *Client) BuildImage(ctx context.Context, tag string, buildContext io.Reader) error {
	resp, err := c.docker.ImageBuild(ctx, buildContext, dockerBuildOptions(tag))
	if err != nil {
		return errors.Transport(fmt.Sprintf("building %q: %s", tag, err))
	}
	defer resp.Body.Close()
	if _, err := io.Copy(io.Discard, resp.Body); err != nil {
		return errors.Transport(fmt.Sprintf("building %q: %s", tag, err))
	}
	return nil
}
