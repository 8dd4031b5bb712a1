// Package resolver implements the version resolution engine: turning each
// declared abstract version into a concrete upstream one via identity,
// registry-command execution, or source-host tag/branch lookup.
package resolver

import (
	"context"
	"fmt"
	"io"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/imagestack/imagestack/pkg/config"
	"github.com/imagestack/imagestack/pkg/console"
	"github.com/imagestack/imagestack/pkg/errors"
	"github.com/imagestack/imagestack/pkg/template"
	"github.com/imagestack/imagestack/pkg/version"
)

// MaxPages is the number of source-host pages fetched per batch attempt.
const MaxPages = 4

// MaxRetries bounds the number of batch attempts per abstract version.
const MaxRetries = 5

// RegistryClient is the container-daemon/registry external collaborator.
type RegistryClient interface {
	Pull(ctx context.Context, image string) error
	Digest(ctx context.Context, image string) (string, error)
	RunCommand(ctx context.Context, image string, command []string) ([]string, error)
	BuildImage(ctx context.Context, tag string, buildContext io.Reader) error
}

// SourceHost is the source-hosting external collaborator.
type SourceHost interface {
	ListTags(ctx context.Context, org, project string, page int) ([]string, error)
	ListBranches(ctx context.Context, org, project string, page int) ([]string, error)
	BranchPageCount(ctx context.Context, org, project string) (int, error)
}

// Resolver discovers concrete upstream versions for abstract ones.
// Construct fresh per lock-build invocation; it carries no cache of its
// own (the source host adapter owns the page cache).
type Resolver struct {
	Registry RegistryClient
	Source   SourceHost
}

func New(registry RegistryClient, source SourceHost) *Resolver {
	return &Resolver{Registry: registry, Source: source}
}

// ActualVersions resolves every abstract version in def to its concrete
// counterpart, returning a map keyed by the abstract version string.
func (r *Resolver) ActualVersions(ctx context.Context, def config.VersionedDefinition) (map[string]string, error) {
	if def.FetchVersion == nil {
		identity := make(map[string]string, len(def.Versions))
		for _, v := range def.Versions {
			identity[v] = v
		}
		return identity, nil
	}

	switch def.FetchVersion.Type {
	case "docker":
		return r.dockerVersions(ctx, def.FetchVersion.Docker, def.Versions)
	case "github":
		return r.githubVersions(ctx, def.FetchVersion.Github, def.Versions)
	default:
		return nil, errors.Config(fmt.Sprintf("unknown fetch-version type %q", def.FetchVersion.Type))
	}
}

func (r *Resolver) dockerVersions(ctx context.Context, fetch *config.DockerFetchVersion, versions []string) (map[string]string, error) {
	images, err := template.RenderAll(fetch.Image, versions)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(versions))
	for target, image := range images {
		console.Debug("Fetching version for %q from registry command", image)
		lines, err := r.Registry.RunCommand(ctx, image, fetch.Command)
		if err != nil {
			return nil, errors.Resolution(fmt.Sprintf("running version command for %q: %s", image, err))
		}
		if len(lines) == 0 {
			return nil, errors.Resolution(fmt.Sprintf("no output from version command for %q", image))
		}
		out[target] = lines[len(lines)-1]
	}
	return out, nil
}

func (r *Resolver) githubVersions(ctx context.Context, fetch *config.GithubFetchVersion, versions []string) (map[string]string, error) {
	projects, err := template.RenderAll(fetch.Project, versions)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(versions))
	for target, project := range projects {
		resolved, err := r.findOnSourceHost(ctx, target, fetch.Org, project, fetch.VersionFrom)
		if err != nil {
			return nil, err
		}
		out[target] = resolved
	}
	return out, nil
}

// findOnSourceHost retries across successive page batches, sleeping 1s
// between attempts, until target matches a candidate or MaxRetries is
// exhausted.
func (r *Resolver) findOnSourceHost(ctx context.Context, target, org, project string, kind config.VersionFrom) (string, error) {
	console.Info("Pulling %ss from source host for '%s/%s'", kind, org, project)
	for offset := 0; offset < MaxRetries; offset++ {
		batch, err := r.fetchBatch(ctx, org, project, offset, kind)
		if err != nil {
			return "", errors.Resolution(fmt.Sprintf("fetching %s batch for %s/%s: %s", kind, org, project, err))
		}
		if resolved, err := version.Find(target, batch); err == nil {
			return resolved, nil
		}
		console.Debug("No match for %q in %s/%s batch %d", target, org, project, offset)
		if offset < MaxRetries-1 {
			time.Sleep(1 * time.Second)
		}
	}
	return "", errors.Resolution(fmt.Sprintf("unable to find tag for %q in %s/%s", target, org, project))
}

func (r *Resolver) fetchBatch(ctx context.Context, org, project string, offset int, kind config.VersionFrom) ([]string, error) {
	if kind == config.VersionFromBranch {
		return r.fetchBranchBatch(ctx, org, project, offset)
	}
	return r.fetchTagBatch(ctx, org, project, offset)
}

func (r *Resolver) fetchTagBatch(ctx context.Context, org, project string, offset int) ([]string, error) {
	pages := make([][]string, MaxPages)
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < MaxPages; i++ {
		i := i
		page := offset*MaxPages + i + 1
		g.Go(func() error {
			tags, err := r.Source.ListTags(gctx, org, project, page)
			if err != nil {
				return err
			}
			pages[i] = tags
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	var batch []string
	for _, p := range pages {
		batch = append(batch, p...)
	}
	return batch, nil
}

// fetchBranchBatch fetches the offset-th batch counting from the tail of
// the (oldest-first) branch list, then reverses it to newest-first
// semantics equivalent to tags.
func (r *Resolver) fetchBranchBatch(ctx context.Context, org, project string, offset int) ([]string, error) {
	numPages, err := r.Source.BranchPageCount(ctx, org, project)
	if err != nil {
		return nil, err
	}
	if numPages <= offset*MaxPages {
		return nil, nil
	}
	lastPage := numPages - offset*MaxPages
	firstPage := numPages - (offset+1)*MaxPages
	if firstPage < 0 {
		firstPage = 0
	}

	pageCount := lastPage - firstPage
	pages := make([][]string, pageCount)
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < pageCount; i++ {
		i := i
		page := firstPage + i + 1
		g.Go(func() error {
			branches, err := r.Source.ListBranches(gctx, org, project, page)
			if err != nil {
				return err
			}
			pages[i] = branches
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	var batch []string
	for _, p := range pages {
		batch = append(batch, p...)
	}
	reverse(batch)
	return batch, nil
}

func reverse(s []string) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}
