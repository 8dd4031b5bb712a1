package main

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/imagestack/imagestack/pkg/buildplan"
	"github.com/imagestack/imagestack/pkg/console"
	"github.com/imagestack/imagestack/pkg/lock"
	"github.com/imagestack/imagestack/pkg/registryclient"
)

func newBuildCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "build",
		Short: "Build every locked target against the registry client",
		RunE:  runBuild,
	}
}

// runBuild fans every SingleBuild out concurrently, joining at the end.
// Failures are collected; any error fails the overall operation, but
// other in-flight builds are allowed to complete their transport.
func runBuild(cmd *cobra.Command, args []string) error {
	l, err := loadLock()
	if err != nil {
		return err
	}

	registry, err := registryclient.New()
	if err != nil {
		return err
	}

	var (
		g    errgroup.Group
		mu   sync.Mutex
		errs []error
	)
	for _, build := range l.Builds {
		build := build
		g.Go(func() error {
			if err := buildOne(cmd.Context(), registry, l, build); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}

func buildOne(ctx context.Context, registry *registryclient.Client, l *lock.Lock, build lock.SingleBuild) error {
	plan, err := buildplan.SynthesizeBuild(l, build)
	if err != nil {
		return err
	}

	dependencies := make(map[string][]byte, len(plan.Dependencies))
	for _, dep := range plan.Dependencies {
		err := filepath.WalkDir(dep, func(path string, d fs.DirEntry, err error) error {
			if err != nil || d.IsDir() {
				return err
			}
			contents, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			dependencies[path] = contents
			return nil
		})
		if err != nil {
			return err
		}
	}

	buildContext := registryclient.BuildContext{
		Dockerfile:   dockerfileBody(plan.Lines),
		Dependencies: dependencies,
	}
	archive, err := buildContext.Archive()
	if err != nil {
		return err
	}

	console.Info("Building %s", build.ImageTag)
	return registry.BuildImage(ctx, build.ImageTag, archive)
}

func dockerfileBody(lines []string) string {
	return strings.Join(lines, "\n") + "\n"
}
