package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/imagestack/imagestack/pkg/config"
	"github.com/imagestack/imagestack/pkg/console"
	"github.com/imagestack/imagestack/pkg/lockbuilder"
	"github.com/imagestack/imagestack/pkg/registryclient"
	"github.com/imagestack/imagestack/pkg/resolver"
	"github.com/imagestack/imagestack/pkg/sourcehost"
)

var (
	configPathFlag string
	githubTokenFlag string
)

func newUpdateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "update",
		Short: "Resolve declared versions and rewrite the lock file from the configuration",
		RunE:  runUpdate,
	}
	cmd.Flags().StringVar(&configPathFlag, "config", "imagestack.yaml", "Path to the configuration file")
	cmd.Flags().StringVar(&githubTokenFlag, "github-token", "", "GitHub token; falls back to GH_TOKEN, then GITHUB_TOKEN")
	return cmd
}

func runUpdate(cmd *cobra.Command, args []string) error {
	contents, err := os.ReadFile(configPathFlag)
	if err != nil {
		return fmt.Errorf("reading configuration: %w", err)
	}
	cfg, err := config.Load(contents)
	if err != nil {
		return err
	}

	registry, err := registryclient.New()
	if err != nil {
		return err
	}
	source := sourcehost.New(githubTokenFlag)
	res := resolver.New(registry, source)

	console.Info("Resolving declared versions for %d base(s) and %d feature(s)", len(cfg.Bases), len(cfg.Features))
	l, err := lockbuilder.Build(cmd.Context(), cfg, res, registry)
	if err != nil {
		return err
	}

	data, err := l.Marshal()
	if err != nil {
		return fmt.Errorf("serializing lock: %w", err)
	}
	if err := os.WriteFile(lockPathFlag, data, 0o644); err != nil {
		return fmt.Errorf("writing lock: %w", err)
	}

	sidecar := targetsSidecarPath(lockPathFlag)
	if err := os.WriteFile(sidecar, []byte(l.TargetsSidecar()), 0o644); err != nil {
		return fmt.Errorf("writing targets sidecar: %w", err)
	}

	console.Info("Wrote %d base(s), %d feature(s), %d build(s) to %s", len(l.Bases), len(l.Features), len(l.Builds), lockPathFlag)
	return nil
}
