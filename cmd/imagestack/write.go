package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/imagestack/imagestack/pkg/buildplan"
	"github.com/imagestack/imagestack/pkg/console"
)

var writeOutputFlag string

func newWriteCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "write",
		Short: "Write an aggregated, human-readable build file for every locked build",
		RunE:  runWrite,
	}
	cmd.Flags().StringVar(&writeOutputFlag, "output", "Imagestackfile", "Path to write the aggregated build file to")
	return cmd
}

func runWrite(cmd *cobra.Command, args []string) error {
	l, err := loadLock()
	if err != nil {
		return err
	}

	plan, err := buildplan.SynthesizeAll(l)
	if err != nil {
		return err
	}

	if err := os.WriteFile(writeOutputFlag, []byte(dockerfileBody(plan.Lines)), 0o644); err != nil {
		return fmt.Errorf("writing build file: %w", err)
	}

	console.Info("Wrote %d line(s) across %d build(s) to %s", len(plan.Lines), len(l.Builds), writeOutputFlag)
	if len(plan.Dependencies) > 0 {
		console.Debug("Build-context dependencies: %v", plan.Dependencies)
	}
	return nil
}
