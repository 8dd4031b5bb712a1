package main

import (
	"github.com/spf13/cobra"

	"github.com/imagestack/imagestack/pkg/console"
)

var (
	verboseFlag bool
	machineFlag bool
	lockPathFlag string
)

// NewRootCommand wires the four subcommands spec.md's CLI surface names:
// update (config -> lock), build (lock -> registry), write (lock -> build
// file on disk), images (lock -> JSON summary on stdout).
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "imagestack",
		Short: "Resolve, lock, and synthesize multi-stage container build plans",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if verboseFlag {
				console.SetLevel(console.DebugLevel)
			}
			console.ConsoleInstance.IsMachine = machineFlag
			if machineFlag {
				console.SetColor(false)
			}
			cmd.SilenceUsage = true
		},
		SilenceErrors: true,
	}

	root.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Verbose output")
	root.PersistentFlags().BoolVar(&machineFlag, "machine", false, "Machine-readable output (no color, no prompts)")
	root.PersistentFlags().StringVar(&lockPathFlag, "lock", "imagestack.lock.yaml", "Path to the lock file")

	root.AddCommand(
		newUpdateCommand(),
		newBuildCommand(),
		newWriteCommand(),
		newImagesCommand(),
	)

	return root
}
