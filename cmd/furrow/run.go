package main

import (
	"fmt"
	"os"

	"github.com/aretw0/furrow/internal/cli"
	"github.com/spf13/cobra"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:     "run [thread]",
	Aliases: []string{"start"},
	Args:    cobra.MaximumNArgs(1),
	Short:   "Start an interactive session",
	Long: `Starts the interactive conversation loop on one thread. Command plans
pause for approval before anything executes; answer with yes, no, or
feedback to redraft.`,
	Run: func(cmd *cobra.Command, args []string) {
		var opts cli.RunOptions
		opts.ConfigPath, _ = cmd.Flags().GetString("config")
		opts.Debug, _ = cmd.Flags().GetBool("debug")
		opts.ThreadID, _ = cmd.Flags().GetString("thread")
		if opts.ThreadID == "" && len(args) > 0 {
			opts.ThreadID = args[0]
		}
		opts.Fresh, _ = cmd.Flags().GetBool("fresh")
		opts.DryRun, _ = cmd.Flags().GetBool("dry-run")
		opts.HTTPAddress, _ = cmd.Flags().GetString("http")

		if err := cli.Execute(opts); err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringP("thread", "t", "", "Thread to converse on (default \"default\")")
	runCmd.Flags().Bool("fresh", false, "Discard the thread's stored state before starting")
	runCmd.Flags().Bool("dry-run", false, "Echo commands instead of executing them")
	runCmd.Flags().String("http", "", "Also serve the inspection API on this address (e.g. localhost:8080)")

	// Make 'run' the default if no command is provided.
	rootCmd.Run = runCmd.Run
}
