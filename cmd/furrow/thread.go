package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/aretw0/furrow/internal/cli"
	"github.com/aretw0/furrow/internal/config"
	"github.com/aretw0/furrow/pkg/ports"
	"github.com/spf13/cobra"
)

var threadCmd = &cobra.Command{
	Use:     "thread",
	Aliases: []string{"session"},
	Short:   "Manage persistent threads",
	Long:    `List, inspect, and remove conversation threads in the configured store.`,
}

var threadLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List all stored threads",
	Run: func(cmd *cobra.Command, args []string) {
		store := getStore(cmd)
		threads, err := store.List(cmd.Context())
		if err != nil {
			fmt.Printf("Error listing threads: %v\n", err)
			os.Exit(1)
		}

		if len(threads) == 0 {
			fmt.Println("No threads found.")
			return
		}

		fmt.Println("Threads:")
		for _, id := range threads {
			fmt.Println("- " + id)
		}
	},
}

var threadInspectCmd = &cobra.Command{
	Use:   "inspect <thread-id>",
	Short: "Print the stored state of a thread",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		threadID := args[0]
		store := getStore(cmd)

		state, err := store.Load(cmd.Context(), threadID)
		if err != nil {
			fmt.Printf("Error loading thread '%s': %v\n", threadID, err)
			os.Exit(1)
		}

		// Pretty print JSON
		data, err := json.MarshalIndent(state, "", "  ")
		if err != nil {
			fmt.Printf("Error marshaling state: %v\n", err)
			os.Exit(1)
		}

		fmt.Println(string(data))
	},
}

var threadRmCmd = &cobra.Command{
	Use:   "rm <thread-id>...",
	Short: "Remove one or more threads",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		store := getStore(cmd)
		hasError := false

		for _, threadID := range args {
			if err := store.Delete(cmd.Context(), threadID); err != nil {
				fmt.Printf("Error removing '%s': %v\n", threadID, err)
				hasError = true
			} else {
				fmt.Printf("Removed thread '%s'\n", threadID)
			}
		}

		if hasError {
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(threadCmd)
	threadCmd.AddCommand(threadLsCmd)
	threadCmd.AddCommand(threadInspectCmd)
	threadCmd.AddCommand(threadRmCmd)
}

func getStore(cmd *cobra.Command) ports.SnapshotStore {
	cfgPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	store, err := cli.OpenStore(cfg.Storage)
	if err != nil {
		fmt.Printf("Error opening store: %v\n", err)
		os.Exit(1)
	}
	return store
}
