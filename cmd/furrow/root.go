package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "furrow",
	Short: "Furrow is a terminal agent that plans before it acts",
	Long: `Furrow turns natural-language requests into chat replies, researched
answers, or step-by-step command plans. Plans never execute without your
approval, and a pending approval survives restarts.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to the config file (default \".furrow/config.yaml\")")
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
}
