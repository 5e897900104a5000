package main

import (
	"fmt"
	"os"

	present "github.com/aretw0/furrow/internal/presentation/graph"
	"github.com/aretw0/furrow/pkg/agent"
	"github.com/spf13/cobra"
)

// graphCmd represents the graph command
var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Export the workflow graph visualization",
	Long:  `Outputs a Mermaid diagram (graph TD) representing the agent workflow.`,
	Run: func(cmd *cobra.Command, args []string) {
		desc, err := agent.DescribeWorkflow()
		if err != nil {
			fmt.Printf("Error describing workflow: %v\n", err)
			os.Exit(1)
		}

		fmt.Print(present.GenerateMermaid(desc, nil))
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
}
