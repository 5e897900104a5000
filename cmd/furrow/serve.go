package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aretw0/furrow"
	"github.com/aretw0/furrow/internal/cli"
	"github.com/aretw0/furrow/internal/config"
	"github.com/aretw0/furrow/internal/metrics"
	httpadapter "github.com/aretw0/furrow/pkg/adapters/http"
	workflow "github.com/aretw0/furrow/pkg/agent"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the read-only inspection server",
	Long: `Serves the inspection API over the configured snapshot store: thread
listings, thread state, the workflow graph and Prometheus metrics. The
server never runs turns itself; use 'run --http' to watch a live session.`,
	Run: func(cmd *cobra.Command, args []string) {
		configPath, _ := cmd.Flags().GetString("config")
		debug, _ := cmd.Flags().GetBool("debug")
		address, _ := cmd.Flags().GetString("address")

		cfg, err := config.Load(configPath)
		if err != nil {
			fmt.Printf("Error loading config: %v\n", err)
			os.Exit(1)
		}
		if err := cfg.Validate(); err != nil {
			fmt.Printf("Invalid config: %v\n", err)
			os.Exit(1)
		}
		if address == "" {
			address = cfg.Server.Address
		}

		logger := cli.ServiceLogger(cfg.Logging, debug)

		store, err := cli.OpenStore(cfg.Storage)
		if err != nil {
			fmt.Printf("Error initializing store: %v\n", err)
			os.Exit(1)
		}

		desc, err := workflow.DescribeWorkflow()
		if err != nil {
			fmt.Printf("Error describing workflow: %v\n", err)
			os.Exit(1)
		}

		insp, err := httpadapter.NewServer(httpadapter.Config{
			Store:   store,
			Graph:   desc,
			Metrics: metrics.NewCollector().Registry(),
			Version: furrow.Version,
			Logger:  logger,
		})
		if err != nil {
			fmt.Printf("Error initializing server: %v\n", err)
			os.Exit(1)
		}

		srv := &http.Server{
			Addr:    address,
			Handler: insp.Handler(),
		}

		// Channel to listen for errors coming from the listener.
		serverErrors := make(chan error, 1)

		go func() {
			fmt.Printf("Starting Furrow inspection server on %s\n", srv.Addr)
			serverErrors <- srv.ListenAndServe()
		}()

		// Channel to listen for interrupt or terminate signals.
		shutdown := make(chan os.Signal, 1)
		signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

		// Blocking main and waiting for shutdown.
		select {
		case err := <-serverErrors:
			fmt.Printf("Server error: %v\n", err)
			os.Exit(1)

		case sig := <-shutdown:
			fmt.Printf("\nStart shutdown... Signal: %v\n", sig)

			// Give outstanding requests a deadline for completion.
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			if err := srv.Shutdown(ctx); err != nil {
				fmt.Printf("Graceful shutdown did not complete in %v: %v\n", 5*time.Second, err)
				if err := srv.Close(); err != nil {
					fmt.Printf("Error killing server: %v\n", err)
				}
			}
			fmt.Println("Furrow inspection server stopped gracefully")
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("address", "a", "", "Listen address (default from config, 127.0.0.1:8723)")
}
