package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var storeCmd = &cobra.Command{
	Use:   "store",
	Short: "Manage the local corpus store container",
	Long: `Manage the local corpus store container lifecycle.

The store holds the source and Clear-variant text of every verse. It runs
in a Docker container with data persisted under ~/.clarify/store/.

Examples:
  clarify store start   # Start the store container
  clarify store stop    # Stop the container (data preserved)
  clarify store status  # Check container status`,
}

var storeStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the corpus store container",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		h, err := getHome()
		if err != nil {
			return err
		}
		cfg, err := getConfig(h)
		if err != nil {
			return err
		}
		mgr, err := getDockerManager(h, cfg)
		if err != nil {
			return err
		}
		defer mgr.Close()

		fmt.Println("Starting corpus store...")
		if err := mgr.Start(ctx); err != nil {
			return fmt.Errorf("failed to start store: %w", err)
		}
		if err := mgr.WaitReady(ctx, 60*time.Second); err != nil {
			return fmt.Errorf("store did not become healthy: %w", err)
		}

		fmt.Printf("Corpus store is running at %s\n", mgr.URL())
		return nil
	},
}

var storeStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the corpus store container",
	Long:  "Stop the store container. Data is preserved; 'clarify store start' restarts it.",
	RunE: func(cmd *cobra.Command, args []string) error {
		h, err := getHome()
		if err != nil {
			return err
		}
		cfg, err := getConfig(h)
		if err != nil {
			return err
		}
		mgr, err := getDockerManager(h, cfg)
		if err != nil {
			return err
		}
		defer mgr.Close()

		if err := mgr.Stop(cmd.Context()); err != nil {
			return fmt.Errorf("failed to stop store: %w", err)
		}
		fmt.Println("Corpus store stopped.")
		return nil
	},
}

var storeStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show corpus store container status",
	RunE: func(cmd *cobra.Command, args []string) error {
		h, err := getHome()
		if err != nil {
			return err
		}
		cfg, err := getConfig(h)
		if err != nil {
			return err
		}
		mgr, err := getDockerManager(h, cfg)
		if err != nil {
			return err
		}
		defer mgr.Close()

		status, err := mgr.Status(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("Container: %s\n", cfg.Corpus.ContainerName)
		fmt.Printf("Status:    %s\n", status)
		fmt.Printf("URL:       %s\n", mgr.URL())
		return nil
	},
}

func init() {
	storeCmd.AddCommand(storeStartCmd)
	storeCmd.AddCommand(storeStopCmd)
	storeCmd.AddCommand(storeStatusCmd)
}
