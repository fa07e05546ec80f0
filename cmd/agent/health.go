package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check that the backend is reachable",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, _, err := backendClient()
		if err != nil {
			return err
		}
		health, err := client.Health(context.Background())
		if err != nil {
			return fmt.Errorf("backend %s is unhealthy: %w", client.BaseURL(), err)
		}
		if jsonOutput {
			return printJSON(health)
		}
		fmt.Printf("Backend %s is %s\n", client.BaseURL(), health.Status)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(healthCmd)
}
