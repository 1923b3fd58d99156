package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var healthCmd = &cobra.Command{
	Use:     "health",
	Short:   "Check the health of the gateway and its upstream",
	GroupID: "system",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		status, err := gateway.Health(context.Background())
		if err != nil {
			return fmt.Errorf("checking health: %w", err)
		}

		if jsonOutput {
			printJSON(status)
		} else {
			fmt.Printf("Gateway:  %s\n", status.Status)
			fmt.Printf("Upstream: %s\n", status.Upstream)
		}

		if status.Status != "ok" {
			return fmt.Errorf("unhealthy: %s", status.Status)
		}
		return nil
	},
}
