package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var presenceCmd = &cobra.Command{
	Use:     "presence <scope>",
	Short:   "Show who is viewing a scope right now",
	GroupID: "graph",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		presence, err := gateway.GetPresence(context.Background(), args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if jsonOutput {
			printJSON(presence)
		} else {
			printPresenceTable(presence)
		}
		return nil
	},
}

var presenceBeatCmd = &cobra.Command{
	Use:   "beat <scope>",
	Short: "Send one presence heartbeat for a scope",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		via, _ := cmd.Flags().GetString("via")

		if err := gateway.Heartbeat(context.Background(), args[0], actingUser, via); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return nil
	},
}

func init() {
	presenceBeatCmd.Flags().String("via", "cli", "transport label recorded on the roster")

	presenceCmd.AddCommand(presenceBeatCmd)
}
