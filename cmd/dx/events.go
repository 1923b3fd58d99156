package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/deptexhq/deptex/internal/client"
	"github.com/spf13/cobra"
)

var eventsCmd = &cobra.Command{
	Use:     "events",
	Short:   "Browse the audit log",
	GroupID: "workspace",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		subject, _ := cmd.Flags().GetString("subject")
		limit, _ := cmd.Flags().GetInt("limit")

		events, err := gateway.ListEvents(context.Background(), subject, limit)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if jsonOutput {
			printJSON(events)
		} else {
			printEventListTable(events)
		}
		return nil
	},
}

var eventsTailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Follow the live event stream",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		topics, _ := cmd.Flags().GetStringSlice("topics")
		from, _ := cmd.Flags().GetUint64("from")

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		err := gateway.StreamEvents(ctx, client.StreamOptions{
			Topics:      topics,
			LastEventID: from,
		}, func(ev client.StreamEvent) error {
			printStreamEvent(ev)
			return nil
		})
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}

func init() {
	eventsCmd.Flags().String("subject", "", "filter by event subject (ban id, scope, conversation id)")
	eventsCmd.Flags().Int("limit", 50, "maximum number of events to return")

	eventsTailCmd.Flags().StringSliceP("topics", "t", nil, `topic patterns, NATS syntax (e.g. "deptex.policy.>"); empty = all`)
	eventsTailCmd.Flags().Uint64("from", 0, "resume the stream after this event id")

	eventsCmd.AddCommand(eventsTailCmd)
}
