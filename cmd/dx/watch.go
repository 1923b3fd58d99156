package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/deptexhq/deptex/internal/client"
	"github.com/deptexhq/deptex/internal/events"
	"github.com/deptexhq/deptex/internal/ui"
	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:     "watch <scope>",
	Short:   "Watch a scope's graph and stream its events",
	Long:    "Register a watch session for a project:<id>, team:<id>, or org:<id> scope, then follow\nthe gateway's live event stream. The session keeps the scope's graph warm server-side and\nsurvives disconnects; stop it with 'dx watch stop <scope>'.",
	GroupID: "graph",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		scope := args[0]
		version, _ := cmd.Flags().GetString("version")
		reachableOnly, _ := cmd.Flags().GetBool("reachable-only")
		noFollow, _ := cmd.Flags().GetBool("no-follow")
		from, _ := cmd.Flags().GetUint64("from")

		// 1. Register the watch session.
		entry, err := gateway.StartWatch(context.Background(), &client.StartWatchRequest{
			Scope:         scope,
			Version:       version,
			ReachableOnly: reachableOnly,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("watching %s (%s)\n", entry.Scope, entry.Label)
		if noFollow {
			return nil
		}

		// 2. Stream until interrupted. The scope on the stream doubles as a
		// presence heartbeat, so watchers show up on the roster.
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		err = gateway.StreamEvents(ctx, client.StreamOptions{
			Scope:       scope,
			LastEventID: from,
		}, func(ev client.StreamEvent) error {
			printStreamEvent(ev)
			if ev.Topic == events.TopicGraphCommitted {
				printCommitIfMatching(ctx, scope, ev.Data)
			}
			return nil
		})
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}

// printStreamEvent prints one live event as a timestamped line, or as raw
// JSON in --json mode.
func printStreamEvent(ev client.StreamEvent) {
	if jsonOutput {
		out := struct {
			ID    uint64          `json:"id"`
			Topic string          `json:"topic"`
			Data  json.RawMessage `json:"data"`
		}{ev.ID, ev.Topic, ev.Data}
		data, err := json.Marshal(out)
		if err != nil {
			return
		}
		fmt.Println(string(data))
		return
	}
	fmt.Printf("%s %s %s\n",
		ui.RenderMuted(time.Now().Format("15:04:05")),
		ui.RenderAccent(ev.Topic),
		string(ev.Data),
	)
}

// printCommitIfMatching refreshes the watched scope's stats line after the
// server commits a new graph for it.
func printCommitIfMatching(ctx context.Context, scope string, data []byte) {
	var commit events.GraphCommitted
	if err := json.Unmarshal(data, &commit); err != nil || commit.Scope != scope {
		return
	}
	g, err := gateway.GetWatchGraph(ctx, scope)
	if err != nil {
		return
	}
	fmt.Printf("  graph: %d nodes, %d edges, %d vulnerabilities, worst %s\n",
		g.Stats.Nodes,
		g.Stats.Edges,
		g.Stats.Vulnerabilities,
		ui.RenderSeverity(g.Stats.Worst, string(g.Stats.Worst)),
	)
}

var watchListCmd = &cobra.Command{
	Use:   "list",
	Short: "List active watch sessions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		watches, err := gateway.ListWatches(context.Background())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if jsonOutput {
			printJSON(watches)
		} else {
			printWatchListTable(watches)
		}
		return nil
	},
}

var watchStopCmd = &cobra.Command{
	Use:   "stop <scope>",
	Short: "Stop a watch session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := gateway.StopWatch(context.Background(), args[0]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("stopped watching %s\n", args[0])
		return nil
	},
}

func init() {
	watchCmd.Flags().String("version", "", "graph version to watch (default: scope's default)")
	watchCmd.Flags().Bool("reachable-only", false, "drop advisories without reachable call paths")
	watchCmd.Flags().Bool("no-follow", false, "register the session and exit without streaming")
	watchCmd.Flags().Uint64("from", 0, "resume the stream after this event id")

	watchCmd.AddCommand(watchListCmd)
	watchCmd.AddCommand(watchStopCmd)
}
