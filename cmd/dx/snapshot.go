package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/deptexhq/deptex/internal/canvas"
	"github.com/deptexhq/deptex/internal/client"
	"github.com/deptexhq/deptex/internal/snapshot"
	"github.com/spf13/cobra"
)

// gatewaySource adapts the gateway client to the snapshot exporter, so the
// CLI can produce the same JSONL the serve-side scheduler ships.
type gatewaySource struct {
	c client.GatewayClient
}

func (s gatewaySource) GraphForScope(ctx context.Context, scope string) (*canvas.Graph, error) {
	resp, err := s.c.GetGraph(ctx, &client.GraphRequest{Scope: scope})
	if err != nil {
		return nil, err
	}
	return &resp.Graph, nil
}

var snapshotCmd = &cobra.Command{
	Use:     "snapshot <scope>...",
	Short:   "Export graph snapshots as JSONL",
	Long:    "Fetch the laid-out graph for each scope and write a JSONL snapshot, one record per\nscope, matching the format the serve-side scheduler ships to S3 and git.",
	GroupID: "system",
	Args:    cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out, _ := cmd.Flags().GetString("out")

		var w io.Writer = os.Stdout
		if out != "" && out != "-" {
			f, err := os.Create(out)
			if err != nil {
				return err
			}
			defer f.Close()
			w = f
		}

		if err := snapshot.ExportJSONL(context.Background(), gatewaySource{gateway}, args, w); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if out != "" && out != "-" {
			fmt.Printf("wrote %s (%d scopes)\n", out, len(args))
		}
		return nil
	},
}

func init() {
	snapshotCmd.Flags().StringP("out", "o", "", "write to a file instead of stdout")
}
