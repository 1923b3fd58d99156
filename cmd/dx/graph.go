package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/deptexhq/deptex/internal/client"
	"github.com/spf13/cobra"
)

var graphCmd = &cobra.Command{
	Use:     "graph <scope>",
	Short:   "Fetch the laid-out supply-chain graph for a scope",
	Long:    "Fetch the laid-out supply-chain graph for a project:<id>, team:<id>, or org:<id> scope.\nThe default output is a summary; use --json for the full scene or --format png/html to export.",
	GroupID: "graph",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		version, _ := cmd.Flags().GetString("version")
		reachableOnly, _ := cmd.Flags().GetBool("reachable-only")
		format, _ := cmd.Flags().GetString("format")
		out, _ := cmd.Flags().GetString("out")

		req := &client.GraphRequest{
			Scope:         args[0],
			Version:       version,
			ReachableOnly: reachableOnly,
		}

		switch format {
		case "json", "":
			resp, err := gateway.GetGraph(context.Background(), req)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			if jsonOutput || out != "" {
				return writeGraphJSON(resp, out)
			}
			printGraphSummary(resp)
			return nil
		case "png", "html":
			data, err := gateway.ExportGraph(context.Background(), req, format)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			if out == "" {
				out = defaultExportName(args[0], format)
			}
			if out == "-" {
				_, err := os.Stdout.Write(data)
				return err
			}
			if err := os.WriteFile(out, data, 0o644); err != nil {
				return err
			}
			fmt.Printf("wrote %s (%d bytes)\n", out, len(data))
			return nil
		default:
			return fmt.Errorf("unknown format %q (expected json, png, or html)", format)
		}
	},
}

// defaultExportName derives a filesystem-safe filename from a scope.
func defaultExportName(scope, format string) string {
	return strings.ReplaceAll(scope, ":", "-") + "." + format
}

func writeGraphJSON(resp *client.GraphResponse, out string) error {
	if out == "" || out == "-" {
		printJSON(resp)
		return nil
	}
	data, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(out, data, 0o644); err != nil {
		return err
	}
	fmt.Printf("wrote %s\n", out)
	return nil
}

func init() {
	graphCmd.Flags().String("version", "", "graph version to render (default: scope's default)")
	graphCmd.Flags().Bool("reachable-only", false, "drop advisories without reachable call paths")
	graphCmd.Flags().StringP("format", "f", "json", "output format: json, png, or html")
	graphCmd.Flags().StringP("out", "o", "", "write output to a file (- for stdout)")
}
