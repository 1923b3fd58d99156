package main

import (
	"context"
	"fmt"
	"os"

	"github.com/deptexhq/deptex/internal/client"
	"github.com/spf13/cobra"
)

var depsCmd = &cobra.Command{
	Use:     "deps <project-id>",
	Short:   "List a project's dependencies",
	GroupID: "browse",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		version, _ := cmd.Flags().GetString("version")
		ecosystem, _ := cmd.Flags().GetStringSlice("ecosystem")
		severity, _ := cmd.Flags().GetStringSlice("severity")
		search, _ := cmd.Flags().GetString("search")
		sort, _ := cmd.Flags().GetString("sort")
		limit, _ := cmd.Flags().GetInt("limit")

		req := &client.ListDependenciesRequest{
			ProjectID: args[0],
			Version:   version,
			Ecosystem: ecosystem,
			Severity:  severity,
			Search:    search,
			Sort:      sort,
			Limit:     limit,
		}
		// Three-state flags: unset means no filter.
		if cmd.Flags().Changed("direct") {
			direct, _ := cmd.Flags().GetBool("direct")
			req.Direct = &direct
		}
		if cmd.Flags().Changed("zombie") {
			zombie, _ := cmd.Flags().GetBool("zombie")
			req.Zombie = &zombie
		}

		resp, err := gateway.ListDependencies(context.Background(), req)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if jsonOutput {
			printJSON(resp.Dependencies)
		} else {
			printDependencyListTable(resp.Dependencies, resp.Total)
		}
		return nil
	},
}

func init() {
	depsCmd.Flags().String("version", "", "graph version to inspect (default: project's default)")
	depsCmd.Flags().StringSliceP("ecosystem", "e", nil, "filter by ecosystem (repeatable)")
	depsCmd.Flags().StringSliceP("severity", "s", nil, "keep dependencies with vulnerabilities at these severities (repeatable)")
	depsCmd.Flags().Bool("direct", false, "true keeps direct dependencies, false keeps transitive")
	depsCmd.Flags().Bool("zombie", false, "true keeps unreferenced manifest entries, false drops them")
	depsCmd.Flags().String("search", "", "substring match on package name")
	depsCmd.Flags().String("sort", "", "sort order: name, severity, or score")
	depsCmd.Flags().Int("limit", 0, "maximum number of dependencies to return (0 = server default)")
}
