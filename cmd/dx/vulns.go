package main

import (
	"context"
	"fmt"
	"os"

	"github.com/deptexhq/deptex/internal/client"
	"github.com/spf13/cobra"
)

var vulnsCmd = &cobra.Command{
	Use:     "vulns <project-id>",
	Short:   "List a project's vulnerabilities",
	GroupID: "browse",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		version, _ := cmd.Flags().GetString("version")
		severity, _ := cmd.Flags().GetStringSlice("severity")
		reachable, _ := cmd.Flags().GetBool("reachable")
		kev, _ := cmd.Flags().GetBool("kev")
		pkg, _ := cmd.Flags().GetString("package")
		limit, _ := cmd.Flags().GetInt("limit")

		resp, err := gateway.ListVulnerabilities(context.Background(), &client.ListVulnerabilitiesRequest{
			ProjectID:     args[0],
			Version:       version,
			Severity:      severity,
			ReachableOnly: reachable,
			KEVOnly:       kev,
			Package:       pkg,
			Limit:         limit,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if jsonOutput {
			printJSON(resp.Vulnerabilities)
		} else {
			printVulnListTable(resp.Vulnerabilities, resp.Total)
		}
		return nil
	},
}

func init() {
	vulnsCmd.Flags().String("version", "", "graph version to inspect (default: project's default)")
	vulnsCmd.Flags().StringSliceP("severity", "s", nil, "filter by severity (repeatable)")
	vulnsCmd.Flags().Bool("reachable", false, "only advisories with reachable call paths")
	vulnsCmd.Flags().Bool("kev", false, "only advisories in CISA's KEV catalog")
	vulnsCmd.Flags().StringP("package", "p", "", "filter by package name")
	vulnsCmd.Flags().Int("limit", 0, "maximum number of advisories to return (0 = server default)")
}
