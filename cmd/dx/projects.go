package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var projectsCmd = &cobra.Command{
	Use:     "projects <team-id>",
	Short:   "List a team's projects",
	GroupID: "browse",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		projects, err := gateway.ListProjects(context.Background(), args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if jsonOutput {
			printJSON(projects)
		} else {
			printProjectListTable(projects)
		}
		return nil
	},
}

var projectCmd = &cobra.Command{
	Use:     "project <id>",
	Short:   "Show a project",
	GroupID: "browse",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		full, _ := cmd.Flags().GetBool("full")

		if full {
			view, err := gateway.GetProjectView(context.Background(), args[0])
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			if jsonOutput {
				printJSON(view)
			} else {
				printProjectView(view)
			}
			return nil
		}

		project, err := gateway.GetProject(context.Background(), args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if jsonOutput {
			printJSON(project)
		} else {
			printProjectTable(project)
		}
		return nil
	},
}

func init() {
	projectCmd.Flags().Bool("full", false, "fetch the full project view (dependencies, bans, org)")
}
