package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var teamsCmd = &cobra.Command{
	Use:     "teams <org-id>",
	Short:   "List an organization's teams",
	GroupID: "browse",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		teams, err := gateway.ListTeams(context.Background(), args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if jsonOutput {
			printJSON(teams)
		} else {
			printTeamListTable(teams)
		}
		return nil
	},
}

var teamCmd = &cobra.Command{
	Use:     "team <id>",
	Short:   "Show a team with its projects",
	GroupID: "browse",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		team, err := gateway.GetTeam(context.Background(), args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if jsonOutput {
			printJSON(team)
			return nil
		}
		fmt.Printf("ID:   %s\n", team.ID)
		fmt.Printf("Slug: %s\n", team.Slug)
		fmt.Printf("Name: %s\n", team.Name)
		if len(team.Projects) > 0 {
			fmt.Println()
			printProjectListTable(team.Projects)
		}
		return nil
	},
}
