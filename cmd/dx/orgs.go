package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var orgsCmd = &cobra.Command{
	Use:     "orgs [id]",
	Short:   "List organizations, or show one with its teams and members",
	GroupID: "browse",
	Args:    cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 1 {
			org, err := gateway.GetOrganization(context.Background(), args[0])
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			if jsonOutput {
				printJSON(org)
			} else {
				printOrgTable(org)
			}
			return nil
		}

		orgs, err := gateway.ListOrganizations(context.Background())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if jsonOutput {
			printJSON(orgs)
		} else {
			printOrgListTable(orgs)
		}
		return nil
	},
}
