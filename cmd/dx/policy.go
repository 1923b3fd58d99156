package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/deptexhq/deptex/internal/client"
	"github.com/deptexhq/deptex/internal/model"
	"github.com/spf13/cobra"
)

var policyCmd = &cobra.Command{
	Use:     "policy",
	Short:   "Manage banned versions, exceptions, and violations",
	GroupID: "policy",
}

var policyBansCmd = &cobra.Command{
	Use:   "bans <org-id>",
	Short: "List an organization's banned versions",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		bans, err := gateway.ListBans(context.Background(), args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if jsonOutput {
			printJSON(bans)
		} else {
			printBanListTable(bans)
		}
		return nil
	},
}

var policyBanCmd = &cobra.Command{
	Use:   "ban <org-id> <package>",
	Short: "Ban a package version range",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		rng, _ := cmd.Flags().GetString("range")
		ecosystem, _ := cmd.Flags().GetString("ecosystem")
		reason, _ := cmd.Flags().GetString("reason")
		action, _ := cmd.Flags().GetString("action")
		expiresIn, _ := cmd.Flags().GetDuration("expires-in")
		bumpPRs, _ := cmd.Flags().GetBool("bump-prs")

		req := &client.CreateBanRequest{
			Package:     args[1],
			Ecosystem:   ecosystem,
			Range:       rng,
			Reason:      reason,
			Action:      action,
			OpenBumpPRs: bumpPRs,
		}
		if expiresIn > 0 {
			t := time.Now().Add(expiresIn)
			req.ExpiresAt = &t
		}

		ban, err := gateway.CreateBan(context.Background(), args[0], req)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if jsonOutput {
			printJSON(ban)
			return nil
		}
		fmt.Printf("banned %s %s (%s, action=%s)\n", ban.Package, ban.Range, ban.ID, ban.Action)
		return nil
	},
}

var policyUnbanCmd = &cobra.Command{
	Use:   "unban <org-id> <ban-id>",
	Short: "Lift a ban",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := gateway.RemoveBan(context.Background(), args[0], args[1]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("ban %s removed\n", args[1])
		return nil
	},
}

var policyExceptionsCmd = &cobra.Command{
	Use:   "exceptions <org-id>",
	Short: "List an organization's policy exceptions",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		exceptions, err := gateway.ListExceptions(context.Background(), args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if jsonOutput {
			printJSON(exceptions)
		} else {
			printExceptionListTable(exceptions)
		}
		return nil
	},
}

var policyExceptCmd = &cobra.Command{
	Use:   "except <org-id> <ban-id> <project-id>",
	Short: "Grant a project a time-boxed exception to a ban",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		justification, _ := cmd.Flags().GetString("justification")
		expiresIn, _ := cmd.Flags().GetDuration("expires-in")

		req := &client.CreateExceptionRequest{
			BanID:         args[1],
			ProjectID:     args[2],
			Justification: justification,
		}
		if expiresIn > 0 {
			t := time.Now().Add(expiresIn)
			req.ExpiresAt = &t
		}

		exception, err := gateway.CreateException(context.Background(), args[0], req)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if jsonOutput {
			printJSON(exception)
			return nil
		}
		fmt.Printf("exception %s granted to %s for ban %s\n", exception.ID, exception.ProjectID, exception.BanID)
		return nil
	},
}

var policyViolationsCmd = &cobra.Command{
	Use:   "violations [org-id]",
	Short: "List open violations for an organization or a project",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		project, _ := cmd.Flags().GetString("project")

		var violations []*model.Violation
		var err error
		switch {
		case project != "":
			violations, err = gateway.ListProjectViolations(context.Background(), project)
		case len(args) == 1:
			violations, err = gateway.ListOrgViolations(context.Background(), args[0])
		default:
			return fmt.Errorf("specify an org-id or --project")
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if jsonOutput {
			printJSON(violations)
		} else {
			printViolationListTable(violations)
		}
		return nil
	},
}

var policyBumpPRsCmd = &cobra.Command{
	Use:   "bump-prs <org-id>",
	Short: "List automated upgrade PRs",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		prs, err := gateway.ListBumpPRs(context.Background(), args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if jsonOutput {
			printJSON(prs)
		} else {
			printBumpPRListTable(prs)
		}
		return nil
	},
}

func init() {
	policyBanCmd.Flags().String("range", "", "version range in ecosystem-native syntax (empty = all versions)")
	policyBanCmd.Flags().StringP("ecosystem", "e", "", "package ecosystem (npm, pypi, go, maven, cargo)")
	policyBanCmd.Flags().String("reason", "", "why the range is banned")
	policyBanCmd.Flags().String("action", "warn", "enforcement action: warn or block")
	policyBanCmd.Flags().Duration("expires-in", 0, "lift the ban after this duration (0 = never)")
	policyBanCmd.Flags().Bool("bump-prs", false, "ask the backend to open upgrade PRs for violating projects")

	policyExceptCmd.Flags().String("justification", "", "why the project needs the exception")
	policyExceptCmd.Flags().Duration("expires-in", 0, "revoke the exception after this duration (0 = never)")
	_ = policyExceptCmd.MarkFlagRequired("justification")

	policyViolationsCmd.Flags().StringP("project", "p", "", "list a single project's violations instead")

	policyCmd.AddCommand(policyBansCmd)
	policyCmd.AddCommand(policyBanCmd)
	policyCmd.AddCommand(policyUnbanCmd)
	policyCmd.AddCommand(policyExceptionsCmd)
	policyCmd.AddCommand(policyExceptCmd)
	policyCmd.AddCommand(policyViolationsCmd)
	policyCmd.AddCommand(policyBumpPRsCmd)
}
