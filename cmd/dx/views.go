package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/deptexhq/deptex/internal/client"
	"github.com/spf13/cobra"
)

var viewsCmd = &cobra.Command{
	Use:     "views",
	Short:   "Manage saved graph views",
	GroupID: "workspace",
}

var viewsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List your saved views",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		views, err := gateway.ListViews(context.Background())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if jsonOutput {
			printJSON(views)
		} else {
			printViewListTable(views)
		}
		return nil
	},
}

var viewsShowCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Show a saved view",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		view, err := gateway.GetView(context.Background(), args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		printJSON(view)
		return nil
	},
}

var viewsSaveCmd = &cobra.Command{
	Use:   "save <name>",
	Short: "Save or update a named view",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		scope, _ := cmd.Flags().GetString("scope")
		filters, _ := cmd.Flags().GetString("filters")
		layout, _ := cmd.Flags().GetString("layout")

		req := &client.SaveViewRequest{Scope: scope}
		if filters != "" {
			if !json.Valid([]byte(filters)) {
				return fmt.Errorf("--filters is not valid JSON")
			}
			req.Filters = json.RawMessage(filters)
		}
		if layout != "" {
			if !json.Valid([]byte(layout)) {
				return fmt.Errorf("--layout is not valid JSON")
			}
			req.Layout = json.RawMessage(layout)
		}

		view, err := gateway.SaveView(context.Background(), args[0], req)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("view %q saved (%s)\n", view.Name, view.Scope)
		return nil
	},
}

var viewsDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a saved view",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := gateway.DeleteView(context.Background(), args[0]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("view %q deleted\n", args[0])
		return nil
	},
}

func init() {
	viewsSaveCmd.Flags().String("scope", "", "graph scope the view restores")
	viewsSaveCmd.Flags().String("filters", "", "filter settings as a JSON object")
	viewsSaveCmd.Flags().String("layout", "", "layout settings as a JSON object")
	_ = viewsSaveCmd.MarkFlagRequired("scope")

	viewsCmd.AddCommand(viewsListCmd)
	viewsCmd.AddCommand(viewsShowCmd)
	viewsCmd.AddCommand(viewsSaveCmd)
	viewsCmd.AddCommand(viewsDeleteCmd)
}
