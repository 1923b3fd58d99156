package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var prefsCmd = &cobra.Command{
	Use:     "prefs",
	Short:   "Manage per-user preferences",
	GroupID: "workspace",
}

var prefsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List your preferences, including built-in defaults",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		prefs, err := gateway.ListPreferences(context.Background())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if jsonOutput {
			printJSON(prefs)
		} else {
			printPreferenceListTable(prefs)
		}
		return nil
	},
}

var prefsGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Show one preference",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pref, err := gateway.GetPreference(context.Background(), args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if jsonOutput {
			printJSON(pref)
			return nil
		}
		fmt.Println(pref.Value)
		return nil
	},
}

var prefsSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a preference",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		pref, err := gateway.SetPreference(context.Background(), args[0], args[1])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("%s = %s\n", pref.Key, pref.Value)
		return nil
	},
}

var prefsUnsetCmd = &cobra.Command{
	Use:   "unset <key>",
	Short: "Delete a preference, reverting to its default",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := gateway.DeletePreference(context.Background(), args[0]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("preference %q deleted\n", args[0])
		return nil
	},
}

func init() {
	prefsCmd.AddCommand(prefsListCmd)
	prefsCmd.AddCommand(prefsGetCmd)
	prefsCmd.AddCommand(prefsSetCmd)
	prefsCmd.AddCommand(prefsUnsetCmd)
}
