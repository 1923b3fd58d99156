package main

import (
	"os"
	"os/exec"
	"strings"

	"github.com/deptexhq/deptex/internal/client"
	"github.com/deptexhq/deptex/internal/ui"
	"github.com/spf13/cobra"
)

var (
	gatewayURL string
	authToken  string
	actingUser string
	jsonOutput bool
	noColor    bool

	gateway client.GatewayClient
)

func defaultGatewayURL() string {
	if s := os.Getenv("DX_GATEWAY_URL"); s != "" {
		return s
	}
	if u := activeRemoteURL(); u != "" {
		return u
	}
	return "http://localhost:8080"
}

func defaultToken() string {
	if s := os.Getenv("DX_TOKEN"); s != "" {
		return s
	}
	return activeRemoteToken()
}

func defaultUser() string {
	if s := os.Getenv("DX_USER"); s != "" {
		return s
	}
	if u := activeRemoteUser(); u != "" {
		return u
	}
	out, err := exec.Command("git", "config", "user.name").Output()
	if err == nil {
		if name := strings.TrimSpace(string(out)); name != "" {
			return name
		}
	}
	return "local"
}

var rootCmd = &cobra.Command{
	Use:   "dx <command>",
	Short: "CLI client for the Deptex dependency-security gateway",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if noColor {
			ui.ForceNoColor()
		}
		gateway = client.NewHTTPClient(gatewayURL, authToken, actingUser)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if gateway != nil {
			gateway.Close()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&gatewayURL, "url", defaultGatewayURL(), "gateway URL")
	rootCmd.PersistentFlags().StringVar(&authToken, "token", defaultToken(), "bearer token for authentication")
	rootCmd.PersistentFlags().StringVar(&actingUser, "user", defaultUser(), "acting user for views, preferences, and audit attribution")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable ANSI colors")

	rootCmd.AddGroup(
		&cobra.Group{ID: "browse", Title: "Browse:"},
		&cobra.Group{ID: "graph", Title: "Graph:"},
		&cobra.Group{ID: "policy", Title: "Policy:"},
		&cobra.Group{ID: "workspace", Title: "Workspace:"},
		&cobra.Group{ID: "system", Title: "System:"},
	)

	cobra.EnableCommandSorting = false
	rootCmd.SetHelpFunc(colorizedHelpFunc())

	// Browse
	rootCmd.AddCommand(orgsCmd)
	rootCmd.AddCommand(teamsCmd)
	rootCmd.AddCommand(teamCmd)
	rootCmd.AddCommand(projectsCmd)
	rootCmd.AddCommand(projectCmd)
	rootCmd.AddCommand(depsCmd)
	rootCmd.AddCommand(vulnsCmd)
	rootCmd.AddCommand(scoreCmd)

	// Graph
	rootCmd.AddCommand(graphCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(presenceCmd)

	// Policy
	rootCmd.AddCommand(policyCmd)

	// Workspace
	rootCmd.AddCommand(viewsCmd)
	rootCmd.AddCommand(prefsCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(eventsCmd)

	// System
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(snapshotCmd)
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(remoteCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
