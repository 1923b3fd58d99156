package main

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"text/tabwriter"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"
)

// Remote is a named gateway profile: where to connect and who to act as.
type Remote struct {
	URL         string `toml:"url"`
	Token       string `toml:"token,omitempty"`
	User        string `toml:"user,omitempty"`
	Description string `toml:"description,omitempty"`
}

// RemotesConfig is the on-disk remotes file: every named profile plus the
// currently selected one.
type RemotesConfig struct {
	Active  string            `toml:"active"`
	Remotes map[string]Remote `toml:"remotes"`
}

// remoteConfigPath resolves ~/.local/state/deptex/remotes.toml, creating
// the state directory on first use.
func remoteConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home dir: %w", err)
	}
	dir := filepath.Join(home, ".local", "state", "deptex")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("creating state dir: %w", err)
	}
	return filepath.Join(dir, "remotes.toml"), nil
}

// loadRemotesConfig reads the remotes file. A missing file is a fresh
// install, not an error.
func loadRemotesConfig() (RemotesConfig, error) {
	cfg := RemotesConfig{Remotes: map[string]Remote{}}
	path, err := remoteConfigPath()
	if err != nil {
		return cfg, err
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return cfg, fmt.Errorf("reading %s: %w", path, err)
	}
	return cfg, nil
}

// saveRemotesConfig writes the remotes file, owner-readable only since it
// carries bearer tokens.
func saveRemotesConfig(cfg RemotesConfig) error {
	path, err := remoteConfigPath()
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("encoding remotes: %w", err)
	}
	return os.WriteFile(path, buf.Bytes(), 0o600)
}

// updateRemotes loads the config, applies fn, and saves the result.
func updateRemotes(fn func(*RemotesConfig) error) error {
	cfg, err := loadRemotesConfig()
	if err != nil {
		return err
	}
	if err := fn(&cfg); err != nil {
		return err
	}
	return saveRemotesConfig(cfg)
}

// activeRemote loads the selected profile once per process. Explicit flags
// and environment variables override it in main.go.
var activeRemote = sync.OnceValue(func() Remote {
	cfg, err := loadRemotesConfig()
	if err != nil || cfg.Active == "" {
		return Remote{}
	}
	return cfg.Remotes[cfg.Active]
})

func activeRemoteURL() string   { return activeRemote().URL }
func activeRemoteToken() string { return activeRemote().Token }
func activeRemoteUser() string  { return activeRemote().User }

// maskToken keeps a recognizable prefix and hides the rest.
func maskToken(tok string) string {
	if len(tok) <= 8 {
		return tok
	}
	return tok[:8] + "..."
}

var remoteCmd = &cobra.Command{
	Use:     "remote",
	Short:   "Manage gateway connection profiles",
	GroupID: "system",
	// Subcommands touch only the local remotes file; skip client setup.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
}

var remoteAddCmd = &cobra.Command{
	Use:   "add <name> <url>",
	Short: "Register a gateway under a short name",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, url := args[0], args[1]
		err := updateRemotes(func(cfg *RemotesConfig) error {
			token, _ := cmd.Flags().GetString("token")
			user, _ := cmd.Flags().GetString("user")
			desc, _ := cmd.Flags().GetString("description")
			cfg.Remotes[name] = Remote{URL: url, Token: token, User: user, Description: desc}
			return nil
		})
		if err != nil {
			return err
		}
		cmd.Printf("remote %q added (%s)\n", name, url)
		return nil
	},
}

var remoteRemoveCmd = &cobra.Command{
	Use:   "remove <name>",
	Short: "Delete a remote profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		err := updateRemotes(func(cfg *RemotesConfig) error {
			if _, ok := cfg.Remotes[name]; !ok {
				return fmt.Errorf("no remote named %q", name)
			}
			delete(cfg.Remotes, name)
			if cfg.Active == name {
				cfg.Active = ""
			}
			return nil
		})
		if err != nil {
			return err
		}
		cmd.Printf("remote %q removed\n", name)
		return nil
	},
}

var remoteListCmd = &cobra.Command{
	Use:   "list",
	Short: "Print the configured remotes",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadRemotesConfig()
		if err != nil {
			return err
		}
		if len(cfg.Remotes) == 0 {
			cmd.Println("no remotes configured")
			return nil
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "  NAME\tURL\tUSER\tTOKEN\tDESCRIPTION")
		for _, name := range slices.Sorted(maps.Keys(cfg.Remotes)) {
			r := cfg.Remotes[name]
			marker := "  "
			if name == cfg.Active {
				marker = "* "
			}
			fmt.Fprintf(w, "%s%s\t%s\t%s\t%s\t%s\n", marker, name, r.URL, r.User, maskToken(r.Token), r.Description)
		}
		return w.Flush()
	},
}

var remoteUseCmd = &cobra.Command{
	Use:   "use [name]",
	Short: "Select which remote commands talk to",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			err := updateRemotes(func(cfg *RemotesConfig) error {
				cfg.Active = ""
				return nil
			})
			if err != nil {
				return err
			}
			cmd.Println("active remote cleared")
			return nil
		}
		name := args[0]
		err := updateRemotes(func(cfg *RemotesConfig) error {
			if _, ok := cfg.Remotes[name]; !ok {
				return fmt.Errorf("no remote named %q", name)
			}
			cfg.Active = name
			return nil
		})
		if err != nil {
			return err
		}
		cmd.Printf("active remote set to %q\n", name)
		return nil
	},
}

var remoteShowCmd = &cobra.Command{
	Use:   "show [name]",
	Short: "Display one remote's settings",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadRemotesConfig()
		if err != nil {
			return err
		}
		name := cfg.Active
		if len(args) == 1 {
			name = args[0]
		}
		if name == "" {
			return errors.New("no active remote; name one or run 'dx remote use <name>'")
		}
		r, ok := cfg.Remotes[name]
		if !ok {
			return fmt.Errorf("no remote named %q", name)
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		suffix := ""
		if name == cfg.Active {
			suffix = " (active)"
		}
		fmt.Fprintf(w, "name:\t%s%s\n", name, suffix)
		if r.Description != "" {
			fmt.Fprintf(w, "description:\t%s\n", r.Description)
		}
		fmt.Fprintf(w, "url:\t%s\n", r.URL)
		if r.User != "" {
			fmt.Fprintf(w, "user:\t%s\n", r.User)
		}
		if r.Token != "" {
			fmt.Fprintf(w, "token:\t%s\n", maskToken(r.Token))
		}
		return w.Flush()
	},
}

func init() {
	remoteAddCmd.Flags().String("token", "", "bearer token for authentication")
	remoteAddCmd.Flags().String("user", "", "acting user recorded for this remote")
	remoteAddCmd.Flags().String("description", "", "human-readable description of the remote")

	remoteCmd.AddCommand(remoteAddCmd, remoteRemoveCmd, remoteListCmd, remoteUseCmd, remoteShowCmd)
}
