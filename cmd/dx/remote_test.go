package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
)

// runRemote executes one remote subcommand against a fresh buffer and
// returns what it printed.
func runRemote(t *testing.T, cmd *cobra.Command, args ...string) string {
	t.Helper()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	if err := cmd.RunE(cmd, args); err != nil {
		t.Fatalf("%s %v: %v", cmd.Name(), args, err)
	}
	return buf.String()
}

func TestRemotesConfigRoundTrip(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	in := RemotesConfig{
		Active: "prod",
		Remotes: map[string]Remote{
			"prod":  {URL: "https://deptex.example.com", Token: "tok_abc", User: "ada", Description: "production"},
			"local": {URL: "http://localhost:8080"},
		},
	}
	if err := saveRemotesConfig(in); err != nil {
		t.Fatalf("saveRemotesConfig: %v", err)
	}

	got, err := loadRemotesConfig()
	if err != nil {
		t.Fatalf("loadRemotesConfig: %v", err)
	}
	if got.Active != "prod" {
		t.Errorf("Active = %q, want prod", got.Active)
	}
	if prod := got.Remotes["prod"]; prod != in.Remotes["prod"] {
		t.Errorf("prod = %+v, want %+v", prod, in.Remotes["prod"])
	}
	if local := got.Remotes["local"]; local.URL != "http://localhost:8080" {
		t.Errorf("local = %+v", local)
	}
}

func TestLoadRemotesConfig_FirstRun(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg, err := loadRemotesConfig()
	if err != nil {
		t.Fatalf("loadRemotesConfig: %v", err)
	}
	if cfg.Active != "" || len(cfg.Remotes) != 0 {
		t.Errorf("first run config = %+v, want empty", cfg)
	}
	// The zero config must accept writes without further setup.
	cfg.Remotes["dev"] = Remote{URL: "http://localhost:8080"}
}

func TestRemotesFilePermissions(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	if err := saveRemotesConfig(RemotesConfig{Remotes: map[string]Remote{}}); err != nil {
		t.Fatalf("saveRemotesConfig: %v", err)
	}
	path, err := remoteConfigPath()
	if err != nil {
		t.Fatalf("config path: %v", err)
	}

	// Tokens live in this file; keep it and its directory private.
	for p, want := range map[string]os.FileMode{path: 0o600, filepath.Dir(path): 0o700} {
		info, err := os.Stat(p)
		if err != nil {
			t.Fatalf("stat %s: %v", p, err)
		}
		if got := info.Mode().Perm(); got != want {
			t.Errorf("%s mode = %04o, want %04o", p, got, want)
		}
	}
}

func TestRemoteLifecycle(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	runRemote(t, remoteAddCmd, "local", "http://localhost:8080")
	runRemote(t, remoteAddCmd, "local", "http://localhost:8080") // re-adding upserts
	runRemote(t, remoteUseCmd, "local")

	cfg, err := loadRemotesConfig()
	if err != nil {
		t.Fatalf("loadRemotesConfig: %v", err)
	}
	if cfg.Active != "local" || len(cfg.Remotes) != 1 {
		t.Fatalf("config after use = %+v", cfg)
	}

	if out := runRemote(t, remoteListCmd); !strings.Contains(out, "* local") {
		t.Errorf("list lacks active marker:\n%s", out)
	}

	out := runRemote(t, remoteShowCmd)
	for _, want := range []string{"local", "http://localhost:8080", "(active)"} {
		if !strings.Contains(out, want) {
			t.Errorf("show lacks %q:\n%s", want, out)
		}
	}
	if out := runRemote(t, remoteShowCmd, "local"); !strings.Contains(out, "http://localhost:8080") {
		t.Errorf("show by name lacks URL:\n%s", out)
	}

	runRemote(t, remoteRemoveCmd, "local")
	cfg, err = loadRemotesConfig()
	if err != nil {
		t.Fatalf("loadRemotesConfig: %v", err)
	}
	if _, ok := cfg.Remotes["local"]; ok {
		t.Error("removed remote still present")
	}
	if cfg.Active != "" {
		t.Errorf("Active = %q after removing the active remote, want empty", cfg.Active)
	}
}

func TestRemoteListSorted(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	runRemote(t, remoteAddCmd, "staging", "https://staging.deptex.example.com")
	runRemote(t, remoteAddCmd, "prod", "https://deptex.example.com")

	out := runRemote(t, remoteListCmd)
	prod, staging := strings.Index(out, "prod"), strings.Index(out, "staging")
	if prod < 0 || staging < 0 || prod > staging {
		t.Errorf("list should order remotes by name:\n%s", out)
	}
}

func TestRemoteTokenMasking(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	if err := remoteAddCmd.Flags().Set("token", "tok_verylongsecret"); err != nil {
		t.Fatalf("set token flag: %v", err)
	}
	t.Cleanup(func() { _ = remoteAddCmd.Flags().Set("token", "") })

	runRemote(t, remoteAddCmd, "prod", "https://deptex.example.com")
	runRemote(t, remoteUseCmd, "prod")

	for _, cmd := range []*cobra.Command{remoteListCmd, remoteShowCmd} {
		out := runRemote(t, cmd)
		if strings.Contains(out, "tok_verylongsecret") {
			t.Errorf("%s leaks the full token:\n%s", cmd.Name(), out)
		}
		if !strings.Contains(out, "tok_very...") {
			t.Errorf("%s should show the masked token:\n%s", cmd.Name(), out)
		}
	}
}

func TestMaskToken(t *testing.T) {
	if got := maskToken(""); got != "" {
		t.Errorf("maskToken(%q) = %q, want empty", "", got)
	}
	if got := maskToken("short"); got != "short" {
		t.Errorf("short tokens pass through, got %q", got)
	}
	if got := maskToken("tok_verylongsecret"); got != "tok_very..." {
		t.Errorf("maskToken = %q, want tok_very...", got)
	}
}

func TestRemoteCommandErrors(t *testing.T) {
	for name, fn := range map[string]func() error{
		"use unknown":    func() error { return remoteUseCmd.RunE(remoteUseCmd, []string{"ghost"}) },
		"remove unknown": func() error { return remoteRemoveCmd.RunE(remoteRemoveCmd, []string{"ghost"}) },
		"show no active": func() error { return remoteShowCmd.RunE(remoteShowCmd, nil) },
	} {
		t.Run(name, func(t *testing.T) {
			t.Setenv("HOME", t.TempDir())
			if err := fn(); err == nil {
				t.Fatal("want error, got nil")
			}
		})
	}
}
