package snapshot

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

// GitDestination commits snapshots to a file in a local clone and pushes the
// result. The clone and branch must already exist; Write never creates them.
type GitDestination struct {
	repo   string
	file   string // repo-relative path
	branch string
}

func NewGitDestination(repo, file, branch string) *GitDestination {
	return &GitDestination{repo: repo, file: file, branch: branch}
}

// Write replaces the snapshot file, commits, and pushes. An unchanged payload
// stages an empty diff and the commit is skipped, so repeated exports of the
// same graph leave no noise in history.
func (d *GitDestination) Write(ctx context.Context, data []byte) error {
	if err := d.git(ctx, "checkout", d.branch); err != nil {
		return err
	}
	// Best effort; the remote may not have the branch yet.
	_ = d.git(ctx, "pull", "--ff-only", "origin", d.branch)

	target := filepath.Join(d.repo, d.file)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("creating snapshot dir: %w", err)
	}
	if err := os.WriteFile(target, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", d.file, err)
	}

	if err := d.git(ctx, "add", d.file); err != nil {
		return err
	}
	if d.git(ctx, "diff", "--cached", "--quiet") == nil {
		// Nothing staged.
		return nil
	}
	if err := d.git(ctx, "commit", "-m", "snapshot: refresh dependency graph export"); err != nil {
		return err
	}
	return d.git(ctx, "push", "origin", d.branch)
}

func (d *GitDestination) git(ctx context.Context, args ...string) error {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = d.repo
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("git %s: %w: %s", args[0], err, bytes.TrimSpace(out))
	}
	return nil
}
