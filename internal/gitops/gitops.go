// Package gitops is the optional git collaborator boundary: the core calls
// a fixed set of named commands through the Git interface and never links a
// VCS library directly. The CLI adapter shells out to the git binary in the
// workspace directory; a nil Git everywhere simply means the collaborator
// is absent.
package gitops

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Git is the command surface the core is allowed to use.
type Git interface {
	Status(ctx context.Context) (string, error)
	Add(ctx context.Context, paths ...string) error
	Commit(ctx context.Context, message string) error
	Push(ctx context.Context, remote, ref string) error
	Tag(ctx context.Context, name string) error
}

// runFunc executes one git invocation; swapped out in tests.
type runFunc func(ctx context.Context, dir string, args ...string) ([]byte, error)

// CLI invokes the git binary in a fixed working directory.
type CLI struct {
	dir string
	run runFunc
}

// NewCLI binds a CLI adapter to the repository at dir.
func NewCLI(dir string) *CLI {
	return &CLI{dir: dir, run: runGit}
}

func runGit(ctx context.Context, dir string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		return out, fmt.Errorf("git %s: %w: %s", args[0], err, strings.TrimSpace(string(out)))
	}
	return out, nil
}

// Status returns the porcelain status of the workspace; an empty string
// means the tree is clean.
func (c *CLI) Status(ctx context.Context) (string, error) {
	out, err := c.run(ctx, c.dir, "status", "--porcelain")
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// Add stages the given paths.
func (c *CLI) Add(ctx context.Context, paths ...string) error {
	if len(paths) == 0 {
		return nil
	}
	args := append([]string{"add", "--"}, paths...)
	_, err := c.run(ctx, c.dir, args...)
	return err
}

// Commit records the staged changes under message.
func (c *CLI) Commit(ctx context.Context, message string) error {
	_, err := c.run(ctx, c.dir, "commit", "-m", message)
	return err
}

// Push publishes ref to remote.
func (c *CLI) Push(ctx context.Context, remote, ref string) error {
	_, err := c.run(ctx, c.dir, "push", remote, ref)
	return err
}

// Tag creates a lightweight tag named name at HEAD.
func (c *CLI) Tag(ctx context.Context, name string) error {
	_, err := c.run(ctx, c.dir, "tag", name)
	return err
}
