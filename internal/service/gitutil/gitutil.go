package gitutil

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

const (
	// detectTimeout bounds the git subprocess invocation.
	detectTimeout = 10 * time.Second

	// headRefPrefix is the symbolic-ref prefix inside .git/HEAD.
	headRefPrefix = "ref: refs/heads/"
)

var (
	// ErrNotRepository is returned when no git checkout can be found.
	ErrNotRepository = errors.New("not inside a git repository")
	// ErrDetachedHead is returned when the checkout points at no branch.
	ErrDetachedHead = errors.New("repository is in detached HEAD state")
)

// CurrentBranch returns the branch name of the checkout containing dir.
// It asks the git binary first and falls back to parsing .git/HEAD so
// detection still works without git on PATH.
func CurrentBranch(ctx context.Context, dir string) (string, error) {
	branch, err := branchFromGit(ctx, dir)
	if err == nil {
		return branch, nil
	}

	if errors.Is(err, ErrDetachedHead) {
		return "", err
	}

	return branchFromHeadFile(dir)
}

// branchFromGit shells out to `git rev-parse --abbrev-ref HEAD`.
func branchFromGit(ctx context.Context, dir string) (string, error) {
	execCtx, cancel := context.WithTimeout(ctx, detectTimeout)
	defer cancel()

	command := exec.CommandContext(execCtx, "git", "rev-parse", "--abbrev-ref", "HEAD")
	command.Dir = dir

	output, err := command.Output()
	if err != nil {
		return "", fmt.Errorf("run git: %w", err)
	}

	branch := strings.TrimSpace(string(output))
	if branch == "" || branch == "HEAD" {
		return "", ErrDetachedHead
	}

	return branch, nil
}

// branchFromHeadFile walks up from dir looking for .git/HEAD and parses
// the symbolic ref stored there.
func branchFromHeadFile(dir string) (string, error) {
	current, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolve directory: %w", err)
	}

	for {
		headPath := filepath.Join(current, ".git", "HEAD")

		contents, err := os.ReadFile(headPath)
		if err == nil {
			return parseHeadRef(string(contents))
		}

		if !errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("read %s: %w", headPath, err)
		}

		parent := filepath.Dir(current)
		if parent == current {
			return "", ErrNotRepository
		}

		current = parent
	}
}

// parseHeadRef extracts the branch name from a .git/HEAD symbolic ref.
func parseHeadRef(contents string) (string, error) {
	head := strings.TrimSpace(contents)
	if !strings.HasPrefix(head, headRefPrefix) {
		// A bare commit hash means detached HEAD.
		return "", ErrDetachedHead
	}

	branch := strings.TrimPrefix(head, headRefPrefix)
	if branch == "" {
		return "", ErrDetachedHead
	}

	return branch, nil
}
