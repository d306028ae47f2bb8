package job

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"StarWatch/internal/domain"
	"StarWatch/internal/ports"
)

// GitCloneRunner acquires repository content by shelling out to git. The
// clone gets its own deadline; a stop signal does not interrupt an in-flight
// clone.
type GitCloneRunner struct {
	timeout time.Duration
	logger  *slog.Logger
}

var _ ports.Acquirer = (*GitCloneRunner)(nil)

// NewGitCloneRunner builds a runner with the given per-clone timeout.
func NewGitCloneRunner(timeout time.Duration, logger *slog.Logger) *GitCloneRunner {
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	return &GitCloneRunner{timeout: timeout, logger: logger}
}

// Acquire clones repo.CloneURL into dest. Exit code 0 means success.
func (g *GitCloneRunner) Acquire(ctx context.Context, repo domain.StarredRepo, dest string) error {
	if repo.CloneURL == "" {
		return fmt.Errorf("repo %s has no clone url", repo.FullName)
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "git", "clone", repo.CloneURL, dest)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if g.logger != nil {
		g.logger.Debug("clone starting", "repo", repo.FullName, "dest", dest)
	}

	if err := cmd.Run(); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("clone %s timed out after %s", repo.FullName, g.timeout)
		}
		detail := strings.TrimSpace(stderr.String())
		if detail != "" {
			return fmt.Errorf("clone %s: %s: %w", repo.FullName, detail, err)
		}
		return fmt.Errorf("clone %s: %w", repo.FullName, err)
	}

	return nil
}
