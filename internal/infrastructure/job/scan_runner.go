package job

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"time"

	"StarWatch/internal/ports"
)

// ScanRunner invokes the external analysis command against an acquired
// clone and inspects the artifacts it leaves behind.
type ScanRunner struct {
	command []string
	timeout time.Duration
	logger  *slog.Logger
}

var _ ports.Processor = (*ScanRunner)(nil)
var _ ports.ResultInspector = (*ScanRunner)(nil)

// NewScanRunner wires the configured command and per-run timeout. The clone
// path is appended as the command's final argument.
func NewScanRunner(command []string, timeout time.Duration, logger *slog.Logger) *ScanRunner {
	if timeout <= 0 {
		timeout = time.Hour
	}
	return &ScanRunner{command: command, timeout: timeout, logger: logger}
}

// Process runs the analysis job. A deadline hit surfaces as
// ports.ErrProcessTimeout so the caller can record it distinctly.
func (s *ScanRunner) Process(ctx context.Context, path string) error {
	if len(s.command) == 0 {
		return fmt.Errorf("scan command not configured")
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	args := append(append([]string{}, s.command[1:]...), path)
	cmd := exec.CommandContext(ctx, s.command[0], args...)

	start := time.Now()
	err := cmd.Run()
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("scan %s after %s: %w", path, s.timeout, ports.ErrProcessTimeout)
	}
	if err != nil {
		return fmt.Errorf("scan %s: %w", path, err)
	}

	if s.logger != nil {
		s.logger.Debug("scan finished", "path", path, "duration", time.Since(start).Round(time.Millisecond))
	}
	return nil
}

// Outcome implements ports.ResultInspector via the shared report reader.
func (s *ScanRunner) Outcome(path string) string {
	return CountVerified(path)
}
