package transcode

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"

	"github.com/hashicorp/go-hclog"

	"github.com/debargha2001/ytdlx/pkg/logging"
)

// Runner executes ffmpeg to completion, reporting progress as it goes.
type Runner interface {
	Run(ctx context.Context, binary string, args []string, progress func(Progress)) error
}

// ExecRunner runs ffmpeg as a child process.
type ExecRunner struct {
	Logger hclog.Logger
}

// stderrTail is how many stderr lines are kept for the failure message.
const stderrTail = 8

func (r ExecRunner) Run(ctx context.Context, binary string, args []string, progress func(Progress)) error {
	logger := logging.OrNull(r.Logger)
	cmd := exec.CommandContext(ctx, binary, args...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("failed to create stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	var (
		wg      sync.WaitGroup
		scanErr error
		tail    []string
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		scanErr = readProgress(stdout, progress)
	}()
	go func() {
		defer wg.Done()
		scanner := bufio.NewScanner(stderr)
		for scanner.Scan() {
			line := scanner.Text()
			logger.Debug("ffmpeg", "line", line)
			tail = append(tail, line)
			if len(tail) > stderrTail {
				tail = tail[1:]
			}
		}
	}()
	wg.Wait()

	if err := cmd.Wait(); err != nil {
		if msg := strings.TrimSpace(strings.Join(tail, "\n")); msg != "" {
			return fmt.Errorf("ffmpeg failed: %w: %s", err, msg)
		}
		return fmt.Errorf("ffmpeg failed: %w", err)
	}
	return scanErr
}

// readProgress parses r until EOF. After a scan error the rest is discarded so
// ffmpeg never blocks on a full stdout pipe.
func readProgress(r io.Reader, fn func(Progress)) error {
	err := ParseProgress(r, fn)
	if err == nil {
		return nil
	}
	_, _ = io.Copy(io.Discard, r)
	return fmt.Errorf("progress scan error: %w", err)
}
