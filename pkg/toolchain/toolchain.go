// Package toolchain locates yt-dlp and ffmpeg and installs them on first use.
package toolchain

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/hashicorp/go-hclog"

	"github.com/debargha2001/ytdlx/pkg/internal/installer"
	"github.com/debargha2001/ytdlx/pkg/logging"
)

// Installer fetches missing binaries.
type Installer interface {
	InstallYtDlp(ctx context.Context) (string, error)
	InstallFFmpeg(ctx context.Context) (string, error)
}

// Options configures a Toolchain. Empty paths mean "look in BinDir, then PATH".
type Options struct {
	YtDlpPath     string
	FFmpegPath    string
	BinDir        string
	NoAutoInstall bool
	Installer     Installer
	Logger        hclog.Logger
}

// Toolchain holds the resolved binary paths. Safe for concurrent use.
type Toolchain struct {
	mu        sync.RWMutex
	ytdlp     string
	ffmpeg    string
	binDir    string
	noAuto    bool
	installer Installer
	logger    hclog.Logger

	ensureOnce sync.Once
	ensureErr  error
}

// DefaultBinDir is ~/.ytdlx/bin.
func DefaultBinDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "ytdlx", "bin")
	}
	return filepath.Join(home, ".ytdlx", "bin")
}

func New(opts Options) *Toolchain {
	t := &Toolchain{
		binDir:    opts.BinDir,
		noAuto:    opts.NoAutoInstall,
		installer: opts.Installer,
		logger:    logging.OrNull(opts.Logger).Named("toolchain"),
	}
	if t.binDir == "" {
		t.binDir = DefaultBinDir()
	}
	if t.installer == nil {
		t.installer = installer.New(t.binDir, t.logger)
	}
	t.ytdlp = t.resolve("yt-dlp", opts.YtDlpPath)
	t.ffmpeg = t.resolve("ffmpeg", opts.FFmpegPath)
	return t
}

// resolve prefers an explicit path, then a locally installed binary, then the bare name for PATH lookup.
func (t *Toolchain) resolve(name, configured string) string {
	if configured != "" && configured != name {
		return configured
	}
	local := filepath.Join(t.binDir, installer.Executable(name, runtime.GOOS))
	if _, err := os.Stat(local); err == nil {
		return local
	}
	return name
}

func (t *Toolchain) YtDlp() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.ytdlp
}

func (t *Toolchain) FFmpeg() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.ffmpeg
}

// Ensure installs whichever binary is missing, once per process.
// Auto-install is skipped when disabled or when both tools are already runnable.
func (t *Toolchain) Ensure(ctx context.Context) error {
	t.ensureOnce.Do(func() {
		t.ensureErr = t.ensure(ctx)
	})
	return t.ensureErr
}

func (t *Toolchain) ensure(ctx context.Context) error {
	ytdlpOK := Runnable(t.YtDlp())
	ffmpegOK := Runnable(t.FFmpeg())
	if ytdlpOK && ffmpegOK {
		return nil
	}
	if t.noAuto {
		t.logger.Warn("required binaries missing and auto-install disabled", "yt-dlp", ytdlpOK, "ffmpeg", ffmpegOK)
		return nil
	}

	t.logger.Info("installing missing binaries, this is a one-time step", "dir", t.binDir)
	return t.install(ctx, !ytdlpOK, !ffmpegOK)
}

// Setup installs both binaries unconditionally.
func (t *Toolchain) Setup(ctx context.Context) error {
	return t.install(ctx, true, true)
}

func (t *Toolchain) install(ctx context.Context, ytdlp, ffmpeg bool) error {
	var errs []error
	if ytdlp {
		path, err := t.installer.InstallYtDlp(ctx)
		if err != nil {
			errs = append(errs, fmt.Errorf("yt-dlp: %w", err))
		} else {
			t.mu.Lock()
			t.ytdlp = path
			t.mu.Unlock()
		}
	}
	if ffmpeg {
		path, err := t.installer.InstallFFmpeg(ctx)
		if err != nil {
			errs = append(errs, fmt.Errorf("ffmpeg: %w", err))
		} else {
			t.mu.Lock()
			t.ffmpeg = path
			t.mu.Unlock()
		}
	}
	return errors.Join(errs...)
}

// Runnable reports whether path names an executable file or a command on PATH.
func Runnable(path string) bool {
	if !filepath.IsAbs(path) && !strings.ContainsRune(path, filepath.Separator) {
		_, err := exec.LookPath(path)
		return err == nil
	}
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	if info.Mode()&0o111 != 0 {
		return true
	}
	return strings.HasSuffix(strings.ToLower(path), ".exe")
}
