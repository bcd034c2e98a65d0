// Package installer fetches yt-dlp and ffmpeg release binaries into a local bin directory.
package installer

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/hashicorp/go-hclog"
)

// Installer downloads the external tools into BinDir.
type Installer struct {
	BinDir string
	Client *http.Client
	GOOS   string
	Logger hclog.Logger
}

// New returns an installer targeting binDir for the running platform.
func New(binDir string, logger hclog.Logger) *Installer {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Installer{
		BinDir: binDir,
		Client: http.DefaultClient,
		GOOS:   runtime.GOOS,
		Logger: logger.Named("installer"),
	}
}

// Executable returns the platform file name for a tool.
func Executable(name, goos string) string {
	if goos == "windows" {
		return name + ".exe"
	}
	return name
}

// YtDlpURL returns the release download for goos.
func YtDlpURL(goos string) (string, error) {
	switch goos {
	case "linux":
		return "https://github.com/yt-dlp/yt-dlp/releases/latest/download/yt-dlp", nil
	case "darwin":
		return "https://github.com/yt-dlp/yt-dlp/releases/latest/download/yt-dlp_macos", nil
	case "windows":
		return "https://github.com/yt-dlp/yt-dlp/releases/latest/download/yt-dlp.exe", nil
	default:
		return "", fmt.Errorf("unsupported OS: %s", goos)
	}
}

// FFmpegURL returns the static build download and its archive type for goos.
func FFmpegURL(goos string) (url, archive string, err error) {
	switch goos {
	case "linux":
		return "https://johnvansickle.com/ffmpeg/releases/ffmpeg-release-amd64-static.tar.xz", "tar.xz", nil
	case "darwin":
		return "https://evermeet.cx/ffmpeg/getrelease/ffmpeg/zip", "zip", nil
	case "windows":
		return "https://github.com/BtbN/FFmpeg-Builds/releases/download/latest/ffmpeg-master-latest-win64-gpl.zip", "zip", nil
	default:
		return "", "", fmt.Errorf("unsupported OS: %s", goos)
	}
}

// InstallYtDlp downloads yt-dlp and returns its installed path.
func (i *Installer) InstallYtDlp(ctx context.Context) (string, error) {
	url, err := YtDlpURL(i.GOOS)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(i.BinDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create bin directory: %w", err)
	}

	dest := filepath.Join(i.BinDir, Executable("yt-dlp", i.GOOS))
	i.Logger.Info("downloading yt-dlp", "url", url)
	if err := i.download(ctx, url, dest); err != nil {
		return "", fmt.Errorf("failed to download yt-dlp: %w", err)
	}
	if err := os.Chmod(dest, 0o755); err != nil {
		return "", fmt.Errorf("failed to make yt-dlp executable: %w", err)
	}
	i.Logger.Info("yt-dlp installed", "path", dest)
	return dest, nil
}

// InstallFFmpeg downloads and unpacks ffmpeg and returns its installed path.
func (i *Installer) InstallFFmpeg(ctx context.Context) (string, error) {
	url, archive, err := FFmpegURL(i.GOOS)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(i.BinDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create bin directory: %w", err)
	}

	tmp, err := os.CreateTemp("", "ffmpeg-download-*."+archive)
	if err != nil {
		return "", err
	}
	tmpPath := tmp.Name()
	tmp.Close()
	defer os.Remove(tmpPath)

	i.Logger.Info("downloading ffmpeg", "url", url)
	if err := i.download(ctx, url, tmpPath); err != nil {
		return "", fmt.Errorf("failed to download ffmpeg: %w", err)
	}

	dest := filepath.Join(i.BinDir, Executable("ffmpeg", i.GOOS))
	switch archive {
	case "zip":
		err = extractZip(tmpPath, dest, filepath.Base(dest))
	case "tar.gz":
		err = extractTarGz(tmpPath, dest)
	case "tar.xz":
		err = extractTarXz(ctx, tmpPath, dest)
	}
	if err != nil {
		return "", fmt.Errorf("failed to extract ffmpeg: %w", err)
	}
	if _, err := os.Stat(dest); err != nil {
		return "", fmt.Errorf("ffmpeg installation verification failed: %w", err)
	}
	i.Logger.Info("ffmpeg installed", "path", dest)
	return dest, nil
}

func (i *Installer) download(ctx context.Context, url, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	client := i.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("bad status: %s", resp.Status)
	}

	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer out.Close()

	pw := &progressWriter{total: resp.ContentLength, logger: i.Logger, name: filepath.Base(dest)}
	if _, err := io.Copy(out, io.TeeReader(resp.Body, pw)); err != nil {
		return err
	}
	return out.Sync()
}

// progressWriter logs every ten percent of a download.
type progressWriter struct {
	total   int64
	written int64
	next    int64
	name    string
	logger  hclog.Logger
}

func (p *progressWriter) Write(b []byte) (int, error) {
	p.written += int64(len(b))
	if p.total > 0 {
		pct := p.written * 100 / p.total
		if pct >= p.next {
			p.logger.Debug("download progress", "file", p.name, "percent", pct, "mb", p.written/(1024*1024))
			p.next = pct + 10
		}
	}
	return len(b), nil
}

func extractZip(zipPath, dest, executable string) error {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return err
	}
	defer r.Close()

	for _, f := range r.File {
		if f.FileInfo().IsDir() || filepath.Base(f.Name) != executable {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return err
		}
		defer rc.Close()
		return writeExecutable(dest, rc)
	}
	return fmt.Errorf("ffmpeg binary not found in archive")
}

func extractTarGz(tarPath, dest string) error {
	file, err := os.Open(tarPath)
	if err != nil {
		return err
	}
	defer file.Close()

	gzr, err := gzip.NewReader(file)
	if err != nil {
		return err
	}
	defer gzr.Close()

	tr := tar.NewReader(gzr)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		if header.Typeflag == tar.TypeReg && filepath.Base(header.Name) == "ffmpeg" {
			return writeExecutable(dest, tr)
		}
	}
	return fmt.Errorf("ffmpeg binary not found in archive")
}

// extractTarXz shells out to tar, which handles xz on every platform that ships the linux build.
func extractTarXz(ctx context.Context, tarPath, dest string) error {
	dir, err := os.MkdirTemp("", "ffmpeg-extract-*")
	if err != nil {
		return err
	}
	defer os.RemoveAll(dir)

	cmd := exec.CommandContext(ctx, "tar", "-xJf", tarPath, "-C", dir)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("tar failed: %w: %s", err, strings.TrimSpace(string(out)))
	}

	var found string
	err = filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && d.Name() == "ffmpeg" && found == "" {
			found = path
		}
		return nil
	})
	if err != nil {
		return err
	}
	if found == "" {
		return fmt.Errorf("ffmpeg binary not found in archive")
	}
	src, err := os.Open(found)
	if err != nil {
		return err
	}
	defer src.Close()
	return writeExecutable(dest, src)
}

func writeExecutable(dest string, r io.Reader) error {
	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o755)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
