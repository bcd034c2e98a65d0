// Package transcode builds and drives the ffmpeg jobs behind every download product.
package transcode

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/alessio/shellescape"
	"github.com/hashicorp/go-hclog"

	"github.com/debargha2001/ytdlx/pkg/engine"
	"github.com/debargha2001/ytdlx/pkg/formats"
	"github.com/debargha2001/ytdlx/pkg/logging"
	"github.com/debargha2001/ytdlx/pkg/yterr"
)

// Tools provides the ffmpeg binary.
type Tools interface {
	FFmpeg() string
	Ensure(ctx context.Context) error
}

// MetadataBundle is emitted instead of running ffmpeg when metadata mode is requested.
type MetadataBundle struct {
	MetaData     engine.MetaData    `json:"metaData"`
	IPAddress    string             `json:"ipAddress"`
	Selection    formats.Selection  `json:"selection"`
	Filename     string             `json:"filename"`
	Warning      string             `json:"warning,omitempty"`
	AudioLowDRC  []engine.Rendition `json:"AudioLowDRC,omitempty"`
	AudioHighDRC []engine.Rendition `json:"AudioHighDRC,omitempty"`
	VideoLowHDR  []engine.Rendition `json:"VideoLowHDR,omitempty"`
	VideoHighHDR []engine.Rendition `json:"VideoHighHDR,omitempty"`
	ManifestLow  []engine.Rendition `json:"ManifestLow"`
	ManifestHigh []engine.Rendition `json:"ManifestHigh"`
}

// StreamHandle is a fully wired ffmpeg invocation writing to stdout. The caller runs it.
type StreamHandle struct {
	Binary      string   `json:"-"`
	Args        []string `json:"-"`
	Filename    string   `json:"filename"`
	Container   string   `json:"container"`
	ContentType string   `json:"contentType"`
}

// Command returns the process with stdout attached to dst.
func (h *StreamHandle) Command(ctx context.Context, dst io.Writer) *exec.Cmd {
	cmd := exec.CommandContext(ctx, h.Binary, h.Args...)
	cmd.Stdout = dst
	return cmd
}

// Pipe runs the process to completion, streaming its output into w.
func (h *StreamHandle) Pipe(ctx context.Context, w io.Writer) error {
	var stderr bytes.Buffer
	cmd := h.Command(ctx, w)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return yterr.Wrap(yterr.KindTranscodeError, err, "ffmpeg stream failed: %s", strings.TrimSpace(stderr.String()))
	}
	return nil
}

// String is the shell-quoted command line.
func (h *StreamHandle) String() string {
	return shellescape.QuoteCommand(append([]string{h.Binary}, h.Args...))
}

func contentType(container string) string {
	if container == "avi" {
		return "video/x-msvideo"
	}
	return "video/x-matroska"
}

// Orchestrator turns transcode requests into jobs.
type Orchestrator struct {
	tools   Tools
	runner  Runner
	builder Builder
	logger  hclog.Logger
}

func NewOrchestrator(tools Tools, runner Runner, logger hclog.Logger) *Orchestrator {
	logger = logging.OrNull(logger).Named("transcode")
	if runner == nil {
		runner = ExecRunner{Logger: logger}
	}
	return &Orchestrator{tools: tools, runner: runner, logger: logger}
}

// Run starts a job for req.
func (o *Orchestrator) Run(ctx context.Context, req Request) *Job {
	return Start(ctx, o.logger, func(ctx context.Context, j *Job) error {
		return o.Execute(ctx, j, req)
	})
}

// Execute drives req inside an existing job and emits its terminal event on success.
func (o *Orchestrator) Execute(ctx context.Context, j *Job, req Request) error {
	filename := req.Filename()
	req.Selection.Container = req.Kind.Container()
	req.Selection.CodecPolicy = req.CodecPolicy()
	req.Selection.Filter = req.Filter

	switch req.Mode {
	case ModeMetadata:
		j.Emit(Event{Kind: EventMetadata, Metadata: bundle(req, filename)})
		return nil

	case ModeStream:
		args, err := o.builder.Args(req, StreamOutput)
		if err != nil {
			return yterr.Wrap(yterr.KindTranscodeError, err, "failed to build ffmpeg command")
		}
		if err := o.tools.Ensure(ctx); err != nil {
			return yterr.Wrap(yterr.KindTranscodeError, err, "failed to ensure binaries are installed")
		}
		handle := &StreamHandle{
			Binary:      o.tools.FFmpeg(),
			Args:        args,
			Filename:    filename,
			Container:   req.Kind.Container(),
			ContentType: contentType(req.Kind.Container()),
		}
		j.Emit(Event{Kind: EventStream, Stream: handle, Output: filename})
		return nil
	}

	dir := req.OutputDir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return yterr.Wrap(yterr.KindTranscodeError, err, "failed to create output directory")
	}
	output := filepath.Join(dir, filename)

	args, err := o.builder.Args(req, output)
	if err != nil {
		return yterr.Wrap(yterr.KindTranscodeError, err, "failed to build ffmpeg command")
	}
	if err := o.tools.Ensure(ctx); err != nil {
		return yterr.Wrap(yterr.KindTranscodeError, err, "failed to ensure binaries are installed")
	}

	binary := o.tools.FFmpeg()
	j.Emit(Event{Kind: EventStart, Command: shellescape.QuoteCommand(append([]string{binary}, args...))})

	var duration float64
	if req.Manifest != nil {
		duration = req.Manifest.MetaData.Duration
	}
	err = o.runner.Run(ctx, binary, args, func(p Progress) {
		p = p.WithDuration(duration)
		j.Emit(Event{Kind: EventProgress, Progress: &p})
	})
	if err != nil {
		return yterr.Wrap(yterr.KindTranscodeError, err, "ffmpeg run failed")
	}

	j.Logger().Info("download finished", "output", output)
	j.Emit(Event{Kind: EventEnd, Output: output})
	return nil
}

func bundle(req Request, filename string) *MetadataBundle {
	b := &MetadataBundle{
		Selection: req.Selection,
		Filename:  filename,
		Warning:   req.Warning,
	}
	if m := req.Manifest; m != nil {
		b.MetaData = m.MetaData
		b.IPAddress = m.IPAddress
		b.AudioLowDRC = m.AudioLowDRC
		b.AudioHighDRC = m.AudioHighDRC
		b.VideoLowHDR = m.VideoLowHDR
		b.VideoHighHDR = m.VideoHighHDR
		b.ManifestLow = m.ManifestLow
		b.ManifestHigh = m.ManifestHigh
	}
	return b
}

// Describe returns a one-line summary of the request for logs.
func (r Request) Describe() string {
	return fmt.Sprintf("%s %s mode=%s filter=%q", r.Product, r.Kind, r.Mode, r.Filter)
}
