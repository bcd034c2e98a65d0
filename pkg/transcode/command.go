package transcode

import (
	"fmt"

	"github.com/debargha2001/ytdlx/pkg/engine"
	"github.com/debargha2001/ytdlx/pkg/formats"
)

// Kind is the media family of a product.
type Kind string

const (
	KindAudio      Kind = "audio"
	KindVideo      Kind = "video"
	KindAudioVideo Kind = "audiovideo"
)

// Container returns the output extension for a kind: avi for audio, mkv otherwise.
func (k Kind) Container() string {
	if k == KindAudio {
		return "avi"
	}
	return "mkv"
}

func (k Kind) muxer() string {
	if k == KindAudio {
		return "avi"
	}
	return "matroska"
}

// Mode selects how a job ends.
type Mode string

const (
	ModeRun      Mode = "run"
	ModeStream   Mode = "stream"
	ModeMetadata Mode = "metadata"
)

// StreamOutput is the ffmpeg output target used in stream mode.
const StreamOutput = "pipe:1"

// Request is everything needed to build and drive one ffmpeg job.
type Request struct {
	Product    string
	Kind       Kind
	Resolution string
	Filter     string
	Manifest   *engine.Output
	Selection  formats.Selection
	OutputDir  string
	Mode       Mode
	// Warning is carried into the metadata bundle, e.g. a degraded network identity.
	Warning string
}

func (r Request) title() string {
	if r.Manifest == nil {
		return ""
	}
	return r.Manifest.MetaData.Title
}

// Filename is the deterministic output name for the request.
func (r Request) Filename() string {
	return Filename(r.Product, r.Resolution, r.Filter, r.title(), r.Kind.Container())
}

// Codec policies reported in the selection.
const (
	PolicyCopy     = "copy"
	PolicyReencode = "reencode"
)

// CodecPolicy tells whether the video stream is copied. Audio-only output is
// always re-encoded to MP3 for the AVI container.
func (r Request) CodecPolicy() string {
	if r.Kind == KindAudio {
		return PolicyReencode
	}
	if _, ok := VideoFilterExpr(r.Filter); ok {
		return PolicyReencode
	}
	return PolicyCopy
}

// Builder assembles ffmpeg argument lists.
type Builder struct{}

// Args returns the ffmpeg arguments writing to output. Progress is reported on
// stdout unless stdout is the output itself.
func (Builder) Args(req Request, output string) ([]string, error) {
	args := []string{"-hide_banner", "-nostats", "-loglevel", "error", "-y"}
	if output != StreamOutput {
		args = append(args, "-progress", "pipe:1")
	}

	var header string
	if req.Manifest != nil && req.Manifest.IPAddress != "" {
		header = fmt.Sprintf("X-Forwarded-For: %s\r\n", req.Manifest.IPAddress)
	}
	input := func(url string) {
		if header != "" {
			args = append(args, "-headers", header)
		}
		args = append(args, "-i", url)
	}

	audio, video := req.Selection.Audio, req.Selection.Video
	switch req.Kind {
	case KindAudio:
		if audio == nil {
			return nil, fmt.Errorf("audio job without an audio rendition")
		}
		input(audio.URL)
		thumbnail := ""
		if req.Manifest != nil {
			thumbnail = req.Manifest.MetaData.Thumbnail
		}
		if thumbnail != "" {
			input(thumbnail)
			args = append(args, "-map", "1:v:0", "-map", "0:a:0", "-c:v", "mjpeg", "-frames:v", "1")
		} else {
			args = append(args, "-map", "0:a:0", "-vn")
		}
		if expr, ok := AudioFilterExpr(req.Filter); ok {
			args = append(args, "-af", expr)
		}
		args = append(args, "-c:a", "libmp3lame", "-b:a", "192k")

	case KindVideo:
		if video == nil {
			return nil, fmt.Errorf("video job without a video rendition")
		}
		input(video.URL)
		args = append(args, "-map", "0:v:0")
		args = append(args, videoCodec(req.Filter)...)
		args = append(args, "-an")

	case KindAudioVideo:
		if audio == nil || video == nil {
			return nil, fmt.Errorf("audio+video job needs both renditions")
		}
		input(audio.URL)
		input(video.URL)
		args = append(args, "-map", "1:v:0", "-map", "0:a:0")
		args = append(args, videoCodec(req.Filter)...)
		args = append(args, "-c:a", "copy")

	default:
		return nil, fmt.Errorf("unknown job kind %q", req.Kind)
	}

	return append(args, "-f", req.Kind.muxer(), output), nil
}

// videoCodec copies the video stream unless a named filter has to alter it.
func videoCodec(filter string) []string {
	if expr, ok := VideoFilterExpr(filter); ok {
		return []string{"-vf", expr, "-c:v", "libx264", "-preset", "veryfast"}
	}
	return []string{"-c:v", "copy"}
}
