package engine

import (
	"context"
	"encoding/json"
	"errors"
	"os/exec"
	"strings"

	"github.com/hashicorp/go-hclog"

	"github.com/debargha2001/ytdlx/pkg/logging"
	"github.com/debargha2001/ytdlx/pkg/network"
	"github.com/debargha2001/ytdlx/pkg/yterr"
)

// Tools provides the yt-dlp binary, installing it on first use.
type Tools interface {
	YtDlp() string
	Ensure(ctx context.Context) error
}

// OutputRunner runs a command and returns its stdout.
type OutputRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execOutput(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// YtDlp extracts manifests by running yt-dlp --dump-json.
type YtDlp struct {
	tools  Tools
	run    OutputRunner
	logger hclog.Logger
}

func NewYtDlp(tools Tools, run OutputRunner, logger hclog.Logger) *YtDlp {
	if run == nil {
		run = execOutput
	}
	return &YtDlp{tools: tools, run: run, logger: logging.OrNull(logger).Named("ytdlp")}
}

func (y *YtDlp) Name() string { return "ytdlp" }

// Args builds the yt-dlp invocation for videoURL under id.
func (y *YtDlp) Args(videoURL string, id network.Identity) []string {
	args := []string{"--dump-json", "--no-playlist", "--no-warnings"}
	if proxy := id.ProxyURL(); proxy != "" {
		args = append(args, "--proxy", proxy)
	} else if id.Address != "" {
		args = append(args, "--add-header", "X-Forwarded-For:"+id.Address)
	}
	return append(args, videoURL)
}

type ytdlpDump struct {
	ID           string      `json:"id"`
	Title        string      `json:"title"`
	Description  string      `json:"description"`
	Channel      string      `json:"channel"`
	Uploader     string      `json:"uploader"`
	ChannelID    string      `json:"channel_id"`
	ChannelURL   string      `json:"channel_url"`
	Thumbnail    string      `json:"thumbnail"`
	Duration     float64     `json:"duration"`
	UploadDate   string      `json:"upload_date"`
	ViewCount    int64       `json:"view_count"`
	LikeCount    int64       `json:"like_count"`
	CommentCount int64       `json:"comment_count"`
	Categories   []string    `json:"categories"`
	Tags         []string    `json:"tags"`
	WebpageURL   string      `json:"webpage_url"`
	Formats      []RawFormat `json:"formats"`
}

func (d *ytdlpDump) metaData() MetaData {
	channel := d.Channel
	if channel == "" {
		channel = d.Uploader
	}
	return MetaData{
		ID:           d.ID,
		Title:        d.Title,
		Description:  d.Description,
		Channel:      channel,
		ChannelID:    d.ChannelID,
		ChannelURL:   d.ChannelURL,
		Thumbnail:    d.Thumbnail,
		Duration:     d.Duration,
		UploadDate:   d.UploadDate,
		ViewCount:    d.ViewCount,
		LikeCount:    d.LikeCount,
		CommentCount: d.CommentCount,
		Categories:   d.Categories,
		Tags:         d.Tags,
		WebpageURL:   d.WebpageURL,
	}
}

func (y *YtDlp) Extract(ctx context.Context, videoURL string, id network.Identity) (*Output, error) {
	if err := y.tools.Ensure(ctx); err != nil {
		return nil, yterr.Wrap(yterr.KindExtractionFailed, err, "failed to ensure binaries are installed")
	}

	args := y.Args(videoURL, id)
	y.logger.Debug("running yt-dlp", "url", videoURL, "circuit", id.Circuit)
	output, err := y.run(ctx, y.tools.YtDlp(), args...)
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && len(exitErr.Stderr) > 0 {
			return nil, yterr.New(yterr.KindExtractionFailed, "yt-dlp failed: %s", strings.TrimSpace(string(exitErr.Stderr)))
		}
		return nil, yterr.Wrap(yterr.KindExtractionFailed, err, "failed to execute yt-dlp")
	}

	var dump ytdlpDump
	if err := json.Unmarshal(output, &dump); err != nil {
		return nil, yterr.Wrap(yterr.KindExtractionFailed, err, "failed to parse yt-dlp JSON")
	}

	out := Classify(dump.Formats, dump.metaData())
	if out.Empty() {
		return nil, yterr.New(yterr.KindExtractionFailed, "yt-dlp returned no usable formats for %s", videoURL)
	}
	out.IPAddress = id.Address
	return out, nil
}
