package engine

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/kkdai/youtube/v2"

	"github.com/debargha2001/ytdlx/pkg/logging"
	"github.com/debargha2001/ytdlx/pkg/network"
	"github.com/debargha2001/ytdlx/pkg/yterr"
)

// Native extracts manifests in-process with kkdai/youtube, dialing through the
// identity's SOCKS port when it is a Tor circuit.
type Native struct {
	timeout time.Duration
	logger  hclog.Logger
}

func NewNative(timeout time.Duration, logger hclog.Logger) *Native {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &Native{timeout: timeout, logger: logging.OrNull(logger).Named("native")}
}

func (n *Native) Name() string { return "native" }

// Client returns a youtube client whose traffic follows id.
func (n *Native) Client(id network.Identity) (*youtube.Client, error) {
	httpClient := &http.Client{Timeout: n.timeout}
	if id.IsTor() {
		transport, err := network.SOCKSTransport(id.Host, id.Port)
		if err != nil {
			return nil, err
		}
		httpClient.Transport = transport
	}
	return &youtube.Client{HTTPClient: httpClient}, nil
}

func (n *Native) Extract(ctx context.Context, videoURL string, id network.Identity) (*Output, error) {
	client, err := n.Client(id)
	if err != nil {
		return nil, yterr.Wrap(yterr.KindExtractionFailed, err, "failed to build client")
	}

	video, err := client.GetVideoContext(ctx, videoURL)
	if err != nil {
		return nil, yterr.Wrap(yterr.KindExtractionFailed, err, "failed to fetch video")
	}

	raw := make([]RawFormat, 0, len(video.Formats))
	for i := range video.Formats {
		f := &video.Formats[i]
		if f.URL == "" {
			url, err := client.GetStreamURLContext(ctx, video, f)
			if err != nil {
				n.logger.Debug("skipping format without stream url", "itag", f.ItagNo, "error", err)
				continue
			}
			f.URL = url
		}
		raw = append(raw, nativeFormat(f))
	}

	out := Classify(raw, nativeMeta(video))
	if out.Empty() {
		return nil, yterr.New(yterr.KindExtractionFailed, "no usable formats for %s", videoURL)
	}
	out.IPAddress = id.Address
	return out, nil
}

func nativeMeta(v *youtube.Video) MetaData {
	meta := MetaData{
		ID:          v.ID,
		Title:       v.Title,
		Description: v.Description,
		Channel:     v.Author,
		ChannelID:   v.ChannelID,
		Duration:    v.Duration.Seconds(),
		ViewCount:   int64(v.Views),
		WebpageURL:  "https://www.youtube.com/watch?v=" + v.ID,
	}
	if !v.PublishDate.IsZero() {
		meta.UploadDate = v.PublishDate.Format("20060102")
	}
	if len(v.Thumbnails) > 0 {
		meta.Thumbnail = v.Thumbnails[len(v.Thumbnails)-1].URL
	}
	return meta
}

// nativeFormat maps a kkdai format onto the yt-dlp shaped RawFormat.
func nativeFormat(f *youtube.Format) RawFormat {
	kind, ext, codecs := parseMime(f.MimeType)
	raw := RawFormat{
		FormatID: strconv.Itoa(f.ItagNo),
		Ext:      ext,
		URL:      f.URL,
		Protocol: "https",
		VCodec:   "none",
		ACodec:   "none",
		Width:    f.Width,
		Height:   f.Height,
		FPS:      float64(f.FPS),
		TBR:      float64(bitrate(f)) / 1000,
		Filesize: f.ContentLength,
	}
	if strings.Contains(f.QualityLabel, "HDR") {
		raw.DynamicRange = "HDR"
	}

	switch kind {
	case "audio":
		raw.ACodec = codecOrNone(codecs)
		raw.ABR = raw.TBR
		raw.AudioTier = audioQualityTier(f.AudioQuality)
	case "video":
		raw.VCodec = codecOrNone(codecs)
		raw.VBR = raw.TBR
		if len(codecs) > 1 {
			raw.ACodec = codecs[1]
		}
	}
	return raw
}

func bitrate(f *youtube.Format) int {
	if f.AverageBitrate > 0 {
		return f.AverageBitrate
	}
	return f.Bitrate
}

// parseMime splits `video/mp4; codecs="avc1.4d401e, mp4a.40.2"`.
func parseMime(mime string) (kind, ext string, codecs []string) {
	base, params, _ := strings.Cut(mime, ";")
	kind, ext, _ = strings.Cut(strings.TrimSpace(base), "/")
	if _, list, ok := strings.Cut(params, "codecs="); ok {
		for _, c := range strings.Split(strings.Trim(strings.TrimSpace(list), `"`), ",") {
			if c = strings.TrimSpace(c); c != "" {
				codecs = append(codecs, c)
			}
		}
	}
	if ext == "mp4" && kind == "audio" {
		ext = "m4a"
	}
	return kind, ext, codecs
}

// audioQualityTier maps AUDIO_QUALITY_MEDIUM and friends to tier words.
func audioQualityTier(q string) string {
	tier := strings.ToLower(strings.TrimPrefix(q, "AUDIO_QUALITY_"))
	if tierRank(tier) < 0 {
		return ""
	}
	return tier
}

func codecOrNone(s []string) string {
	if len(s) == 0 {
		return "none"
	}
	return s[0]
}
