// Package engine turns a video URL into a classified manifest of audio and video renditions.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/debargha2001/ytdlx/pkg/network"
)

// Engine extracts the manifest for one video. Implementations do not retry.
type Engine interface {
	Name() string
	Extract(ctx context.Context, videoURL string, id network.Identity) (*Output, error)
}

// MetaData is the descriptive part of a manifest.
type MetaData struct {
	ID           string   `json:"id"`
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	Channel      string   `json:"channel"`
	ChannelID    string   `json:"channelId"`
	ChannelURL   string   `json:"channelUrl,omitempty"`
	Thumbnail    string   `json:"thumbnail"`
	Duration     float64  `json:"duration"`
	UploadDate   string   `json:"uploadDate,omitempty"`
	ViewCount    int64    `json:"viewCount"`
	LikeCount    int64    `json:"likeCount,omitempty"`
	CommentCount int64    `json:"commentCount,omitempty"`
	Categories   []string `json:"categories,omitempty"`
	Tags         []string `json:"tags,omitempty"`
	WebpageURL   string   `json:"webpageUrl"`
}

// Rendition is one selectable stream. Format always embeds the resolution token:
// "<height>p" for video and the tier word for audio.
type Rendition struct {
	FormatID   string  `json:"formatId"`
	Format     string  `json:"format"`
	Tier       string  `json:"tier"`
	URL        string  `json:"url"`
	Ext        string  `json:"ext"`
	Protocol   string  `json:"protocol,omitempty"`
	VideoCodec string  `json:"vcodec,omitempty"`
	AudioCodec string  `json:"acodec,omitempty"`
	Width      int     `json:"width,omitempty"`
	Height     int     `json:"height,omitempty"`
	FPS        float64 `json:"fps,omitempty"`
	Bitrate    float64 `json:"bitrate"`
	Filesize   int64   `json:"filesize,omitempty"`
	DRC        bool    `json:"drc,omitempty"`
	HDR        bool    `json:"hdr,omitempty"`
}

// Output is the classified manifest. Every list is ordered ascending by quality.
type Output struct {
	MetaData     MetaData    `json:"metaData"`
	AudioLow     []Rendition `json:"AudioLow"`
	AudioHigh    []Rendition `json:"AudioHigh"`
	AudioLowF    *Rendition  `json:"AudioLowF"`
	AudioHighF   *Rendition  `json:"AudioHighF"`
	AudioLowDRC  []Rendition `json:"AudioLowDRC"`
	AudioHighDRC []Rendition `json:"AudioHighDRC"`
	VideoLow     []Rendition `json:"VideoLow"`
	VideoHigh    []Rendition `json:"VideoHigh"`
	VideoLowF    *Rendition  `json:"VideoLowF"`
	VideoHighF   *Rendition  `json:"VideoHighF"`
	VideoLowHDR  []Rendition `json:"VideoLowHDR"`
	VideoHighHDR []Rendition `json:"VideoHighHDR"`
	ManifestLow  []Rendition `json:"ManifestLow"`
	ManifestHigh []Rendition `json:"ManifestHigh"`
	IPAddress    string      `json:"ipAddress"`
}

// Empty reports whether the manifest has nothing to select from.
func (o *Output) Empty() bool {
	return o == nil || (len(o.AudioHigh) == 0 && len(o.AudioHighDRC) == 0 &&
		len(o.VideoHigh) == 0 && len(o.VideoHighHDR) == 0 && len(o.ManifestHigh) == 0)
}

// New returns the engine registered under name ("ytdlp" or "native").
func New(name string, tools Tools, timeout time.Duration, logger hclog.Logger) (Engine, error) {
	switch name {
	case "", "ytdlp":
		return NewYtDlp(tools, nil, logger), nil
	case "native":
		return NewNative(timeout, logger), nil
	default:
		return nil, fmt.Errorf("unknown extraction engine %q", name)
	}
}
