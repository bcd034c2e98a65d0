package metadata

import (
	"context"
	"net/http"
	"time"

	"github.com/kkdai/youtube/v2"
	"github.com/raitonoberu/ytsearch"

	"github.com/debargha2001/ytdlx/pkg/identity"
)

// YTSearch searches through the public results page via raitonoberu/ytsearch.
type YTSearch struct {
	// Limit caps the number of hits returned; zero keeps the whole first page.
	Limit int
}

func (y YTSearch) SearchVideos(ctx context.Context, query string) ([]VideoMetadata, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	result, err := ytsearch.VideoSearch(query).Next()
	if err != nil {
		return nil, err
	}

	videos := make([]VideoMetadata, 0, len(result.Videos))
	for _, v := range result.Videos {
		if y.Limit > 0 && len(videos) >= y.Limit {
			break
		}
		thumbnail := ""
		if len(v.Thumbnails) > 0 {
			thumbnail = v.Thumbnails[0].URL
		}
		videos = append(videos, VideoMetadata{
			ID:        v.ID,
			Title:     v.Title,
			Channel:   v.Channel.Title,
			ChannelID: v.Channel.ID,
			Thumbnail: thumbnail,
			Duration:  v.Duration,
			URL:       identity.WatchURL(v.ID),
		})
	}
	return videos, nil
}

func (y YTSearch) SearchPlaylists(ctx context.Context, query string) ([]PlaylistMetadata, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	result, err := ytsearch.PlaylistSearch(query).Next()
	if err != nil {
		return nil, err
	}

	playlists := make([]PlaylistMetadata, 0, len(result.Playlists))
	for _, p := range result.Playlists {
		if y.Limit > 0 && len(playlists) >= y.Limit {
			break
		}
		thumbnail := ""
		if len(p.Thumbnails) > 0 {
			thumbnail = p.Thumbnails[0].URL
		}
		playlists = append(playlists, PlaylistMetadata{
			ID:        p.ID,
			Title:     p.Title,
			Channel:   p.Channel.Title,
			Thumbnail: thumbnail,
			URL:       identity.PlaylistURL(p.ID),
		})
	}
	return playlists, nil
}

// YouTube looks up videos and playlists with kkdai/youtube.
type YouTube struct {
	Client *youtube.Client
}

// NewYouTube returns a source using an HTTP client with the given timeout.
func NewYouTube(timeout time.Duration) *YouTube {
	return &YouTube{Client: &youtube.Client{HTTPClient: &http.Client{Timeout: timeout}}}
}

func (y *YouTube) Video(ctx context.Context, id string) (*VideoMetadata, error) {
	v, err := y.Client.GetVideoContext(ctx, id)
	if err != nil {
		return nil, err
	}
	if v == nil || v.ID == "" {
		return nil, nil
	}
	meta := &VideoMetadata{
		ID:          v.ID,
		Title:       v.Title,
		Description: v.Description,
		Channel:     v.Author,
		ChannelID:   v.ChannelID,
		Thumbnail:   bestThumbnail(v.Thumbnails),
		Duration:    int(v.Duration.Seconds()),
		Views:       int64(v.Views),
		URL:         identity.WatchURL(v.ID),
	}
	if !v.PublishDate.IsZero() {
		meta.UploadDate = v.PublishDate.Format("20060102")
	}
	return meta, nil
}

func (y *YouTube) Playlist(ctx context.Context, id string) (*PlaylistMetadata, error) {
	p, err := y.Client.GetPlaylistContext(ctx, identity.PlaylistURL(id))
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, nil
	}
	meta := &PlaylistMetadata{
		ID:          p.ID,
		Title:       p.Title,
		Description: p.Description,
		Channel:     p.Author,
		VideoCount:  len(p.Videos),
		URL:         identity.PlaylistURL(p.ID),
	}
	for _, entry := range p.Videos {
		if entry == nil {
			continue
		}
		meta.Videos = append(meta.Videos, VideoMetadata{
			ID:        entry.ID,
			Title:     entry.Title,
			Channel:   entry.Author,
			Thumbnail: bestThumbnail(entry.Thumbnails),
			Duration:  int(entry.Duration.Seconds()),
			URL:       identity.WatchURL(entry.ID),
		})
	}
	if len(meta.Videos) > 0 {
		meta.Thumbnail = meta.Videos[0].Thumbnail
	}
	return meta, nil
}

func bestThumbnail(thumbs youtube.Thumbnails) string {
	if len(thumbs) == 0 {
		return ""
	}
	return thumbs[len(thumbs)-1].URL
}
