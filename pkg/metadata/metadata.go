// Package metadata serves video, playlist and search lookups.
package metadata

import (
	"context"

	"github.com/hashicorp/go-hclog"

	"github.com/debargha2001/ytdlx/pkg/identity"
	"github.com/debargha2001/ytdlx/pkg/logging"
	"github.com/debargha2001/ytdlx/pkg/yterr"
)

// VideoMetadata describes one video or search hit.
type VideoMetadata struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Channel     string `json:"channel"`
	ChannelID   string `json:"channelId,omitempty"`
	Thumbnail   string `json:"thumbnail,omitempty"`
	Duration    int    `json:"duration"`
	Views       int64  `json:"views,omitempty"`
	UploadDate  string `json:"uploadDate,omitempty"`
	URL         string `json:"url"`
}

// PlaylistMetadata describes a playlist. Videos is empty for search hits.
type PlaylistMetadata struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	Description string          `json:"description,omitempty"`
	Channel     string          `json:"channel,omitempty"`
	Thumbnail   string          `json:"thumbnail,omitempty"`
	VideoCount  int             `json:"videoCount"`
	URL         string          `json:"url"`
	Videos      []VideoMetadata `json:"videos,omitempty"`
}

// Searcher runs free-text searches.
type Searcher interface {
	SearchVideos(ctx context.Context, query string) ([]VideoMetadata, error)
	SearchPlaylists(ctx context.Context, query string) ([]PlaylistMetadata, error)
}

// Source looks up a known video or playlist. A nil result with a nil error means not found.
type Source interface {
	Video(ctx context.Context, id string) (*VideoMetadata, error)
	Playlist(ctx context.Context, id string) (*PlaylistMetadata, error)
}

// Service normalizes lookups and enforces which operation fits which input.
type Service struct {
	search Searcher
	source Source
	logger hclog.Logger
}

func NewService(search Searcher, source Source, logger hclog.Logger) *Service {
	return &Service{search: search, source: source, logger: logging.OrNull(logger).Named("metadata")}
}

// SingleVideo fetches one video by link or ID.
func (s *Service) SingleVideo(ctx context.Context, query string) (*VideoMetadata, error) {
	id, ok := identity.VideoID(query)
	if !ok {
		return nil, yterr.New(yterr.KindInvalidUsage, "%q is not a video link or ID", query).
			WithHint("use search_videos for free-text queries")
	}
	v, err := s.source.Video(ctx, id)
	if err != nil {
		return nil, yterr.Wrap(yterr.KindExtractionFailed, err, "failed to fetch video %s", id)
	}
	if v == nil {
		return nil, yterr.New(yterr.KindNotFound, "video %s not found", id)
	}
	return v, nil
}

// SearchVideos runs a free-text search. Links and IDs are rejected.
func (s *Service) SearchVideos(ctx context.Context, query string) ([]VideoMetadata, error) {
	if identity.IsReference(query) {
		return nil, yterr.New(yterr.KindInvalidUsage, "%q is a video or playlist reference", query).
			WithHint("use the video or playlist operation for direct links")
	}
	return s.searchVideos(ctx, query)
}

func (s *Service) searchVideos(ctx context.Context, query string) ([]VideoMetadata, error) {
	results, err := s.search.SearchVideos(ctx, query)
	if err != nil {
		return nil, yterr.Wrap(yterr.KindExtractionFailed, err, "search for %q failed", query)
	}
	if len(results) == 0 {
		return nil, yterr.New(yterr.KindNoResultsFound, "no videos found for %q", query)
	}
	s.logger.Debug("video search", "query", query, "results", len(results))
	return results, nil
}

// Playlist fetches a playlist and its entries by link or ID.
func (s *Service) Playlist(ctx context.Context, query string) (*PlaylistMetadata, error) {
	id, ok := identity.PlaylistID(query)
	if !ok {
		return nil, yterr.New(yterr.KindInvalidUsage, "%q is not a playlist link or ID", query).
			WithHint("use search_playlists for free-text queries")
	}
	p, err := s.source.Playlist(ctx, id)
	if err != nil {
		return nil, yterr.Wrap(yterr.KindExtractionFailed, err, "failed to fetch playlist %s", id)
	}
	if p == nil {
		return nil, yterr.New(yterr.KindNotFound, "playlist %s not found", id)
	}
	return p, nil
}

// SearchPlaylists runs a free-text playlist search. Links and IDs are rejected.
func (s *Service) SearchPlaylists(ctx context.Context, query string) ([]PlaylistMetadata, error) {
	if identity.IsReference(query) {
		return nil, yterr.New(yterr.KindInvalidUsage, "%q is a video or playlist reference", query).
			WithHint("use the playlist operation for direct links")
	}
	results, err := s.search.SearchPlaylists(ctx, query)
	if err != nil {
		return nil, yterr.Wrap(yterr.KindExtractionFailed, err, "search for %q failed", query)
	}
	if len(results) == 0 {
		return nil, yterr.New(yterr.KindNoResultsFound, "no playlists found for %q", query)
	}
	return results, nil
}

// TopVideoID resolves free text to the ID of its first search hit.
func (s *Service) TopVideoID(ctx context.Context, query string) (string, error) {
	results, err := s.searchVideos(ctx, query)
	if err != nil {
		return "", err
	}
	return results[0].ID, nil
}
