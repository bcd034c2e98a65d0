package metadata

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/debargha2001/ytdlx/pkg/yterr"
)

type fakeSearch struct {
	videos    []VideoMetadata
	playlists []PlaylistMetadata
	err       error
	queries   []string
}

func (f *fakeSearch) SearchVideos(_ context.Context, q string) ([]VideoMetadata, error) {
	f.queries = append(f.queries, q)
	return f.videos, f.err
}

func (f *fakeSearch) SearchPlaylists(_ context.Context, q string) ([]PlaylistMetadata, error) {
	f.queries = append(f.queries, q)
	return f.playlists, f.err
}

type fakeSource struct {
	videos    map[string]*VideoMetadata
	playlists map[string]*PlaylistMetadata
	err       error
}

func (f *fakeSource) Video(_ context.Context, id string) (*VideoMetadata, error) {
	return f.videos[id], f.err
}

func (f *fakeSource) Playlist(_ context.Context, id string) (*PlaylistMetadata, error) {
	return f.playlists[id], f.err
}

func newService(search *fakeSearch) *Service {
	source := &fakeSource{
		videos:    map[string]*VideoMetadata{"dQw4w9WgXcQ": {ID: "dQw4w9WgXcQ", Title: "Never Gonna Give You Up"}},
		playlists: map[string]*PlaylistMetadata{"PLFgquLnL59alCl_2TQvOiD5Vgm1hCaGSI": {ID: "PLFgquLnL59alCl_2TQvOiD5Vgm1hCaGSI", Title: "Top hits"}},
	}
	return NewService(search, source, nil)
}

func TestSearchVideosRejectsReferences(t *testing.T) {
	search := &fakeSearch{videos: []VideoMetadata{{ID: "abc"}}}
	s := newService(search)

	for _, q := range []string{
		"https://www.youtube.com/watch?v=dQw4w9WgXcQ",
		"https://youtu.be/dQw4w9WgXcQ",
		"dQw4w9WgXcQ",
		"https://www.youtube.com/playlist?list=PLFgquLnL59alCl_2TQvOiD5Vgm1hCaGSI",
	} {
		_, err := s.SearchVideos(context.Background(), q)
		assert.ErrorIs(t, err, yterr.ErrInvalidUsage, q)
	}
	assert.Empty(t, search.queries)
}

func TestSearchVideosFreeText(t *testing.T) {
	search := &fakeSearch{videos: []VideoMetadata{{ID: "aaaaaaaaaaa"}, {ID: "bbbbbbbbbbb"}}}
	s := newService(search)

	for _, q := range []string{"21 savage - redrum", "lofi beats", "never gonna give you up"} {
		results, err := s.SearchVideos(context.Background(), q)
		require.NoError(t, err, q)
		assert.Len(t, results, 2)
	}
}

func TestSearchNoResults(t *testing.T) {
	s := newService(&fakeSearch{})

	_, err := s.SearchVideos(context.Background(), "zzzz qqqq")
	assert.ErrorIs(t, err, yterr.ErrNoResultsFound)
	_, err = s.SearchPlaylists(context.Background(), "zzzz qqqq")
	assert.ErrorIs(t, err, yterr.ErrNoResultsFound)
	_, err = s.TopVideoID(context.Background(), "zzzz qqqq")
	assert.ErrorIs(t, err, yterr.ErrNoResultsFound)
}

func TestSearchBackendError(t *testing.T) {
	s := newService(&fakeSearch{err: errors.New("429 too many requests")})

	_, err := s.SearchVideos(context.Background(), "lofi beats")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
	assert.ErrorIs(t, err, yterr.ErrExtractionFailed)

	_, err = s.SearchPlaylists(context.Background(), "lofi beats")
	assert.ErrorIs(t, err, yterr.ErrExtractionFailed)
}

func TestSourceFailureIsNotNotFound(t *testing.T) {
	source := &fakeSource{err: errors.New("context deadline exceeded")}
	s := NewService(&fakeSearch{}, source, nil)

	_, err := s.SingleVideo(context.Background(), "dQw4w9WgXcQ")
	assert.ErrorIs(t, err, yterr.ErrExtractionFailed)
	assert.NotErrorIs(t, err, yterr.ErrNotFound)

	_, err = s.Playlist(context.Background(), "PLFgquLnL59alCl_2TQvOiD5Vgm1hCaGSI")
	assert.ErrorIs(t, err, yterr.ErrExtractionFailed)
}

func TestTopVideoID(t *testing.T) {
	s := newService(&fakeSearch{videos: []VideoMetadata{{ID: "aaaaaaaaaaa"}, {ID: "bbbbbbbbbbb"}}})

	id, err := s.TopVideoID(context.Background(), "21 savage - redrum")
	require.NoError(t, err)
	assert.Equal(t, "aaaaaaaaaaa", id)
}

func TestSingleVideo(t *testing.T) {
	s := newService(&fakeSearch{})

	v, err := s.SingleVideo(context.Background(), "https://youtu.be/dQw4w9WgXcQ")
	require.NoError(t, err)
	assert.Equal(t, "Never Gonna Give You Up", v.Title)

	_, err = s.SingleVideo(context.Background(), "xxxxxxxxxxx")
	assert.ErrorIs(t, err, yterr.ErrNotFound)

	_, err = s.SingleVideo(context.Background(), "some free text")
	assert.ErrorIs(t, err, yterr.ErrInvalidUsage)
}

func TestPlaylist(t *testing.T) {
	s := newService(&fakeSearch{})

	p, err := s.Playlist(context.Background(), "https://www.youtube.com/watch?v=dQw4w9WgXcQ&list=PLFgquLnL59alCl_2TQvOiD5Vgm1hCaGSI")
	require.NoError(t, err)
	assert.Equal(t, "Top hits", p.Title)

	_, err = s.Playlist(context.Background(), "PLaaaaaaaaaaaaaaaa")
	assert.ErrorIs(t, err, yterr.ErrNotFound)

	_, err = s.SearchPlaylists(context.Background(), "https://www.youtube.com/playlist?list=PLFgquLnL59alCl_2TQvOiD5Vgm1hCaGSI")
	assert.ErrorIs(t, err, yterr.ErrInvalidUsage)
}
