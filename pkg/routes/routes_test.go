package routes

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/debargha2001/ytdlx/pkg/engine"
	"github.com/debargha2001/ytdlx/pkg/formats"
	"github.com/debargha2001/ytdlx/pkg/metadata"
	"github.com/debargha2001/ytdlx/pkg/network"
	"github.com/debargha2001/ytdlx/pkg/transcode"
	"github.com/debargha2001/ytdlx/pkg/yterr"
)

const videoID = "dQw4w9WgXcQ"

type fakeSearch struct {
	videos []metadata.VideoMetadata
	calls  int
}

func (f *fakeSearch) SearchVideos(context.Context, string) ([]metadata.VideoMetadata, error) {
	f.calls++
	return f.videos, nil
}

func (f *fakeSearch) SearchPlaylists(context.Context, string) ([]metadata.PlaylistMetadata, error) {
	f.calls++
	return nil, nil
}

type fakeSource struct{}

func (fakeSource) Video(_ context.Context, id string) (*metadata.VideoMetadata, error) {
	return &metadata.VideoMetadata{ID: id, Title: "Never Gonna Give You Up"}, nil
}

func (fakeSource) Playlist(context.Context, string) (*metadata.PlaylistMetadata, error) {
	return nil, nil
}

type fakeNetwork struct {
	id    network.Identity
	calls int
}

func (f *fakeNetwork) Identity(context.Context, bool, bool) (network.Identity, error) {
	f.calls++
	return f.id, nil
}

type fakeEngine struct {
	out  *engine.Output
	urls []string
}

func (f *fakeEngine) Name() string { return "fake" }

func (f *fakeEngine) Extract(_ context.Context, url string, _ network.Identity) (*engine.Output, error) {
	f.urls = append(f.urls, url)
	return f.out, nil
}

type fakeTools struct{}

func (fakeTools) FFmpeg() string               { return "/usr/bin/ffmpeg" }
func (fakeTools) Ensure(context.Context) error { return nil }

type fakeRunner struct {
	calls [][]string
}

func (f *fakeRunner) Run(_ context.Context, _ string, args []string, progress func(transcode.Progress)) error {
	f.calls = append(f.calls, args)
	progress(transcode.Progress{Done: true})
	return os.WriteFile(args[len(args)-1], []byte("RIFF"), 0o644)
}

type fixture struct {
	facade  *Facade
	search  *fakeSearch
	network *fakeNetwork
	engine  *fakeEngine
	runner  *fakeRunner
}

func manifest() *engine.Output {
	low := engine.Rendition{FormatID: "599", Format: "ultralow, mp4a 31k", Tier: "ultralow", URL: "https://rr.example/599"}
	high := engine.Rendition{FormatID: "140", Format: "medium, mp4a 129k", Tier: "medium", URL: "https://rr.example/140"}
	v144 := engine.Rendition{FormatID: "91", Format: "144p, hls, avc1", Tier: "144p", Height: 144, URL: "https://manifest.example/91.m3u8"}
	v720 := engine.Rendition{FormatID: "95", Format: "720p, hls, avc1", Tier: "720p", Height: 720, URL: "https://manifest.example/95.m3u8"}
	return &engine.Output{
		MetaData:     engine.MetaData{ID: videoID, Title: "Rick Astley - Never Gonna Give You Up", Duration: 213},
		AudioLow:     []engine.Rendition{low, high},
		AudioHigh:    []engine.Rendition{low, high},
		AudioLowF:    &low,
		AudioHighF:   &high,
		ManifestLow:  []engine.Rendition{v144, v720},
		ManifestHigh: []engine.Rendition{v144, v720},
		IPAddress:    "203.0.113.7",
	}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		search:  &fakeSearch{videos: []metadata.VideoMetadata{{ID: "xxxxxxxxxxx", Title: "top hit"}}},
		network: &fakeNetwork{id: network.Identity{Address: "203.0.113.7", Circuit: network.CircuitDirect}},
		engine:  &fakeEngine{out: manifest()},
		runner:  &fakeRunner{},
	}
	f.facade = New(Deps{
		Metadata:     metadata.NewService(f.search, fakeSource{}, nil),
		Network:      f.network,
		Engine:       f.engine,
		Selector:     formats.Selector{},
		Orchestrator: transcode.NewOrchestrator(fakeTools{}, f.runner, nil),
		OutputDir:    t.TempDir(),
	})
	return f
}

func collect(j *transcode.Job) []transcode.Event {
	var events []transcode.Event
	for e := range j.Events() {
		events = append(events, e)
	}
	return events
}

func kinds(events []transcode.Event) []transcode.EventKind {
	out := make([]transcode.EventKind, 0, len(events))
	for _, e := range events {
		out = append(out, e.Kind)
	}
	return out
}

func TestParseProduct(t *testing.T) {
	for _, in := range []string{"AudioVideoCustom", "audio-video-custom", "audio_video_custom"} {
		p, ok := ParseProduct(in)
		require.True(t, ok, in)
		assert.Equal(t, AudioVideoCustom, p)
	}
	_, ok := ParseProduct("AudioMedium")
	assert.False(t, ok)

	assert.Equal(t, transcode.KindAudio, AudioCustom.Kind())
	assert.True(t, VideoCustom.Custom())
	assert.False(t, VideoHighest.Custom())
	assert.Nil(t, VideoHighest.Resolutions())
	assert.Equal(t, AudioResolutions, AudioCustom.Resolutions())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		product Product
		opts    Options
		fields  []string
	}{
		{name: "valid", product: AudioLowest, opts: Options{Query: "redrum"}},
		{name: "short query", product: AudioLowest, opts: Options{Query: "a"}, fields: []string{"query"}},
		{name: "missing query", product: VideoHighest, opts: Options{}, fields: []string{"query"}},
		{name: "custom needs resolution", product: VideoCustom, opts: Options{Query: videoID}, fields: []string{"resolution"}},
		{name: "audio tier on video", product: VideoCustom, opts: Options{Query: videoID, Resolution: "high"}, fields: []string{"resolution"}},
		{name: "video ladder on audio", product: AudioCustom, opts: Options{Query: videoID, Resolution: "720p"}, fields: []string{"resolution"}},
		{name: "resolution on fixed tier", product: AudioHighest, opts: Options{Query: videoID, Resolution: "high"}, fields: []string{"resolution"}},
		{name: "video filter on audio", product: AudioHighest, opts: Options{Query: videoID, Filter: "grayscale"}, fields: []string{"filter"}},
		{name: "audio filter ok", product: AudioCustom, opts: Options{Query: videoID, Resolution: "low", Filter: "bassboost"}},
		{name: "several issues", product: AudioVideoCustom, opts: Options{Query: "x", Filter: "nope"}, fields: []string{"query", "resolution", "filter"}},
		{name: "unknown product", product: Product("AudioMedium"), opts: Options{Query: videoID}, fields: []string{"product"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.product.Validate(tt.opts)
			if tt.fields == nil {
				assert.NoError(t, err)
				return
			}
			require.True(t, yterr.IsValidation(err), "got %v", err)
			var e *yterr.Error
			require.True(t, errors.As(err, &e))
			var got []string
			for _, issue := range e.Issues {
				got = append(got, issue.Field)
			}
			assert.Equal(t, tt.fields, got)
		})
	}
}

func TestRunWritesFile(t *testing.T) {
	f := newFixture(t)
	dir := t.TempDir()

	job := f.facade.Run(context.Background(), AudioLowest, Options{Query: "21 savage - redrum", Output: dir})
	events := collect(job)
	require.NoError(t, job.Wait())

	assert.Equal(t, []transcode.EventKind{transcode.EventStart, transcode.EventProgress, transcode.EventEnd}, kinds(events))
	assert.Equal(t, 1, f.search.calls)
	assert.Equal(t, []string{"https://www.youtube.com/watch?v=xxxxxxxxxxx"}, f.engine.urls)

	end := events[len(events)-1].Output
	matched, err := filepath.Match(filepath.Join(dir, "yt-dlx_(AudioLowest_)_*.avi"), end)
	require.NoError(t, err)
	assert.True(t, matched, end)
	info, err := os.Stat(end)
	require.NoError(t, err)
	assert.NotZero(t, info.Size())
}

func TestMetadataModeSpawnsNothing(t *testing.T) {
	f := newFixture(t)
	out := filepath.Join(t.TempDir(), "never")

	job := f.facade.Run(context.Background(), VideoCustom, Options{Query: videoID, Resolution: "720p", Metadata: true, Output: out})
	events := collect(job)
	require.NoError(t, job.Wait())

	require.Equal(t, []transcode.EventKind{transcode.EventMetadata}, kinds(events))
	bundle := events[0].Metadata
	require.NotNil(t, bundle)
	assert.Len(t, bundle.ManifestHigh, 2)
	assert.Equal(t, "95", bundle.Selection.Video.FormatID)
	assert.Equal(t, "yt-dlx_(VideoCustom_720p_)_Rick_Astley_Never_Gonna_Give_You_Up.mkv", bundle.Filename)
	assert.Empty(t, f.runner.calls)
	assert.NoDirExists(t, out)
	assert.Zero(t, f.search.calls)
}

func TestOutOfLadderResolution(t *testing.T) {
	f := newFixture(t)

	job := f.facade.Run(context.Background(), VideoCustom, Options{Query: videoID, Resolution: "999999p"})
	events := collect(job)

	require.Equal(t, []transcode.EventKind{transcode.EventError}, kinds(events))
	assert.Contains(t, events[0].Error.Error(), "no matching format")
	assert.True(t, yterr.IsValidation(job.Wait()))
	assert.Empty(t, f.runner.calls)
	assert.Zero(t, f.network.calls)
}

func TestMissingRenditionIsFormatNotFound(t *testing.T) {
	f := newFixture(t)

	job := f.facade.Run(context.Background(), AudioVideoCustom, Options{Query: videoID, Resolution: "1080p"})
	events := collect(job)

	require.Equal(t, []transcode.EventKind{transcode.EventError}, kinds(events))
	assert.Equal(t, yterr.KindFormatNotFound, events[0].Error.Kind)
	assert.NotEmpty(t, events[0].Error.Hint)
	assert.Empty(t, f.runner.calls)
}

func TestAudioVideoSelection(t *testing.T) {
	f := newFixture(t)
	m := manifest()

	sel, err := f.facade.selectFor(AudioVideoLowest, Options{}, m)
	require.NoError(t, err)
	assert.Equal(t, "599", sel.Audio.FormatID)
	assert.Equal(t, "91", sel.Video.FormatID)

	sel, err = f.facade.selectFor(AudioVideoCustom, Options{Resolution: "720p"}, m)
	require.NoError(t, err)
	assert.Equal(t, "140", sel.Audio.FormatID)
	assert.Equal(t, "95", sel.Video.FormatID)
}

func TestPlaylistQueryRejected(t *testing.T) {
	f := newFixture(t)

	job := f.facade.Run(context.Background(), AudioHighest, Options{Query: "https://www.youtube.com/playlist?list=PLxxxxxxxxxxxxxxxx"})
	err := job.Wait()

	assert.ErrorIs(t, err, yterr.ErrInvalidUsage)
	assert.Zero(t, f.network.calls)
}

func TestDegradedNetworkWarns(t *testing.T) {
	f := newFixture(t)
	f.network.id.Warning = yterr.New(yterr.KindNetworkDegraded, "no tor circuit")

	job := f.facade.Run(context.Background(), AudioHighest, Options{Query: videoID, UseTor: true, Metadata: true})
	events := collect(job)
	require.NoError(t, job.Wait())

	require.Equal(t, []transcode.EventKind{transcode.EventWarning, transcode.EventMetadata}, kinds(events))
	assert.Contains(t, events[0].Warning, "no tor circuit")
	assert.Contains(t, events[1].Metadata.Warning, "no tor circuit")
}

func TestStreamMode(t *testing.T) {
	f := newFixture(t)

	job := f.facade.Run(context.Background(), AudioVideoHighest, Options{Query: videoID, Stream: true})
	events := collect(job)
	require.NoError(t, job.Wait())

	require.Equal(t, []transcode.EventKind{transcode.EventStream}, kinds(events))
	h := events[0].Stream
	assert.Equal(t, "mkv", h.Container)
	assert.Equal(t, transcode.StreamOutput, h.Args[len(h.Args)-1])
	assert.Empty(t, f.runner.calls)
}

func TestSearchVideosRejectsLinks(t *testing.T) {
	f := newFixture(t)

	job := f.facade.SearchVideos(context.Background(), QueryOptions{Query: "https://www.youtube.com/watch?v=" + videoID})
	events := collect(job)

	require.Equal(t, []transcode.EventKind{transcode.EventError}, kinds(events))
	assert.Equal(t, yterr.KindInvalidUsage, events[0].Error.Kind)
	assert.Zero(t, f.search.calls)
}

func TestLookupCommands(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	events := collect(f.facade.SearchVideos(ctx, QueryOptions{Query: "rick astley"}))
	require.Equal(t, []transcode.EventKind{transcode.EventData}, kinds(events))
	assert.Len(t, events[0].Data, 1)

	events = collect(f.facade.Video(ctx, QueryOptions{Query: videoID}))
	require.Equal(t, []transcode.EventKind{transcode.EventData}, kinds(events))
	assert.Equal(t, videoID, events[0].Data.(*metadata.VideoMetadata).ID)

	events = collect(f.facade.ListFormats(ctx, QueryOptions{Query: videoID}))
	require.Equal(t, []transcode.EventKind{transcode.EventData}, kinds(events))
	assert.Len(t, events[0].Data.(*engine.Output).ManifestHigh, 2)

	events = collect(f.facade.Playlist(ctx, QueryOptions{Query: "x"}))
	require.Equal(t, []transcode.EventKind{transcode.EventError}, kinds(events))
	assert.True(t, yterr.IsValidation(events[0].Error))
}
