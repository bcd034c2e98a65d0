package transcode

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/debargha2001/ytdlx/pkg/engine"
	"github.com/debargha2001/ytdlx/pkg/formats"
	"github.com/debargha2001/ytdlx/pkg/yterr"
)

type fakeTools struct{}

func (fakeTools) FFmpeg() string               { return "/usr/bin/ffmpeg" }
func (fakeTools) Ensure(context.Context) error { return nil }

type fakeRunner struct {
	calls   [][]string
	reports []Progress
	err     error
}

func (f *fakeRunner) Run(_ context.Context, binary string, args []string, progress func(Progress)) error {
	f.calls = append(f.calls, append([]string{binary}, args...))
	for _, p := range f.reports {
		progress(p)
	}
	if f.err != nil {
		return f.err
	}
	// Stand in for ffmpeg writing the output file.
	return os.WriteFile(args[len(args)-1], []byte("RIFF"), 0o644)
}

func testManifest() *engine.Output {
	audio := engine.Rendition{FormatID: "599", Format: "ultralow, mp4a 31k", Tier: "ultralow", URL: "https://rr.example/599"}
	video := engine.Rendition{FormatID: "95", Format: "720p, hls, avc1", Tier: "720p", Height: 720, URL: "https://manifest.example/95.m3u8"}
	return &engine.Output{
		MetaData: engine.MetaData{
			Title:     "21 Savage - redrum (Official Audio)",
			Thumbnail: "https://i.ytimg.com/vi/x/maxresdefault.jpg",
			Duration:  100,
		},
		AudioLow:     []engine.Rendition{audio},
		AudioHigh:    []engine.Rendition{audio},
		AudioLowF:    &audio,
		AudioHighF:   &audio,
		ManifestLow:  []engine.Rendition{video},
		ManifestHigh: []engine.Rendition{video},
		IPAddress:    "203.0.113.7",
	}
}

func collect(j *Job) []Event {
	var events []Event
	for e := range j.Events() {
		events = append(events, e)
	}
	return events
}

func kinds(events []Event) []EventKind {
	out := make([]EventKind, 0, len(events))
	for _, e := range events {
		out = append(out, e.Kind)
	}
	return out
}

func TestFilenameDeterministicAndSanitized(t *testing.T) {
	a := Filename("VideoCustom", "720p", "grayscale", "Rick Astley - Never Gonna Give You Up (Official Video) 🎵", "mkv")
	b := Filename("VideoCustom", "720p", "grayscale", "Rick Astley - Never Gonna Give You Up (Official Video) 🎵", "mkv")
	assert.Equal(t, a, b)
	assert.Equal(t, "yt-dlx_(VideoCustom_720p_grayscale)_Rick_Astley_Never_Gonna_Give_You_Up_Official_Video.mkv", a)

	assert.Equal(t, "yt-dlx_(AudioLowest_)_untitled.avi", Filename("AudioLowest", "", "", "???", "avi"))
	assert.Regexp(t, regexp.MustCompile(`^[A-Za-z0-9_]+$`), SanitizeTitle("ñ/\\:*?\"<>| ok"))
}

func TestFilterTables(t *testing.T) {
	for _, name := range AudioFilters {
		_, ok := AudioFilterExpr(name)
		assert.True(t, ok, name)
	}
	for _, name := range VideoFilters {
		_, ok := VideoFilterExpr(name)
		assert.True(t, ok, name)
	}
	_, ok := AudioFilterExpr("grayscale")
	assert.False(t, ok)
	expr, _ := AudioFilterExpr("nightcore")
	assert.Equal(t, "aresample=48000,asetrate=48000*1.25", expr)
}

func TestArgsAudioWithThumbnail(t *testing.T) {
	m := testManifest()
	req := Request{Product: "AudioCustom", Kind: KindAudio, Filter: "bassboost", Manifest: m, Selection: formats.Selection{Audio: m.AudioHighF}}

	args, err := Builder{}.Args(req, "/tmp/out.avi")
	require.NoError(t, err)
	line := strings.Join(args, " ")

	assert.Contains(t, line, "-headers X-Forwarded-For: 203.0.113.7\r\n -i https://rr.example/599 -headers X-Forwarded-For: 203.0.113.7\r\n -i https://i.ytimg.com/vi/x/maxresdefault.jpg")
	assert.Contains(t, line, "-map 1:v:0 -map 0:a:0")
	assert.Contains(t, line, "-af bass=g=10,dynaudnorm=f=150")
	assert.Contains(t, line, "-c:a libmp3lame")
	assert.Contains(t, line, "-progress pipe:1")
	assert.True(t, strings.HasSuffix(line, "-f avi /tmp/out.avi"))
}

func TestArgsAudioVideoCopyUnlessFiltered(t *testing.T) {
	m := testManifest()
	sel := formats.Selection{Audio: m.AudioHighF, Video: &m.ManifestHigh[0]}

	args, err := Builder{}.Args(Request{Kind: KindAudioVideo, Manifest: m, Selection: sel}, StreamOutput)
	require.NoError(t, err)
	line := strings.Join(args, " ")
	assert.Contains(t, line, "-map 1:v:0 -map 0:a:0 -c:v copy -c:a copy")
	assert.NotContains(t, line, "-progress")
	assert.True(t, strings.HasSuffix(line, "-f matroska pipe:1"))

	args, err = Builder{}.Args(Request{Kind: KindAudioVideo, Filter: "rotate90", Manifest: m, Selection: sel}, "/tmp/o.mkv")
	require.NoError(t, err)
	line = strings.Join(args, " ")
	assert.Contains(t, line, "-vf rotate=PI/2 -c:v libx264")
	assert.Contains(t, line, "-c:a copy")
}

func TestCodecPolicy(t *testing.T) {
	assert.Equal(t, PolicyReencode, Request{Kind: KindAudio}.CodecPolicy())
	assert.Equal(t, PolicyCopy, Request{Kind: KindVideo}.CodecPolicy())
	assert.Equal(t, PolicyCopy, Request{Kind: KindAudioVideo, Filter: "bassboost"}.CodecPolicy())
	assert.Equal(t, PolicyReencode, Request{Kind: KindAudioVideo, Filter: "grayscale"}.CodecPolicy())
}

func TestArgsVideoOnlyHasNoAudioInput(t *testing.T) {
	m := testManifest()
	args, err := Builder{}.Args(Request{Kind: KindVideo, Manifest: m, Selection: formats.Selection{Video: &m.ManifestHigh[0]}}, "/tmp/o.mkv")
	require.NoError(t, err)
	line := strings.Join(args, " ")
	assert.Equal(t, 1, strings.Count(line, " -i "))
	assert.Contains(t, line, "-map 0:v:0 -c:v copy -an")

	_, err = Builder{}.Args(Request{Kind: KindVideo, Manifest: m}, "/tmp/o.mkv")
	assert.Error(t, err)
}

func TestParseProgress(t *testing.T) {
	input := strings.Join([]string{
		"frame=120", "fps=30.00", "bitrate= 128.0kbits/s", "total_size=1048576",
		"out_time_us=50000000", "speed=2.5x", "progress=continue",
		"out_time_us=100000000", "total_size=2097152", "progress=end",
	}, "\n")

	var got []Progress
	require.NoError(t, ParseProgress(strings.NewReader(input), func(p Progress) { got = append(got, p) }))
	require.Len(t, got, 2)

	assert.Equal(t, int64(120), got[0].Frame)
	assert.Equal(t, 50*time.Second, got[0].OutTime)
	assert.Equal(t, "2.5x", got[0].Speed)
	assert.Equal(t, "128.0kbits/s", got[0].Bitrate)
	assert.InDelta(t, 50.0, got[0].WithDuration(100).Percent, 0.001)
	assert.Equal(t, "00:00:50", got[0].Timemark())

	assert.True(t, got[1].Done)
	assert.Equal(t, 100.0, got[1].WithDuration(100).Percent)
	assert.Equal(t, 0.0, got[1].WithDuration(0).Percent)
}

func TestReadProgressDrainsAfterScanError(t *testing.T) {
	var input bytes.Buffer
	input.WriteString("out_time_us=1000000\nprogress=continue\n")
	input.WriteString("junk=" + strings.Repeat("x", 128*1024) + "\n")
	input.WriteString("out_time_us=2000000\nprogress=end\n")

	var reports []Progress
	err := readProgress(&input, func(p Progress) { reports = append(reports, p) })

	require.Error(t, err)
	assert.Len(t, reports, 1)
	assert.Zero(t, input.Len())
}

func TestRunEmitsOrderedEvents(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "out")
	runner := &fakeRunner{reports: []Progress{{OutTime: 25 * time.Second}, {OutTime: 100 * time.Second, Done: true}}}
	o := NewOrchestrator(fakeTools{}, runner, nil)
	m := testManifest()

	job := o.Run(context.Background(), Request{
		Product: "AudioLowest", Kind: KindAudio, Manifest: m,
		Selection: formats.Selection{Audio: m.AudioLowF}, OutputDir: dir, Mode: ModeRun,
	})
	events := collect(job)
	require.NoError(t, job.Wait())

	assert.Equal(t, []EventKind{EventStart, EventProgress, EventProgress, EventEnd}, kinds(events))
	assert.True(t, strings.HasPrefix(events[0].Command, "/usr/bin/ffmpeg -hide_banner"))
	assert.InDelta(t, 25.0, events[1].Progress.Percent, 0.001)

	end := events[3].Output
	assert.Equal(t, filepath.Join(dir, "yt-dlx_(AudioLowest_)_21_Savage_redrum_Official_Audio.avi"), end)
	info, err := os.Stat(end)
	require.NoError(t, err)
	assert.NotZero(t, info.Size())
	for _, e := range events {
		assert.Equal(t, job.ID, e.JobID)
	}
}

func TestRunFailureIsTranscodeError(t *testing.T) {
	o := NewOrchestrator(fakeTools{}, &fakeRunner{err: errors.New("exit status 1")}, nil)
	m := testManifest()

	job := o.Run(context.Background(), Request{
		Product: "VideoHighest", Kind: KindVideo, Manifest: m,
		Selection: formats.Selection{Video: &m.ManifestHigh[0]}, OutputDir: t.TempDir(),
	})
	events := collect(job)

	require.Equal(t, []EventKind{EventStart, EventError}, kinds(events))
	assert.Equal(t, yterr.KindTranscodeError, events[1].Error.Kind)
	assert.ErrorIs(t, job.Wait(), yterr.ErrTranscode)
}

func TestMetadataModeTouchesNothing(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "never-created")
	runner := &fakeRunner{}
	o := NewOrchestrator(fakeTools{}, runner, nil)
	m := testManifest()
	req := Request{
		Product: "VideoCustom", Kind: KindVideo, Resolution: "720p", Manifest: m,
		Selection: formats.Selection{Video: &m.ManifestHigh[0]}, OutputDir: dir, Mode: ModeMetadata,
	}

	for i := 0; i < 2; i++ {
		events := collect(o.Run(context.Background(), req))
		require.Equal(t, []EventKind{EventMetadata}, kinds(events))
		bundle := events[0].Metadata
		assert.Equal(t, m.ManifestHigh, bundle.ManifestHigh)
		assert.Equal(t, "mkv", bundle.Selection.Container)
		assert.Equal(t, PolicyCopy, bundle.Selection.CodecPolicy)
		assert.Equal(t, "yt-dlx_(VideoCustom_720p_)_21_Savage_redrum_Official_Audio.mkv", bundle.Filename)
	}

	assert.Empty(t, runner.calls)
	_, err := os.Stat(dir)
	assert.True(t, os.IsNotExist(err))
}

func TestStreamModeReturnsHandle(t *testing.T) {
	runner := &fakeRunner{}
	o := NewOrchestrator(fakeTools{}, runner, nil)
	m := testManifest()

	events := collect(o.Run(context.Background(), Request{
		Product: "AudioVideoHighest", Kind: KindAudioVideo, Manifest: m, Mode: ModeStream,
		Selection: formats.Selection{Audio: m.AudioHighF, Video: &m.ManifestHigh[0]},
	}))
	require.Equal(t, []EventKind{EventStream}, kinds(events))

	h := events[0].Stream
	assert.Equal(t, "/usr/bin/ffmpeg", h.Binary)
	assert.Equal(t, StreamOutput, h.Args[len(h.Args)-1])
	assert.Equal(t, "video/x-matroska", h.ContentType)
	assert.Equal(t, h.Filename, events[0].Output)
	assert.Empty(t, runner.calls, "stream mode leaves execution to the caller")

	cmd := h.Command(context.Background(), os.Stdout)
	assert.Equal(t, h.Args, cmd.Args[1:])
}

func TestJobCancel(t *testing.T) {
	started := make(chan struct{})
	job := Start(context.Background(), nil, func(ctx context.Context, j *Job) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	})
	<-started
	job.Cancel()

	events := collect(job)
	require.Len(t, events, 1)
	assert.Equal(t, EventError, events[0].Kind)
	assert.Contains(t, events[0].Error.Error(), "cancelled")
}

func TestJobNeverBlocksOnSlowConsumer(t *testing.T) {
	job := Start(context.Background(), nil, func(ctx context.Context, j *Job) error {
		for i := 0; i < eventBuffer*2; i++ {
			j.Emit(Event{Kind: EventProgress, Progress: &Progress{Frame: int64(i)}})
		}
		j.Emit(Event{Kind: EventEnd, Output: "done"})
		return nil
	})
	require.NoError(t, job.Wait())

	events := collect(job)
	assert.Equal(t, EventEnd, events[len(events)-1].Kind)
	assert.Len(t, events, eventBuffer)
}
