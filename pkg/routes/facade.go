// Package routes is the public surface of the toolkit: one entry point per
// download product plus the lookup commands, all reporting through a transcode.Job.
package routes

import (
	"context"

	"github.com/hashicorp/go-hclog"

	"github.com/debargha2001/ytdlx/pkg/engine"
	"github.com/debargha2001/ytdlx/pkg/formats"
	"github.com/debargha2001/ytdlx/pkg/identity"
	"github.com/debargha2001/ytdlx/pkg/logging"
	"github.com/debargha2001/ytdlx/pkg/metadata"
	"github.com/debargha2001/ytdlx/pkg/network"
	"github.com/debargha2001/ytdlx/pkg/transcode"
	"github.com/debargha2001/ytdlx/pkg/yterr"
)

// Identities hands out the egress identity for one operation.
type Identities interface {
	Identity(ctx context.Context, useTor, verbose bool) (network.Identity, error)
}

// Deps wires a Facade.
type Deps struct {
	Metadata     *metadata.Service
	Network      Identities
	Engine       engine.Engine
	Selector     formats.Selector
	Orchestrator *transcode.Orchestrator
	// OutputDir is used when a request does not name one.
	OutputDir string
	Logger    hclog.Logger
}

// Facade runs products and lookup commands.
type Facade struct {
	meta      *metadata.Service
	network   Identities
	engine    engine.Engine
	selector  formats.Selector
	orch      *transcode.Orchestrator
	outputDir string
	logger    hclog.Logger
}

func New(d Deps) *Facade {
	return &Facade{
		meta:      d.Metadata,
		network:   d.Network,
		engine:    d.Engine,
		selector:  d.Selector,
		orch:      d.Orchestrator,
		outputDir: d.OutputDir,
		logger:    logging.OrNull(d.Logger).Named("routes"),
	}
}

// Run starts product p. Validation failures end the job with an error event
// before any network or process activity.
func (f *Facade) Run(ctx context.Context, p Product, opts Options) *transcode.Job {
	return transcode.Start(ctx, f.logger.With("product", string(p)), func(ctx context.Context, j *transcode.Job) error {
		if err := p.Validate(opts); err != nil {
			return err
		}
		log := j.Logger()

		videoID, err := f.videoID(ctx, opts.Query)
		if err != nil {
			return err
		}
		logging.Diag(log, opts.Verbose, "resolved query", "query", opts.Query, "video", videoID)

		out, warning, err := f.extract(ctx, j, videoID, opts.UseTor, opts.Verbose)
		if err != nil {
			return err
		}

		sel, err := f.selectFor(p, opts, out)
		if err != nil {
			return err
		}

		dir := opts.Output
		if dir == "" {
			dir = f.outputDir
		}
		req := transcode.Request{
			Product:    string(p),
			Kind:       p.Kind(),
			Resolution: opts.Resolution,
			Filter:     opts.Filter,
			Manifest:   out,
			Selection:  sel,
			OutputDir:  dir,
			Mode:       mode(opts),
			Warning:    warning,
		}
		logging.Diag(log, opts.Verbose, "starting job", "request", req.Describe())
		return f.orch.Execute(ctx, j, req)
	})
}

// ListFormats extracts the full classified manifest for one video and ends with a data event.
func (f *Facade) ListFormats(ctx context.Context, opts QueryOptions) *transcode.Job {
	return f.lookup(ctx, "formats", opts, func(ctx context.Context, j *transcode.Job) (any, error) {
		videoID, err := f.videoID(ctx, opts.Query)
		if err != nil {
			return nil, err
		}
		out, _, err := f.extract(ctx, j, videoID, opts.UseTor, opts.Verbose)
		return out, err
	})
}

// Video fetches metadata for one video link or ID.
func (f *Facade) Video(ctx context.Context, opts QueryOptions) *transcode.Job {
	return f.lookup(ctx, "video", opts, func(ctx context.Context, _ *transcode.Job) (any, error) {
		return f.meta.SingleVideo(ctx, opts.Query)
	})
}

// SearchVideos runs a free-text video search.
func (f *Facade) SearchVideos(ctx context.Context, opts QueryOptions) *transcode.Job {
	return f.lookup(ctx, "search_videos", opts, func(ctx context.Context, _ *transcode.Job) (any, error) {
		return f.meta.SearchVideos(ctx, opts.Query)
	})
}

// Playlist fetches a playlist and its entries.
func (f *Facade) Playlist(ctx context.Context, opts QueryOptions) *transcode.Job {
	return f.lookup(ctx, "playlist", opts, func(ctx context.Context, _ *transcode.Job) (any, error) {
		return f.meta.Playlist(ctx, opts.Query)
	})
}

// SearchPlaylists runs a free-text playlist search.
func (f *Facade) SearchPlaylists(ctx context.Context, opts QueryOptions) *transcode.Job {
	return f.lookup(ctx, "search_playlists", opts, func(ctx context.Context, _ *transcode.Job) (any, error) {
		return f.meta.SearchPlaylists(ctx, opts.Query)
	})
}

func (f *Facade) lookup(ctx context.Context, name string, opts QueryOptions, fn func(context.Context, *transcode.Job) (any, error)) *transcode.Job {
	return transcode.Start(ctx, f.logger.With("command", name), func(ctx context.Context, j *transcode.Job) error {
		if err := opts.Validate(); err != nil {
			return err
		}
		data, err := fn(ctx, j)
		if err != nil {
			return err
		}
		logging.Diag(j.Logger(), opts.Verbose, "lookup finished", "query", opts.Query)
		j.Emit(transcode.Event{Kind: transcode.EventData, Data: data})
		return nil
	})
}

// videoID turns a query into a single video ID. Free text is searched and the
// first hit used; playlists are rejected.
func (f *Facade) videoID(ctx context.Context, query string) (string, error) {
	r := identity.Resolve(query)
	switch r.Kind {
	case identity.KindVideo:
		return r.ID, nil
	case identity.KindPlaylist:
		return "", yterr.New(yterr.KindInvalidUsage, "%q is a playlist", query).
			WithHint("use the playlist operation to list its videos, then download them one by one")
	}
	return f.meta.TopVideoID(ctx, query)
}

// extract resolves the egress identity and pulls the manifest. A degraded
// identity is reported as a warning event and returned for the metadata bundle.
func (f *Facade) extract(ctx context.Context, j *transcode.Job, videoID string, useTor, verbose bool) (*engine.Output, string, error) {
	id, err := f.network.Identity(ctx, useTor, verbose)
	if err != nil {
		return nil, "", yterr.Wrap(yterr.KindExtractionFailed, err, "failed to determine egress address")
	}
	var warning string
	if id.Warning != nil {
		warning = id.Warning.Error()
		j.Warn(warning)
	}
	logging.Diag(j.Logger(), verbose, "egress identity", "address", id.Address, "circuit", id.Circuit)

	out, err := f.engine.Extract(ctx, identity.WatchURL(videoID), id)
	if err != nil {
		return nil, "", err
	}
	if out.Empty() {
		return nil, "", yterr.New(yterr.KindExtractionFailed, "no formats extracted for %s", videoID)
	}
	return out, warning, nil
}

func (f *Facade) selectFor(p Product, opts Options, out *engine.Output) (formats.Selection, error) {
	tier := specs[p].tier
	var sel formats.Selection
	var err error

	switch p.Kind() {
	case transcode.KindAudio:
		if tier == custom {
			tier = opts.Resolution
		}
		sel.Audio, err = f.selector.SelectAudio(out, tier)

	case transcode.KindVideo:
		if tier == custom {
			tier = opts.Resolution
		}
		sel.Video, err = f.selector.SelectVideo(out, tier)

	case transcode.KindAudioVideo:
		audioTier, videoTier := tier, tier
		if tier == custom {
			audioTier, videoTier = formats.Highest, opts.Resolution
		}
		if sel.Audio, err = f.selector.SelectAudio(out, audioTier); err != nil {
			return sel, err
		}
		sel.Video, err = f.selector.SelectVideo(out, videoTier)
	}
	return sel, err
}

func mode(opts Options) transcode.Mode {
	switch {
	case opts.Metadata:
		return transcode.ModeMetadata
	case opts.Stream:
		return transcode.ModeStream
	}
	return transcode.ModeRun
}
