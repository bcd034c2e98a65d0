// Command ytdlx runs the download products and lookup commands from a terminal.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/hashicorp/go-hclog"

	"github.com/debargha2001/ytdlx/pkg/app"
	"github.com/debargha2001/ytdlx/pkg/config"
	"github.com/debargha2001/ytdlx/pkg/logging"
	"github.com/debargha2001/ytdlx/pkg/routes"
	"github.com/debargha2001/ytdlx/pkg/transcode"
)

const usage = `usage: ytdlx [-config file] <command> [flags] [query]

commands:
  audio-lowest | audio-highest | audio-custom
  video-lowest | video-highest | video-custom
  audio-video-lowest | audio-video-highest | audio-video-custom
  search-videos | search-playlists | playlist | video | formats
  setup    install yt-dlp and ffmpeg into ~/.ytdlx/bin
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	global := flag.NewFlagSet("ytdlx", flag.ContinueOnError)
	global.SetOutput(stderr)
	global.Usage = func() { fmt.Fprint(stderr, usage) }
	configPath := global.String("config", os.Getenv("YTDLX_CONFIG"), "path to a YAML config file")
	if err := global.Parse(args); err != nil {
		return 2
	}
	if global.NArg() == 0 {
		global.Usage()
		return 2
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "ytdlx: %v\n", err)
		return 1
	}
	logger := logging.New(logging.Options{Level: cfg.Logging.Level, JSON: cfg.Logging.JSON, Output: stderr})

	a, err := app.New(cfg, logger)
	if err != nil {
		fmt.Fprintf(stderr, "ytdlx: %v\n", err)
		return 1
	}

	name, rest := global.Arg(0), global.Args()[1:]
	if name == "setup" {
		if err := a.Toolchain.Setup(ctx); err != nil {
			fmt.Fprintf(stderr, "ytdlx: setup failed: %v\n", err)
			return 1
		}
		fmt.Fprintf(stdout, "yt-dlp: %s\nffmpeg: %s\n", a.Toolchain.YtDlp(), a.Toolchain.FFmpeg())
		return 0
	}

	cmd, err := parseCommand(name, rest, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintf(stderr, "ytdlx: %v\n", err)
		return 2
	}

	job := cmd.start(ctx, a.Facade)
	return printEvents(ctx, job, cmd.json, stdout, stderr, logger)
}

type command struct {
	product routes.Product
	lookup  string
	opts    routes.Options
	json    bool
}

func parseCommand(name string, args []string, stderr io.Writer) (*command, error) {
	cmd := &command{}
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&cmd.opts.Query, "query", "", "video link, ID or search text")
	fs.BoolVar(&cmd.opts.UseTor, "tor", false, "route requests through a local Tor proxy")
	fs.BoolVar(&cmd.opts.Verbose, "verbose", false, "log diagnostics at info level")
	fs.BoolVar(&cmd.json, "json", false, "print events as JSON lines")

	switch name {
	case "search-videos", "search-playlists", "playlist", "video", "formats":
		cmd.lookup = name
	default:
		p, ok := routes.ParseProduct(name)
		if !ok {
			return nil, fmt.Errorf("unknown command %q", name)
		}
		cmd.product = p
		fs.StringVar(&cmd.opts.Output, "output", "", "output directory")
		fs.BoolVar(&cmd.opts.Stream, "stream", false, "write the media to stdout instead of a file")
		fs.BoolVar(&cmd.opts.Metadata, "metadata", false, "print the selection without downloading")
		fs.StringVar(&cmd.opts.Filter, "filter", "", "effect filter: "+strings.Join(p.Filters(), ", "))
		if p.Custom() {
			fs.StringVar(&cmd.opts.Resolution, "resolution", "", "one of: "+strings.Join(p.Resolutions(), ", "))
		}
	}

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if cmd.opts.Query == "" {
		cmd.opts.Query = strings.Join(fs.Args(), " ")
	}
	return cmd, nil
}

func (c *command) start(ctx context.Context, f *routes.Facade) *transcode.Job {
	q := routes.QueryOptions{Query: c.opts.Query, UseTor: c.opts.UseTor, Verbose: c.opts.Verbose}
	switch c.lookup {
	case "search-videos":
		return f.SearchVideos(ctx, q)
	case "search-playlists":
		return f.SearchPlaylists(ctx, q)
	case "playlist":
		return f.Playlist(ctx, q)
	case "video":
		return f.Video(ctx, q)
	case "formats":
		return f.ListFormats(ctx, q)
	}
	return f.Run(ctx, c.product, c.opts)
}

// printEvents renders each event until the job ends and returns the exit code.
// Stream events are piped to stdout, so nothing else is written there in that case.
func printEvents(ctx context.Context, job *transcode.Job, asJSON bool, stdout, stderr io.Writer, logger hclog.Logger) int {
	logger = logging.OrNull(logger)
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	code := 0

	for e := range job.Events() {
		if e.Kind == transcode.EventStream {
			if err := e.Stream.Pipe(ctx, stdout); err != nil {
				logger.Error("stream failed", "error", err)
				code = 1
			}
			continue
		}
		if asJSON {
			line, _ := json.Marshal(e)
			fmt.Fprintln(stdout, string(line))
			if e.Kind == transcode.EventError {
				code = 1
			}
			continue
		}

		switch e.Kind {
		case transcode.EventWarning:
			fmt.Fprintf(stderr, "warning: %s\n", e.Warning)
		case transcode.EventStart:
			fmt.Fprintf(stderr, "running: %s\n", e.Command)
		case transcode.EventProgress:
			p := e.Progress
			fmt.Fprintf(stderr, "\r%6.2f%% %s speed=%s", p.Percent, p.Timemark(), p.Speed)
		case transcode.EventEnd:
			fmt.Fprintf(stderr, "\n")
			fmt.Fprintln(stdout, e.Output)
		case transcode.EventMetadata:
			_ = enc.Encode(e.Metadata)
		case transcode.EventData:
			_ = enc.Encode(e.Data)
		case transcode.EventError:
			fmt.Fprintf(stderr, "error: %v\n", e.Error)
			code = 1
		}
	}
	return code
}
