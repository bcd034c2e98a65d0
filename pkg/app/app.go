// Package app wires the configured components into a routes.Facade.
package app

import (
	"fmt"

	"github.com/hashicorp/go-hclog"

	"github.com/debargha2001/ytdlx/pkg/config"
	"github.com/debargha2001/ytdlx/pkg/engine"
	"github.com/debargha2001/ytdlx/pkg/formats"
	"github.com/debargha2001/ytdlx/pkg/logging"
	"github.com/debargha2001/ytdlx/pkg/metadata"
	"github.com/debargha2001/ytdlx/pkg/network"
	"github.com/debargha2001/ytdlx/pkg/routes"
	"github.com/debargha2001/ytdlx/pkg/toolchain"
	"github.com/debargha2001/ytdlx/pkg/transcode"
)

// searchLimit caps search results returned by the lookup commands.
const searchLimit = 20

// App holds the long-lived components.
type App struct {
	Config    *config.Config
	Logger    hclog.Logger
	Toolchain *toolchain.Toolchain
	Facade    *routes.Facade
}

// New builds every component from cfg. Nothing touches the network or the
// filesystem until an operation runs.
func New(cfg *config.Config, logger hclog.Logger) (*App, error) {
	logger = logging.OrNull(logger)

	tools := toolchain.New(toolchain.Options{
		YtDlpPath:     cfg.Tools.YtDlpPath,
		FFmpegPath:    cfg.Tools.FFmpegPath,
		NoAutoInstall: cfg.Tools.NoAutoInstall,
		Logger:        logger,
	})

	provider := network.NewProvider(network.Options{
		Echo:     network.NewHTTPEcho(cfg.Network.IPEchoURL, cfg.Network.ProbeTimeout),
		TorHost:  cfg.Network.TorHost,
		TorPorts: cfg.Network.TorPorts,
		Retry: network.RetryPolicy{
			Attempts:       cfg.Network.RetryAttempts,
			InitialBackoff: cfg.Network.InitialBackoff,
			MaxBackoff:     cfg.Network.MaxBackoff,
			Factor:         2,
		},
		Logger: logger,
	})

	eng, err := engine.New(cfg.Extractor.Engine, tools, cfg.Extractor.Timeout, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create extraction engine: %w", err)
	}

	meta := metadata.NewService(
		metadata.YTSearch{Limit: searchLimit},
		metadata.NewYouTube(cfg.Extractor.Timeout),
		logger,
	)

	orch := transcode.NewOrchestrator(tools, transcode.ExecRunner{Logger: logger.Named("ffmpeg")}, logger)

	facade := routes.New(routes.Deps{
		Metadata:     meta,
		Network:      provider,
		Engine:       eng,
		Selector:     formats.Selector{MatchExact: cfg.Extractor.ExactResolution},
		Orchestrator: orch,
		OutputDir:    cfg.Output.Dir,
		Logger:       logger,
	})

	return &App{Config: cfg, Logger: logger, Toolchain: tools, Facade: facade}, nil
}
