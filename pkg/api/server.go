// Package api exposes the products and lookup commands over HTTP and WebSocket.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/hashicorp/go-hclog"

	"github.com/debargha2001/ytdlx/pkg/config"
	"github.com/debargha2001/ytdlx/pkg/logging"
	"github.com/debargha2001/ytdlx/pkg/routes"
	"github.com/debargha2001/ytdlx/pkg/transcode"
	"github.com/debargha2001/ytdlx/pkg/yterr"
)

// Facade is the operation surface served by the router.
type Facade interface {
	Run(ctx context.Context, p routes.Product, opts routes.Options) *transcode.Job
	ListFormats(ctx context.Context, opts routes.QueryOptions) *transcode.Job
	Video(ctx context.Context, opts routes.QueryOptions) *transcode.Job
	SearchVideos(ctx context.Context, opts routes.QueryOptions) *transcode.Job
	Playlist(ctx context.Context, opts routes.QueryOptions) *transcode.Job
	SearchPlaylists(ctx context.Context, opts routes.QueryOptions) *transcode.Job
}

// Response is the JSON body of every non-streaming endpoint.
type Response struct {
	Success bool              `json:"success"`
	Result  *transcode.Event  `json:"result,omitempty"`
	Events  []transcode.Event `json:"events,omitempty"`
	Error   *yterr.Error      `json:"error,omitempty"`
}

type server struct {
	facade   Facade
	logger   hclog.Logger
	upgrader websocket.Upgrader
}

// NewRouter builds the gin engine.
func NewRouter(f Facade, cfg config.ServerConfig, logger hclog.Logger) *gin.Engine {
	s := &server{
		facade: f,
		logger: logging.OrNull(logger).Named("api"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(cfg.CORSOrigins),
		},
	}

	router := gin.New()
	router.Use(gin.Recovery(), s.requestLogger())

	if len(cfg.CORSOrigins) > 0 {
		corsConfig := cors.DefaultConfig()
		corsConfig.AllowOrigins = cfg.CORSOrigins
		corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
		corsConfig.AllowHeaders = []string{"Content-Type", "Authorization"}
		corsConfig.ExposeHeaders = []string{"Content-Disposition"}
		router.Use(cors.New(corsConfig))
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api")
	{
		api.GET("/video", s.lookup(f.Video))
		api.GET("/formats", s.lookup(f.ListFormats))
		api.GET("/playlist", s.lookup(f.Playlist))
		api.GET("/search/videos", s.lookup(f.SearchVideos))
		api.GET("/search/playlists", s.lookup(f.SearchPlaylists))
		api.GET("/products", s.products)
		api.POST("/run/:product", s.run)
		api.GET("/stream/:product", s.stream)
	}
	router.GET("/ws/:product", s.websocket)

	return router
}

func (s *server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Info("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}

func (s *server) products(c *gin.Context) {
	type product struct {
		Name        routes.Product `json:"name"`
		Kind        transcode.Kind `json:"kind"`
		Resolutions []string       `json:"resolutions,omitempty"`
		Filters     []string       `json:"filters"`
	}
	out := make([]product, 0, len(routes.Products))
	for _, p := range routes.Products {
		out = append(out, product{Name: p, Kind: p.Kind(), Resolutions: p.Resolutions(), Filters: p.Filters()})
	}
	c.JSON(http.StatusOK, out)
}

func (s *server) lookup(fn func(context.Context, routes.QueryOptions) *transcode.Job) gin.HandlerFunc {
	return func(c *gin.Context) {
		var opts routes.QueryOptions
		if err := c.ShouldBindQuery(&opts); err != nil {
			s.fail(c, yterr.Wrap(yterr.KindValidation, err, "invalid query parameters"), nil)
			return
		}
		s.serve(c, fn(c.Request.Context(), opts))
	}
}

func (s *server) run(c *gin.Context) {
	p, ok := s.product(c)
	if !ok {
		return
	}
	var opts routes.Options
	if err := c.ShouldBindJSON(&opts); err != nil {
		s.fail(c, yterr.Wrap(yterr.KindValidation, err, "invalid request body"), nil)
		return
	}
	// The server decides where files go.
	opts.Output = ""
	s.serve(c, s.facade.Run(c.Request.Context(), p, opts))
}

func (s *server) stream(c *gin.Context) {
	p, ok := s.product(c)
	if !ok {
		return
	}
	var opts routes.Options
	if err := c.ShouldBindQuery(&opts); err != nil {
		s.fail(c, yterr.Wrap(yterr.KindValidation, err, "invalid query parameters"), nil)
		return
	}
	opts.Output = ""
	opts.Metadata = false
	opts.Stream = true
	s.serve(c, s.facade.Run(c.Request.Context(), p, opts))
}

func (s *server) product(c *gin.Context) (routes.Product, bool) {
	p, ok := routes.ParseProduct(c.Param("product"))
	if !ok {
		s.fail(c, yterr.New(yterr.KindInvalidUsage, "unknown product %q", c.Param("product")).
			WithHint("GET /api/products lists the available products"), nil)
	}
	return p, ok
}

// serve drains job and writes its terminal event. A stream event pipes ffmpeg
// output straight into the response.
func (s *server) serve(c *gin.Context, job *transcode.Job) {
	var events []transcode.Event
	for e := range job.Events() {
		switch e.Kind {
		case transcode.EventError:
			s.fail(c, e.Error, events)
			return
		case transcode.EventStream:
			s.pipe(c, e.Stream)
			return
		}
		if e.Kind.Terminal() {
			c.JSON(http.StatusOK, Response{Success: true, Result: &e, Events: events})
			return
		}
		events = append(events, e)
	}
}

func (s *server) pipe(c *gin.Context, h *transcode.StreamHandle) {
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", h.Filename))
	c.Header("Content-Type", h.ContentType)
	c.Header("Content-Transfer-Encoding", "binary")
	c.Status(http.StatusOK)

	if err := h.Pipe(c.Request.Context(), c.Writer); err != nil {
		// Headers are gone by now; all we can do is stop and log.
		s.logger.Error("stream failed", "filename", h.Filename, "error", err)
	}
}

func (s *server) fail(c *gin.Context, err *yterr.Error, events []transcode.Event) {
	status := StatusFor(err.Kind)
	if status >= http.StatusInternalServerError {
		s.logger.Error("operation failed", "path", c.Request.URL.Path, "error", err)
	}
	c.JSON(status, Response{Success: false, Error: err, Events: events})
}

// StatusFor maps a failure kind to an HTTP status.
func StatusFor(kind yterr.Kind) int {
	switch kind {
	case yterr.KindValidation, yterr.KindInvalidUsage:
		return http.StatusBadRequest
	case yterr.KindNotFound, yterr.KindNoResultsFound:
		return http.StatusNotFound
	case yterr.KindFormatNotFound:
		return http.StatusUnprocessableEntity
	case yterr.KindExtractionFailed:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}
