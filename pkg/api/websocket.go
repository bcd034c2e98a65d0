package api

import (
	"net/http"
	"net/url"
	"slices"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/debargha2001/ytdlx/pkg/routes"
	"github.com/debargha2001/ytdlx/pkg/transcode"
	"github.com/debargha2001/ytdlx/pkg/yterr"
)

// websocket runs one product per connection. The client sends the options as
// the first message and receives every lifecycle event as JSON. Stream mode is
// not available here.
func (s *server) websocket(c *gin.Context) {
	p, ok := s.product(c)
	if !ok {
		return
	}
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	var opts routes.Options
	if err := conn.ReadJSON(&opts); err != nil {
		e := yterr.Wrap(yterr.KindValidation, err, "first message must be the options object")
		_ = conn.WriteJSON(transcode.Event{Kind: transcode.EventError, Error: e})
		return
	}
	opts.Output = ""
	opts.Stream = false

	ctx := c.Request.Context()
	job := s.facade.Run(ctx, p, opts)

	// A closed socket cancels the job.
	go func() {
		for {
			if _, _, err := conn.NextReader(); err != nil {
				job.Cancel()
				return
			}
		}
	}()

	for e := range job.Events() {
		if err := conn.WriteJSON(e); err != nil {
			s.logger.Debug("websocket write failed", "job", job.ID, "error", err)
			job.Cancel()
			return
		}
	}
	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

// originChecker allows same-host requests plus the configured CORS origins.
func originChecker(origins []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || slices.Contains(origins, "*") || slices.Contains(origins, origin) {
			return true
		}
		u, err := url.Parse(origin)
		return err == nil && strings.EqualFold(u.Host, r.Host)
	}
}
